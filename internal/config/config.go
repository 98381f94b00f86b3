package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	APIBaseURL    string
	LogLevel      string
	DatabaseURL   string
	Timezone      string

	PractitionerName string
	ServiceTitle     string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// MercadoPago
	MercadoPagoAccessToken   string
	MercadoPagoWebhookSecret string
	MercadoPagoBaseURL       string
	AllowFakePayments        bool

	// Google Calendar / Meet
	GoogleCalendarID      string
	GoogleCredentialsJSON string

	// Email
	EmailProvider    string
	SendGridAPIKey   string
	EmailFromAddress string
	EmailFromName    string

	// AWS (SES + SQS)
	AWSRegion            string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string
	AWSEndpointOverride  string
	NotificationQueueURL string
	UseMemoryQueue       bool

	AuthJWTSecret        string
	CORSAllowedOrigins   []string
	RateLimitPerMinute   int
	AvailabilityCacheTTL time.Duration
	ReminderInterval     time.Duration
	ReminderLead         time.Duration
	OutboxInterval       time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		APIBaseURL:    strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080"), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		Timezone:      getEnv("TIMEZONE", "America/Sao_Paulo"),

		PractitionerName: getEnv("PRACTITIONER_NAME", "Joana Savi"),
		ServiceTitle:     getEnv("SERVICE_TITLE", "Sessão de Radiestesia Terapêutica"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		MercadoPagoAccessToken:   getEnv("MERCADOPAGO_ACCESS_TOKEN", ""),
		MercadoPagoWebhookSecret: getEnv("MERCADOPAGO_WEBHOOK_SECRET", ""),
		MercadoPagoBaseURL:       getEnv("MERCADOPAGO_BASE_URL", "https://api.mercadopago.com"),
		AllowFakePayments:        getEnvAsBool("ALLOW_FAKE_PAYMENTS", false),

		GoogleCalendarID:      getEnv("GOOGLE_CALENDAR_ID", "primary"),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),

		EmailProvider:    strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", "agendamento@joanasavi.com.br"),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Joana Savi"),

		AWSRegion:            getEnv("AWS_REGION", "sa-east-1"),
		AWSAccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:  getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		NotificationQueueURL: getEnv("NOTIFICATION_QUEUE_URL", ""),
		UseMemoryQueue:       getEnvAsBool("USE_MEMORY_QUEUE", true),

		AuthJWTSecret:        getEnv("AUTH_JWT_SECRET", ""),
		CORSAllowedOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitPerMinute:   getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		AvailabilityCacheTTL: getEnvAsDuration("AVAILABILITY_CACHE_TTL", 5*time.Minute),
		ReminderInterval:     getEnvAsDuration("REMINDER_INTERVAL", 5*time.Minute),
		ReminderLead:         getEnvAsDuration("REMINDER_LEAD", 24*time.Hour),
		OutboxInterval:       getEnvAsDuration("OUTBOX_INTERVAL", 2*time.Second),
	}
}

// Location resolves the practice timezone. Unknown zones fall back to UTC
// and return the lookup error so callers can log it.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, fmt.Errorf("config: load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
