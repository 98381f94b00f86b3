package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/dheysonavelleda/radiestesia-agendamento/internal/config"
	httpmiddleware "github.com/dheysonavelleda/radiestesia-agendamento/internal/http/middleware"
	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildLimiter shares the booking rate limit across replicas through Redis
// when it is available and falls back to a per-process token bucket.
func BuildLimiter(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) httpmiddleware.Limiter {
	if logger == nil {
		logger = logging.Default()
	}
	perMinute := 60
	if cfg != nil && cfg.RateLimitPerMinute > 0 {
		perMinute = cfg.RateLimitPerMinute
	}
	if redisClient != nil {
		logger.Info("rate limiter using redis", "per_minute", perMinute)
		return httpmiddleware.NewRedisLimiter(redisClient, perMinute, time.Minute)
	}
	logger.Info("rate limiter using in-memory buckets", "per_minute", perMinute)
	return httpmiddleware.NewPerMinuteLimiter(perMinute)
}
