package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/appointments"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/availability"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/dashboard"
	httpmiddleware "github.com/dheysonavelleda/radiestesia-agendamento/internal/http/middleware"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/payments"
	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Availability       *availability.Handler
	Appointments       *appointments.Handler
	Dashboard          *dashboard.Handler
	MercadoPagoWebhook *payments.MercadoPagoWebhookHandler
	FakePayments       *payments.FakePaymentsHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// AuthSecret signs client and admin bearer tokens.
	AuthSecret string
	// Limiter guards booking and charge creation. Nil disables limiting.
	Limiter httpmiddleware.Limiter

	Health map[string]HealthChecker
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	// Public endpoints (webhooks, health checks, availability)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.Health))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Availability != nil {
			cfg.Availability.RegisterPublicRoutes(public)
		}
		if cfg.MercadoPagoWebhook != nil {
			public.Post("/webhooks/mercadopago", cfg.MercadoPagoWebhook.Handle)
		}
		if cfg.FakePayments != nil {
			public.Mount("/demo", cfg.FakePayments.Routes())
		}
	})

	// Client routes (Bearer JWT)
	r.Group(func(authed chi.Router) {
		authed.Use(httpmiddleware.ActorJWT(cfg.AuthSecret))
		if cfg.Appointments != nil {
			cfg.Appointments.RegisterRoutes(authed, limiter(cfg))
		}

		authed.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.RequireAdmin)
			if cfg.Appointments != nil {
				cfg.Appointments.RegisterAdminRoutes(admin)
			}
			if cfg.Availability != nil {
				cfg.Availability.RegisterAdminRoutes(admin)
			}
			if cfg.Dashboard != nil {
				cfg.Dashboard.RegisterRoutes(admin)
			}
		})
	})

	return r
}

func limiter(cfg *Config) func(http.Handler) http.Handler {
	if cfg.Limiter == nil {
		return nil
	}
	return httpmiddleware.RateLimit(cfg.Limiter, cfg.Logger)
}

// healthHandler reports ok when every checker succeeds within two seconds.
func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := map[string]string{"status": "ok"}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp[name] = "unavailable"
				resp["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
