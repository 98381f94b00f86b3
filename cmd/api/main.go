package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dheysonavelleda/radiestesia-agendamento/cmd/mainconfig"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/api/router"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/app/bootstrap"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/appointments"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/availability"
	appconfig "github.com/dheysonavelleda/radiestesia-agendamento/internal/config"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/dashboard"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/events"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/notify"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/observability/metrics"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/payments"
	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting radiestesia-agendamento API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	loc, err := cfg.Location()
	if err != nil {
		logger.Warn("falling back to UTC", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := openStorage(ctx, cfg.DatabaseURL, logger)
	if store == nil {
		logger.Error("database unavailable")
		os.Exit(1)
	}
	defer store.Close()

	metricsHandler, bookingMetrics, paymentMetrics := setupMetrics()
	awsCfg := loadAWSConfig(ctx, cfg, logger)
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Availability
	availabilitySvc := availability.NewService(store.calendar, loc, logger).
		WithMetrics(bookingMetrics)
	if redisClient != nil {
		availabilitySvc = availabilitySvc.WithCache(availability.NewRedisDatesCache(redisClient, cfg.AvailabilityCacheTTL))
	}

	// Payments
	gateway, fakeGateway, err := bootstrap.BuildGateway(cfg, paymentMetrics, logger)
	if err != nil {
		logger.Error("payment gateway unavailable", "error", err)
		os.Exit(1)
	}

	// Notifications
	sender := notify.NewService(bootstrap.BuildEmailSender(cfg, awsCfg, logger), bootstrap.BuildRenderer(cfg, loc), logger)
	var notifier notify.Notifier = sender
	var inProcessWorker *notify.Worker
	if store.pool != nil {
		// With a database, notifications go through the outbox and the
		// deliverer moves them onto the job queue.
		outbox := events.NewOutboxStore(store.pool)
		queue, err := bootstrap.BuildQueue(cfg, awsCfg)
		if err != nil {
			logger.Error("notification queue unavailable", "error", err)
			os.Exit(1)
		}
		deliverer := events.NewDeliverer(outbox, notify.NewOutboxDispatcher(queue), logger).
			WithInterval(cfg.OutboxInterval)
		go deliverer.Start(ctx)

		if cfg.UseMemoryQueue {
			inProcessWorker = notify.NewWorker(sender, queue, logger, notify.WithSentTracker(store.processed), notify.WithWorkerCount(1))
			inProcessWorker.Start(ctx)
			logger.Info("notification worker running in-process (memory queue)")
		}
		notifier = notify.NewOutboxNotifier(outbox, logger)
	}

	// Appointments
	manager := appointments.NewManager(store.appointments, gateway, loc, appointments.Config{
		PublicBaseURL:    cfg.PublicBaseURL,
		ServiceTitle:     cfg.ServiceTitle,
		PractitionerName: cfg.PractitionerName,
	}, logger).
		WithLinker(bootstrap.BuildLinker(ctx, cfg, logger)).
		WithNotifier(notifier).
		WithCache(availabilitySvc).
		WithMetrics(bookingMetrics).
		WithRefundMetrics(paymentMetrics)
	if redisClient != nil {
		manager.WithVelocity(payments.NewVelocityChecker(redisClient, payments.DefaultVelocityConfig(), logger))
	}

	webhook := payments.NewMercadoPagoWebhookHandler(cfg.MercadoPagoWebhookSecret, gateway, manager.PaymentEvents(), store.processed, logger).
		WithMetrics(paymentMetrics)

	var fakePayments *payments.FakePaymentsHandler
	if fakeGateway != nil {
		fakePayments = payments.NewFakePaymentsHandler(fakeGateway, webhook, logger)
	}

	var dashboardHandler *dashboard.Handler
	if store.sqlDB != nil {
		dashboardHandler = dashboard.NewHandler(dashboard.NewRepository(store.sqlDB), loc, logger)
	}

	routerCfg := &router.Config{
		Logger:             logger,
		Availability:       availability.NewHandler(availabilitySvc, logger),
		Appointments:       appointments.NewHandler(manager, logger),
		Dashboard:          dashboardHandler,
		MercadoPagoWebhook: webhook,
		FakePayments:       fakePayments,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AuthSecret:         cfg.AuthJWTSecret,
		Limiter:            bootstrap.BuildLimiter(cfg, redisClient, logger),
		Health:             healthChecks(store.pool, redisClient),
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if inProcessWorker != nil {
		inProcessWorker.Wait()
	}
	logger.Info("server stopped")
}

// connectPostgresPool returns nil for an empty URL or an unreachable
// database.
func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if url == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// setupMetrics registers the application collectors on a fresh registry
// alongside the Go and process collectors.
func setupMetrics() (http.Handler, *metrics.BookingMetrics, *metrics.PaymentMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	booking := metrics.NewBookingMetrics(reg)
	paymentMetrics := metrics.NewPaymentMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), booking, paymentMetrics
}

// loadAWSConfig only loads AWS settings when SES or SQS is in use.
func loadAWSConfig(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *aws.Config {
	if cfg.UseMemoryQueue && cfg.EmailProvider != "ses" {
		return nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		return nil
	}
	return &awsCfg
}

func healthChecks(pool *pgxpool.Pool, redisClient *redis.Client) map[string]router.HealthChecker {
	checks := map[string]router.HealthChecker{}
	if pool != nil {
		checks["database"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}
