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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/appointments"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/config"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/events"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/notify"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/observability/metrics"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/reminders"
	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("reminder worker requires DATABASE_URL")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Reminders are written to the outbox; the API's deliverer forwards them
	// to the notification queue.
	notifier := notify.NewOutboxNotifier(events.NewOutboxStore(pool), logger)
	reg := prometheus.NewRegistry()

	sweeper := reminders.NewSweeper(appointments.NewPGStore(pool), notifier, events.NewProcessedStore(pool), logger).
		WithInterval(cfg.ReminderInterval).
		WithLead(cfg.ReminderLead).
		WithServiceTitle(cfg.ServiceTitle).
		WithMetrics(metrics.NewBookingMetrics(reg), metrics.NewPaymentMetrics(reg))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	sweeper.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info("reminder worker stopped")
}
