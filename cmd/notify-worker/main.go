package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/dheysonavelleda/radiestesia-agendamento/cmd/mainconfig"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/app/bootstrap"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/config"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/events"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/notify"
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

	if cfg.UseMemoryQueue {
		logger.Error("notify worker consumes SQS; set USE_MEMORY_QUEUE=false and NOTIFICATION_QUEUE_URL")
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		logger.Error("notify worker requires DATABASE_URL")
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Warn("falling back to UTC", "error", err)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	queue, err := bootstrap.BuildQueue(cfg, &awsCfg)
	if err != nil {
		logger.Error("notification queue unavailable", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	sender := notify.NewService(bootstrap.BuildEmailSender(cfg, &awsCfg, logger), bootstrap.BuildRenderer(cfg, loc), logger)
	worker := notify.NewWorker(sender, queue, logger, notify.WithSentTracker(events.NewProcessedStore(pool)))

	logger.Info("notify worker started", "queue", cfg.NotificationQueueURL, "email_provider", cfg.EmailProvider)
	worker.Start(ctx)
	worker.Wait()
	logger.Info("notify worker stopped")
}
