package main

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/appointments"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/availability"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/events"
	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

type eventTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// storage holds the persistence side of the API. pool and sqlDB are nil in
// memory mode.
type storage struct {
	pool         *pgxpool.Pool
	sqlDB        *sql.DB
	calendar     availability.Store
	appointments appointments.Store
	processed    eventTracker
}

// openStorage connects to Postgres when DATABASE_URL is set and falls back
// to in-memory stores otherwise. Memory mode is meant for local demos: data
// is lost on restart and the dashboard is disabled.
func openStorage(ctx context.Context, databaseURL string, logger *logging.Logger) *storage {
	if databaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		calendar := availability.NewMemoryStore()
		store := appointments.NewMemoryStore(calendar)
		calendar.SetBookingLister(store)
		return &storage{
			calendar:     calendar,
			appointments: store,
			processed:    events.NewMemoryProcessedStore(),
		}
	}

	pool := connectPostgresPool(ctx, databaseURL, logger)
	if pool == nil {
		return nil
	}
	return &storage{
		pool:         pool,
		sqlDB:        stdlib.OpenDBFromPool(pool),
		calendar:     availability.NewPGStore(pool),
		appointments: appointments.NewPGStore(pool),
		processed:    events.NewProcessedStore(pool),
	}
}

func (s *storage) Close() {
	if s.sqlDB != nil {
		_ = s.sqlDB.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
