package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// CanonicalEvent represents a versioned domain event.
type CanonicalEvent interface {
	EventType() string
}

var (
	errMissingAggregate = errors.New("events: aggregate is required")
	errNilEvent         = errors.New("events: canonical event required")
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AppendCanonicalEvent writes evt to the outbox through exec, which may be a
// pool or an open transaction, and returns the new entry id.
func AppendCanonicalEvent(ctx context.Context, exec execer, aggregateID string, evt CanonicalEvent) (uuid.UUID, error) {
	if exec == nil {
		return uuid.Nil, fmt.Errorf("events: exec required")
	}
	if strings.TrimSpace(aggregateID) == "" {
		return uuid.Nil, errMissingAggregate
	}
	if evt == nil {
		return uuid.Nil, errNilEvent
	}
	eventType := strings.TrimSpace(evt.EventType())
	if eventType == "" {
		return uuid.Nil, fmt.Errorf("events: event type missing")
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("events: marshal payload: %w", err)
	}
	id := uuid.New()
	query := `
		INSERT INTO outbox (id, aggregate_id, type, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := exec.Exec(ctx, query, id, strings.TrimSpace(aggregateID), eventType, data); err != nil {
		return uuid.Nil, fmt.Errorf("events: insert outbox: %w", err)
	}
	return id, nil
}
