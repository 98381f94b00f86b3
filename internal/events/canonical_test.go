package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubExec struct {
	sql  string
	args []any
}

type badEvent struct{}

func (badEvent) EventType() string { return "" }

func (s *stubExec) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.sql = sql
	s.args = args
	return pgconn.CommandTag{}, nil
}

func TestAppendCanonicalEvent(t *testing.T) {
	exec := &stubExec{}
	evt := NotificationRequestedV1{
		EventID:       "evt-1",
		Kind:          "confirmation",
		AppointmentID: "appt-1",
		RequestedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Data:          json.RawMessage(`{"clientName":"Ana"}`),
	}
	id, err := AppendCanonicalEvent(context.Background(), exec, "appt-1", evt)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("expected generated id")
	}
	if len(exec.args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(exec.args))
	}
	if exec.args[1] != "appt-1" || exec.args[2] != NotificationRequestedType {
		t.Fatalf("unexpected args: %#v", exec.args)
	}
	var decoded NotificationRequestedV1
	if err := json.Unmarshal(exec.args[3].([]byte), &decoded); err != nil {
		t.Fatalf("payload not json: %v", err)
	}
	if decoded.Kind != "confirmation" || string(decoded.Data) != `{"clientName":"Ana"}` {
		t.Fatalf("unexpected payload: %#v", decoded)
	}
}

func TestAppendCanonicalEventValidation(t *testing.T) {
	exec := &stubExec{}
	if _, err := AppendCanonicalEvent(context.Background(), exec, " ", NotificationRequestedV1{}); err == nil {
		t.Fatal("expected missing aggregate error")
	}
	if _, err := AppendCanonicalEvent(context.Background(), exec, "appt", nil); err == nil {
		t.Fatal("expected nil event error")
	}
	if _, err := AppendCanonicalEvent(context.Background(), exec, "appt", badEvent{}); err == nil {
		t.Fatal("expected missing type error")
	}
	if _, err := AppendCanonicalEvent(context.Background(), nil, "appt", NotificationRequestedV1{}); err == nil {
		t.Fatal("expected exec required error")
	}
}
