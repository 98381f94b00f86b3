package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/events"
	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

type outboxAppender interface {
	Append(ctx context.Context, aggregateID string, evt events.CanonicalEvent) (uuid.UUID, error)
}

// OutboxNotifier records notification requests in the outbox instead of
// sending them inline.
type OutboxNotifier struct {
	outbox outboxAppender
	logger *logging.Logger
	now    func() time.Time
}

func NewOutboxNotifier(outbox outboxAppender, logger *logging.Logger) *OutboxNotifier {
	if outbox == nil {
		panic("notify: outbox required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OutboxNotifier{outbox: outbox, logger: logger, now: time.Now}
}

func (n *OutboxNotifier) request(ctx context.Context, kind Kind, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("notify: encode snapshot: %w", err)
	}
	evt := events.NotificationRequestedV1{
		EventID:       uuid.NewString(),
		Kind:          string(kind),
		AppointmentID: snap.AppointmentID,
		RequestedAt:   n.now().UTC(),
		Data:          data,
	}
	id, err := n.outbox.Append(ctx, snap.AppointmentID, evt)
	if err != nil {
		return fmt.Errorf("notify: append %s: %w", kind, err)
	}
	n.logger.Debug("notification queued", "kind", kind, "appointment_id", snap.AppointmentID, "outbox_id", id)
	return nil
}

func (n *OutboxNotifier) SendConfirmation(ctx context.Context, snap Snapshot) error {
	return n.request(ctx, KindConfirmation, snap)
}

func (n *OutboxNotifier) SendReminder(ctx context.Context, snap Snapshot) error {
	return n.request(ctx, KindSessionReminder, snap)
}

func (n *OutboxNotifier) SendCancellation(ctx context.Context, snap Snapshot) error {
	return n.request(ctx, KindCancellation, snap)
}

func (n *OutboxNotifier) SendPaymentReminder(ctx context.Context, snap Snapshot) error {
	return n.request(ctx, KindPaymentReminder, snap)
}

func (n *OutboxNotifier) SendFeedbackRequest(ctx context.Context, snap Snapshot) error {
	return n.request(ctx, KindFeedback, snap)
}

var _ Notifier = (*OutboxNotifier)(nil)

// OutboxDispatcher delivers stored notification requests to the job queue.
type OutboxDispatcher struct {
	queue Queue
}

func NewOutboxDispatcher(queue Queue) *OutboxDispatcher {
	if queue == nil {
		panic("notify: queue required")
	}
	return &OutboxDispatcher{queue: queue}
}

func (d *OutboxDispatcher) Handle(ctx context.Context, entry events.OutboxEntry) error {
	switch entry.Type {
	case events.NotificationRequestedType:
		var evt events.NotificationRequestedV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode notification event: %w", err)
		}
		var snap Snapshot
		if err := json.Unmarshal(evt.Data, &snap); err != nil {
			return fmt.Errorf("notify: decode snapshot: %w", err)
		}
		jobID := evt.EventID
		if jobID == "" {
			jobID = entry.ID.String()
		}
		return Enqueue(ctx, d.queue, Job{ID: jobID, Kind: Kind(evt.Kind), Snapshot: snap})
	default:
		return fmt.Errorf("notify: unhandled outbox type %s", entry.Type)
	}
}
