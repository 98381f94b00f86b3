package notify

import (
	"context"
	"time"
)

// Kind identifies an email template.
type Kind string

const (
	KindConfirmation    Kind = "confirmation"
	KindPaymentReminder Kind = "payment_reminder"
	KindSessionReminder Kind = "session_reminder"
	KindCancellation    Kind = "cancellation"
	KindFeedback        Kind = "feedback"
)

// Valid reports whether k has a template.
func (k Kind) Valid() bool {
	_, ok := catalog[k]
	return ok
}

// Snapshot is the appointment state an email is rendered from. It is
// captured when the notification is requested so queued emails do not
// depend on later reads.
type Snapshot struct {
	AppointmentID    string     `json:"appointment_id"`
	ClientName       string     `json:"client_name"`
	ClientEmail      string     `json:"client_email"`
	ServiceTitle     string     `json:"service_title"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          time.Time  `json:"end_time"`
	PaymentMethod    string     `json:"payment_method"`
	TotalAmount      int64      `json:"total_amount"`
	PaidAmount       int64      `json:"paid_amount"`
	RemainingAmount  int64      `json:"remaining_amount"`
	SecondPaymentDue *time.Time `json:"second_payment_due,omitempty"`
	MeetLink         string     `json:"meet_link,omitempty"`
	RefundAmount     int64      `json:"refund_amount"`
	RefundReason     string     `json:"refund_reason,omitempty"`
}

// Notifier sends appointment emails. Callers treat failures as best-effort.
type Notifier interface {
	SendConfirmation(ctx context.Context, snap Snapshot) error
	SendReminder(ctx context.Context, snap Snapshot) error
	SendCancellation(ctx context.Context, snap Snapshot) error
	SendPaymentReminder(ctx context.Context, snap Snapshot) error
	SendFeedbackRequest(ctx context.Context, snap Snapshot) error
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) SendConfirmation(context.Context, Snapshot) error    { return nil }
func (NopNotifier) SendReminder(context.Context, Snapshot) error        { return nil }
func (NopNotifier) SendCancellation(context.Context, Snapshot) error    { return nil }
func (NopNotifier) SendPaymentReminder(context.Context, Snapshot) error { return nil }
func (NopNotifier) SendFeedbackRequest(context.Context, Snapshot) error { return nil }
