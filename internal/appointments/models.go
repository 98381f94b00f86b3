package appointments

import (
	"time"

	"github.com/google/uuid"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/apperr"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/payments"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
	StatusNoShow    Status = "NO_SHOW"
)

// ParseStatus validates a status filter value.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return st, nil
	default:
		return "", apperr.Validation("invalid_status", "status inválido")
	}
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// MaxReschedules is how many times an appointment may be moved.
const MaxReschedules = 2

// DefaultOfferingID is the seeded single service.
const DefaultOfferingID = "default-service"

// Offering is a bookable service.
type Offering struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"durationMinutes"`
	Active          bool   `json:"active"`
}

// Appointment is one booked session together with its payment.
type Appointment struct {
	ID              uuid.UUID
	ClientID        string
	ClientName      string
	ClientEmail     string
	OfferingID      string
	Date            time.Time
	StartTime       time.Time
	EndTime         time.Time
	Status          Status
	PaymentMethod   payments.Method
	RescheduleCount int
	Notes           string
	AdminNotes      string
	MeetLink        string
	MeetEventID     string
	CancelledAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Payment *payments.Payment
}

// RemainingReschedules is how many more moves are allowed.
func (a *Appointment) RemainingReschedules() int {
	if n := MaxReschedules - a.RescheduleCount; n > 0 {
		return n
	}
	return 0
}

// Clone returns a copy that shares no mutable state with a.
func (a *Appointment) Clone() *Appointment {
	out := *a
	if a.Payment != nil {
		p := *a.Payment
		out.Payment = &p
	}
	return &out
}

// Filter narrows List. Zero values match everything; From and To bound the
// start time as [From, To).
type Filter struct {
	ClientID      string
	Status        Status
	PaymentStatus payments.Status
	From          time.Time
	To            time.Time
}

func (f Filter) matches(a *Appointment) bool {
	if f.ClientID != "" && a.ClientID != f.ClientID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.PaymentStatus != "" && (a.Payment == nil || a.Payment.Status != f.PaymentStatus) {
		return false
	}
	if !f.From.IsZero() && a.StartTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.StartTime.Before(f.To) {
		return false
	}
	return true
}
