package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/apperr"
)

// Method is how the client pays for a session.
type Method string

const (
	MethodPix  Method = "PIX"
	MethodCard Method = "CARD"
)

// ParseMethod normalizes a client-supplied payment method.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToUpper(strings.TrimSpace(s))) {
	case MethodPix:
		return MethodPix, nil
	case MethodCard:
		return MethodCard, nil
	default:
		return "", apperr.Validation("invalid_payment_method", "forma de pagamento deve ser PIX ou CARD")
	}
}

// Status is the aggregate state of a payment.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusPartialPaid Status = "PARTIAL_PAID"
	StatusPaid        Status = "PAID"
	StatusFailed      Status = "FAILED"
	StatusRefunded    Status = "REFUNDED"
	StatusForfeited   Status = "FORFEITED"
)

// LegStatus mirrors the gateway status of a single charge.
type LegStatus string

const (
	LegNone      LegStatus = ""
	LegPending   LegStatus = "pending"
	LegApproved  LegStatus = "approved"
	LegRejected  LegStatus = "rejected"
	LegCancelled LegStatus = "cancelled"
)

// ParseLegStatus maps a gateway status onto the four consumed values.
// Unknown statuses such as in_process or authorized count as pending.
func ParseLegStatus(s string) LegStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved":
		return LegApproved
	case "rejected":
		return LegRejected
	case "cancelled", "canceled", "refunded", "charged_back":
		return LegCancelled
	default:
		return LegPending
	}
}

// Leg identifies which charge of a payment a gateway event refers to.
type Leg string

const (
	LegFirst  Leg = "first"
	LegSecond Leg = "second"
	LegCard   Leg = "card"
)

// ParseLeg validates a leg name.
func ParseLeg(s string) (Leg, error) {
	switch Leg(strings.ToLower(strings.TrimSpace(s))) {
	case LegFirst:
		return LegFirst, nil
	case LegSecond:
		return LegSecond, nil
	case LegCard:
		return LegCard, nil
	default:
		return "", apperr.Validation("invalid_leg", fmt.Sprintf("etapa de pagamento desconhecida: %q", s))
	}
}

// Payment is the 1:1 financial record of an appointment. Amounts are BRL cents.
// A card charge is tracked on the first leg with no second leg.
type Payment struct {
	ID              uuid.UUID `json:"id"`
	AppointmentID   uuid.UUID `json:"appointmentId"`
	Method          Method    `json:"paymentMethod"`
	Status          Status    `json:"status"`
	TotalAmount     int64     `json:"totalAmount"`
	PaidAmount      int64     `json:"paidAmount"`
	RemainingAmount int64     `json:"remainingAmount"`
	Installments    int       `json:"installments"`

	FirstPaymentAmount  int64      `json:"firstPaymentAmount"`
	FirstPaymentStatus  LegStatus  `json:"firstPaymentStatus,omitempty"`
	FirstPaymentID      string     `json:"firstPaymentId,omitempty"`
	SecondPaymentAmount int64      `json:"secondPaymentAmount,omitempty"`
	SecondPaymentStatus LegStatus  `json:"secondPaymentStatus,omitempty"`
	SecondPaymentID     string     `json:"secondPaymentId,omitempty"`
	SecondPaymentDue    *time.Time `json:"secondPaymentDue,omitempty"`
	CardPaymentID       string     `json:"cardPaymentId,omitempty"`
	CheckoutID          string     `json:"checkoutId,omitempty"`

	RefundedAmount int64      `json:"refundedAmount"`
	RefundedAt     *time.Time `json:"refundedAt,omitempty"`
	RefundReason   string     `json:"refundReason,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Balanced reports whether paid plus remaining equals the total.
func (p *Payment) Balanced() bool {
	return p.PaidAmount+p.RemainingAmount == p.TotalAmount
}

// LegStatusOf returns the recorded status of leg.
func (p *Payment) LegStatusOf(leg Leg) LegStatus {
	if leg == LegSecond {
		return p.SecondPaymentStatus
	}
	return p.FirstPaymentStatus
}

// SettledCharges lists the provider ids of every approved leg with its amount.
func (p *Payment) SettledCharges() []Charge {
	var out []Charge
	switch p.Method {
	case MethodCard:
		if p.FirstPaymentStatus == LegApproved && p.CardPaymentID != "" {
			out = append(out, Charge{Leg: LegCard, ExternalID: p.CardPaymentID, Amount: p.FirstPaymentAmount})
		}
	case MethodPix:
		if p.FirstPaymentStatus == LegApproved && p.FirstPaymentID != "" {
			out = append(out, Charge{Leg: LegFirst, ExternalID: p.FirstPaymentID, Amount: p.FirstPaymentAmount})
		}
		if p.SecondPaymentStatus == LegApproved && p.SecondPaymentID != "" {
			out = append(out, Charge{Leg: LegSecond, ExternalID: p.SecondPaymentID, Amount: p.SecondPaymentAmount})
		}
	}
	return out
}

// Charge is one settled gateway charge.
type Charge struct {
	Leg        Leg
	ExternalID string
	Amount     int64
}
