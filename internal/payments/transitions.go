package payments

import (
	"time"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/apperr"
)

var (
	ErrPaymentClosed = apperr.Conflict("payment_closed", "pagamento já encerrado")
	errLegMismatch   = apperr.Conflict("invalid_transition", "etapa não corresponde à forma de pagamento")
)

// Closed reports whether the payment was settled by a cancellation.
func (p *Payment) Closed() bool {
	return p.Status == StatusRefunded || p.Status == StatusForfeited
}

// Accepts reports whether leg belongs to the payment's method.
func (p *Payment) Accepts(leg Leg) bool {
	switch p.Method {
	case MethodCard:
		return leg == LegCard
	case MethodPix:
		return leg == LegFirst || leg == LegSecond
	}
	return false
}

// ApplyApproval marks leg approved and recomputes the amounts. It reports
// false when the leg was already approved.
func (p *Payment) ApplyApproval(leg Leg, externalID string, now time.Time) (bool, error) {
	if p.Closed() {
		return false, ErrPaymentClosed
	}
	if !p.Accepts(leg) {
		return false, errLegMismatch
	}
	if p.LegStatusOf(leg) == LegApproved {
		return false, nil
	}
	switch leg {
	case LegCard:
		p.FirstPaymentStatus = LegApproved
		if externalID != "" {
			p.CardPaymentID = externalID
		}
	case LegFirst:
		p.FirstPaymentStatus = LegApproved
		if externalID != "" {
			p.FirstPaymentID = externalID
		}
	case LegSecond:
		p.SecondPaymentStatus = LegApproved
		if externalID != "" {
			p.SecondPaymentID = externalID
		}
	}
	p.recompute()
	p.UpdatedAt = now
	return true, nil
}

// ApplyFailure records a rejected or cancelled leg. The payment becomes FAILED
// when the gating leg fails before anything was paid.
func (p *Payment) ApplyFailure(leg Leg, status LegStatus, now time.Time) error {
	if p.Closed() {
		return ErrPaymentClosed
	}
	if !p.Accepts(leg) {
		return errLegMismatch
	}
	if p.LegStatusOf(leg) == LegApproved {
		return nil
	}
	if leg == LegSecond {
		p.SecondPaymentStatus = status
	} else {
		p.FirstPaymentStatus = status
		if p.PaidAmount == 0 {
			p.Status = StatusFailed
		}
	}
	p.UpdatedAt = now
	return nil
}

// MarkLegPending stores a freshly created charge on leg.
func (p *Payment) MarkLegPending(leg Leg, externalID string, now time.Time) {
	switch leg {
	case LegFirst:
		p.FirstPaymentID = externalID
		p.FirstPaymentStatus = LegPending
	case LegSecond:
		p.SecondPaymentID = externalID
		p.SecondPaymentStatus = LegPending
	case LegCard:
		p.FirstPaymentStatus = LegPending
	}
	if p.Status == StatusFailed {
		p.Status = StatusPending
	}
	p.UpdatedAt = now
}

func (p *Payment) recompute() {
	var paid int64
	if p.FirstPaymentStatus == LegApproved {
		paid += p.FirstPaymentAmount
	}
	if p.SecondPaymentStatus == LegApproved {
		paid += p.SecondPaymentAmount
	}
	if paid > p.TotalAmount {
		paid = p.TotalAmount
	}
	p.PaidAmount = paid
	p.RemainingAmount = p.TotalAmount - paid
	switch {
	case p.RemainingAmount == 0:
		p.Status = StatusPaid
	case paid > 0:
		p.Status = StatusPartialPaid
	}
}
