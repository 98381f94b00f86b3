package payments

import "time"

const (
	// RefundNotice is how far ahead of the session a cancellation must happen
	// to be refunded.
	RefundNotice = 12 * time.Hour
	// SecondPaymentLead is how long before the session the PIX remainder is due.
	SecondPaymentLead = time.Hour

	ReasonRefundEligible = "Cancelamento com mais de 12h de antecedência"
	ReasonNoRefund       = "Cancelamento com menos de 12h - sem reembolso"
)

// CanCancelWithRefund reports whether now is strictly before start minus the
// refund notice. Exactly at the boundary there is no refund.
func CanCancelWithRefund(now, start time.Time) bool {
	return now.Before(start.Add(-RefundNotice))
}

// RefundAmount is the full paid amount when eligible and zero otherwise.
func RefundAmount(paid int64, now, start time.Time) int64 {
	if paid <= 0 || !CanCancelWithRefund(now, start) {
		return 0
	}
	return paid
}

// SecondPaymentDeadline returns the instant the PIX remainder is due.
func SecondPaymentDeadline(start time.Time) time.Time {
	return start.Add(-SecondPaymentLead)
}

// IsSecondPaymentOverdue reports whether a PIX remainder is unpaid past its
// deadline. It never implies a state change on its own.
func IsSecondPaymentOverdue(p *Payment, now time.Time) bool {
	if p == nil || p.Method != MethodPix || p.SecondPaymentDue == nil {
		return false
	}
	if p.SecondPaymentStatus == LegApproved {
		return false
	}
	switch p.Status {
	case StatusRefunded, StatusForfeited, StatusPaid:
		return false
	}
	return p.SecondPaymentDue.Before(now)
}

// Settlement is the financial outcome of a cancellation.
type Settlement struct {
	Eligible bool
	Refund   int64
	Reason   string
	Status   Status
}

// Settle decides the refund for cancelling at now a session starting at start.
func Settle(p *Payment, now, start time.Time) Settlement {
	s := Settlement{Eligible: CanCancelWithRefund(now, start)}
	s.Refund = RefundAmount(p.PaidAmount, now, start)
	if s.Eligible {
		s.Reason = ReasonRefundEligible
	} else {
		s.Reason = ReasonNoRefund
	}
	if s.Refund > 0 {
		s.Status = StatusRefunded
	} else {
		s.Status = StatusForfeited
	}
	return s
}

// ApplySettlement records s on p.
func (p *Payment) ApplySettlement(s Settlement, now time.Time) {
	p.Status = s.Status
	p.RefundedAmount = s.Refund
	p.RefundReason = s.Reason
	if s.Refund > 0 {
		t := now
		p.RefundedAt = &t
	}
	p.UpdatedAt = now
}
