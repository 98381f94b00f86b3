package payments

import (
	"testing"
	"time"
)

func TestCanCancelWithRefund(t *testing.T) {
	start := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "13h before", now: start.Add(-13 * time.Hour), want: true},
		{name: "11h before", now: start.Add(-11 * time.Hour), want: false},
		{name: "exactly 12h before", now: start.Add(-12 * time.Hour), want: false},
		{name: "one nanosecond before cutoff", now: start.Add(-12*time.Hour - time.Nanosecond), want: true},
		{name: "after start", now: start.Add(time.Hour), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanCancelWithRefund(tt.now, start); got != tt.want {
				t.Fatalf("CanCancelWithRefund = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSettle(t *testing.T) {
	start := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	p := &Payment{Method: MethodPix, TotalAmount: PixTotal, PaidAmount: 10000, RemainingAmount: 35000}

	early := Settle(p, start.Add(-20*time.Hour), start)
	if early.Refund != 10000 || early.Status != StatusRefunded || early.Reason != ReasonRefundEligible {
		t.Fatalf("unexpected early settlement: %+v", early)
	}

	late := Settle(p, start.Add(-2*time.Hour), start)
	if late.Refund != 0 || late.Status != StatusForfeited || late.Reason != ReasonNoRefund {
		t.Fatalf("unexpected late settlement: %+v", late)
	}

	unpaid := Settle(&Payment{Method: MethodCard, TotalAmount: CardTotal, RemainingAmount: CardTotal}, start.Add(-48*time.Hour), start)
	if unpaid.Refund != 0 || unpaid.Status != StatusForfeited || !unpaid.Eligible {
		t.Fatalf("unpaid cancellation should forfeit nothing: %+v", unpaid)
	}

	now := start.Add(-20 * time.Hour)
	p.ApplySettlement(early, now)
	if p.RefundedAmount != 10000 || p.RefundedAt == nil || !p.Balanced() {
		t.Fatalf("unexpected payment after settlement: %+v", p)
	}
}

func TestIsSecondPaymentOverdue(t *testing.T) {
	start := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	due := SecondPaymentDeadline(start)
	p := &Payment{Method: MethodPix, Status: StatusPartialPaid, SecondPaymentDue: &due}

	if IsSecondPaymentOverdue(p, due.Add(-time.Minute)) {
		t.Fatalf("not overdue before deadline")
	}
	if !IsSecondPaymentOverdue(p, due.Add(time.Minute)) {
		t.Fatalf("expected overdue after deadline")
	}
	p.SecondPaymentStatus = LegApproved
	if IsSecondPaymentOverdue(p, due.Add(time.Minute)) {
		t.Fatalf("approved remainder is never overdue")
	}
	if IsSecondPaymentOverdue(&Payment{Method: MethodCard}, due.Add(time.Hour)) {
		t.Fatalf("card payments have no second deadline")
	}
}
