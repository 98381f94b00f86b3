package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// counterValue returns the value of the counter name whose labels include want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, want) {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, want)
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if v, ok := want[lp.GetName()]; ok {
			if v != lp.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveCreated("PIX")
	m.ObserveCreated("PIX")
	m.ObserveTransition("PENDING", "CONFIRMED")
	m.ObserveCancellation(true)
	m.ObserveReschedule()
	m.ObserveDegraded("meet_link")
	m.ObserveAvailabilityCache(true)
	m.ObserveAvailabilityCache(false)
	m.ObserveReminder("session_reminder", nil)
	m.ObserveReminder("session_reminder", errors.New("smtp"))

	if got := counterValue(t, reg, "radiestesia_appointments_created_total", map[string]string{"method": "PIX"}); got != 2 {
		t.Fatalf("expected 2 PIX bookings, got %v", got)
	}
	if got := counterValue(t, reg, "radiestesia_appointments_transitions_total", map[string]string{"from": "PENDING", "to": "CONFIRMED"}); got != 1 {
		t.Fatalf("expected 1 transition, got %v", got)
	}
	if got := counterValue(t, reg, "radiestesia_appointments_cancellations_total", map[string]string{"refunded": "true"}); got != 1 {
		t.Fatalf("expected 1 refunded cancellation, got %v", got)
	}
	if got := counterValue(t, reg, "radiestesia_appointments_reschedules_total", nil); got != 1 {
		t.Fatalf("expected 1 reschedule, got %v", got)
	}
	if got := counterValue(t, reg, "radiestesia_availability_dates_cache_total", map[string]string{"result": "miss"}); got != 1 {
		t.Fatalf("expected 1 cache miss, got %v", got)
	}
	if got := counterValue(t, reg, "radiestesia_reminders_sent_total", map[string]string{"kind": "session_reminder", "result": "error"}); got != 1 {
		t.Fatalf("expected 1 failed reminder, got %v", got)
	}
}

func TestPaymentMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)
	m.ObserveWebhookEvent("approved", "first")
	m.ObserveGatewayCall("create_pix", "ok")
	m.ObserveRefund(10000)
	m.ObserveRefund(35000)
	m.ObserveOverdueSecondPayment()

	if got := counterValue(t, reg, "radiestesia_payments_refunded_cents_total", nil); got != 45000 {
		t.Fatalf("expected 45000 refunded cents, got %v", got)
	}
	if got := counterValue(t, reg, "radiestesia_payments_refunds_total", nil); got != 2 {
		t.Fatalf("expected 2 refunds, got %v", got)
	}
	if got := counterValue(t, reg, "radiestesia_payments_webhook_events_total", map[string]string{"status": "approved", "leg": "first"}); got != 1 {
		t.Fatalf("expected 1 webhook event, got %v", got)
	}
	if got := counterValue(t, reg, "radiestesia_payments_second_payment_overdue_total", nil); got != 1 {
		t.Fatalf("expected 1 overdue payment, got %v", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var b *BookingMetrics
	b.ObserveCreated("CARD")
	b.ObserveTransition("PENDING", "CANCELLED")
	b.ObserveCancellation(false)
	b.ObserveReschedule()
	b.ObserveDegraded("refund")
	b.ObserveAvailabilityCache(true)
	b.ObserveReminder("feedback", nil)

	var p *PaymentMetrics
	p.ObserveWebhookEvent("rejected", "card")
	p.ObserveGatewayCall("refund", "error")
	p.ObserveRefund(100)
	p.ObserveOverdueSecondPayment()
}
