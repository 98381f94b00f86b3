package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "radiestesia"

// BookingMetrics exposes counters for the appointment lifecycle and the
// availability cache.
type BookingMetrics struct {
	createdTotal      *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	cancellationTotal *prometheus.CounterVec
	rescheduleTotal   prometheus.Counter
	degradedTotal     *prometheus.CounterVec
	cacheTotal        *prometheus.CounterVec
	remindersTotal    *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		createdTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "created_total",
			Help:      "Appointments created by payment method",
		}, []string{"method"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Appointment status transitions",
		}, []string{"from", "to"}),
		cancellationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "cancellations_total",
			Help:      "Cancellations by refund outcome",
		}, []string{"refunded"}),
		rescheduleTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "reschedules_total",
			Help:      "Appointments moved to another slot",
		}),
		degradedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "degraded_steps_total",
			Help:      "Best-effort side effects that failed after a committed transition",
		}, []string{"step"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "dates_cache_total",
			Help:      "Available-dates cache lookups by result",
		}, []string{"result"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Reminders sent by kind and result",
		}, []string{"kind", "result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.createdTotal, m.transitionsTotal, m.cancellationTotal, m.rescheduleTotal,
		m.degradedTotal, m.cacheTotal, m.remindersTotal)
	return m
}

func (m *BookingMetrics) ObserveCreated(method string) {
	if m == nil {
		return
	}
	m.createdTotal.WithLabelValues(method).Inc()
}

func (m *BookingMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *BookingMetrics) ObserveCancellation(refunded bool) {
	if m == nil {
		return
	}
	m.cancellationTotal.WithLabelValues(strconv.FormatBool(refunded)).Inc()
}

func (m *BookingMetrics) ObserveReschedule() {
	if m == nil {
		return
	}
	m.rescheduleTotal.Inc()
}

func (m *BookingMetrics) ObserveDegraded(step string) {
	if m == nil {
		return
	}
	m.degradedTotal.WithLabelValues(step).Inc()
}

func (m *BookingMetrics) ObserveAvailabilityCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveReminder(kind string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "error"
	}
	m.remindersTotal.WithLabelValues(kind, result).Inc()
}

// PaymentMetrics exposes counters for gateway traffic and refunds.
type PaymentMetrics struct {
	webhookTotal  *prometheus.CounterVec
	gatewayTotal  *prometheus.CounterVec
	refundedCents prometheus.Counter
	refundsTotal  prometheus.Counter
	overdueTotal  prometheus.Counter
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	m := &PaymentMetrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Applied MercadoPago notifications by charge status and leg",
		}, []string{"status", "leg"}),
		gatewayTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "gateway_calls_total",
			Help:      "Payment gateway calls by operation and result",
		}, []string{"op", "result"}),
		refundedCents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "refunded_cents_total",
			Help:      "Amount refunded in BRL cents",
		}),
		refundsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "refunds_total",
			Help:      "Refunds issued",
		}),
		overdueTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "second_payment_overdue_total",
			Help:      "PIX remainders found unpaid past their deadline",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.gatewayTotal, m.refundedCents, m.refundsTotal, m.overdueTotal)
	return m
}

func (m *PaymentMetrics) ObserveWebhookEvent(status, leg string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(status, leg).Inc()
}

func (m *PaymentMetrics) ObserveGatewayCall(op, result string) {
	if m == nil {
		return
	}
	m.gatewayTotal.WithLabelValues(op, result).Inc()
}

func (m *PaymentMetrics) ObserveRefund(amount int64) {
	if m == nil {
		return
	}
	m.refundsTotal.Inc()
	if amount > 0 {
		m.refundedCents.Add(float64(amount))
	}
}

func (m *PaymentMetrics) ObserveOverdueSecondPayment() {
	if m == nil {
		return
	}
	m.overdueTotal.Inc()
}
