// Package reminders periodically emails upcoming-session and PIX remainder
// reminders and flags overdue remainders.
package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/appointments"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/notify"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/payments"
	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

// ProviderReminders namespaces sent reminders in the processed-event store.
const ProviderReminders = "reminders"

const (
	defaultInterval = 5 * time.Minute
	defaultLead     = 24 * time.Hour
)

type appointmentLister interface {
	List(ctx context.Context, f appointments.Filter) ([]*appointments.Appointment, error)
}

type sentTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

type reminderObserver interface {
	ObserveReminder(kind string, err error)
}

type overdueObserver interface {
	ObserveOverdueSecondPayment()
}

// Result counts what one sweep did.
type Result struct {
	SessionReminders int
	PaymentReminders int
	Overdue          int
}

// Sweeper finds appointments that need a reminder and sends each one once.
type Sweeper struct {
	store        appointmentLister
	notifier     notify.Notifier
	sent         sentTracker
	logger       *logging.Logger
	serviceTitle string

	interval time.Duration
	lead     time.Duration
	now      func() time.Time

	reminderMetrics reminderObserver
	overdueMetrics  overdueObserver
}

func NewSweeper(store appointmentLister, notifier notify.Notifier, sent sentTracker, logger *logging.Logger) *Sweeper {
	if store == nil || notifier == nil || sent == nil {
		panic("reminders: store, notifier and sent tracker are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		store:        store,
		notifier:     notifier,
		sent:         sent,
		logger:       logger,
		serviceTitle: "Sessão de Radiestesia Terapêutica",
		interval:     defaultInterval,
		lead:         defaultLead,
		now:          time.Now,
	}
}

// WithInterval sets how often Start sweeps.
func (s *Sweeper) WithInterval(d time.Duration) *Sweeper {
	if d > 0 {
		s.interval = d
	}
	return s
}

// WithLead sets how far ahead of an event reminders go out.
func (s *Sweeper) WithLead(d time.Duration) *Sweeper {
	if d > 0 {
		s.lead = d
	}
	return s
}

func (s *Sweeper) WithServiceTitle(title string) *Sweeper {
	if title != "" {
		s.serviceTitle = title
	}
	return s
}

func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Sweeper) WithMetrics(reminders reminderObserver, overdue overdueObserver) *Sweeper {
	s.reminderMetrics = reminders
	s.overdueMetrics = overdue
	return s
}

// Start sweeps immediately and then on every tick until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("starting reminder sweeper", "interval", s.interval.String(), "lead", s.lead.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder sweeper shutting down")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Sweeper) runLogged(ctx context.Context) {
	res, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("reminder sweep failed", "error", err)
		return
	}
	if res.SessionReminders+res.PaymentReminders+res.Overdue > 0 {
		s.logger.Info("reminder sweep finished", "session_reminders", res.SessionReminders,
			"payment_reminders", res.PaymentReminders, "overdue", res.Overdue)
	}
}

// Sweep runs one pass. A failed send is logged and retried next pass.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	var res Result
	now := s.now()

	upcoming, err := s.store.List(ctx, appointments.Filter{
		Status: appointments.StatusConfirmed,
		From:   now,
		To:     now.Add(s.lead),
	})
	if err != nil {
		return res, fmt.Errorf("reminders: list upcoming: %w", err)
	}
	for _, a := range upcoming {
		key := fmt.Sprintf("session:%s:%d", a.ID, a.StartTime.Unix())
		if s.sendOnce(ctx, key, notify.KindSessionReminder, a, s.notifier.SendReminder) {
			res.SessionReminders++
		}
	}

	// Deadlines sit SecondPaymentLead before the start, so these bounds cover
	// every deadline from lead ago up to lead ahead.
	partial, err := s.store.List(ctx, appointments.Filter{
		PaymentStatus: payments.StatusPartialPaid,
		From:          now.Add(-s.lead),
		To:            now.Add(s.lead + payments.SecondPaymentLead),
	})
	if err != nil {
		return res, fmt.Errorf("reminders: list partial payments: %w", err)
	}
	for _, a := range partial {
		p := a.Payment
		if a.Status.Terminal() || p == nil || p.SecondPaymentDue == nil {
			continue
		}
		due := *p.SecondPaymentDue
		switch {
		case payments.IsSecondPaymentOverdue(p, now):
			if s.flagOverdue(ctx, a) {
				res.Overdue++
			}
		case !due.After(now.Add(s.lead)):
			key := fmt.Sprintf("payment:%s:%d", a.ID, due.Unix())
			if s.sendOnce(ctx, key, notify.KindPaymentReminder, a, s.notifier.SendPaymentReminder) {
				res.PaymentReminders++
			}
		}
	}
	return res, nil
}

func (s *Sweeper) sendOnce(ctx context.Context, key string, kind notify.Kind, a *appointments.Appointment,
	send func(context.Context, notify.Snapshot) error) bool {
	done, err := s.sent.AlreadyProcessed(ctx, ProviderReminders, key)
	if err != nil {
		s.logger.Warn("reminder dedupe lookup failed", "key", key, "error", err)
		return false
	}
	if done {
		return false
	}

	err = send(ctx, appointments.Snapshot(a, s.serviceTitle))
	if s.reminderMetrics != nil {
		s.reminderMetrics.ObserveReminder(string(kind), err)
	}
	if err != nil {
		s.logger.Error("reminder send failed", "appointment_id", a.ID, "kind", kind, "error", err)
		return false
	}
	if _, err := s.sent.MarkProcessed(ctx, ProviderReminders, key); err != nil {
		s.logger.Warn("reminder mark sent failed", "key", key, "error", err)
	}
	s.logger.Info("reminder sent", "appointment_id", a.ID, "kind", kind)
	return true
}

// flagOverdue logs an unpaid PIX remainder once. No state changes.
func (s *Sweeper) flagOverdue(ctx context.Context, a *appointments.Appointment) bool {
	key := "overdue:" + a.ID.String()
	first, err := s.sent.MarkProcessed(ctx, ProviderReminders, key)
	if err != nil {
		s.logger.Warn("overdue dedupe failed", "appointment_id", a.ID, "error", err)
		return false
	}
	if !first {
		return false
	}
	s.logger.Warn("pix second payment overdue", "appointment_id", a.ID,
		"due", a.Payment.SecondPaymentDue.Format(time.RFC3339), "remaining", a.Payment.RemainingAmount)
	if s.overdueMetrics != nil {
		s.overdueMetrics.ObserveOverdueSecondPayment()
	}
	return true
}
