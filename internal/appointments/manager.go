package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/actor"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/apperr"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/availability"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/meet"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/notify"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/payments"
	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

var tracer = otel.Tracer("radiestesia.internal.appointments")

var (
	errAlreadyCancelled  = apperr.Conflict("already_cancelled", "agendamento já cancelado")
	errAlreadyCompleted  = apperr.Conflict("already_completed", "agendamento já concluído")
	errInvalidTransition = apperr.Conflict("invalid_transition", "transição de status não permitida")
	errRescheduleLimit   = apperr.Conflict("reschedule_limit", "limite de 2 reagendamentos atingido")
	errPastSlot          = apperr.Conflict("past_slot", "horário já passou")
	errNotOwner          = apperr.Forbidden("not_owner", "agendamento pertence a outro cliente")
	errAdminOnly         = apperr.Forbidden("admin_only", "operação restrita à administração")
	errCancelledPayment  = apperr.Conflict("appointment_cancelled", "pagamento recebido para agendamento cancelado")
	errTooManyCharges    = apperr.RateLimited("too_many_charge_attempts", "muitas tentativas de pagamento, tente novamente mais tarde")
)

// Degradation steps.
const (
	StepMeetLink     = "meet_link"
	StepMeetCancel   = "meet_cancel"
	StepRefund       = "refund"
	StepNotification = "notification"
	// StepPaymentReversed counts refunds or chargebacks the gateway reports
	// for an approved leg.
	StepPaymentReversed = "payment_reversed"
)

// Degradation is a best-effort step that failed after the transition committed.
type Degradation struct {
	Step string
	Err  error
}

// Outcome is the result of a lifecycle operation. Degraded lists the
// side effects that failed without undoing the transition.
type Outcome struct {
	Appointment *Appointment
	Degraded    []Degradation
}

// IsDegraded reports whether any best-effort step failed.
func (o *Outcome) IsDegraded() bool { return o != nil && len(o.Degraded) > 0 }

func (o *Outcome) degrade(step string, err error) {
	o.Degraded = append(o.Degraded, Degradation{Step: step, Err: err})
}

// Observer records lifecycle metrics.
type Observer interface {
	ObserveCreated(method string)
	ObserveTransition(from, to string)
	ObserveCancellation(refunded bool)
	ObserveReschedule()
	ObserveDegraded(step string)
}

type refundObserver interface {
	ObserveRefund(amount int64)
}

type chargeVelocity interface {
	Allow(ctx context.Context, clientID string, appointmentID uuid.UUID) (bool, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, dates ...time.Time)
}

// Config carries presentation settings used in links and titles.
type Config struct {
	PublicBaseURL    string
	ServiceTitle     string
	PractitionerName string
}

// Manager owns every mutation of appointments and their payments.
type Manager struct {
	store    Store
	loc      *time.Location
	gateway  payments.Gateway
	linker   meet.Linker
	notifier notify.Notifier
	cache    cacheInvalidator
	metrics  Observer
	refunds  refundObserver
	velocity chargeVelocity
	cfg      Config
	logger   *logging.Logger
	now      func() time.Time
}

func NewManager(store Store, gateway payments.Gateway, loc *time.Location, cfg Config, logger *logging.Logger) *Manager {
	if store == nil {
		panic("appointments: store required")
	}
	if gateway == nil {
		panic("appointments: payment gateway required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ServiceTitle == "" {
		cfg.ServiceTitle = "Sessão de Radiestesia Terapêutica"
	}
	return &Manager{
		store:    store,
		loc:      loc,
		gateway:  gateway,
		linker:   meet.NoopLinker{},
		notifier: notify.NopNotifier{},
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (m *Manager) WithLinker(l meet.Linker) *Manager {
	if l != nil {
		m.linker = l
	}
	return m
}

func (m *Manager) WithNotifier(n notify.Notifier) *Manager {
	if n != nil {
		m.notifier = n
	}
	return m
}

// WithCache invalidates cached available dates after occupancy changes.
func (m *Manager) WithCache(c cacheInvalidator) *Manager {
	m.cache = c
	return m
}

func (m *Manager) WithMetrics(o Observer) *Manager {
	m.metrics = o
	return m
}

func (m *Manager) WithRefundMetrics(o refundObserver) *Manager {
	m.refunds = o
	return m
}

// WithVelocity caps how often charges can be opened.
func (m *Manager) WithVelocity(v chargeVelocity) *Manager {
	m.velocity = v
	return m
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

// CreateInput is a booking request.
type CreateInput struct {
	OfferingID string
	Date       time.Time
	StartTime  availability.TimeOfDay
	Method     payments.Method
	Notes      string
}

// Create books a slot for the actor. The slot is re-checked inside the same
// transaction that inserts the appointment and its payment.
func (m *Manager) Create(ctx context.Context, who actor.Actor, in CreateInput) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.create")
	defer span.End()
	span.SetAttributes(attribute.String("radiestesia.payment_method", string(in.Method)))

	if who.ID == "" {
		return nil, errNotOwner
	}
	if _, err := payments.CalculatePaymentAmounts(in.Method); err != nil {
		return nil, err
	}
	if in.OfferingID == "" {
		in.OfferingID = DefaultOfferingID
	}
	now := m.now()
	start := availability.At(in.Date, in.StartTime, m.loc)
	if !start.After(now) {
		return nil, errPastSlot
	}

	id := uuid.New()
	payment, err := payments.NewPayment(id, in.Method, start, now.UTC())
	if err != nil {
		return nil, err
	}
	appt := &Appointment{
		ID:            id,
		ClientID:      who.ID,
		ClientName:    who.Name,
		ClientEmail:   who.Email,
		OfferingID:    in.OfferingID,
		Date:          availability.DateOf(start, m.loc),
		StartTime:     start,
		EndTime:       start.Add(availability.SessionMinutes * time.Minute),
		Status:        StatusPending,
		PaymentMethod: in.Method,
		Notes:         in.Notes,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
		Payment:       &payment,
	}

	err = m.store.InTx(ctx, func(tx Tx) error {
		offering, err := tx.GetOffering(ctx, in.OfferingID)
		if err != nil {
			return err
		}
		if !offering.Active {
			return ErrOfferingInactive
		}
		ok, err := availability.CheckSlot(ctx, tx, m.loc, appt.Date, in.StartTime)
		if err != nil {
			return fmt.Errorf("appointments: create: %w", err)
		}
		if !ok {
			return ErrSlotUnavailable
		}
		return tx.Insert(ctx, appt)
	})
	if err != nil {
		fail(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("radiestesia.appointment_id", id.String()))

	m.invalidate(ctx, appt.Date)
	if m.metrics != nil {
		m.metrics.ObserveCreated(string(in.Method))
	}
	m.logger.Info("appointment created", "appointment_id", id, "payment_method", in.Method,
		"start_time", start.Format(time.RFC3339), "client_id", who.ID)
	return appt, nil
}

// ConfirmOnPayment applies an approved gating payment. A PENDING appointment
// becomes CONFIRMED and gets a meet link and a confirmation email; repeated
// approvals change nothing.
func (m *Manager) ConfirmOnPayment(ctx context.Context, id uuid.UUID, evt payments.PaymentEvent) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "appointments.confirm_on_payment")
	defer span.End()
	span.SetAttributes(
		attribute.String("radiestesia.appointment_id", id.String()),
		attribute.String("radiestesia.leg", string(evt.Leg)),
	)

	var (
		appt      *Appointment
		confirmed bool
	)
	err := m.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if a.Status == StatusCancelled {
			m.logger.Error("payment approved for cancelled appointment, manual refund required",
				"appointment_id", id, "external_id", evt.ExternalID, "leg", evt.Leg)
			return errCancelledPayment
		}
		if a.Status == StatusCompleted || a.Status == StatusNoShow {
			return errInvalidTransition
		}
		if evt.Leg == payments.LegSecond {
			return errInvalidTransition
		}
		now := m.now().UTC()
		changed, err := a.Payment.ApplyApproval(evt.Leg, evt.ExternalID, now)
		if err != nil {
			return err
		}
		if a.Status == StatusPending {
			a.Status = StatusConfirmed
			confirmed = true
		}
		if !changed && !confirmed {
			appt = a
			return nil
		}
		a.UpdatedAt = now
		if err := tx.Update(ctx, a); err != nil {
			return err
		}
		appt = a
		return nil
	})
	if err != nil {
		fail(span, err)
		return nil, err
	}

	out := &Outcome{Appointment: appt}
	if !confirmed {
		return out, nil
	}
	m.observeTransition(StatusPending, StatusConfirmed)
	m.logger.Info("appointment confirmed", "appointment_id", id, "payment_status", appt.Payment.Status)

	m.tryMeetLink(ctx, appt, out)
	if err := m.notifier.SendConfirmation(ctx, m.snapshot(appt)); err != nil {
		m.logger.Warn("confirmation notification failed", "appointment_id", id, "error", err)
		m.recordDegraded(out, StepNotification, err)
	}
	return out, nil
}

// CompleteSecondPixPayment records the PIX remainder. The appointment status
// is unchanged.
func (m *Manager) CompleteSecondPixPayment(ctx context.Context, id uuid.UUID, evt payments.PaymentEvent) (*Appointment, error) {
	var appt *Appointment
	err := m.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if a.Status == StatusCancelled {
			m.logger.Error("second payment approved for cancelled appointment, manual refund required",
				"appointment_id", id, "external_id", evt.ExternalID)
			return errCancelledPayment
		}
		if a.PaymentMethod != payments.MethodPix {
			return errInvalidTransition
		}
		if a.Payment.FirstPaymentStatus != payments.LegApproved {
			m.logger.Warn("second payment approved before first", "appointment_id", id)
		}
		now := m.now().UTC()
		changed, err := a.Payment.ApplyApproval(payments.LegSecond, evt.ExternalID, now)
		if err != nil {
			return err
		}
		appt = a
		if !changed {
			return nil
		}
		a.UpdatedAt = now
		return tx.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("second pix payment recorded", "appointment_id", id, "payment_status", appt.Payment.Status)
	return appt, nil
}

// RecordPaymentFailure stores a rejected or cancelled charge. A refund or
// chargeback of an already approved leg leaves the payment untouched and is
// reported for manual review.
func (m *Manager) RecordPaymentFailure(ctx context.Context, id uuid.UUID, evt payments.PaymentEvent) (*Appointment, error) {
	var (
		appt     *Appointment
		reversed bool
	)
	err := m.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		reversed = a.Status != StatusCancelled && a.Payment.LegStatusOf(evt.Leg) == payments.LegApproved
		now := m.now().UTC()
		if err := a.Payment.ApplyFailure(evt.Leg, evt.Status, now); err != nil {
			return err
		}
		a.UpdatedAt = now
		appt = a
		return tx.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	if reversed {
		m.logger.Error("approved payment reversed by gateway, manual review needed",
			"appointment_id", id, "appointment_status", appt.Status, "leg", evt.Leg,
			"external_id", evt.ExternalID, "gateway_status", evt.RawStatus, "amount", evt.Amount)
		if m.metrics != nil {
			m.metrics.ObserveDegraded(StepPaymentReversed)
		}
		return appt, nil
	}
	m.logger.Warn("payment leg failed", "appointment_id", id, "leg", evt.Leg, "status", evt.Status,
		"payment_status", appt.Payment.Status)
	return appt, nil
}

// Cancel cancels the appointment and settles its payment under the 12-hour
// refund rule. Refund requests, calendar cleanup and the email are
// best-effort.
func (m *Manager) Cancel(ctx context.Context, who actor.Actor, id uuid.UUID) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("radiestesia.appointment_id", id.String()))

	var (
		appt       *Appointment
		previous   Status
		settlement payments.Settlement
		charges    []payments.Charge
	)
	err := m.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if !who.CanAccess(a.ClientID) {
			return errNotOwner
		}
		switch a.Status {
		case StatusCancelled:
			return errAlreadyCancelled
		case StatusCompleted:
			return errAlreadyCompleted
		case StatusNoShow:
			return errInvalidTransition
		}
		now := m.now().UTC()
		charges = a.Payment.SettledCharges()
		settlement = payments.Settle(a.Payment, now, a.StartTime)
		a.Payment.ApplySettlement(settlement, now)
		previous = a.Status
		a.Status = StatusCancelled
		a.CancelledAt = &now
		a.UpdatedAt = now
		appt = a
		return tx.Update(ctx, a)
	})
	if err != nil {
		fail(span, err)
		return nil, err
	}

	out := &Outcome{Appointment: appt}
	m.observeTransition(previous, StatusCancelled)
	if m.metrics != nil {
		m.metrics.ObserveCancellation(settlement.Refund > 0)
	}
	m.logger.Info("appointment cancelled", "appointment_id", id, "actor_role", who.Role,
		"refund", settlement.Refund, "reason", settlement.Reason)

	if settlement.Refund > 0 {
		for _, c := range charges {
			if _, err := m.gateway.Refund(ctx, c.ExternalID, c.Amount); err != nil {
				m.logger.Error("refund request failed", "appointment_id", id, "external_id", c.ExternalID,
					"amount", c.Amount, "error", err)
				m.recordDegraded(out, StepRefund, err)
				continue
			}
			if m.refunds != nil {
				m.refunds.ObserveRefund(c.Amount)
			}
		}
	}
	if appt.MeetEventID != "" {
		if err := m.linker.CancelMeeting(ctx, appt.MeetEventID); err != nil {
			m.logger.Warn("meet event removal failed", "appointment_id", id, "error", err)
			m.recordDegraded(out, StepMeetCancel, err)
		}
	}
	m.invalidate(ctx, appt.Date)

	snap := m.snapshot(appt)
	snap.RefundAmount = settlement.Refund
	snap.RefundReason = settlement.Reason
	if err := m.notifier.SendCancellation(ctx, snap); err != nil {
		m.logger.Warn("cancellation notification failed", "appointment_id", id, "error", err)
		m.recordDegraded(out, StepNotification, err)
	}
	return out, nil
}

// Reschedule moves the appointment to another free slot, at most twice. The
// current slot is not excluded from the availability check.
func (m *Manager) Reschedule(ctx context.Context, who actor.Actor, id uuid.UUID, date time.Time, start availability.TimeOfDay) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "appointments.reschedule")
	defer span.End()
	span.SetAttributes(attribute.String("radiestesia.appointment_id", id.String()))

	var (
		appt    *Appointment
		oldDate time.Time
	)
	err := m.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if !who.CanAccess(a.ClientID) {
			return errNotOwner
		}
		switch a.Status {
		case StatusCancelled:
			return errAlreadyCancelled
		case StatusCompleted:
			return errAlreadyCompleted
		case StatusNoShow:
			return errInvalidTransition
		}
		if a.RescheduleCount >= MaxReschedules {
			return errRescheduleLimit
		}
		now := m.now()
		newStart := availability.At(date, start, m.loc)
		if !newStart.After(now) {
			return errPastSlot
		}
		newDate := availability.DateOf(newStart, m.loc)
		ok, err := availability.CheckSlot(ctx, tx, m.loc, newDate, start)
		if err != nil {
			return fmt.Errorf("appointments: reschedule: %w", err)
		}
		if !ok {
			return ErrSlotUnavailable
		}

		oldDate = a.Date
		a.Date = newDate
		a.StartTime = newStart
		a.EndTime = newStart.Add(availability.SessionMinutes * time.Minute)
		a.RescheduleCount++
		a.UpdatedAt = now.UTC()
		if p := a.Payment; p.Method == payments.MethodPix && p.SecondPaymentStatus != payments.LegApproved {
			due := payments.SecondPaymentDeadline(newStart)
			p.SecondPaymentDue = &due
			p.UpdatedAt = a.UpdatedAt
		}
		appt = a
		return tx.Update(ctx, a)
	})
	if err != nil {
		fail(span, err)
		return nil, err
	}

	out := &Outcome{Appointment: appt}
	if m.metrics != nil {
		m.metrics.ObserveReschedule()
	}
	m.invalidate(ctx, oldDate, appt.Date)
	m.logger.Info("appointment rescheduled", "appointment_id", id, "start_time", appt.StartTime.Format(time.RFC3339),
		"reschedule_count", appt.RescheduleCount)

	if appt.Status == StatusConfirmed {
		if appt.MeetEventID != "" {
			if err := m.linker.CancelMeeting(ctx, appt.MeetEventID); err != nil {
				m.logger.Warn("old meet event removal failed", "appointment_id", id, "error", err)
				m.recordDegraded(out, StepMeetCancel, err)
			}
		}
		m.tryMeetLink(ctx, appt, out)
		if err := m.notifier.SendConfirmation(ctx, m.snapshot(appt)); err != nil {
			m.logger.Warn("reschedule notification failed", "appointment_id", id, "error", err)
			m.recordDegraded(out, StepNotification, err)
		}
	}
	return out, nil
}

// Complete marks a confirmed session as held and requests feedback. It is
// not gated on the session end time.
func (m *Manager) Complete(ctx context.Context, who actor.Actor, id uuid.UUID) (*Outcome, error) {
	appt, err := m.adminTransition(ctx, who, id, StatusCompleted)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Appointment: appt}
	if err := m.notifier.SendFeedbackRequest(ctx, m.snapshot(appt)); err != nil {
		m.logger.Warn("feedback request failed", "appointment_id", id, "error", err)
		m.recordDegraded(out, StepNotification, err)
	}
	return out, nil
}

// MarkNoShow records that the client missed a confirmed session. The slot
// stays occupied.
func (m *Manager) MarkNoShow(ctx context.Context, who actor.Actor, id uuid.UUID) (*Appointment, error) {
	return m.adminTransition(ctx, who, id, StatusNoShow)
}

func (m *Manager) adminTransition(ctx context.Context, who actor.Actor, id uuid.UUID, to Status) (*Appointment, error) {
	if !who.IsAdmin() {
		return nil, errAdminOnly
	}
	var appt *Appointment
	err := m.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		switch a.Status {
		case StatusCancelled:
			return errAlreadyCancelled
		case StatusCompleted:
			return errAlreadyCompleted
		case StatusConfirmed:
		default:
			return errInvalidTransition
		}
		a.Status = to
		a.UpdatedAt = m.now().UTC()
		appt = a
		return tx.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	m.observeTransition(StatusConfirmed, to)
	m.logger.Info("appointment status changed", "appointment_id", id, "status", to)
	return appt, nil
}

// AdminPatch updates practitioner-managed fields.
type AdminPatch struct {
	AdminNotes *string
	MeetLink   *string
}

// UpdateAdminDetails applies patch.
func (m *Manager) UpdateAdminDetails(ctx context.Context, who actor.Actor, id uuid.UUID, patch AdminPatch) (*Appointment, error) {
	if !who.IsAdmin() {
		return nil, errAdminOnly
	}
	var appt *Appointment
	err := m.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if patch.AdminNotes != nil {
			a.AdminNotes = *patch.AdminNotes
		}
		if patch.MeetLink != nil {
			a.MeetLink = *patch.MeetLink
		}
		a.UpdatedAt = m.now().UTC()
		appt = a
		return tx.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// RegenerateMeetLink replaces the meet link. Unlike confirmation, a
// collaborator failure is returned.
func (m *Manager) RegenerateMeetLink(ctx context.Context, who actor.Actor, id uuid.UUID) (*Appointment, error) {
	if !who.IsAdmin() {
		return nil, errAdminOnly
	}
	appt, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCancelled {
		return nil, errAlreadyCancelled
	}
	if appt.MeetEventID != "" {
		if err := m.linker.CancelMeeting(ctx, appt.MeetEventID); err != nil {
			m.logger.Warn("old meet event removal failed", "appointment_id", id, "error", err)
		}
	}
	if err := m.attachMeetLink(ctx, appt); err != nil {
		return nil, apperr.Upstream("meet_link", "não foi possível gerar o link da sessão", err)
	}
	return appt, nil
}

// Get returns the appointment when the actor may see it. Other clients'
// appointments read as not found.
func (m *Manager) Get(ctx context.Context, who actor.Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !who.CanAccess(appt.ClientID) {
		return nil, ErrNotFound
	}
	return appt, nil
}

// List returns the actor's appointments, or every appointment for admins.
func (m *Manager) List(ctx context.Context, who actor.Actor, f Filter) ([]*Appointment, error) {
	if !who.IsAdmin() {
		if who.ID == "" {
			return nil, errNotOwner
		}
		f.ClientID = who.ID
	}
	out, err := m.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	return out, nil
}

// tryMeetLink attaches a meet link, recording a failure on out. A linker
// without credentials is not a failure.
func (m *Manager) tryMeetLink(ctx context.Context, appt *Appointment, out *Outcome) {
	err := m.attachMeetLink(ctx, appt)
	switch {
	case err == nil:
	case errors.Is(err, meet.ErrNotConfigured):
		m.logger.Debug("meet linker not configured", "appointment_id", appt.ID)
	default:
		m.logger.Warn("meet link creation failed", "appointment_id", appt.ID, "error", err)
		m.recordDegraded(out, StepMeetLink, err)
	}
}

// attachMeetLink creates a meeting and stores its link on appt.
func (m *Manager) attachMeetLink(ctx context.Context, appt *Appointment) error {
	meeting, err := m.linker.CreateMeeting(ctx, meet.MeetingRequest{
		Title:         m.cfg.ServiceTitle,
		Description:   m.meetingDescription(),
		Start:         appt.StartTime,
		End:           appt.EndTime,
		AttendeeEmail: appt.ClientEmail,
		RequestID:     fmt.Sprintf("%s-%d", appt.ID, appt.RescheduleCount),
	})
	if err != nil {
		return err
	}
	return m.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.Get(ctx, appt.ID)
		if err != nil {
			return err
		}
		a.MeetLink = meeting.URL
		a.MeetEventID = meeting.EventID
		a.UpdatedAt = m.now().UTC()
		if err := tx.Update(ctx, a); err != nil {
			return err
		}
		appt.MeetLink, appt.MeetEventID, appt.UpdatedAt = a.MeetLink, a.MeetEventID, a.UpdatedAt
		return nil
	})
}

func (m *Manager) meetingDescription() string {
	if m.cfg.PractitionerName == "" {
		return m.cfg.ServiceTitle
	}
	return m.cfg.ServiceTitle + " com " + m.cfg.PractitionerName
}

func (m *Manager) snapshot(a *Appointment) notify.Snapshot {
	return Snapshot(a, m.cfg.ServiceTitle)
}

// Snapshot captures what notification templates need from a.
func Snapshot(a *Appointment, serviceTitle string) notify.Snapshot {
	snap := notify.Snapshot{
		AppointmentID: a.ID.String(),
		ClientName:    a.ClientName,
		ClientEmail:   a.ClientEmail,
		ServiceTitle:  serviceTitle,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		PaymentMethod: string(a.PaymentMethod),
		MeetLink:      a.MeetLink,
	}
	if p := a.Payment; p != nil {
		snap.TotalAmount = p.TotalAmount
		snap.PaidAmount = p.PaidAmount
		snap.RemainingAmount = p.RemainingAmount
		snap.SecondPaymentDue = p.SecondPaymentDue
		snap.RefundAmount = p.RefundedAmount
		snap.RefundReason = p.RefundReason
	}
	return snap
}

func (m *Manager) invalidate(ctx context.Context, dates ...time.Time) {
	if m.cache != nil {
		m.cache.Invalidate(ctx, dates...)
	}
}

func (m *Manager) observeTransition(from, to Status) {
	if m.metrics != nil {
		m.metrics.ObserveTransition(string(from), string(to))
	}
}

func (m *Manager) recordDegraded(out *Outcome, step string, err error) {
	out.degrade(step, err)
	if m.metrics != nil {
		m.metrics.ObserveDegraded(step)
	}
}

func fail(span trace.Span, err error) {
	if apperr.KindOf(err) != apperr.KindInternal && !errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.String("radiestesia.error_code", errorCode(err)))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func errorCode(err error) string {
	code, _ := apperr.Public(err)
	return code
}
