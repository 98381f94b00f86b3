package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/apperr"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/availability"
	"github.com/dheysonavelleda/radiestesia-agendamento/internal/payments"
)

var (
	ErrNotFound         = apperr.NotFound("not_found", "agendamento não encontrado")
	ErrOfferingInactive = apperr.NotFound("offering_inactive", "serviço indisponível")
	ErrSlotUnavailable  = apperr.Conflict("slot_unavailable", "horário indisponível")
)

// Tx is the atomic unit every lifecycle mutation runs in. Its availability
// reads observe the same snapshot the writes commit against.
type Tx interface {
	availability.Source
	GetOffering(ctx context.Context, id string) (Offering, error)
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Insert(ctx context.Context, a *Appointment) error
	Update(ctx context.Context, a *Appointment) error
}

// Store persists appointments with their payments.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, f Filter) ([]*Appointment, error)
}

type pgxPool interface {
	availability.DB
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore is the Postgres-backed Store.
type PGStore struct {
	pool pgxPool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PGStore{pool: pool}
}

func newPGStoreWithPool(pool pgxPool) *PGStore {
	if pool == nil {
		panic("appointments: pool required")
	}
	return &PGStore{pool: pool}
}

func (s *PGStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointments: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{Source: availability.NewPGStoreWithDB(tx), db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointments: commit: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return getAppointment(ctx, s.pool, id, false)
}

func (s *PGStore) List(ctx context.Context, f Filter) ([]*Appointment, error) {
	query := selectAppointment + `
		WHERE ($1 = '' OR a.client_id = $1)
		  AND ($2 = '' OR a.status = $2)
		  AND ($3 = '' OR p.status = $3)
		  AND ($4::timestamptz IS NULL OR a.start_time >= $4)
		  AND ($5::timestamptz IS NULL OR a.start_time < $5)
		ORDER BY a.start_time`
	rows, err := s.pool.Query(ctx, query, f.ClientID, string(f.Status), string(f.PaymentStatus), nullTime(f.From), nullTime(f.To))
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type pgTx struct {
	availability.Source
	db availability.DB
}

func (t *pgTx) GetOffering(ctx context.Context, id string) (Offering, error) {
	var o Offering
	err := t.db.QueryRow(ctx, `
		SELECT id, name, description, duration_minutes, active
		FROM offerings WHERE id = $1
	`, id).Scan(&o.ID, &o.Name, &o.Description, &o.DurationMinutes, &o.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Offering{}, ErrOfferingInactive
	}
	if err != nil {
		return Offering{}, fmt.Errorf("appointments: get offering: %w", err)
	}
	return o, nil
}

func (t *pgTx) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return getAppointment(ctx, t.db, id, true)
}

func (t *pgTx) Insert(ctx context.Context, a *Appointment) error {
	if a.Payment == nil {
		return fmt.Errorf("appointments: insert %s without payment", a.ID)
	}
	_, err := t.db.Exec(ctx, `
		INSERT INTO appointments (id, client_id, client_name, client_email, offering_id, date, start_time, end_time,
			status, payment_method, reschedule_count, notes, admin_notes, meet_link, meet_event_id, cancelled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, a.ID, a.ClientID, a.ClientName, a.ClientEmail, a.OfferingID, a.Date, a.StartTime, a.EndTime,
		string(a.Status), string(a.PaymentMethod), a.RescheduleCount, a.Notes, a.AdminNotes, a.MeetLink, a.MeetEventID,
		a.CancelledAt, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("appointments: insert appointment: %w", err)
	}

	p := a.Payment
	_, err = t.db.Exec(ctx, `
		INSERT INTO payments (id, appointment_id, total_amount, paid_amount, remaining_amount, payment_method, status,
			installments, first_payment_amount, first_payment_status, first_payment_id, second_payment_amount,
			second_payment_status, second_payment_id, second_payment_due, card_payment_id, checkout_id,
			refunded_amount, refunded_at, refund_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`, p.ID, a.ID, p.TotalAmount, p.PaidAmount, p.RemainingAmount, string(p.Method), string(p.Status),
		p.Installments, p.FirstPaymentAmount, string(p.FirstPaymentStatus), p.FirstPaymentID, p.SecondPaymentAmount,
		string(p.SecondPaymentStatus), p.SecondPaymentID, p.SecondPaymentDue, p.CardPaymentID, p.CheckoutID,
		p.RefundedAmount, p.RefundedAt, p.RefundReason, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("appointments: insert payment: %w", err)
	}
	return nil
}

func (t *pgTx) Update(ctx context.Context, a *Appointment) error {
	ct, err := t.db.Exec(ctx, `
		UPDATE appointments
		SET date = $2, start_time = $3, end_time = $4, status = $5, reschedule_count = $6, notes = $7,
			admin_notes = $8, meet_link = $9, meet_event_id = $10, cancelled_at = $11, updated_at = $12
		WHERE id = $1
	`, a.ID, a.Date, a.StartTime, a.EndTime, string(a.Status), a.RescheduleCount, a.Notes,
		a.AdminNotes, a.MeetLink, a.MeetEventID, a.CancelledAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("appointments: update appointment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	if a.Payment == nil {
		return nil
	}

	p := a.Payment
	_, err = t.db.Exec(ctx, `
		UPDATE payments
		SET paid_amount = $2, remaining_amount = $3, status = $4, installments = $5,
			first_payment_status = $6, first_payment_id = $7, second_payment_status = $8, second_payment_id = $9,
			second_payment_due = $10, card_payment_id = $11, checkout_id = $12,
			refunded_amount = $13, refunded_at = $14, refund_reason = $15, updated_at = $16
		WHERE id = $1
	`, p.ID, p.PaidAmount, p.RemainingAmount, string(p.Status), p.Installments,
		string(p.FirstPaymentStatus), p.FirstPaymentID, string(p.SecondPaymentStatus), p.SecondPaymentID,
		p.SecondPaymentDue, p.CardPaymentID, p.CheckoutID,
		p.RefundedAmount, p.RefundedAt, p.RefundReason, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("appointments: update payment: %w", err)
	}
	return nil
}

const selectAppointment = `
	SELECT a.id, a.client_id, a.client_name, a.client_email, a.offering_id, a.date, a.start_time, a.end_time,
		a.status, a.payment_method, a.reschedule_count, a.notes, a.admin_notes, a.meet_link, a.meet_event_id,
		a.cancelled_at, a.created_at, a.updated_at,
		p.id, p.total_amount, p.paid_amount, p.remaining_amount, p.status, p.installments,
		p.first_payment_amount, p.first_payment_status, p.first_payment_id,
		p.second_payment_amount, p.second_payment_status, p.second_payment_id, p.second_payment_due,
		p.card_payment_id, p.checkout_id, p.refunded_amount, p.refunded_at, p.refund_reason,
		p.created_at, p.updated_at
	FROM appointments a
	JOIN payments p ON p.appointment_id = a.id`

func getAppointment(ctx context.Context, db availability.DB, id uuid.UUID, forUpdate bool) (*Appointment, error) {
	query := selectAppointment + ` WHERE a.id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	a, err := scanAppointment(db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a                                    Appointment
		p                                    payments.Payment
		status, method                       string
		payStatus, firstStatus, secondStatus string
	)
	err := row.Scan(
		&a.ID, &a.ClientID, &a.ClientName, &a.ClientEmail, &a.OfferingID, &a.Date, &a.StartTime, &a.EndTime,
		&status, &method, &a.RescheduleCount, &a.Notes, &a.AdminNotes, &a.MeetLink, &a.MeetEventID,
		&a.CancelledAt, &a.CreatedAt, &a.UpdatedAt,
		&p.ID, &p.TotalAmount, &p.PaidAmount, &p.RemainingAmount, &payStatus, &p.Installments,
		&p.FirstPaymentAmount, &firstStatus, &p.FirstPaymentID,
		&p.SecondPaymentAmount, &secondStatus, &p.SecondPaymentID, &p.SecondPaymentDue,
		&p.CardPaymentID, &p.CheckoutID, &p.RefundedAmount, &p.RefundedAt, &p.RefundReason,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("appointments: scan: %w", err)
	}
	a.Status = Status(status)
	a.PaymentMethod = payments.Method(method)
	p.AppointmentID = a.ID
	p.Method = a.PaymentMethod
	p.Status = payments.Status(payStatus)
	p.FirstPaymentStatus = payments.LegStatus(firstStatus)
	p.SecondPaymentStatus = payments.LegStatus(secondStatus)
	a.Payment = &p
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
