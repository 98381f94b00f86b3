// Package dashboard aggregates booking and payment figures for the admin.
package dashboard

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Stats summarises appointments whose session starts inside [From, To).
type Stats struct {
	From              time.Time        `json:"from"`
	To                time.Time        `json:"to"`
	ByStatus          map[string]int   `json:"byStatus"`
	UpcomingConfirmed int              `json:"upcomingConfirmed"`
	RevenueCents      int64            `json:"revenueCents"`
	RefundedCents     int64            `json:"refundedCents"`
	PendingSecondPix  PendingSecondPix `json:"pendingSecondPix"`
}

// PendingSecondPix counts PIX bookings still owing their remainder.
type PendingSecondPix struct {
	Count        int   `json:"count"`
	AmountCents  int64 `json:"amountCents"`
	OverdueCount int   `json:"overdueCount"`
}

// Payment statuses that hold money received from the client.
var collectedStatuses = []string{"PARTIAL_PAID", "PAID", "REFUNDED", "FORFEITED"}

// Repository runs the reporting queries.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		panic("dashboard: db cannot be nil")
	}
	return &Repository{db: db}
}

// Stats computes the dashboard for the range. now bounds the upcoming and
// overdue figures.
func (r *Repository) Stats(ctx context.Context, from, to, now time.Time) (*Stats, error) {
	s := &Stats{From: from, To: to, ByStatus: map[string]int{}}

	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM appointments
		WHERE start_time >= $1 AND start_time < $2
		GROUP BY status`, from, to)
	if err != nil {
		return nil, fmt.Errorf("dashboard: count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("dashboard: scan status count: %w", err)
		}
		s.ByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dashboard: iterate status counts: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE status = 'CONFIRMED' AND start_time >= $1`, now,
	).Scan(&s.UpcomingConfirmed); err != nil {
		return nil, fmt.Errorf("dashboard: count upcoming: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(p.paid_amount - p.refunded_amount), 0), COALESCE(SUM(p.refunded_amount), 0)
		FROM payments p
		JOIN appointments a ON a.id = p.appointment_id
		WHERE a.start_time >= $1 AND a.start_time < $2 AND p.status = ANY($3)`,
		from, to, pq.Array(collectedStatuses),
	).Scan(&s.RevenueCents, &s.RefundedCents); err != nil {
		return nil, fmt.Errorf("dashboard: sum revenue: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(p.remaining_amount), 0),
		       COUNT(*) FILTER (WHERE p.second_payment_due < $1)
		FROM payments p
		JOIN appointments a ON a.id = p.appointment_id
		WHERE p.payment_method = 'PIX' AND p.status = 'PARTIAL_PAID'
		  AND NOT (a.status = ANY($2))`,
		now, pq.Array([]string{"CANCELLED", "COMPLETED", "NO_SHOW"}),
	).Scan(&s.PendingSecondPix.Count, &s.PendingSecondPix.AmountCents, &s.PendingSecondPix.OverdueCount); err != nil {
		return nil, fmt.Errorf("dashboard: pending second pix: %w", err)
	}
	return s, nil
}
