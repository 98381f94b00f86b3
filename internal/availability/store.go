package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists windows and blocks and reads bookings.
type Store interface {
	Source
	GetWindow(ctx context.Context, id uuid.UUID) (Window, error)
	CreateWindows(ctx context.Context, windows []Window) error
	UpdateWindow(ctx context.Context, w Window) error
	DeleteWindow(ctx context.Context, id uuid.UUID) (Window, error)
	CreateBlock(ctx context.Context, b Block) error
	DeleteBlock(ctx context.Context, id uuid.UUID) (Block, error)
}

// DB is satisfied by *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore is the Postgres-backed Store.
type PGStore struct {
	db DB
}

// NewPGStore creates a store backed by the pgx pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("availability: pgx pool required")
	}
	return &PGStore{db: pool}
}

// NewPGStoreWithDB binds the store to any DB, typically an open transaction.
func NewPGStoreWithDB(db DB) *PGStore {
	if db == nil {
		panic("availability: db required")
	}
	return &PGStore{db: db}
}

const windowColumns = `id, date, start_minute, end_minute, active, created_at`

func (s *PGStore) ListWindows(ctx context.Context, from, to time.Time, activeOnly bool) ([]Window, error) {
	query := `SELECT ` + windowColumns + ` FROM availability_windows
		WHERE date >= $1 AND date <= $2 AND ($3::boolean = false OR active)
		ORDER BY date, start_minute, created_at`
	rows, err := s.db.Query(ctx, query, from, to, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("availability: query windows: %w", err)
	}
	defer rows.Close()

	var out []Window
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *PGStore) GetWindow(ctx context.Context, id uuid.UUID) (Window, error) {
	query := `SELECT ` + windowColumns + ` FROM availability_windows WHERE id = $1`
	w, err := scanWindow(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Window{}, ErrWindowNotFound
	}
	return w, err
}

func (s *PGStore) CreateWindows(ctx context.Context, windows []Window) error {
	query := `
		INSERT INTO availability_windows (id, date, start_minute, end_minute, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, w := range windows {
		if _, err := s.db.Exec(ctx, query, w.ID, w.Date, w.Start.Minutes(), w.End.Minutes(), w.Active, w.CreatedAt); err != nil {
			return fmt.Errorf("availability: insert window: %w", err)
		}
	}
	return nil
}

func (s *PGStore) UpdateWindow(ctx context.Context, w Window) error {
	query := `
		UPDATE availability_windows
		SET date = $2, start_minute = $3, end_minute = $4, active = $5
		WHERE id = $1
	`
	ct, err := s.db.Exec(ctx, query, w.ID, w.Date, w.Start.Minutes(), w.End.Minutes(), w.Active)
	if err != nil {
		return fmt.Errorf("availability: update window: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrWindowNotFound
	}
	return nil
}

func (s *PGStore) DeleteWindow(ctx context.Context, id uuid.UUID) (Window, error) {
	query := `DELETE FROM availability_windows WHERE id = $1 RETURNING ` + windowColumns
	w, err := scanWindow(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Window{}, ErrWindowNotFound
	}
	return w, err
}

const blockColumns = `id, date, start_minute, end_minute, reason, created_at`

func (s *PGStore) ListBlocks(ctx context.Context, from, to time.Time) ([]Block, error) {
	query := `SELECT ` + blockColumns + ` FROM blocked_intervals
		WHERE date >= $1 AND date <= $2
		ORDER BY date, start_minute`
	rows, err := s.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("availability: query blocks: %w", err)
	}
	defer rows.Close()

	var out []Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PGStore) CreateBlock(ctx context.Context, b Block) error {
	query := `
		INSERT INTO blocked_intervals (id, date, start_minute, end_minute, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.Exec(ctx, query, b.ID, b.Date, b.Start.Minutes(), b.End.Minutes(), b.Reason, b.CreatedAt); err != nil {
		return fmt.Errorf("availability: insert block: %w", err)
	}
	return nil
}

func (s *PGStore) DeleteBlock(ctx context.Context, id uuid.UUID) (Block, error) {
	query := `DELETE FROM blocked_intervals WHERE id = $1 RETURNING ` + blockColumns
	b, err := scanBlock(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Block{}, ErrBlockNotFound
	}
	return b, err
}

// ListBookings returns appointments that still hold their time, i.e. every
// status except CANCELLED.
func (s *PGStore) ListBookings(ctx context.Context, from, to time.Time) ([]Booking, error) {
	query := `
		SELECT id, date, start_time, end_time
		FROM appointments
		WHERE date >= $1 AND date <= $2 AND status <> 'CANCELLED'
		ORDER BY start_time
	`
	rows, err := s.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("availability: query bookings: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.AppointmentID, &b.Date, &b.StartTime, &b.EndTime); err != nil {
			return nil, fmt.Errorf("availability: scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanWindow(row pgx.Row) (Window, error) {
	var (
		w          Window
		start, end int
	)
	if err := row.Scan(&w.ID, &w.Date, &start, &end, &w.Active, &w.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Window{}, err
		}
		return Window{}, fmt.Errorf("availability: scan window: %w", err)
	}
	w.Start, w.End = TimeOfDay(start), TimeOfDay(end)
	return w, nil
}

func scanBlock(row pgx.Row) (Block, error) {
	var (
		b          Block
		start, end int
	)
	if err := row.Scan(&b.ID, &b.Date, &start, &end, &b.Reason, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Block{}, err
		}
		return Block{}, fmt.Errorf("availability: scan block: %w", err)
	}
	b.Start, b.End = TimeOfDay(start), TimeOfDay(end)
	return b, nil
}
