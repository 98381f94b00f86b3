package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGStoreListWindows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPGStoreWithDB(mock)
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	id := uuid.New()
	created := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, date, start_minute, end_minute, active, created_at FROM availability_windows").
		WithArgs(from, to, true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "date", "start_minute", "end_minute", "active", "created_at"}).
			AddRow(id, from, 540, 1020, true, created))

	windows, err := store.ListWindows(context.Background(), from, to, true)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, id, windows[0].ID)
	assert.Equal(t, "09:00", windows[0].Start.String())
	assert.Equal(t, "17:00", windows[0].End.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreDeleteWindowNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPGStoreWithDB(mock)
	id := uuid.New()
	mock.ExpectQuery("DELETE FROM availability_windows").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err = store.DeleteWindow(context.Background(), id)
	assert.ErrorIs(t, err, ErrWindowNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreUpdateWindowNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPGStoreWithDB(mock)
	w := Window{ID: uuid.New(), Date: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), Start: 540, End: 1020, Active: true}
	mock.ExpectExec("UPDATE availability_windows").
		WithArgs(w.ID, w.Date, 540, 1020, true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.ErrorIs(t, store.UpdateWindow(context.Background(), w), ErrWindowNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreCreateBlock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPGStoreWithDB(mock)
	b := Block{
		ID:        uuid.New(),
		Date:      time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Start:     MustTimeOfDay("12:00"),
		End:       MustTimeOfDay("13:00"),
		Reason:    "almoço",
		CreatedAt: time.Now().UTC(),
	}
	mock.ExpectExec("INSERT INTO blocked_intervals").
		WithArgs(b.ID, b.Date, 720, 780, "almoço", b.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateBlock(context.Background(), b))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreListBookingsSkipsCancelled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPGStoreWithDB(mock)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	start := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	id := uuid.New()

	mock.ExpectQuery("status <> 'CANCELLED'").
		WithArgs(day, day).
		WillReturnRows(pgxmock.NewRows([]string{"id", "date", "start_time", "end_time"}).
			AddRow(id, day, start, start.Add(2*time.Hour)))

	bookings, err := store.ListBookings(context.Background(), day, day)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, id, bookings[0].AppointmentID)
	require.NoError(t, mock.ExpectationsWereMet())
}
