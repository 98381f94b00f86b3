package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/apperr"
)

type stubBookings []Booking

func (s stubBookings) ListBookings(_ context.Context, from, to time.Time) ([]Booking, error) {
	var out []Booking
	for _, b := range s {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

type countingCacheObserver struct{ hits, misses int }

func (c *countingCacheObserver) ObserveAvailabilityCache(hit bool) {
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return loc
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func addWindow(t *testing.T, store *MemoryStore, date, start, end string, active bool) {
	t.Helper()
	require.NoError(t, store.CreateWindows(context.Background(), []Window{{
		ID:     uuid.New(),
		Date:   mustDate(t, date),
		Start:  MustTimeOfDay(start),
		End:    MustTimeOfDay(end),
		Active: active,
	}}))
}

func newTestService(t *testing.T, store *MemoryStore, now time.Time) *Service {
	t.Helper()
	return NewService(store, saoPaulo(t), nil).WithClock(func() time.Time { return now })
}

func TestListSlotsForDate(t *testing.T) {
	loc := saoPaulo(t)
	store := NewMemoryStore()
	addWindow(t, store, "2025-06-02", "09:00", "17:00", true)

	start := time.Date(2025, 6, 2, 11, 10, 0, 0, loc)
	store.SetBookingLister(stubBookings{{
		AppointmentID: uuid.New(),
		Date:          mustDate(t, "2025-06-02"),
		StartTime:     start,
		EndTime:       start.Add(2 * time.Hour),
	}})

	svc := newTestService(t, store, time.Date(2025, 6, 1, 12, 0, 0, 0, loc))
	slots, err := svc.ListSlotsForDate(context.Background(), mustDate(t, "2025-06-02"))
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.True(t, slots[0].Available)
	assert.False(t, slots[1].Available)
	assert.True(t, slots[2].Available)

	empty, err := svc.ListSlotsForDate(context.Background(), mustDate(t, "2025-06-03"))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestListSlotsForDateIsRepeatable(t *testing.T) {
	loc := saoPaulo(t)
	store := NewMemoryStore()
	addWindow(t, store, "2025-06-02", "09:00", "17:00", true)
	svc := newTestService(t, store, time.Date(2025, 6, 1, 12, 0, 0, 0, loc))
	ctx := context.Background()
	date := mustDate(t, "2025-06-02")

	first, err := svc.ListSlotsForDate(ctx, date)
	require.NoError(t, err)
	second, err := svc.ListSlotsForDate(ctx, date)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, first, second)

	start := time.Date(2025, 6, 2, 13, 20, 0, 0, loc)
	store.SetBookingLister(stubBookings{{
		AppointmentID: uuid.New(),
		Date:          date,
		StartTime:     start,
		EndTime:       start.Add(2 * time.Hour),
	}})

	booked, err := svc.ListSlotsForDate(ctx, date)
	require.NoError(t, err)
	again, err := svc.ListSlotsForDate(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, booked, again)
	assert.False(t, booked[2].Available)
}

func TestCheckSlot(t *testing.T) {
	loc := saoPaulo(t)
	store := NewMemoryStore()
	addWindow(t, store, "2025-06-02", "09:00", "17:00", true)
	date := mustDate(t, "2025-06-02")

	ok, err := CheckSlot(context.Background(), store, loc, date, MustTimeOfDay("11:10"))
	require.NoError(t, err)
	assert.True(t, ok)

	// 10:00 is inside the window but not a generated start.
	ok, err = CheckSlot(context.Background(), store, loc, date, MustTimeOfDay("10:00"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListAvailableDates(t *testing.T) {
	loc := saoPaulo(t)
	store := NewMemoryStore()
	addWindow(t, store, "2025-06-10", "09:00", "11:00", true)
	addWindow(t, store, "2025-06-03", "09:00", "17:00", true)
	addWindow(t, store, "2025-06-01", "09:00", "17:00", true) // past
	addWindow(t, store, "2025-06-12", "09:00", "17:00", false)
	addWindow(t, store, "2025-06-20", "09:00", "11:00", true)

	require.NoError(t, store.CreateBlock(context.Background(), Block{
		ID:    uuid.New(),
		Date:  mustDate(t, "2025-06-20"),
		Start: MustTimeOfDay("08:00"),
		End:   MustTimeOfDay("12:00"),
	}))
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, loc)
	store.SetBookingLister(stubBookings{{
		Date:      mustDate(t, "2025-06-10"),
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
	}})

	svc := newTestService(t, store, time.Date(2025, 6, 2, 8, 0, 0, 0, loc))
	dates, err := svc.ListAvailableDates(context.Background(), 6, 2025)
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, "2025-06-03", FormatDate(dates[0]))
}

func TestListAvailableDatesValidation(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), time.Now())

	_, err := svc.ListAvailableDates(context.Background(), 13, 2025)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.ListAvailableDates(context.Background(), 1, 1999)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

type failingSource struct{}

func (failingSource) ListWindows(context.Context, time.Time, time.Time, bool) ([]Window, error) {
	return nil, errors.New("connection refused")
}
func (failingSource) ListBlocks(context.Context, time.Time, time.Time) ([]Block, error) {
	return nil, nil
}
func (failingSource) ListBookings(context.Context, time.Time, time.Time) ([]Booking, error) {
	return nil, nil
}

func TestSlotsForDateFetchFailure(t *testing.T) {
	_, err := SlotsForDate(context.Background(), failingSource{}, time.UTC, mustDate(t, "2025-06-02"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestListAvailableDatesUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	loc := saoPaulo(t)
	store := NewMemoryStore()
	addWindow(t, store, "2025-06-03", "09:00", "17:00", true)
	addWindow(t, store, "2025-06-04", "09:00", "17:00", true)

	obs := &countingCacheObserver{}
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, loc)
	svc := newTestService(t, store, now).
		WithCache(NewRedisDatesCache(client, time.Minute)).
		WithMetrics(obs)

	ctx := context.Background()
	first, err := svc.ListAvailableDates(ctx, 6, 2025)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.True(t, mr.Exists("availability:dates:2025-06"))

	second, err := svc.ListAvailableDates(ctx, 6, 2025)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)

	// Cached entries are re-filtered against today.
	svc.WithClock(func() time.Time { return now.AddDate(0, 0, 2) })
	later, err := svc.ListAvailableDates(ctx, 6, 2025)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, "2025-06-04", FormatDate(later[0]))

	// Admin mutations evict the month.
	_, err = svc.CreateBlock(ctx, mustDate(t, "2025-06-04"), MustTimeOfDay("09:00"), MustTimeOfDay("17:00"), "feriado")
	require.NoError(t, err)
	assert.False(t, mr.Exists("availability:dates:2025-06"))
}
