package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/apperr"
	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

// ErrFetchFailed wraps every storage failure surfaced by availability reads.
var ErrFetchFailed = errors.New("availability: fetch failed")

var (
	errInvalidMonth = apperr.Validation("invalid_month", "mês inválido")
	errInvalidYear  = apperr.Validation("invalid_year", "ano inválido")
)

// Source supplies the inputs of the slot computation. Date bounds are inclusive.
type Source interface {
	ListWindows(ctx context.Context, from, to time.Time, activeOnly bool) ([]Window, error)
	ListBlocks(ctx context.Context, from, to time.Time) ([]Block, error)
	ListBookings(ctx context.Context, from, to time.Time) ([]Booking, error)
}

// DatesCache memoizes month-level date lists.
type DatesCache interface {
	GetDates(ctx context.Context, year int, month time.Month) ([]time.Time, bool, error)
	SetDates(ctx context.Context, year int, month time.Month, dates []time.Time) error
	Invalidate(ctx context.Context, dates ...time.Time) error
}

type cacheObserver interface {
	ObserveAvailabilityCache(hit bool)
}

// Service answers availability queries for the single practitioner calendar.
type Service struct {
	store   Store
	loc     *time.Location
	now     func() time.Time
	cache   DatesCache
	metrics cacheObserver
	logger  *logging.Logger
}

// NewService creates an availability service.
func NewService(store Store, loc *time.Location, logger *logging.Logger) *Service {
	if store == nil {
		panic("availability: store required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, loc: loc, now: time.Now, logger: logger}
}

// WithCache enables the month date cache.
func (s *Service) WithCache(cache DatesCache) *Service {
	s.cache = cache
	return s
}

// WithMetrics records cache hits and misses.
func (s *Service) WithMetrics(m cacheObserver) *Service {
	s.metrics = m
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Location returns the practice timezone.
func (s *Service) Location() *time.Location { return s.loc }

// Today returns the current calendar day in the practice timezone.
func (s *Service) Today() time.Time { return DateOf(s.now(), s.loc) }

// ListAvailableDates returns the days of the month, today or later, that have
// at least one available slot. Results are sorted ascending.
func (s *Service) ListAvailableDates(ctx context.Context, month, year int) ([]time.Time, error) {
	if month < 1 || month > 12 {
		return nil, errInvalidMonth
	}
	if year < 2000 || year > 2100 {
		return nil, errInvalidYear
	}
	today := s.Today()

	if s.cache != nil {
		cached, ok, err := s.cache.GetDates(ctx, year, time.Month(month))
		if err != nil {
			s.logger.Warn("availability cache read failed", "error", err)
		} else if ok {
			s.observeCache(true)
			return notBefore(cached, today), nil
		}
		s.observeCache(false)
	}

	from, to := MonthRange(year, time.Month(month))
	windows, bookings, blocks, err := fetchRange(ctx, s.store, from, to)
	if err != nil {
		return nil, err
	}
	dates := AvailableDates(windows, bookingIntervals(bookings, s.loc), blockIntervals(blocks), today)

	if s.cache != nil {
		if err := s.cache.SetDates(ctx, year, time.Month(month), dates); err != nil {
			s.logger.Warn("availability cache write failed", "error", err)
		}
	}
	return dates, nil
}

// ListSlotsForDate returns every generated slot for date, grouped by window.
// A date without windows yields an empty list.
func (s *Service) ListSlotsForDate(ctx context.Context, date time.Time) ([]Slot, error) {
	return SlotsForDate(ctx, s.store, s.loc, date)
}

// Invalidate drops cached date lists for the months containing dates.
func (s *Service) Invalidate(ctx context.Context, dates ...time.Time) {
	if s.cache == nil || len(dates) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, dates...); err != nil {
		s.logger.Warn("availability cache invalidate failed", "error", err)
	}
}

func (s *Service) observeCache(hit bool) {
	if s.metrics != nil {
		s.metrics.ObserveAvailabilityCache(hit)
	}
}

// SlotsForDate computes the slots of one date from src. It runs against any
// Source, including one bound to an open transaction.
func SlotsForDate(ctx context.Context, src Source, loc *time.Location, date time.Time) ([]Slot, error) {
	windows, bookings, blocks, err := fetchRange(ctx, src, date, date)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return []Slot{}, nil
	}
	key := FormatDate(date)
	return ComputeSlots(windows, bookingIntervals(bookings, loc)[key], blockIntervals(blocks)[key]), nil
}

// CheckSlot reports whether start is a generated, currently available slot on date.
func CheckSlot(ctx context.Context, src Source, loc *time.Location, date time.Time, start TimeOfDay) (bool, error) {
	slots, err := SlotsForDate(ctx, src, loc, date)
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		if slot.Start == start && slot.Available {
			return true, nil
		}
	}
	return false, nil
}

// ComputeSlots expands active windows into slots and flags conflicts.
// Output follows window order, then start time within each window.
func ComputeSlots(windows []Window, booked, blocked []Interval) []Slot {
	slots := []Slot{}
	for _, w := range windows {
		if !w.Active {
			continue
		}
		for _, start := range GenerateSlots(w.Start, w.End) {
			session := SessionAt(start)
			slots = append(slots, Slot{
				Start:     session.Start,
				End:       session.End,
				Available: IsAvailable(session, booked, blocked),
			})
		}
	}
	return slots
}

// AvailableDates returns the distinct dates on or after today with at least
// one available slot. booked and blocked are keyed by "YYYY-MM-DD".
func AvailableDates(windows []Window, booked, blocked map[string][]Interval, today time.Time) []time.Time {
	seen := map[string]bool{}
	var dates []time.Time
	for _, w := range windows {
		if !w.Active || w.Date.Before(today) {
			continue
		}
		key := FormatDate(w.Date)
		if seen[key] {
			continue
		}
		for _, slot := range ComputeSlots([]Window{w}, booked[key], blocked[key]) {
			if slot.Available {
				seen[key] = true
				dates = append(dates, w.Date)
				break
			}
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func fetchRange(ctx context.Context, src Source, from, to time.Time) ([]Window, []Booking, []Block, error) {
	windows, err := src.ListWindows(ctx, from, to, true)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: windows: %w", ErrFetchFailed, err)
	}
	if len(windows) == 0 {
		return nil, nil, nil, nil
	}
	bookings, err := src.ListBookings(ctx, from, to)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: bookings: %w", ErrFetchFailed, err)
	}
	blocks, err := src.ListBlocks(ctx, from, to)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: blocks: %w", ErrFetchFailed, err)
	}
	return windows, bookings, blocks, nil
}

// bookingIntervals converts bookings to minute intervals on their practice-local day.
func bookingIntervals(bookings []Booking, loc *time.Location) map[string][]Interval {
	out := map[string][]Interval{}
	for _, b := range bookings {
		key := FormatDate(DateOf(b.StartTime, loc))
		start := TimeOfDayIn(b.StartTime, loc)
		end := start.Add(int(b.EndTime.Sub(b.StartTime) / time.Minute))
		out[key] = append(out[key], Interval{Start: start, End: end})
	}
	return out
}

func blockIntervals(blocks []Block) map[string][]Interval {
	out := map[string][]Interval{}
	for _, b := range blocks {
		key := FormatDate(b.Date)
		out[key] = append(out[key], Interval{Start: b.Start, End: b.End})
	}
	return out
}

func notBefore(dates []time.Time, today time.Time) []time.Time {
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if !d.Before(today) {
			out = append(out, d)
		}
	}
	return out
}
