package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/availability"
)

// MemoryStore is an in-process Store for development and tests. Windows and
// blocks come from the availability store it wraps.
type MemoryStore struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*Appointment
	offerings    map[string]Offering
	calendar     availability.Source
}

// NewMemoryStore creates a store seeded with the default offering.
func NewMemoryStore(calendar availability.Source) *MemoryStore {
	if calendar == nil {
		panic("appointments: availability source required")
	}
	return &MemoryStore{
		appointments: map[uuid.UUID]*Appointment{},
		offerings: map[string]Offering{
			DefaultOfferingID: {
				ID:              DefaultOfferingID,
				Name:            "Sessão de Radiestesia Terapêutica",
				DurationMinutes: availability.SessionMinutes,
				Active:          true,
			},
		},
		calendar: calendar,
	}
}

// PutOffering adds or replaces an offering.
func (m *MemoryStore) PutOffering(o Offering) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offerings[o.ID] = o
}

// InTx serializes fn against every other writer and applies its writes only
// when fn succeeds.
func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m, writes: map[uuid.UUID]*Appointment{}}
	if err := fn(tx); err != nil {
		return err
	}
	for id, a := range tx.writes {
		m.appointments[id] = a
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (m *MemoryStore) List(_ context.Context, f Filter) ([]*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Appointment
	for _, a := range m.appointments {
		if f.matches(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// ListBookings lets the availability store see appointment occupancy.
func (m *MemoryStore) ListBookings(_ context.Context, from, to time.Time) ([]availability.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return bookingsIn(m.appointments, nil, from, to), nil
}

type memTx struct {
	store  *MemoryStore
	writes map[uuid.UUID]*Appointment
}

func (t *memTx) current(id uuid.UUID) (*Appointment, bool) {
	if a, ok := t.writes[id]; ok {
		return a, true
	}
	a, ok := t.store.appointments[id]
	return a, ok
}

func (t *memTx) ListWindows(ctx context.Context, from, to time.Time, activeOnly bool) ([]availability.Window, error) {
	return t.store.calendar.ListWindows(ctx, from, to, activeOnly)
}

func (t *memTx) ListBlocks(ctx context.Context, from, to time.Time) ([]availability.Block, error) {
	return t.store.calendar.ListBlocks(ctx, from, to)
}

func (t *memTx) ListBookings(_ context.Context, from, to time.Time) ([]availability.Booking, error) {
	return bookingsIn(t.store.appointments, t.writes, from, to), nil
}

func (t *memTx) GetOffering(_ context.Context, id string) (Offering, error) {
	o, ok := t.store.offerings[id]
	if !ok {
		return Offering{}, ErrOfferingInactive
	}
	return o, nil
}

func (t *memTx) Get(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := t.current(id)
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (t *memTx) Insert(_ context.Context, a *Appointment) error {
	if _, exists := t.current(a.ID); exists {
		return ErrSlotUnavailable
	}
	if t.startTaken(a.ID, a.StartTime) {
		return ErrSlotUnavailable
	}
	t.writes[a.ID] = a.Clone()
	return nil
}

func (t *memTx) Update(_ context.Context, a *Appointment) error {
	if _, ok := t.current(a.ID); !ok {
		return ErrNotFound
	}
	if a.Status != StatusCancelled && t.startTaken(a.ID, a.StartTime) {
		return ErrSlotUnavailable
	}
	t.writes[a.ID] = a.Clone()
	return nil
}

// startTaken mirrors the partial unique index on start_time.
func (t *memTx) startTaken(self uuid.UUID, start time.Time) bool {
	seen := map[uuid.UUID]bool{}
	check := func(a *Appointment) bool {
		return a.ID != self && a.Status != StatusCancelled && a.StartTime.Equal(start)
	}
	for id, a := range t.writes {
		seen[id] = true
		if check(a) {
			return true
		}
	}
	for id, a := range t.store.appointments {
		if !seen[id] && check(a) {
			return true
		}
	}
	return false
}

func bookingsIn(base, overlay map[uuid.UUID]*Appointment, from, to time.Time) []availability.Booking {
	var out []availability.Booking
	add := func(a *Appointment) {
		if a.Status == StatusCancelled || a.Date.Before(from) || a.Date.After(to) {
			return
		}
		out = append(out, availability.Booking{
			AppointmentID: a.ID,
			Date:          a.Date,
			StartTime:     a.StartTime,
			EndTime:       a.EndTime,
		})
	}
	for _, a := range overlay {
		add(a)
	}
	for id, a := range base {
		if _, shadowed := overlay[id]; !shadowed {
			add(a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PGStore)(nil)
)
