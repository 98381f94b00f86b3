package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// BookingLister supplies bookings to the in-memory store.
type BookingLister interface {
	ListBookings(ctx context.Context, from, to time.Time) ([]Booking, error)
}

// MemoryStore is an in-process Store for development without Postgres.
type MemoryStore struct {
	mu       sync.RWMutex
	windows  map[uuid.UUID]Window
	blocks   map[uuid.UUID]Block
	bookings BookingLister
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: map[uuid.UUID]Window{},
		blocks:  map[uuid.UUID]Block{},
	}
}

// SetBookingLister wires the appointment source consulted by ListBookings.
func (m *MemoryStore) SetBookingLister(b BookingLister) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings = b
}

func (m *MemoryStore) ListWindows(_ context.Context, from, to time.Time, activeOnly bool) ([]Window, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Window
	for _, w := range m.windows {
		if w.Date.Before(from) || w.Date.After(to) || (activeOnly && !w.Active) {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) GetWindow(_ context.Context, id uuid.UUID) (Window, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.windows[id]
	if !ok {
		return Window{}, ErrWindowNotFound
	}
	return w, nil
}

func (m *MemoryStore) CreateWindows(_ context.Context, windows []Window) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range windows {
		m.windows[w.ID] = w
	}
	return nil
}

func (m *MemoryStore) UpdateWindow(_ context.Context, w Window) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.windows[w.ID]; !ok {
		return ErrWindowNotFound
	}
	m.windows[w.ID] = w
	return nil
}

func (m *MemoryStore) DeleteWindow(_ context.Context, id uuid.UUID) (Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok {
		return Window{}, ErrWindowNotFound
	}
	delete(m.windows, id)
	return w, nil
}

func (m *MemoryStore) ListBlocks(_ context.Context, from, to time.Time) ([]Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Block
	for _, b := range m.blocks {
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (m *MemoryStore) CreateBlock(_ context.Context, b Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[b.ID] = b
	return nil
}

func (m *MemoryStore) DeleteBlock(_ context.Context, id uuid.UUID) (Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[id]
	if !ok {
		return Block{}, ErrBlockNotFound
	}
	delete(m.blocks, id)
	return b, nil
}

func (m *MemoryStore) ListBookings(ctx context.Context, from, to time.Time) ([]Booking, error) {
	m.mu.RLock()
	lister := m.bookings
	m.mu.RUnlock()
	if lister == nil {
		return nil, nil
	}
	return lister.ListBookings(ctx, from, to)
}
