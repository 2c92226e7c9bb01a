package calendar

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process calendar. Busy intervals can be seeded with
// AddBusy and every created event becomes busy time for its owner.
type Memory struct {
	mu      sync.RWMutex
	busy    map[string][]BusyInterval
	created map[string]NewEvent
}

func NewMemory() *Memory {
	return &Memory{
		busy:    make(map[string][]BusyInterval),
		created: make(map[string]NewEvent),
	}
}

func (m *Memory) AddBusy(ownerID string, start, end time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy[ownerID] = append(m.busy[ownerID], BusyInterval{Start: start, End: end})
}

func (m *Memory) BusyIntervals(_ context.Context, ownerID string, start, end time.Time) ([]BusyInterval, error) {
	if !end.After(start) {
		return nil, ErrInvalidSpan
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []BusyInterval
	for _, b := range m.busy[ownerID] {
		if b.Overlaps(start, end) {
			out = append(out, b)
		}
	}
	return out, nil
}

// CreateBookedEvent is idempotent on ev.IdempotencyKey. A different booking
// under the same key fails with ErrEventConflict.
func (m *Memory) CreateBookedEvent(_ context.Context, ev NewEvent) (string, error) {
	id := EventID(ev.IdempotencyKey)
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.created[id]; ok {
		if !existing.SameBooking(ev) {
			return "", ErrEventConflict
		}
		return id, nil
	}
	m.created[id] = ev
	m.busy[ev.OwnerID] = append(m.busy[ev.OwnerID], BusyInterval{Start: ev.Start, End: ev.End()})
	return id, nil
}

// Created returns the events created so far.
func (m *Memory) Created() []NewEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]NewEvent, 0, len(m.created))
	for _, ev := range m.created {
		out = append(out, ev)
	}
	return out
}
