package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/Moszee/generic-sim/internal/tribe"
)

// EventRecord is a stored tick event.
type EventRecord struct {
	TribeID     tribe.TribeID `db:"tribe_id" json:"tribe_id"`
	Tick        uint64        `db:"tick" json:"tick"`
	Description string        `db:"description" json:"description"`
	Category    string        `db:"category" json:"category"`
}

// MemoryStore keeps tribes in process memory. Tribes are cloned on the way in
// and out, so callers never share state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	tribes map[tribe.TribeID]*tribe.Tribe
	events map[tribe.TribeID][]EventRecord
	meta   map[string]string
	lastID tribe.TribeID
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tribes: make(map[tribe.TribeID]*tribe.Tribe),
		events: make(map[tribe.TribeID][]EventRecord),
		meta:   make(map[string]string),
	}
}

func (m *MemoryStore) LoadTribe(_ context.Context, id tribe.TribeID) (*tribe.Tribe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tribes[id]
	if !ok {
		return nil, fmt.Errorf("tribe %d: %w", id, tribe.ErrNotFound)
	}
	return t.Clone(), nil
}

func (m *MemoryStore) SaveTribe(_ context.Context, t *tribe.Tribe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tribes[t.ID] = t.Clone()
	return nil
}

func (m *MemoryStore) DeleteTribe(_ context.Context, id tribe.TribeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tribes[id]; !ok {
		return fmt.Errorf("tribe %d: %w", id, tribe.ErrNotFound)
	}
	delete(m.tribes, id)
	delete(m.events, id)
	return nil
}

// NextTribeID reserves an id above every id handed out or stored so far.
func (m *MemoryStore) NextTribeID(context.Context) (tribe.TribeID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.tribes {
		m.lastID = max(m.lastID, id)
	}
	m.lastID++
	return m.lastID, nil
}

func (m *MemoryStore) TribeIDs(context.Context) ([]tribe.TribeID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]tribe.TribeID, 0, len(m.tribes))
	for id := range m.tribes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemoryStore) SaveEvents(_ context.Context, events []EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range events {
		m.events[e.TribeID] = append(m.events[e.TribeID], e)
	}
	return nil
}

// RecentEvents returns up to limit of a tribe's newest events, newest first.
func (m *MemoryStore) RecentEvents(_ context.Context, id tribe.TribeID, limit int) ([]EventRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.events[id]
	out := make([]EventRecord, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *MemoryStore) SaveMeta(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[key] = value
	return nil
}

// GetMeta mirrors DB.GetMeta: missing keys return sql.ErrNoRows.
func (m *MemoryStore) GetMeta(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.meta[key]
	if !ok {
		return "", sql.ErrNoRows
	}
	return v, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
