package economy

import (
	"encoding/json"
	"sort"
	"sync"
)

// Ledger stores named resource and coefficient values. Values never go
// below zero. Missing keys read as zero.
type Ledger struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{values: make(map[string]float64)}
}

// Value returns the stored amount for id, or 0 when unset.
func (l *Ledger) Value(id string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.values[id]
}

// Set stores v for id, clamped to zero.
func (l *Ledger) Set(id string, v float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(id, v)
}

func (l *Ledger) set(id string, v float64) {
	if l.values == nil {
		l.values = make(map[string]float64)
	}
	if v < 0 {
		v = 0
	}
	l.values[id] = v
}

// Add adjusts id by delta. Negative results are clamped to zero.
func (l *Ledger) Add(id string, delta float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(id, l.values[id]+delta)
}

// Remove subtracts amount when enough is stored and reports whether it did.
// The value is left untouched on failure.
func (l *Ledger) Remove(id string, amount float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.values[id] < amount {
		return false
	}
	l.set(id, l.values[id]-amount)
	return true
}

// Has reports whether at least amount of id is stored.
func (l *Ledger) Has(id string, amount float64) bool {
	return l.Value(id) >= amount
}

// InitFromCatalog fills in defaults for entries not already present.
func (l *Ledger) InitFromCatalog(c Catalog) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, def := range c {
		if _, ok := l.values[id]; ok {
			continue
		}
		l.set(id, def.Default)
	}
}

// Export returns a copy of every stored value.
func (l *Ledger) Export() map[string]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]float64, len(l.values))
	for k, v := range l.values {
		out[k] = v
	}
	return out
}

// Import replaces the ledger contents with state. Keys absent from state
// are dropped.
func (l *Ledger) Import(state map[string]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values = make(map[string]float64, len(state))
	for k, v := range state {
		l.set(k, v)
	}
}

// Keys returns the stored ids in sorted order.
func (l *Ledger) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.values))
	for k := range l.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	c := NewLedger()
	c.Import(l.Export())
	return c
}

// MarshalJSON encodes the ledger as a flat object.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Export())
}

// UnmarshalJSON replaces the ledger contents with the decoded object.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var state map[string]float64
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	l.Import(state)
	return nil
}
