package engine

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry holds effects grouped by phase, each group sorted by priority.
// Effects of equal priority keep registration order.
type Registry struct {
	mu      sync.RWMutex
	byPhase map[Phase][]Effect
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byPhase: make(map[Phase][]Effect)}
}

// Register adds effects to their phases. Intended for startup, before any
// tick runs.
func (r *Registry) Register(effects ...Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()

	touched := make(map[Phase]bool)
	for _, e := range effects {
		if e == nil {
			continue
		}
		r.byPhase[e.Phase()] = append(r.byPhase[e.Phase()], e)
		touched[e.Phase()] = true
		slog.Debug("effect registered", "effect", e.Name(), "phase", e.Phase(), "priority", e.Priority())
	}
	for phase := range touched {
		list := r.byPhase[phase]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() < list[j].Priority()
		})
	}
}

// ExecutePhase runs every applicable effect registered for phase.
func (r *Registry) ExecutePhase(phase Phase, ctx *TickContext) {
	for _, e := range r.EffectsForPhase(phase) {
		if e.ShouldApply(ctx) {
			e.Apply(ctx)
		}
	}
}

// EffectsForPhase returns the phase's effects in execution order.
func (r *Registry) EffectsForPhase(phase Phase) []Effect {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Effect(nil), r.byPhase[phase]...)
}

// Count returns the total number of registered effects.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, list := range r.byPhase {
		n += len(list)
	}
	return n
}

// Summary maps each phase with effects to their names in execution order.
func (r *Registry) Summary() map[Phase][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Phase][]string, len(r.byPhase))
	for phase, list := range r.byPhase {
		if len(list) == 0 {
			continue
		}
		names := make([]string, len(list))
		for i, e := range list {
			names[i] = e.Name()
		}
		out[phase] = names
	}
	return out
}
