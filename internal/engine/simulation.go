// Simulation ties the tick pipeline to a store and serialises access per
// tribe so ticks and policy updates never interleave.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Moszee/generic-sim/internal/tribe"
)

// Store persists tribes. LoadTribe returns an error wrapping
// tribe.ErrNotFound for unknown ids.
type Store interface {
	LoadTribe(ctx context.Context, id tribe.TribeID) (*tribe.Tribe, error)
	SaveTribe(ctx context.Context, t *tribe.Tribe) error
	DeleteTribe(ctx context.Context, id tribe.TribeID) error
	TribeIDs(ctx context.Context) ([]tribe.TribeID, error)
	// NextTribeID reserves an id no tribe has held before.
	NextTribeID(ctx context.Context) (tribe.TribeID, error)
}

// Observer is notified after every tick attempt.
type Observer interface {
	TickCompleted(report *TickReport)
	TickFailed(id tribe.TribeID, err error)
}

// Options configures a Simulation.
type Options struct {
	Seed     int64     // Master seed for per-tick RNGs and founding
	Workers  int       // Parallel tribe ticks in TickAll
	Jitter   float64   // Founder skill jitter
	Registry *Registry // Nil uses the default effects
	Observer Observer
}

// Simulation is the service layer over the engine.
type Simulation struct {
	store    Store
	orch     *Orchestrator
	foundry  *tribe.Foundry
	seed     int64
	workers  int
	observer Observer

	mu    sync.Mutex
	locks map[tribe.TribeID]*sync.Mutex

	foundMu sync.Mutex

	subMu  sync.Mutex
	subs   map[int]chan *TickReport
	nextID int
}

// NewSimulation creates a simulation over store.
func NewSimulation(store Store, opts Options) *Simulation {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Simulation{
		store:    store,
		orch:     NewOrchestrator(opts.Registry),
		foundry:  tribe.NewFoundry(tribe.FoundingConfig{Seed: opts.Seed, Jitter: opts.Jitter}),
		seed:     opts.Seed,
		workers:  workers,
		observer: opts.Observer,
		locks:    make(map[tribe.TribeID]*sync.Mutex),
		subs:     make(map[int]chan *TickReport),
	}
}

// Registry returns the effect registry ticks run through.
func (s *Simulation) Registry() *Registry {
	return s.orch.Registry
}

func (s *Simulation) lock(id tribe.TribeID) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Found creates and stores a new tribe with the default roster.
func (s *Simulation) Found(ctx context.Context, name, description string) (*tribe.Tribe, error) {
	s.foundMu.Lock()
	defer s.foundMu.Unlock()

	id, err := s.store.NextTribeID(ctx)
	if err != nil {
		return nil, fmt.Errorf("reserve tribe id: %w", err)
	}

	t := s.foundry.Found(id, name, description)
	if err := s.store.SaveTribe(ctx, t); err != nil {
		return nil, fmt.Errorf("save tribe %d: %w", t.ID, err)
	}
	slog.Info("tribe founded", "tribe", t.ID, "name", t.Name, "members", len(t.Members), "families", len(t.Families))
	return t, nil
}

// Tribe loads a tribe by id.
func (s *Simulation) Tribe(ctx context.Context, id tribe.TribeID) (*tribe.Tribe, error) {
	return s.store.LoadTribe(ctx, id)
}

// Tribes loads every stored tribe in id order.
func (s *Simulation) Tribes(ctx context.Context) ([]*tribe.Tribe, error) {
	ids, err := s.store.TribeIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tribes: %w", err)
	}
	out := make([]*tribe.Tribe, 0, len(ids))
	for _, id := range ids {
		t, err := s.store.LoadTribe(ctx, id)
		if errors.Is(err, tribe.ErrNotFound) {
			continue // Deleted since listing.
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Stats returns the statistics summary for a tribe.
func (s *Simulation) Stats(ctx context.Context, id tribe.TribeID) (tribe.Statistics, error) {
	t, err := s.store.LoadTribe(ctx, id)
	if err != nil {
		return tribe.Statistics{}, err
	}
	return tribe.Stats(t), nil
}

// TickSeed derives the RNG seed for a tribe's tick so a replay from the same
// stored state reproduces the same tick.
func TickSeed(master int64, id tribe.TribeID, tick uint64) int64 {
	return master + int64(id)*1_000_003 + int64(tick)
}

// TickTribe loads, advances and saves one tribe. The stored state is left
// untouched when saving fails, so the tick can be retried.
func (s *Simulation) TickTribe(ctx context.Context, id tribe.TribeID) (*TickReport, error) {
	unlock := s.lock(id)
	defer unlock()

	t, err := s.store.LoadTribe(ctx, id)
	if err != nil {
		s.tickFailed(id, err)
		return nil, err
	}

	rng := rand.New(rand.NewSource(TickSeed(s.seed, id, t.CurrentTick+1)))
	report := s.orch.Tick(t, rng)

	if err := s.store.SaveTribe(ctx, t); err != nil {
		err = fmt.Errorf("save tribe %d at tick %d: %w", id, t.CurrentTick, err)
		s.tickFailed(id, err)
		return nil, err
	}

	if s.observer != nil {
		s.observer.TickCompleted(report)
	}
	s.publish(report)
	return report, nil
}

func (s *Simulation) tickFailed(id tribe.TribeID, err error) {
	if s.observer != nil {
		s.observer.TickFailed(id, err)
	}
}

// TickAll advances every stored tribe once, up to Workers at a time. A
// failing tribe is logged and skipped. Returns how many tribes ticked.
func (s *Simulation) TickAll(ctx context.Context) (int, error) {
	ids, err := s.store.TribeIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tribes: %w", err)
	}

	var ticked atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if _, err := s.TickTribe(gctx, id); err != nil {
				slog.Error("tick failed", "tribe", id, "error", err)
				return nil
			}
			ticked.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(ticked.Load()), err
	}

	slog.Info("tick round complete", "tribes", len(ids), "ticked", ticked.Load())
	return int(ticked.Load()), nil
}

// UpdatePolicy applies a partial policy change to a tribe.
func (s *Simulation) UpdatePolicy(ctx context.Context, id tribe.TribeID, u tribe.PolicyUpdate) (*tribe.Tribe, error) {
	unlock := s.lock(id)
	defer unlock()

	t, err := s.store.LoadTribe(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.ApplyPolicyUpdate(u); err != nil {
		return nil, err
	}
	if err := s.store.SaveTribe(ctx, t); err != nil {
		return nil, fmt.Errorf("save tribe %d: %w", id, err)
	}
	slog.Info("policy updated", "tribe", id, "policy", t.Policy.Name)
	return t, nil
}

// Delete removes a tribe with its families and members.
func (s *Simulation) Delete(ctx context.Context, id tribe.TribeID) error {
	unlock := s.lock(id)
	defer unlock()

	if err := s.store.DeleteTribe(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
	slog.Info("tribe deleted", "tribe", id)
	return nil
}

// Subscribe registers a listener for tick reports. Slow listeners miss
// reports rather than blocking ticks.
func (s *Simulation) Subscribe() (int, <-chan *TickReport) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextID++
	ch := make(chan *TickReport, 32)
	s.subs[s.nextID] = ch
	return s.nextID, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Simulation) publish(r *TickReport) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- r:
		default:
			slog.Debug("subscriber behind, dropping report", "sub_id", id, "tribe", r.TribeID)
		}
	}
}
