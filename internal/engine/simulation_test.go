package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Moszee/generic-sim/internal/persistence"
	"github.com/Moszee/generic-sim/internal/tribe"
)

// flakyStore fails saves for one tribe.
type flakyStore struct {
	*persistence.MemoryStore
	failID tribe.TribeID
}

func (s *flakyStore) SaveTribe(ctx context.Context, t *tribe.Tribe) error {
	if t.ID == s.failID {
		return errors.New("disk full")
	}
	return s.MemoryStore.SaveTribe(ctx, t)
}

type countingObserver struct {
	mu        sync.Mutex
	completed int
	failed    []tribe.TribeID
}

func (o *countingObserver) TickCompleted(*TickReport) {
	o.mu.Lock()
	o.completed++
	o.mu.Unlock()
}

func (o *countingObserver) TickFailed(id tribe.TribeID, _ error) {
	o.mu.Lock()
	o.failed = append(o.failed, id)
	o.mu.Unlock()
}

func TestSimulationFoundAssignsIDs(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulation(persistence.NewMemoryStore(), Options{Seed: 1})

	a, err := sim.Found(ctx, "Alpha", "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := sim.Found(ctx, "Beta", "")
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != 1 || b.ID != 2 {
		t.Errorf("ids = %d, %d", a.ID, b.ID)
	}

	all, err := sim.Tribes(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("tribes = %d, %v", len(all), err)
	}
	if len(all[0].Members) != len(tribe.DefaultRoster()) {
		t.Errorf("members = %d", len(all[0].Members))
	}
}

func TestSimulationFoundAfterDeleteUsesFreshID(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulation(persistence.NewMemoryStore(), Options{Seed: 1})

	a, _ := sim.Found(ctx, "Alpha", "")
	b, _ := sim.Found(ctx, "Beta", "")
	if err := sim.Delete(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	c, err := sim.Found(ctx, "Gamma", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.ID == b.ID || c.ID == a.ID {
		t.Errorf("new tribe reused id %d", c.ID)
	}
	if c.ID != 3 {
		t.Errorf("id = %d, want 3", c.ID)
	}
}

func TestSimulationTickTribePersists(t *testing.T) {
	ctx := context.Background()
	obs := &countingObserver{}
	sim := NewSimulation(persistence.NewMemoryStore(), Options{Seed: 1, Observer: obs})
	tr, _ := sim.Found(ctx, "Alpha", "")

	for i := 1; i <= 3; i++ {
		report, err := sim.TickTribe(ctx, tr.ID)
		if err != nil {
			t.Fatal(err)
		}
		if report.Tick != uint64(i) || report.TribeID != tr.ID {
			t.Errorf("report = %+v", report)
		}
	}

	stored, _ := sim.Tribe(ctx, tr.ID)
	if stored.CurrentTick != 3 {
		t.Errorf("stored tick = %d", stored.CurrentTick)
	}
	if obs.completed != 3 {
		t.Errorf("observer saw %d ticks", obs.completed)
	}

	if _, err := sim.TickTribe(ctx, 42); !errors.Is(err, tribe.ErrNotFound) {
		t.Errorf("missing tribe: err = %v", err)
	}
}

func TestSimulationTickIsReproducible(t *testing.T) {
	ctx := context.Background()
	run := func() *tribe.Tribe {
		sim := NewSimulation(persistence.NewMemoryStore(), Options{Seed: 5})
		tr, _ := sim.Found(ctx, "Alpha", "")
		for i := 0; i < 20; i++ {
			if _, err := sim.TickTribe(ctx, tr.ID); err != nil {
				t.Fatal(err)
			}
		}
		out, _ := sim.Tribe(ctx, tr.ID)
		return out
	}
	a, b := run(), run()
	if a.BondLevel != b.BondLevel || a.Resources != b.Resources || len(a.Members) != len(b.Members) {
		t.Error("same seed produced different histories")
	}
}

func TestSimulationTickAllSkipsFailures(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: persistence.NewMemoryStore()}
	obs := &countingObserver{}
	sim := NewSimulation(store, Options{Seed: 1, Workers: 2, Observer: obs})
	for _, name := range []string{"A", "B", "C"} {
		if _, err := sim.Found(ctx, name, ""); err != nil {
			t.Fatal(err)
		}
	}
	store.failID = 2

	n, err := sim.TickAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("ticked = %d, want 2", n)
	}
	if len(obs.failed) != 1 || obs.failed[0] != 2 {
		t.Errorf("failed = %v", obs.failed)
	}

	failed, _ := sim.Tribe(ctx, 2)
	if failed.CurrentTick != 0 {
		t.Errorf("failed tribe advanced to tick %d", failed.CurrentTick)
	}
	ok, _ := sim.Tribe(ctx, 3)
	if ok.CurrentTick != 1 {
		t.Errorf("tribe 3 tick = %d", ok.CurrentTick)
	}
}

func TestSimulationUpdatePolicy(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulation(persistence.NewMemoryStore(), Options{})
	tr, _ := sim.Found(ctx, "Alpha", "")

	rate := 25
	updated, err := sim.UpdatePolicy(ctx, tr.ID, tribe.PolicyUpdate{FoodTaxRate: &rate})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Policy.FoodTaxRate != 25 {
		t.Errorf("food tax = %d", updated.Policy.FoodTaxRate)
	}

	bad := 150
	if _, err := sim.UpdatePolicy(ctx, tr.ID, tribe.PolicyUpdate{WaterTaxRate: &bad}); !errors.Is(err, tribe.ErrInvalidPolicy) {
		t.Errorf("err = %v, want ErrInvalidPolicy", err)
	}
	stored, _ := sim.Tribe(ctx, tr.ID)
	if stored.Policy.WaterTaxRate != tribe.DefaultPolicy().WaterTaxRate {
		t.Error("rejected update was persisted")
	}
}

func TestSimulationDelete(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulation(persistence.NewMemoryStore(), Options{})
	tr, _ := sim.Found(ctx, "Alpha", "")

	if err := sim.Delete(ctx, tr.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := sim.Tribe(ctx, tr.ID); !errors.Is(err, tribe.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
	if err := sim.Delete(ctx, tr.ID); !errors.Is(err, tribe.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestSimulationSubscribe(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulation(persistence.NewMemoryStore(), Options{})
	tr, _ := sim.Found(ctx, "Alpha", "")

	id, ch := sim.Subscribe()
	if _, err := sim.TickTribe(ctx, tr.ID); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-ch:
		if r.TribeID != tr.ID || r.Tick != 1 {
			t.Errorf("report = %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("no report delivered")
	}

	sim.Unsubscribe(id)
	if _, open := <-ch; open {
		t.Error("channel still open after unsubscribe")
	}
	sim.Unsubscribe(id)
}
