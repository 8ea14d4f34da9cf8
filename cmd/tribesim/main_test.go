package main

import (
	"context"
	"testing"
	"time"

	"github.com/Moszee/generic-sim/internal/config"
	"github.com/Moszee/generic-sim/internal/engine"
	"github.com/Moszee/generic-sim/internal/persistence"
)

func TestMasterSeedPersists(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemoryStore()

	first, err := masterSeed(ctx, config.Config{}, db)
	if err != nil || first == 0 {
		t.Fatalf("seed = %d, %v", first, err)
	}
	again, err := masterSeed(ctx, config.Config{}, db)
	if err != nil || again != first {
		t.Errorf("restart seed = %d, want stored %d", again, first)
	}
	if fixed, _ := masterSeed(ctx, config.Config{Seed: 7}, db); fixed != 7 {
		t.Errorf("configured seed = %d", fixed)
	}
}

func TestSeedTribesOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemoryStore()
	sim := engine.NewSimulation(db, engine.Options{Seed: 1})

	if err := seedTribes(ctx, sim, db, 10); err != nil {
		t.Fatal(err)
	}
	tribes, _ := sim.Tribes(ctx)
	if len(tribes) != 10 {
		t.Fatalf("tribes = %d", len(tribes))
	}
	if tribes[0].Name != "River" || tribes[8].Name != "River 2" {
		t.Errorf("names = %q, %q", tribes[0].Name, tribes[8].Name)
	}

	if err := seedTribes(ctx, sim, db, 3); err != nil {
		t.Fatal(err)
	}
	if ids, _ := db.TribeIDs(ctx); len(ids) != 10 {
		t.Errorf("reseeding added tribes: %d", len(ids))
	}
}

func TestJournalStoresTickEvents(t *testing.T) {
	db := persistence.NewMemoryStore()
	sim := engine.NewSimulation(db, engine.Options{Seed: 1})
	ctx, cancel := context.WithCancel(context.Background())
	tr, err := sim.Found(ctx, "River", "")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		journal(ctx, sim, db)
	}()

	// Keep ticking until the journal has subscribed and stored something.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := sim.TickTribe(ctx, tr.ID); err != nil {
			t.Fatal(err)
		}
		events, _ := db.RecentEvents(ctx, tr.ID, 1)
		if len(events) == 1 {
			if events[0].TribeID != tr.ID || events[0].Tick == 0 {
				t.Errorf("event = %+v", events[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("journal stored no events")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done
}
