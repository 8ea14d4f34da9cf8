// Command tribesim runs the tribe simulation: a scheduler ticking every
// stored tribe, an HTTP API and a Prometheus endpoint.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/Moszee/generic-sim/internal/api"
	"github.com/Moszee/generic-sim/internal/config"
	"github.com/Moszee/generic-sim/internal/engine"
	"github.com/Moszee/generic-sim/internal/entropy"
	"github.com/Moszee/generic-sim/internal/metrics"
	"github.com/Moszee/generic-sim/internal/persistence"
)

// store is what the binary needs from a persistence backend.
type store interface {
	engine.Store
	api.EventLog
	SaveEvents(ctx context.Context, events []persistence.EventRecord) error
	SaveMeta(ctx context.Context, key, value string) error
	GetMeta(ctx context.Context, key string) (string, error)
	Close() error
}

var tribeNames = []string{"River", "Ash", "Stone", "Reed", "Hawk", "Moss", "Flint", "Elk"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("tribesim failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	// ── Database ──────────────────────────────────────────────────────
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("store opened", "driver", cfg.DBDriver)

	seed, err := masterSeed(ctx, cfg, db)
	if err != nil {
		return err
	}

	// ── Simulation ────────────────────────────────────────────────────
	recorder := metrics.NewRecorder()
	sim := engine.NewSimulation(db, engine.Options{
		Seed:     seed,
		Workers:  cfg.Workers,
		Jitter:   cfg.Jitter,
		Observer: recorder,
	})

	if err := seedTribes(ctx, sim, db, cfg.SeedTribes); err != nil {
		return err
	}

	journalDone := make(chan struct{})
	go func() {
		defer close(journalDone)
		journal(ctx, sim, db)
	}()

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("TRIBESIM_ADMIN_KEY not set, mutating endpoints disabled")
	}
	var apiServer *api.Server
	if cfg.Port != 0 {
		apiServer = &api.Server{
			Sim:      sim,
			Events:   db,
			Metrics:  recorder,
			Port:     cfg.Port,
			AdminKey: cfg.AdminKey,
		}
	}
	shutdownAPI := func() {}
	if apiServer != nil {
		srv := apiServer.Start()
		shutdownAPI = func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("HTTP shutdown failed", "error", err)
			}
		}
	}

	// ── Scheduler ─────────────────────────────────────────────────────
	runner := engine.NewRunner(cfg.TickInterval, func(ctx context.Context, round uint64) {
		if _, err := sim.TickAll(ctx); err != nil {
			slog.Error("tick round failed", "round", round, "error", err)
			return
		}
		if err := db.SaveMeta(ctx, "last_round", strconv.FormatUint(round, 10)); err != nil {
			slog.Error("save round failed", "error", err)
		}
	})
	if v, err := db.GetMeta(ctx, "last_round"); err == nil {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			runner.Rounds = n
			slog.Info("resuming", "round", n)
		}
	}

	runner.Run(ctx)

	shutdownAPI()
	<-journalDone
	slog.Info("simulation stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (store, error) {
	switch cfg.DBDriver {
	case "memory":
		return persistence.NewMemoryStore(), nil
	case persistence.DriverSQLite:
		if dir := filepath.Dir(cfg.DBDSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
	}
	return persistence.Open(ctx, cfg.DBDriver, cfg.DBDSN)
}

// masterSeed picks the configured seed, then a stored one, then draws a new
// seed and stores it so restarts replay the same tick streams.
func masterSeed(ctx context.Context, cfg config.Config, db store) (int64, error) {
	if cfg.Seed != 0 {
		return cfg.Seed, nil
	}
	v, err := db.GetMeta(ctx, "master_seed")
	switch {
	case err == nil:
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("stored master seed %q: %w", v, err)
		}
		return seed, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("read master seed: %w", err)
	}

	seed := entropy.NewClient(cfg.RandomOrgKey).Seed(ctx)
	if err := db.SaveMeta(ctx, "master_seed", strconv.FormatInt(seed, 10)); err != nil {
		return 0, fmt.Errorf("save master seed: %w", err)
	}
	slog.Info("new master seed", "seed", seed)
	return seed, nil
}

// seedTribes founds n tribes when the store holds none.
func seedTribes(ctx context.Context, sim *engine.Simulation, db store, n int) error {
	ids, err := db.TribeIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		slog.Info("tribes restored", "count", len(ids))
		return nil
	}
	for i := 0; i < n; i++ {
		name := tribeNames[i%len(tribeNames)]
		if i >= len(tribeNames) {
			name = fmt.Sprintf("%s %d", name, i/len(tribeNames)+1)
		}
		if _, err := sim.Found(ctx, name, "Founded at first start"); err != nil {
			return fmt.Errorf("found tribe %q: %w", name, err)
		}
	}
	return nil
}

// journal stores the events of every tick report until ctx is done.
func journal(ctx context.Context, sim *engine.Simulation, db store) {
	subID, reports := sim.Subscribe()
	defer sim.Unsubscribe(subID)

	for {
		select {
		case <-ctx.Done():
			return
		case report, ok := <-reports:
			if !ok {
				return
			}
			if err := db.SaveEvents(context.WithoutCancel(ctx), eventRecords(report)); err != nil {
				slog.Error("save events failed", "tribe", report.TribeID, "tick", report.Tick, "error", err)
			}
		}
	}
}

func eventRecords(report *engine.TickReport) []persistence.EventRecord {
	out := make([]persistence.EventRecord, 0, len(report.Events))
	for _, e := range report.Events {
		out = append(out, persistence.EventRecord{
			TribeID:     report.TribeID,
			Tick:        e.Tick,
			Description: e.Description,
			Category:    e.Category,
		})
	}
	return out
}
