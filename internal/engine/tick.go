// Package engine provides the tick pipeline: phases, effects, the registry
// that orders them, and the loop that drives tribes forward.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Moszee/generic-sim/internal/tribe"
)

// TickReport summarises one processed tick.
type TickReport struct {
	ID         uuid.UUID        `json:"id"`
	TribeID    tribe.TribeID    `json:"tribe_id"`
	Tick       uint64           `json:"tick"`
	Date       string           `json:"date"`
	Events     []Event          `json:"events"`
	Deaths     int              `json:"deaths"`
	Population int              `json:"population"`
	Resources  tribe.Resources  `json:"resources"`
	Central    *tribe.Resources `json:"central,omitempty"`
	BondLevel  int              `json:"bond_level"`
	Progress   int              `json:"progress_points"`
	Duration   time.Duration    `json:"duration_ns"`
}

// Orchestrator runs the registry's phases over one tribe per call.
type Orchestrator struct {
	Registry *Registry
}

// NewOrchestrator returns an orchestrator over r, or over the default
// registry when r is nil.
func NewOrchestrator(r *Registry) *Orchestrator {
	if r == nil {
		r = NewDefaultRegistry()
	}
	return &Orchestrator{Registry: r}
}

// Tick advances t by one tick and returns a report. The tribe is mutated in
// place; the caller must hold exclusive access to it for the duration.
func (o *Orchestrator) Tick(t *tribe.Tribe, rng RNG) *TickReport {
	start := time.Now()
	t.CurrentTick++

	ctx := NewTickContext(t, rng)
	ctx.SnapshotFamilies()
	ctx.ComputeElderBonus()

	for _, phase := range Phases {
		o.Registry.ExecutePhase(phase, ctx)
	}

	report := &TickReport{
		ID:         uuid.New(),
		TribeID:    t.ID,
		Tick:       t.CurrentTick,
		Date:       SimDate(t.CurrentTick),
		Events:     ctx.Events(),
		Deaths:     len(ctx.Deaths()),
		Population: len(t.Members),
		Resources:  t.Resources,
		BondLevel:  t.BondLevel,
		Progress:   t.ProgressPoints,
		Duration:   time.Since(start),
	}
	if t.Central != nil {
		c := *t.Central
		report.Central = &c
	}

	slog.Debug("tick processed",
		"tribe", t.ID,
		"tick", t.CurrentTick,
		"population", report.Population,
		"food", t.Resources.Food,
		"water", t.Resources.Water,
		"bond", t.BondLevel,
		"progress", t.ProgressPoints,
		"events", len(report.Events),
	)
	return report
}

// Runner calls OnTick every Interval until its context is cancelled.
type Runner struct {
	Interval time.Duration
	Rounds   uint64 // Completed calls to OnTick

	OnTick func(ctx context.Context, round uint64)
}

// NewRunner creates a runner with the given interval.
func NewRunner(interval time.Duration, onTick func(ctx context.Context, round uint64)) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Runner{Interval: interval, OnTick: onTick}
}

// Run blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	slog.Info("scheduler started", "interval", r.Interval)

	timer := time.NewTimer(r.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped", "rounds", r.Rounds)
			return
		case <-timer.C:
		}

		start := time.Now()
		r.step(ctx)
		if ctx.Err() != nil {
			slog.Info("scheduler stopped", "rounds", r.Rounds)
			return
		}

		// Sleep for the remainder of the interval.
		wait := r.Interval - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}

func (r *Runner) step(ctx context.Context) {
	r.Rounds++
	if r.OnTick != nil {
		r.OnTick(ctx, r.Rounds)
	}
}

// SimDate renders a tick as a calendar date: 365 ticks to a year, four
// seasons of roughly 91 days.
func SimDate(tick uint64) string {
	if tick == 0 {
		return "Founding"
	}
	day := (tick - 1) % TicksPerYear
	year := (tick-1)/TicksPerYear + 1

	seasonNames := [4]string{"Spring", "Summer", "Autumn", "Winter"}
	season := day * 4 / TicksPerYear

	return fmt.Sprintf("%s Day %d, Year %d", seasonNames[season], day+1, year)
}
