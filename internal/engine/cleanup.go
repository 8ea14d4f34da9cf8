package engine

import (
	"github.com/Moszee/generic-sim/internal/economy"
	"github.com/Moszee/generic-sim/internal/tribe"
)

// CleanupEffect removes members whose health reached zero.
type CleanupEffect struct{}

func (CleanupEffect) Name() string                  { return "Cleanup" }
func (CleanupEffect) Phase() Phase                  { return PhaseCleanup }
func (CleanupEffect) Priority() int                 { return DefaultPriority }
func (CleanupEffect) ShouldApply(*TickContext) bool { return true }

func (CleanupEffect) Apply(ctx *TickContext) {
	for _, p := range ctx.Tribe.RemoveDead() {
		ctx.deaths = append(ctx.deaths, p)
		ctx.Record("death", "%s has died", p.Name)
	}
}

// LedgerTallyEffect refreshes tribe totals and mirrors them into the ledger
// after cleanup.
type LedgerTallyEffect struct {
	Catalog economy.Catalog
}

func (LedgerTallyEffect) Name() string                  { return "LedgerTally" }
func (LedgerTallyEffect) Phase() Phase                  { return PhaseCleanup }
func (LedgerTallyEffect) Priority() int                 { return 200 }
func (LedgerTallyEffect) ShouldApply(*TickContext) bool { return true }

func (e LedgerTallyEffect) Apply(ctx *TickContext) {
	t := ctx.Tribe
	t.RefreshTotals()
	if t.Ledger == nil {
		t.Ledger = economy.NewLedger()
	}
	catalog := e.Catalog
	if catalog == nil {
		catalog = economy.DefaultCatalog()
	}
	t.Ledger.InitFromCatalog(catalog)

	set := func(id string, v float64) {
		if def, ok := catalog[id]; ok {
			v = def.Clamp(v)
		}
		t.Ledger.Set(id, v)
	}

	set(economy.KeyFood, float64(t.Resources.Food))
	set(economy.KeyWater, float64(t.Resources.Water))
	set(economy.KeyPopulation, float64(len(t.Members)))
	set(economy.KeyStability, float64(t.BondLevel)/tribe.MaxBondLevel)
	set(economy.KeyProgress, float64(t.ProgressPoints))

	morale := 0.0
	if n := len(t.Members); n > 0 {
		total := 0
		for _, p := range t.Members {
			total += p.Health
		}
		morale = float64(total) / float64(n) / tribe.MaxHealth
	}
	set(economy.KeyMorale, morale)
}

// DefaultEffects returns the built-in rule set.
func DefaultEffects() []Effect {
	return []Effect{
		GatheringEffect{},
		CentralTaxEffect{},
		UpkeepEffect{},
		StorageDecayEffect{},
		AgingEffect{},
		ProgressEffect{},
		CleanupEffect{},
		LedgerTallyEffect{},
	}
}

// NewDefaultRegistry returns a registry holding DefaultEffects.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(DefaultEffects()...)
	return r
}
