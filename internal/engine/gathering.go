// Gathering: hunters and gatherers fill their family's storage, and the
// central pool takes its share of what was gathered this tick.
package engine

import (
	"github.com/Moszee/generic-sim/internal/tribe"
)

// Gathering parameters.
const (
	MinWorkingHealth = 30 // Members at or below this are too weak to work
	SkillGain        = 0.01
	DefaultPriority  = 100
)

// GatheringEffect collects food and water for every able hunter and gatherer.
type GatheringEffect struct{}

func (GatheringEffect) Name() string                  { return "Gathering" }
func (GatheringEffect) Phase() Phase                  { return PhaseResourceCollection }
func (GatheringEffect) Priority() int                 { return DefaultPriority }
func (GatheringEffect) ShouldApply(*TickContext) bool { return true }

func (GatheringEffect) Apply(ctx *TickContext) {
	t := ctx.Tribe
	var totalFood, totalWater, lost int

	for _, p := range t.Members {
		if p.Health <= MinWorkingHealth {
			continue
		}
		food, water := gather(ctx, p)
		if food == 0 && water == 0 {
			continue
		}

		f := t.FamilyOf(p)
		if f == nil {
			lost += food + water
			continue
		}
		f.Storage.Add(food, water)
		totalFood += food
		totalWater += water
	}

	if totalFood > 0 || totalWater > 0 {
		ctx.Record("gathering", "gathered %d food and %d water", totalFood, totalWater)
	}
	if lost > 0 {
		ctx.Record("gathering", "%d units gathered by members without a family were lost", lost)
	}
}

// gather returns one member's yield and applies skill growth.
func gather(ctx *TickContext, p *tribe.Person) (food, water int) {
	policy := ctx.Tribe.Policy

	switch p.Role {
	case tribe.RoleHunter:
		base := 10 + ctx.RNG.Intn(10)
		food = int(float64(base)*(1+p.HuntingSkill)) + policy.HuntingIncentive
		if food > 15 {
			p.SetHuntingSkill(p.HuntingSkill + SkillGain)
		}
	case tribe.RoleGatherer:
		baseFood := 5 + ctx.RNG.Intn(5)
		baseWater := 8 + ctx.RNG.Intn(8)
		mult := 1 + p.GatheringSkill
		food = int(float64(baseFood)*mult) + policy.GatheringIncentive
		water = int(float64(baseWater)*mult) + policy.GatheringIncentive
		if food > 7 || water > 10 {
			p.SetGatheringSkill(p.GatheringSkill + SkillGain)
		}
	}
	return max(0, food), max(0, water)
}

// CentralTaxEffect diverts a share of each family's gathering into the
// central pool. The base is the per-family delta since the pre-gathering
// snapshot, never standing storage.
type CentralTaxEffect struct{}

func (CentralTaxEffect) Name() string  { return "CentralStorageTax" }
func (CentralTaxEffect) Phase() Phase  { return PhaseProduction }
func (CentralTaxEffect) Priority() int { return DefaultPriority }

func (CentralTaxEffect) ShouldApply(ctx *TickContext) bool {
	return ctx.Tribe.Policy.EnableCentralStorage
}

func (CentralTaxEffect) Apply(ctx *TickContext) {
	t := ctx.Tribe
	if t.Central == nil {
		t.Central = &tribe.Resources{}
	}
	rate := t.Policy.CentralStorageTaxRate

	var taxedFood, taxedWater int
	for _, f := range t.Families {
		foodTax := ctx.FoodGathered(f.ID) * rate / 100
		waterTax := ctx.WaterGathered(f.ID) * rate / 100
		if foodTax <= 0 && waterTax <= 0 {
			continue
		}
		gotFood, gotWater := f.Storage.Withdraw(foodTax, waterTax)
		t.Central.Add(gotFood, gotWater)
		taxedFood += gotFood
		taxedWater += gotWater
	}

	if taxedFood > 0 || taxedWater > 0 {
		ctx.Record("tax", "central storage collected %d food and %d water", taxedFood, taxedWater)
	}
}
