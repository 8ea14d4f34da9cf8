// Family upkeep: daily consumption and the fallback chain for families that
// run short: borrow from richer families, draw on the central pool, and
// finally let one member go hungry.
package engine

import (
	"sort"

	"github.com/Moszee/generic-sim/internal/tribe"
)

// Upkeep parameters.
const (
	FoodPerMember    = 3
	WaterPerMember   = 4
	LenderReserve    = 6 // Food per lender member kept back before sharing
	RecoveryHealth   = 5
	SufferingPenalty = 15
	BondGain         = 1
	BondLoss         = 2
)

// UpkeepEffect feeds every family and resolves shortages.
type UpkeepEffect struct{}

func (UpkeepEffect) Name() string                  { return "FamilyUpkeep" }
func (UpkeepEffect) Phase() Phase                  { return PhaseUpkeep }
func (UpkeepEffect) Priority() int                 { return DefaultPriority }
func (UpkeepEffect) ShouldApply(*TickContext) bool { return true }

func (UpkeepEffect) Apply(ctx *TickContext) {
	t := ctx.Tribe
	for _, f := range t.Families {
		if f.Size() == 0 {
			continue
		}
		upkeepFamily(ctx, f)
	}
}

// UpkeepOutcome is how a family's upkeep resolved.
type UpkeepOutcome uint8

const (
	OutcomeSatisfied UpkeepOutcome = iota
	OutcomeBorrowed
	OutcomeCentral
	OutcomeSuffered
)

func upkeepFamily(ctx *TickContext, f *tribe.Family) UpkeepOutcome {
	t := ctx.Tribe
	needFood := f.Size() * FoodPerMember
	needWater := f.Size() * WaterPerMember

	if Consume(f) {
		for _, p := range t.MembersOf(f) {
			p.AdjustHealth(RecoveryHealth)
		}
		return OutcomeSatisfied
	}

	if lender := Borrow(ctx, f, needFood, needWater); lender != nil {
		ctx.Record("sharing", "%s borrowed from %s", f.Name, lender.Name)
		return OutcomeBorrowed
	}

	if t.Policy.EnableCentralStorage && DrawCentral(t, f, needFood, needWater) {
		ctx.Record("sharing", "%s drew on central storage", f.Name)
		return OutcomeCentral
	}

	if victim := SelectSufferer(t, f, t.Policy.SharingPriority, ctx.RNG); victim != nil {
		victim.AdjustHealth(-SufferingPenalty)
		ctx.Record("suffering", "%s of %s went hungry (health %d)", victim.Name, f.Name, victim.Health)
	}
	return OutcomeSuffered
}

// Consume deducts the family's daily needs and reports whether storage
// covered them in full. Storage is reduced either way, never below zero.
func Consume(f *tribe.Family) bool {
	needFood := f.Size() * FoodPerMember
	needWater := f.Size() * WaterPerMember
	sufficient := f.Storage.Covers(needFood, needWater)
	f.Storage.Add(-needFood, -needWater)
	return sufficient
}

// Borrow asks the other families, richest first, to share. Each lender with
// surplus food gets one roll against the bond level: success transfers up to
// half its stock (bounded by need) and strengthens the bond; failure weakens
// it and moves on. Returns the lender, or nil if nobody shared.
func Borrow(ctx *TickContext, needy *tribe.Family, needFood, needWater int) *tribe.Family {
	t := ctx.Tribe

	lenders := make([]*tribe.Family, 0, len(t.Families))
	for _, f := range t.Families {
		if f.ID != needy.ID {
			lenders = append(lenders, f)
		}
	}
	sort.SliceStable(lenders, func(i, j int) bool {
		return lenders[i].Storage.Total() > lenders[j].Storage.Total()
	})

	for _, lender := range lenders {
		if lender.Storage.Food-lender.Size()*LenderReserve <= 0 {
			continue
		}
		if ctx.RNG.Intn(100) >= t.BondLevel {
			t.AdjustBond(-BondLoss)
			continue
		}

		giveFood := min(needFood, lender.Storage.Food/2)
		giveWater := min(needWater, lender.Storage.Water/2)
		gotFood, gotWater := lender.Storage.Withdraw(giveFood, giveWater)
		needy.Storage.Add(gotFood, gotWater)
		t.AdjustBond(BondGain)
		return lender
	}
	return nil
}

// DrawCentral moves up to the needed amounts from the central pool into the
// family's storage. Reports whether anything was received.
func DrawCentral(t *tribe.Tribe, f *tribe.Family, needFood, needWater int) bool {
	if !t.Policy.EnableCentralStorage || t.Central == nil {
		return false
	}
	gotFood, gotWater := t.Central.Withdraw(needFood, needWater)
	f.Storage.Add(gotFood, gotWater)
	return gotFood > 0 || gotWater > 0
}

// SelectSufferer picks the member who absorbs a shortage. Returns nil for an
// empty family.
func SelectSufferer(t *tribe.Tribe, f *tribe.Family, priority tribe.SharingPriority, rng RNG) *tribe.Person {
	members := t.MembersOf(f)
	if len(members) == 0 {
		return nil
	}

	switch priority {
	case tribe.SharingElder:
		if p := firstWithRole(members, tribe.RoleElder); p != nil {
			return p
		}
		return oldest(members)
	case tribe.SharingChild:
		if p := firstWithRole(members, tribe.RoleChild); p != nil {
			return p
		}
		return youngest(members)
	case tribe.SharingHunter:
		if p := firstWithRole(members, tribe.RoleHunter); p != nil {
			return p
		}
		return members[0]
	case tribe.SharingGatherer:
		if p := firstWithRole(members, tribe.RoleGatherer); p != nil {
			return p
		}
		return members[0]
	case tribe.SharingYoungest:
		return youngest(members)
	case tribe.SharingRandom:
		return members[rng.Intn(len(members))]
	default:
		return members[0]
	}
}

func firstWithRole(members []*tribe.Person, r tribe.Role) *tribe.Person {
	for _, p := range members {
		if p.Role == r {
			return p
		}
	}
	return nil
}

// oldest and youngest keep the first member on ties.
func oldest(members []*tribe.Person) *tribe.Person {
	best := members[0]
	for _, p := range members[1:] {
		if p.Age > best.Age {
			best = p
		}
	}
	return best
}

func youngest(members []*tribe.Person) *tribe.Person {
	best := members[0]
	for _, p := range members[1:] {
		if p.Age < best.Age {
			best = p
		}
	}
	return best
}
