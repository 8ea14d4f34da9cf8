package engine

import (
	"fmt"

	"github.com/Moszee/generic-sim/internal/tribe"
)

// Event is a notable occurrence during a tick.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "gathering", "sharing", "suffering", "death", "aging", …
}

// TickContext is the scratch state shared by the effects of one tick.
type TickContext struct {
	Tribe *tribe.Tribe
	RNG   RNG

	// Derived once before gathering.
	ElderCount          int
	ElderGatheringBonus float64 // Reported by statistics; yields do not use it

	snapshot map[tribe.FamilyID]tribe.Resources
	events   []Event
	deaths   []*tribe.Person
}

// NewTickContext builds a context for t. Call SnapshotFamilies before any
// gathering effect runs.
func NewTickContext(t *tribe.Tribe, rng RNG) *TickContext {
	return &TickContext{
		Tribe:               t,
		RNG:                 rng,
		ElderGatheringBonus: 1.0,
		snapshot:            make(map[tribe.FamilyID]tribe.Resources, len(t.Families)),
	}
}

// SnapshotFamilies records every family's storage as the baseline for
// FoodGathered and WaterGathered.
func (c *TickContext) SnapshotFamilies() {
	for _, f := range c.Tribe.Families {
		c.snapshot[f.ID] = f.Storage
	}
}

// ComputeElderBonus counts members in the elder age group and derives the
// elder bonus factor.
func (c *TickContext) ComputeElderBonus() {
	c.ElderCount = tribe.Progress(c.Tribe).Elders
	c.ElderGatheringBonus = 1.0 + tribe.ElderGatheringBonus(c.ElderCount)/100
}

// FoodGathered returns how much the family's food grew since the snapshot.
// Families without a snapshot report zero.
func (c *TickContext) FoodGathered(id tribe.FamilyID) int {
	f, base, ok := c.baseline(id)
	if !ok {
		return 0
	}
	return max(0, f.Storage.Food-base.Food)
}

// WaterGathered returns how much the family's water grew since the snapshot.
func (c *TickContext) WaterGathered(id tribe.FamilyID) int {
	f, base, ok := c.baseline(id)
	if !ok {
		return 0
	}
	return max(0, f.Storage.Water-base.Water)
}

func (c *TickContext) baseline(id tribe.FamilyID) (*tribe.Family, tribe.Resources, bool) {
	base, ok := c.snapshot[id]
	if !ok {
		return nil, base, false
	}
	f := c.Tribe.Family(id)
	if f == nil {
		return nil, base, false
	}
	return f, base, true
}

// Tick returns the tick being processed.
func (c *TickContext) Tick() uint64 {
	return c.Tribe.CurrentTick
}

// Record appends an event for this tick.
func (c *TickContext) Record(category, format string, args ...any) {
	c.events = append(c.events, Event{
		Tick:        c.Tribe.CurrentTick,
		Description: fmt.Sprintf(format, args...),
		Category:    category,
	})
}

// Events returns the events recorded so far.
func (c *TickContext) Events() []Event {
	return c.events
}

// Deaths returns members removed during cleanup.
func (c *TickContext) Deaths() []*tribe.Person {
	return c.deaths
}
