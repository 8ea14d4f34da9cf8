// Population dynamics: yearly aging and the role changes that come with it.
package engine

import (
	"github.com/Moszee/generic-sim/internal/tribe"
)

// TicksPerYear is the number of ticks between birthdays.
const TicksPerYear = 365

// StartingSkill is assigned to the skill of a child's new adult role.
const StartingSkill = 0.5

// AgingEffect ages every member once a year and promotes by age: children
// become hunters or gatherers at 16, anyone reaching 60 becomes an elder.
type AgingEffect struct{}

func (AgingEffect) Name() string  { return "Aging" }
func (AgingEffect) Phase() Phase  { return PhasePopulationProgress }
func (AgingEffect) Priority() int { return DefaultPriority }

func (AgingEffect) ShouldApply(ctx *TickContext) bool {
	return ctx.Tick()%TicksPerYear == 0
}

func (AgingEffect) Apply(ctx *TickContext) {
	for _, p := range ctx.Tribe.Members {
		p.Age++

		switch {
		case p.Age >= tribe.ElderAge && p.Role != tribe.RoleElder:
			p.Role = tribe.RoleElder
			ctx.Record("aging", "%s became an elder at %d", p.Name, p.Age)
		case p.Age >= tribe.AdultAge && p.Age < tribe.ElderAge && p.Role == tribe.RoleChild:
			if ctx.RNG.Intn(2) == 0 {
				p.Role = tribe.RoleHunter
				p.SetHuntingSkill(StartingSkill)
			} else {
				p.Role = tribe.RoleGatherer
				p.SetGatheringSkill(StartingSkill)
			}
			ctx.Record("aging", "%s came of age as a %s", p.Name, p.Role)
		}
	}
}

// ProgressEffect adds the tick's net progress: young adults and adults
// generate, knowledge decays unless elders preserve it.
type ProgressEffect struct{}

func (ProgressEffect) Name() string                  { return "SocietyProgress" }
func (ProgressEffect) Phase() Phase                  { return PhaseSocietyProgress }
func (ProgressEffect) Priority() int                 { return DefaultPriority }
func (ProgressEffect) ShouldApply(*TickContext) bool { return true }

func (ProgressEffect) Apply(ctx *TickContext) {
	rates := tribe.Progress(ctx.Tribe)
	ctx.Tribe.AddProgress(rates.Net)
}
