package engine

import "fmt"

// Phase is a stage of tick processing. Phases run in declaration order.
type Phase uint8

const (
	PhaseResourceCollection Phase = iota
	PhaseProduction
	PhaseUpkeep
	PhaseResourceDecay
	PhasePopulationProgress
	PhaseSocietyProgress
	PhaseCleanup
)

// Phases lists every phase in execution order.
var Phases = []Phase{
	PhaseResourceCollection,
	PhaseProduction,
	PhaseUpkeep,
	PhaseResourceDecay,
	PhasePopulationProgress,
	PhaseSocietyProgress,
	PhaseCleanup,
}

var phaseNames = [...]string{
	"RESOURCE_COLLECTION",
	"PRODUCTION",
	"UPKEEP",
	"RESOURCE_DECAY",
	"POPULATION_PROGRESS",
	"SOCIETY_PROGRESS",
	"CLEANUP",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", p)
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }
