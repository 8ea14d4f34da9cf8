// Tribe founding: the starting roster, default families and their storage.
package tribe

import (
	"fmt"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Founder describes one member of the starting roster.
type Founder struct {
	Name           string
	Role           Role
	Age            int
	Health         int
	HuntingSkill   float64
	GatheringSkill float64
}

// DefaultRoster is the six-person group every tribe is founded with.
func DefaultRoster() []Founder {
	return []Founder{
		{Name: "Hunter Alpha", Role: RoleHunter, Age: 25, Health: 100, HuntingSkill: 0.6, GatheringSkill: 0.5},
		{Name: "Hunter Beta", Role: RoleHunter, Age: 28, Health: 100, HuntingSkill: 0.7, GatheringSkill: 0.5},
		{Name: "Gatherer Alpha", Role: RoleGatherer, Age: 24, Health: 100, HuntingSkill: 0.5, GatheringSkill: 0.6},
		{Name: "Gatherer Beta", Role: RoleGatherer, Age: 26, Health: 100, HuntingSkill: 0.5, GatheringSkill: 0.65},
		{Name: "Child Alpha", Role: RoleChild, Age: 8, Health: 100, HuntingSkill: 0.5, GatheringSkill: 0.5},
		{Name: "Elder Wise", Role: RoleElder, Age: 65, Health: 80, HuntingSkill: 0.5, GatheringSkill: 0.5},
	}
}

// FamilyStartingStorage is the stockpile each founding family receives.
var FamilyStartingStorage = Resources{Food: 30, Water: 30}

// FoundingConfig controls tribe founding.
type FoundingConfig struct {
	Seed   int64
	Jitter float64 // Max skill deviation from the roster value; 0 keeps roster skills exact
	Roster []Founder
}

// Foundry creates new tribes with families already assigned.
type Foundry struct {
	rng    *rand.Rand
	noise  opensimplex.Noise
	jitter float64
	roster []Founder
}

// NewFoundry creates a foundry. An empty roster means DefaultRoster.
func NewFoundry(cfg FoundingConfig) *Foundry {
	roster := cfg.Roster
	if len(roster) == 0 {
		roster = DefaultRoster()
	}
	return &Foundry{
		rng:    rand.New(rand.NewSource(cfg.Seed + 300)),
		noise:  opensimplex.NewNormalized(cfg.Seed),
		jitter: cfg.Jitter,
		roster: roster,
	}
}

// Found builds a tribe populated from the roster. Families number
// max(1, members/3); members are shuffled and dealt round-robin.
func (fy *Foundry) Found(id TribeID, name, description string) *Tribe {
	t := New(id, name, description)

	for i, f := range fy.roster {
		t.AddPerson(Person{
			Name:           f.Name,
			Role:           f.Role,
			Age:            f.Age,
			Health:         f.Health,
			HuntingSkill:   f.HuntingSkill + fy.skillJitter(id, i, 0),
			GatheringSkill: f.GatheringSkill + fy.skillJitter(id, i, 1),
		})
	}

	fy.initFamilies(t)
	t.RefreshTotals()
	return t
}

func (fy *Foundry) initFamilies(t *Tribe) {
	if len(t.Members) == 0 {
		return
	}
	count := max(1, len(t.Members)/3)
	families := make([]*Family, count)
	for i := range families {
		families[i] = t.AddFamily(familyName(i), FamilyStartingStorage)
	}

	order := make([]PersonID, len(t.Members))
	for i, p := range t.Members {
		order[i] = p.ID
	}
	fy.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	for i, pid := range order {
		// Both ids were just created, so assignment cannot fail.
		_ = t.AssignToFamily(pid, families[i%count].ID)
	}
}

// skillJitter samples smooth noise so neighbouring founders of one tribe get
// related but distinct skill offsets.
func (fy *Foundry) skillJitter(id TribeID, index, axis int) float64 {
	if fy.jitter == 0 {
		return 0
	}
	n := fy.noise.Eval2(float64(id)*1.7+float64(axis)*31.0, float64(index)*0.37)
	return (n*2 - 1) * fy.jitter
}

// familyName returns "Family A", "Family B", … "Family Z", "Family AA", …
func familyName(i int) string {
	label := ""
	for n := i; ; n = n/26 - 1 {
		label = string(rune('A'+n%26)) + label
		if n < 26 {
			break
		}
	}
	return fmt.Sprintf("Family %s", label)
}
