// Package tribe provides the entity model: tribes, families, people and the
// resources and policy they share.
package tribe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Moszee/generic-sim/internal/economy"
)

// ErrNotFound is returned when a tribe, family or person id does not resolve.
var ErrNotFound = errors.New("not found")

// TribeID identifies a tribe.
type TribeID uint64

// FamilyID identifies a family within its tribe.
type FamilyID uint64

// PersonID identifies a person within its tribe.
type PersonID uint64

// Role is a person's occupation in the tribe.
type Role uint8

const (
	RoleHunter Role = iota
	RoleGatherer
	RoleChild
	RoleElder
)

var roleNames = [...]string{"HUNTER", "GATHERER", "CHILD", "ELDER"}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", r)
}

// ParseRole accepts role names case-insensitively.
func ParseRole(s string) (Role, error) {
	for i, name := range roleNames {
		if strings.EqualFold(s, name) {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// AgeGroup is derived from age and drives progress generation.
type AgeGroup uint8

const (
	GroupChild      AgeGroup = iota // 0–15
	GroupYoungAdult                 // 16–40
	GroupAdult                      // 41–59
	GroupElder                      // 60+
)

func (g AgeGroup) String() string {
	switch g {
	case GroupChild:
		return "CHILD"
	case GroupYoungAdult:
		return "YOUNG_ADULT"
	case GroupAdult:
		return "ADULT"
	default:
		return "ELDER"
	}
}

// AgeGroupOf maps an age in years to its group.
func AgeGroupOf(age int) AgeGroup {
	switch {
	case age <= 15:
		return GroupChild
	case age <= 40:
		return GroupYoungAdult
	case age < 60:
		return GroupAdult
	default:
		return GroupElder
	}
}

// Age thresholds used by the yearly role transitions.
const (
	AdultAge  = 16
	ElderAge  = 60
	MaxHealth = 100
)

// Person is a single tribe member.
type Person struct {
	ID   PersonID `json:"id"`
	Name string   `json:"name"`
	Role Role     `json:"role"`
	Age  int      `json:"age"`

	Health         int     `json:"health"` // 0–100
	HuntingSkill   float64 `json:"hunting_skill"`
	GatheringSkill float64 `json:"gathering_skill"`

	TribeID  TribeID   `json:"tribe_id"`
	FamilyID *FamilyID `json:"family_id,omitempty"`
}

// AgeGroup returns the person's derived age group.
func (p *Person) AgeGroup() AgeGroup {
	return AgeGroupOf(p.Age)
}

// Alive reports whether the person still has health left.
func (p *Person) Alive() bool {
	return p.Health > 0
}

// AdjustHealth adds delta and clamps to [0, 100].
func (p *Person) AdjustHealth(delta int) {
	p.Health = clampInt(p.Health+delta, 0, MaxHealth)
}

// SetHealth assigns health clamped to [0, 100].
func (p *Person) SetHealth(v int) {
	p.Health = clampInt(v, 0, MaxHealth)
}

// SetHuntingSkill assigns the skill clamped to [0, 1].
func (p *Person) SetHuntingSkill(v float64) {
	p.HuntingSkill = clampFloat(v, 0, 1)
}

// SetGatheringSkill assigns the skill clamped to [0, 1].
func (p *Person) SetGatheringSkill(v float64) {
	p.GatheringSkill = clampFloat(v, 0, 1)
}

// InFamily reports whether the person belongs to family id.
func (p *Person) InFamily(id FamilyID) bool {
	return p.FamilyID != nil && *p.FamilyID == id
}

// Family is a household sharing one private storage.
type Family struct {
	ID        FamilyID   `json:"id"`
	TribeID   TribeID    `json:"tribe_id"`
	Name      string     `json:"name"`
	Storage   Resources  `json:"storage"`
	MemberIDs []PersonID `json:"member_ids"`
}

// Size returns the number of members.
func (f *Family) Size() int {
	return len(f.MemberIDs)
}

// HasMember reports whether id is listed as a member.
func (f *Family) HasMember(id PersonID) bool {
	for _, m := range f.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}

func (f *Family) removeMember(id PersonID) {
	for i, m := range f.MemberIDs {
		if m == id {
			f.MemberIDs = append(f.MemberIDs[:i], f.MemberIDs[i+1:]...)
			return
		}
	}
}

// Tribe is the aggregate root. Families and members are stored in id order
// of creation and referenced by id.
type Tribe struct {
	ID          TribeID `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`

	CurrentTick    uint64 `json:"current_tick"`
	BondLevel      int    `json:"bond_level"`      // 0–100
	ProgressPoints int    `json:"progress_points"` // ≥ 0

	Policy    Policy     `json:"policy"`
	Central   *Resources `json:"central,omitempty"` // Nil when the tribe has no central pool
	Resources Resources  `json:"resources"`         // Sum of family storage, refreshed each tick

	Families []*Family `json:"families"`
	Members  []*Person `json:"members"`

	Ledger *economy.Ledger `json:"ledger,omitempty"`

	NextFamilyID FamilyID `json:"next_family_id"`
	NextPersonID PersonID `json:"next_person_id"`
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
