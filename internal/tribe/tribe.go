package tribe

import (
	"fmt"

	"github.com/Moszee/generic-sim/internal/economy"
)

// Initial values for a freshly created tribe.
const (
	DefaultBondLevel = 50
	MaxBondLevel     = 100
)

// New returns an empty tribe with the default policy, an empty central pool
// and a ledger seeded from the default catalog.
func New(id TribeID, name, description string) *Tribe {
	ledger := economy.NewLedger()
	ledger.InitFromCatalog(economy.DefaultCatalog())
	return &Tribe{
		ID:           id,
		Name:         name,
		Description:  description,
		BondLevel:    DefaultBondLevel,
		Policy:       DefaultPolicy(),
		Central:      &Resources{},
		Ledger:       ledger,
		NextFamilyID: 1,
		NextPersonID: 1,
	}
}

// AddPerson copies p into the tribe under a fresh id and returns the stored
// person. Any family assignment on p is ignored; use AssignToFamily.
func (t *Tribe) AddPerson(p Person) *Person {
	if t.NextPersonID == 0 {
		t.NextPersonID = 1
	}
	p.ID = t.NextPersonID
	t.NextPersonID++
	p.TribeID = t.ID
	p.FamilyID = nil
	p.SetHealth(p.Health)
	p.SetHuntingSkill(p.HuntingSkill)
	p.SetGatheringSkill(p.GatheringSkill)
	if p.Age < 0 {
		p.Age = 0
	}

	stored := &p
	t.Members = append(t.Members, stored)
	return stored
}

// AddFamily creates a new, empty family.
func (t *Tribe) AddFamily(name string, storage Resources) *Family {
	if t.NextFamilyID == 0 {
		t.NextFamilyID = 1
	}
	f := &Family{
		ID:      t.NextFamilyID,
		TribeID: t.ID,
		Name:    name,
		Storage: NewResources(storage.Food, storage.Water),
	}
	t.NextFamilyID++
	t.Families = append(t.Families, f)
	return f
}

// Person looks up a member by id. Returns nil if absent.
func (t *Tribe) Person(id PersonID) *Person {
	for _, p := range t.Members {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Family looks up a family by id. Returns nil if absent.
func (t *Tribe) Family(id FamilyID) *Family {
	for _, f := range t.Families {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// FamilyOf returns the person's family, or nil when unaffiliated.
func (t *Tribe) FamilyOf(p *Person) *Family {
	if p == nil || p.FamilyID == nil {
		return nil
	}
	return t.Family(*p.FamilyID)
}

// MembersOf returns the family's members in membership order.
func (t *Tribe) MembersOf(f *Family) []*Person {
	out := make([]*Person, 0, len(f.MemberIDs))
	for _, id := range f.MemberIDs {
		if p := t.Person(id); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// AssignToFamily moves a person into a family, leaving any previous one.
func (t *Tribe) AssignToFamily(pid PersonID, fid FamilyID) error {
	p := t.Person(pid)
	if p == nil {
		return fmt.Errorf("person %d: %w", pid, ErrNotFound)
	}
	f := t.Family(fid)
	if f == nil {
		return fmt.Errorf("family %d: %w", fid, ErrNotFound)
	}
	if prev := t.FamilyOf(p); prev != nil {
		prev.removeMember(pid)
	}
	id := fid
	p.FamilyID = &id
	if !f.HasMember(pid) {
		f.MemberIDs = append(f.MemberIDs, pid)
	}
	return nil
}

// RemovePerson deletes a member from the tribe and from their family.
func (t *Tribe) RemovePerson(id PersonID) bool {
	for i, p := range t.Members {
		if p.ID != id {
			continue
		}
		if f := t.FamilyOf(p); f != nil {
			f.removeMember(id)
		}
		t.Members = append(t.Members[:i], t.Members[i+1:]...)
		return true
	}
	return false
}

// RemoveDead drops every member with health ≤ 0 and returns them.
func (t *Tribe) RemoveDead() []*Person {
	var dead []*Person
	kept := t.Members[:0]
	for _, p := range t.Members {
		if p.Alive() {
			kept = append(kept, p)
			continue
		}
		if f := t.FamilyOf(p); f != nil {
			f.removeMember(p.ID)
		}
		dead = append(dead, p)
	}
	for i := len(kept); i < len(t.Members); i++ {
		t.Members[i] = nil
	}
	t.Members = kept
	return dead
}

// AdjustBond adds delta to the bond level, clamped to [0, 100].
func (t *Tribe) AdjustBond(delta int) {
	t.BondLevel = clampInt(t.BondLevel+delta, 0, MaxBondLevel)
}

// AddProgress adds delta to progress points, flooring at zero.
func (t *Tribe) AddProgress(delta int) {
	t.ProgressPoints = max(0, t.ProgressPoints+delta)
}

// RefreshTotals recomputes Resources as the sum of all family storage.
func (t *Tribe) RefreshTotals() {
	var food, water int
	for _, f := range t.Families {
		food += f.Storage.Food
		water += f.Storage.Water
	}
	t.Resources = NewResources(food, water)
}

// CountRole returns the number of members with role r.
func (t *Tribe) CountRole(r Role) int {
	n := 0
	for _, p := range t.Members {
		if p.Role == r {
			n++
		}
	}
	return n
}

// CheckIntegrity verifies the family membership invariant in both
// directions and that every id resolves.
func (t *Tribe) CheckIntegrity() error {
	seen := make(map[PersonID]FamilyID)
	for _, f := range t.Families {
		for _, id := range f.MemberIDs {
			p := t.Person(id)
			if p == nil {
				return fmt.Errorf("family %d lists unknown person %d", f.ID, id)
			}
			if !p.InFamily(f.ID) {
				return fmt.Errorf("family %d lists person %d who points elsewhere", f.ID, id)
			}
			if other, dup := seen[id]; dup {
				return fmt.Errorf("person %d listed by families %d and %d", id, other, f.ID)
			}
			seen[id] = f.ID
		}
	}
	for _, p := range t.Members {
		if p.FamilyID == nil {
			continue
		}
		if _, ok := seen[p.ID]; !ok {
			return fmt.Errorf("person %d points to family %d which does not list them", p.ID, *p.FamilyID)
		}
	}
	return nil
}

// Clone returns a deep copy that shares no mutable state with t.
func (t *Tribe) Clone() *Tribe {
	c := *t
	c.Policy = t.Policy
	if t.Central != nil {
		central := *t.Central
		c.Central = &central
	}
	c.Ledger = t.Ledger.Clone()

	c.Families = make([]*Family, len(t.Families))
	for i, f := range t.Families {
		fc := *f
		fc.MemberIDs = append([]PersonID(nil), f.MemberIDs...)
		c.Families[i] = &fc
	}
	c.Members = make([]*Person, len(t.Members))
	for i, p := range t.Members {
		pc := *p
		if p.FamilyID != nil {
			fid := *p.FamilyID
			pc.FamilyID = &fid
		}
		c.Members[i] = &pc
	}
	return &c
}
