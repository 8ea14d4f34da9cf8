package tribe

// Progress constants. Young adults contribute two points per tick, adults
// one; each elder offsets ten points of the base knowledge decay.
const (
	YoungAdultProgress    = 2
	AdultProgress         = 1
	ElderPreservation     = 10
	BaseProgressDecay     = 30
	ElderGatheringPercent = 2.0 // Gathering bonus per living elder, in percent
	HealthyThreshold      = 70
)

// ProgressRates is the per-tick progress breakdown for the current roster.
type ProgressRates struct {
	YoungAdults  int `json:"young_adults"`
	Adults       int `json:"adults"`
	Elders       int `json:"elders"`
	Generation   int `json:"generation"`
	Preservation int `json:"preservation"`
	Decay        int `json:"decay"`
	Net          int `json:"net"`
}

// Progress computes progress rates from members' age groups.
func Progress(t *Tribe) ProgressRates {
	var r ProgressRates
	for _, p := range t.Members {
		switch p.AgeGroup() {
		case GroupYoungAdult:
			r.YoungAdults++
		case GroupAdult:
			r.Adults++
		case GroupElder:
			r.Elders++
		}
	}
	r.Generation = r.YoungAdults*YoungAdultProgress + r.Adults*AdultProgress
	r.Preservation = r.Elders * ElderPreservation
	r.Decay = max(0, BaseProgressDecay-r.Preservation)
	r.Net = r.Generation - r.Decay
	return r
}

// ElderGatheringBonus returns the gathering bonus in percent for a number
// of elders.
func ElderGatheringBonus(elders int) float64 {
	return float64(elders) * ElderGatheringPercent
}

// ResourceStatus grades per-person stockpiles.
type ResourceStatus string

const (
	StatusAbundant ResourceStatus = "ABUNDANT"
	StatusAdequate ResourceStatus = "ADEQUATE"
	StatusLow      ResourceStatus = "LOW"
	StatusCritical ResourceStatus = "CRITICAL"
)

func gradePerPerson(perPerson float64) ResourceStatus {
	switch {
	case perPerson >= 10:
		return StatusAbundant
	case perPerson >= 5:
		return StatusAdequate
	case perPerson >= 3:
		return StatusLow
	default:
		return StatusCritical
	}
}

// HealthStats summarises member health.
type HealthStats struct {
	Average float64 `json:"average"`
	Min     int     `json:"min"`
	Max     int     `json:"max"`
	Healthy int     `json:"healthy"` // Members at or above HealthyThreshold
}

// ResourceStats grades the tribe's stockpiles per member.
type ResourceStats struct {
	Food           int            `json:"food"`
	Water          int            `json:"water"`
	Central        *Resources     `json:"central,omitempty"`
	FoodPerPerson  float64        `json:"food_per_person"`
	WaterPerPerson float64        `json:"water_per_person"`
	FoodStatus     ResourceStatus `json:"food_status"`
	WaterStatus    ResourceStatus `json:"water_status"`
}

// Statistics is a read-only summary of a tribe's state.
type Statistics struct {
	TribeID    TribeID        `json:"tribe_id"`
	Name       string         `json:"name"`
	Tick       uint64         `json:"tick"`
	Population int            `json:"population"`
	Families   int            `json:"families"`
	BondLevel  int            `json:"bond_level"`
	Progress   int            `json:"progress_points"`
	Roles      map[string]int `json:"roles"`
	AgeGroups  map[string]int `json:"age_groups"`
	Health     HealthStats    `json:"health"`
	Resources  ResourceStats  `json:"resources"`
	Policy     Policy         `json:"policy"`
	Rates      ProgressRates  `json:"progress_rates"`
	ElderBonus float64        `json:"elder_gathering_bonus"`
}

// Stats computes a Statistics summary for t.
func Stats(t *Tribe) Statistics {
	s := Statistics{
		TribeID:    t.ID,
		Name:       t.Name,
		Tick:       t.CurrentTick,
		Population: len(t.Members),
		Families:   len(t.Families),
		BondLevel:  t.BondLevel,
		Progress:   t.ProgressPoints,
		Roles:      make(map[string]int),
		AgeGroups:  make(map[string]int),
		Policy:     t.Policy,
		Rates:      Progress(t),
	}
	s.ElderBonus = ElderGatheringBonus(s.Rates.Elders)

	for _, r := range []Role{RoleHunter, RoleGatherer, RoleChild, RoleElder} {
		s.Roles[r.String()] = 0
	}
	for _, g := range []AgeGroup{GroupChild, GroupYoungAdult, GroupAdult, GroupElder} {
		s.AgeGroups[g.String()] = 0
	}

	total := 0
	for i, p := range t.Members {
		s.Roles[p.Role.String()]++
		s.AgeGroups[p.AgeGroup().String()]++
		total += p.Health
		if i == 0 || p.Health < s.Health.Min {
			s.Health.Min = p.Health
		}
		if i == 0 || p.Health > s.Health.Max {
			s.Health.Max = p.Health
		}
		if p.Health >= HealthyThreshold {
			s.Health.Healthy++
		}
	}
	if n := len(t.Members); n > 0 {
		s.Health.Average = float64(total) / float64(n)
	}

	var food, water int
	for _, f := range t.Families {
		food += f.Storage.Food
		water += f.Storage.Water
	}
	s.Resources = ResourceStats{Food: food, Water: water}
	if t.Central != nil {
		c := *t.Central
		s.Resources.Central = &c
	}
	if n := len(t.Members); n > 0 {
		s.Resources.FoodPerPerson = float64(food) / float64(n)
		s.Resources.WaterPerPerson = float64(water) / float64(n)
	}
	s.Resources.FoodStatus = gradePerPerson(s.Resources.FoodPerPerson)
	s.Resources.WaterStatus = gradePerPerson(s.Resources.WaterPerPerson)
	return s
}
