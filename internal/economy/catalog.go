// Package economy provides the generic resource and coefficient ledger that
// every tribe carries alongside its family storage.
package economy

// Kind separates countable stockpiles from bounded ratios.
type Kind string

const (
	KindResource    Kind = "resource"
	KindCoefficient Kind = "coefficient"
)

// Definition describes one tracked resource or coefficient.
type Definition struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Kind        Kind               `json:"kind"`
	Min         float64            `json:"min"`
	Max         float64            `json:"max"`
	Default     float64            `json:"default"`
	Production  map[string]float64 `json:"production,omitempty"`  // Rate by producing role
	Consumption map[string]float64 `json:"consumption,omitempty"` // Rate by consuming role
	Affects     map[string]float64 `json:"affects,omitempty"`     // Influence on other entries
	Description string             `json:"description,omitempty"`
	Weight      float64            `json:"weight"`
	DecayRate   float64            `json:"decay_rate"`
	Capacity    float64            `json:"capacity"`
	Renewable   bool               `json:"renewable"`
}

// Catalog indexes definitions by ID.
type Catalog map[string]Definition

// Clamp bounds v to the definition's [Min, Max] range.
func (d Definition) Clamp(v float64) float64 {
	if v < d.Min {
		return d.Min
	}
	if d.Max > d.Min && v > d.Max {
		return d.Max
	}
	return v
}

// IsCoefficient reports whether the entry is a ratio rather than a stockpile.
func (d Definition) IsCoefficient() bool {
	return d.Kind == KindCoefficient
}

// NewResource returns a resource definition with the usual bounds:
// 0–10000, weight 1, capacity 1000.
func NewResource(id, name string, def float64) Definition {
	return Definition{
		ID:       id,
		Name:     name,
		Kind:     KindResource,
		Min:      0,
		Max:      10000,
		Default:  def,
		Weight:   1,
		Capacity: 1000,
	}
}

// NewCoefficient returns a coefficient bounded to [0, 1].
func NewCoefficient(id, name string, def float64) Definition {
	return Definition{
		ID:       id,
		Name:     name,
		Kind:     KindCoefficient,
		Min:      0,
		Max:      1,
		Default:  def,
		Weight:   1,
		Capacity: 1,
	}
}

// Ledger keys maintained by the tick engine.
const (
	KeyFood       = "food"
	KeyWater      = "water"
	KeyPopulation = "population"
	KeyStability  = "stability"
	KeyMorale     = "morale"
	KeyProgress   = "progress"
)

// DefaultCatalog returns the entries every tribe ledger starts with.
func DefaultCatalog() Catalog {
	food := NewResource(KeyFood, "Food", 100)
	food.Production = map[string]float64{"hunter": 1, "gatherer": 1}
	food.Consumption = map[string]float64{"person": 3}
	food.DecayRate = 0.1
	food.Renewable = true

	water := NewResource(KeyWater, "Water", 100)
	water.Production = map[string]float64{"gatherer": 1}
	water.Consumption = map[string]float64{"person": 4}
	water.DecayRate = 0.1
	water.Renewable = true

	population := NewResource(KeyPopulation, "Population", 0)
	population.Description = "Living members of the tribe"

	stability := NewCoefficient(KeyStability, "Stability", 0.5)
	stability.Description = "Bond level as a fraction"

	morale := NewCoefficient(KeyMorale, "Morale", 0.5)
	morale.Description = "Average member health as a fraction"
	morale.Affects = map[string]float64{KeyStability: 0.2}

	progress := NewResource(KeyProgress, "Progress", 0)
	progress.Description = "Accumulated society progress points"
	progress.Max = 1e9

	c := Catalog{}
	for _, d := range []Definition{food, water, population, stability, morale, progress} {
		c[d.ID] = d
	}
	return c
}
