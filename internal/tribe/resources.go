package tribe

// Resources is a food and water stockpile. Both amounts stay non-negative.
type Resources struct {
	Food  int `json:"food"`
	Water int `json:"water"`
}

// NewResources returns a stockpile with negative inputs clamped to zero.
func NewResources(food, water int) Resources {
	var r Resources
	r.Set(food, water)
	return r
}

// Set assigns both amounts, clamping at zero.
func (r *Resources) Set(food, water int) {
	r.Food = max(0, food)
	r.Water = max(0, water)
}

// Add adjusts both amounts by the given deltas, clamping at zero.
func (r *Resources) Add(food, water int) {
	r.Set(r.Food+food, r.Water+water)
}

// Withdraw removes up to the requested amounts and returns what was actually
// taken.
func (r *Resources) Withdraw(food, water int) (gotFood, gotWater int) {
	gotFood = min(max(0, food), r.Food)
	gotWater = min(max(0, water), r.Water)
	r.Food -= gotFood
	r.Water -= gotWater
	return gotFood, gotWater
}

// Covers reports whether the stockpile holds at least food and water.
func (r Resources) Covers(food, water int) bool {
	return r.Food >= food && r.Water >= water
}

// Scale multiplies both amounts by factor, truncating toward zero.
func (r *Resources) Scale(factor float64) {
	r.Set(int(float64(r.Food)*factor), int(float64(r.Water)*factor))
}

// Total returns food plus water.
func (r Resources) Total() int {
	return r.Food + r.Water
}

// IsZero reports whether both amounts are zero.
func (r Resources) IsZero() bool {
	return r.Food == 0 && r.Water == 0
}
