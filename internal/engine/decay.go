package engine

// StorageDecayEffect spoils a fraction of every stockpile each decay
// interval. An interval of zero or less disables decay.
type StorageDecayEffect struct{}

func (StorageDecayEffect) Name() string  { return "StorageDecay" }
func (StorageDecayEffect) Phase() Phase  { return PhaseResourceDecay }
func (StorageDecayEffect) Priority() int { return DefaultPriority }

func (StorageDecayEffect) ShouldApply(ctx *TickContext) bool {
	interval := ctx.Tribe.Policy.StorageDecayInterval
	return interval > 0 && ctx.Tick()%uint64(interval) == 0
}

func (StorageDecayEffect) Apply(ctx *TickContext) {
	t := ctx.Tribe
	keep := 1 - clampRate(t.Policy.StorageDecayRate)

	for _, f := range t.Families {
		f.Storage.Scale(keep)
	}
	if t.Central != nil {
		t.Central.Scale(keep)
	}
	ctx.Record("decay", "storage decayed by %.0f%%", (1-keep)*100)
}

func clampRate(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
