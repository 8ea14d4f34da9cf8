package engine

// RNG is the randomness source threaded through a tick. *rand.Rand
// satisfies it. Effects must draw from it in a fixed order so a tick is
// reproducible for a given seed and input state.
type RNG interface {
	Intn(n int) int
	Float64() float64
}

// Effect is one rule bound to a single phase. Within a phase, effects run in
// ascending priority; ShouldApply is checked immediately before Apply.
// Effects must not keep the context after Apply returns.
type Effect interface {
	Name() string
	Phase() Phase
	Priority() int
	ShouldApply(ctx *TickContext) bool
	Apply(ctx *TickContext)
}

// FuncEffect adapts plain functions to the Effect interface. A nil Guard
// always applies.
type FuncEffect struct {
	EffectName  string
	EffectPhase Phase
	Order       int
	Guard       func(ctx *TickContext) bool
	Run         func(ctx *TickContext)
}

func (e FuncEffect) Name() string  { return e.EffectName }
func (e FuncEffect) Phase() Phase  { return e.EffectPhase }
func (e FuncEffect) Priority() int { return e.Order }

func (e FuncEffect) ShouldApply(ctx *TickContext) bool {
	return e.Guard == nil || e.Guard(ctx)
}

func (e FuncEffect) Apply(ctx *TickContext) {
	if e.Run != nil {
		e.Run(ctx)
	}
}
