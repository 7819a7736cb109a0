// ABOUTME: Lifemodel processor with homeostatic growth and decay
// ABOUTME: Growth draws on local then global resources; apoptosis and autophagia refund them

package generator

import (
	"megra/event"
	"megra/markov"
)

// Lifemodel defaults, matching the tuning the system ships with.
const (
	lifemodelGrowthCycle      = 20
	lifemodelNodeLifespan     = 21
	lifemodelVariance         = 0.2
	lifemodelLifespanVariance = 0.1
	lifemodelLocalResources   = 8.0
	lifemodelGrowthCost       = 1.0
	lifemodelApoptosisRegain  = 0.5
	lifemodelAutophagiaRegain = 0.7
)

// Lifemodel grows and prunes the automaton like a slowly metabolising
// organism: growth costs resources, dying nodes give some back.
type Lifemodel struct {
	Id string

	StepCount    int
	GrowthCycle  int
	GrowthMethod markov.GrowthMethod
	Variance     float64

	NodeLifespan         int
	NodeLifespanVariance float64

	Apoptosis  bool
	Autophagia bool

	LocalResources   float64
	GrowthCost       float64
	ApoptosisRegain  float64
	AutophagiaRegain float64

	// GlobalContrib allows drawing from the process-wide pool when local
	// resources run dry.
	GlobalContrib bool

	// RndChance triggers an extra random edge perturbation after growth.
	RndChance float64

	// SolidifyChance occasionally freezes the recent history into a rule.
	SolidifyChance float64
	SolidifyLen    int

	// KeepParam lists parameter addresses as part of the lifemodel's
	// settings. Growth does not consult it: a grown symbol has every static
	// scalar parameter of its copied bundle jittered.
	KeepParam []event.Address

	// Durations optionally overrides transition durations of grown symbols.
	Durations []float64

	DontLetDie bool
}

// NewLifemodel returns a lifemodel with the stock tuning.
func NewLifemodel() *Lifemodel {
	return &Lifemodel{
		GrowthCycle:          lifemodelGrowthCycle,
		GrowthMethod:         markov.GrowFlower,
		Variance:             lifemodelVariance,
		NodeLifespan:         lifemodelNodeLifespan,
		NodeLifespanVariance: lifemodelLifespanVariance,
		Apoptosis:            true,
		Autophagia:           true,
		LocalResources:       lifemodelLocalResources,
		GrowthCost:           lifemodelGrowthCost,
		ApoptosisRegain:      lifemodelApoptosisRegain,
		AutophagiaRegain:     lifemodelAutophagiaRegain,
		GlobalContrib:        true,
		DontLetDie:           true,
	}
}

func (l *Lifemodel) ProcessEvents(events []event.InterpretableEvent, _ *Context) []event.InterpretableEvent {
	return events
}

func (l *Lifemodel) ProcessTransition(_ *event.StaticEvent, _ *Context) {}

func (l *Lifemodel) ProcessGenerator(g *Generator, ctx *Context) {
	msg := g.Root
	changed := false

	if l.StepCount >= l.GrowthCycle {
		l.StepCount = 0

		grow := false

		switch {
		case l.LocalResources >= l.GrowthCost:
			l.LocalResources -= l.GrowthCost
			grow = true
		case l.GlobalContrib && ctx.Pool != nil && ctx.Pool.TryTake(l.GrowthCost):
			grow = true
		}

		if grow {
			if res := msg.GrowAndSync(l.GrowthMethod, l.Variance, l.Durations, ctx.RNG); res != nil {
				changed = true

				if l.RndChance > 0 && ctx.RNG.Float64()*100 < l.RndChance {
					msg.PFA.RandomizeEdges(0.1, 0.1, ctx.RNG)
				}

				if l.SolidifyChance > 0 && ctx.RNG.Float64()*100 < l.SolidifyChance {
					n := l.SolidifyLen
					if n < 2 {
						n = 2
					}

					msg.PFA.SolidifyHistory(n)
				}
			}
		} else if l.Autophagia {
			// remove a random symbol to make room for growth later
			if len(msg.PFA.Alphabet) > 1 || !l.DontLetDie {
				if sym, ok := msg.PFA.RandomSymbol(ctx.RNG); ok {
					// rebalance happens once below
					if msg.ShrinkAndSync(sym, false, l.DontLetDie) != nil {
						l.LocalResources += l.AutophagiaRegain
						changed = true
					}
				}
			}
		}
	}

	// check whether the last-emitted symbol has outlived its span
	if l.Apoptosis && (len(msg.PFA.Alphabet) > 1 || !l.DontLetDie) && msg.HasLast {
		age := float64(msg.SymbolAges[msg.LastSymbol])
		jitter := l.NodeLifespanVariance * (1.0 - ctx.RNG.Float64()*2.0) * age
		relevantAge := int(age + jitter)

		if relevantAge >= l.NodeLifespan {
			if msg.ShrinkAndSync(msg.LastSymbol, false, l.DontLetDie) != nil {
				l.LocalResources += l.ApoptosisRegain
				changed = true
			}
		}
	}

	if changed {
		msg.PFA.Rebalance()
	}

	l.StepCount++
}

func (l *Lifemodel) ID() string { return l.Id }

func (l *Lifemodel) State() ProcessorState {
	return ProcessorState{StepCount: l.StepCount, Resources: l.LocalResources}
}

func (l *Lifemodel) SetState(s ProcessorState) {
	l.StepCount = s.StepCount
	l.LocalResources = s.Resources
}
