// ABOUTME: Apple processor applying generator modifier functions probabilistically
// ABOUTME: Each bundle rolls its own chance every tick

package generator

import "megra/event"

// ModCall is a modifier function with its bound arguments.
type ModCall struct {
	Fun   ModFun
	Pos   []float64
	Named map[string]float64
}

// AppleApplication couples a probability with the modifier calls it gates.
type AppleApplication struct {
	Prob  *event.DynVal
	Calls []ModCall
}

// Apple mutates the generator probabilistically: every tick each bundle is
// applied with its own probability, independently.
type Apple struct {
	Id           string
	Applications []AppleApplication
}

func (a *Apple) ProcessEvents(events []event.InterpretableEvent, _ *Context) []event.InterpretableEvent {
	return events
}

func (a *Apple) ProcessGenerator(g *Generator, ctx *Context) {
	for _, app := range a.Applications {
		prob := float64(int(app.Prob.Evaluate(ctx.RNG)) % 101)

		for _, call := range app.Calls {
			if float64(ctx.RNG.IntN(100)) < prob {
				call.Fun(g, call.Pos, call.Named, ctx)
			}
		}
	}
}

func (a *Apple) ProcessTransition(_ *event.StaticEvent, _ *Context) {}

func (a *Apple) ID() string { return a.Id }

func (a *Apple) State() ProcessorState { return ProcessorState{} }

func (a *Apple) SetState(ProcessorState) {}

// NewApple builds an apple with one application bundle.
func NewApple(prob float64, calls ...ModCall) *Apple {
	return &Apple{
		Applications: []AppleApplication{
			{Prob: event.Static(prob), Calls: calls},
		},
	}
}
