// ABOUTME: Every processor applying events and modifiers on a periodic step
// ABOUTME: Step counter is preserved across live reload via processor state

package generator

import "megra/event"

// EveryApplication fires when the step counter is a multiple of Step.
type EveryApplication struct {
	Step   *event.DynVal
	Events []FilteredEvents
	Calls  []ModCall
}

// Every applies events to the transition and modifier functions to the
// generator on a fixed period. The step counter is incremented last, after
// all applications of a tick.
type Every struct {
	Id           string
	StepCount    int
	Applications []EveryApplication

	lastStatic []staticApplication
}

// NewEvery builds a periodic processor firing every step ticks.
func NewEvery(step float64, events []FilteredEvents, calls ...ModCall) *Every {
	return &Every{
		StepCount: 1,
		Applications: []EveryApplication{
			{Step: event.Static(step), Events: events, Calls: calls},
		},
	}
}

func (e *Every) due(step *event.DynVal, ctx *Context) bool {
	n := int(step.Evaluate(ctx.RNG))
	if n <= 0 {
		return false
	}

	return e.StepCount%n == 0
}

// ProcessEvents folds the static events compiled by the previous tick's
// ProcessTransition into the stream. Tick runs ProcessEvents first, so events
// due on a step reach the sound events of the following tick.
func (e *Every) ProcessEvents(events []event.InterpretableEvent, _ *Context) []event.InterpretableEvent {
	for _, sa := range e.lastStatic {
		for _, static := range sa.events {
			for i := range events {
				if events[i].Sound != nil {
					events[i].Sound.Apply(static, sa.filter, sa.mode)
				}
			}
		}
	}

	return events
}

// ProcessGenerator runs the due modifier calls.
func (e *Every) ProcessGenerator(g *Generator, ctx *Context) {
	for _, app := range e.Applications {
		if !e.due(app.Step, ctx) {
			continue
		}

		for _, call := range app.Calls {
			call.Fun(g, call.Pos, call.Named, ctx)
		}
	}
}

// ProcessTransition compiles the due event templates and applies them to the
// transition.
func (e *Every) ProcessTransition(trans *event.StaticEvent, ctx *Context) {
	e.lastStatic = e.lastStatic[:0]

	for _, app := range e.Applications {
		if !e.due(app.Step, ctx) {
			continue
		}

		for _, fe := range app.Events {
			sa := staticApplication{filter: fe.Filter, mode: fe.Mode}
			for _, tmpl := range fe.Events {
				sa.events = append(sa.events, tmpl.ToStatic(ctx.RNG, ctx.Globals))
			}

			e.lastStatic = append(e.lastStatic, sa)
		}
	}

	for _, sa := range e.lastStatic {
		for _, static := range sa.events {
			trans.Apply(static, sa.filter, sa.mode)
		}
	}

	// incremented last so the modifier calls and the transition events of one
	// tick agree on the step
	e.StepCount++
}

func (e *Every) ID() string { return e.Id }

func (e *Every) State() ProcessorState {
	return ProcessorState{StepCount: e.StepCount}
}

func (e *Every) SetState(s ProcessorState) {
	e.StepCount = s.StepCount
}
