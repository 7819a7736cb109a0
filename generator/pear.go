// ABOUTME: Pear processor applying filtered events probabilistically
// ABOUTME: Inhibit and exhibit are pears hard-wired to silence by tag

package generator

import (
	"megra/event"
)

// FilteredEvents is an event template applied through a tag filter with a
// fold mode.
type FilteredEvents struct {
	Filter []string
	Mode   event.Op
	Events []*event.Event
}

// PearApplication is one probabilistic application bundle.
type PearApplication struct {
	// Prob is the application probability in percent, possibly dynamic.
	Prob   *event.DynVal
	Events []FilteredEvents
}

// Pear folds events into the generated stream probabilistically: each tick
// the templates are evaluated once into static form, then every generated
// event independently draws a coin per application.
type Pear struct {
	Id           string
	Applications []PearApplication

	// lastStatic caches the evaluated (probability, events) pairs. Tick runs
	// ProcessEvents before ProcessTransition, so the cache compiled by
	// ProcessTransition of tick n is what ProcessEvents of tick n+1 applies;
	// the very first ProcessEvents compiles its own.
	lastStatic []staticApplication
}

type staticApplication struct {
	prob   float64
	filter []string
	mode   event.Op
	events []*event.StaticEvent
}

func (p *Pear) compile(ctx *Context) {
	p.lastStatic = p.lastStatic[:0]

	for _, app := range p.Applications {
		// fold into 0..100: integer part modulo 101
		prob := app.Prob.Evaluate(ctx.RNG)
		prob = float64(int(prob) % 101)

		for _, fe := range app.Events {
			sa := staticApplication{prob: prob, filter: fe.Filter, mode: fe.Mode}
			for _, tmpl := range fe.Events {
				sa.events = append(sa.events, tmpl.ToStatic(ctx.RNG, ctx.Globals))
			}

			p.lastStatic = append(p.lastStatic, sa)
		}
	}
}

// ProcessEvents applies the compiled static events to each sound event,
// flipping an independent coin per event and application.
func (p *Pear) ProcessEvents(events []event.InterpretableEvent, ctx *Context) []event.InterpretableEvent {
	if len(p.lastStatic) == 0 {
		p.compile(ctx)
	}

	for _, sa := range p.lastStatic {
		for _, static := range sa.events {
			for i := range events {
				if events[i].Sound == nil {
					continue
				}

				if float64(ctx.RNG.IntN(100)) < sa.prob {
					events[i].Sound.Apply(static, sa.filter, sa.mode)
				}
			}
		}
	}

	return events
}

func (p *Pear) ProcessGenerator(_ *Generator, _ *Context) {}

// ProcessTransition recompiles the static cache for this tick and applies
// the bundles to the transition event with the same coin semantics.
func (p *Pear) ProcessTransition(trans *event.StaticEvent, ctx *Context) {
	p.compile(ctx)

	for _, sa := range p.lastStatic {
		for _, static := range sa.events {
			if float64(ctx.RNG.IntN(100)) < sa.prob {
				trans.Apply(static, sa.filter, sa.mode)
			}
		}
	}
}

func (p *Pear) ID() string {
	return p.Id
}

func (p *Pear) State() ProcessorState {
	return ProcessorState{}
}

func (p *Pear) SetState(ProcessorState) {}

// NewPear builds a pear with a single application at the given probability
// (percent).
func NewPear(prob float64, events []FilteredEvents) *Pear {
	return &Pear{
		Applications: []PearApplication{
			{Prob: event.Static(prob), Events: events},
		},
	}
}

// silencePatch zeroes the envelope level.
func silencePatch() *event.Event {
	return event.NewEvent("mute").PutScalar(event.Level, 0)
}

// NewInhibit silences events carrying all the given tags.
func NewInhibit(tags []string) *Pear {
	return NewPear(100, []FilteredEvents{
		{Filter: tags, Mode: event.Replace, Events: []*event.Event{silencePatch()}},
	})
}

// Exhibit silences events NOT matching the tag set; everything else passes.
type Exhibit struct {
	Tags []string

	patch *event.StaticEvent
}

func (e *Exhibit) ProcessEvents(events []event.InterpretableEvent, ctx *Context) []event.InterpretableEvent {
	if e.patch == nil {
		e.patch = silencePatch().ToStatic(ctx.RNG, ctx.Globals)
	}

	for i := range events {
		s := events[i].Sound
		if s == nil {
			continue
		}

		if !s.HasAllTags(e.Tags) {
			s.Apply(e.patch, nil, event.Replace)
		}
	}

	return events
}

func (e *Exhibit) ProcessGenerator(_ *Generator, _ *Context) {}

func (e *Exhibit) ProcessTransition(_ *event.StaticEvent, _ *Context) {}

func (e *Exhibit) ID() string { return "" }

func (e *Exhibit) State() ProcessorState { return ProcessorState{} }

func (e *Exhibit) SetState(ProcessorState) {}
