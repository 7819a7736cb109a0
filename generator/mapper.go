// ABOUTME: Mapper processor applying a named user function to each event
// ABOUTME: GeneratorWrapper adapts a whole generator into a processor

package generator

import "megra/event"

// Mapper applies a user-defined function, identified by name, to every sound
// event of a tick, folding the result back into the stream.
type Mapper struct {
	Id       string
	FuncName string
}

func (m *Mapper) ProcessEvents(events []event.InterpretableEvent, ctx *Context) []event.InterpretableEvent {
	if ctx.Functions == nil {
		return events
	}

	fn, ok := ctx.Functions.EventFunc(m.FuncName)
	if !ok {
		return events
	}

	for i := range events {
		if events[i].Sound != nil {
			fn(events[i].Sound)
		}
	}

	return events
}

func (m *Mapper) ProcessGenerator(_ *Generator, _ *Context) {}

func (m *Mapper) ProcessTransition(_ *event.StaticEvent, _ *Context) {}

func (m *Mapper) ID() string { return m.Id }

func (m *Mapper) State() ProcessorState { return ProcessorState{} }

func (m *Mapper) SetState(ProcessorState) {}

// GeneratorWrapper nests a generator inside another's processor stack: the
// wrapped generator ticks alongside its host and its events join the host's
// stream.
type GeneratorWrapper struct {
	Wrapped *Generator
}

func (w *GeneratorWrapper) ProcessEvents(events []event.InterpretableEvent, ctx *Context) []event.InterpretableEvent {
	inner, _ := w.Wrapped.Tick(ctx)

	return append(events, inner...)
}

func (w *GeneratorWrapper) ProcessGenerator(_ *Generator, _ *Context) {}

func (w *GeneratorWrapper) ProcessTransition(_ *event.StaticEvent, _ *Context) {}

func (w *GeneratorWrapper) ID() string {
	return "wrap-" + w.Wrapped.TagKey()
}

func (w *GeneratorWrapper) State() ProcessorState { return ProcessorState{} }

func (w *GeneratorWrapper) SetState(ProcessorState) {}
