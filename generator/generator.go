// ABOUTME: Generator wrapping an MSG with processors and time modifiers
// ABOUTME: Implements the per-tick pipeline producing (events, transition) pairs

package generator

import (
	"math/rand/v2"
	"slices"
	"strings"

	"megra/event"
)

// TimeOp is the operation a time modifier applies to the next duration.
type TimeOp int

const (
	TimeMultiply TimeOp = iota
	TimeDivide
	TimeAdd
	TimeSubtract
	TimeReplace
)

// TimeMod is a one-shot adjustment to the next transition duration,
// consumed LIFO.
type TimeMod struct {
	Value float64
	Op    TimeOp
}

// applyTo folds the modifier into the transition's duration parameter.
func (t TimeMod) applyTo(trans *event.StaticEvent) {
	old := trans.Params[event.Duration].Scalar()

	var v float64

	switch t.Op {
	case TimeMultiply:
		v = old * t.Value
	case TimeDivide:
		if t.Value != 0 {
			v = old / t.Value
		} else {
			v = old
		}
	case TimeAdd:
		v = old + t.Value
	case TimeSubtract:
		v = old - t.Value
	case TimeReplace:
		v = t.Value
	}

	trans.Params[event.Duration] = event.StaticVal{v}
}

// ResourcePool is the process-wide lifemodel resource reservoir.
type ResourcePool interface {
	// TryTake withdraws the amount if available, reporting success.
	TryTake(amount float64) bool
	// Refund returns resources to the pool.
	Refund(amount float64)
}

// FuncStore resolves user-defined event functions by name (mapper processor).
type FuncStore interface {
	EventFunc(name string) (func(*event.StaticEvent), bool)
}

// Context carries the per-tick environment a generator runs in: the
// scheduler's random source, the global variable store, the lifemodel pool
// and the user function registry.
type Context struct {
	RNG       *rand.Rand
	Globals   event.Resolver
	Pool      ResourcePool
	Functions FuncStore
}

// Processor transforms emitted events, transitions, or the generator itself.
// Implementations carry optional identity so their state survives a live
// reload.
type Processor interface {
	// ProcessEvents may add, drop or mutate the tick's events.
	ProcessEvents(events []event.InterpretableEvent, ctx *Context) []event.InterpretableEvent
	// ProcessGenerator may edit the generator (growth, shrinkage, reseeding).
	ProcessGenerator(g *Generator, ctx *Context)
	// ProcessTransition may alter the transition's duration or fold events in.
	ProcessTransition(trans *event.StaticEvent, ctx *Context)

	// ID returns the processor's reload identity, empty when anonymous.
	ID() string
	// State snapshots the processor's progression for reload transfer.
	State() ProcessorState
	// SetState restores a previously snapshotted progression.
	SetState(ProcessorState)
}

// ProcessorState is the closed set of processor progressions preserved
// across reload.
type ProcessorState struct {
	StepCount int
	Resources float64
}

// Generator wraps a sequence generator with an ordered processor stack and a
// queue of time modifiers. Its id tags are its identity: two generators with
// equal tags are the same generator for reload purposes.
type Generator struct {
	idTags []string // sorted

	Root       *MSG
	Processors []Processor
	TimeMods   []TimeMod

	// TimeShift delays or advances the generator's start, in milliseconds.
	TimeShift float64

	// KeepRoot preserves the automaton across re-evaluation of the
	// generator's constructor expression.
	KeepRoot bool

	// keepParams are exempt from jitter in subsequent modifier calls.
	keepParams map[event.Address]bool
}

// New returns a generator with the given identity tags.
func New(root *MSG, tags ...string) *Generator {
	sorted := slices.Clone(tags)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	return &Generator{
		idTags:     sorted,
		Root:       root,
		keepParams: make(map[event.Address]bool),
	}
}

// IDTags returns the generator's identity tags in sorted order.
func (g *Generator) IDTags() []string {
	return slices.Clone(g.idTags)
}

// TagKey returns a canonical string key over the id tags, usable as a map
// key.
func (g *Generator) TagKey() string {
	return strings.Join(g.idTags, "\x1f")
}

// AddIDTag extends the identity tag set. Used when a context claims its
// generators.
func (g *Generator) AddIDTag(tag string) {
	if !slices.Contains(g.idTags, tag) {
		g.idTags = append(g.idTags, tag)
		slices.Sort(g.idTags)
	}
}

// HasIDTag reports whether the identity contains the tag.
func (g *Generator) HasIDTag(tag string) bool {
	return slices.Contains(g.idTags, tag)
}

// KeepParam exempts a parameter address from jitter.
func (g *Generator) KeepParam(addr event.Address) {
	g.keepParams[addr] = true
}

// KeptParams returns the jitter-exempt addresses.
func (g *Generator) KeptParams() map[event.Address]bool {
	return g.keepParams
}

// PushTimeMod queues a time modifier; modifiers are consumed LIFO.
func (g *Generator) PushTimeMod(value float64, op TimeOp) {
	g.TimeMods = append(g.TimeMods, TimeMod{Value: value, Op: op})
}

// Tick runs one full pipeline iteration:
// events → processors → transition → processors → time mod → advance.
func (g *Generator) Tick(ctx *Context) ([]event.InterpretableEvent, *event.StaticEvent) {
	events := g.Root.CurrentEvents(ctx.RNG, ctx.Globals)

	// iterate over a snapshot so processors that edit the stack (wrapped
	// generators, apple-applied processor changes) don't skip entries
	procs := slices.Clone(g.Processors)
	for _, proc := range procs {
		events = proc.ProcessEvents(events, ctx)
		proc.ProcessGenerator(g, ctx)
	}

	trans := g.Root.CurrentTransition(ctx.RNG, ctx.Globals)

	for _, proc := range procs {
		proc.ProcessTransition(trans, ctx)
	}

	if n := len(g.TimeMods); n > 0 {
		tmod := g.TimeMods[n-1]
		g.TimeMods = g.TimeMods[:n-1]
		tmod.applyTo(trans)
	}

	g.Root.NextSymbol(ctx.RNG)

	return events, trans
}

// TransferState adopts the runtime progression of a previous incarnation:
// the sequence generator's position and ages, plus the state of processors
// with matching ids.
func (g *Generator) TransferState(old *Generator) {
	if old == nil {
		return
	}

	// keep-root adopts the old automaton wholesale; otherwise the position
	// and ages transfer field by field
	if !g.KeepRoot || !g.adoptRoot(old) {
		g.Root.TransferState(old.Root)
	}

	for _, proc := range g.Processors {
		id := proc.ID()
		if id == "" {
			continue
		}

		for _, oldProc := range old.Processors {
			if oldProc.ID() == id {
				proc.SetState(oldProc.State())

				break
			}
		}
	}
}

// adoptRoot keeps the old automaton across a re-evaluation: growth progress
// and progression survive, and event bundles of grown symbols the new
// constructor doesn't know about are carried along. When the alphabets have
// nothing in common the adoption is refused and the caller falls back to a
// full rebuild.
func (g *Generator) adoptRoot(old *Generator) bool {
	if !g.Root.PFA.IsEmpty() {
		shared := false

		for _, sym := range old.Root.PFA.Alphabet {
			if g.Root.PFA.HasSymbol(sym) {
				shared = true

				break
			}
		}

		if !shared {
			return false
		}
	}

	g.Root.PFA = old.Root.PFA
	g.Root.SymbolAges = old.Root.SymbolAges
	g.Root.LastSymbol = old.Root.LastSymbol
	g.Root.HasLast = old.Root.HasLast
	g.Root.LastTransition = old.Root.LastTransition
	g.Root.stuck = false

	for sym, bundle := range old.Root.EventMapping {
		if _, ok := g.Root.EventMapping[sym]; !ok {
			g.Root.EventMapping[sym] = bundle
		}
	}

	for sym, tmpl := range old.Root.TransitionMapping {
		if _, ok := g.Root.TransitionMapping[sym]; !ok {
			g.Root.TransitionMapping[sym] = tmpl
		}
	}

	return true
}

// Clone duplicates the generator with fresh modifier progressions. Used by
// part proxies, which hand copies of a named part to several contexts.
func (g *Generator) Clone() *Generator {
	root := NewMSG(g.Root.Name, g.Root.PFA.Clone())
	root.DefaultDuration = g.Root.DefaultDuration
	root.overrideDurations = g.Root.overrideDurations

	for sym, bundle := range g.Root.EventMapping {
		copied := make([]event.SourceEvent, 0, len(bundle))

		for _, src := range bundle {
			if src.Sound != nil {
				copied = append(copied, event.SourceEvent{Sound: src.Sound.Clone()})
			} else {
				copied = append(copied, src)
			}
		}

		root.EventMapping[sym] = copied
	}

	for sym, tmpl := range g.Root.TransitionMapping {
		root.TransitionMapping[sym] = tmpl.Clone()
	}

	for sym, age := range g.Root.SymbolAges {
		root.SymbolAges[sym] = age
	}

	clone := New(root, g.idTags...)
	clone.TimeShift = g.TimeShift
	clone.KeepRoot = g.KeepRoot
	clone.Processors = slices.Clone(g.Processors)
	clone.TimeMods = slices.Clone(g.TimeMods)

	for addr := range g.keepParams {
		clone.keepParams[addr] = true
	}

	return clone
}
