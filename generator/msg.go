// ABOUTME: Markov sequence generator binding PFA symbols to event bundles
// ABOUTME: Produces (events, transition) pairs and transfers state on reload

// Package generator wires the markov engine to the event model: a Markov
// sequence generator binds symbols to event bundles, a Generator stacks
// processors and time modifiers on top, and modifier functions mutate the
// whole thing in place.
package generator

import (
	"math/rand/v2"
	"slices"

	"megra/event"
	"megra/markov"
)

// DefaultDuration is the fallback transition duration in milliseconds.
const DefaultDuration = 200.0

// MSG is a Markov sequence generator: a PFA plus the mapping from symbols to
// the events they emit.
type MSG struct {
	Name string
	PFA  *markov.PFA

	// EventMapping binds each symbol to the bundle emitted when it fires.
	EventMapping map[markov.Symbol][]event.SourceEvent

	// TransitionMapping holds the per-symbol transition event carrying at
	// least a duration parameter.
	TransitionMapping map[markov.Symbol]*event.Event

	// LabelMapping carries human-readable names for multi-character symbols.
	LabelMapping map[markov.Symbol]string

	// overrideDurations maps recent symbol suffixes to explicit durations
	// that take precedence over the transition event.
	overrideDurations *durationTree

	DefaultDuration float64

	// SymbolAges counts how often each symbol has fired since it was added.
	SymbolAges map[markov.Symbol]uint64

	LastSymbol     markov.Symbol
	HasLast        bool
	LastTransition *event.StaticEvent

	// stuck is set when the automaton ran out of outgoing edges; a stuck
	// generator goes quiet instead of repeating its final state.
	stuck bool
}

// NewMSG returns an empty sequence generator around the given automaton.
func NewMSG(name string, pfa *markov.PFA) *MSG {
	return &MSG{
		Name:              name,
		PFA:               pfa,
		EventMapping:      make(map[markov.Symbol][]event.SourceEvent),
		TransitionMapping: make(map[markov.Symbol]*event.Event),
		LabelMapping:      make(map[markov.Symbol]string),
		DefaultDuration:   DefaultDuration,
		SymbolAges:        make(map[markov.Symbol]uint64),
	}
}

// durationTree is a reverse prefix tree over symbol sequences; the longest
// suffix of the history that matches wins.
type durationTree struct {
	children map[markov.Symbol]*durationTree
	duration float64
	set      bool
}

func newDurationTree() *durationTree {
	return &durationTree{children: make(map[markov.Symbol]*durationTree)}
}

// SetOverrideDuration registers an explicit duration for a symbol sequence.
func (m *MSG) SetOverrideDuration(seq []markov.Symbol, duration float64) {
	if m.overrideDurations == nil {
		m.overrideDurations = newDurationTree()
	}

	node := m.overrideDurations
	for i := len(seq) - 1; i >= 0; i-- {
		child, ok := node.children[seq[i]]
		if !ok {
			child = newDurationTree()
			node.children[seq[i]] = child
		}

		node = child
	}

	node.duration = duration
	node.set = true
}

// overrideFor returns the override duration whose sequence matches the tail
// of the history, preferring longer matches.
func (m *MSG) overrideFor(history []markov.Symbol) (float64, bool) {
	if m.overrideDurations == nil {
		return 0, false
	}

	var (
		best  float64
		found bool
	)

	node := m.overrideDurations
	for i := len(history) - 1; i >= 0; i-- {
		child, ok := node.children[history[i]]
		if !ok {
			break
		}

		node = child
		if node.set {
			best = node.duration
			found = true
		}
	}

	return best, found
}

// currentSymbol is the symbol of the current state, i.e. the last symbol of
// its label.
func (m *MSG) currentSymbol() (markov.Symbol, bool) {
	l := m.PFA.CurrentLabel()
	if l == nil {
		return 0, false
	}

	return l.Last(), true
}

// CurrentEvents returns an evaluated copy of the current symbol's event
// bundle. Control events pass through untouched.
func (m *MSG) CurrentEvents(rng *rand.Rand, res event.Resolver) []event.InterpretableEvent {
	if m.stuck {
		return nil
	}

	sym, ok := m.currentSymbol()
	if !ok {
		return nil
	}

	bundle, ok := m.EventMapping[sym]
	if !ok {
		return nil
	}

	out := make([]event.InterpretableEvent, 0, len(bundle))

	for _, src := range bundle {
		switch {
		case src.Sound != nil:
			out = append(out, event.InterpretableEvent{Sound: src.Sound.ToStatic(rng, res)})
		case src.Control != nil:
			out = append(out, event.InterpretableEvent{Control: src.Control})
		}
	}

	return out
}

// CurrentTransition returns the evaluated transition event for the current
// symbol, applying any matching override duration. The result is recorded as
// the last transition for state transfer.
func (m *MSG) CurrentTransition(rng *rand.Rand, res event.Resolver) *event.StaticEvent {
	var trans *event.StaticEvent

	if sym, ok := m.currentSymbol(); ok {
		if tmpl, ok := m.TransitionMapping[sym]; ok {
			trans = tmpl.ToStatic(rng, res)
		}
	}

	if trans == nil {
		trans = &event.StaticEvent{
			Name:   "transition",
			Params: map[event.Address]event.StaticVal{},
		}
	}

	if _, ok := trans.Params[event.Duration]; !ok {
		trans.Params[event.Duration] = event.StaticVal{m.DefaultDuration}
	}

	if d, ok := m.overrideFor(m.PFA.History); ok {
		trans.Params[event.Duration] = event.StaticVal{d}
	}

	m.LastTransition = trans

	return trans
}

// NextSymbol advances the automaton one step, recording the emitted symbol
// and aging it.
func (m *MSG) NextSymbol(rng *rand.Rand) (markov.Symbol, bool) {
	sym, ok := m.PFA.Next(rng)
	if !ok {
		m.stuck = true

		return 0, false
	}

	m.LastSymbol = sym
	m.HasLast = true
	m.SymbolAges[sym]++

	return sym, true
}

// TransferState adopts the progression of another sequence generator when
// the alphabets intersect: the other's current state if that label exists
// here, the part of its history this alphabet knows, its symbol ages and its
// last results. With disjoint alphabets the fresh state is kept.
func (m *MSG) TransferState(other *MSG) {
	if other == nil {
		return
	}

	shared := false

	for _, sym := range other.PFA.Alphabet {
		if m.PFA.HasSymbol(sym) {
			shared = true

			break
		}
	}

	if !shared {
		return
	}

	if l := other.PFA.CurrentLabel(); l != nil && m.PFA.HasState(l) {
		m.PFA.SetCurrentLabel(l)
	}

	m.stuck = false

	// keep only the part of the old history this alphabet understands
	history := m.PFA.History[:0]
	for _, sym := range other.PFA.History {
		if m.PFA.HasSymbol(sym) {
			history = append(history, sym)
		}
	}

	m.PFA.History = history

	for sym, age := range other.SymbolAges {
		if m.PFA.HasSymbol(sym) {
			m.SymbolAges[sym] = age
		}
	}

	m.LastSymbol = other.LastSymbol
	m.HasLast = other.HasLast
	m.LastTransition = other.LastTransition
}

// GrowAndSync grows the automaton and mirrors the structural change in the
// event map: the added symbol copies the template symbol's bundle with its
// parameters jittered by variance. A non-empty durations list overrides the
// grown symbol's transition duration with a randomly drawn entry instead of
// inheriting the template's.
func (m *MSG) GrowAndSync(method markov.GrowthMethod, variance float64, durations []float64, rng *rand.Rand) *markov.GrowthResult {
	res := m.PFA.Grow(method, rng)
	if res == nil {
		return nil
	}

	if tmplBundle, ok := m.EventMapping[res.TemplateSymbol]; ok {
		bundle := make([]event.SourceEvent, 0, len(tmplBundle))
		for _, src := range tmplBundle {
			bundle = append(bundle, cloneJittered(src, variance, rng))
		}

		m.EventMapping[res.AddedSymbol] = bundle
	}

	if tmplTrans, ok := m.TransitionMapping[res.TemplateSymbol]; ok {
		m.TransitionMapping[res.AddedSymbol] = tmplTrans.Clone()
	}

	if len(durations) > 0 {
		trans, ok := m.TransitionMapping[res.AddedSymbol]
		if !ok {
			trans = event.NewEvent("transition")
			m.TransitionMapping[res.AddedSymbol] = trans
		}

		trans.Put(event.Duration, event.NewScalar(durations[rng.IntN(len(durations))]))
	}

	m.SymbolAges[res.AddedSymbol] = 0

	return res
}

// ShrinkAndSync removes a symbol from the automaton and the event map.
func (m *MSG) ShrinkAndSync(sym markov.Symbol, rebalance, dontLetDie bool) *markov.GrowthResult {
	res := m.PFA.Shrink(sym, rebalance, dontLetDie)
	if res == nil {
		return nil
	}

	delete(m.EventMapping, sym)
	delete(m.TransitionMapping, sym)
	delete(m.SymbolAges, sym)

	if m.HasLast && m.LastSymbol == sym {
		m.HasLast = false
	}

	return res
}

// Shake jitters the parameters of every event bundle, skipping exempt
// addresses.
func (m *MSG) Shake(variance float64, exempt map[event.Address]bool, rng *rand.Rand) {
	for sym, bundle := range m.EventMapping {
		for i, src := range bundle {
			if src.Sound == nil {
				continue
			}

			jitterEvent(src.Sound, variance, exempt, rng)
			bundle[i] = src
		}

		m.EventMapping[sym] = bundle
	}
}

// cloneJittered deep-copies a source event, jittering sound parameters.
func cloneJittered(src event.SourceEvent, variance float64, rng *rand.Rand) event.SourceEvent {
	if src.Sound == nil {
		return src
	}

	clone := src.Sound.Clone()
	jitterEvent(clone, variance, nil, rng)

	return event.SourceEvent{Sound: clone}
}

// jitterEvent perturbs scalar parameters multiplicatively by up to variance.
func jitterEvent(ev *event.Event, variance float64, exempt map[event.Address]bool, rng *rand.Rand) {
	for addr, val := range ev.Params {
		if exempt[addr] {
			continue
		}

		scalar, ok := val.(event.ScalarVal)
		if !ok || scalar.Val.Mod != nil {
			continue
		}

		factor := 1.0 + variance*(rng.Float64()*2.0-1.0)
		ev.Params[addr] = event.NewScalar(scalar.Val.Static * factor)
	}
}

// Alphabet returns the automaton's alphabet.
func (m *MSG) Alphabet() []markov.Symbol {
	return slices.Clone(m.PFA.Alphabet)
}
