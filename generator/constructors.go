// ABOUTME: Generator constructors (nuc, loop, infer, learn, fully, flower, linear, cycle)
// ABOUTME: All of them bind generated symbols to event bundles over an inferred PFA

package generator

import (
	"fmt"

	"megra/event"
	"megra/markov"
)

// Step is one position in a constructed sequence: the events fired there and
// the duration towards the next position.
type Step struct {
	Events []event.SourceEvent

	// Dur overrides the transition duration (milliseconds); nil falls back
	// to the generator default.
	Dur *event.DynVal
}

// SoundStep wraps a single sound event into a step.
func SoundStep(ev *event.Event) Step {
	return Step{Events: []event.SourceEvent{{Sound: ev}}}
}

// WithDur sets the step's transition duration.
func (s Step) WithDur(ms float64) Step {
	s.Dur = event.Static(ms)

	return s
}

// transitionTemplate builds the per-symbol transition event.
func transitionTemplate(dur *event.DynVal) *event.Event {
	tmpl := event.NewEvent("transition")
	if dur != nil {
		tmpl.Put(event.Duration, event.ScalarVal{Val: dur})
	}

	return tmpl
}

// sequenceSymbols generates '1', '2', ... for constructed sequences.
func sequenceSymbols(n int) []markov.Symbol {
	syms := make([]markov.Symbol, n)
	for i := range syms {
		syms[i] = markov.Symbol(rune('1' + i))
	}

	return syms
}

// bind fills the MSG's event and transition mappings for the given steps.
func bind(msg *MSG, syms []markov.Symbol, steps []Step) {
	for i, step := range steps {
		msg.EventMapping[syms[i]] = step.Events
		msg.TransitionMapping[syms[i]] = transitionTemplate(step.Dur)
	}
}

// Nuc builds a nucleus: one state with a self-loop of probability 1,
// emitting the given events with a fixed duration.
func Nuc(name string, dur *event.DynVal, events ...*event.Event) *Generator {
	bundle := make([]event.SourceEvent, 0, len(events))
	for _, ev := range events {
		bundle = append(bundle, event.SourceEvent{Sound: ev})
	}

	pfa := markov.InferFromRules([]markov.Rule{
		{Source: markov.Label{'1'}, Symbol: '1', Prob: 1.0},
	}, false)

	msg := NewMSG(name, pfa)
	msg.EventMapping['1'] = bundle
	msg.TransitionMapping['1'] = transitionTemplate(dur)

	return New(msg, name)
}

// Loop builds a cycle through the steps. A repetition chance (percent)
// adds self-loops; maxRep bounds run lengths through a higher-order exit
// rule, matching the repetition scheme of learned pieces.
func Loop(name string, repChance float64, maxRep int, steps ...Step) (*Generator, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("loop %q needs at least one step", name)
	}

	syms := sequenceSymbols(len(steps))

	var rules []markov.Rule

	for i, sym := range syms {
		next := syms[(i+1)%len(syms)]

		if repChance > 0 {
			p := repChance / 100.0
			rules = append(rules,
				markov.Rule{Source: markov.Label{sym}, Symbol: sym, Prob: p},
				markov.Rule{Source: markov.Label{sym}, Symbol: next, Prob: 1.0 - p},
			)

			if maxRep >= 2 {
				bounded := make(markov.Label, maxRep)
				for j := range bounded {
					bounded[j] = sym
				}

				rules = append(rules, markov.Rule{Source: bounded, Symbol: next, Prob: 1.0})
			}
		} else {
			rules = append(rules, markov.Rule{Source: markov.Label{sym}, Symbol: next, Prob: 1.0})
		}
	}

	pfa := markov.InferFromRules(rules, false)

	if repChance > 0 && maxRep >= 2 {
		// the start state counts towards the first run, so the bounded exit
		// rule has to see it in the history
		pfa.History = append(pfa.History, syms[0])
	}

	msg := NewMSG(name, pfa)
	bind(msg, syms, steps)

	return New(msg, name), nil
}

// Cycle builds a plain loop without repetition, the shape the cyc notation
// produces.
func Cycle(name string, steps ...Step) (*Generator, error) {
	return Loop(name, 0, 0, steps...)
}

// Linear builds a one-shot chain: the last step has no outgoing edge, so the
// generator goes quiet after one pass unless restarted.
func Linear(name string, steps ...Step) (*Generator, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("linear %q needs at least one step", name)
	}

	syms := sequenceSymbols(len(steps))

	var rules []markov.Rule
	for i := 0; i < len(syms)-1; i++ {
		rules = append(rules, markov.Rule{Source: markov.Label{syms[i]}, Symbol: syms[i+1], Prob: 1.0})
	}

	if len(syms) == 1 {
		rules = append(rules, markov.Rule{Source: markov.Label{syms[0]}, Symbol: syms[0], Prob: 1.0})
	}

	pfa := markov.InferFromRules(rules, false)
	msg := NewMSG(name, pfa)
	bind(msg, syms, steps)

	gen := New(msg, name)
	gen.Root.PFA.SetCurrentLabel(markov.Label{syms[0]})

	return gen, nil
}

// Fully builds a fully connected automaton: every step can follow every
// other with uniform probability.
func Fully(name string, steps ...Step) (*Generator, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("fully %q needs at least one step", name)
	}

	syms := sequenceSymbols(len(steps))
	prob := 1.0 / float64(len(syms))

	var rules []markov.Rule
	for _, from := range syms {
		for _, to := range syms {
			rules = append(rules, markov.Rule{Source: markov.Label{from}, Symbol: to, Prob: prob})
		}
	}

	pfa := markov.InferFromRules(rules, false)
	msg := NewMSG(name, pfa)
	bind(msg, syms, steps)

	return New(msg, name), nil
}

// Flower builds a pistil-and-petals automaton: the first step is the
// center, every other step is a petal reachable only from the center and
// returning to it.
func Flower(name string, steps ...Step) (*Generator, error) {
	if len(steps) < 2 {
		return nil, fmt.Errorf("flower %q needs a pistil and at least one petal", name)
	}

	syms := sequenceSymbols(len(steps))
	center := syms[0]
	petals := syms[1:]
	prob := 1.0 / float64(len(petals))

	var rules []markov.Rule
	for _, petal := range petals {
		rules = append(rules,
			markov.Rule{Source: markov.Label{center}, Symbol: petal, Prob: prob},
			markov.Rule{Source: markov.Label{petal}, Symbol: center, Prob: 1.0},
		)
	}

	pfa := markov.InferFromRules(rules, false)
	msg := NewMSG(name, pfa)
	bind(msg, syms, steps)

	gen := New(msg, name)
	gen.Root.PFA.SetCurrentLabel(markov.Label{center})

	return gen, nil
}

// Infer builds a generator from explicit rules and a symbol-to-events
// binding.
func Infer(name string, rules []markov.Rule, mapping map[markov.Symbol]Step, removeOrphans bool) (*Generator, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("infer %q needs at least one rule", name)
	}

	pfa := markov.InferFromRules(rules, removeOrphans)
	msg := NewMSG(name, pfa)

	for sym, step := range mapping {
		msg.EventMapping[sym] = step.Events
		msg.TransitionMapping[sym] = transitionTemplate(step.Dur)
	}

	return New(msg, name), nil
}

// Learn builds a generator from a training sample string, one symbol per
// rune, with the given per-symbol event bindings.
func Learn(name, sample string, bound int, epsilon float64, maxStates int, mapping map[markov.Symbol]Step) (*Generator, error) {
	if sample == "" {
		return nil, fmt.Errorf("learn %q needs a non-empty sample", name)
	}

	pfa := markov.Learn(markov.LabelOf(sample), bound, epsilon, maxStates)
	msg := NewMSG(name, pfa)

	for sym, step := range mapping {
		msg.EventMapping[sym] = step.Events
		msg.TransitionMapping[sym] = transitionTemplate(step.Dur)
	}

	return New(msg, name), nil
}
