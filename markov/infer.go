// ABOUTME: Builds a PFA from explicit transition rules
// ABOUTME: Optionally removes states unreachable from any rule source

package markov

// Rule declares one transition: from the state labelled Source, emit Symbol
// with the given probability (0..1).
type Rule struct {
	Source Label
	Symbol Symbol
	Prob   float64
}

// InferFromRules builds an automaton from explicit (source, symbol,
// probability) triples. Destination states are resolved to the longest known
// suffix of source+symbol. The result is rebalanced, so declared rows that do
// not sum to 1 are proportionally scaled. When removeOrphans is set,
// single-symbol states that are neither a rule source nor the destination of
// another state's edge are dropped.
func InferFromRules(rules []Rule, removeOrphans bool) *PFA {
	p := New()

	// first pass: all states, so suffix resolution sees the full label set
	for _, r := range rules {
		p.AddState(r.Source)
		p.AddState(Label{r.Symbol})
	}

	for _, r := range rules {
		dest := p.resolveDest(r.Source, r.Symbol)
		p.AddStateTransition(r.Source, dest, r.Prob, false)
	}

	if removeOrphans {
		sources := make(map[string]bool, len(rules))
		for _, r := range rules {
			sources[r.Source.Key()] = true
		}

		var orphaned []Symbol

		for _, l := range p.labels {
			if len(l) == 1 && !sources[l.Key()] && !p.hasIncoming(l) {
				orphaned = append(orphaned, l[0])
			}
		}

		for _, sym := range orphaned {
			p.RemoveSymbol(sym, false)
		}
	}

	p.Rebalance()

	if len(p.labels) > 0 {
		p.current = p.labels[0].Key()
	}

	return p
}

// resolveDest finds the state reached after emitting sym from the source
// state: the longest stored suffix of source·sym.
func (p *PFA) resolveDest(source Label, sym Symbol) Label {
	extended := append(append(Label{}, source...), sym)

	if l := p.pst.longestSuffix(extended); l != nil {
		return l
	}

	return Label{sym}
}

func (p *PFA) hasIncoming(target Label) bool {
	key := target.Key()

	for _, st := range p.states {
		if st.label.Key() == key {
			continue
		}

		if _, ok := st.out[key]; ok {
			return true
		}
	}

	return false
}
