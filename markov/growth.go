// ABOUTME: Heuristic growth methods that expand a PFA into new shapes
// ABOUTME: Implements flower, old, loop, triloop and quadloop plus shrink

package markov

import (
	"math/rand/v2"
	"slices"
)

// GrowthMethod names the available growth heuristics.
type GrowthMethod string

const (
	GrowOld      GrowthMethod = "old"
	GrowFlower   GrowthMethod = "flower"
	GrowLoop     GrowthMethod = "loop"
	GrowTriloop  GrowthMethod = "triloop"
	GrowQuadloop GrowthMethod = "quadloop"
)

// GrowthResult describes a structural edit so callers can synchronise their
// symbol-keyed side tables (the event map copies the template symbol's bundle
// for the added symbol, with jitter).
type GrowthResult struct {
	AddedStates    []Label
	RemovedStates  []Label
	AddedEdges     []*Edge
	RemovedEdges   []*Edge
	TemplateSymbol Symbol
	AddedSymbol    Symbol
}

// Grow expands the automaton using the named method. Returns nil when growth
// is impossible right now (empty history, missing states, or no fresh symbol
// found within the attempt bound); the caller treats that as a no-op.
func (p *PFA) Grow(method GrowthMethod, rng *rand.Rand) *GrowthResult {
	switch method {
	case GrowOld:
		return p.growOld(rng)
	case GrowFlower:
		return p.growFlower(rng)
	case GrowTriloop:
		return p.growCycle(3, rng)
	case GrowQuadloop:
		return p.growCycle(4, rng)
	case GrowLoop:
		return p.growCycle(len(p.History), rng)
	default:
		return p.growFlower(rng)
	}
}

// growOld splices a fresh symbol between the first and last symbols of the
// history: edges run new→first, new→last plus entries from every state ending
// in either of those symbols.
func (p *PFA) growOld(rng *rand.Rand) *GrowthResult {
	if len(p.History) == 0 {
		return nil
	}

	sourceID := Label{p.History[0]}
	destID := Label{p.History[len(p.History)-1]}
	template := p.History[rng.IntN(len(p.History))]

	if !p.HasState(sourceID) || !p.HasState(destID) {
		return nil
	}

	fresh, ok := p.freshSymbol(rng)
	if !ok {
		return nil
	}

	newState := Label{fresh}
	p.AddState(newState)

	additions := []*Edge{
		p.AddStateTransition(newState, sourceID, 0.05+rng.Float64()*0.2, false),
		p.AddStateTransition(newState, destID, 0.05+rng.Float64()*0.2, false),
	}
	additions = append(additions, p.AddSymbolTransition(sourceID[0], newState, 0.05+rng.Float64()*0.2, false)...)
	additions = append(additions, p.AddSymbolTransition(destID[0], newState, 0.05+rng.Float64()*0.2, false)...)

	p.Rebalance()

	return &GrowthResult{
		AddedStates:    []Label{newState},
		AddedEdges:     compactEdges(additions),
		TemplateSymbol: template,
		AddedSymbol:    fresh,
	}
}

// growFlower grows a new outer petal off the state identified by the longest
// history suffix: the petal points back at its source, and everything ending
// in the source symbol can reach the petal.
func (p *PFA) growFlower(rng *rand.Rand) *GrowthResult {
	if len(p.History) == 0 {
		return nil
	}

	var sourceID Label

	for i := len(p.History) - 1; i >= 0; i-- {
		sourceID = append(Label{p.History[i]}, sourceID...)
		if p.HasState(sourceID) {
			break
		}

		if len(sourceID) > 4 {
			// only look back so far
			return nil
		}
	}

	if !p.HasState(sourceID) {
		return nil
	}

	fresh, ok := p.freshSymbol(rng)
	if !ok {
		return nil
	}

	newState := Label{fresh}
	p.AddState(newState)

	additions := []*Edge{
		p.AddStateTransition(newState, sourceID, 0.2+rng.Float64()*0.2, false),
	}
	additions = append(additions, p.AddSymbolTransition(sourceID[0], newState, 0.2+rng.Float64()*0.2, false)...)

	p.Rebalance()

	return &GrowthResult{
		AddedStates:    []Label{newState},
		AddedEdges:     compactEdges(additions),
		TemplateSymbol: sourceID[0],
		AddedSymbol:    fresh,
	}
}

// growCycle grows a fresh symbol into an n-cycle through the most recent
// history symbols: last → new → the symbol n-1 places from the end, whose
// path through the history back to the last symbol closes the cycle.
func (p *PFA) growCycle(n int, rng *rand.Rand) *GrowthResult {
	if n < 3 || len(p.History) < n {
		return nil
	}

	sourceID := Label{p.History[len(p.History)-1]}
	destID := Label{p.History[len(p.History)-(n-1)]}

	if !p.HasState(sourceID) || !p.HasState(destID) {
		return nil
	}

	fresh, ok := p.freshSymbol(rng)
	if !ok {
		return nil
	}

	newState := Label{fresh}
	p.AddState(newState)

	additions := []*Edge{
		p.AddStateTransition(newState, destID, 0.2+rng.Float64()*0.2, false),
	}
	additions = append(additions, p.AddSymbolTransition(sourceID[0], newState, 0.2+rng.Float64()*0.2, false)...)

	p.rebuildPST()
	p.Rebalance()

	return &GrowthResult{
		AddedStates:    []Label{newState},
		AddedEdges:     compactEdges(additions),
		TemplateSymbol: sourceID[0],
		AddedSymbol:    fresh,
	}
}

// Shrink removes a symbol and reports the removed states. When dontLetDie is
// set and the removal would empty the automaton, nothing happens.
func (p *PFA) Shrink(sym Symbol, rebalance, dontLetDie bool) *GrowthResult {
	if dontLetDie && len(p.Alphabet) <= 1 {
		return nil
	}

	if !p.HasSymbol(sym) {
		return nil
	}

	removed := p.RemoveSymbol(sym, rebalance)
	if removed == nil {
		return nil
	}

	return &GrowthResult{RemovedStates: removed}
}

// RandomSymbol picks a symbol from the alphabet, for autophagia-style pruning.
func (p *PFA) RandomSymbol(rng *rand.Rand) (Symbol, bool) {
	if len(p.Alphabet) == 0 {
		return 0, false
	}

	return p.Alphabet[rng.IntN(len(p.Alphabet))], true
}

func compactEdges(edges []*Edge) []*Edge {
	return slices.DeleteFunc(edges, func(e *Edge) bool { return e == nil })
}
