// ABOUTME: Stateless generator modifier functions (haste, grow, blur, ...)
// ABOUTME: Applied in place by constructors and the every/apple/lifemodel processors

package generator

import (
	"megra/event"
	"megra/markov"
)

// ModFun mutates a generator in place. Positional and named arguments come
// from the caller's argument list; missing arguments fall back to defaults.
type ModFun func(g *Generator, pos []float64, named map[string]float64, ctx *Context)

// posArg returns the nth positional argument or the fallback.
func posArg(pos []float64, n int, fallback float64) float64 {
	if n < len(pos) {
		return pos[n]
	}

	return fallback
}

// Haste pushes n time modifiers that divide the next durations by factor.
func Haste(g *Generator, pos []float64, _ map[string]float64, _ *Context) {
	n := int(posArg(pos, 0, 1))
	factor := posArg(pos, 1, 2)

	for range n {
		g.PushTimeMod(factor, TimeDivide)
	}
}

// Relax pushes n time modifiers that multiply the next durations by factor.
func Relax(g *Generator, pos []float64, _ map[string]float64, _ *Context) {
	n := int(posArg(pos, 0, 1))
	factor := posArg(pos, 1, 2)

	for range n {
		g.PushTimeMod(factor, TimeMultiply)
	}
}

// Grow expands the automaton by one symbol, copying the template's events
// with jitter; parameters marked with Keep take the template's values
// unjittered. The method is chosen by the numeric named argument "method",
// an index into flower, old, loop, triloop, quadloop (see
// growthMethodByIndex), defaulting to flower; callers holding a
// markov.GrowthMethod use MSG.GrowAndSync directly.
func Grow(g *Generator, pos []float64, named map[string]float64, ctx *Context) {
	variance := posArg(pos, 0, 0.2)

	method := markov.GrowFlower
	if m, ok := named["method"]; ok {
		method = growthMethodByIndex(int(m))
	}

	res := g.Root.GrowAndSync(method, variance, nil, ctx.RNG)
	if res == nil {
		return
	}

	tmpl, added := g.Root.EventMapping[res.TemplateSymbol], g.Root.EventMapping[res.AddedSymbol]
	for i := range min(len(tmpl), len(added)) {
		for addr := range g.keepParams {
			if tmpl[i].Sound == nil || added[i].Sound == nil {
				continue
			}

			if v, ok := tmpl[i].Sound.Params[addr]; ok {
				added[i].Sound.Params[addr] = v.CloneValue()
			}
		}
	}
}

// growthMethodByIndex maps a numeric argument to a growth method, for
// callers that bind arguments as numbers only.
func growthMethodByIndex(i int) markov.GrowthMethod {
	methods := []markov.GrowthMethod{
		markov.GrowFlower,
		markov.GrowOld,
		markov.GrowLoop,
		markov.GrowTriloop,
		markov.GrowQuadloop,
	}

	if i >= 0 && i < len(methods) {
		return methods[i]
	}

	return markov.GrowFlower
}

// Grown grows n times in a row.
func Grown(g *Generator, pos []float64, named map[string]float64, ctx *Context) {
	n := int(posArg(pos, 0, 1))
	rest := pos[min(1, len(pos)):]

	for range n {
		Grow(g, rest, named, ctx)
	}
}

// Shrink removes a symbol; without an argument a random one goes.
func Shrink(g *Generator, pos []float64, _ map[string]float64, ctx *Context) {
	var sym markov.Symbol

	if len(pos) > 0 {
		sym = markov.Symbol(rune(pos[0]))
	} else {
		s, ok := g.Root.PFA.RandomSymbol(ctx.RNG)
		if !ok {
			return
		}

		sym = s
	}

	g.Root.ShrinkAndSync(sym, true, true)
}

// Blur mixes outgoing probabilities towards uniform.
func Blur(g *Generator, pos []float64, _ map[string]float64, _ *Context) {
	g.Root.PFA.Blur(posArg(pos, 0, 0.5))
}

// Sharpen quantises outgoing probabilities away from uniform.
func Sharpen(g *Generator, pos []float64, _ map[string]float64, _ *Context) {
	g.Root.PFA.Sharpen(posArg(pos, 0, 0.5))
}

// Solidify converts the last n emitted symbols into a deterministic rule.
func Solidify(g *Generator, pos []float64, _ map[string]float64, _ *Context) {
	g.Root.PFA.SolidifyHistory(int(posArg(pos, 0, 2)))
}

// Shake jitters event parameters across the whole event mapping, honoring
// the generator's kept parameters.
func Shake(g *Generator, pos []float64, _ map[string]float64, ctx *Context) {
	g.Root.Shake(posArg(pos, 0, 0.2), g.KeptParams(), ctx.RNG)
}

// Skip advances the automaton n steps without emitting.
func Skip(g *Generator, pos []float64, _ map[string]float64, ctx *Context) {
	n := int(posArg(pos, 0, 1))
	for range n {
		g.Root.NextSymbol(ctx.RNG)
	}
}

// Rewind moves the history back n steps.
func Rewind(g *Generator, pos []float64, _ map[string]float64, _ *Context) {
	g.Root.PFA.RewindHistory(int(posArg(pos, 0, 1)))
}

// Rnd randomises the edge structure and rebalances.
func Rnd(g *Generator, pos []float64, _ map[string]float64, ctx *Context) {
	addP := posArg(pos, 0, 0.1)
	removeP := posArg(pos, 1, addP)

	g.Root.PFA.RandomizeEdges(addP, removeP, ctx.RNG)
	g.Root.PFA.Rebalance()
}

// Rep inserts self-edges with the given chance, bounded by max repetitions.
func Rep(g *Generator, pos []float64, _ map[string]float64, _ *Context) {
	chance := posArg(pos, 0, 50)
	max := int(posArg(pos, 1, 0))

	g.Root.PFA.Repetitions(chance, max)
}

// Reverse flips all edges.
func Reverse(g *Generator, _ []float64, _ map[string]float64, _ *Context) {
	g.Root.PFA.Reverse()
}

// Keep marks parameter addresses as exempt from jitter in later modifier
// calls. Addresses are passed through the named table with value 1.
func Keep(g *Generator, _ []float64, named map[string]float64, _ *Context) {
	for name, v := range named {
		if v != 0 {
			g.KeepParam(event.Address(name))
		}
	}
}

// ModFuns resolves modifier functions by their surface names.
var ModFuns = map[string]ModFun{
	"haste":    Haste,
	"relax":    Relax,
	"grow":     Grow,
	"grown":    Grown,
	"shrink":   Shrink,
	"blur":     Blur,
	"sharpen":  Sharpen,
	"solidify": Solidify,
	"shake":    Shake,
	"skip":     Skip,
	"rewind":   Rewind,
	"rnd":      Rnd,
	"rep":      Rep,
	"reverse":  Reverse,
	"keep":     Keep,
}
