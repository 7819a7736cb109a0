// ABOUTME: Tests for the PFA engine core operations
// ABOUTME: Validates row-stochasticity, sampling, structural edits and transfer behavior

package markov

import (
	"math"
	"math/rand/v2"
	"testing"
)

func testRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b9))
}

// nucleus builds the smallest useful automaton: one state, one self-loop
func nucleus(sym Symbol) *PFA {
	return InferFromRules([]Rule{
		{Source: Label{sym}, Symbol: sym, Prob: 1.0},
	}, false)
}

func assertRowSums(t *testing.T, p *PFA, context string) {
	t.Helper()

	if bad := p.CheckRowSums(); len(bad) != 0 {
		t.Errorf("%s: %d states violate row-stochasticity: %v", context, len(bad), bad)
	}
}

func TestNucleusSelfLoop(t *testing.T) {
	p := nucleus('a')

	if p.Size() != 1 {
		t.Fatalf("expected 1 state, got %d", p.Size())
	}

	if len(p.Alphabet) != 1 || p.Alphabet[0] != 'a' {
		t.Errorf("expected alphabet {a}, got %v", p.Alphabet)
	}

	rng := testRNG(1)
	for i := range 5 {
		sym, ok := p.Next(rng)
		if !ok || sym != 'a' {
			t.Fatalf("step %d: expected (a, true), got (%c, %v)", i, sym, ok)
		}
	}
}

func TestInferRowSums(t *testing.T) {
	// declared probabilities deliberately do not sum to 1
	p := InferFromRules([]Rule{
		{Source: Label{'a'}, Symbol: 'a', Prob: 0.5},
		{Source: Label{'a'}, Symbol: 'b', Prob: 1.5},
		{Source: Label{'b'}, Symbol: 'a', Prob: 0.2},
	}, false)

	assertRowSums(t, p, "after infer")

	got := p.OutgoingProbability(Label{'a'}, 'b')
	if math.Abs(got-0.75) > probTolerance {
		t.Errorf("expected proportional scaling to 0.75, got %f", got)
	}
}

func TestInferDeterminism(t *testing.T) {
	rules := []Rule{
		{Source: Label{'a'}, Symbol: 'b', Prob: 0.6},
		{Source: Label{'a'}, Symbol: 'a', Prob: 0.4},
		{Source: Label{'b'}, Symbol: 'a', Prob: 1.0},
	}

	p1 := InferFromRules(rules, false)
	p2 := InferFromRules(rules, false)

	for _, l := range p1.Labels() {
		for _, sym := range p1.Alphabet {
			a := p1.OutgoingProbability(l, sym)
			b := p2.OutgoingProbability(l, sym)
			if math.Abs(a-b) > probTolerance {
				t.Errorf("delta(%v,%c) differs between identical infers: %f vs %f", l, sym, a, b)
			}
		}
	}
}

func TestAlphabetClosure(t *testing.T) {
	p := InferFromRules([]Rule{
		{Source: Label{'a'}, Symbol: 'b', Prob: 0.5},
		{Source: Label{'a'}, Symbol: 'c', Prob: 0.5},
		{Source: Label{'b'}, Symbol: 'a', Prob: 1.0},
		{Source: Label{'c'}, Symbol: 'a', Prob: 1.0},
	}, false)

	for _, l := range p.Labels() {
		if len(l) == 0 {
			t.Error("found empty state label")
		}

		for _, sym := range l {
			if !p.HasSymbol(sym) {
				t.Errorf("label %v contains symbol %c missing from alphabet", l, sym)
			}
		}
	}
}

func TestRandomizeEdgesKeepsRowSums(t *testing.T) {
	p := InferFromRules([]Rule{
		{Source: Label{'a'}, Symbol: 'b', Prob: 1.0},
		{Source: Label{'b'}, Symbol: 'a', Prob: 1.0},
	}, false)

	rng := testRNG(7)
	p.RandomizeEdges(0.3, 0.3, rng)
	p.Rebalance()

	assertRowSums(t, p, "after randomize+rebalance")
}

func TestReverseKeepsRowSums(t *testing.T) {
	p := InferFromRules([]Rule{
		{Source: Label{'a'}, Symbol: 'b', Prob: 0.7},
		{Source: Label{'a'}, Symbol: 'a', Prob: 0.3},
		{Source: Label{'b'}, Symbol: 'a', Prob: 1.0},
	}, false)

	p.Reverse()
	assertRowSums(t, p, "after reverse")
}

func TestGrowFlowerAddsPetal(t *testing.T) {
	p := nucleus('a')
	rng := testRNG(3)

	// need history before growth has anything to attach to
	p.Next(rng)
	p.Next(rng)

	res := p.Grow(GrowFlower, rng)
	if res == nil {
		t.Fatal("expected growth to succeed")
	}

	if res.TemplateSymbol != 'a' {
		t.Errorf("expected template symbol a, got %c", res.TemplateSymbol)
	}

	if !p.HasSymbol(res.AddedSymbol) {
		t.Error("added symbol missing from alphabet")
	}

	if p.Size() != 2 {
		t.Errorf("expected 2 states after growth, got %d", p.Size())
	}

	assertRowSums(t, p, "after grow")
}

func TestGrowWithoutHistoryIsNoop(t *testing.T) {
	p := nucleus('a')

	if res := p.Grow(GrowFlower, testRNG(1)); res != nil {
		t.Error("expected growth with empty history to be a no-op")
	}
}

func TestShrinkRemovesSymbol(t *testing.T) {
	p := InferFromRules([]Rule{
		{Source: Label{'a'}, Symbol: 'b', Prob: 1.0},
		{Source: Label{'b'}, Symbol: 'a', Prob: 1.0},
	}, false)

	res := p.Shrink('b', true, false)
	if res == nil {
		t.Fatal("expected shrink to succeed")
	}

	if p.HasSymbol('b') {
		t.Error("symbol b still in alphabet after shrink")
	}

	if p.HasState(Label{'b'}) {
		t.Error("state b still present after shrink")
	}

	assertRowSums(t, p, "after shrink")
}

func TestShrinkDontLetDie(t *testing.T) {
	p := nucleus('a')

	if res := p.Shrink('a', true, true); res != nil {
		t.Error("expected shrink of last symbol to be refused")
	}

	if p.Size() != 1 {
		t.Errorf("automaton died: %d states", p.Size())
	}
}

func TestStuckBehavior(t *testing.T) {
	p := InferFromRules([]Rule{
		{Source: Label{'a'}, Symbol: 'b', Prob: 1.0},
		{Source: Label{'b'}, Symbol: 'a', Prob: 1.0},
	}, false)

	// strand the automaton on a state with no outgoing edges
	p.AddState(Label{'z'})
	p.SetCurrentLabel(Label{'z'})

	if _, ok := p.Next(testRNG(1)); ok {
		t.Error("expected stuck automaton to yield nothing")
	}

	p.RestartWhenStuck = true

	if _, ok := p.Next(testRNG(1)); !ok {
		t.Error("expected restart-when-stuck to recover")
	}
}

func TestRepetitionsEmpiricalRate(t *testing.T) {
	p := InferFromRules([]Rule{
		{Source: Label{'a'}, Symbol: 'b', Prob: 1.0},
		{Source: Label{'b'}, Symbol: 'a', Prob: 1.0},
	}, false)

	p.Repetitions(50.0, 3)
	assertRowSums(t, p, "after rep")

	if got := p.OutgoingProbability(Label{'a'}, 'a'); math.Abs(got-0.5) > 0.02 {
		t.Errorf("self-edge probability %f, expected 0.5", got)
	}

	rng := testRNG(42)

	const steps = 10000

	var last Symbol
	runLength := 0
	maxRun := 0

	for range steps {
		sym, ok := p.Next(rng)
		if !ok {
			t.Fatal("automaton got stuck")
		}

		if sym == last {
			runLength++
		} else {
			runLength = 1
		}

		if runLength > maxRun {
			maxRun = runLength
		}

		last = sym
	}

	if maxRun > 3 {
		t.Errorf("run of %d identical symbols, max repetitions is 3", maxRun)
	}
}

func TestSolidifyHistory(t *testing.T) {
	p := InferFromRules([]Rule{
		{Source: Label{'a'}, Symbol: 'b', Prob: 0.5},
		{Source: Label{'a'}, Symbol: 'a', Prob: 0.5},
		{Source: Label{'b'}, Symbol: 'a', Prob: 1.0},
	}, false)

	rng := testRNG(9)
	for range 6 {
		p.Next(rng)
	}

	p.SolidifyHistory(2)
	assertRowSums(t, p, "after solidify")
}

func TestRewindHistory(t *testing.T) {
	p := InferFromRules([]Rule{
		{Source: Label{'a'}, Symbol: 'b', Prob: 1.0},
		{Source: Label{'b'}, Symbol: 'a', Prob: 1.0},
	}, false)

	rng := testRNG(5)
	for range 4 {
		p.Next(rng)
	}

	before := len(p.History)
	p.RewindHistory(1)

	if len(p.History) != before-1 {
		t.Errorf("expected history to drop by 1, got %d -> %d", before, len(p.History))
	}
}
