// ABOUTME: Tests for variable-order model learning
// ABOUTME: Checks context pruning and empirical bigram fidelity

package markov

import (
	"math"
	"strings"
	"testing"
)

func bigramFreqs(seq []Symbol) map[string]float64 {
	counts := make(map[string]int)

	for i := 1; i < len(seq); i++ {
		counts[string(rune(seq[i-1]))+string(rune(seq[i]))]++
	}

	freqs := make(map[string]float64, len(counts))
	total := float64(len(seq) - 1)

	for k, n := range counts {
		freqs[k] = float64(n) / total
	}

	return freqs
}

func TestLearnEmptySample(t *testing.T) {
	p := Learn(nil, 3, 0.01, 30)
	if !p.IsEmpty() {
		t.Error("expected empty automaton from empty sample")
	}
}

func TestLearnKeepsOrderOneStates(t *testing.T) {
	p := Learn(LabelOf("aabab"), 3, 0.01, 30)

	for _, sym := range []Symbol{'a', 'b'} {
		if !p.HasState(Label{sym}) {
			t.Errorf("order-1 context %c missing", sym)
		}
	}

	assertRowSums(t, p, "after learn")
}

func TestLearnPrunesRedundantContexts(t *testing.T) {
	// in "ababab..." the context "ab" predicts exactly what "b" predicts,
	// so it must be pruned at any sensible epsilon
	p := Learn(LabelOf(strings.Repeat("ab", 20)), 3, 0.1, 100)

	if p.HasState(LabelOf("ab")) {
		t.Error("redundant context survived pruning")
	}
}

func TestLearnStateCap(t *testing.T) {
	p := Learn(LabelOf(strings.Repeat("aabab", 10)), 3, 0.0001, 3)

	if p.Size() > 3 {
		t.Errorf("state cap violated: %d states", p.Size())
	}

	// the cap drops long contexts first; order-1 states survive
	for _, sym := range []Symbol{'a', 'b'} {
		if !p.HasState(Label{sym}) {
			t.Errorf("state cap evicted order-1 context %c", sym)
		}
	}
}

func TestLearnBigramFidelity(t *testing.T) {
	sample := LabelOf(strings.Repeat("aabab", 20))
	want := bigramFreqs(sample)

	p := Learn(sample, 3, 0.01, 30)
	assertRowSums(t, p, "after learn")

	rng := testRNG(77)

	const steps = 10000

	seq := make([]Symbol, 0, steps)

	for range steps {
		sym, ok := p.Next(rng)
		if !ok {
			t.Fatal("learned automaton got stuck")
		}

		seq = append(seq, sym)
	}

	got := bigramFreqs(seq)

	for bigram, wantFreq := range want {
		if diff := math.Abs(got[bigram] - wantFreq); diff > 0.05 {
			t.Errorf("bigram %q frequency off by %.3f (got %.3f, want %.3f)",
				bigram, diff, got[bigram], wantFreq)
		}
	}

	for bigram := range got {
		if _, ok := want[bigram]; !ok && got[bigram] > 0.01 {
			t.Errorf("generated bigram %q never occurs in the sample", bigram)
		}
	}
}

func TestInferWithoutOrphanRemovalKeepsStates(t *testing.T) {
	// 'c' is a rule source that no rule leads into
	p := InferFromRules([]Rule{
		{Source: Label{'a'}, Symbol: 'b', Prob: 1.0},
		{Source: Label{'b'}, Symbol: 'a', Prob: 1.0},
		{Source: Label{'c'}, Symbol: 'a', Prob: 1.0},
	}, false)

	if !p.HasState(Label{'c'}) {
		t.Fatal("state c should exist without orphan removal")
	}
}
