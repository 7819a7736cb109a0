// ABOUTME: Tests for the Markov sequence generator bindings
// ABOUTME: Covers override durations, orphan entries and the mapper processor

package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"megra/event"
	"megra/markov"
)

func TestOverrideDurationMatchesHistorySuffix(t *testing.T) {
	gen, err := Loop("o", 0, 0, SoundStep(sine(100)).WithDur(300), SoundStep(sine(200)).WithDur(300))
	require.NoError(t, err)

	// after the sequence 1,2 the next transition is rushed
	gen.Root.SetOverrideDuration([]markov.Symbol{'1', '2'}, 50)

	ctx := testCtx(41)

	// the history records entered states, so the 1,2 suffix is first
	// complete when the fourth tick plays '2' again
	for _, want := range []float64{300, 300, 300, 50, 300} {
		_, trans := gen.Tick(ctx)
		assert.Equal(t, want, trans.Params[event.Duration].Scalar())
	}
}

func TestOrphanedMappingEntriesIgnored(t *testing.T) {
	gen := Nuc("orphan", nil, sine(100))

	// an entry for a symbol the automaton never reaches is permitted
	gen.Root.EventMapping['z'] = []event.SourceEvent{{Sound: sine(999)}}

	ctx := testCtx(42)

	for range 5 {
		events, _ := gen.Tick(ctx)
		require.Len(t, events, 1)
		assert.Equal(t, 100.0, events[0].Sound.Params[event.PitchFrequency].Scalar())
	}
}

type funcMap map[string]func(*event.StaticEvent)

func (f funcMap) EventFunc(name string) (func(*event.StaticEvent), bool) {
	fn, ok := f[name]

	return fn, ok
}

func TestMapperAppliesNamedFunction(t *testing.T) {
	gen := Nuc("m", nil, sine(440))
	gen.Processors = append(gen.Processors, &Mapper{FuncName: "octave-up"})

	ctx := testCtx(43)
	ctx.Functions = funcMap{
		"octave-up": func(ev *event.StaticEvent) {
			ev.Params[event.PitchFrequency] = event.StaticVal{ev.Params[event.PitchFrequency].Scalar() * 2}
		},
	}

	events, _ := gen.Tick(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, 880.0, events[0].Sound.Params[event.PitchFrequency].Scalar())
}

func TestMapperUnknownFunctionIsNoop(t *testing.T) {
	gen := Nuc("m", nil, sine(440))
	gen.Processors = append(gen.Processors, &Mapper{FuncName: "nope"})

	ctx := testCtx(44)
	ctx.Functions = funcMap{}

	events, _ := gen.Tick(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, 440.0, events[0].Sound.Params[event.PitchFrequency].Scalar())
}
