// ABOUTME: Tests for session lifecycle, context diffing and hot reload
// ABOUTME: Uses the recording dispatcher; timing kept short

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"megra/dispatch"
	"megra/event"
	"megra/generator"
)

func sineGen(t *testing.T, name string, durMs float64, freqs ...float64) *generator.Generator {
	t.Helper()

	steps := make([]generator.Step, 0, len(freqs))
	for _, f := range freqs {
		ev := event.NewEvent("sine").PutScalar(event.PitchFrequency, f)
		steps = append(steps, generator.SoundStep(ev).WithDur(durMs))
	}

	gen, err := generator.Loop(name, 0, 0, steps...)
	require.NoError(t, err)

	return gen
}

func newTestSession() (*Session, *dispatch.Recorder) {
	rec := dispatch.NewRecorder()

	return New(Options{Dispatcher: rec}), rec
}

func TestContextStartsAndStops(t *testing.T) {
	s, rec := newTestSession()

	s.HandleContext(&SyncContext{
		Name:       "ga",
		Active:     true,
		Generators: []*generator.Generator{sineGen(t, "x", 10, 440)},
	})

	assert.Equal(t, 1, s.Running())
	time.Sleep(50 * time.Millisecond)

	s.HandleContext(&SyncContext{Name: "ga", Active: false})
	assert.Equal(t, 0, s.Running())

	dispatched := len(rec.Events())
	require.Positive(t, dispatched)

	// nothing trickles in after deactivation
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, dispatched, len(rec.Events()))
}

func TestHotReloadContinuesCycle(t *testing.T) {
	s, rec := newTestSession()

	build := func() *SyncContext {
		return &SyncContext{
			Name:       "ga",
			Active:     true,
			Generators: []*generator.Generator{sineGen(t, "x", 10, 100, 200, 300)},
		}
	}

	s.HandleContext(build())
	time.Sleep(100 * time.Millisecond)

	// re-evaluating the same expression must not restart the cycle
	s.HandleContext(build())
	assert.Equal(t, 1, s.Running(), "reload replaces, never duplicates")

	time.Sleep(100 * time.Millisecond)
	s.Clear()

	events := rec.Events()
	require.Greater(t, len(events), 6)

	next := map[float64]float64{100: 200, 200: 300, 300: 100}

	for i := 1; i < len(events); i++ {
		prev := events[i-1].Params[event.PitchFrequency]
		cur := events[i].Params[event.PitchFrequency]
		assert.Equal(t, next[prev], cur,
			"cycle broke at event %d: %v -> %v (reload restarted the automaton)", i, prev, cur)
	}
}

func TestContextDiffStopsRemovedGenerators(t *testing.T) {
	s, _ := newTestSession()

	s.HandleContext(&SyncContext{
		Name:   "ga",
		Active: true,
		Generators: []*generator.Generator{
			sineGen(t, "x", 10, 100),
			sineGen(t, "y", 10, 200),
		},
	})
	assert.Equal(t, 2, s.Running())

	s.HandleContext(&SyncContext{
		Name:       "ga",
		Active:     true,
		Generators: []*generator.Generator{sineGen(t, "x", 10, 100)},
	})
	assert.Equal(t, 1, s.Running(), "generator y must be stopped by the diff")

	s.Clear()
	assert.Equal(t, 0, s.Running())
}

func TestSoloAndBlockFiltering(t *testing.T) {
	s, _ := newTestSession()
	defer s.Clear()

	s.HandleContext(&SyncContext{
		Name:   "ga",
		Active: true,
		Generators: []*generator.Generator{
			sineGen(t, "kick", 10, 100),
			sineGen(t, "hat", 10, 200),
			sineGen(t, "snare", 10, 300),
		},
		SoloTags:  []string{"kick", "hat"},
		BlockTags: []string{"hat"},
	})

	// solo keeps kick and hat, block then removes hat
	assert.Equal(t, 1, s.Running())
}

func TestPartProxyInsertsClones(t *testing.T) {
	s, _ := newTestSession()
	defer s.Clear()

	s.Execute(&LoadPartCommand{
		Name:       "beat",
		Generators: []*generator.Generator{sineGen(t, "k", 10, 100)},
	})

	s.HandleContext(&SyncContext{
		Name:    "ga",
		Active:  true,
		Proxies: []*PartProxy{{Part: "beat"}},
	})

	assert.Equal(t, 1, s.Running())
}

func TestUnknownSyncTargetStartsUnsynced(t *testing.T) {
	s, _ := newTestSession()
	defer s.Clear()

	s.HandleContext(&SyncContext{
		Name:       "ga",
		Active:     true,
		SyncTo:     "missing",
		Generators: []*generator.Generator{sineGen(t, "x", 10, 100)},
	})

	assert.Equal(t, 1, s.Running(), "missing sync target must not prevent the start")
}

func TestClearCommand(t *testing.T) {
	s, _ := newTestSession()

	s.Apply(Evaluated{Generator: sineGen(t, "x", 10, 100)})
	require.Equal(t, 1, s.Running())

	s.Apply(Evaluated{Command: &ClearCommand{}})
	assert.Equal(t, 0, s.Running())
}

func TestInsertAndLookup(t *testing.T) {
	s, _ := newTestSession()

	s.Execute(&InsertCommand{Place: "globals", Key: "tempo", Value: 120.0})

	v, ok := s.Globals.Lookup("globals:tempo")
	require.True(t, ok)
	assert.Equal(t, 120.0, v)
}

func TestGlobalStoreWidening(t *testing.T) {
	g := NewGlobalStore()
	g.Insert("i", 3)
	g.Insert("i64", int64(4))
	g.Insert("f32", float32(2.5))
	g.Insert("b", true)
	g.Insert("s", "nope")

	cases := []struct {
		key  string
		want float64
		ok   bool
	}{
		{"i", 3, true},
		{"i64", 4, true},
		{"f32", 2.5, true},
		{"b", 1, true},
		{"s", 0, false},
		{"missing", 0, false},
	}

	for _, tc := range cases {
		got, ok := g.Lookup(tc.key)
		assert.Equal(t, tc.ok, ok, tc.key)
		assert.Equal(t, tc.want, got, tc.key)
	}
}

func TestLifemodelPoolLazyInit(t *testing.T) {
	p := NewLifemodelPool(0)
	assert.Equal(t, DefaultLifemodelResources, p.Remaining())

	require.True(t, p.TryTake(50))
	assert.Equal(t, DefaultLifemodelResources-50, p.Remaining())

	assert.False(t, p.TryTake(1e6), "overdraw must fail")

	p.Refund(25)
	assert.Equal(t, DefaultLifemodelResources-25, p.Remaining())
}

func TestXSpreadAppendsOnePearPerGenerator(t *testing.T) {
	gens := []*generator.Generator{
		sineGen(t, "a", 10, 100),
		sineGen(t, "b", 10, 200),
		sineGen(t, "c", 10, 300),
	}

	XSpread(gens, dispatch.Stereo)

	for _, g := range gens {
		require.Len(t, g.Processors, 1, "xspread appends one pear per generator")
	}
}

func TestXDupDistinctIdentities(t *testing.T) {
	dups := XDup(sineGen(t, "a", 10, 100), 3)
	require.Len(t, dups, 3)

	keys := make(map[string]bool)
	for _, d := range dups {
		keys[d.TagKey()] = true
	}

	assert.Len(t, keys, 3, "duplicates must have distinct identities")
}

func TestControlEventInjection(t *testing.T) {
	s, _ := newTestSession()
	defer s.Clear()

	ctrl := &event.ControlEvent{
		Actions: []event.Action{
			&InsertCommand{Place: "ctl", Key: "ran", Value: 1.0},
		},
	}

	s.Apply(Evaluated{ControlEvent: ctrl})

	// injection is asynchronous
	require.Eventually(t, func() bool {
		_, ok := s.Globals.Lookup("ctl:ran")

		return ok
	}, time.Second, 5*time.Millisecond)
}
