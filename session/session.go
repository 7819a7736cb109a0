// ABOUTME: Session owning running schedulers and sync context lifecycles
// ABOUTME: Context replacement diffs id-tag sets and transfers generator state

// Package session manages the lifetime of running generators: sync contexts
// are evaluated into scheduler diffs, generators present before and after a
// reload keep their progression, and control events emitted by running
// pieces re-enter here.
package session

import (
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"megra/dispatch"
	"megra/event"
	"megra/generator"
	"megra/pool"
	"megra/samples"
	"megra/scheduler"
)

// Session owns every running scheduler. Only the evaluator thread creates,
// replaces or removes schedulers; the session mutex guards the diff step.
type Session struct {
	// mu guards the scheduler and context maps; it is held only during the
	// diff step, never across a tick
	mu sync.Mutex

	dispatcher dispatch.Dispatcher
	mode       dispatch.OutputMode
	latency    float64

	// schedulers by generator tag key
	schedulers map[string]*scheduler.Scheduler

	// contexts remembers which tag keys each sync context contributed
	contexts map[string]map[string]bool

	// contextShift remembers each context's shift for sync_to resolution
	contextShift map[string]float64

	parts map[string][]*generator.Generator

	Globals   *GlobalStore
	Pool      *LifemodelPool
	Functions *FuncRegistry
	Samples   *samples.Registry
}

// Options configures a session.
type Options struct {
	Dispatcher dispatch.Dispatcher
	Mode       dispatch.OutputMode

	// LatencySeconds forwarded to every scheduler; zero means the default.
	LatencySeconds float64

	// LifemodelResources seeds the global pool; zero means the default.
	LifemodelResources float64
}

// New returns an empty session.
func New(opts Options) *Session {
	return &Session{
		dispatcher:   opts.Dispatcher,
		mode:         opts.Mode,
		latency:      opts.LatencySeconds,
		schedulers:   make(map[string]*scheduler.Scheduler),
		contexts:     make(map[string]map[string]bool),
		contextShift: make(map[string]float64),
		parts:        make(map[string][]*generator.Generator),
		Globals:      NewGlobalStore(),
		Pool:         NewLifemodelPool(opts.LifemodelResources),
		Functions:    NewFuncRegistry(),
		Samples:      samples.NewRegistry(opts.Dispatcher),
	}
}

// Apply dispatches one evaluated value from the evaluator.
func (s *Session) Apply(v Evaluated) {
	switch {
	case v.SyncContext != nil:
		s.HandleContext(v.SyncContext)
	case v.Command != nil:
		s.Execute(v.Command)
	case v.ControlEvent != nil:
		s.injectControl(v.ControlEvent)
	case v.Generator != nil:
		// a bare generator becomes a context of its own
		s.HandleContext(&SyncContext{
			Name:       v.Generator.TagKey(),
			Generators: []*generator.Generator{v.Generator},
			Active:     true,
		})
	case v.GeneratorList != nil:
		for _, g := range v.GeneratorList {
			s.Apply(Evaluated{Generator: g})
		}
	}
}

// newRunContext builds the per-scheduler environment.
func (s *Session) newRunContext() *generator.Context {
	seed := uint64(time.Now().UnixNano())

	return &generator.Context{
		RNG:       rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb)),
		Globals:   s.Globals,
		Pool:      s.Pool,
		Functions: s.Functions,
	}
}

// HandleContext evaluates a sync context: deactivation stops its
// generators, activation diffs the new generator set against the old one,
// transferring state where identities match.
func (s *Session) HandleContext(ctx *SyncContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handleContext(ctx)
}

func (s *Session) handleContext(ctx *SyncContext) {
	if !ctx.Active {
		s.dropContext(ctx.Name)

		return
	}

	gens := append([]*generator.Generator{}, ctx.Generators...)

	// resolve part proxies into generator clones with extra processors
	for _, proxy := range ctx.Proxies {
		part, ok := s.parts[proxy.Part]
		if !ok {
			log.Printf("session: context %q references unknown part %q", ctx.Name, proxy.Part)

			continue
		}

		for _, g := range part {
			clone := g.Clone()
			clone.Processors = append(clone.Processors, proxy.Processors...)
			gens = append(gens, clone)
		}
	}

	// claim the generators for this context, then filter
	for _, g := range gens {
		g.AddIDTag(ctx.Name)
	}

	gens = filterSoloBlock(gens, ctx.SoloTags, ctx.BlockTags)

	shift := ctx.Shift / 1000.0

	// sync to another context when possible; a missing target means start
	// at our own shift as if unsynced
	if ctx.SyncTo != "" {
		if target, ok := s.contextShift[ctx.SyncTo]; ok {
			shift += target
		} else {
			log.Printf("session: sync target %q not found, starting unsynced", ctx.SyncTo)
		}
	}

	newKeys := make(map[string]bool, len(gens))

	for _, g := range gens {
		newKeys[g.TagKey()] = true
		s.startGenerator(g, shift)
	}

	// stop whatever this context ran before that is gone now
	if old, ok := s.contexts[ctx.Name]; ok {
		var gone []string

		for key := range old {
			if !newKeys[key] {
				gone = append(gone, key)
			}
		}

		s.stopKeys(gone)
	}

	s.contexts[ctx.Name] = newKeys
	s.contextShift[ctx.Name] = shift
}

// filterSoloBlock applies solo and block tag filtering on generator ids.
func filterSoloBlock(gens []*generator.Generator, solo, block []string) []*generator.Generator {
	out := gens[:0]

	for _, g := range gens {
		keep := true

		if len(solo) > 0 {
			keep = false

			for _, tag := range solo {
				if g.HasIDTag(tag) {
					keep = true

					break
				}
			}
		}

		for _, tag := range block {
			if g.HasIDTag(tag) {
				keep = false

				break
			}
		}

		if keep {
			out = append(out, g)
		}
	}

	return out
}

// startGenerator starts a fresh scheduler or swaps the generator into an
// existing one, transferring runtime state.
func (s *Session) startGenerator(g *generator.Generator, shift float64) {
	key := g.TagKey()

	if sched, ok := s.schedulers[key]; ok {
		sched.Swap(g, true, shift)

		return
	}

	sched := scheduler.New(g, scheduler.Params{
		Dispatcher: s.dispatcher,
		Mode:       s.mode,
		Latency:    s.latency,
		Shift:      shift,
		Ctx:        s.newRunContext(),
		Controls:   s.injectControl,
	})

	s.schedulers[key] = sched
	sched.Start()
}

// dropContext stops and forgets everything a context contributed.
func (s *Session) dropContext(name string) {
	old, ok := s.contexts[name]
	if !ok {
		return
	}

	keys := make([]string, 0, len(old))
	for key := range old {
		keys = append(keys, key)
	}

	s.stopKeys(keys)
	delete(s.contexts, name)
	delete(s.contextShift, name)
}

// stopKeys stops schedulers in parallel and waits for all joins.
func (s *Session) stopKeys(keys []string) {
	var stops []func()

	for _, key := range keys {
		if sched, ok := s.schedulers[key]; ok {
			delete(s.schedulers, key)
			stops = append(stops, sched.Stop)
		}
	}

	pool.StopAll(stops)
}

// Clear stops every running generator and forgets all contexts.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

func (s *Session) clear() {
	keys := make([]string, 0, len(s.schedulers))
	for key := range s.schedulers {
		keys = append(keys, key)
	}

	s.stopKeys(keys)

	s.contexts = make(map[string]map[string]bool)
	s.contextShift = make(map[string]float64)
}

// Running reports the number of live schedulers.
func (s *Session) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.schedulers)
}

// injectControl feeds a control event's payload back into the session.
// Called from scheduler threads at dispatch time; the work moves off the
// scheduler thread so a control action may stop its own scheduler without
// deadlocking the join.
func (s *Session) injectControl(ev *event.ControlEvent) {
	go func() {
		for _, action := range ev.Actions {
			switch a := action.(type) {
			case *SyncContext:
				s.HandleContext(a)
			case Command:
				s.Execute(a)
			default:
				log.Printf("session: unknown control action %T", action)
			}
		}
	}()
}

// Execute runs one command. Running the same command again leaves the same
// state, except Push, which appends the value once more, and LoadSample,
// which registers another entry for the file.
func (s *Session) Execute(cmd Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch c := cmd.(type) {
	case ClearCommand, *ClearCommand:
		s.clear()
	case *LoadSampleCommand:
		if _, err := s.Samples.LoadFile(c.Set, c.Path, c.Keywords...); err != nil {
			log.Printf("session: load sample: %v", err)
		}
	case *LoadPartCommand:
		s.parts[c.Name] = c.Generators
	case *InsertCommand:
		s.Globals.Insert(c.Place+":"+c.Key, c.Value)
	case *PushCommand:
		s.Globals.Push(c.Place, c.Value)
	case *PrintCommand:
		log.Printf("%v", c.Value)
	case *OscDefineClientCommand:
		log.Printf("session: osc client %q -> %s (osc i/o handled outside the core)", c.Client, c.Host)
	case *OscSendMessageCommand:
		log.Printf("session: osc send via %q to %s (osc i/o handled outside the core)", c.Client, c.Addr)
	case *OscStartReceiverCommand:
		log.Printf("session: osc receiver on %s (osc i/o handled outside the core)", c.Host)
	default:
		log.Printf("session: unknown command %T", cmd)
	}
}
