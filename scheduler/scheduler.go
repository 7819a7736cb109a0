// ABOUTME: Time-recursive scheduler rendering one generator to the stream clock
// ABOUTME: Sleeps once per tick, compensating wall-clock drift against logical time

// Package scheduler runs one goroutine per live generator. The loop is an
// explicit time recursion rather than an async runtime: there is exactly one
// suspension point per tick and the sleep is corrected by the measured
// lateness of the previous wakeup, which keeps long-running pieces free of
// cumulative drift.
package scheduler

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"megra/dispatch"
	"megra/event"
	"megra/generator"
)

// DefaultLatency is the forward-lookahead handed to the dispatcher, in
// seconds, giving the audio backend time to ingest prepared events.
const DefaultLatency = 0.05

// ControlSink receives control events for re-injection into the session.
type ControlSink func(*event.ControlEvent)

// Params configures a scheduler.
type Params struct {
	Dispatcher dispatch.Dispatcher
	Mode       dispatch.OutputMode

	// Latency in seconds; zero means DefaultLatency.
	Latency float64

	// Shift delays the generator's start, in seconds.
	Shift float64

	Ctx      *generator.Context
	Controls ControlSink
}

// swapRequest is an atomic generator replacement picked up at the next tick
// boundary.
type swapRequest struct {
	gen      *generator.Generator
	transfer bool
	shift    float64
}

// Scheduler owns a generator and renders it to the dispatcher until stopped.
type Scheduler struct {
	params Params

	running atomic.Bool
	done    chan struct{}

	mu      sync.Mutex
	gen     *generator.Generator
	pending *swapRequest
}

// New returns a scheduler for the generator; call Start to begin.
func New(gen *generator.Generator, params Params) *Scheduler {
	if params.Latency == 0 {
		params.Latency = DefaultLatency
	}

	return &Scheduler{
		params: params,
		gen:    gen,
		done:   make(chan struct{}),
	}
}

// Generator returns the owned generator. Only safe for callers that hold the
// scheduler stopped, or from the swap path.
func (s *Scheduler) Generator() *generator.Generator {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.gen
}

// Swap replaces the generator at the next tick boundary. When transfer is
// set, the runtime progression of the old generator is carried over first.
func (s *Scheduler) Swap(gen *generator.Generator, transfer bool, shift float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &swapRequest{gen: gen, transfer: transfer, shift: shift}
}

// Running reports whether the loop is live.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Start launches the scheduling loop on its own goroutine.
func (s *Scheduler) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}

	go s.run()
}

// Stop requests shutdown and joins; the current tick finishes first.
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)

	shift := s.params.Shift
	start := time.Now()
	streamTime := s.params.Dispatcher.Now() + shift
	logicalTime := shift

	for s.running.Load() {
		s.applyPending(&shift, &streamTime, &logicalTime)

		elapsed := time.Since(start).Seconds()
		lastDiff := elapsed - logicalTime

		next := s.tick(streamTime)

		logicalTime += next
		streamTime += next

		// compensate for eventual lateness; a late wakeup shortens the sleep
		sleep := next - lastDiff
		if sleep < 0 {
			sleep = 0
		}

		if !s.running.Load() {
			return
		}

		time.Sleep(time.Duration(sleep * float64(time.Second)))
	}
}

// applyPending installs a swapped-in generator at the tick boundary.
func (s *Scheduler) applyPending(shift, streamTime, logicalTime *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return
	}

	req := s.pending
	s.pending = nil

	if req.transfer {
		req.gen.TransferState(s.gen)
	}

	shiftDiff := req.shift - *shift
	*shift = req.shift
	*streamTime += shiftDiff
	*logicalTime += shiftDiff

	s.gen = req.gen
}

// tick produces one round of events, dispatches them, and returns the next
// interval in seconds. Any failure is logged and swallowed so a malformed
// event cannot kill a running piece.
func (s *Scheduler) tick(streamTime float64) (next float64) {
	next = generator.DefaultDuration / 1000.0

	defer func() {
		if r := recover(); r != nil {
			log.Printf("scheduler: tick failed, skipping: %v", r)
		}
	}()

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	events, trans := gen.Tick(s.params.Ctx)

	for _, ev := range events {
		switch {
		case ev.Control != nil:
			if s.params.Controls != nil {
				s.params.Controls(ev.Control)
			}
		case ev.Sound != nil && !ev.Sound.IsSilence():
			s.dispatchSound(ev.Sound, streamTime)
		}
	}

	if d := trans.Params[event.Duration].Scalar(); d > 0 {
		next = d / 1000.0
	}

	return next
}

func (s *Scheduler) dispatchSound(ev *event.StaticEvent, streamTime float64) {
	disp := s.params.Dispatcher
	inst := disp.Prepare(dispatch.MapName(ev.Name), streamTime+s.params.Latency)

	for addr, val := range ev.Params {
		v := val.Scalar()
		if addr == event.ChannelPosition && len(val) == 1 {
			v = s.params.Mode.RemapPosition(v)
		}

		disp.SetParam(inst, addr, v)
	}

	disp.Trigger(inst)
}
