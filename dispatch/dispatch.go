// ABOUTME: Dispatcher contract consumed by schedulers, plus output mode mapping
// ABOUTME: The audio backend behind it owns synthesis voices and the stream clock

// Package dispatch defines the boundary to the audio backend: schedulers
// prepare events against a stream time, the backend ingests them. The
// backend itself is opaque; this package only fixes the contract and ships a
// recording implementation for tests and headless runs.
package dispatch

import (
	"sync"

	"github.com/google/uuid"

	"megra/event"
)

// Instance is the opaque handle of one prepared event.
type Instance = uuid.UUID

// SynthName is the closed set of names the backend understands.
type SynthName string

const (
	Sine           SynthName = "sine"
	Tri            SynthName = "tri"
	Saw            SynthName = "saw"
	Sqr            SynthName = "sqr"
	Cub            SynthName = "cub"
	Risset         SynthName = "risset"
	Wavetable      SynthName = "wavetable"
	Sampler        SynthName = "sampler"
	LiveSampler    SynthName = "livesampler"
	FrozenSampler  SynthName = "frozensampler"
	SilenceSynth   SynthName = "silence"
	UnknownDefault SynthName = "sine"
)

var knownSynths = map[string]SynthName{
	"sine": Sine, "tri": Tri, "saw": Saw, "sqr": Sqr, "cub": Cub,
	"risset": Risset, "wavetable": Wavetable, "sampler": Sampler,
	"livesampler": LiveSampler, "frozensampler": FrozenSampler,
	"silence": SilenceSynth,
}

// MapName resolves an event name to a synth, falling back to the default.
func MapName(name string) SynthName {
	if s, ok := knownSynths[name]; ok {
		return s
	}

	return UnknownDefault
}

// OutputMode selects the channel layout of the backend.
type OutputMode int

const (
	Stereo OutputMode = iota
	FourChannel
	EightChannel
)

// Channels returns the number of output channels of the mode.
func (m OutputMode) Channels() int {
	switch m {
	case FourChannel:
		return 4
	case EightChannel:
		return 8
	default:
		return 2
	}
}

// RemapPosition adjusts a channel-position value for the output mode:
// stereo positions come in as [-1,1] and leave as [0,1]; the multichannel
// modes pass through unchanged.
func (m OutputMode) RemapPosition(pos float64) float64 {
	if m == Stereo {
		return (pos + 1.0) * 0.5
	}

	return pos
}

// BufferHandle identifies a loaded sample buffer inside the backend.
type BufferHandle int

// Dispatcher is the audio backend boundary. Implementations must keep
// Now, Prepare, SetParam and Trigger non-blocking; they are called from
// scheduler threads against a realtime deadline.
type Dispatcher interface {
	// Now returns the backend's monotonic stream clock in seconds.
	Now() float64
	// Prepare stages an event of the named synth at the given stream time.
	Prepare(name SynthName, at float64) Instance
	// SetParam stages one parameter on a prepared instance.
	SetParam(inst Instance, addr event.Address, value float64)
	// Trigger commits the prepared instance for playback.
	Trigger(inst Instance)
	// LoadSample hands sample data to the backend, returning its buffer.
	LoadSample(data []byte) (BufferHandle, error)
}

// PreparedEvent is one recorded dispatch, used by the recording dispatcher.
type PreparedEvent struct {
	Instance  Instance
	Name      SynthName
	At        float64
	Params    map[event.Address]float64
	Triggered bool
}

// Recorder is a Dispatcher that records instead of synthesizing. The stream
// clock is advanced manually, which keeps timing tests deterministic.
type Recorder struct {
	mu      sync.Mutex
	now     float64
	events  []PreparedEvent
	byInst  map[Instance]int
	buffers int
}

// NewRecorder returns an empty recording dispatcher.
func NewRecorder() *Recorder {
	return &Recorder{byInst: make(map[Instance]int)}
}

func (r *Recorder) Now() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.now
}

// AdvanceClock moves the stream clock forward.
func (r *Recorder) AdvanceClock(seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now += seconds
}

func (r *Recorder) Prepare(name SynthName, at float64) Instance {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst := uuid.New()
	r.byInst[inst] = len(r.events)
	r.events = append(r.events, PreparedEvent{
		Instance: inst,
		Name:     name,
		At:       at,
		Params:   make(map[event.Address]float64),
	})

	return inst
}

func (r *Recorder) SetParam(inst Instance, addr event.Address, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.byInst[inst]; ok {
		r.events[i].Params[addr] = value
	}
}

func (r *Recorder) Trigger(inst Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.byInst[inst]; ok {
		r.events[i].Triggered = true
	}
}

func (r *Recorder) LoadSample(_ []byte) (BufferHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffers++

	return BufferHandle(r.buffers - 1), nil
}

// Events returns a snapshot of everything recorded so far.
func (r *Recorder) Events() []PreparedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]PreparedEvent, len(r.events))
	copy(out, r.events)

	return out
}
