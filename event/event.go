// ABOUTME: Event records emitted by generators and their static evaluation
// ABOUTME: Implements tag-filtered apply semantics used by generator processors

package event

import (
	"math/rand/v2"
	"slices"
)

// SilenceName marks events that evaluate but are never dispatched.
const SilenceName = "silence"

// Op is the fold operation used when one event is applied to another.
type Op int

const (
	Replace Op = iota
	Add
	Subtract
	Multiply
	Divide
)

// Value is a parameter value attached to an event before evaluation.
type Value interface {
	// EvaluateValue resolves the value to numbers, advancing any modifier.
	EvaluateValue(rng *rand.Rand, res Resolver) StaticVal
	// CloneValue returns an independent copy with its own progression.
	CloneValue() Value
}

// StaticVal is an evaluated, numeric-only parameter value. Scalars have
// length 1; vectors keep their positional layout.
type StaticVal []float64

// Scalar reports the first component, which is the whole value for scalars.
func (v StaticVal) Scalar() float64 {
	if len(v) == 0 {
		return 0
	}

	return v[0]
}

// ScalarVal is an eagerly evaluated numeric, optionally driven by a modifier.
type ScalarVal struct {
	Val *DynVal
}

func NewScalar(v float64) ScalarVal {
	return ScalarVal{Val: Static(v)}
}

func (s ScalarVal) EvaluateValue(rng *rand.Rand, _ Resolver) StaticVal {
	return StaticVal{s.Val.Evaluate(rng)}
}

func (s ScalarVal) CloneValue() Value {
	return ScalarVal{Val: s.Val.Clone()}
}

// VectorVal is a positional list of values, expanded per channel or event.
type VectorVal struct {
	Vals []*DynVal
}

func (v VectorVal) EvaluateValue(rng *rand.Rand, _ Resolver) StaticVal {
	out := make(StaticVal, len(v.Vals))
	for i, d := range v.Vals {
		out[i] = d.Evaluate(rng)
	}

	return out
}

func (v VectorVal) CloneValue() Value {
	vals := make([]*DynVal, len(v.Vals))
	for i, d := range v.Vals {
		vals[i] = d.Clone()
	}

	return VectorVal{Vals: vals}
}

// ModulatorVal is a sub-graph producing a value at evaluation time,
// used for the indexed modulator slots.
type ModulatorVal struct {
	Mod     Modifier
	current float64
}

func (m *ModulatorVal) EvaluateValue(rng *rand.Rand, _ Resolver) StaticVal {
	m.current = m.Mod.Advance(m.current, rng)

	return StaticVal{m.current}
}

func (m *ModulatorVal) CloneValue() Value {
	clone := *m
	clone.Mod = cloneModifier(m.Mod)

	return &clone
}

// LazyVal is an arithmetic tree resolved against globals on each evaluation.
type LazyVal struct {
	Tree *LazyNode
}

func (l LazyVal) EvaluateValue(_ *rand.Rand, res Resolver) StaticVal {
	v, err := l.Tree.Resolve(res)
	if err != nil {
		// a broken expression mutes the parameter rather than the piece
		return StaticVal{0}
	}

	return StaticVal{v}
}

func (l LazyVal) CloneValue() Value {
	return l
}

// Event is a sound or transition event template with unevaluated parameters.
type Event struct {
	Name   string
	Tags   []string // ordered set
	Params map[Address]Value
}

// NewEvent returns an event with the given name, tagged with itself.
func NewEvent(name string) *Event {
	return &Event{
		Name:   name,
		Tags:   []string{name},
		Params: make(map[Address]Value),
	}
}

// Put sets a parameter value.
func (e *Event) Put(addr Address, v Value) *Event {
	e.Params[addr] = v

	return e
}

// PutScalar sets a plain numeric parameter.
func (e *Event) PutScalar(addr Address, v float64) *Event {
	return e.Put(addr, NewScalar(v))
}

// AddTag appends a tag unless already present.
func (e *Event) AddTag(tag string) {
	if !slices.Contains(e.Tags, tag) {
		e.Tags = append(e.Tags, tag)
	}
}

// Clone copies the event deeply enough that modifier progressions diverge.
func (e *Event) Clone() *Event {
	params := make(map[Address]Value, len(e.Params))
	for k, v := range e.Params {
		params[k] = v.CloneValue()
	}

	return &Event{
		Name:   e.Name,
		Tags:   slices.Clone(e.Tags),
		Params: params,
	}
}

// ToStatic evaluates every parameter, advancing modifiers and resolving lazy
// trees, producing a numeric-only snapshot.
func (e *Event) ToStatic(rng *rand.Rand, res Resolver) *StaticEvent {
	params := make(map[Address]StaticVal, len(e.Params))
	for k, v := range e.Params {
		params[k] = v.EvaluateValue(rng, res)
	}

	return &StaticEvent{
		Name:   e.Name,
		Tags:   slices.Clone(e.Tags),
		Params: params,
	}
}

// StaticEvent is a fully evaluated event ready for dispatch.
type StaticEvent struct {
	Name   string
	Tags   []string
	Params map[Address]StaticVal
}

// IsSilence reports whether this event is evaluated but never dispatched.
func (s *StaticEvent) IsSilence() bool {
	return s.Name == SilenceName
}

// Clone returns an independent copy.
func (s *StaticEvent) Clone() *StaticEvent {
	params := make(map[Address]StaticVal, len(s.Params))
	for k, v := range s.Params {
		params[k] = slices.Clone(v)
	}

	return &StaticEvent{
		Name:   s.Name,
		Tags:   slices.Clone(s.Tags),
		Params: params,
	}
}

// HasAllTags reports whether every tag in filter is present. The empty
// filter matches everything.
func (s *StaticEvent) HasAllTags(filter []string) bool {
	for _, f := range filter {
		if !slices.Contains(s.Tags, f) {
			return false
		}
	}

	return true
}

// Apply folds the parameters of other into this event when the tag filter
// matches. Replace overwrites; the arithmetic modes operate component-wise,
// broadcasting scalars over vectors.
func (s *StaticEvent) Apply(other *StaticEvent, filter []string, mode Op) {
	if !s.HasAllTags(filter) {
		return
	}

	for addr, val := range other.Params {
		if mode == Replace {
			s.Params[addr] = slices.Clone(val)

			continue
		}

		target, ok := s.Params[addr]
		if !ok {
			// nothing to combine with, arithmetic on absent params is dropped
			continue
		}

		s.Params[addr] = combine(target, val, mode)
	}
}

func combine(target, val StaticVal, mode Op) StaticVal {
	out := make(StaticVal, len(target))

	for i := range target {
		v := val.Scalar()
		if len(val) > 1 && i < len(val) {
			v = val[i]
		}

		switch mode {
		case Add:
			out[i] = target[i] + v
		case Subtract:
			out[i] = target[i] - v
		case Multiply:
			out[i] = target[i] * v
		case Divide:
			if v == 0 {
				out[i] = target[i]
			} else {
				out[i] = target[i] / v
			}
		default:
			out[i] = v
		}
	}

	return out
}

// Action is implemented by commands and sync contexts carried inside control
// events; the session interprets them at dispatch time.
type Action interface {
	ControlAction()
}

// ControlEvent re-enters the session when dispatched, enabling
// self-modifying pieces.
type ControlEvent struct {
	Tags    []string
	Actions []Action
}

// SourceEvent is either a sound trigger or a control event.
type SourceEvent struct {
	Sound   *Event
	Control *ControlEvent
}

// InterpretableEvent is a tick's outgoing event: an evaluated sound event or
// a control event passed through untouched.
type InterpretableEvent struct {
	Sound   *StaticEvent
	Control *ControlEvent
}
