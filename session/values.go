// ABOUTME: Evaluated-expression protocol between the evaluator and the session
// ABOUTME: Closed sum type the session pattern-matches on dispatch

package session

import (
	"megra/event"
	"megra/generator"
)

// ComparableKind tags the primitive kinds crossing the evaluator boundary.
type ComparableKind int

const (
	KindFloat ComparableKind = iota
	KindDouble
	KindInt32
	KindInt64
	KindUInt128
	KindString
	KindSymbol
	KindBoolean
	KindCharacter
)

// Comparable is a primitive evaluator value.
type Comparable struct {
	Kind ComparableKind

	Num  float64
	Str  string
	Bool bool
	Char rune
}

// Float wraps a numeric comparable.
func Float(v float64) Comparable {
	return Comparable{Kind: KindFloat, Num: v}
}

// Evaluated is one value handed over by the evaluator. Exactly one field is
// set; the session dispatches on it.
type Evaluated struct {
	Generator     *generator.Generator
	GeneratorList []*generator.Generator
	SoundEvent    *event.Event
	ControlEvent  *event.ControlEvent
	SyncContext   *SyncContext
	Command       Command
	PartProxy     *PartProxy
	Parameter     *event.DynVal
	Map           map[string]Evaluated
	Vec           []Evaluated
	Comparable    *Comparable
	Lazy          *event.LazyNode
}

// PartProxy references a named part (a stored generator list) and inserts
// clones of its generators into a context, with extra processors attached.
type PartProxy struct {
	Part       string
	Processors []generator.Processor
}

// SyncContext is a named, atomically replaceable bag of generators.
type SyncContext struct {
	Name       string
	Generators []*generator.Generator
	Proxies    []*PartProxy

	// SyncTo aligns new schedulers with another context; empty means start
	// immediately.
	SyncTo string

	Active bool

	// Shift delays all generators of the context, in milliseconds.
	Shift float64

	BlockTags []string
	SoloTags  []string
}

// ControlAction marks sync contexts as control event payloads, so a running
// piece can re-arrange itself.
func (c *SyncContext) ControlAction() {}
