// ABOUTME: Global variable store and process-wide lifemodel resource pool
// ABOUTME: Reads are lock-free-ish snapshots; writes serialise per store

package session

import (
	"sync"

	"megra/event"
)

// GlobalStore is the process-wide variable store shared between the
// evaluator and the schedulers. Numeric kinds widen to float64 at the
// lookup boundary; other kinds are kept as-is for the evaluator.
type GlobalStore struct {
	mu   sync.RWMutex
	vars map[string]any
}

// NewGlobalStore returns an empty store.
func NewGlobalStore() *GlobalStore {
	return &GlobalStore{vars: make(map[string]any)}
}

// Insert sets a key to a value, replacing any previous one.
func (g *GlobalStore) Insert(key string, value any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.vars[key] = value
}

// Push appends a value to the list stored under key, creating it on first
// use.
func (g *GlobalStore) Push(key string, value any) {
	g.mu.Lock()
	defer g.mu.Unlock()

	list, _ := g.vars[key].([]any)
	g.vars[key] = append(list, value)
}

// Get returns the raw value under key.
func (g *GlobalStore) Get(key string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	v, ok := g.vars[key]

	return v, ok
}

// Lookup implements event.Resolver: numeric kinds widen to float64,
// booleans count as 0/1, everything else is not a number.
func (g *GlobalStore) Lookup(name string) (float64, bool) {
	v, ok := g.Get(name)
	if !ok {
		return 0, false
	}

	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}

		return 0, true
	default:
		return 0, false
	}
}

var _ event.Resolver = (*GlobalStore)(nil)

// DefaultLifemodelResources seeds the process-wide pool on first use.
const DefaultLifemodelResources = 200.0

// LifemodelPool is the process-wide resource reservoir lifemodel processors
// draw from when their local resources run dry. Initialisation is lazy on
// first use with the documented default.
type LifemodelPool struct {
	mu          sync.Mutex
	resources   float64
	initialized bool
	seed        float64
}

// NewLifemodelPool returns a pool seeded lazily with the given amount; zero
// means the default.
func NewLifemodelPool(seed float64) *LifemodelPool {
	if seed == 0 {
		seed = DefaultLifemodelResources
	}

	return &LifemodelPool{seed: seed}
}

func (p *LifemodelPool) ensure() {
	if !p.initialized {
		p.resources = p.seed
		p.initialized = true
	}
}

// TryTake withdraws the amount if available.
func (p *LifemodelPool) TryTake(amount float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensure()

	if p.resources < amount {
		return false
	}

	p.resources -= amount

	return true
}

// Refund returns resources to the pool.
func (p *LifemodelPool) Refund(amount float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensure()
	p.resources += amount
}

// Remaining reports the current level.
func (p *LifemodelPool) Remaining() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensure()

	return p.resources
}

// FuncRegistry stores user-defined event functions for mapper processors.
type FuncRegistry struct {
	mu    sync.RWMutex
	funcs map[string]func(*event.StaticEvent)
}

// NewFuncRegistry returns an empty registry.
func NewFuncRegistry() *FuncRegistry {
	return &FuncRegistry{funcs: make(map[string]func(*event.StaticEvent))}
}

// Define registers a function under a name.
func (f *FuncRegistry) Define(name string, fn func(*event.StaticEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.funcs[name] = fn
}

// EventFunc implements generator.FuncStore.
func (f *FuncRegistry) EventFunc(name string) (func(*event.StaticEvent), bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	fn, ok := f.funcs[name]

	return fn, ok
}
