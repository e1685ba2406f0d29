package circuit

import "sync"

// Registry holds the active circuit breakers keyed by name, lazily creating
// each on first lookup. State transitions are serialized per-breaker by
// gobreaker itself; the Registry only serializes creation of new breakers,
// mirroring the teacher's circuit.Registry (circuit/registry.go) split
// between a cheap locked lookup and an unlocked hot path through the
// returned *Breaker.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// Get returns the named breaker, creating it with settings on first use.
// Subsequent calls for the same name ignore settings and return the
// existing instance - breaker configuration is fixed at first reference,
// same as the teacher's registry semantics.
func (r *Registry) Get(settings Settings) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[settings.Name]; ok {
		return b
	}
	b := newBreaker(settings)
	r.breakers[settings.Name] = b
	return b
}

// Snapshot returns the current state of every known breaker, keyed by name.
// The health probe and the /actuator/health response do not include it.
func (r *Registry) Snapshot() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State()
	}
	return out
}
