package engine

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Factory builds an engine adapter. Construction may be expensive (it
// can probe the backend), so the Registry calls each factory at most
// once per name.
type Factory func() (Engine, error)

// Registry is a get-or-create cache of engine adapters keyed by name.
// Concurrent Get calls for the same name serialize so the factory runs
// once; different names construct independently. Engines are never
// evicted. A failed construction is not cached, so the next Get retries.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	engines   map[string]Engine
	building  map[string]*sync.Mutex
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		engines:   make(map[string]Engine),
		building:  make(map[string]*sync.Mutex),
	}
}

// Register associates a factory with an engine name, replacing any
// previous factory for that name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	if _, ok := r.building[name]; !ok {
		r.building[name] = &sync.Mutex{}
	}
}

// Get returns the engine for name, constructing it on first use. An
// unregistered name is a validation error.
func (r *Registry) Get(name string) (Engine, error) {
	r.mu.Lock()
	if e, ok := r.engines[name]; ok {
		r.mu.Unlock()
		return e, nil
	}
	factory, ok := r.factories[name]
	if !ok {
		r.mu.Unlock()
		return nil, &ValidationError{Field: "engine", Message: name + " is not registered"}
	}
	lock := r.building[name]
	r.mu.Unlock()

	// Per-name exclusion: other names keep constructing in parallel.
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	if e, ok := r.engines[name]; ok {
		r.mu.Unlock()
		return e, nil
	}
	r.mu.Unlock()

	log.Debug().Str("engine", name).Msg("constructing engine adapter")
	e, err := factory()
	if err != nil {
		return nil, &EngineError{Engine: name, Err: err}
	}

	r.mu.Lock()
	r.engines[name] = e
	r.mu.Unlock()
	return e, nil
}

// Names returns the registered engine names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
