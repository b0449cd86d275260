package backend

import (
	"sort"
	"sync"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
)

// Factory builds a backend instance from its configuration.
type Factory func(cfg Config) (Backend, error)

// Registry maps backend types to their factories.
type Registry struct {
	factories map[Type]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty factory registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Type]Factory),
	}
}

// Register adds a factory for t.
func (r *Registry) Register(t Type, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[t]; exists {
		return derrors.Backend(derrors.ErrBackendAlreadyRegistered, "backend type already registered").
			WithContext("type", string(t))
	}
	r.factories[t] = f
	return nil
}

// New builds a backend from cfg using the factory registered for cfg.Type.
func (r *Registry) New(cfg Config) (Backend, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Type]
	types := r.typesLocked()
	r.mu.RUnlock()

	if !ok {
		return nil, derrors.Backend(derrors.ErrBackendUnknownType, "no factory for backend type").
			WithContext("type", string(cfg.Type)).
			WithContext("registered", joinTypes(types))
	}
	if err := cfg.Validate(); err != nil {
		return nil, derrors.BackendWrap(err, derrors.ErrBackendConstructionFailed, "invalid backend configuration").
			WithContext("backend", cfg.Name)
	}
	b, err := f(cfg)
	if err != nil {
		return nil, derrors.BackendWrap(err, derrors.ErrBackendConstructionFailed, "failed to construct backend").
			WithContext("backend", cfg.Name)
	}
	return b, nil
}

// Types returns the registered backend types, sorted.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.typesLocked()
}

func (r *Registry) typesLocked() []Type {
	result := make([]Type, 0, len(r.factories))
	for t := range r.factories {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func joinTypes(types []Type) string {
	s := ""
	for i, t := range types {
		if i > 0 {
			s += ", "
		}
		s += string(t)
	}
	return s
}

// DefaultRegistry creates a registry with all built-in backend types.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	// Errors impossible here since registry is freshly created (no duplicates)
	_ = registry.Register(TypeOpenAI, func(cfg Config) (Backend, error) { return NewOpenAI(cfg), nil })
	_ = registry.Register(TypeCommand, func(cfg Config) (Backend, error) { return NewCommand(cfg), nil })
	_ = registry.Register(TypeScripted, func(cfg Config) (Backend, error) { return NewScripted(cfg.Name, cfg.Replies...), nil })
	_ = registry.Register(TypeFailing, func(cfg Config) (Backend, error) { return NewFailing(cfg.Name, nil), nil })
	return registry
}
