package runtime

import (
	"context"
	"sort"
	"sync"

	"github.com/dimits-ts/syndisco/pkg/backend"
	"github.com/dimits-ts/syndisco/wool"
)

// Manager creates the actors of one job, resolving each spec's backend
// name through the shared backend cache.
type Manager struct {
	actors   map[string]*Actor
	backends map[string]backend.Config
	cache    *backend.Cache
	mu       sync.RWMutex
}

// NewManager creates a manager over the declared backend configurations.
func NewManager(cache *backend.Cache, backends map[string]backend.Config) *Manager {
	return &Manager{
		actors:   make(map[string]*Actor),
		backends: backends,
		cache:    cache,
	}
}

// Create builds an actor from spec. Names must be unique.
func (m *Manager) Create(ctx context.Context, spec wool.ActorSpec) (*Actor, error) {
	name := spec.DisplayName()

	m.mu.RLock()
	_, exists := m.actors[name]
	m.mu.RUnlock()
	if exists {
		return nil, createActorAlreadyExistsError(name, m.List())
	}

	cfg, ok := m.backends[spec.Backend]
	if !ok {
		return nil, createBackendNotFoundError(name, spec.Backend, m.backendNames())
	}
	if cfg.Name == "" {
		cfg.Name = spec.Backend
	}
	b, err := m.cache.Get(ctx, cfg)
	if err != nil {
		return nil, err
	}
	actor, err := NewActor(spec, b)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.actors[name]; exists {
		return nil, createActorAlreadyExistsError(name, m.listLocked())
	}
	m.actors[name] = actor
	return actor, nil
}

// CreateAll builds one actor per spec, stopping at the first error.
func (m *Manager) CreateAll(ctx context.Context, specs []wool.ActorSpec) ([]*Actor, error) {
	actors := make([]*Actor, 0, len(specs))
	for _, spec := range specs {
		a, err := m.Create(ctx, spec)
		if err != nil {
			return nil, err
		}
		actors = append(actors, a)
	}
	return actors, nil
}

// Get retrieves an actor by name.
func (m *Manager) Get(name string) (*Actor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actors[name]
	return a, ok
}

// List returns all actor names, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked()
}

// Status returns readiness for all actors.
func (m *Manager) Status(ctx context.Context) map[string]ActorStatus {
	m.mu.RLock()
	actors := make([]*Actor, 0, len(m.actors))
	for _, a := range m.actors {
		actors = append(actors, a)
	}
	m.mu.RUnlock()

	result := make(map[string]ActorStatus, len(actors))
	for _, a := range actors {
		result[a.Name()] = ActorStatus{
			Name:    a.Name(),
			Role:    a.Role(),
			Backend: a.Spec().Backend,
			Ready:   a.Backend().IsAvailable(ctx),
		}
	}
	return result
}

// ActorStatus represents actor status.
type ActorStatus struct {
	Name    string    `json:"name"`
	Role    wool.Role `json:"role"`
	Backend string    `json:"backend"`
	Ready   bool      `json:"ready"`
}

// listLocked must be called while holding the mutex.
func (m *Manager) listLocked() []string {
	names := make([]string, 0, len(m.actors))
	for name := range m.actors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) backendNames() []string {
	names := make([]string, 0, len(m.backends))
	for name := range m.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
