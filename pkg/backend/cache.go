package backend

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
)

// Cache is the process-scoped model-capability registry. Get constructs at
// most one instance per distinct Config.Key, even when many jobs ask for the
// same configuration at once. Instances live until the process exits.
type Cache struct {
	registry  *Registry
	logger    *zap.Logger
	group     singleflight.Group
	mu        sync.RWMutex
	instances map[string]Backend
	builds    int
}

// NewCache creates an empty cache building instances through registry.
func NewCache(registry *Registry, logger *zap.Logger) *Cache {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		registry:  registry,
		logger:    logger.With(zap.String("component", "backend-cache")),
		instances: make(map[string]Backend),
	}
}

// Get returns the shared instance for cfg, constructing it on first use.
func (c *Cache) Get(ctx context.Context, cfg Config) (Backend, error) {
	key := cfg.Key()

	c.mu.RLock()
	b, ok := c.instances[key]
	c.mu.RUnlock()
	if ok {
		return b, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		c.mu.RLock()
		existing, ok := c.instances[key]
		c.mu.RUnlock()
		if ok {
			return existing, nil
		}

		raw, err := c.registry.New(cfg)
		if err != nil {
			return nil, err
		}
		g := newGuard(raw, cfg)

		c.mu.Lock()
		c.instances[key] = g
		c.builds++
		c.mu.Unlock()

		c.logger.Info("backend constructed",
			zap.String("backend", cfg.Name),
			zap.String("type", string(cfg.Type)),
			zap.Bool("serialize", cfg.Serialize),
			zap.Float64("rate_limit", cfg.RateLimit))
		return g, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Backend), nil
	}
}

// Len returns the number of live instances.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.instances)
}

// Keys returns the configuration keys of live instances, sorted.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.instances))
	for k := range c.instances {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Builds returns how many instances were constructed.
func (c *Cache) Builds() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.builds
}

// Status represents backend status.
type Status struct {
	Name         string       `json:"name"`
	Type         Type         `json:"type"`
	Available    bool         `json:"available"`
	Capabilities Capabilities `json:"capabilities"`
}

// Status reports availability of every live instance, sorted by name.
func (c *Cache) Status(ctx context.Context) []Status {
	// Copy instances to avoid holding lock during I/O (IsAvailable may do network calls)
	c.mu.RLock()
	backends := make([]Backend, 0, len(c.instances))
	for _, b := range c.instances {
		backends = append(backends, b)
	}
	c.mu.RUnlock()

	result := make([]Status, 0, len(backends))
	for _, b := range backends {
		result = append(result, Status{
			Name:         b.Name(),
			Type:         b.Type(),
			Available:    b.IsAvailable(ctx),
			Capabilities: b.Capabilities(),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// guard wraps a backend with the per-configuration resource policy:
// rate limit, mutual exclusion, call timeout and disallowed-string removal.
type guard struct {
	Backend
	timeout    time.Duration
	disallowed []string
	sem        *semaphore.Weighted
	limiter    *rate.Limiter
}

func newGuard(b Backend, cfg Config) *guard {
	g := &guard{
		Backend:    b,
		timeout:    cfg.Timeout,
		disallowed: append([]string(nil), cfg.Disallowed...),
	}
	if cfg.Serialize {
		g.sem = semaphore.NewWeighted(1)
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return g
}

func (g *guard) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if g.sem != nil {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer g.sem.Release(1)
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.Backend.Chat(callCtx, req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, derrors.GenerationTimeout(g.Name(), err).
				WithContext("timeout", g.timeout.String())
		}
		return nil, err
	}
	resp.Content = RemoveDisallowed(resp.Content, g.disallowed)
	return resp, nil
}

// Unwrap returns the backend a cached instance wraps. Other backends are
// returned unchanged.
func Unwrap(b Backend) Backend {
	if g, ok := b.(*guard); ok {
		return g.Backend
	}
	return b
}
