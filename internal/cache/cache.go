// Package cache holds results of read-mostly game API calls under stable names
// until a mutating call invalidates them.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/papaburgs/fluffy-miner/internal/metrics"
)

// Cache names shared between the services and the workflow. Tests assert on
// these, so treat them as stable.
const (
	Status    = "status"
	Agent     = "agent"
	Contracts = "contracts"
	Ships     = "ships"
	Waypoint  = "waypoint"
)

// Producer computes a value on a cache miss.
type Producer[T any] func(ctx context.Context) (T, error)

type Option func(*Cache)

// WithTTL expires entries of name after d even without an invalidation.
func WithTTL(name string, d time.Duration) Option {
	return func(c *Cache) {
		c.ttl[name] = d
	}
}

// WithInvalidationHook registers fn to be called after every Invalidate with the names cleared.
func WithInvalidationHook(fn func(names []string)) Option {
	return func(c *Cache) {
		c.hooks = append(c.hooks, fn)
	}
}

// WithNow replaces the time source used for TTL checks.
func WithNow(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

type entry struct {
	value    any
	storedAt time.Time
}

// group holds every entry stored under one name. gen is bumped on each
// invalidation so that computations started earlier cannot store into it.
type group struct {
	gen     uint64
	entries map[string]entry
}

// Cache is a process wide, name keyed result cache.
type Cache struct {
	mu     sync.Mutex
	groups map[string]*group
	ttl    map[string]time.Duration
	hooks  []func(names []string)
	now    func() time.Time
	flight singleflight.Group
}

func New(opts ...Option) *Cache {
	c := &Cache{
		groups: make(map[string]*group),
		ttl:    make(map[string]time.Duration),
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetOrCompute returns the singleton value cached under name, running producer on a miss.
func GetOrCompute[T any](ctx context.Context, c *Cache, name string, producer Producer[T]) (T, error) {
	return GetOrComputeKey(ctx, c, name, "", producer)
}

// GetOrComputeKey is GetOrCompute for keyed entries. All keys of a name are
// invalidated together. Errors are never cached, and concurrent callers for
// the same name and key share a single producer call.
func GetOrComputeKey[T any](ctx context.Context, c *Cache, name, key string, producer Producer[T]) (T, error) {
	var zero T

	// The lookup and the join happen under c.mu, so a caller either joins a
	// flight before an Invalidate or starts one of the new generation.
	c.mu.Lock()
	v, gen, ok := c.lookupLocked(name, key)
	if ok {
		if t, ok := v.(T); ok {
			c.mu.Unlock()
			metrics.RecordCacheHit(name)
			return t, nil
		}
		slog.Warn("cache entry has unexpected type, recomputing", "name", name, "key", key)
	}

	flightKey := fmt.Sprintf("%s/%d/%s", name, gen, key)
	// The producer is detached from the first caller's cancellation; other
	// callers may be waiting on the same flight.
	pctx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(flightKey, func() (any, error) {
		v, err := producer(pctx)
		if err != nil {
			return nil, err
		}
		c.store(name, key, gen, v)
		return v, nil
	})
	c.mu.Unlock()
	metrics.RecordCacheMiss(name)

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		t, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("cache %q: value of type %T shared with a caller expecting %T", name, res.Val, zero)
		}
		return t, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Invalidate clears every entry under the given names straight away, including
// ones whose computation is still in flight.
func (c *Cache) Invalidate(names ...string) {
	if len(names) == 0 {
		return
	}
	c.mu.Lock()
	for _, name := range names {
		g := c.groupLocked(name)
		g.gen++
		g.entries = make(map[string]entry)
		metrics.RecordCacheInvalidation(name)
	}
	hooks := c.hooks
	c.mu.Unlock()

	slog.Debug("cache invalidated", "names", names)
	for _, h := range hooks {
		cp := make([]string, len(names))
		copy(cp, names)
		h(cp)
	}
}

// lookupLocked must be called with c.mu held.
func (c *Cache) lookupLocked(name, key string) (any, uint64, bool) {
	g := c.groupLocked(name)
	e, ok := g.entries[key]
	if !ok {
		return nil, g.gen, false
	}
	if ttl := c.ttl[name]; ttl > 0 && c.now().Sub(e.storedAt) >= ttl {
		delete(g.entries, key)
		return nil, g.gen, false
	}
	return e.value, g.gen, true
}

func (c *Cache) store(name, key string, gen uint64, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.groupLocked(name)
	if g.gen != gen {
		slog.Debug("dropping result computed before invalidation", "name", name, "key", key)
		return
	}
	g.entries[key] = entry{value: v, storedAt: c.now()}
}

// groupLocked must be called with c.mu held.
func (c *Cache) groupLocked(name string) *group {
	g, ok := c.groups[name]
	if !ok {
		g = &group{entries: make(map[string]entry)}
		c.groups[name] = g
	}
	return g
}
