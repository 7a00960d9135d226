// Package cache stores computed match results by fingerprint.
//
// Entries are evicted least-recently-used once the cache is full and expire by
// age regardless of size pressure. GetOrCompute guarantees at most one
// in-flight computation per key; concurrent callers share its outcome.
// Failed computations are never stored.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/groupcache/lru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ideamlabs/guidesignal-matcher/internal/logger"
)

const (
	DefaultSize = 10000
	DefaultTTL  = time.Hour
)

type Config struct {
	Size int
	TTL  time.Duration
}

type entry[V any] struct {
	value     V
	createdAt time.Time
}

type flightResult[V any] struct {
	value V
	hit   bool
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Entries      int
	Hits         int64
	Misses       int64
	Computations int64
	Shared       int64
	Evictions    int64
	Expired      int64
}

// HitRate is hits over lookups, 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type Cache[V any] struct {
	mu    sync.Mutex
	items *lru.Cache
	ttl   time.Duration
	group singleflight.Group

	now    func() time.Time
	logger *zap.Logger

	hits         atomic.Int64
	misses       atomic.Int64
	computations atomic.Int64
	shared       atomic.Int64
	evictions    atomic.Int64
	expired      atomic.Int64
}

func New[V any](cfg Config, log *zap.Logger) *Cache[V] {
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.TTL < 0 {
		cfg.TTL = 0
	}

	c := &Cache[V]{
		items:  lru.New(cfg.Size),
		ttl:    cfg.TTL,
		now:    time.Now,
		logger: logger.OrNop(log),
	}
	return c
}

// Get returns a fresh entry without computing anything.
func (c *Cache[V]) Get(key string) (V, bool) {
	v, ok := c.lookup(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// GetOrCompute returns the cached value for key, or runs fn to produce it.
// hit reports whether the value came from the cache. The computation runs
// detached from the caller's cancellation so that one caller giving up does
// not fail the others waiting on the same key; the caller itself still
// returns as soon as ctx is done.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, fn func(context.Context) (V, error)) (V, bool, error) {
	if v, ok := c.lookup(key); ok {
		c.hits.Add(1)
		c.logger.Debug("cache hit", zap.String(logger.FieldFingerprint, key))
		return v, true, nil
	}
	c.misses.Add(1)

	computeCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// a flight that finished just before this one registered may have stored the value
		if v, ok := c.lookup(key); ok {
			return flightResult[V]{value: v, hit: true}, nil
		}

		c.computations.Add(1)
		v, err := fn(computeCtx)
		if err != nil {
			return nil, err
		}
		c.store(key, v)
		return flightResult[V]{value: v}, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Shared {
			c.shared.Add(1)
		}
		if res.Err != nil {
			return zero, false, res.Err
		}
		fr := res.Val.(flightResult[V])
		return fr.value, fr.hit, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

func (c *Cache[V]) lookup(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	raw, ok := c.items.Get(key)
	if !ok {
		return zero, false
	}
	e := raw.(entry[V])
	if c.ttl > 0 && c.now().Sub(e.createdAt) >= c.ttl {
		c.items.Remove(key)
		c.expired.Add(1)
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) store(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items.Get(key); !exists && c.items.Len() >= c.items.MaxEntries {
		c.evictions.Add(1)
	}
	c.items.Add(key, entry[V]{value: v, createdAt: c.now()})
}

// Remove drops key if present.
func (c *Cache[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Remove(key)
}

// Purge drops every entry. Counters are kept.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Clear()
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

func (c *Cache[V]) Stats() Stats {
	return Stats{
		Entries:      c.Len(),
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Computations: c.computations.Load(),
		Shared:       c.shared.Load(),
		Evictions:    c.evictions.Load(),
		Expired:      c.expired.Load(),
	}
}
