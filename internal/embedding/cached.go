package embedding

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"sync"

	"github.com/golang/groupcache/lru"
)

const defaultCacheEntries = 4096

// Cached memoizes an Embedder in a bounded LRU keyed by sha1(text|model).
type Cached struct {
	inner Embedder

	mu    sync.Mutex
	cache *lru.Cache
}

func NewCached(inner Embedder, maxEntries int) *Cached {
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	return &Cached{inner: inner, cache: lru.New(maxEntries)}
}

func (c *Cached) Model() string { return c.inner.Model() }

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text, c.inner.Model())

	c.mu.Lock()
	if v, ok := c.cache.Get(key); ok {
		c.mu.Unlock()
		return v.([]float32), nil
	}
	c.mu.Unlock()

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache.Add(key, vec)
	c.mu.Unlock()
	return vec, nil
}

// Len reports the number of cached vectors.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

func cacheKey(text, model string) string {
	h := sha1.Sum([]byte(text + "|" + model))
	return hex.EncodeToString(h[:])
}
