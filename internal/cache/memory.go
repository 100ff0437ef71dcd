package cache

import (
	"log/slog"

	"github.com/hupe1980/imgcache/internal/resource"
	"github.com/hupe1980/imgcache/renderable"
)

// MemoryCache holds decoded resources keyed by request fingerprint. Every
// resident resource carries one cache reference, released on eviction.
type MemoryCache struct {
	lru    *LRU[string, *renderable.Resource]
	logger *slog.Logger
}

// NewMemoryCache creates a memory cache with a byte budget. rc and logger
// may be nil.
func NewMemoryCache(maxSize int64, rc *resource.Controller, logger *slog.Logger) (*MemoryCache, error) {
	lru, err := NewLRU(LRUConfig[string, *renderable.Resource]{
		MaxSize: maxSize,
		SizeOf: func(_ string, r *renderable.Resource) int64 {
			return r.Size()
		},
		OnRemoved: func(_ string, r *renderable.Resource) {
			r.SetCached(false)
		},
		Controller: rc,
	})
	if err != nil {
		return nil, err
	}
	return &MemoryCache{lru: lru, logger: logger}, nil
}

// Get returns a valid resident resource. A released resource found in the
// cache is dropped and reported as a miss.
func (c *MemoryCache) Get(key string) (*renderable.Resource, bool) {
	r, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !r.IsValid() {
		c.lru.Remove(key)
		if c.logger != nil {
			c.logger.Debug("dropped released resource", "key", key)
		}
		return nil, false
	}
	return r, true
}

// Put admits r unless key is already cached and returns the resident
// resource, which callers should bind instead of r.
func (c *MemoryCache) Put(key string, r *renderable.Resource) *renderable.Resource {
	// Reference first so an immediate eviction cannot underflow the count.
	r.SetCached(true)
	resident, added := c.lru.Add(key, r)
	if !added {
		r.SetCached(false)
	}
	return resident
}

// Contains reports whether key is resident.
func (c *MemoryCache) Contains(key string) bool { return c.lru.Contains(key) }

// Remove drops key.
func (c *MemoryCache) Remove(key string) bool { return c.lru.Remove(key) }

// EvictAll drops every entry.
func (c *MemoryCache) EvictAll() { c.lru.EvictAll() }

// TrimUnshown drops every resource no slot is currently displaying.
func (c *MemoryCache) TrimUnshown() int {
	n := c.lru.RemoveIf(func(_ string, r *renderable.Resource) bool {
		return !r.IsDisplayed()
	})
	if c.logger != nil && n > 0 {
		c.logger.Info("Memory cache trimmed", "removed", n, "size", c.lru.Size())
	}
	return n
}

// Size returns the bytes accounted to resident resources.
func (c *MemoryCache) Size() int64 { return c.lru.Size() }

// MaxSize returns the byte budget.
func (c *MemoryCache) MaxSize() int64 { return c.lru.MaxSize() }

// Len returns the number of resident resources.
func (c *MemoryCache) Len() int { return c.lru.Len() }

// Stats returns a snapshot of the counters.
func (c *MemoryCache) Stats() Stats { return c.lru.Stats() }
