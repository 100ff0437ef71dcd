package cache

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/imgcache/internal/resource"
)

// ErrInvalidSize is returned when a cache is configured with a non-positive
// byte budget.
var ErrInvalidSize = errors.New("cache: max size must be positive")

// LRUConfig configures an LRU.
type LRUConfig[K comparable, V any] struct {
	// MaxSize is the budget in the unit returned by SizeOf.
	MaxSize int64
	// SizeOf returns the cost of an entry. A negative cost panics.
	// If nil, every entry costs 1.
	SizeOf func(key K, value V) int64
	// OnRemoved runs after an entry left the cache by eviction or removal.
	// It is called without the cache lock held.
	OnRemoved func(key K, value V)
	// Controller, if set, tracks entry costs as memory reservations.
	Controller *resource.Controller
}

// LRU is a size-accounted, access-ordered cache. Eviction is synchronous
// with Add.
type LRU[K comparable, V any] struct {
	mu        sync.Mutex
	maxSize   int64
	size      int64
	items     map[K]*list.Element
	evictList *list.List
	sizeOf    func(K, V) int64
	onRemoved func(K, V)
	rc        *resource.Controller

	hits      atomic.Int64
	misses    atomic.Int64
	puts      atomic.Int64
	evictions atomic.Int64
}

type lruEntry[K comparable, V any] struct {
	key   K
	value V
	size  int64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Puts      int64
	Evictions int64
	Size      int64
	MaxSize   int64
	Len       int
}

// NewLRU creates an LRU with the given configuration.
func NewLRU[K comparable, V any](cfg LRUConfig[K, V]) (*LRU[K, V], error) {
	if cfg.MaxSize <= 0 {
		return nil, ErrInvalidSize
	}
	sizeOf := cfg.SizeOf
	if sizeOf == nil {
		sizeOf = func(K, V) int64 { return 1 }
	}
	return &LRU[K, V]{
		maxSize:   cfg.MaxSize,
		items:     make(map[K]*list.Element),
		evictList: list.New(),
		sizeOf:    sizeOf,
		onRemoved: cfg.OnRemoved,
		rc:        cfg.Controller,
	}, nil
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(el)
		return el.Value.(*lruEntry[K, V]).value, true
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// Contains reports whether key is cached without touching recency.
func (c *LRU[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Add inserts value unless key is already present; the first writer wins.
// It returns the resident value and whether value was admitted. An admitted
// value larger than the whole budget is evicted again before Add returns.
func (c *LRU[K, V]) Add(key K, value V) (V, bool) {
	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.evictList.MoveToFront(el)
		resident := el.Value.(*lruEntry[K, V]).value
		c.mu.Unlock()
		return resident, false
	}

	itemSize := c.sizeOf(key, value)
	if itemSize < 0 {
		c.mu.Unlock()
		panic(fmt.Sprintf("cache: negative size %d for key %v", itemSize, key))
	}
	if !c.rc.TryAcquireMemory(itemSize) {
		c.mu.Unlock()
		return value, false
	}

	c.items[key] = c.evictList.PushFront(&lruEntry[K, V]{key: key, value: value, size: itemSize})
	c.size += itemSize
	c.puts.Add(1)
	evicted := c.trimToSizeLocked(c.maxSize)
	c.mu.Unlock()

	c.notify(evicted)
	return value, true
}

// Remove deletes key. It reports whether an entry was removed.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	el, ok := c.items[key]
	var removed []*lruEntry[K, V]
	if ok {
		removed = append(removed, c.removeElementLocked(el))
	}
	c.mu.Unlock()

	c.notify(removed)
	return ok
}

// RemoveIf deletes every entry matching pred and returns how many were
// removed.
func (c *LRU[K, V]) RemoveIf(pred func(key K, value V) bool) int {
	c.mu.Lock()
	var removed []*lruEntry[K, V]
	for el := c.evictList.Back(); el != nil; {
		prev := el.Prev()
		ent := el.Value.(*lruEntry[K, V])
		if pred(ent.key, ent.value) {
			removed = append(removed, c.removeElementLocked(el))
		}
		el = prev
	}
	c.mu.Unlock()

	c.notify(removed)
	return len(removed)
}

// EvictAll removes every entry.
func (c *LRU[K, V]) EvictAll() {
	c.mu.Lock()
	removed := c.trimToSizeLocked(-1)
	c.mu.Unlock()

	c.notify(removed)
}

// Keys returns the keys from least to most recently used.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]K, 0, len(c.items))
	for el := c.evictList.Back(); el != nil; el = el.Prev() {
		keys = append(keys, el.Value.(*lruEntry[K, V]).key)
	}
	return keys
}

// Size returns the summed cost of all entries.
func (c *LRU[K, V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// MaxSize returns the budget.
func (c *LRU[K, V]) MaxSize() int64 { return c.maxSize }

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the counters.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	size, n := c.size, len(c.items)
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Puts:      c.puts.Load(),
		Evictions: c.evictions.Load(),
		Size:      size,
		MaxSize:   c.maxSize,
		Len:       n,
	}
}

// trimToSizeLocked evicts from the least recently used end until size is at
// most maxSize. A negative maxSize empties the cache.
func (c *LRU[K, V]) trimToSizeLocked(maxSize int64) []*lruEntry[K, V] {
	var evicted []*lruEntry[K, V]
	for c.evictList.Len() > 0 && (maxSize < 0 || c.size > maxSize) {
		el := c.evictList.Back()
		evicted = append(evicted, c.removeElementLocked(el))
		c.evictions.Add(1)
	}
	return evicted
}

func (c *LRU[K, V]) removeElementLocked(el *list.Element) *lruEntry[K, V] {
	c.evictList.Remove(el)
	ent := el.Value.(*lruEntry[K, V])
	delete(c.items, ent.key)
	c.size -= ent.size
	c.rc.ReleaseMemory(ent.size)
	if c.size < 0 {
		panic(fmt.Sprintf("cache: size accounting went negative (%d)", c.size))
	}
	return ent
}

func (c *LRU[K, V]) notify(entries []*lruEntry[K, V]) {
	if c.onRemoved == nil {
		return
	}
	for _, ent := range entries {
		c.onRemoved(ent.key, ent.value)
	}
}
