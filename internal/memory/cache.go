// Package memory implements the Memory Layer (spec §4.3): a TTL+LRU cache,
// a reusable buffer pool, and a registry that tracks named instances of
// both and mirrors their aggregate stats periodically.
package memory

import (
	"container/list"
	"sync"
	"time"
)

// CacheStats are the counters spec §4.3 requires every cache to expose.
type CacheStats struct {
	Hits        uint64
	Misses      uint64
	Inserts     uint64
	Evictions   uint64
	Expirations uint64
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache is a capacity-bounded LRU with per-entry TTL. hashicorp/golang-lru
// deliberately isn't used here: it has no expiration counter and no way to
// distinguish an overwrite-eviction from a capacity-eviction, both of which
// spec §4.3's stats require, so the list+map LRU is hand-rolled against
// container/list instead (see DESIGN.md).
type Cache[V any] struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	order    *list.List
	items    map[string]*list.Element
	stats    CacheStats
}

// NewCache builds a Cache bounded to capacity entries, each expiring ttl
// after insertion. A non-positive ttl means entries never expire.
func NewCache[V any](capacity int, ttl time.Duration) *Cache[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[V]{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the value for k if present and unexpired. An expired entry is
// removed synchronously and counted as an expiration, then a miss is
// returned. Get is a writer lock because it updates LRU recency and stats
// even on a hit (spec §4.3, "Cache get is a writer").
func (c *Cache[V]) Get(k string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[k]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	ent := el.Value.(*entry[V])
	if c.expired(ent) {
		c.removeElement(el)
		c.stats.Expirations++
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return ent.value, true
}

// Insert stores v under k, evicting the least-recently-used entry if the
// cache is at capacity. Overwriting an existing key counts as one eviction
// (spec §4.3).
func (c *Cache[V]) Insert(k string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}

	if el, ok := c.items[k]; ok {
		el.Value = &entry[V]{key: k, value: v, expiresAt: expiresAt}
		c.order.MoveToFront(el)
		c.stats.Inserts++
		c.stats.Evictions++
		return
	}

	el := c.order.PushFront(&entry[V]{key: k, value: v, expiresAt: expiresAt})
	c.items[k] = el
	c.stats.Inserts++

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.removeElement(oldest)
			c.stats.Evictions++
		}
	}
}

// Stats returns a snapshot copy of the cache's counters.
func (c *Cache[V]) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Len returns the current number of live entries, including any not yet
// lazily expired.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

func (c *Cache[V]) removeElement(el *list.Element) {
	ent := el.Value.(*entry[V])
	delete(c.items, ent.key)
	c.order.Remove(el)
}
