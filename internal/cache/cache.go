// Package cache provides the content-addressed identification result cache:
// a bounded, TTL-expiring LRU keyed by the MD5 of the raw image bytes.
package cache

import (
	"sync"
	"time"

	"github.com/soulnutri/dishscan/internal/metrics"
)

// Cloner is implemented by cached payload types. Clone must return a deep
// copy: cached payloads never share memory with callers or with the visual
// index, so index rebuilds cannot invalidate cached entries.
type Cloner[V any] interface {
	Clone() V
}

type entry[V Cloner[V]] struct {
	key       string
	payload   V
	prev      *entry[V]
	next      *entry[V]
	expiresAt time.Time
}

// Cache is a thread-safe LRU with per-entry TTL. A map plus a doubly-linked
// list with sentinel nodes gives O(1) Get, Set, and eviction; head.next is
// the most recently used entry, tail.prev the least.
type Cache[V Cloner[V]] struct {
	mu sync.Mutex

	capacity int
	items    map[string]*entry[V]
	head     *entry[V]
	tail     *entry[V]

	hits   int64
	misses int64
}

// New creates a cache holding at most capacity entries.
func New[V Cloner[V]](capacity int) *Cache[V] {
	if capacity <= 0 {
		capacity = 500
	}
	c := &Cache[V]{
		capacity: capacity,
		items:    make(map[string]*entry[V], capacity),
		head:     &entry[V]{},
		tail:     &entry[V]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns a deep copy of the cached payload. A hit promotes the entry to
// most recently used; an expired entry behaves as a miss and is dropped.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		c.misses++
		metrics.CacheMisses.Inc()
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		c.remove(e)
		c.misses++
		metrics.CacheMisses.Inc()
		return zero, false
	}

	c.moveToFront(e)
	c.hits++
	metrics.CacheHits.Inc()
	return e.payload.Clone(), true
}

// Set stores a deep copy of payload under key with the given TTL. Expired
// entries are purged first; if the cache is still at capacity the strict
// least-recently-used entry is evicted.
func (c *Cache[V]) Set(key string, payload V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = time.Hour
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.purgeExpired(now)

	if e, ok := c.items[key]; ok {
		e.payload = payload.Clone()
		e.expiresAt = now.Add(ttl)
		c.moveToFront(e)
		return
	}

	for len(c.items) >= c.capacity {
		c.remove(c.tail.prev)
	}

	e := &entry[V]{
		key:       key,
		payload:   payload.Clone(),
		expiresAt: now.Add(ttl),
	}
	c.items[key] = e
	c.insertFront(e)
	metrics.CacheEntries.Set(float64(len(c.items)))
}

// Clear empties the cache and resets the hit/miss counters.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry[V], c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
	c.hits = 0
	c.misses = 0
	metrics.CacheEntries.Set(0)
}

// Stats reports cache occupancy and effectiveness. Observability only; the
// counters carry no correctness weight.
type Stats struct {
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
}

// Stats returns a point-in-time snapshot.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Size:     len(c.items),
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

func (c *Cache[V]) purgeExpired(now time.Time) {
	for e := c.tail.prev; e != c.head; {
		prev := e.prev
		if now.After(e.expiresAt) {
			c.remove(e)
		}
		e = prev
	}
}

func (c *Cache[V]) insertFront(e *entry[V]) {
	e.next = c.head.next
	e.prev = c.head
	c.head.next.prev = e
	c.head.next = e
}

func (c *Cache[V]) moveToFront(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.insertFront(e)
}

func (c *Cache[V]) remove(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
	metrics.CacheEntries.Set(float64(len(c.items)))
}
