package llm

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry holds a cached embedding with its insertion timestamp for TTL
// expiry and its position in the recency list.
type cacheEntry struct {
	key      string
	vector   []float32
	storedAt time.Time
	elem     *list.Element
}

// Cache is a bounded TTL+LRU mapping from raw text to its embedding vector.
// Both Get and Set refresh the entry's insertion position, so eviction always
// removes the least-recently-touched entry. Expired entries are cleaned up
// lazily on Get, no background goroutine.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	entries    map[string]*cacheEntry
	order      *list.List // front = most recent, back = eviction candidate
}

// NewCache creates a cache bounded to maxEntries with the given TTL.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		entries:    make(map[string]*cacheEntry),
		order:      list.New(),
	}
}

// Get returns the cached vector if present and younger than the TTL,
// refreshing its recency position. Expired entries are evicted.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		c.order.Remove(entry.elem)
		delete(c.entries, key)
		return nil, false
	}
	entry.storedAt = time.Now()
	c.order.MoveToFront(entry.elem)
	return entry.vector, true
}

// Set stores a vector, evicting the least-recently-touched entry when at
// capacity. Re-setting an existing key refreshes its position.
func (c *Cache) Set(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.vector = vector
		entry.storedAt = time.Now()
		c.order.MoveToFront(entry.elem)
		return
	}
	if c.order.Len() >= c.maxEntries {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
	entry := &cacheEntry{key: key, vector: vector, storedAt: time.Now()}
	entry.elem = c.order.PushFront(entry)
	c.entries[key] = entry
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
