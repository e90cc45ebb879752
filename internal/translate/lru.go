package translate

import (
	"container/list"
	"sync"
)

// CacheKey identifies a memoised (source, destination) coercion strategy.
type CacheKey struct {
	Src string
	Dst string
}

// Cache is a bounded LRU cache of (src-type, dst-type) -> strategy,
// guarded by a single mutex per spec §4.4 and §5's "fine-grained
// locking" shared-resource policy. No example in the retrieved corpus
// carries a third-party LRU package (see DESIGN.md); this is a small
// container/list-backed implementation, the idiomatic stdlib shape for
// an LRU when no such library is available.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	index    map[CacheKey]*list.Element
}

type entry struct {
	key   CacheKey
	value strategy
}

// DefaultCacheSize is the spec's documented default LRU capacity.
const DefaultCacheSize = 1024

// NewCache creates a Cache with the given capacity. A non-positive
// capacity falls back to DefaultCacheSize.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[CacheKey]*list.Element),
	}
}

// Get returns the memoised strategy for key, promoting it to
// most-recently-used.
func (c *Cache) Get(key CacheKey) (strategy, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*entry).value, true
}

// Put inserts or updates the strategy for key, evicting the
// least-recently-used entry if the cache is at capacity.
func (c *Cache) Put(key CacheKey, s strategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		el.Value.(*entry).value = s
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&entry{key: key, value: s})
	c.index[key] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.index, oldest.Value.(*entry).key)
		}
	}
}

// Len returns the number of memoised entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
