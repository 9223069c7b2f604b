package render

import (
	"container/list"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ViewCache is an LRU of rendered views keyed by view ID.
type ViewCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
	group    singleflight.Group
}

type cacheEntry struct {
	key   string
	value any
}

// NewViewCache creates a new cache with the given capacity.
func NewViewCache(capacity int) *ViewCache {
	if capacity < 1 {
		capacity = 1
	}
	return &ViewCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached view for key if present and marks it recently used.
func (c *ViewCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set stores the view for key, evicting the oldest entry if at capacity.
func (c *ViewCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key: key, value: value})
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of cached views.
func (c *ViewCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// GetOrCompute returns the cached view for key, or computes and stores it.
// Concurrent callers for the same missing key share one compute call.
// cached reports whether the value came from the cache.
func (c *ViewCache) GetOrCompute(key string, compute func() any) (value any, cached bool) {
	if v, ok := c.Get(key); ok {
		return v, true
	}
	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v := compute()
		c.Set(key, v)
		return v, nil
	})
	return v, false
}
