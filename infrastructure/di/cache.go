package di

import (
	"container/list"
	"context"
	"sync"

	"contexthub-backend/application/ports"
	"contexthub-backend/domain/contexts"
)

const defaultCacheCapacity = 4096

// InMemoryCache is an LRU cache for immutable entries. Entries never
// change after storage, so cached values never go stale; capacity is
// the only eviction trigger.
type InMemoryCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List
}

type cacheItem struct {
	key   string
	entry *contexts.Entry
}

// NewInMemoryCache creates an LRU cache with the default capacity
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		capacity: defaultCacheCapacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get implements ports.Cache
func (c *InMemoryCache) Get(_ context.Context, key string) (*contexts.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheItem).entry, true
}

// Set implements ports.Cache
func (c *InMemoryCache) Set(_ context.Context, key string, entry *contexts.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheItem).entry = entry
		return
	}

	c.items[key] = c.order.PushFront(&cacheItem{key: key, entry: entry})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheItem).key)
		}
	}
}

// Delete implements ports.Cache
func (c *InMemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.Remove(elem)
		delete(c.items, key)
	}
}

var _ ports.Cache = (*InMemoryCache)(nil)
