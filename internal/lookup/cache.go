package lookup

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/astana-data/hotspot.report/internal/hotspot"
)

// cacheKey rounds coordinates to three decimal places, roughly 110 m,
// so neighbouring cluster centres share a lookup result.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.3f,%.3f", lat, lon)
}

type lruCache[V any] struct {
	mu      sync.Mutex
	size    int
	entries map[string]*list.Element
	order   *list.List
}

type lruEntry[V any] struct {
	key   string
	value V
}

func newLRUCache[V any](size int) *lruCache[V] {
	return &lruCache[V]{
		size:    size,
		entries: make(map[string]*list.Element, size),
		order:   list.New(),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(lruEntry[V]).value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value = lruEntry[V]{key: key, value: value}
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(lruEntry[V]{key: key, value: value})
	if c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(lruEntry[V]).key)
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// CacheObserver is called with true on a cache hit and false on a
// miss. Wired to metrics by the caller.
type CacheObserver func(hit bool)

// CachedOrganizations wraps an OrganizationLookup with a
// rounded-coordinate LRU cache. Failed lookups are not cached.
type CachedOrganizations struct {
	inner   hotspot.OrganizationLookup
	cache   *lruCache[[]hotspot.Organization]
	observe CacheObserver
}

// NewCachedOrganizations wraps inner with a cache holding size entries.
func NewCachedOrganizations(inner hotspot.OrganizationLookup, size int) *CachedOrganizations {
	return &CachedOrganizations{inner: inner, cache: newLRUCache[[]hotspot.Organization](size)}
}

// SetObserver registers a hit/miss observer.
func (c *CachedOrganizations) SetObserver(fn CacheObserver) { c.observe = fn }

// Nearby implements hotspot.OrganizationLookup.
func (c *CachedOrganizations) Nearby(ctx context.Context, lat, lon, radiusMeters float64) ([]hotspot.Organization, error) {
	key := cacheKey(lat, lon)
	if orgs, ok := c.cache.get(key); ok {
		if c.observe != nil {
			c.observe(true)
		}
		return orgs, nil
	}
	if c.observe != nil {
		c.observe(false)
	}
	orgs, err := c.inner.Nearby(ctx, lat, lon, radiusMeters)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, orgs)
	return orgs, nil
}

// Len returns the number of cached centres.
func (c *CachedOrganizations) Len() int { return c.cache.len() }

// CachedEvents wraps an EventLookup with a rounded-coordinate LRU
// cache. Failed lookups are not cached.
type CachedEvents struct {
	inner   hotspot.EventLookup
	cache   *lruCache[[]hotspot.Event]
	observe CacheObserver
}

// NewCachedEvents wraps inner with a cache holding size entries.
func NewCachedEvents(inner hotspot.EventLookup, size int) *CachedEvents {
	return &CachedEvents{inner: inner, cache: newLRUCache[[]hotspot.Event](size)}
}

// SetObserver registers a hit/miss observer.
func (c *CachedEvents) SetObserver(fn CacheObserver) { c.observe = fn }

// Nearby implements hotspot.EventLookup.
func (c *CachedEvents) Nearby(ctx context.Context, lat, lon float64) ([]hotspot.Event, error) {
	key := cacheKey(lat, lon)
	if events, ok := c.cache.get(key); ok {
		if c.observe != nil {
			c.observe(true)
		}
		return events, nil
	}
	if c.observe != nil {
		c.observe(false)
	}
	events, err := c.inner.Nearby(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, events)
	return events, nil
}

// Len returns the number of cached centres.
func (c *CachedEvents) Len() int { return c.cache.len() }
