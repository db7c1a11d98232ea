package geocode

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes successful lookups by coordinate rounded to six decimals
// and collapses concurrent lookups of the same coordinate into one call.
// Failures are not cached.
type Cache struct {
	next Lookuper

	group singleflight.Group
	mu    sync.RWMutex
	items map[string]string
}

// NewCache wraps next.
func NewCache(next Lookuper) *Cache {
	return &Cache{next: next, items: make(map[string]string)}
}

// CacheKey is the "lat,lng" key with six decimals.
func CacheKey(lng, lat float64) string {
	return fmt.Sprintf("%.6f,%.6f", lat, lng)
}

// Lookup implements Lookuper.
func (c *Cache) Lookup(ctx context.Context, lng, lat float64) (string, error) {
	key := CacheKey(lng, lat)

	c.mu.RLock()
	addr, ok := c.items[key]
	c.mu.RUnlock()
	if ok {
		return addr, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		addr, err := c.next.Lookup(ctx, lng, lat)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.items[key] = addr
		c.mu.Unlock()
		return addr, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Len returns the number of cached addresses.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
