// Package cache decorates remote calls with an offline-tolerant response
// cache held in the local store's payload tier. Cached entries belong to a
// generation; bumping the generation on deploy invalidates everything from
// older builds.
package cache

import (
	"context"
	"strings"

	"golang.org/x/sync/singleflight"

	"tempo/internal/logging"
	"tempo/internal/store"
)

// Strategy selects how a call and its cached response interact.
type Strategy int

const (
	// NetworkFirst tries the live call and falls back to the cached
	// response when it fails. Successful responses refresh the cache.
	NetworkFirst Strategy = iota
	// CacheFirst serves the cached response when present and only calls
	// out on a miss.
	CacheFirst
)

// Call performs the live request.
type Call func(ctx context.Context) ([]byte, error)

// Cache is safe for concurrent use. Concurrent misses on the same key are
// collapsed into a single live call.
type Cache struct {
	store *store.Store
	gen   string
	group singleflight.Group
}

// New opens a cache for the given generation and drops every persisted
// entry left over from other generations.
func New(st *store.Store, generation string) *Cache {
	c := &Cache{store: st, gen: generation}
	prefix := store.PayloadPrefixCache
	mine := c.keyPrefix()
	purged := 0
	for _, key := range st.PayloadKeysWithPrefix(prefix) {
		if strings.HasPrefix(key, mine) {
			continue
		}
		st.RemovePayload(key)
		purged++
	}
	if purged > 0 {
		logging.Cache("purged %d stale cache entries, generation %s", purged, generation)
	}
	return c
}

func (c *Cache) keyPrefix() string {
	return store.PayloadPrefixCache + c.gen + "/"
}

// Do runs call under the given strategy, consulting and refreshing the
// cached response for key as the strategy dictates.
func (c *Cache) Do(ctx context.Context, strategy Strategy, key string, call Call) ([]byte, error) {
	switch strategy {
	case CacheFirst:
		if data, ok := c.store.GetPayload(c.keyPrefix() + key); ok {
			logging.CacheDebug("hit %s", key)
			return data, nil
		}
		return c.fetch(ctx, key, call)
	default:
		data, err := c.fetch(ctx, key, call)
		if err == nil {
			return data, nil
		}
		if cached, ok := c.store.GetPayload(c.keyPrefix() + key); ok {
			logging.Cache("serving cached response for %s after error: %v", key, err)
			return cached, nil
		}
		return nil, err
	}
}

func (c *Cache) fetch(ctx context.Context, key string, call Call) ([]byte, error) {
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		data, err := call(ctx)
		if err != nil {
			return nil, err
		}
		c.store.SetPayload(c.keyPrefix()+key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate removes one cached response.
func (c *Cache) Invalidate(key string) {
	c.store.RemovePayload(c.keyPrefix() + key)
}

// Clear removes every cached response in this generation.
func (c *Cache) Clear() {
	for _, key := range c.store.PayloadKeysWithPrefix(c.keyPrefix()) {
		c.store.RemovePayload(key)
	}
}
