package cache

import (
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type responseCacheEntry[T any] struct {
	data     T
	storedAt time.Time
}

// responseCache holds successful results keyed by request.
//
// Freshness is decided by storedAt and nowFunc, so expiry is evaluated lazily at read time.
// The ttlcache expiry only reclaims memory for entries nobody reads again.
type responseCache[T any] struct {
	cache   *ttlcache.Cache[Key, responseCacheEntry[T]]
	ttl     time.Duration
	nowFunc func() time.Time
}

func newResponseCache[T any](ttl time.Duration, nowFunc func() time.Time) *responseCache[T] {
	storage := ttlcache.New[Key, responseCacheEntry[T]](
		ttlcache.WithTTL[Key, responseCacheEntry[T]](ttl),
		ttlcache.WithDisableTouchOnHit[Key, responseCacheEntry[T]](),
	)
	go storage.Start()

	return &responseCache[T]{
		cache:   storage,
		ttl:     ttl,
		nowFunc: nowFunc,
	}
}

func (c *responseCache[T]) enabled() bool {
	return c.ttl > 0
}

func (c *responseCache[T]) get(key Key) (T, bool) {
	var empty T
	if !c.enabled() {
		return empty, false
	}

	item := c.cache.Get(key)
	if item == nil {
		return empty, false
	}

	entry := item.Value()
	if !c.fresh(entry) {
		// Stale, treat as absent. A later set overwrites it.
		return empty, false
	}

	return entry.data, true
}

func (c *responseCache[T]) fresh(entry responseCacheEntry[T]) bool {
	return c.nowFunc().Sub(entry.storedAt) < c.ttl
}

func (c *responseCache[T]) set(key Key, data T) {
	if !c.enabled() {
		return
	}

	c.cache.Set(key, responseCacheEntry[T]{data: data, storedAt: c.nowFunc()}, ttlcache.DefaultTTL)
}

// invalidate removes every entry whose key contains pattern. The empty pattern matches every key.
// Only entries that were still fresh are counted as removed.
func (c *responseCache[T]) invalidate(pattern string) int {
	removed := 0
	for key, item := range c.cache.Items() {
		if !strings.Contains(string(key), pattern) {
			continue
		}
		c.cache.Delete(key)
		if c.fresh(item.Value()) {
			removed++
		}
	}

	if pattern == "" {
		c.cache.DeleteAll()
	}

	return removed
}

func (c *responseCache[T]) stop() {
	c.cache.Stop()
}
