package usercache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coocood/freecache"
)

const minCacheSizeMB = 1

// MemoryCache keeps entries in a fixed-size freecache arena.
type MemoryCache struct {
	cache *freecache.Cache
	ttl   int
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache allocates sizeMB megabytes for the cache.
func NewMemoryCache(sizeMB int, ttl time.Duration) *MemoryCache {
	if sizeMB < minCacheSizeMB {
		sizeMB = minCacheSizeMB
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &MemoryCache{
		cache: freecache.NewCache(sizeMB * 1024 * 1024),
		ttl:   max(int(ttl.Seconds()), 1),
	}
}

func (c *MemoryCache) Get(_ context.Context, userID int64) (string, bool, error) {
	value, err := c.cache.Get([]byte(cacheKey(userID)))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get cached photo: %w", err)
	}

	return string(value), true, nil
}

func (c *MemoryCache) Set(_ context.Context, userID int64, photoURL string) error {
	if err := c.cache.Set([]byte(cacheKey(userID)), []byte(photoURL), c.ttl); err != nil {
		return fmt.Errorf("set cached photo: %w", err)
	}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, userID int64) error {
	c.cache.Del([]byte(cacheKey(userID)))
	return nil
}
