// Package usercache caches profile photo URLs looked up through the Bot API.
package usercache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultTTL = 6 * time.Hour

// Cache maps a Telegram user id to a photo URL. An empty URL is a valid cached answer
// meaning the user has no photo.
type Cache interface {
	Get(ctx context.Context, userID int64) (string, bool, error)
	Set(ctx context.Context, userID int64, photoURL string) error
	Invalidate(ctx context.Context, userID int64) error
}

// RedisCache stores entries in Redis so they survive restarts and are shared across instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache constructs a photo cache backed by the provided Redis client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get fetches a cached photo URL if it exists.
func (c *RedisCache) Get(ctx context.Context, userID int64) (string, bool, error) {
	if c == nil || c.client == nil {
		return "", false, nil
	}

	value, err := c.client.Get(ctx, cacheKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get cached photo: %w", err)
	}

	return value, true, nil
}

// Set stores the photo URL for the configured TTL.
func (c *RedisCache) Set(ctx context.Context, userID int64, photoURL string) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Set(ctx, cacheKey(userID), photoURL, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached photo: %w", err)
	}

	return nil
}

// Invalidate removes the cached entry if it exists.
func (c *RedisCache) Invalidate(ctx context.Context, userID int64) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete cached photo: %w", err)
	}

	return nil
}

func cacheKey(userID int64) string {
	return "photo:" + strconv.FormatInt(userID, 10)
}
