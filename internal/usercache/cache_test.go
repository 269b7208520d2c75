package usercache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaches(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T) Cache
	}{
		{
			name: "redis",
			build: func(t *testing.T) Cache {
				mr := miniredis.RunT(t)
				client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = client.Close() })
				return NewRedisCache(client, time.Minute)
			},
		},
		{
			name: "memory",
			build: func(t *testing.T) Cache {
				return NewMemoryCache(1, time.Minute)
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cache := tc.build(t)
			ctx := context.Background()

			_, ok, err := cache.Get(ctx, 1)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, cache.Set(ctx, 1, "https://api.telegram.org/file/bot/photos/1.jpg"))
			got, ok, err := cache.Get(ctx, 1)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "https://api.telegram.org/file/bot/photos/1.jpg", got)

			require.NoError(t, cache.Set(ctx, 2, ""))
			got, ok, err = cache.Get(ctx, 2)
			require.NoError(t, err)
			assert.True(t, ok, "empty answers are cached")
			assert.Empty(t, got)

			require.NoError(t, cache.Invalidate(ctx, 1))
			_, ok, err = cache.Get(ctx, 1)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRedisCache_Expires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 1, "url"))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNilRedisCacheIsNoop(t *testing.T) {
	var cache *RedisCache
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, 1)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, cache.Set(ctx, 1, "x"))
	assert.NoError(t, cache.Invalidate(ctx, 1))
}
