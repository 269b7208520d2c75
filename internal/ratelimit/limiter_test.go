package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/savos-bot/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRedisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLimiter(client, testLogger()), mr
}

func TestRedisLimiter_AllowsWithinLimit(t *testing.T) {
	limiter, _ := newTestRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := limiter.Check(ctx, "user:1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 3-(i+1), res.Remaining)
	}

	res, err := limiter.Check(ctx, "user:1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
}

func TestRedisLimiter_RejectedRequestsAreNotCounted(t *testing.T) {
	limiter, mr := newTestRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := limiter.Check(ctx, "user:2", 2, time.Minute)
		require.NoError(t, err)
	}

	members, err := mr.ZMembers(redisKeyPrefix + "user:2")
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestRedisLimiter_SlidingWindow(t *testing.T) {
	limiter, _ := newTestRedisLimiter(t)
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	res, err := limiter.Check(ctx, "user:3", 1, time.Second)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = limiter.Check(ctx, "user:3", 1, time.Second)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	now = now.Add(1100 * time.Millisecond)
	res, err = limiter.Check(ctx, "user:3", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedisLimiter_NilClient(t *testing.T) {
	limiter := NewRedisLimiter(nil, testLogger())

	_, err := limiter.Check(context.Background(), "user:1", 1, time.Minute)
	assert.Error(t, err)
}

func TestMemoryLimiter_Check(t *testing.T) {
	limiter := NewMemoryLimiter(testLogger())
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.Check(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := limiter.Check(ctx, "k", 2, time.Minute)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, res.Allowed)
	assert.Equal(t, now.Add(time.Minute), res.ResetAt)

	now = now.Add(61 * time.Second)
	res, err = limiter.Check(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	limiter := NewMemoryLimiter(testLogger())
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := limiter.Check(ctx, "old", 5, time.Minute)
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	_, err = limiter.Check(ctx, "fresh", 5, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 1, limiter.Cleanup(5*time.Minute))
	assert.Zero(t, limiter.Cleanup(0))
	assert.Len(t, limiter.buckets, 1)
}

type failingLimiter struct{}

func (failingLimiter) Check(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("connection refused")
}

func TestAdaptiveLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("primary decides", func(t *testing.T) {
		primary, _ := newTestRedisLimiter(t)
		limiter := NewAdaptiveLimiter(primary, NewMemoryLimiter(testLogger()), testLogger())

		_, err := limiter.Check(ctx, "u", 1, time.Minute)
		require.NoError(t, err)

		res, err := limiter.Check(ctx, "u", 1, time.Minute)
		assert.ErrorIs(t, err, ErrLimitExceeded)
		assert.False(t, res.Allowed)
	})

	t.Run("fallback runs at half the limit", func(t *testing.T) {
		limiter := NewAdaptiveLimiter(failingLimiter{}, NewMemoryLimiter(testLogger()), testLogger())

		for i := 0; i < 2; i++ {
			_, err := limiter.Check(ctx, "u", 4, time.Minute)
			require.NoError(t, err)
		}

		_, err := limiter.Check(ctx, "u", 4, time.Minute)
		assert.ErrorIs(t, err, ErrLimitExceeded)
	})

	t.Run("fallback allows at least one", func(t *testing.T) {
		limiter := NewAdaptiveLimiter(failingLimiter{}, NewMemoryLimiter(testLogger()), testLogger())

		_, err := limiter.Check(ctx, "u", 1, time.Minute)
		require.NoError(t, err)
	})
}

func TestResult_RetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		result *Result
		want   int
	}{
		{name: "nil", result: nil, want: 1},
		{name: "past reset", result: &Result{ResetAt: now.Add(-time.Second)}, want: 1},
		{name: "fraction rounds up", result: &Result{ResetAt: now.Add(1500 * time.Millisecond)}, want: 2},
		{name: "whole seconds", result: &Result{ResetAt: now.Add(time.Minute)}, want: 60},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.result.RetryAfter(now))
		})
	}
}

func TestRules(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{
		Enabled:   true,
		PerUser:   config.RateLimitRule{Limit: 30, Window: "1m"},
		Whitelist: []int64{42},
		Commands: config.CommandRateLimits{
			Start: config.RateLimitRule{Limit: 5, Window: "1m"},
			Sync:  config.RateLimitRule{Limit: 2, Window: "bogus"},
		},
	})

	assert.True(t, rules.Enabled())
	assert.True(t, rules.IsWhitelisted(42))
	assert.False(t, rules.IsWhitelisted(7))

	tests := []struct {
		name       string
		command    string
		wantLimit  int
		wantWindow time.Duration
		wantErr    error
		anyErr     bool
	}{
		{name: "with slash", command: "/start", wantLimit: 5, wantWindow: time.Minute},
		{name: "without slash", command: "start", wantLimit: 5, wantWindow: time.Minute},
		{name: "unknown command", command: "/help", wantErr: ErrNoRule},
		{name: "unset rule", command: "/stats", anyErr: true},
		{name: "bad window", command: "/sync", anyErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			limit, window, err := rules.GetCommandLimit(tc.command)
			switch {
			case tc.wantErr != nil:
				assert.ErrorIs(t, err, tc.wantErr)
			case tc.anyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tc.wantLimit, limit)
				assert.Equal(t, tc.wantWindow, window)
			}
		})
	}

	limit, window, err := rules.GetPerUserLimit()
	require.NoError(t, err)
	assert.Equal(t, 30, limit)
	assert.Equal(t, time.Minute, window)

	var disabled *Rules
	assert.False(t, disabled.Enabled())
}
