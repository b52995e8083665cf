package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roleplay-coach-api/internal/domain/service"
	apperrors "roleplay-coach-api/pkg/errors"
)

// newTestClient 需要 REDIS_ADDR 指向可用实例，否则跳过
func newTestClient(t *testing.T) *Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return NewClientWithRedis(rdb)
}

func TestCache_FeedbackNeverExpires(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newTestClient(t))
	key := service.FeedbackKey(uuid.NewString())
	t.Cleanup(func() { _ = cache.Invalidate(ctx, key) })

	_, err := cache.Get(ctx, key)
	assert.ErrorIs(t, err, service.ErrCacheMiss)

	written, err := cache.SetNX(ctx, key, map[string]int{"overall_score": 80}, service.FeedbackCacheTTL)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = cache.SetNX(ctx, key, map[string]int{"overall_score": 10}, service.FeedbackCacheTTL)
	require.NoError(t, err)
	assert.False(t, written)

	raw, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"overall_score":80}`, string(raw))

	ttl, err := cache.client.Redis().TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)
}

func TestCache_GetOrLoadSafe(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newTestClient(t))
	key := service.PersonaRunKey(uuid.NewString())
	t.Cleanup(func() { _ = cache.Invalidate(ctx, key) })

	calls := 0
	loader := func() (any, error) {
		calls++
		return map[string]string{"id": "r1"}, nil
	}

	for i := 0; i < 3; i++ {
		raw, err := cache.GetOrLoadSafe(ctx, key, time.Minute, loader)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"r1"}`, string(raw))
	}
	assert.Equal(t, 1, calls)

	require.NoError(t, cache.Invalidate(ctx, key))
	_, err := cache.GetOrLoadSafe(ctx, key, time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCache_GetOrLoadSafeDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newTestClient(t))
	key := service.PersonaRunKey(uuid.NewString())
	t.Cleanup(func() { _ = cache.Invalidate(ctx, key) })

	_, err := cache.GetOrLoadSafe(ctx, key, time.Minute, func() (any, error) {
		return nil, apperrors.ErrPersonaRunNotFound
	})
	require.ErrorIs(t, err, apperrors.ErrPersonaRunNotFound)

	_, err = cache.Get(ctx, key)
	assert.ErrorIs(t, err, service.ErrCacheMiss)
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	limiter := NewRateLimiter(client)
	key := BuildUserRateLimitKey(uuid.NewString(), "feedback")
	t.Cleanup(func() { _ = client.Redis().Del(ctx, key).Err() })

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := limiter.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := limiter.Remaining(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}
