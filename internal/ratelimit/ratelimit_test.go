package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/authr/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestTokenBucketExhaustsBurst(t *testing.T) {
	client, _ := newRedis(t)
	bucket := NewTokenBucket(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := bucket.Allow(ctx, "k", 0.001, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
	}

	res, err := bucket.Allow(ctx, "k", 0.001, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)
	assert.Equal(t, 3, res.Limit)
}

func TestTokenBucketKeysAreIndependent(t *testing.T) {
	client, _ := newRedis(t)
	bucket := NewTokenBucket(client)
	ctx := context.Background()

	res, err := bucket.Allow(ctx, "a", 0.001, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = bucket.Allow(ctx, "b", 0.001, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestTokenBucketRejectsBadArguments(t *testing.T) {
	client, _ := newRedis(t)
	bucket := NewTokenBucket(client)

	_, err := bucket.Allow(context.Background(), "", 1, 1)
	assert.Error(t, err)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	assert.Error(t, err)
}

func TestLoginLimiterDisabled(t *testing.T) {
	limiter, err := NewLoginLimiter(LoginParams{Cfg: config.Config{}, Log: zap.NewNop()})
	require.NoError(t, err)
	assert.Nil(t, limiter)

	allowed, _ := limiter.Allow(context.Background(), "1.2.3.4")
	assert.True(t, allowed)
}

func TestLoginLimiterRequiresRedis(t *testing.T) {
	_, err := NewLoginLimiter(LoginParams{
		Cfg: config.Config{LoginRateLimitEnabled: true, LoginRatePerSecond: 1, LoginRateBurst: 1},
		Log: zap.NewNop(),
	})
	assert.Error(t, err)
}

func TestLoginLimiterDeniesAfterBurst(t *testing.T) {
	client, _ := newRedis(t)
	limiter, err := NewLoginLimiter(LoginParams{
		Cfg:   config.Config{LoginRateLimitEnabled: true, LoginRatePerSecond: 0.001, LoginRateBurst: 2},
		Redis: client,
		Log:   zap.NewNop(),
	})
	require.NoError(t, err)
	ctx := context.Background()

	ok, _ := limiter.Allow(ctx, "10.0.0.1")
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "10.0.0.1")
	assert.True(t, ok)
	ok, retry := limiter.Allow(ctx, "10.0.0.1")
	assert.False(t, ok)
	assert.Positive(t, retry)

	ok, _ = limiter.Allow(ctx, "10.0.0.2")
	assert.True(t, ok)
}

func TestLoginLimiterFailsOpen(t *testing.T) {
	client, mr := newRedis(t)
	limiter, err := NewLoginLimiter(LoginParams{
		Cfg:   config.Config{LoginRateLimitEnabled: true, LoginRatePerSecond: 1, LoginRateBurst: 1},
		Redis: client,
		Log:   zap.NewNop(),
	})
	require.NoError(t, err)
	mr.Close()

	ok, _ := limiter.Allow(context.Background(), "10.0.0.1")
	assert.True(t, ok)
}
