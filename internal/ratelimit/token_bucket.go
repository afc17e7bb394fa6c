// Package ratelimit implements a redis-backed token bucket shared by every
// replica.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Tokens are kept as floats in the hash but returned in thousandths, since
// redis truncates Lua numbers to integers on the way out.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, math.floor(tokens * 1000), ts}
`

type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*RateLimitResult, error) {
	if t == nil || t.client == nil {
		return nil, errors.New("rate limiter not configured")
	}
	if key == "" {
		return nil, errors.New("rate limiter key is empty")
	}
	if rate <= 0 || burst <= 0 {
		return nil, errors.New("rate limiter rate and burst must be positive")
	}

	ttl := defaultBucketTTL(rate, burst)
	res, err := t.script.Run(ctx, t.client, []string{key},
		rate,
		burst,
		ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, err
	}
	if len(res) < 3 {
		return nil, errors.New("invalid rate limit script response")
	}

	allowed := res[0] == 1
	remaining := float64(res[1]) / 1000

	var retryAfter time.Duration
	if !allowed {
		retryAfter = time.Duration((1 - remaining) / rate * float64(time.Second))
	}

	return &RateLimitResult{
		Allowed:    allowed,
		Limit:      burst,
		Remaining:  int(remaining),
		RetryAfter: retryAfter,
	}, nil
}

// defaultBucketTTL keeps an idle bucket around for twice its refill time.
func defaultBucketTTL(rate float64, burst int) time.Duration {
	seconds := max(math.Ceil((float64(burst)/rate)*2), 1)
	return time.Duration(seconds) * time.Second
}
