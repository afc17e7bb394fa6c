package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/authr/internal/config"
	"github.com/smallbiznis/authr/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyLoginClient = "authr:ratelimit:login:%s"
	endpointLogin  = "auth.login"
)

// LoginLimiter throttles login attempts per client address. A nil
// *LoginLimiter allows everything.
type LoginLimiter struct {
	bucket  *TokenBucket
	rate    float64
	burst   int
	metrics *metrics.Metrics
	log     *zap.Logger
}

type LoginParams struct {
	fx.In

	Cfg     config.Config
	Redis   *redis.Client    `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
	Log     *zap.Logger
}

func NewLoginLimiter(p LoginParams) (*LoginLimiter, error) {
	if !p.Cfg.LoginRateLimitEnabled {
		return nil, nil
	}
	if p.Redis == nil {
		return nil, errors.New("login rate limit requires redis")
	}
	if p.Cfg.LoginRatePerSecond <= 0 || p.Cfg.LoginRateBurst <= 0 {
		return nil, errors.New("login rate limit must be positive")
	}
	return &LoginLimiter{
		bucket:  NewTokenBucket(p.Redis),
		rate:    p.Cfg.LoginRatePerSecond,
		burst:   p.Cfg.LoginRateBurst,
		metrics: p.Metrics,
		log:     p.Log.Named("ratelimit.login"),
	}, nil
}

func (l *LoginLimiter) Enabled() bool {
	return l != nil
}

// Allow reports whether clientKey may start another login. Redis failures
// fail open so an outage of the limiter does not block sign-in.
func (l *LoginLimiter) Allow(ctx context.Context, clientKey string) (bool, time.Duration) {
	if !l.Enabled() {
		return true, 0
	}
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		clientKey = "unknown"
	}

	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyLoginClient, clientKey), l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
		l.metrics.RecordRateLimitAllowed(ctx, endpointLogin)
		return true, 0
	}
	if !res.Allowed {
		l.metrics.RecordRateLimitDenied(ctx, endpointLogin, "bucket_empty")
		return false, res.RetryAfter
	}
	l.metrics.RecordRateLimitAllowed(ctx, endpointLogin)
	return true, 0
}
