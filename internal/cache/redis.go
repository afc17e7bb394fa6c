// Package cache owns the shared redis client.
package cache

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/authr/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cache",
	fx.Provide(NewRedisClient),
)

// NewRedisClient connects to redis when a configured component needs it and
// returns nil otherwise.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*redis.Client, error) {
	if !cfg.UsesRedis() {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	log = log.Named("cache.redis")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
			}
			log.Info("redis connected", zap.String("addr", cfg.RedisAddr))
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}
