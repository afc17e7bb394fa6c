package session

import (
	"errors"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/authr/internal/auth/domain"
	"github.com/smallbiznis/authr/internal/clock"
	"github.com/smallbiznis/authr/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.session",
	fx.Provide(NewManager),
	fx.Provide(NewStore),
	fx.Provide(NewSweeper),
	fx.Invoke(registerSweeper),
)

type StoreParams struct {
	fx.In

	Cfg   config.Config
	Redis *redis.Client `optional:"true"`
	Clock clock.Clock
}

func NewStore(p StoreParams) (domain.SessionStore, error) {
	switch p.Cfg.SessionBackend {
	case config.SessionRedis:
		if p.Redis == nil {
			return nil, errors.New("redis session store selected but no redis client")
		}
		return NewRedisStore(p.Redis, p.Clock), nil
	default:
		return NewMemoryStore(p.Clock), nil
	}
}
