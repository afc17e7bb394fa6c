package pending

import (
	"errors"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/authr/internal/auth/domain"
	"github.com/smallbiznis/authr/internal/clock"
	"github.com/smallbiznis/authr/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.pending",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Cfg   config.Config
	Redis *redis.Client `optional:"true"`
	Clock clock.Clock
}

// New picks the backend with the session backend: redis-backed sessions imply
// multiple replicas, which need shared pending rows too.
func New(p Params) (domain.PendingAuthStore, error) {
	if p.Cfg.SessionBackend == config.SessionRedis {
		if p.Redis == nil {
			return nil, errors.New("redis pending store selected but no redis client")
		}
		return NewRedisStore(p.Redis, p.Cfg.PendingAuthTTL), nil
	}
	return NewMemoryStore(p.Cfg.PendingAuthTTL, p.Clock), nil
}
