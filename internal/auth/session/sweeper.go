package session

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/authr/internal/auth/domain"
	"github.com/smallbiznis/authr/internal/config"
	"github.com/smallbiznis/authr/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type sweepable interface {
	Sweep(ctx context.Context) (int, error)
}

// Sweeper periodically purges expired sessions and pending logins.
type Sweeper struct {
	interval time.Duration
	targets  map[string]sweepable
	metrics  *metrics.Metrics
	log      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type SweeperParams struct {
	fx.In

	Cfg      config.Config
	Sessions domain.SessionStore
	Pending  domain.PendingAuthStore
	Metrics  *metrics.Metrics `optional:"true"`
	Log      *zap.Logger
}

func NewSweeper(p SweeperParams) *Sweeper {
	return &Sweeper{
		interval: p.Cfg.SessionSweepInterval,
		targets: map[string]sweepable{
			"session": p.Sessions,
			"pending": p.Pending,
		},
		metrics: p.Metrics,
		log:     p.Log.Named("auth.sweeper"),
	}
}

// SweepOnce runs a single pass over every store.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	for name, target := range s.targets {
		removed, err := target.Sweep(ctx)
		if err != nil {
			s.log.Warn("sweep failed", zap.String("store", name), zap.Error(err))
			continue
		}
		if removed > 0 {
			s.log.Debug("swept expired rows", zap.String("store", name), zap.Int("removed", removed))
		}
		s.metrics.RecordSweep(ctx, name, removed)
	}
}

func (s *Sweeper) Start() {
	if s.interval <= 0 {
		s.log.Info("sweeper disabled")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepOnce(ctx)
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func registerSweeper(lc fx.Lifecycle, s *Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			s.Stop()
			return nil
		},
	})
}
