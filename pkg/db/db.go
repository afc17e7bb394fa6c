package db

import (
	"context"
	"fmt"

	"github.com/smallbiznis/authr/internal/config"
	"github.com/smallbiznis/authr/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprom "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(Open),
)

// Open connects to the configured SQL backend. It returns a nil *gorm.DB
// when the memory backend is selected so no connection is ever attempted.
func Open(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	if !cfg.UsesSQL() {
		return nil, nil
	}

	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(logger.DefaultGormLoggerConfig()),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.StorageBackend, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.StorageBackend == config.StorageSQLite {
		// every statement is serialized by the store anyway
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
		sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(cfg.DBName))); err != nil {
		return nil, err
	}
	if err := conn.Use(gormprom.New(gormprom.Config{
		DBName:          cfg.DBName,
		RefreshInterval: 15,
	})); err != nil {
		return nil, err
	}

	log.Named("db").Info("database connected",
		zap.String("backend", cfg.StorageBackend),
		zap.Int("max_open_conn", sqlDB.Stats().MaxOpenConnections),
	)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return sqlDB.Close()
			},
		})
	}

	return conn, nil
}
