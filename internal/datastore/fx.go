// Package datastore places every record kind on the storage backend chosen
// at startup.
package datastore

import (
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/authr/internal/config"
	"github.com/smallbiznis/authr/internal/migration"
	"github.com/smallbiznis/authr/internal/records"
	"github.com/smallbiznis/authr/internal/storage"
	"github.com/smallbiznis/authr/internal/storage/memory"
	"github.com/smallbiznis/authr/internal/storage/sqlstore"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("datastore",
	fx.Provide(NewStores),
	fx.Provide(func(s *Stores) storage.Store[records.User] { return s.Users }),
)

// Stores holds one store per record kind, all on the backend chosen at
// startup.
type Stores struct {
	Users storage.Store[records.User]
	Notes storage.Store[records.Note]
}

type Params struct {
	fx.In

	Cfg   config.Config
	DB    *gorm.DB `optional:"true"`
	GenID *snowflake.Node
	Log   *zap.Logger
}

func NewStores(p Params) (*Stores, error) {
	log := p.Log.Named("datastore")

	if !p.Cfg.UsesSQL() {
		b := memory.NewBackend(p.GenID)
		log.Info("using memory storage backend")
		return &Stores{
			Users: memory.For[records.User](b),
			Notes: memory.For[records.Note](b),
		}, nil
	}

	if p.DB == nil {
		return nil, errors.New("sql storage backend selected but no database connection")
	}
	if p.Cfg.DBAutoMigrate {
		if err := migration.Run(p.DB, p.Cfg.StorageBackend); err != nil {
			return nil, err
		}
		log.Info("database migrated", zap.String("backend", p.Cfg.StorageBackend))
	}

	b := sqlstore.NewBackend(p.DB, p.Cfg.DBOpTimeout, p.Log)
	log.Info("using sql storage backend", zap.String("backend", p.Cfg.StorageBackend))
	return &Stores{
		Users: sqlstore.For[records.User](b),
		Notes: sqlstore.For[records.Note](b),
	}, nil
}
