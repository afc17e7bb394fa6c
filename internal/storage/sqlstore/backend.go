// Package sqlstore implements storage.Store over gorm. Statements are built
// from each record's schema at call time and every value is a bound argument.
package sqlstore

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Backend is shared by every record kind stored in one database.
type Backend struct {
	db        *gorm.DB
	log       *zap.Logger
	timeout   time.Duration
	returning bool
	// exclusive is a one-slot semaphore serializing every statement against
	// an embedded single-file database. Nil for pooled network databases.
	exclusive chan struct{}
}

// NewBackend inspects the dialect to decide statement shape and locking:
// sqlite is serialized and uses RETURNING, postgres uses RETURNING over the
// pool, mysql re-selects inside a transaction.
func NewBackend(db *gorm.DB, opTimeout time.Duration, log *zap.Logger) *Backend {
	b := &Backend{
		db:      db,
		log:     log.Named("storage.sql"),
		timeout: opTimeout,
	}
	switch db.Dialector.Name() {
	case "sqlite":
		b.returning = true
		b.exclusive = make(chan struct{}, 1)
	case "postgres":
		b.returning = true
	}
	return b
}

// run executes fn with the per-operation timeout applied and, for embedded
// databases, the exclusive statement lock held.
func (b *Backend) run(ctx context.Context, fn func(db *gorm.DB) error) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	if b.exclusive != nil {
		select {
		case b.exclusive <- struct{}{}:
			defer func() { <-b.exclusive }()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fn(b.db.WithContext(ctx))
}
