// Package migration brings the record tables up to date on startup.
//
// Postgres and MySQL run the versioned SQL files embedded under sql/.
// SQLite has no versioned history and is synced from the record models.
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/smallbiznis/authr/internal/config"
	"github.com/smallbiznis/authr/internal/records"
	"gorm.io/gorm"
)

//go:embed sql/postgres/*.sql sql/mysql/*.sql
var embeddedMigrations embed.FS

// Run migrates conn for the given storage backend.
func Run(conn *gorm.DB, backend string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	switch backend {
	case config.StorageSQLite:
		return conn.AutoMigrate(&records.User{}, &records.Note{})
	case config.StoragePostgres, config.StorageMySQL:
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB, backend)
	default:
		return fmt.Errorf("no migrations for backend %q", backend)
	}
}

// RunMigrations applies the embedded SQL migrations for dialect.
func RunMigrations(db *sql.DB, dialect string) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, "sql/"+dialect)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := newDriver(db, dialect)
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, dialect, driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

func newDriver(db *sql.DB, dialect string) (database.Driver, error) {
	switch dialect {
	case config.StoragePostgres:
		return migratepg.WithInstance(db, &migratepg.Config{})
	case config.StorageMySQL:
		return migratemysql.WithInstance(db, &migratemysql.Config{})
	default:
		return nil, fmt.Errorf("unsupported migration dialect %q", dialect)
	}
}
