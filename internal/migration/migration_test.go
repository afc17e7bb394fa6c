package migration

import (
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/authr/internal/config"
	"github.com/smallbiznis/authr/internal/records"
	"github.com/smallbiznis/authr/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRunSQLiteCreatesTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authr.db")
	conn, err := gorm.Open(sqlite.Open(db.SQLiteDSN(path)), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	require.NoError(t, Run(conn, config.StorageSQLite))
	assert.True(t, conn.Migrator().HasTable(&records.User{}))
	assert.True(t, conn.Migrator().HasTable(&records.Note{}))

	// Optional columns fall back to their defaults.
	require.NoError(t, conn.Exec("INSERT INTO users (guid, name) VALUES (?, ?)", "google/1", "Ada").Error)
	var u records.User
	require.NoError(t, conn.Where("guid = ?", "google/1").First(&u).Error)
	assert.Equal(t, "", u.Email)

	// Running twice is a no-op.
	require.NoError(t, Run(conn, config.StorageSQLite))
}

func TestRunRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authr.db")
	conn, err := gorm.Open(sqlite.Open(db.SQLiteDSN(path)), &gorm.Config{})
	require.NoError(t, err)

	assert.Error(t, Run(conn, config.StorageMemory))
	assert.Error(t, Run(nil, config.StorageSQLite))
}

func TestRunMigrationsRequiresHandle(t *testing.T) {
	assert.Error(t, RunMigrations(nil, config.StoragePostgres))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	for _, dialect := range []string{config.StoragePostgres, config.StorageMySQL} {
		ups, err := fs.Glob(embeddedMigrations, "sql/"+dialect+"/*.up.sql")
		require.NoError(t, err)
		downs, err := fs.Glob(embeddedMigrations, "sql/"+dialect+"/*.down.sql")
		require.NoError(t, err)
		assert.NotEmpty(t, ups, dialect)
		assert.Len(t, downs, len(ups), dialect)
	}
}
