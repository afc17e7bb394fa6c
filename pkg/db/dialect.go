package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/authr/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch cfg.StorageBackend {
	case config.StorageMySQL:
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		)), nil
	case config.StoragePostgres:
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		)), nil
	case config.StorageSQLite:
		return sqlite.Open(SQLiteDSN(cfg.DBPath)), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.StorageBackend)
	}
}

// SQLiteDSN appends the connection pragmas the embedded backend relies on:
// a busy timeout instead of immediate SQLITE_BUSY, and case-sensitive LIKE so
// substring predicates behave like the other backends.
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=case_sensitive_like(1)"
}
