package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("SESSION_TTL", "")

	cfg := Load()

	assert.Equal(t, "authr", cfg.AppName)
	assert.Equal(t, StorageSQLite, cfg.StorageBackend)
	assert.Equal(t, SessionMemory, cfg.SessionBackend)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.PendingAuthTTL)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "Postgres")
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("ENVIRONMENT", "production")

	cfg := Load()

	assert.Equal(t, StoragePostgres, cfg.StorageBackend)
	assert.Equal(t, SessionRedis, cfg.SessionBackend)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.AuthCookieSecure)
	assert.True(t, cfg.UsesRedis())
	assert.True(t, cfg.UsesSQL())
}

func TestValidateRejectsUnknownBackends(t *testing.T) {
	cfg := Load()
	cfg.StorageBackend = "cassandra"
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.SessionBackend = "memcached"
	assert.Error(t, cfg.Validate())
}

func TestLoadValidatedFailsOnBadTTL(t *testing.T) {
	t.Setenv("PENDING_AUTH_TTL", "0s")

	_, err := LoadValidated()
	assert.Error(t, err)
}

func TestAccessConfigIsAdmin(t *testing.T) {
	access := AccessConfig{Admins: []string{" Ada@Example.com "}}

	assert.True(t, access.IsAdmin("ada@example.com"))
	assert.False(t, access.IsAdmin("bob@example.com"))
	assert.False(t, access.IsAdmin(""))
}

func TestAccessConfigFromEnv(t *testing.T) {
	t.Setenv(adminsEnv, "a@example.com, b@example.com")

	holder, err := NewAccessConfigHolder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, holder.Get().Admins)
}
