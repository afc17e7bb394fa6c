package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(LoadValidated),
	fx.Provide(NewAccessConfigHolder),
)

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMySQL    = "mysql"

	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	HTTPAddr         string
	AuthCookieSecure bool

	OTLPEndpoint string

	StorageBackend    string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	DBOpTimeout       time.Duration
	DBAutoMigrate     bool

	SessionBackend       string
	SessionTTL           time.Duration
	PendingAuthTTL       time.Duration
	SessionSweepInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LoginRateLimitEnabled bool
	LoginRatePerSecond    float64
	LoginRateBurst        int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	environment := v.GetString("ENVIRONMENT")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = v.GetBool("AUTH_COOKIE_SECURE")
	}

	return Config{
		AppName:          v.GetString("APP_SERVICE"),
		AppVersion:       v.GetString("APP_VERSION"),
		Environment:      environment,
		HTTPAddr:         v.GetString("HTTP_ADDR"),
		AuthCookieSecure: authCookieSecure,
		OTLPEndpoint:     v.GetString("OTLP_ENDPOINT"),

		StorageBackend:    strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_BACKEND"))),
		DBHost:            v.GetString("DATABASE_HOST"),
		DBPort:            v.GetString("DATABASE_PORT"),
		DBName:            v.GetString("DATABASE_NAME"),
		DBUser:            v.GetString("DATABASE_USER"),
		DBPassword:        v.GetString("DATABASE_PASSWORD"),
		DBSSLMode:         v.GetString("DATABASE_SSLMODE"),
		DBPath:            v.GetString("DATABASE_PATH"),
		DBMaxIdleConn:     v.GetInt("DATABASE_MAX_IDLE_CONN"),
		DBMaxOpenConn:     v.GetInt("DATABASE_MAX_OPEN_CONN"),
		DBConnMaxLifetime: v.GetDuration("DATABASE_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTime: v.GetDuration("DATABASE_CONN_MAX_IDLE_TIME"),
		DBOpTimeout:       v.GetDuration("DB_OP_TIMEOUT"),
		DBAutoMigrate:     v.GetBool("DATABASE_AUTO_MIGRATE"),

		SessionBackend:       strings.ToLower(strings.TrimSpace(v.GetString("SESSION_BACKEND"))),
		SessionTTL:           v.GetDuration("SESSION_TTL"),
		PendingAuthTTL:       v.GetDuration("PENDING_AUTH_TTL"),
		SessionSweepInterval: v.GetDuration("SESSION_SWEEP_INTERVAL"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		LoginRateLimitEnabled: v.GetBool("LOGIN_RATE_LIMIT_ENABLED"),
		LoginRatePerSecond:    v.GetFloat64("LOGIN_RATE_PER_SECOND"),
		LoginRateBurst:        v.GetInt("LOGIN_RATE_BURST"),
	}
}

// LoadValidated loads the configuration and fails startup when it cannot be
// run with.
func LoadValidated() (Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_SERVICE", "authr")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("AUTH_COOKIE_SECURE", false)
	v.SetDefault("OTLP_ENDPOINT", "localhost:4318")

	v.SetDefault("STORAGE_BACKEND", StorageSQLite)
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_NAME", "authr")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_PATH", "authr.db")
	v.SetDefault("DATABASE_MAX_IDLE_CONN", 5)
	v.SetDefault("DATABASE_MAX_OPEN_CONN", 20)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DATABASE_CONN_MAX_IDLE_TIME", "5m")
	v.SetDefault("DB_OP_TIMEOUT", "5s")
	v.SetDefault("DATABASE_AUTO_MIGRATE", true)

	v.SetDefault("SESSION_BACKEND", SessionMemory)
	v.SetDefault("SESSION_TTL", "168h")
	v.SetDefault("PENDING_AUTH_TTL", "10m")
	v.SetDefault("SESSION_SWEEP_INTERVAL", "10m")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOGIN_RATE_LIMIT_ENABLED", false)
	v.SetDefault("LOGIN_RATE_PER_SECOND", 0.5)
	v.SetDefault("LOGIN_RATE_BURST", 10)
}

// Validate rejects configurations the process cannot run with.
func (c Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory, StorageSQLite, StoragePostgres, StorageMySQL:
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.SessionBackend {
	case SessionMemory, SessionRedis:
	default:
		return fmt.Errorf("unsupported SESSION_BACKEND %q", c.SessionBackend)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.PendingAuthTTL <= 0 {
		return fmt.Errorf("PENDING_AUTH_TTL must be positive")
	}
	if c.LoginRateLimitEnabled && (c.LoginRatePerSecond <= 0 || c.LoginRateBurst <= 0) {
		return fmt.Errorf("login rate limit requires positive LOGIN_RATE_PER_SECOND and LOGIN_RATE_BURST")
	}
	return nil
}

// UsesRedis reports whether any enabled component needs a redis client.
func (c Config) UsesRedis() bool {
	return c.SessionBackend == SessionRedis || c.LoginRateLimitEnabled
}

// UsesSQL reports whether the storage backend is a SQL database.
func (c Config) UsesSQL() bool {
	return c.StorageBackend != StorageMemory
}
