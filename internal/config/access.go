package config

import (
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AccessConfig lists the accounts granted the admin role on /data routes.
// Admins are matched by verified email.
type AccessConfig struct {
	Admins []string `mapstructure:"admins"`
}

func (a AccessConfig) IsAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, admin := range a.Admins {
		if strings.ToLower(strings.TrimSpace(admin)) == email {
			return true
		}
	}
	return false
}

const adminsEnv = "AUTHR_ACCESS_ADMINS"

type AccessConfigHolder struct {
	current atomic.Value // holds AccessConfig
}

// NewAccessConfigHolder reads access.yml when present and watches it for
// changes. AUTHR_ACCESS_ADMINS (comma separated) overrides the file.
func NewAccessConfigHolder() (*AccessConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("access")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/authr")
	v.AddConfigPath(".")

	holder := &AccessConfigHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(readAccess(v))
		return holder, nil
	}

	holder.current.Store(readAccess(v))

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		holder.current.Store(readAccess(v))
		log.Printf("[access-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticAccessConfigHolder is used by tests and by callers without a file.
func NewStaticAccessConfigHolder(cfg AccessConfig) *AccessConfigHolder {
	holder := &AccessConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *AccessConfigHolder) Get() AccessConfig {
	if h == nil {
		return AccessConfig{}
	}
	return h.current.Load().(AccessConfig)
}

func readAccess(v *viper.Viper) AccessConfig {
	if raw, ok := os.LookupEnv(adminsEnv); ok {
		return AccessConfig{Admins: splitList(raw)}
	}
	return AccessConfig{Admins: v.GetStringSlice("access.admins")}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
