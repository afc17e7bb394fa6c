// Package config parses identity provider settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/fx"
	"golang.org/x/oauth2/google"
)

const (
	envPrefixGoogle = "GOOGLE_OAUTH_"

	DefaultRedirectURL = "http://localhost:8080/auth/google/callback"
	DefaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	defaultHTTPTimeout = 10 * time.Second
)

var defaultScopes = []string{"email", "profile"}

var Module = fx.Module("auth.config",
	fx.Provide(ParseGoogleFromEnv),
)

// ParseGoogleFromEnv reads the Google provider from GOOGLE_OAUTH_* variables.
// A missing client id or secret is a startup error.
func ParseGoogleFromEnv() (ProviderConfig, error) {
	cfg := ProviderConfig{
		Name:         "google",
		ClientID:     strings.TrimSpace(getenv(envPrefixGoogle + "CLIENT_ID")),
		ClientSecret: strings.TrimSpace(getenv(envPrefixGoogle + "CLIENT_SECRET")),
		RedirectURL:  getenvDefault(envPrefixGoogle+"REDIRECT_URL", DefaultRedirectURL),
		AuthURL:      getenvDefault(envPrefixGoogle+"AUTH_URL", DefaultAuthURL),
		TokenURL:     getenvDefault(envPrefixGoogle+"TOKEN_URL", google.Endpoint.TokenURL),
		UserInfoURL:  getenvDefault(envPrefixGoogle+"USERINFO_URL", DefaultUserInfoURL),
		Scopes:       parseScopes(getenv(envPrefixGoogle + "SCOPES")),
		HTTPTimeout:  defaultHTTPTimeout,
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = append([]string(nil), defaultScopes...)
	}

	if raw := strings.TrimSpace(getenv("AUTH_HTTP_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return ProviderConfig{}, fmt.Errorf("invalid AUTH_HTTP_TIMEOUT %q", raw)
		}
		cfg.HTTPTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return ProviderConfig{}, err
	}
	return cfg, nil
}

func getenv(key string) string {
	return os.Getenv(key)
}

func getenvDefault(key, def string) string {
	if value := strings.TrimSpace(getenv(key)); value != "" {
		return value
	}
	return def
}

func parseScopes(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(parts) == 0 {
		return nil
	}
	return parts
}
