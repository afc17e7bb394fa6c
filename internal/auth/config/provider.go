package config

import (
	"errors"
	"time"
)

var ErrMissingCredentials = errors.New("google oauth client id and secret are required")

// ProviderConfig is the resolved configuration of the Google identity provider.
type ProviderConfig struct {
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
	HTTPTimeout  time.Duration
}

func (c ProviderConfig) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return ErrMissingCredentials
	}
	if c.RedirectURL == "" || c.AuthURL == "" || c.TokenURL == "" || c.UserInfoURL == "" {
		return errors.New("google oauth endpoints must not be empty")
	}
	return nil
}
