// Package domain contains core types for the auth service.
package domain

import "time"

// Identity is the normalized, provider-independent view of an authenticated
// user. ExternalGUID is "<provider>/<provider user id>".
type Identity struct {
	UserID       int64  `json:"user_id"`
	ExternalGUID string `json:"guid"`
	DisplayName  string `json:"name"`
	Email        string `json:"email,omitempty"`
	AvatarURL    string `json:"picture,omitempty"`
}

// PendingAuth binds a CSRF token to the PKCE verifier generated for the same
// login attempt. It is redeemed at most once.
type PendingAuth struct {
	CSRFToken    string    `json:"csrf_token"`
	PKCEVerifier string    `json:"pkce_verifier"`
	CreatedAt    time.Time `json:"created_at"`
}

// Expired reports whether the row is older than ttl. A zero ttl never expires.
func (p PendingAuth) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return !now.Before(p.CreatedAt.Add(ttl))
}

// Session is a server-side login session addressed by an opaque token.
type Session struct {
	Token     string    `json:"-"`
	Identity  Identity  `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
