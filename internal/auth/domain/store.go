package domain

import "context"

// PendingAuthStore holds in-flight logins keyed by CSRF token.
type PendingAuthStore interface {
	Put(ctx context.Context, p PendingAuth) error
	// Take returns and removes the row in one atomic step. Two concurrent
	// callers with the same token never both observe it.
	Take(ctx context.Context, csrfToken string) (PendingAuth, bool, error)
	Len(ctx context.Context) (int, error)
	// Sweep purges expired rows and reports how many were removed.
	Sweep(ctx context.Context) (int, error)
}

// SessionStore maps session tokens to sessions. Expired sessions are never
// returned by Get, whether or not Sweep has run.
type SessionStore interface {
	Issue(ctx context.Context, s Session) error
	Get(ctx context.Context, token string) (Session, bool, error)
	Revoke(ctx context.Context, token string) (bool, error)
	Sweep(ctx context.Context) (int, error)
}
