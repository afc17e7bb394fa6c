package domain

import "errors"

var (
	// ErrUnauthenticated covers every client-caused login or session failure:
	// missing parameters, unknown or replayed state, unknown or expired session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUpstreamAuth means the identity provider failed or answered with
	// something unusable.
	ErrUpstreamAuth = errors.New("upstream authentication failed")
	// ErrPendingUnavailable is returned when a login cannot be recorded.
	ErrPendingUnavailable = errors.New("pending auth store unavailable")
	ErrSessionUnavailable = errors.New("session store unavailable")
)
