// Package service drives the OAuth authorization code flow: it issues the
// PKCE-bound redirect, redeems callbacks and manages the resulting sessions.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/authr/internal/auth/domain"
	"github.com/smallbiznis/authr/internal/auth/oauth"
	"github.com/smallbiznis/authr/internal/clock"
	"github.com/smallbiznis/authr/internal/config"
	"github.com/smallbiznis/authr/internal/observability/metrics"
	"github.com/smallbiznis/authr/internal/records"
	"github.com/smallbiznis/authr/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const tokenBytes = 32

const (
	stepLogin    = "login"
	stepCallback = "callback"
	stepLogout   = "logout"

	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeUpstream = "upstream_error"
	outcomeError    = "error"
)

type Service struct {
	log        *zap.Logger
	provider   oauth.Service
	pending    domain.PendingAuthStore
	sessions   domain.SessionStore
	users      storage.Store[records.User]
	clock      clock.Clock
	sessionTTL time.Duration
	metrics    *metrics.AuthMetrics
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Cfg      config.Config
	Provider oauth.Service
	Pending  domain.PendingAuthStore
	Sessions domain.SessionStore
	Users    storage.Store[records.User]
	Clock    clock.Clock
	Metrics  *metrics.AuthMetrics `optional:"true"`
}

func New(p Params) *Service {
	return &Service{
		log:        p.Log.Named("auth.service"),
		provider:   p.Provider,
		pending:    p.Pending,
		sessions:   p.Sessions,
		users:      p.Users,
		clock:      p.Clock,
		sessionTTL: p.Cfg.SessionTTL,
		metrics:    p.Metrics,
	}
}

// Login records a fresh CSRF token and PKCE verifier and returns the
// provider URL the user agent should be sent to.
func (s *Service) Login(ctx context.Context) (string, error) {
	state, err := randomToken()
	if err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()

	err = s.pending.Put(ctx, domain.PendingAuth{
		CSRFToken:    state,
		PKCEVerifier: verifier,
		CreatedAt:    s.clock.Now(),
	})
	if err != nil {
		s.log.Error("failed to record pending login", zap.Error(err))
		s.metrics.Record(stepLogin, outcomeError)
		return "", fmt.Errorf("%w: %v", domain.ErrPendingUnavailable, err)
	}

	s.metrics.Record(stepLogin, outcomeSuccess)
	return s.provider.AuthCodeURL(state, verifier), nil
}

// Callback redeems state, exchanges code and issues a session for the
// resolved local user. Any client-caused failure is ErrUnauthenticated.
func (s *Service) Callback(ctx context.Context, state, code string) (domain.Session, error) {
	sess, err := s.callback(ctx, state, code)
	switch {
	case err == nil:
		s.metrics.Record(stepCallback, outcomeSuccess)
	case errors.Is(err, domain.ErrUnauthenticated):
		s.metrics.Record(stepCallback, outcomeRejected)
	case errors.Is(err, domain.ErrUpstreamAuth):
		s.metrics.Record(stepCallback, outcomeUpstream)
	default:
		s.metrics.Record(stepCallback, outcomeError)
	}
	return sess, err
}

func (s *Service) callback(ctx context.Context, state, code string) (domain.Session, error) {
	state = strings.TrimSpace(state)
	code = strings.TrimSpace(code)
	if state == "" {
		return domain.Session{}, domain.ErrUnauthenticated
	}

	// The row is consumed before anything else is checked, so a rejected
	// callback can never be retried with the same state.
	pending, ok, err := s.pending.Take(ctx, state)
	if err != nil {
		s.log.Error("failed to redeem pending login", zap.Error(err))
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrPendingUnavailable, err)
	}
	if !ok || code == "" {
		return domain.Session{}, domain.ErrUnauthenticated
	}

	token, err := s.provider.Exchange(ctx, code, pending.PKCEVerifier)
	if err != nil {
		s.log.Warn("code exchange failed", zap.Error(err))
		return domain.Session{}, err
	}
	identity, err := s.provider.FetchIdentity(ctx, token)
	if err != nil {
		s.log.Warn("identity fetch failed", zap.Error(err))
		return domain.Session{}, err
	}

	user, err := s.resolveUser(ctx, identity)
	if err != nil {
		return domain.Session{}, err
	}
	identity.UserID = user.ID
	if identity.Email == "" {
		identity.Email = user.Email
	}

	return s.issueSession(ctx, identity)
}

// Abort discards the pending row of a login the provider refused.
func (s *Service) Abort(ctx context.Context, state string) {
	if strings.TrimSpace(state) == "" {
		return
	}
	if _, _, err := s.pending.Take(ctx, state); err != nil {
		s.log.Warn("failed to discard pending login", zap.Error(err))
	}
	s.metrics.Record(stepCallback, outcomeRejected)
}

// Authenticate resolves a session token to a live session.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	sess, ok, err := s.sessions.Get(ctx, token)
	if err != nil {
		s.log.Error("session lookup failed", zap.Error(err))
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrSessionUnavailable, err)
	}
	if !ok {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	return sess, nil
}

// Logout revokes token. Revoking an unknown token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	if _, err := s.sessions.Revoke(ctx, token); err != nil {
		s.log.Error("session revoke failed", zap.Error(err))
		s.metrics.Record(stepLogout, outcomeError)
		return fmt.Errorf("%w: %v", domain.ErrSessionUnavailable, err)
	}
	s.metrics.Record(stepLogout, outcomeSuccess)
	return nil
}

func (s *Service) issueSession(ctx context.Context, identity domain.Identity) (domain.Session, error) {
	token, err := randomToken()
	if err != nil {
		return domain.Session{}, err
	}
	sess := domain.Session{
		Token:     token,
		Identity:  identity,
		ExpiresAt: s.clock.Now().Add(s.sessionTTL),
	}
	if err := s.sessions.Issue(ctx, sess); err != nil {
		s.log.Error("failed to issue session", zap.Error(err))
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrSessionUnavailable, err)
	}
	return sess, nil
}

func randomToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
