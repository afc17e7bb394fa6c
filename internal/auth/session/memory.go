// Package session keeps server-side login sessions and the cookie plumbing
// that carries their tokens.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/smallbiznis/authr/internal/auth/domain"
	"github.com/smallbiznis/authr/internal/clock"
)

var (
	ErrDuplicateToken = errors.New("session token already issued")
	// ErrAlreadyExpired rejects sessions whose expiry is not in the future.
	ErrAlreadyExpired = errors.New("session already expired")
)

// MemoryStore keeps sessions in process memory. Expired sessions stay in the
// map until Sweep runs but are never returned.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	clock    clock.Clock
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]domain.Session),
		clock:    clk,
	}
}

func (s *MemoryStore) Issue(_ context.Context, sess domain.Session) error {
	if sess.Expired(s.clock.Now()) {
		return ErrAlreadyExpired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.Token]; exists {
		return ErrDuplicateToken
	}
	s.sessions[sess.Token] = sess
	return nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (domain.Session, bool, error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok || sess.Expired(s.clock.Now()) {
		return domain.Session{}, false, nil
	}
	return sess, true, nil
}

func (s *MemoryStore) Revoke(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return false, nil
	}
	delete(s.sessions, token)
	return true, nil
}

func (s *MemoryStore) Sweep(context.Context) (int, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed, nil
}

var _ domain.SessionStore = (*MemoryStore)(nil)
