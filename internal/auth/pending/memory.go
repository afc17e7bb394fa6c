// Package pending stores in-flight OAuth logins between the redirect to the
// identity provider and the callback.
package pending

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/authr/internal/auth/domain"
	"github.com/smallbiznis/authr/internal/clock"
)

// MemoryStore keeps pending rows in process memory. Take runs as a single
// critical section so a CSRF token is redeemed at most once.
type MemoryStore struct {
	mu    sync.Mutex
	rows  map[string]domain.PendingAuth
	ttl   time.Duration
	clock clock.Clock
}

func NewMemoryStore(ttl time.Duration, clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		rows:  make(map[string]domain.PendingAuth),
		ttl:   ttl,
		clock: clk,
	}
}

func (s *MemoryStore) Put(_ context.Context, p domain.PendingAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[p.CSRFToken]; exists {
		return ErrDuplicateToken
	}
	s.rows[p.CSRFToken] = p
	return nil
}

func (s *MemoryStore) Take(_ context.Context, csrfToken string) (domain.PendingAuth, bool, error) {
	s.mu.Lock()
	p, ok := s.rows[csrfToken]
	if ok {
		delete(s.rows, csrfToken)
	}
	s.mu.Unlock()

	if !ok || p.Expired(s.clock.Now(), s.ttl) {
		return domain.PendingAuth{}, false, nil
	}
	return p, true, nil
}

func (s *MemoryStore) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows), nil
}

func (s *MemoryStore) Sweep(context.Context) (int, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, p := range s.rows {
		if p.Expired(now, s.ttl) {
			delete(s.rows, token)
			removed++
		}
	}
	return removed, nil
}

var _ domain.PendingAuthStore = (*MemoryStore)(nil)
