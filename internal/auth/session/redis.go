package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/authr/internal/auth/domain"
	"github.com/smallbiznis/authr/internal/clock"
)

const redisKeyPrefix = "authr:session:"

// RedisStore keeps sessions in redis with a key TTL matching ExpiresAt.
type RedisStore struct {
	client *redis.Client
	clock  clock.Clock
}

func NewRedisStore(client *redis.Client, clk clock.Clock) *RedisStore {
	return &RedisStore{client: client, clock: clk}
}

func (s *RedisStore) Issue(ctx context.Context, sess domain.Session) error {
	ttl := sess.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return ErrAlreadyExpired
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+sess.Token, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("issue session: %w", err)
	}
	if !ok {
		return ErrDuplicateToken
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (domain.Session, bool, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("get session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return domain.Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	sess.Token = token
	if sess.Expired(s.clock.Now()) {
		return domain.Session{}, false, nil
	}
	return sess, true, nil
}

func (s *RedisStore) Revoke(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Del(ctx, redisKeyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	return n > 0, nil
}

// Sweep is a no-op; key TTLs expire sessions.
func (s *RedisStore) Sweep(context.Context) (int, error) {
	return 0, nil
}

var _ domain.SessionStore = (*RedisStore)(nil)
