package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/authr/internal/auth/domain"
)

const redisKeyPrefix = "authr:pending:"

var ErrDuplicateToken = errors.New("pending auth token already exists")

// RedisStore shares pending rows across replicas. Expiry is delegated to
// redis key TTLs and redemption uses GETDEL, which is atomic server side.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, p domain.PendingAuth) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+p.CSRFToken, payload, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("store pending auth: %w", err)
	}
	if !ok {
		return ErrDuplicateToken
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, csrfToken string) (domain.PendingAuth, bool, error) {
	payload, err := s.client.GetDel(ctx, redisKeyPrefix+csrfToken).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PendingAuth{}, false, nil
	}
	if err != nil {
		return domain.PendingAuth{}, false, fmt.Errorf("take pending auth: %w", err)
	}
	var p domain.PendingAuth
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.PendingAuth{}, false, fmt.Errorf("decode pending auth: %w", err)
	}
	return p, true, nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

// Sweep is a no-op; redis expires keys on its own.
func (s *RedisStore) Sweep(context.Context) (int, error) {
	return 0, nil
}

var _ domain.PendingAuthStore = (*RedisStore)(nil)
