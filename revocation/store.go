package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable indicates the revocation backend is unreachable.
var ErrUnavailable = errors.New("revocation backend unavailable")

// Store is the revocation ledger consumed by the engine.
type Store interface {
	// Revoke marks jti revoked for ttl. A non-positive ttl is a no-op: the
	// token is already past expiry and fails verification on its own.
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	// IsRevoked reports whether jti is present in the ledger.
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisStore implements [Store] over an expiring key-value store with
// SET-with-expiry / EXISTS semantics.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a ledger using the given client. prefix defaults
// to "rvk".
func NewRedisStore(redisClient redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rvk"
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisStore) key(jti string) string {
	return s.prefix + ":" + jti
}

// Revoke writes the revocation marker with the given TTL.
func (s *RedisStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errors.New("empty jti")
	}
	if ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, s.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// IsRevoked checks the marker. Absence of the key is the only condition
// under which a token is considered live; backend errors propagate so the
// caller can fail closed.
func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, errors.New("empty jti")
	}

	n, err := s.redis.Exists(ctx, s.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return n > 0, nil
}
