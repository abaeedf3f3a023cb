// Package redisstore implements revocation.Store on Redis. Revoked identifiers are
// kept as keys that expire together with the token they revoke, so every process
// sharing the Redis deployment sees a revocation as soon as Revoke returns.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures from the Redis client.
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultPrefix namespaces denylist keys.
const DefaultPrefix = "jwtauth:revoked"

// Only ever extend an entry: a second revoke with an earlier expiry must not shorten it.
const revokeScript = `
local want = tonumber(ARGV[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < want then
  redis.call("SET", KEYS[1], "1", "PX", want)
  return 1
end
return 0
`

var revokeLua = redis.NewScript(revokeScript)

// Store is a Redis-backed denylist.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// New returns a Store. An empty prefix falls back to [DefaultPrefix].
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(jti string) string {
	return s.prefix + ":" + jti
}

// Revoke stores jti until expiresAt. Already expired tokens are not stored.
func (s *Store) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt).Milliseconds()
	if ttl <= 0 {
		return nil
	}

	if err := revokeLua.Run(ctx, s.redis, []string{s.key(jti)}, ttl).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether a key for jti exists.
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
