package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces login counters.
const DefaultPrefix = "jwtauth:login"

// Config holds the failed-login budget.
type Config struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Window      time.Duration `mapstructure:"window" yaml:"window"`
	PerIP       bool          `mapstructure:"per_ip" yaml:"per_ip"`
	Prefix      string        `mapstructure:"prefix" yaml:"prefix"`
}

// Limiter counts failed logins per username, and optionally per client IP, in
// Redis fixed windows.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New returns a Limiter. An empty prefix falls back to DefaultPrefix.
func New(client redis.UniversalClient, cfg Config) (*Limiter, error) {
	if client == nil {
		return nil, errors.New("rate: nil redis client")
	}
	if cfg.MaxAttempts <= 0 || cfg.Window <= 0 {
		return nil, errors.New("rate: max attempts and window must be > 0")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Limiter{redis: client, config: cfg}, nil
}

// Allow returns ErrRateLimited once the budget of the username or IP is spent.
func (l *Limiter) Allow(ctx context.Context, username, ip string) error {
	for _, key := range l.keys(username, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if count >= int64(l.config.MaxAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// Fail records a failed login.
func (l *Limiter) Fail(ctx context.Context, username, ip string) error {
	for _, key := range l.keys(username, ip) {
		count, err := l.redis.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		// fixed window: the first hit starts it
		if count == 1 {
			if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}
	}
	return nil
}

// Reset clears the counters after a successful login.
func (l *Limiter) Reset(ctx context.Context, username, ip string) error {
	if err := l.redis.Del(ctx, l.keys(username, ip)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failed-login count of username in the current window.
func (l *Limiter) Attempts(ctx context.Context, username string) (int, error) {
	count, err := l.redis.Get(ctx, l.userKey(username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(max(count, 0)), nil
}

func (l *Limiter) userKey(username string) string {
	return l.config.Prefix + ":u:" + username
}

func (l *Limiter) keys(username, ip string) []string {
	keys := []string{l.userKey(username)}
	if l.config.PerIP && ip != "" {
		keys = append(keys, l.config.Prefix+":ip:"+ip)
	}
	return keys
}
