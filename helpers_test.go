package jwtauth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/jwtauth/jwt"
	"github.com/MrEthical07/jwtauth/revocation"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testUser struct {
	id string

	mu       sync.Mutex
	notified []string
}

func (u *testUser) JWTSubject() string { return u.id }

func (u *testUser) OnTokenDispatched(token string, _ *jwt.Claims) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.notified = append(u.notified, token)
}

func (u *testUser) notifications() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.notified...)
}

// recordingStrategy wraps a strategy and counts Revoke calls.
type recordingStrategy struct {
	revocation.Strategy

	mu      sync.Mutex
	revoked []*jwt.Claims
}

func (s *recordingStrategy) Revoke(ctx context.Context, claims *jwt.Claims, user jwt.User) error {
	s.mu.Lock()
	s.revoked = append(s.revoked, claims)
	s.mu.Unlock()
	return s.Strategy.Revoke(ctx, claims, user)
}

func (s *recordingStrategy) calls() []*jwt.Claims {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*jwt.Claims(nil), s.revoked...)
}

func subjectResolver() UserResolver {
	return UserResolverFunc(func(_ context.Context, claims *jwt.Claims) (jwt.User, error) {
		return jwt.Subject(claims.Subject), nil
	})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = testSecret
	cfg.JWT.Issuer = "jwtauth-test"
	cfg.Mappings = map[string]UserResolver{"user": subjectResolver()}
	cfg.DispatchRequests = []DispatchRequest{{Method: "POST", Path: "^/login$"}}
	cfg.RevocationPath = "^/logout$"
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *recordingStrategy) {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	store := revocation.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	strategy := &recordingStrategy{Strategy: revocation.NewDenylist(store)}

	engine, err := New().WithConfig(cfg).WithStrategy(strategy).Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, strategy
}
