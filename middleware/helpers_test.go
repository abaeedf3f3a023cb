package middleware_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/jwt"
	"github.com/MrEthical07/jwtauth/revocation"
)

type countingStrategy struct {
	revocation.Strategy

	mu      sync.Mutex
	revokes int
}

func (s *countingStrategy) Revoke(ctx context.Context, claims *jwt.Claims, user jwt.User) error {
	s.mu.Lock()
	s.revokes++
	s.mu.Unlock()
	return s.Strategy.Revoke(ctx, claims, user)
}

func (s *countingStrategy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revokes
}

func newEngine(t *testing.T, mutate func(*jwtauth.Config)) (*jwtauth.Engine, *countingStrategy) {
	t.Helper()

	cfg := jwtauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Mappings = map[string]jwtauth.UserResolver{
		"user": jwtauth.UserResolverFunc(func(_ context.Context, c *jwt.Claims) (jwt.User, error) {
			return jwt.Subject(c.Subject), nil
		}),
		"admin": jwtauth.UserResolverFunc(func(_ context.Context, c *jwt.Claims) (jwt.User, error) {
			return jwt.Subject(c.Subject), nil
		}),
	}
	cfg.DispatchRequests = []jwtauth.DispatchRequest{{Method: "POST", Path: "^/login$"}}
	cfg.RevocationPath = "^/logout$"
	if mutate != nil {
		mutate(&cfg)
	}

	store := revocation.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	strategy := &countingStrategy{Strategy: revocation.NewDenylist(store)}

	engine, err := jwtauth.New().WithConfig(cfg).WithStrategy(strategy).Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, strategy
}

// loginHandler signs in "alice" in scope on every request it serves.
func loginHandler(t *testing.T, engine *jwtauth.Engine, scope string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := engine.PrepareToken(r, jwt.Subject("alice"), scope); err != nil {
			t.Errorf("prepare token: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}
