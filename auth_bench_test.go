package jwtauth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/jwtauth/jwt"
	"github.com/MrEthical07/jwtauth/revocation"
	"github.com/MrEthical07/jwtauth/revocation/redisstore"
)

func BenchmarkAuthenticateNull(b *testing.B) {
	benchmarkAuthenticate(b, revocation.Null{})
}

func BenchmarkAuthenticateMemoryDenylist(b *testing.B) {
	store := revocation.NewMemoryStore(time.Minute)
	b.Cleanup(func() { _ = store.Close() })
	benchmarkAuthenticate(b, revocation.NewDenylist(store))
}

func BenchmarkAuthenticateRedisDenylist(b *testing.B) {
	mr := miniredis.RunT(b)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { _ = rdb.Close() })
	benchmarkAuthenticate(b, revocation.NewDenylist(redisstore.New(rdb, "")))
}

func BenchmarkAuthenticateCutoff(b *testing.B) {
	benchmarkAuthenticate(b, revocation.NewCutoff())
}

func BenchmarkPrepareToken(b *testing.B) {
	engine := newBenchmarkEngine(b, revocation.Null{})
	user := jwt.Subject("alice")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest("POST", "/login", nil)
		req = req.WithContext(WithTokenSlot(req.Context()))
		if _, err := engine.PrepareToken(req, user, "user"); err != nil {
			b.Fatalf("prepare failed: %v", err)
		}
	}
}

func benchmarkAuthenticate(b *testing.B, strategy revocation.Strategy) {
	b.Helper()

	engine := newBenchmarkEngine(b, strategy)
	token, _, err := engine.Codec().Encode(jwt.Subject("alice"), "user", "")
	if err != nil {
		b.Fatalf("encode failed: %v", err)
	}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Authenticate(ctx, token, ""); err != nil {
			b.Fatalf("authenticate failed: %v", err)
		}
	}
}

func newBenchmarkEngine(b *testing.B, strategy revocation.Strategy) *Engine {
	b.Helper()

	engine, err := New().WithConfig(testConfig()).WithStrategy(strategy).Build()
	if err != nil {
		b.Fatalf("build engine: %v", err)
	}
	b.Cleanup(engine.Close)
	return engine
}
