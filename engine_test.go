package jwtauth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/jwtauth/jwt"
	"github.com/MrEthical07/jwtauth/revocation"
)

func requestWithSlot(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return r.WithContext(WithTokenSlot(r.Context()))
}

func TestPrepareTokenIssuesForMatchingRequest(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	user := &testUser{id: "u-1"}
	r := requestWithSlot("POST", "/login", "")

	token, err := engine.PrepareToken(r, user, "user")
	if err != nil {
		t.Fatalf("prepare token: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	prepared, ok := PreparedToken(r.Context())
	if !ok || prepared != token {
		t.Fatalf("expected token in slot, got %q %v", prepared, ok)
	}

	if got := user.notifications(); len(got) != 1 || got[0] != token {
		t.Fatalf("expected one dispatch notification, got %v", got)
	}

	claims, err := engine.Codec().Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.Subject != "u-1" || claims.Scope != "user" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if got := engine.MetricsSnapshot().Counters[MetricTokenIssued]; got != 1 {
		t.Fatalf("expected issued metric 1, got %d", got)
	}
}

func TestPrepareTokenSkipsNonMatching(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	cases := []struct {
		name   string
		method string
		path   string
		scope  string
	}{
		{"wrong method", "GET", "/login", "user"},
		{"wrong path", "POST", "/signin", "user"},
		{"unmapped scope", "POST", "/login", "admin"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			user := &testUser{id: "u-1"}
			r := requestWithSlot(tc.method, tc.path, "")
			token, err := engine.PrepareToken(r, user, tc.scope)
			if err != nil || token != "" {
				t.Fatalf("expected silent skip, got %q %v", token, err)
			}
			if _, ok := PreparedToken(r.Context()); ok {
				t.Fatal("no token may be prepared")
			}
			if len(user.notifications()) != 0 {
				t.Fatal("notifier must not run when nothing is issued")
			}
		})
	}
}

func TestPrepareTokenAtMostOncePerRequest(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	r := requestWithSlot("POST", "/login", "")

	if _, err := engine.PrepareToken(r, &testUser{id: "u-1"}, "user"); err != nil {
		t.Fatalf("first prepare: %v", err)
	}
	if _, err := engine.PrepareToken(r, &testUser{id: "u-1"}, "user"); !errors.Is(err, ErrTokenAlreadyPrepared) {
		t.Fatalf("expected ErrTokenAlreadyPrepared, got %v", err)
	}

	token, ok := engine.TakePreparedToken(r.Context())
	if !ok || token == "" {
		t.Fatal("expected to take the prepared token")
	}
	if _, ok := engine.TakePreparedToken(r.Context()); ok {
		t.Fatal("token must be handed out once")
	}
	if _, err := engine.PrepareToken(r, &testUser{id: "u-1"}, "user"); !errors.Is(err, ErrTokenAlreadyPrepared) {
		t.Fatalf("expected ErrTokenAlreadyPrepared after dispatch, got %v", err)
	}
}

func TestPrepareTokenWithoutSlotReturnsToken(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	r := httptest.NewRequest("POST", "/login", nil)

	token, err := engine.PrepareToken(r, jwt.Subject("u-1"), "user")
	if err != nil || token == "" {
		t.Fatalf("expected token without slot, got %q %v", token, err)
	}
	if _, ok := engine.TakePreparedToken(r.Context()); ok {
		t.Fatal("nothing to take without a slot")
	}
}

func TestPrepareTokenEncodingFailureIsReported(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	r := requestWithSlot("POST", "/login", "")

	token, err := engine.PrepareToken(r, jwt.Subject(""), "user")
	if !errors.Is(err, ErrEncoding) || token != "" {
		t.Fatalf("expected ErrEncoding, got %q %v", token, err)
	}
	if _, ok := PreparedToken(r.Context()); ok {
		t.Fatal("failed issuance must not fill the slot")
	}
	if got := engine.MetricsSnapshot().Counters[MetricTokenEncodeFailure]; got != 1 {
		t.Fatalf("expected encode failure metric, got %d", got)
	}
}

func TestPrepareTokenAudienceFromHeader(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	r := requestWithSlot("POST", "/login", "")
	r.Header.Set(DefaultAudienceHeader, "mobile")

	token, err := engine.PrepareToken(r, jwt.Subject("u-1"), "user")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	claims, err := engine.Codec().Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !claims.HasAudience("mobile") {
		t.Fatalf("expected mobile audience, got %v", claims.Audience)
	}

	if _, err := engine.Authenticate(context.Background(), token, "web"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected audience mismatch, got %v", err)
	}
	if _, err := engine.Authenticate(context.Background(), token, "mobile"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
}

func TestPrepareTokenCustomAudienceResolver(t *testing.T) {
	engine, _ := newTestEngine(t, func(c *Config) {
		c.AudienceResolver = func(r *http.Request) string { return r.URL.Query().Get("aud") }
	})
	r := requestWithSlot("POST", "/login?aud=cli", "")

	token, err := engine.PrepareToken(r, jwt.Subject("u-1"), "user")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	claims, _ := engine.Codec().Decode(token)
	if !claims.HasAudience("cli") {
		t.Fatalf("expected cli audience, got %v", claims.Audience)
	}
}

func TestPrepareTokenBodyRules(t *testing.T) {
	engine, _ := newTestEngine(t, func(c *Config) {
		c.DispatchRequests = []DispatchRequest{{Method: "POST", Path: "^/login$", Body: `"remember":true`}}
	})

	t.Run("rewindable body", func(t *testing.T) {
		r := requestWithSlot("POST", "/login", `{"remember":true}`)
		if err := MakeBodyRewindable(r, engine.MaxBodyBytes()); err != nil {
			t.Fatalf("rewind: %v", err)
		}
		buf := make([]byte, 4)
		_, _ = r.Body.Read(buf)

		token, err := engine.PrepareToken(r, jwt.Subject("u-1"), "user")
		if err != nil || token == "" {
			t.Fatalf("expected token, got %q %v", token, err)
		}

		rest := make([]byte, 64)
		n, _ := r.Body.Read(rest)
		if string(buf)+string(rest[:n]) != `{"remember":true}` {
			t.Fatal("body position changed")
		}
	})

	t.Run("non matching body", func(t *testing.T) {
		r := requestWithSlot("POST", "/login", `{"remember":false}`)
		_ = MakeBodyRewindable(r, engine.MaxBodyBytes())
		token, err := engine.PrepareToken(r, jwt.Subject("u-1"), "user")
		if err != nil || token != "" {
			t.Fatalf("expected skip, got %q %v", token, err)
		}
	})

	t.Run("plain body is not rewindable", func(t *testing.T) {
		r := requestWithSlot("POST", "/login", `{"remember":true}`)
		r.Body = http.MaxBytesReader(nil, r.Body, 1024)
		_, err := engine.PrepareToken(r, jwt.Subject("u-1"), "user")
		if !errors.Is(err, ErrBodyNotRewindable) {
			t.Fatalf("expected ErrBodyNotRewindable, got %v", err)
		}
	})

	t.Run("oversized body", func(t *testing.T) {
		r := requestWithSlot("POST", "/login", strings.Repeat("a", 32))
		r.Body = http.MaxBytesReader(nil, r.Body, 1024)
		if err := MakeBodyRewindable(r, 8); !errors.Is(err, ErrBodyNotRewindable) {
			t.Fatalf("expected ErrBodyNotRewindable, got %v", err)
		}
		buf := make([]byte, 64)
		total := 0
		for {
			n, err := r.Body.Read(buf[total:])
			total += n
			if err != nil {
				break
			}
		}
		if total != 32 {
			t.Fatalf("oversized body must stay fully readable, read %d bytes", total)
		}
	})
}

func TestPrepareTokenIgnoresBodyForPlainRule(t *testing.T) {
	engine, _ := newTestEngine(t, func(c *Config) {
		c.DispatchRequests = []DispatchRequest{
			{Method: "POST", Path: "^/login$"},
			{Method: "POST", Path: "^/api/session$", Body: "remember"},
		}
	})

	r := requestWithSlot("POST", "/login", `{"user":"u-1"}`)
	r.Body = io.NopCloser(r.Body)
	token, err := engine.PrepareToken(r, jwt.Subject("u-1"), "user")
	if err != nil || token == "" {
		t.Fatalf("expected token for /login, got %q %v", token, err)
	}

	r = requestWithSlot("POST", "/api/session", `{"remember":true}`)
	r.Body = io.NopCloser(r.Body)
	if _, err := engine.PrepareToken(r, jwt.Subject("u-1"), "user"); !errors.Is(err, ErrBodyNotRewindable) {
		t.Fatalf("expected ErrBodyNotRewindable for the body rule, got %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricTokenEncodeFailure]; got != 1 {
		t.Fatalf("expected one issue failure, got %d", got)
	}
}

func TestAuthenticateAndRevoke(t *testing.T) {
	engine, strategy := newTestEngine(t, nil)
	ctx := context.Background()

	token, err := engine.PrepareToken(requestWithSlot("POST", "/login", ""), jwt.Subject("u-1"), "user")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	res, err := engine.Authenticate(ctx, token, "")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if res.Subject != "u-1" || res.Scope != "user" || res.User.JWTSubject() != "u-1" {
		t.Fatalf("unexpected result: %+v", res)
	}

	if err := engine.RevokeToken(ctx, token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := engine.RevokeToken(ctx, token); err != nil {
		t.Fatalf("second revoke must be a no-op: %v", err)
	}
	if len(strategy.calls()) != 2 {
		t.Fatalf("expected two strategy calls, got %d", len(strategy.calls()))
	}

	if _, err := engine.Authenticate(ctx, token, ""); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}

	other, _ := engine.PrepareToken(requestWithSlot("POST", "/login", ""), jwt.Subject("u-1"), "user")
	if _, err := engine.Authenticate(ctx, other, ""); err != nil {
		t.Fatalf("other tokens must stay valid: %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricAuthenticateRevoked] != 1 || snap.Counters[MetricRevocationSuccess] != 2 {
		t.Fatalf("unexpected metrics: %v", snap.Counters)
	}
}

func TestRevokeRequestIsLenient(t *testing.T) {
	engine, strategy := newTestEngine(t, nil)

	engine.RevokeRequest(httptest.NewRequest("POST", "/logout", nil), "not-a-token")
	engine.RevokeRequest(httptest.NewRequest("POST", "/logout", nil), "")
	if len(strategy.calls()) != 0 {
		t.Fatal("undecodable tokens must never reach the strategy")
	}
	if got := engine.MetricsSnapshot().Counters[MetricRevocationSkipped]; got != 1 {
		t.Fatalf("expected one skipped revocation, got %d", got)
	}

	if err := engine.RevokeToken(context.Background(), "not-a-token"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("strict revoke must report the decode error, got %v", err)
	}
}

func TestRevokeRequestHonoursPath(t *testing.T) {
	engine, strategy := newTestEngine(t, nil)
	token, _ := engine.PrepareToken(requestWithSlot("POST", "/login", ""), jwt.Subject("u-1"), "user")

	engine.RevokeRequest(httptest.NewRequest("POST", "/profile", nil), token)
	if len(strategy.calls()) != 0 {
		t.Fatal("non revocation path must not revoke")
	}

	engine.RevokeRequest(httptest.NewRequest("POST", "/logout", nil), token)
	calls := strategy.calls()
	if len(calls) != 1 || calls[0].Subject != "u-1" {
		t.Fatalf("expected one revoke for u-1, got %v", calls)
	}
}

func TestRevocationUserResolution(t *testing.T) {
	missing := errors.New("no such user")
	engine, strategy := newTestEngine(t, func(c *Config) {
		c.Mappings["gone"] = UserResolverFunc(func(context.Context, *jwt.Claims) (jwt.User, error) {
			return nil, missing
		})
		c.DispatchRequests = []DispatchRequest{{Method: "POST", Path: "^/login$"}}
	})

	token, err := engine.PrepareToken(requestWithSlot("POST", "/login", ""), jwt.Subject("u-9"), "gone")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	err = engine.RevokeToken(context.Background(), token)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if len(strategy.calls()) != 0 {
		t.Fatal("strategy must not run without a user")
	}
	if got := engine.MetricsSnapshot().Counters[MetricRevocationFailure]; got != 1 {
		t.Fatalf("expected revocation failure metric, got %d", got)
	}

	if _, err := engine.Authenticate(context.Background(), token, ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthenticateRejectsUnmappedScope(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	codec, err := jwt.NewCodec(testConfig().JWT.codecConfig())
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	token, _, err := codec.Encode(jwt.Subject("u-1"), "admin", "")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := engine.Authenticate(context.Background(), token, ""); !errors.Is(err, ErrScopeNotMapped) {
		t.Fatalf("expected ErrScopeNotMapped, got %v", err)
	}
}

func TestScopeStrategyOverride(t *testing.T) {
	store := revocation.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	cfg := testConfig()
	cfg.Mappings["admin"] = subjectResolver()
	engine, err := New().WithConfig(cfg).
		WithStrategy(revocation.NewDenylist(store)).
		WithScopeStrategy("admin", revocation.Null{}).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)
	ctx := context.Background()

	user, err := engine.PrepareToken(requestWithSlot("POST", "/login", ""), jwt.Subject("u-1"), "user")
	if err != nil {
		t.Fatalf("prepare user: %v", err)
	}
	admin, err := engine.PrepareToken(requestWithSlot("POST", "/login", ""), jwt.Subject("root"), "admin")
	if err != nil {
		t.Fatalf("prepare admin: %v", err)
	}

	for _, token := range []string{user, admin} {
		if err := engine.RevokeToken(ctx, token); err != nil {
			t.Fatalf("revoke: %v", err)
		}
	}

	if _, err := engine.Authenticate(ctx, user, ""); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("user scope uses the denylist, got %v", err)
	}
	if _, err := engine.Authenticate(ctx, admin, ""); err != nil {
		t.Fatalf("admin scope uses the null strategy, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one denylist entry, got %d", store.Len())
	}
}
