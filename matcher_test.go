package jwtauth

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func newTestMatcher(t *testing.T, rules []DispatchRequest, revocationPath string) *Matcher {
	t.Helper()
	cfg := testConfig()
	cfg.DispatchRequests = rules
	cfg.RevocationPath = revocationPath
	m, err := NewMatcher(cfg)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	return m
}

func TestShouldIssueRequiresMappedScope(t *testing.T) {
	m := newTestMatcher(t, []DispatchRequest{{Method: "POST", Path: ".*", Body: ".*"}}, "")

	for _, method := range []string{"GET", "POST", "DELETE"} {
		for _, path := range []string{"/", "/login", "/anything"} {
			ok, err := m.ShouldIssue("admin", method, path, strings.NewReader("{}"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok {
				t.Fatalf("unmapped scope issued for %s %s", method, path)
			}
		}
	}
}

func TestShouldIssueRules(t *testing.T) {
	m := newTestMatcher(t, []DispatchRequest{
		{Method: "post", Path: "^/login$"},
		{Method: "GET", Path: "^/sso/callback"},
		{Method: "POST", Path: "^/session$", Body: `"remember":\s*true`},
	}, "")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   bool
	}{
		{"post login", "POST", "/login", "", true},
		{"lowercase method", "post", "/login", "", true},
		{"get login", "GET", "/login", "", false},
		{"path anchored", "POST", "/login/extra", "", false},
		{"callback prefix", "GET", "/sso/callback?x=1", "", true},
		{"body matches", "POST", "/session", `{"remember": true}`, true},
		{"body does not match", "POST", "/session", `{"remember": false}`, false},
		{"no rule", "PUT", "/session", `{"remember": true}`, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := m.ShouldIssue("user", tc.method, tc.path, strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, ok)
			}
		})
	}
}

func TestShouldIssueUnanchoredPatterns(t *testing.T) {
	m := newTestMatcher(t, []DispatchRequest{{Method: "POST", Path: "/login"}}, "")

	ok, err := m.ShouldIssue("user", "POST", "/api/login/form", nil)
	if err != nil || !ok {
		t.Fatalf("expected search semantics, got %v %v", ok, err)
	}
}

func TestShouldIssueRestoresBodyPosition(t *testing.T) {
	m := newTestMatcher(t, []DispatchRequest{{Method: "POST", Path: "^/login$", Body: "password"}}, "")

	body := bytes.NewReader([]byte(`{"user":"a","password":"b"}`))
	head := make([]byte, 5)
	if _, err := io.ReadFull(body, head); err != nil {
		t.Fatalf("read head: %v", err)
	}

	ok, err := m.ShouldIssue("user", "POST", "/login", body)
	if err != nil || !ok {
		t.Fatalf("expected match reading from the start, got %v %v", ok, err)
	}

	rest, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read rest: %v", err)
	}
	if string(head)+string(rest) != `{"user":"a","password":"b"}` {
		t.Fatalf("body position not restored: %q + %q", head, rest)
	}
}

type noSeekBody struct{ io.Reader }

func (noSeekBody) Seek(int64, int) (int64, error) { return 0, errors.New("not seekable") }

func TestShouldIssueUnseekableBody(t *testing.T) {
	m := newTestMatcher(t, []DispatchRequest{{Method: "POST", Path: "^/login$", Body: "x"}}, "")

	_, err := m.ShouldIssue("user", "POST", "/login", noSeekBody{strings.NewReader("x")})
	if !errors.Is(err, ErrBodyNotRewindable) {
		t.Fatalf("expected ErrBodyNotRewindable, got %v", err)
	}
}

func TestShouldIssueSkipsBodyWhenPathMisses(t *testing.T) {
	m := newTestMatcher(t, []DispatchRequest{{Method: "POST", Path: "^/login$", Body: "x"}}, "")

	ok, err := m.ShouldIssue("user", "POST", "/other", noSeekBody{strings.NewReader("x")})
	if err != nil || ok {
		t.Fatalf("expected no body read and no match, got %v %v", ok, err)
	}
}

func TestShouldRevoke(t *testing.T) {
	m := newTestMatcher(t, nil, "^/logout$")
	if !m.ShouldRevoke("/logout") {
		t.Fatal("expected /logout to revoke")
	}
	if m.ShouldRevoke("/logout/all") || m.ShouldRevoke("/login") {
		t.Fatal("unexpected revocation match")
	}

	disabled := newTestMatcher(t, nil, "")
	if disabled.ShouldRevoke("/logout") {
		t.Fatal("revocation should be disabled without a path")
	}
}

func TestNewMatcherRejectsBadPatterns(t *testing.T) {
	cfg := testConfig()
	cfg.DispatchRequests = []DispatchRequest{{Method: "POST", Path: "("}}
	if _, err := NewMatcher(cfg); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}

	cfg = testConfig()
	cfg.RevocationPath = "[a-"
	if _, err := NewMatcher(cfg); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestShouldIssueReadsBodyOnlyForMatchingBodyRule(t *testing.T) {
	m := newTestMatcher(t, []DispatchRequest{
		{Method: "POST", Path: "^/login$"},
		{Method: "POST", Path: "^/api/session$", Body: "remember"},
	}, "")

	fetches := 0
	unavailable := func() (io.ReadSeeker, error) {
		fetches++
		return nil, ErrBodyNotRewindable
	}

	ok, err := m.shouldIssue("user", "POST", "/login", unavailable)
	if err != nil || !ok {
		t.Fatalf("rule without body pattern must match, got %v %v", ok, err)
	}
	ok, err = m.shouldIssue("user", "GET", "/api/session", unavailable)
	if err != nil || ok {
		t.Fatalf("method miss must not read the body, got %v %v", ok, err)
	}
	if fetches != 0 {
		t.Fatalf("body fetched %d times before a body rule matched", fetches)
	}

	_, err = m.shouldIssue("user", "POST", "/api/session", unavailable)
	if !errors.Is(err, ErrBodyNotRewindable) {
		t.Fatalf("expected ErrBodyNotRewindable, got %v", err)
	}
	if fetches != 1 {
		t.Fatalf("expected one body fetch, got %d", fetches)
	}

	ok, err = m.ShouldIssue("user", "POST", "/login", noSeekBody{strings.NewReader("x")})
	if err != nil || !ok {
		t.Fatalf("unseekable body must not matter for /login, got %v %v", ok, err)
	}
}
