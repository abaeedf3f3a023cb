package jwtauth

import (
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/jwtauth/revocation"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "baseline",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "jwt leeway invalid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "jwt signing invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "jwt signing case insensitive",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "HS512"
			},
			wantValid: true,
		},
		{
			name: "short secret",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "zero ttl",
			mutate: func(c *Config) {
				c.JWT.TTL = 0
			},
			wantValid: false,
		},
		{
			name: "nil resolver",
			mutate: func(c *Config) {
				c.Mappings["admin"] = nil
			},
			wantValid: false,
		},
		{
			name: "blank scope",
			mutate: func(c *Config) {
				c.Mappings[" "] = subjectResolver()
			},
			wantValid: false,
		},
		{
			name: "rule without method",
			mutate: func(c *Config) {
				c.DispatchRequests = append(c.DispatchRequests, DispatchRequest{Path: "/x"})
			},
			wantValid: false,
		},
		{
			name: "rule without path",
			mutate: func(c *Config) {
				c.DispatchRequests = append(c.DispatchRequests, DispatchRequest{Method: "GET"})
			},
			wantValid: false,
		},
		{
			name: "bad body pattern",
			mutate: func(c *Config) {
				c.DispatchRequests = append(c.DispatchRequests, DispatchRequest{Method: "GET", Path: "/x", Body: "(?P<"})
			},
			wantValid: false,
		},
		{
			name: "bad revocation pattern",
			mutate: func(c *Config) {
				c.RevocationPath = "("
			},
			wantValid: false,
		},
		{
			name: "revocation disabled",
			mutate: func(c *Config) {
				c.RevocationPath = ""
			},
			wantValid: true,
		},
		{
			name: "no audience source",
			mutate: func(c *Config) {
				c.AudienceHeader = ""
			},
			wantValid: false,
		},
		{
			name: "zero body limit",
			mutate: func(c *Config) {
				c.MaxBodyBytes = 0
			},
			wantValid: false,
		},
		{
			name: "audit without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrConfiguration) {
					t.Fatalf("expected ErrConfiguration, got %v", err)
				}
			}
		})
	}
}

func TestDefaultConfigNeedsKey(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected default config without key to be rejected, got %v", err)
	}
}

func TestBuilderClonesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.PrivateKey = append([]byte(nil), testSecret...)
	b := New().WithConfig(cfg).WithStrategy(revocation.Null{})

	cfg.JWT.PrivateKey[0] = 'X'
	cfg.DispatchRequests[0].Path = "("
	cfg.Mappings["admin"] = nil

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build should use the cloned config: %v", err)
	}
	defer engine.Close()
}

func TestBuilderRejections(t *testing.T) {
	t.Run("revocation path without strategy", func(t *testing.T) {
		_, err := New().WithConfig(testConfig()).Build()
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("no revocation path needs no strategy", func(t *testing.T) {
		cfg := testConfig()
		cfg.RevocationPath = ""
		engine, err := New().WithConfig(cfg).Build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		engine.Close()
	})

	t.Run("strategy for unmapped scope", func(t *testing.T) {
		_, err := New().WithConfig(testConfig()).
			WithStrategy(revocation.Null{}).
			WithScopeStrategy("admin", revocation.Null{}).
			Build()
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("per-scope strategies cover every scope", func(t *testing.T) {
		engine, err := New().WithConfig(testConfig()).
			WithScopeStrategy("user", revocation.NewCutoff()).
			Build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		engine.Close()
	})

	t.Run("single use", func(t *testing.T) {
		b := New().WithConfig(testConfig()).WithStrategy(revocation.Null{})
		engine, err := b.Build()
		if err != nil {
			t.Fatalf("first build: %v", err)
		}
		engine.Close()
		if _, err := b.Build(); err == nil {
			t.Fatal("expected second build to fail")
		}
	})
}
