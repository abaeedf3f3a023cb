package jwtauth

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/MrEthical07/jwtauth/jwt"
)

// DefaultAudienceHeader is the request header the default audience resolver reads.
const DefaultAudienceHeader = "JWT_AUD"

// Config defines the token lifecycle rules.
//
// Config instances are intended to be configured during initialization and then treated
// as immutable. [Builder.Build] takes a private copy.
type Config struct {
	JWT JWTConfig

	// Mappings enables issuance for a scope and resolves users for its tokens.
	Mappings map[string]UserResolver
	// DispatchRequests lists the requests that receive a token on successful login.
	DispatchRequests []DispatchRequest
	// RevocationPath is a regular expression for logout paths. Empty disables revocation.
	RevocationPath string

	// AudienceHeader is read by the default audience resolver.
	AudienceHeader string
	// AudienceResolver overrides the header lookup when set.
	AudienceResolver AudienceResolver

	// MaxBodyBytes caps how much of a request body is buffered for body patterns.
	MaxBodyBytes int64

	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the signing settings handed to the token codec.
type JWTConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default), "hs384", "hs512", "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// AuditConfig controls the buffered audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a Config with every field but the signing key and the scope
// mappings filled in.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TTL:           time.Hour,
			SigningMethod: string(jwt.MethodHS256),
			Leeway:        5 * time.Second,
		},
		AudienceHeader: DefaultAudienceHeader,
		MaxBodyBytes:   1 << 20,
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	if cfg.Mappings != nil {
		out.Mappings = make(map[string]UserResolver, len(cfg.Mappings))
		for scope, resolver := range cfg.Mappings {
			out.Mappings[scope] = resolver
		}
	}
	out.DispatchRequests = append([]DispatchRequest(nil), cfg.DispatchRequests...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c JWTConfig) codecConfig() jwt.Config {
	return jwt.Config{
		TTL:           c.TTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(c.SigningMethod)),
		PrivateKey:    cloneBytes(c.PrivateKey),
		PublicKey:     cloneBytes(c.PublicKey),
		Issuer:        c.Issuer,
		Leeway:        c.Leeway,
		KeyID:         c.KeyID,
		VerifyKeys:    c.VerifyKeys,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first problem with c, wrapped in [ErrConfiguration].
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return nil
}

func (c *Config) validate() error {
	if _, err := jwt.NewCodec(c.JWT.codecConfig()); err != nil {
		return fmt.Errorf("jwt: %v", err)
	}

	for scope, resolver := range c.Mappings {
		if strings.TrimSpace(scope) == "" {
			return fmt.Errorf("mapping has an empty scope")
		}
		if resolver == nil {
			return fmt.Errorf("mapping for scope %q has no user resolver", scope)
		}
	}

	for i, rule := range c.DispatchRequests {
		if strings.TrimSpace(rule.Method) == "" {
			return fmt.Errorf("dispatch request %d has no method", i)
		}
		if rule.Path == "" {
			return fmt.Errorf("dispatch request %d has no path pattern", i)
		}
		if _, err := regexp.Compile(rule.Path); err != nil {
			return fmt.Errorf("dispatch request %d path: %v", i, err)
		}
		if rule.Body != "" {
			if _, err := regexp.Compile(rule.Body); err != nil {
				return fmt.Errorf("dispatch request %d body: %v", i, err)
			}
		}
	}

	if c.RevocationPath != "" {
		if _, err := regexp.Compile(c.RevocationPath); err != nil {
			return fmt.Errorf("revocation path: %v", err)
		}
	}

	if c.AudienceResolver == nil && strings.TrimSpace(c.AudienceHeader) == "" {
		return fmt.Errorf("AudienceHeader must be set when no AudienceResolver is configured")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MaxBodyBytes must be > 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
