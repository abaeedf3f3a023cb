package jwtauth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/jwtauth/jwt"
	"github.com/MrEthical07/jwtauth/revocation"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config

	strategy        revocation.Strategy
	scopeStrategies map[string]revocation.Strategy

	logger    zerolog.Logger
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the configuration with a private copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStrategy sets the revocation strategy used for every scope without an override.
func (b *Builder) WithStrategy(s revocation.Strategy) *Builder {
	b.strategy = s
	return b
}

// WithScopeStrategy overrides the revocation strategy for a single scope.
func (b *Builder) WithScopeStrategy(scope string, s revocation.Strategy) *Builder {
	if b.scopeStrategies == nil {
		b.scopeStrategies = make(map[string]revocation.Strategy)
	}
	b.scopeStrategies[scope] = s
	return b
}

// WithLogger sets the engine logger. Request loggers in the context take precedence.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the sink audit events are dispatched to when audit is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the decode latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine. Every configuration
// problem is reported here, wrapped in [ErrConfiguration].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for scope, s := range b.scopeStrategies {
		if _, ok := cfg.Mappings[scope]; !ok {
			return nil, fmt.Errorf("%w: strategy registered for unmapped scope %q", ErrConfiguration, scope)
		}
		if s == nil {
			return nil, fmt.Errorf("%w: nil strategy for scope %q", ErrConfiguration, scope)
		}
	}

	strategy := b.strategy
	if strategy == nil {
		if cfg.RevocationPath != "" && len(b.scopeStrategies) < len(cfg.Mappings) {
			return nil, fmt.Errorf("%w: revocation path configured without a revocation strategy", ErrConfiguration)
		}
		strategy = revocation.Null{}
	}

	matcher, err := NewMatcher(cfg)
	if err != nil {
		return nil, err
	}

	codec, err := jwt.NewCodec(cfg.JWT.codecConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: jwt: %v", ErrConfiguration, err)
	}

	audience := cfg.AudienceResolver
	if audience == nil {
		header := strings.TrimSpace(cfg.AudienceHeader)
		audience = headerAudience(header)
	}

	engine := &Engine{
		config:     cfg,
		matcher:    matcher,
		codec:      codec,
		strategy:   strategy,
		strategies: make(map[string]revocation.Strategy, len(b.scopeStrategies)),
		audience:   audience,
		log:        b.logger.With().Str("component", "jwtauth").Logger(),
		metrics:    NewMetrics(cfg.Metrics),
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink),
	}
	for scope, s := range b.scopeStrategies {
		engine.strategies[scope] = s
	}

	b.built = true

	return engine, nil
}
