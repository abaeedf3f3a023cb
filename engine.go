package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/jwtauth/jwt"
	"github.com/MrEthical07/jwtauth/revocation"
)

// Engine runs the token lifecycle: issuance on login, dispatch on the response,
// revocation on logout and authentication of presented tokens.
//
// Engine is safe for concurrent use once built.
type Engine struct {
	config     Config
	matcher    *Matcher
	codec      *jwt.Codec
	strategy   revocation.Strategy
	strategies map[string]revocation.Strategy
	audience   AudienceResolver
	log        zerolog.Logger
	metrics    *Metrics
	audit      *auditDispatcher
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Matcher returns the compiled request rules.
func (e *Engine) Matcher() *Matcher {
	return e.matcher
}

// Codec returns the token codec.
func (e *Engine) Codec() *jwt.Codec {
	return e.codec
}

// MaxBodyBytes is the body buffering limit for body patterns.
func (e *Engine) MaxBodyBytes() int64 {
	return e.config.MaxBodyBytes
}

// Audience resolves the audience for r.
func (e *Engine) Audience(r *http.Request) string {
	if r == nil {
		return ""
	}
	return e.audience(r)
}

func headerAudience(header string) AudienceResolver {
	return func(r *http.Request) string {
		return r.Header.Get(header)
	}
}

func (e *Engine) strategyFor(scope string) revocation.Strategy {
	if s, ok := e.strategies[scope]; ok {
		return s
	}
	return e.strategy
}

// logger prefers the request logger installed by the logging middleware.
func (e *Engine) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &e.log
}

// PrepareToken runs issuance for a successful login of user in scope on request r.
//
// It returns "" and a nil error when the request does not qualify. A qualifying
// request gets a freshly encoded token; a user implementing [jwt.DispatchNotifier]
// is told about it, and the token is stored in the request's token slot for the
// dispatch middleware. Without a slot the token is only returned.
//
// Errors never mean the login failed: they report why no token was issued.
func (e *Engine) PrepareToken(r *http.Request, user jwt.User, scope string) (string, error) {
	ctx := r.Context()
	slot := slotFromContext(ctx)
	if slot != nil && slot.filled() {
		return "", ErrTokenAlreadyPrepared
	}

	ok, err := e.matcher.shouldIssue(scope, r.Method, r.URL.Path, func() (io.ReadSeeker, error) {
		return requestBody(r)
	})
	if err != nil {
		e.issueFailed(ctx, r, scope, err)
		return "", err
	}
	if !ok {
		e.metricInc(MetricTokenIssueSkipped)
		e.logger(ctx).Debug().Str("scope", scope).Str("path", r.URL.Path).Msg("token.skipped")
		return "", nil
	}

	token, claims, err := e.codec.Encode(user, scope, e.Audience(r))
	if err != nil {
		e.issueFailed(ctx, r, scope, err)
		return "", err
	}

	if notifier, ok := user.(jwt.DispatchNotifier); ok {
		notifier.OnTokenDispatched(token, claims)
	}

	if slot != nil && !slot.fill(token, claims) {
		return "", ErrTokenAlreadyPrepared
	}

	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssued, true, claims, r, nil, nil)
	e.logger(ctx).Debug().
		Str("sub", claims.Subject).
		Str("scope", scope).
		Str("jti", claims.ID).
		Bool("dispatch", slot != nil).
		Msg("token.issued")

	return token, nil
}

func (e *Engine) issueFailed(ctx context.Context, r *http.Request, scope string, err error) {
	e.metricInc(MetricTokenEncodeFailure)
	e.emitAudit(ctx, auditEventTokenIssueFailed, false, nil, r, err, func() map[string]string {
		return map[string]string{"scope": scope}
	})
	e.logger(ctx).Warn().Err(err).Str("scope", scope).Msg("token.issue_failed")
}

// TakePreparedToken hands out the token prepared for the request in ctx. It returns
// true at most once per request.
func (e *Engine) TakePreparedToken(ctx context.Context) (string, bool) {
	slot := slotFromContext(ctx)
	if slot == nil {
		return "", false
	}
	token, ok := slot.take()
	if ok {
		e.metricInc(MetricTokenDispatched)
	}
	return token, ok
}

// RevokeRequest revokes token when r targets the revocation path. It is meant to run
// after the application handled r. Failures are counted, logged and audited but never
// returned, so a logout response is never turned into an error by revocation.
func (e *Engine) RevokeRequest(r *http.Request, token string) {
	if token == "" || !e.matcher.ShouldRevoke(r.URL.Path) {
		return
	}
	_ = e.revoke(r.Context(), r, token)
}

// RevokeToken decodes and revokes token regardless of the request path and returns
// every failure, for callers that cannot accept a silent revocation miss.
func (e *Engine) RevokeToken(ctx context.Context, token string) error {
	return e.revoke(ctx, nil, token)
}

func (e *Engine) revoke(ctx context.Context, r *http.Request, token string) error {
	claims, err := e.decode(token)
	if err != nil {
		e.metricInc(MetricRevocationSkipped)
		e.emitAudit(ctx, auditEventRevocationSkipped, false, nil, r, err, nil)
		e.logger(ctx).Warn().Err(err).Msg("revocation.skipped")
		return err
	}

	user, err := e.resolveUser(ctx, claims)
	if err != nil {
		e.metricInc(MetricRevocationFailure)
		e.emitAudit(ctx, auditEventRevocationFailed, false, claims, r, err, nil)
		e.logger(ctx).Error().Err(err).Str("sub", claims.Subject).Str("jti", claims.ID).Msg("revocation.failed")
		return err
	}

	if err := e.strategyFor(claims.Scope).Revoke(ctx, claims, user); err != nil {
		e.metricInc(MetricRevocationFailure)
		e.emitAudit(ctx, auditEventRevocationFailed, false, claims, r, err, nil)
		e.logger(ctx).Error().Err(err).Str("sub", claims.Subject).Str("jti", claims.ID).Msg("revocation.failed")
		return fmt.Errorf("revoke token: %w", err)
	}

	e.metricInc(MetricRevocationSuccess)
	e.emitAudit(ctx, auditEventTokenRevoked, true, claims, r, nil, nil)
	e.logger(ctx).Info().Str("sub", claims.Subject).Str("scope", claims.Scope).Str("jti", claims.ID).Msg("token.revoked")

	return nil
}

// Authenticate decodes token, checks it was issued for audience and a mapped scope,
// resolves its user and asks the scope's revocation strategy whether it is still
// valid. A token without an aud claim is accepted for any audience.
func (e *Engine) Authenticate(ctx context.Context, token, audience string) (*AuthResult, error) {
	claims, err := e.decode(token)
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		return nil, err
	}

	if len(claims.Audience) > 0 && !claims.HasAudience(audience) {
		e.metricInc(MetricAuthenticateFailure)
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalid)
	}

	user, err := e.resolveUser(ctx, claims)
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		return nil, err
	}

	valid, err := e.strategyFor(claims.Scope).Valid(ctx, claims, user)
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		e.logger(ctx).Error().Err(err).Str("jti", claims.ID).Msg("revocation.lookup_failed")
		return nil, fmt.Errorf("revocation lookup: %w", err)
	}
	if !valid {
		e.metricInc(MetricAuthenticateRevoked)
		e.emitAudit(ctx, auditEventRevokedTokenReused, false, claims, nil, ErrTokenRevoked, nil)
		return nil, ErrTokenRevoked
	}

	e.metricInc(MetricAuthenticateSuccess)
	return &AuthResult{
		Subject: claims.Subject,
		Scope:   claims.Scope,
		User:    user,
		Claims:  claims,
	}, nil
}

func (e *Engine) decode(token string) (*jwt.Claims, error) {
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricDecodeLatency, time.Since(start)) }()
	}
	return e.codec.Decode(token)
}

func (e *Engine) resolveUser(ctx context.Context, claims *jwt.Claims) (jwt.User, error) {
	resolver, ok := e.config.Mappings[claims.Scope]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrScopeNotMapped, claims.Scope)
	}

	user, err := resolver.ResolveUser(ctx, claims)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUserNotFound, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
