package jwtauth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/jwtauth/jwt"
)

const (
	auditEventTokenIssued        = "token_issued"
	auditEventTokenIssueFailed   = "token_issue_failed"
	auditEventTokenRevoked       = "token_revoked"
	auditEventRevocationSkipped  = "revocation_skipped"
	auditEventRevocationFailed   = "revocation_failed"
	auditEventRevokedTokenReused = "revoked_token_presented"
)

// AuditErrorCode is the stable error label attached to failed audit events.
type AuditErrorCode string

const (
	auditErrEncoding       AuditErrorCode = "encoding_failed"
	auditErrMalformed      AuditErrorCode = "malformed_token"
	auditErrInvalid        AuditErrorCode = "invalid_token"
	auditErrExpired        AuditErrorCode = "expired_token"
	auditErrRevoked        AuditErrorCode = "token_revoked"
	auditErrScopeNotMapped AuditErrorCode = "scope_not_mapped"
	auditErrUserNotFound   AuditErrorCode = "user_not_found"
	auditErrAlreadyPrep    AuditErrorCode = "already_prepared"
	auditErrBody           AuditErrorCode = "body_not_rewindable"
	auditErrInternal       AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	claims *jwt.Claims,
	r *http.Request,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Success:   success,
	}
	if claims != nil {
		event.Subject = claims.Subject
		event.Scope = claims.Scope
		event.TokenID = claims.ID
	}
	if r != nil {
		event.Method = r.Method
		event.Path = r.URL.Path
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}
	if metadataBuilder != nil {
		event.Metadata = metadataBuilder()
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrEncoding):
		return auditErrEncoding
	case errors.Is(err, ErrMalformed):
		return auditErrMalformed
	case errors.Is(err, ErrExpired):
		return auditErrExpired
	case errors.Is(err, ErrInvalid):
		return auditErrInvalid
	case errors.Is(err, ErrTokenRevoked):
		return auditErrRevoked
	case errors.Is(err, ErrScopeNotMapped):
		return auditErrScopeNotMapped
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrTokenAlreadyPrepared):
		return auditErrAlreadyPrep
	case errors.Is(err, ErrBodyNotRewindable):
		return auditErrBody
	default:
		return auditErrInternal
	}
}
