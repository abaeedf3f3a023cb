package revocation

import (
	"context"
	"errors"

	"github.com/MrEthical07/jwtauth/jwt"
)

var (
	// ErrNoTokenID is returned when claims without a jti are handed to a jti-keyed strategy.
	ErrNoTokenID = errors.New("claims carry no token identifier")
	// ErrNoSubject is returned when claims without a subject are handed to a subject-keyed strategy.
	ErrNoSubject = errors.New("claims carry no subject")
)

// Strategy records revoked tokens and reports whether decoded claims are still usable.
//
// Revoke must be idempotent. After Revoke returns nil, Valid must report false for the
// same claims on every caller that shares the strategy's backing state.
type Strategy interface {
	Revoke(ctx context.Context, claims *jwt.Claims, user jwt.User) error
	Valid(ctx context.Context, claims *jwt.Claims, user jwt.User) (bool, error)
}

// Null is the strategy used when revocation is disabled.
type Null struct{}

// Revoke does nothing.
func (Null) Revoke(context.Context, *jwt.Claims, jwt.User) error { return nil }

// Valid always reports true.
func (Null) Valid(context.Context, *jwt.Claims, jwt.User) (bool, error) { return true, nil }
