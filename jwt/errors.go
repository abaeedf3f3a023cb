package jwt

import "errors"

var (
	// ErrEncoding is returned when a user cannot be represented as a token.
	ErrEncoding = errors.New("token encoding failed")
	// ErrMalformed is returned when a token is not structurally a JWT or lacks required claims.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalid is returned when signature, algorithm, key id, issuer or nbf verification fails.
	ErrInvalid = errors.New("invalid token")
	// ErrExpired is returned when a token is past its expiry (leeway included).
	ErrExpired = errors.New("expired token")
)
