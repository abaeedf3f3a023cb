package jwtauth

import (
	"errors"

	"github.com/MrEthical07/jwtauth/jwt"
)

var (
	// ErrEncoding is returned by PrepareToken when the user cannot be turned into a token.
	// Issuance is aborted; the login that triggered it is not affected.
	ErrEncoding = jwt.ErrEncoding
	// ErrMalformed is returned when a presented token is not structurally valid.
	ErrMalformed = jwt.ErrMalformed
	// ErrInvalid is returned when a presented token fails verification.
	ErrInvalid = jwt.ErrInvalid
	// ErrExpired is returned when a presented token is past its expiry.
	ErrExpired = jwt.ErrExpired

	// ErrConfiguration is returned by Config.Validate and Builder.Build, never at request time.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrTokenRevoked is returned by Authenticate for tokens the revocation strategy rejects.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrScopeNotMapped is returned when a token carries a scope with no user resolver.
	ErrScopeNotMapped = errors.New("scope not mapped")
	// ErrUserNotFound is returned when the scope's resolver finds no user for the claims.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenAlreadyPrepared is returned when a request already carries a prepared token.
	ErrTokenAlreadyPrepared = errors.New("token already prepared for this request")
	// ErrBodyNotRewindable is returned when a body pattern must be checked against a
	// request body that cannot be restored afterwards.
	ErrBodyNotRewindable = errors.New("request body is not rewindable")
)
