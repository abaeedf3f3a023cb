package jwt

// User is anything that can be identified in the sub claim of a token.
type User interface {
	JWTSubject() string
}

// ClaimsProvider is implemented by users that contribute custom claims to their
// tokens. Reserved claim names are rejected with [ErrEncoding].
type ClaimsProvider interface {
	JWTClaims() map[string]any
}

// DispatchNotifier is implemented by users that want to observe token issuance,
// e.g. to persist the jti. It is called before the token is stored for dispatch.
type DispatchNotifier interface {
	OnTokenDispatched(token string, claims *Claims)
}

// Subject is a bare User backed by its identifier.
type Subject string

// JWTSubject returns the identifier itself.
func (s Subject) JWTSubject() string { return string(s) }
