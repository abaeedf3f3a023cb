package jwtauth

import (
	"context"
	"net/http"

	"github.com/MrEthical07/jwtauth/jwt"
)

// User is the identity encoded into tokens. See [jwt.User].
type User = jwt.User

// Claims is the decoded token payload. See [jwt.Claims].
type Claims = jwt.Claims

// UserResolver turns decoded claims back into the user they were issued for. One
// resolver is registered per scope; the set of registered scopes is the set of scopes
// tokens are issued for.
type UserResolver interface {
	ResolveUser(ctx context.Context, claims *jwt.Claims) (jwt.User, error)
}

// UserResolverFunc adapts a function to [UserResolver].
type UserResolverFunc func(ctx context.Context, claims *jwt.Claims) (jwt.User, error)

// ResolveUser calls f.
func (f UserResolverFunc) ResolveUser(ctx context.Context, claims *jwt.Claims) (jwt.User, error) {
	return f(ctx, claims)
}

// AudienceResolver picks the audience for a token from the request being served.
type AudienceResolver func(r *http.Request) string

// DispatchRequest is one issuance rule. Method is compared case-insensitively. Path is
// a required regular expression matched against the URL path; Body is an optional
// regular expression matched against the full request body.
//
// Patterns are unanchored: "/login" also matches "/api/login/form". Anchor with ^ and $
// for exact matches.
type DispatchRequest struct {
	Method string `mapstructure:"method" yaml:"method"`
	Path   string `mapstructure:"path" yaml:"path"`
	Body   string `mapstructure:"body" yaml:"body"`
}

// AuthResult is returned by [Engine.Authenticate].
type AuthResult struct {
	Subject string
	Scope   string
	User    jwt.User
	Claims  *jwt.Claims
}
