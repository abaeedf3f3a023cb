package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	claimID        = "jti"
	claimSubject   = "sub"
	claimScope     = "scp"
	claimAudience  = "aud"
	claimIssuer    = "iss"
	claimIssuedAt  = "iat"
	claimExpiresAt = "exp"
	claimNotBefore = "nbf"
)

var reservedClaims = map[string]struct{}{
	claimID:        {},
	claimSubject:   {},
	claimScope:     {},
	claimAudience:  {},
	claimIssuer:    {},
	claimIssuedAt:  {},
	claimExpiresAt: {},
	claimNotBefore: {},
}

// Claims is the decoded payload of a token.
//
// Revocation strategies key on ID (the jti) and Subject.
type Claims struct {
	ID        string
	Subject   string
	Scope     string
	Audience  []string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	NotBefore time.Time
	Extra     map[string]any
}

// HasAudience reports whether aud is one of the token audiences.
func (c *Claims) HasAudience(aud string) bool {
	if c == nil {
		return false
	}
	for _, a := range c.Audience {
		if a == aud {
			return true
		}
	}
	return false
}

func (c *Claims) toMap() jwt.MapClaims {
	out := make(jwt.MapClaims, len(c.Extra)+8)
	for k, v := range c.Extra {
		out[k] = v
	}
	out[claimID] = c.ID
	out[claimSubject] = c.Subject
	out[claimScope] = c.Scope
	out[claimIssuedAt] = jwt.NewNumericDate(c.IssuedAt)
	out[claimExpiresAt] = jwt.NewNumericDate(c.ExpiresAt)
	if !c.NotBefore.IsZero() {
		out[claimNotBefore] = jwt.NewNumericDate(c.NotBefore)
	}
	if c.Issuer != "" {
		out[claimIssuer] = c.Issuer
	}
	if len(c.Audience) > 0 {
		out[claimAudience] = jwt.ClaimStrings(c.Audience)
	}
	return out
}

func claimsFromMap(mc jwt.MapClaims) (*Claims, error) {
	id, _ := mc[claimID].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: missing jti claim", ErrMalformed)
	}
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrMalformed)
	}
	scope, _ := mc[claimScope].(string)
	if scope == "" {
		return nil, fmt.Errorf("%w: missing scp claim", ErrMalformed)
	}
	aud, err := mc.GetAudience()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	iss, err := mc.GetIssuer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims := &Claims{
		ID:       id,
		Subject:  sub,
		Scope:    scope,
		Audience: []string(aud),
		Issuer:   iss,
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if nbf, err := mc.GetNotBefore(); err == nil && nbf != nil {
		claims.NotBefore = nbf.Time
	}

	for k, v := range mc {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		if claims.Extra == nil {
			claims.Extra = make(map[string]any)
		}
		claims.Extra[k] = v
	}

	return claims, nil
}
