package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/jwtauth/jwt"
)

// DefaultRetention bounds how long a denylist entry is kept for tokens that carry no
// expiry.
const DefaultRetention = 24 * time.Hour

// Store persists revoked token identifiers until expiresAt. Implementations may drop
// entries once expiresAt has passed, because the codec rejects such tokens anyway.
type Store interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Denylist revokes individual tokens by jti.
type Denylist struct {
	store Store
	now   func() time.Time
}

// NewDenylist returns a Denylist backed by store.
func NewDenylist(store Store) *Denylist {
	return &Denylist{store: store, now: time.Now}
}

// Revoke adds the token identifier to the store. Revoking twice is a no-op.
func (d *Denylist) Revoke(ctx context.Context, claims *jwt.Claims, _ jwt.User) error {
	if claims == nil || claims.ID == "" {
		return ErrNoTokenID
	}

	expiresAt := claims.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = d.now().Add(DefaultRetention)
	}

	if err := d.store.Revoke(ctx, claims.ID, expiresAt); err != nil {
		return fmt.Errorf("denylist revoke %s: %w", claims.ID, err)
	}
	return nil
}

// Valid reports false when the token identifier has been revoked.
func (d *Denylist) Valid(ctx context.Context, claims *jwt.Claims, _ jwt.User) (bool, error) {
	if claims == nil || claims.ID == "" {
		return false, ErrNoTokenID
	}

	revoked, err := d.store.IsRevoked(ctx, claims.ID)
	if err != nil {
		return false, fmt.Errorf("denylist lookup %s: %w", claims.ID, err)
	}
	return !revoked, nil
}
