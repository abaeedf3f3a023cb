package revocation

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/jwtauth/jwt"
)

// Cutoff invalidates tokens by issue time. A token is valid only when its iat is
// strictly after both the global cutoff and its subject's cutoff.
//
// Revoke moves the subject's cutoff to the token's iat, which logs the subject out
// of every token issued up to that second.
type Cutoff struct {
	mu       sync.RWMutex
	global   time.Time
	subjects map[string]time.Time
}

// NewCutoff returns a Cutoff with no cutoffs set.
func NewCutoff() *Cutoff {
	return &Cutoff{subjects: make(map[string]time.Time)}
}

// Revoke moves the subject's cutoff to the token's issue time.
func (c *Cutoff) Revoke(_ context.Context, claims *jwt.Claims, _ jwt.User) error {
	if claims == nil || claims.Subject == "" {
		return ErrNoSubject
	}
	c.RevokeSubject(claims.Subject, claims.IssuedAt)
	return nil
}

// Valid reports whether the token was issued after every applicable cutoff.
func (c *Cutoff) Valid(_ context.Context, claims *jwt.Claims, _ jwt.User) (bool, error) {
	if claims == nil || claims.Subject == "" {
		return false, ErrNoSubject
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.global.IsZero() && !claims.IssuedAt.After(c.global) {
		return false, nil
	}
	if at, ok := c.subjects[claims.Subject]; ok && !claims.IssuedAt.After(at) {
		return false, nil
	}
	return true, nil
}

// RevokeSubject invalidates every token of subject issued at or before at. Cutoffs
// only move forward.
func (c *Cutoff) RevokeSubject(subject string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.subjects[subject]; ok && !at.After(current) {
		return
	}
	c.subjects[subject] = at
}

// RevokeAll invalidates every token issued at or before at, for all subjects.
func (c *Cutoff) RevokeAll(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if at.After(c.global) {
		c.global = at
	}
}
