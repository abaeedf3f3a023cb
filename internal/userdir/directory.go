// Package userdir is the static user directory of the reference server. Users are
// loaded from configuration with Argon2id password hashes.
package userdir

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/jwt"
	"github.com/MrEthical07/jwtauth/password"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateUser      = errors.New("duplicate user")
)

// Entry is one configured user.
type Entry struct {
	Username     string         `mapstructure:"username" yaml:"username"`
	PasswordHash string         `mapstructure:"password_hash" yaml:"password_hash"`
	Scope        string         `mapstructure:"scope" yaml:"scope"`
	Claims       map[string]any `mapstructure:"claims" yaml:"claims"`
}

// User is a directory user as seen by the engine.
type User struct {
	entry Entry
}

// JWTSubject returns the username.
func (u *User) JWTSubject() string { return u.entry.Username }

// JWTClaims returns the custom claims configured for the user.
func (u *User) JWTClaims() map[string]any { return u.entry.Claims }

// Scope returns the scope the user signs in to.
func (u *User) Scope() string { return u.entry.Scope }

// Directory looks users up by name. It is read-only after New.
type Directory struct {
	hasher *password.Argon2
	users  map[string]*User
}

// New indexes entries by username. Duplicate usernames are rejected.
func New(hasher *password.Argon2, entries []Entry) (*Directory, error) {
	if hasher == nil {
		return nil, errors.New("userdir: nil hasher")
	}

	d := &Directory{hasher: hasher, users: make(map[string]*User, len(entries))}
	for i, e := range entries {
		if e.Username == "" || e.Scope == "" {
			return nil, fmt.Errorf("userdir: user %d needs a username and a scope", i)
		}
		if _, ok := d.users[e.Username]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUser, e.Username)
		}
		d.users[e.Username] = &User{entry: e}
	}
	return d, nil
}

// Authenticate checks username and password.
func (d *Directory) Authenticate(username, pw string) (*User, error) {
	u, ok := d.users[username]
	if !ok {
		return nil, ErrInvalidCredentials
	}

	ok, err := d.hasher.Verify(pw, u.entry.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", username, err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Scopes lists the distinct scopes of all users, sorted.
func (d *Directory) Scopes() []string {
	seen := make(map[string]struct{})
	for _, u := range d.users {
		seen[u.entry.Scope] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Resolver returns the user resolver for scope. Users of other scopes are not found.
func (d *Directory) Resolver(scope string) jwtauth.UserResolver {
	return jwtauth.UserResolverFunc(func(_ context.Context, claims *jwt.Claims) (jwt.User, error) {
		u, ok := d.users[claims.Subject]
		if !ok || u.entry.Scope != scope {
			return nil, fmt.Errorf("%w: %s", jwtauth.ErrUserNotFound, claims.Subject)
		}
		return u, nil
	})
}

// Mappings returns one resolver per scope, ready for jwtauth.Config.
func (d *Directory) Mappings() map[string]jwtauth.UserResolver {
	out := make(map[string]jwtauth.UserResolver)
	for _, scope := range d.Scopes() {
		out[scope] = d.Resolver(scope)
	}
	return out
}
