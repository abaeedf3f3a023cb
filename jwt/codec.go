package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodEd25519 signs with an Ed25519 key pair (EdDSA).
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with a shared secret (HMAC-SHA256).
	MethodHS256 SigningMethod = "hs256"
	// MethodHS384 signs with a shared secret (HMAC-SHA384).
	MethodHS384 SigningMethod = "hs384"
	// MethodHS512 signs with a shared secret (HMAC-SHA512).
	MethodHS512 SigningMethod = "hs512"
)

const minHMACKeyLength = 32

// Config holds the codec signing and verification settings.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Codec encodes users into signed tokens and decodes tokens into [Claims].
// A Codec is safe for concurrent use.
type Codec struct {
	config Config
	method jwt.SigningMethod
	now    func() time.Time
}

// NewCodec validates cfg and returns a ready Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	c := &Codec{config: cfg, now: time.Now}

	switch cfg.SigningMethod {
	case MethodHS256, MethodHS384, MethodHS512:
		if len(cfg.PrivateKey) < minHMACKeyLength {
			return nil, fmt.Errorf("%s requires a secret of at least %d bytes", cfg.SigningMethod, minHMACKeyLength)
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if len(key) < minHMACKeyLength {
				return nil, fmt.Errorf("verify key for kid %q is too short", kid)
			}
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	c.method = methodFor(cfg.SigningMethod)
	return c, nil
}

// TTL returns the lifetime given to freshly encoded tokens.
func (c *Codec) TTL() time.Duration {
	return c.config.TTL
}

// Encode mints a signed token for user within scope. An empty audience leaves the
// aud claim out.
func (c *Codec) Encode(user User, scope, audience string) (string, *Claims, error) {
	if user == nil {
		return "", nil, fmt.Errorf("%w: nil user", ErrEncoding)
	}
	sub := strings.TrimSpace(user.JWTSubject())
	if sub == "" {
		return "", nil, fmt.Errorf("%w: user has no subject", ErrEncoding)
	}
	if strings.TrimSpace(scope) == "" {
		return "", nil, fmt.Errorf("%w: empty scope", ErrEncoding)
	}

	now := c.now().Truncate(time.Second)
	claims := &Claims{
		ID:        uuid.NewString(),
		Subject:   sub,
		Scope:     scope,
		Issuer:    c.config.Issuer,
		IssuedAt:  now,
		ExpiresAt: now.Add(c.config.TTL),
	}
	if audience != "" {
		claims.Audience = []string{audience}
	}

	if p, ok := user.(ClaimsProvider); ok {
		for k, v := range p.JWTClaims() {
			if _, reserved := reservedClaims[k]; reserved {
				return "", nil, fmt.Errorf("%w: custom claim %q is reserved", ErrEncoding, k)
			}
			if claims.Extra == nil {
				claims.Extra = make(map[string]any)
			}
			claims.Extra[k] = v
		}
	}

	token := jwt.NewWithClaims(c.method, claims.toMap())
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}

	signKey, err := c.signKey()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	signed, err := token.SignedString(signKey)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	return signed, claims, nil
}

// Decode verifies token and returns its claims. Revocation state is not consulted.
func (c *Codec) Decode(token string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(token, jwt.MapClaims{}, c.keyFunc)
	if err != nil {
		return nil, classify(err)
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}

	claims, err := claimsFromMap(mc)
	if err != nil {
		return nil, err
	}
	if !claims.IssuedAt.IsZero() && claims.IssuedAt.After(c.now().Add(c.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalid)
	}

	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(c.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := c.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return c.verifyKeyFromBytes(key)
	}

	if c.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != c.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return c.verifyKey()
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
}

func methodFor(m SigningMethod) jwt.SigningMethod {
	switch m {
	case MethodHS256:
		return jwt.SigningMethodHS256
	case MethodHS384:
		return jwt.SigningMethodHS384
	case MethodHS512:
		return jwt.SigningMethodHS512
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (c *Codec) isHMAC() bool {
	switch c.config.SigningMethod {
	case MethodHS256, MethodHS384, MethodHS512:
		return true
	}
	return false
}

func (c *Codec) signKey() (interface{}, error) {
	if c.isHMAC() {
		return c.config.PrivateKey, nil
	}
	if len(c.config.PrivateKey) == 0 {
		return nil, errors.New("codec has no signing key")
	}
	return parseEdPrivateKey(c.config.PrivateKey)
}

func (c *Codec) verifyKey() (interface{}, error) {
	if c.isHMAC() {
		return c.config.PrivateKey, nil
	}
	return parseEdPublicKey(c.config.PublicKey)
}

func (c *Codec) verifyKeyFromBytes(key []byte) (interface{}, error) {
	if c.isHMAC() {
		return key, nil
	}
	return parseEdPublicKey(key)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
