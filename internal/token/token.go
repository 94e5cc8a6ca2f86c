// Package token mints and inspects the bearer tokens used by authenticated probes.
//
// Tokens are HS256 JWTs carrying caller-supplied claims plus "iat" and "exp".
// Given the same claims, secret, expiry and issue instant, Issue produces a
// byte-identical token.
package token

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultExpiry is the lifetime applied when no expiry is given.
const DefaultExpiry = "7d"

var (
	// ErrEmptyClaims is returned when Issue is called without claims.
	ErrEmptyClaims = errors.New("claims must not be empty")

	// ErrEmptySecret is returned by NewIssuer for an empty secret.
	ErrEmptySecret = errors.New("signing secret must not be empty")

	// ErrReservedClaim is returned when claims set "iat" or "exp" themselves.
	ErrReservedClaim = errors.New("claim is managed by the issuer")
)

// Claims maps claim names (id, email, role, ...) to values.
type Claims map[string]any

// reserved claims are derived from the issue time and expiry.
var reserved = []string{"iat", "exp"}

// Issuer signs claims with a shared secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the issue-time source. Tests pin it for determinism.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates an issuer for the given secret.
// Callers resolve the development fallback (config.DevSecret) before this point.
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	i := &Issuer{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs claims into a token that expires after expiry.
// An empty expiry means DefaultExpiry.
func (i *Issuer) Issue(claims Claims, expiry string) (string, error) {
	if len(claims) == 0 {
		return "", ErrEmptyClaims
	}
	for _, name := range reserved {
		if _, ok := claims[name]; ok {
			return "", fmt.Errorf("%w: %q", ErrReservedClaim, name)
		}
	}

	if expiry == "" {
		expiry = DefaultExpiry
	}
	ttl, err := ParseExpiry(expiry)
	if err != nil {
		return "", err
	}

	issuedAt := i.now().Truncate(time.Second)
	mc := make(jwt.MapClaims, len(claims)+len(reserved))
	for k, v := range claims {
		mc[k] = v
	}
	mc["iat"] = jwt.NewNumericDate(issuedAt)
	mc["exp"] = jwt.NewNumericDate(issuedAt.Add(ttl))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Inspect verifies a token against the issuer's secret and returns its claims
// without the issuer-managed "iat" and "exp" entries.
// Numeric claims come back as float64, as encoding/json decodes them.
func (i *Issuer) Inspect(tokenString string) (Claims, error) {
	parsed, err := jwt.Parse(tokenString,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect token: %w", err)
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("inspect token: unexpected claims type %T", parsed.Claims)
	}

	claims := make(Claims, len(mc))
	for k, v := range mc {
		claims[k] = v
	}
	for _, name := range reserved {
		delete(claims, name)
	}
	return claims, nil
}

// ExpiresAt returns the expiry encoded in a token verified by this issuer.
func (i *Issuer) ExpiresAt(tokenString string) (time.Time, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &rc,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("inspect token: %w", err)
	}
	if rc.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("inspect token: no exp claim")
	}
	return rc.ExpiresAt.Time, nil
}

// ParseExpiry parses an expiry such as "7d", "2w", "30d" or any
// time.ParseDuration string ("12h", "90m").
func ParseExpiry(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("expiry must not be empty")
	}

	var d time.Duration
	switch unit := s[len(s)-1]; unit {
	case 'd', 'w':
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil {
			return 0, fmt.Errorf("invalid expiry %q: %w", s, err)
		}
		per := 24 * time.Hour
		if unit == 'w' {
			per *= 7
		}
		if n > 0 && int64(n) > math.MaxInt64/int64(per) {
			return 0, fmt.Errorf("invalid expiry %q: too long", s)
		}
		d = time.Duration(n) * per
	default:
		var err error
		d, err = time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid expiry %q: %w", s, err)
		}
	}

	if d <= 0 {
		return 0, fmt.Errorf("invalid expiry %q: must be positive", s)
	}
	return d, nil
}
