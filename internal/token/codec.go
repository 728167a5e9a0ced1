package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed = errors.New("malformed token")
	ErrExpired   = errors.New("token expired")
)

const (
	KindNormal   = "access"
	KindExtended = "extended"
)

// Claims is the signed payload of an access token. Roles are embedded at
// mint time and never re-checked against the live user: a role change only
// takes effect once outstanding tokens expire.
type Claims struct {
	Roles []string `json:"roles"`
	Kind  string   `json:"kind"`
	jwt.RegisteredClaims
}

type Config struct {
	Secret      []byte
	AccessTTL   time.Duration
	ExtendedTTL time.Duration
	Now         func() time.Time
}

// Codec mints and validates HS256-signed access tokens. It holds no state
// beyond the signing key and is safe for concurrent use.
type Codec struct {
	secret      []byte
	accessTTL   time.Duration
	extendedTTL time.Duration
	now         func() time.Time
}

func NewCodec(cfg Config) *Codec {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Codec{
		secret:      cfg.Secret,
		accessTTL:   cfg.AccessTTL,
		extendedTTL: cfg.ExtendedTTL,
		now:         cfg.Now,
	}
}

func (c *Codec) Mint(subject string, roles []string, extended bool) (string, error) {
	if subject == "" {
		return "", errors.New("empty subject")
	}
	now := c.now()
	ttl := c.accessTTL
	kind := KindNormal
	if extended {
		ttl = c.extendedTTL
		kind = KindExtended
	}
	claims := &Claims{
		Roles: roles,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Validate checks signature and expiry. A token is valid strictly before
// its expiry instant; at the instant itself it is already expired.
func (c *Codec) Validate(raw string) (*Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}
	if !tok.Valid {
		return nil, ErrMalformed
	}
	return &claims, nil
}
