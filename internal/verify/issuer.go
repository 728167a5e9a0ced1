package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nfavre/gatehouse/internal/domain/user"
)

var (
	ErrUnknown         = errors.New("unknown verification token")
	ErrExpired         = errors.New("verification token expired")
	ErrAlreadyVerified = errors.New("email already verified")
)

const DefaultTTL = 24 * time.Hour

type Config struct {
	TTL time.Duration
	Now func() time.Time
}

// Issuer mints one-time email-verification tokens stored on the user
// record. A fresh Issue supersedes whatever token the user carried;
// Consume enables the account and clears the token.
type Issuer struct {
	users user.Store
	ttl   time.Duration
	now   func() time.Time
}

func NewIssuer(users user.Store, cfg Config) *Issuer {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Issuer{users: users, ttl: cfg.TTL, now: cfg.Now}
}

func (i *Issuer) Issue(ctx context.Context, u *user.User) (string, error) {
	token := uuid.NewString()
	expiry := i.now().Add(i.ttl)
	u.VerificationToken = &token
	u.VerificationExpiry = &expiry
	if err := i.users.Update(ctx, u); err != nil {
		return "", fmt.Errorf("save verification token: %w", err)
	}
	return token, nil
}

// Consume resolves the token, enables the user and clears the token
// fields. An expired token is left in place; only a new Issue replaces it.
func (i *Issuer) Consume(ctx context.Context, token string) (*user.User, error) {
	u, err := i.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUnknown
		}
		return nil, fmt.Errorf("find verification token: %w", err)
	}
	if u.VerificationExpiry == nil || !i.now().Before(*u.VerificationExpiry) {
		return nil, ErrExpired
	}
	u.VerificationToken = nil
	u.VerificationExpiry = nil
	u.Enabled = true
	if err := i.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("enable user: %w", err)
	}
	return u, nil
}
