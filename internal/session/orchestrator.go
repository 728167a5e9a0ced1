package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nfavre/gatehouse/internal/attempt"
	"github.com/nfavre/gatehouse/internal/domain/auth"
	"github.com/nfavre/gatehouse/internal/domain/user"
	"github.com/nfavre/gatehouse/internal/obs"
	"github.com/nfavre/gatehouse/internal/password"
	"github.com/nfavre/gatehouse/internal/refresh"
	"github.com/nfavre/gatehouse/internal/token"
	"github.com/nfavre/gatehouse/internal/verify"
)

// Sender is the outbound-email collaborator. Delivery failures are logged
// here and never surfaced as flow errors.
type Sender interface {
	SendVerificationLink(ctx context.Context, to, token string) error
	SendPasswordChangedNotice(ctx context.Context, to, username string) error
}

// TokenPair is what a successful register or login hands back.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type Config struct {
	DefaultRoles   []string
	MinPasswordLen int
}

type Deps struct {
	Users    user.Store
	Codec    *token.Codec
	Refresh  *refresh.Store
	Attempts *attempt.Tracker
	Verifier *verify.Issuer
	Hasher   password.Hasher
	Mail     Sender
	Logger   *zap.Logger
	Metrics  *obs.AuthMetrics
}

// Orchestrator composes the token codec, refresh store, attempt tracker
// and verification issuer into the register/login/refresh/logout flows.
// It is the only component that touches the user store, the hasher and
// the mailer.
type Orchestrator struct {
	users    user.Store
	codec    *token.Codec
	refresh  *refresh.Store
	attempts *attempt.Tracker
	verifier *verify.Issuer
	hasher   password.Hasher
	mail     Sender
	log      *zap.Logger
	metrics  *obs.AuthMetrics

	defaultRoles   []string
	minPasswordLen int
}

func NewOrchestrator(d Deps, cfg Config) *Orchestrator {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if len(cfg.DefaultRoles) == 0 {
		cfg.DefaultRoles = []string{"user"}
	}
	if cfg.MinPasswordLen <= 0 {
		cfg.MinPasswordLen = 8
	}
	return &Orchestrator{
		users:          d.Users,
		codec:          d.Codec,
		refresh:        d.Refresh,
		attempts:       d.Attempts,
		verifier:       d.Verifier,
		hasher:         d.Hasher,
		mail:           d.Mail,
		log:            d.Logger.With(zap.String("component", "session")),
		metrics:        d.Metrics,
		defaultRoles:   cfg.DefaultRoles,
		minPasswordLen: cfg.MinPasswordLen,
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Register creates a disabled account, mails a verification link and still
// issues a usable token pair. Pre-verification access is a deliberate
// policy here: callers that want a stricter flow simply withhold the pair
// until VerifyEmail succeeds.
func (o *Orchestrator) Register(ctx context.Context, username, email, pass string) (*user.User, *TokenPair, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if len(pass) < o.minPasswordLen {
		return nil, nil, ErrWeakPassword
	}

	if taken, err := o.users.ExistsByUsername(ctx, username); err != nil {
		return nil, nil, fmt.Errorf("check username: %w", err)
	} else if taken {
		return nil, nil, ErrDuplicateIdentifier
	}
	if taken, err := o.users.ExistsByEmail(ctx, email); err != nil {
		return nil, nil, fmt.Errorf("check email: %w", err)
	} else if taken {
		return nil, nil, ErrDuplicateIdentifier
	}

	hash, err := o.hasher.Hash(pass)
	if err != nil {
		return nil, nil, err
	}
	u := &user.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        o.defaultRoles,
		Enabled:      false,
	}
	if err := o.users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrConflict) {
			return nil, nil, ErrDuplicateIdentifier
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	vt, err := o.verifier.Issue(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	if err := o.mail.SendVerificationLink(ctx, u.Email, vt); err != nil {
		o.log.Warn("verification mail not delivered", zap.String("username", u.Username), zap.Error(err))
	}

	pair, err := o.issuePair(ctx, u, false)
	if err != nil {
		return nil, nil, err
	}

	o.log.Info("user registered", zap.String("username", u.Username))
	if o.metrics != nil {
		o.metrics.Registrations.Inc()
	}
	return u, pair, nil
}

// Login order matters: the lockout gate runs before credentials are even
// looked at, and the enabled check runs only after the password verified,
// so an unverified-email response cannot be used to probe for accounts.
func (o *Orchestrator) Login(ctx context.Context, username, pass string, rememberMe bool) (*user.User, *TokenPair, error) {
	username = strings.TrimSpace(username)

	if o.attempts.IsLocked(username) {
		o.countLogin("locked")
		return nil, nil, &AccountLockedError{RemainingMinutes: o.attempts.RemainingLockout(username)}
	}

	u, err := o.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil, o.failedAttempt(username)
		}
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	if !o.hasher.Verify(pass, u.PasswordHash) {
		return nil, nil, o.failedAttempt(username)
	}

	if !u.Enabled {
		o.countLogin("unverified")
		return nil, nil, ErrEmailNotVerified
	}

	o.attempts.RecordSuccess(username)

	pair, err := o.issuePair(ctx, u, rememberMe)
	if err != nil {
		return nil, nil, err
	}

	o.log.Info("user logged in", zap.String("username", u.Username), zap.Bool("remember_me", rememberMe))
	o.countLogin("success")
	return u, pair, nil
}

func (o *Orchestrator) failedAttempt(username string) error {
	o.attempts.RecordFailure(username)
	o.countLogin("invalid_credentials")
	if o.metrics != nil && o.attempts.IsLocked(username) {
		o.metrics.Lockouts.Inc()
	}
	return &InvalidCredentialsError{RemainingAttempts: o.attempts.RemainingAttempts(username)}
}

// Refresh exchanges a valid refresh token for a fresh access token. The
// refresh token itself is handed back unchanged; it is not rotated on use.
func (o *Orchestrator) Refresh(ctx context.Context, rawToken string) (string, *auth.RefreshToken, error) {
	rt, err := o.refresh.Verify(ctx, rawToken)
	if err != nil {
		o.countRefresh("rejected")
		return "", nil, err
	}
	u, err := o.users.GetByID(ctx, rt.UserID)
	if err != nil {
		return "", nil, fmt.Errorf("load user: %w", err)
	}
	access, err := o.codec.Mint(u.Username, u.Roles, false)
	if err != nil {
		return "", nil, err
	}
	o.countRefresh("success")
	return access, rt, nil
}

// Logout revokes the refresh token; unknown or already-revoked tokens are
// a silent no-op.
func (o *Orchestrator) Logout(ctx context.Context, rawToken string) error {
	if err := o.refresh.Revoke(ctx, rawToken); err != nil {
		return err
	}
	o.log.Info("session logged out")
	return nil
}

// ChangePassword rehashes and revokes every refresh token the user owns,
// forcing re-authentication on all other sessions.
func (o *Orchestrator) ChangePassword(ctx context.Context, username, oldPass, newPass string) error {
	u, err := o.users.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !o.hasher.Verify(oldPass, u.PasswordHash) {
		return ErrIncorrectOldPassword
	}
	if oldPass == newPass {
		return ErrSamePassword
	}
	if len(newPass) < o.minPasswordLen {
		return ErrWeakPassword
	}

	hash, err := o.hasher.Hash(newPass)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	if err := o.users.Update(ctx, u); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := o.refresh.RevokeAllFor(ctx, u.ID); err != nil {
		return err
	}

	if err := o.mail.SendPasswordChangedNotice(ctx, u.Email, u.Username); err != nil {
		o.log.Warn("password-changed mail not delivered", zap.String("username", u.Username), zap.Error(err))
	}
	o.log.Info("password changed", zap.String("username", u.Username))
	return nil
}

// ResendVerification re-issues the token, superseding whatever the user
// carried, and re-sends the link.
func (o *Orchestrator) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	u, err := o.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return verify.ErrUnknown
		}
		return fmt.Errorf("load user: %w", err)
	}
	if u.Enabled {
		return verify.ErrAlreadyVerified
	}
	vt, err := o.verifier.Issue(ctx, u)
	if err != nil {
		return err
	}
	if err := o.mail.SendVerificationLink(ctx, u.Email, vt); err != nil {
		o.log.Warn("verification mail not delivered", zap.String("username", u.Username), zap.Error(err))
	}
	return nil
}

func (o *Orchestrator) VerifyEmail(ctx context.Context, vt string) error {
	u, err := o.verifier.Consume(ctx, vt)
	if err != nil {
		return err
	}
	o.log.Info("email verified", zap.String("username", u.Username))
	return nil
}

// Authenticate resolves a bearer access token to the live user record.
func (o *Orchestrator) Authenticate(ctx context.Context, accessToken string) (*user.User, error) {
	claims, err := o.codec.Validate(accessToken)
	if err != nil {
		return nil, err
	}
	u, err := o.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (o *Orchestrator) issuePair(ctx context.Context, u *user.User, extended bool) (*TokenPair, error) {
	access, err := o.codec.Mint(u.Username, u.Roles, extended)
	if err != nil {
		return nil, err
	}
	rt, err := o.refresh.Issue(ctx, u.ID, extended)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: rt.Token}, nil
}

func (o *Orchestrator) countLogin(result string) {
	if o.metrics != nil {
		o.metrics.Logins.WithLabelValues(result).Inc()
	}
}

func (o *Orchestrator) countRefresh(result string) {
	if o.metrics != nil {
		o.metrics.Refreshes.WithLabelValues(result).Inc()
	}
}
