package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nfavre/gatehouse/internal/domain/auth"
)

var (
	ErrNotFound = errors.New("refresh token not found")
	ErrRevoked  = errors.New("refresh token revoked")
	ErrExpired  = errors.New("refresh token expired")
)

type Config struct {
	TTL         time.Duration
	ExtendedTTL time.Duration
	Now         func() time.Time
}

// Store manages the single-active-refresh-token-per-user invariant over a
// persisted repo. Issue serializes the delete-then-insert per user, so two
// racing logins leave exactly one row behind (the last writer's).
type Store struct {
	repo auth.RefreshTokenRepo

	ttl         time.Duration
	extendedTTL time.Duration
	now         func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewStore(repo auth.RefreshTokenRepo, cfg Config) *Store {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		repo:        repo,
		ttl:         cfg.TTL,
		extendedTTL: cfg.ExtendedTTL,
		now:         cfg.Now,
		locks:       make(map[int64]*sync.Mutex),
	}
}

func (s *Store) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// Issue rotates out any previous token for the user and persists a fresh
// opaque one. The raw value is the lookup key the caller hands back later.
func (s *Store) Issue(ctx context.Context, userID int64, extended bool) (*auth.RefreshToken, error) {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	ttl := s.ttl
	if extended {
		ttl = s.extendedTTL
	}
	now := s.now()
	t := &auth.RefreshToken{
		UserID:    userID,
		Token:     uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		Revoked:   false,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}
	return t, nil
}

// Verify resolves a raw token value. The record is returned as stored;
// verification does not rotate the token, only the access token is
// reissued by the caller. An expired record is deleted on touch.
func (s *Store) Verify(ctx context.Context, token string) (*auth.RefreshToken, error) {
	t, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	if t.Revoked {
		return nil, ErrRevoked
	}
	if !s.now().Before(t.ExpiresAt) {
		_ = s.repo.DeleteByToken(ctx, t.Token)
		return nil, ErrExpired
	}
	return t, nil
}

// Revoke marks the token revoked if it exists. Unknown tokens are a no-op.
func (s *Store) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repo.Revoke(ctx, token); err != nil && !errors.Is(err, auth.ErrNotFound) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllFor revokes every token owned by the user, forcing a fresh
// login on all sessions. Used on password change.
func (s *Store) RevokeAllFor(ctx context.Context, userID int64) error {
	if err := s.repo.RevokeByUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// PurgeExpired removes rows past their expiry. Intended to run from a
// periodic sweep owned by the binary.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}
