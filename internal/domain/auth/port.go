package auth

import (
	"context"
	"errors"
)

// ErrNotFound is returned by implementations when no row matches.
var ErrNotFound = errors.New("refresh token not found")

type RefreshTokenRepo interface {
	Create(ctx context.Context, t *RefreshToken) error
	FindByToken(ctx context.Context, token string) (*RefreshToken, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID int64) error
	Revoke(ctx context.Context, token string) error
	RevokeByUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context) (int64, error)
}
