package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nfavre/gatehouse/internal/domain/auth"
)

var _ auth.RefreshTokenRepo = (*RefreshTokenRepo)(nil)

type RefreshTokenRepo struct{ db *DB }

func NewRefreshTokenRepo(db *DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

const (
	qRTCreate = `
INSERT INTO refresh_tokens (user_id, token, issued_at, expires_at, revoked)
VALUES ($1, $2, $3, $4, FALSE)
RETURNING id;`

	qRTFind = `
SELECT id, user_id, token, issued_at, expires_at, revoked
FROM refresh_tokens
WHERE token = $1;`

	qRTDeleteByToken = `DELETE FROM refresh_tokens WHERE token = $1;`
	qRTDeleteByUser  = `DELETE FROM refresh_tokens WHERE user_id = $1;`
	qRTRevoke        = `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1;`
	qRTRevokeByUser  = `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1;`
	qRTDeleteExpired = `DELETE FROM refresh_tokens WHERE expires_at <= NOW();`
)

func (r *RefreshTokenRepo) Create(ctx context.Context, t *auth.RefreshToken) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := r.db.Pool.QueryRow(ctx, qRTCreate, t.UserID, t.Token, t.IssuedAt, t.ExpiresAt).Scan(&t.ID); err != nil {
		return fmt.Errorf("refresh token insert: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) FindByToken(ctx context.Context, token string) (*auth.RefreshToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t auth.RefreshToken
	err := r.db.Pool.QueryRow(ctx, qRTFind, token).
		Scan(&t.ID, &t.UserID, &t.Token, &t.IssuedAt, &t.ExpiresAt, &t.Revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &t, nil
}

func (r *RefreshTokenRepo) DeleteByToken(ctx context.Context, token string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, qRTDeleteByToken, token); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) DeleteByUser(ctx context.Context, userID int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, qRTDeleteByUser, userID); err != nil {
		return fmt.Errorf("delete user refresh tokens: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, token string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, qRTRevoke, token); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) RevokeByUser(ctx context.Context, userID int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, qRTRevokeByUser, userID); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Pool.Exec(ctx, qRTDeleteExpired)
	if err != nil {
		return 0, fmt.Errorf("purge expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
