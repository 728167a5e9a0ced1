package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nfavre/gatehouse/internal/domain/user"
)

var _ user.Store = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const (
	qUserInsert = `
INSERT INTO users (username, email, password_hash, roles, enabled, verification_token, verification_expiry)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, updated_at;`

	qUserSelect = `
SELECT id, username, email, password_hash, roles, enabled, verification_token, verification_expiry, created_at, updated_at
FROM users `

	qUserUpdate = `
UPDATE users
SET email               = $2,
    password_hash       = $3,
    roles               = $4,
    enabled             = $5,
    verification_token  = $6,
    verification_expiry = $7,
    updated_at          = NOW()
WHERE id = $1
RETURNING updated_at;`

	qUserExistsByUsername = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1);`
	qUserExistsByEmail    = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1);`
)

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.Pool.QueryRow(ctx, qUserInsert,
		u.Username, u.Email, u.PasswordHash, u.Roles, u.Enabled, u.VerificationToken, u.VerificationExpiry).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrConflict
		}
		return fmt.Errorf("user insert: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.getOne(ctx, qUserSelect+`WHERE id = $1;`, id)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.getOne(ctx, qUserSelect+`WHERE username = $1;`, username)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, qUserSelect+`WHERE email = $1;`, email)
}

func (r *UserRepo) GetByVerificationToken(ctx context.Context, token string) (*user.User, error) {
	return r.getOne(ctx, qUserSelect+`WHERE verification_token = $1;`, token)
}

func (r *UserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, qUserExistsByUsername, username)
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, qUserExistsByEmail, email)
}

func (r *UserRepo) Update(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.Pool.QueryRow(ctx, qUserUpdate,
		u.ID, u.Email, u.PasswordHash, u.Roles, u.Enabled, u.VerificationToken, u.VerificationExpiry).
		Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.ErrNotFound
		}
		return fmt.Errorf("user update: %w", err)
	}
	return nil
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Roles, &u.Enabled,
		&u.VerificationToken, &u.VerificationExpiry, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) exists(ctx context.Context, query string, arg any) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var found bool
	if err := r.db.Pool.QueryRow(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return found, nil
}
