package user

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by implementations when no user matches.
	ErrNotFound = errors.New("user not found")
	// ErrConflict is returned when a unique constraint (username, email)
	// would be violated.
	ErrConflict = errors.New("user already exists")
)

type Store interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByVerificationToken(ctx context.Context, token string) (*User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, u *User) error
}
