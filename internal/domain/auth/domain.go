package auth

import (
	"time"
)

// RefreshToken is the persisted long-lived credential. The opaque Token
// value doubles as the lookup key; at most one non-deleted row exists per
// user, since issuing a new token deletes the previous one first.
type RefreshToken struct {
	ID        int64
	UserID    int64
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}
