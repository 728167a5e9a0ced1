package user

import (
	"time"
)

// User is the authenticated principal. The username is the stable login
// identifier; email must be verified before the account is enabled.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Roles        []string
	Enabled      bool

	// Pending email-verification token, nil once consumed.
	VerificationToken  *string
	VerificationExpiry *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
