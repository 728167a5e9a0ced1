package session

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateIdentifier covers both taken usernames and taken emails;
	// callers get the same error either way.
	ErrDuplicateIdentifier = errors.New("username or email already registered")
	ErrEmailNotVerified    = errors.New("email not verified")
	ErrIncorrectOldPassword = errors.New("incorrect old password")
	ErrSamePassword         = errors.New("new password must differ from the old one")
	ErrWeakPassword         = errors.New("password is too weak")
)

// AccountLockedError reveals only the remaining wait, never the attempt
// count behind it.
type AccountLockedError struct {
	RemainingMinutes int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account temporarily locked, try again in %d minutes", e.RemainingMinutes)
}

// InvalidCredentialsError deliberately does not say whether the username
// or the password was wrong.
type InvalidCredentialsError struct {
	RemainingAttempts int
}

func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("invalid username or password, %d attempts remaining", e.RemainingAttempts)
}
