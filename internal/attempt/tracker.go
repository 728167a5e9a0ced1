package attempt

import (
	"sync"
	"time"
)

const (
	DefaultMaxAttempts     = 5
	DefaultLockoutDuration = time.Hour
)

type Config struct {
	MaxAttempts     int
	LockoutDuration time.Duration
	Now             func() time.Time
}

// Tracker counts failed logins per identifier and locks an identifier out
// once the threshold is reached. State is process-local; instantiate one
// tracker per process (or per test) rather than sharing a global.
type Tracker struct {
	mu          sync.Mutex
	attempts    map[string]int
	lockedUntil map[string]time.Time

	maxAttempts int
	lockout     time.Duration
	now         func() time.Time
}

func NewTracker(cfg Config) *Tracker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = DefaultLockoutDuration
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Tracker{
		attempts:    make(map[string]int),
		lockedUntil: make(map[string]time.Time),
		maxAttempts: cfg.MaxAttempts,
		lockout:     cfg.LockoutDuration,
		now:         cfg.Now,
	}
}

// RecordFailure increments the counter; reaching the threshold (re)arms a
// lockout window ending at now + lockout duration.
func (t *Tracker) RecordFailure(identifier string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.attempts[identifier]++
	if t.attempts[identifier] >= t.maxAttempts {
		t.lockedUntil[identifier] = t.now().Add(t.lockout)
	}
}

func (t *Tracker) RecordSuccess(identifier string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.attempts, identifier)
	delete(t.lockedUntil, identifier)
}

// IsLocked reports whether the identifier is currently locked out. An
// elapsed lockout is cleared on the way, together with the counter, so the
// identifier gets a full set of attempts again.
func (t *Tracker) IsLocked(identifier string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	until, ok := t.lockedUntil[identifier]
	if !ok {
		return false
	}
	if !t.now().Before(until) {
		delete(t.lockedUntil, identifier)
		delete(t.attempts, identifier)
		return false
	}
	return true
}

func (t *Tracker) RemainingAttempts(identifier string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	remaining := t.maxAttempts - t.attempts[identifier]
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingLockout returns how many whole minutes of the lockout are left,
// floored at zero.
func (t *Tracker) RemainingLockout(identifier string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	until, ok := t.lockedUntil[identifier]
	if !ok {
		return 0
	}
	minutes := int(until.Sub(t.now()).Minutes())
	if minutes < 0 {
		return 0
	}
	return minutes
}
