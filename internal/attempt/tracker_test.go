package attempt

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// steppable clock shared by the tracker tests.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker(c *clock) *Tracker {
	return NewTracker(Config{MaxAttempts: 5, LockoutDuration: time.Hour, Now: c.Now})
}

func TestLockoutThreshold(t *testing.T) {
	tr := newTestTracker(newClock())

	for i := 0; i < 4; i++ {
		tr.RecordFailure("bob")
	}
	require.False(t, tr.IsLocked("bob"))
	require.Equal(t, 1, tr.RemainingAttempts("bob"))

	tr.RecordFailure("bob")
	require.True(t, tr.IsLocked("bob"))
	require.Equal(t, 0, tr.RemainingAttempts("bob"))
}

func TestSuccessClearsState(t *testing.T) {
	tr := newTestTracker(newClock())

	tr.RecordFailure("bob")
	tr.RecordFailure("bob")
	tr.RecordSuccess("bob")

	require.False(t, tr.IsLocked("bob"))
	require.Equal(t, 5, tr.RemainingAttempts("bob"))
}

func TestLockoutSelfHeals(t *testing.T) {
	c := newClock()
	tr := newTestTracker(c)

	for i := 0; i < 5; i++ {
		tr.RecordFailure("bob")
	}
	require.True(t, tr.IsLocked("bob"))

	c.Advance(time.Hour)
	require.False(t, tr.IsLocked("bob"))
	// Full reset: the counter went with the lockout.
	require.Equal(t, 5, tr.RemainingAttempts("bob"))
}

func TestRemainingLockout(t *testing.T) {
	c := newClock()
	tr := newTestTracker(c)

	require.Equal(t, 0, tr.RemainingLockout("bob"))

	for i := 0; i < 5; i++ {
		tr.RecordFailure("bob")
	}
	require.Equal(t, 60, tr.RemainingLockout("bob"))

	c.Advance(30 * time.Minute)
	require.Equal(t, 30, tr.RemainingLockout("bob"))

	c.Advance(2 * time.Hour)
	require.Equal(t, 0, tr.RemainingLockout("bob"))
}

func TestRepeatedFailureExtendsLockout(t *testing.T) {
	c := newClock()
	tr := newTestTracker(c)

	for i := 0; i < 5; i++ {
		tr.RecordFailure("bob")
	}
	c.Advance(30 * time.Minute)
	tr.RecordFailure("bob")
	// The window is re-armed from the latest failure.
	require.Equal(t, 60, tr.RemainingLockout("bob"))
}

func TestIdentifiersAreIndependent(t *testing.T) {
	tr := newTestTracker(newClock())

	for i := 0; i < 5; i++ {
		tr.RecordFailure("bob")
	}
	require.True(t, tr.IsLocked("bob"))
	require.False(t, tr.IsLocked("alice"))
	require.Equal(t, 5, tr.RemainingAttempts("alice"))
}

func TestConcurrentFailuresLoseNoIncrements(t *testing.T) {
	tr := NewTracker(Config{MaxAttempts: 1000, LockoutDuration: time.Hour, Now: newClock().Now})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				tr.RecordFailure("bob")
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1000-500, tr.RemainingAttempts("bob"))
}

func TestConcurrentSuccessAndFailureStayConsistent(t *testing.T) {
	tr := newTestTracker(newClock())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.RecordFailure("bob")
		}()
		go func() {
			defer wg.Done()
			tr.RecordSuccess("bob")
		}()
	}
	wg.Wait()

	// Whatever interleaving happened, the two maps must agree: either a
	// live lockout with zero remaining attempts, or a plain counter state.
	if tr.IsLocked("bob") {
		require.Equal(t, 0, tr.RemainingAttempts("bob"))
	} else {
		require.GreaterOrEqual(t, tr.RemainingAttempts("bob"), 0)
	}
}
