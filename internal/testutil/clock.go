package testutil

import (
	"sync"
	"time"
)

// Clock is a settable wall clock for tests.
//
// Unlike notif.SystemClock it never moves on its own: reconciliation and
// scheduling tests pin "now" to an exact instant (and time zone) so
// next-occurrence math and date keys are reproducible.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClockAt creates a clock frozen at the given instant.
func NewClockAt(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now implements notif.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to an exact instant. Used for day-boundary tests.
func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
