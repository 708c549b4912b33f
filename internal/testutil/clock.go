package testutil

import (
	"sync"
	"time"
)

// Clock is a deterministic time source for expiry tests. It only
// moves when told to, so tests control exactly which entries have
// elapsed.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock initialized to a fixed UTC start time.
func NewClock() *Clock {
	return &Clock{
		current: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Now returns the current clock time. Safe for concurrent use; caches
// under test read it from inside their operations.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
}
