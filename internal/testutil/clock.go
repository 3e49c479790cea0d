package testutil

import (
	"sync"
	"time"
)

// FixedClock is a settable wall clock for tests.
//
// Unlike params.SystemClock, FixedClock only moves when told to. This keeps
// date macros such as "today" and helpers such as daterange reproducible
// across runs and golden snapshots.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock frozen at now, converted to UTC.
//
// A zero now selects 2024-03-15T10:30:00Z.
func NewFixedClock(now time.Time) *FixedClock {
	if now.IsZero() {
		now = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)
	}
	return &FixedClock{now: now.UTC()}
}

// ParseFixedClock creates a clock from an RFC 3339 timestamp.
func ParseFixedClock(s string) (*FixedClock, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return NewFixedClock(t), nil
}

// Now returns the frozen instant.
//
// Implements params.Clock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
