package temporal

import (
	"sync"
	"time"
)

// Clock supplies effective timestamps for mutations that do not receive
// an explicit one (e.g. the CLI's default "now").
//
// Timestamps are truncated to microseconds, the precision backends store.
type Clock interface {
	Now() time.Time
}

// Normalize reduces a caller-supplied timestamp to stored precision:
// UTC, truncated to microseconds. Mutations normalize before any
// ordering check so a sub-microsecond difference can never pass the
// check and then collapse to a zero-width interval on write.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// WallClock reads the system clock in UTC.
type WallClock struct{}

// Now returns the current UTC time at microsecond precision.
func (WallClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// SteppingClock returns a fixed base time advanced by a fixed step on
// each call. Used by tests and the scenario harness so the same run
// produces byte-identical histories.
//
// Thread-safety: all methods are safe for concurrent use.
type SteppingClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewSteppingClock creates a clock whose first Now() returns base.
func NewSteppingClock(base time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{next: base.UTC().Truncate(time.Microsecond), step: step}
}

// Now returns the current tick and advances the clock by one step.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}
