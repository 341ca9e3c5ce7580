package runtime

import (
	"sync"
	"time"
)

// Clock is the ledger's wall-clock oracle.
type Clock interface {
	// UnixTimestamp returns the current ledger time in unix seconds.
	UnixTimestamp() int64
}

// SystemClock reads the host clock.
type SystemClock struct{}

// UnixTimestamp returns the host time.
func (SystemClock) UnixTimestamp() int64 {
	return time.Now().Unix()
}

// ManualClock is a settable clock.
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

// NewManualClock returns a clock frozen at now.
func NewManualClock(now int64) *ManualClock {
	return &ManualClock{now: now}
}

// UnixTimestamp returns the clock's current value.
func (c *ManualClock) UnixTimestamp() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to now.
func (c *ManualClock) Set(now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance moves the clock forward, saturating instead of overflowing.
func (c *ManualClock) Advance(seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seconds > 0 && c.now > (1<<63-1)-seconds {
		c.now = 1<<63 - 1
		return
	}
	c.now += seconds
}
