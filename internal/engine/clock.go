package engine

import "sync/atomic"

// Clock is a monotonic logical clock counting driver iterations.
//
// Log lines and statistics are stamped with its value so one rank's
// timeline can be read without wall-clock time. Safe for concurrent reads
// while the driver goroutine advances it.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current value without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
