package engine

import "sync/atomic"

// Clock is the coordinator's logical clock.
//
// Every committed event is stamped with a strictly increasing seq from this
// clock. The seq orders the event log, and replay applies events in seq
// order. Wall-clock time never orders events.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start, the seq of the last
// committed event.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
