package tracking

import "sync/atomic"

// Clock is a monotonic revision counter shared by a set of cells.
//
// Every write stamps the cell with the next revision, so two writes never
// share a revision even when they store equal values.
type Clock struct {
	rev atomic.Uint64
}

// NewClock creates a clock starting at revision 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new revision.
func (c *Clock) Next() uint64 {
	return c.rev.Add(1)
}

// Current returns the latest revision handed out.
func (c *Clock) Current() uint64 {
	return c.rev.Load()
}
