package events

import (
	"sync"
	"time"
)

// Clock hands out insert timestamps that never go backwards, even if the wall
// clock is adjusted or two inserts land in the same instant.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewClock returns a Clock reading from now. A nil now uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Next returns a UTC timestamp strictly after every value previously returned.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

var storeClock = NewClock(nil)
