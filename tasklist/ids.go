package tasklist

import (
	"sync"
	"time"
)

// IDSource hands out task ids
type IDSource interface {
	Next() int64
}

// ClockIDs generates creation-timestamp ids in unix milliseconds. Two calls
// within the same millisecond get consecutive values instead of colliding.
type ClockIDs struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewClockIDs creates a ClockIDs reading the wall clock
func NewClockIDs() *ClockIDs {
	return &ClockIDs{now: time.Now}
}

// Next returns max(now, last+1)
func (c *ClockIDs) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.now().UnixMilli()
	if id <= c.last {
		id = c.last + 1
	}
	c.last = id
	return id
}
