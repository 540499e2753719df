package testutil

import (
	"sync"
	"time"
)

// StepClock is a vbs.Clock that starts at a fixed time
// and advances by a fixed step each time it's read.
type StepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewStepClock produces a StepClock whose first reading is start.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{next: start, step: step}
}

// Now implements vbs.Clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

// Set changes the clock's next reading.
func (c *StepClock) Set(t time.Time) {
	c.mu.Lock()
	c.next = t
	c.mu.Unlock()
}
