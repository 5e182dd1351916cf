// Package testutil holds helpers shared by tests.
package testutil

import "time"

// Clock is a manually advanced time source for stores under test.
type Clock struct {
	current time.Time
}

// NewClock returns a clock at a fixed local start time with non-zero seconds,
// so minute truncation is observable.
func NewClock() *Clock {
	return &Clock{current: time.Date(2024, time.March, 5, 9, 41, 27, 0, time.Local)}
}

// Now returns the current time. Pass the method value as a Now func.
func (c *Clock) Now() time.Time {
	return c.current
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}
