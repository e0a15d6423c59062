// Package system provides the wall clock.
package system

import "time"

// Clock implements capture.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to microseconds, the precision Postgres
// timestamps keep.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
