// Package system provides the wall clock used by the refresher.
package system

import "time"

// Clock implements testimony.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current wall-clock time. The monotonic reading is kept so staleness
// checks are immune to wall-clock jumps.
func (Clock) Now() time.Time {
	return time.Now()
}
