// Package system provides a real clock implementation.
package system

import "time"

// Clock yields wall-clock time for entitlement expiry checks.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
