package domain

import "time"

// Clock supplies the trusted current time. All time-gated transitions
// (bet cutoff, resolution eligibility, voting-window expiry) read from a
// Clock so tests can pin time precisely.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock in UTC.
type RealClock struct{}

// Now returns the current UTC time.
func (RealClock) Now() time.Time { return time.Now().UTC() }
