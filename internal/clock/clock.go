// Package clock lets services take the current time from an injected source.
package clock

import "time"

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
}

type system struct{}

// System returns a clock backed by time.Now in UTC.
func System() Clock { return system{} }

func (system) Now() time.Time { return time.Now().UTC() }

// Fixed always returns t. Tests use it to pin order timestamps.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f).UTC() }
