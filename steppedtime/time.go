package steppedtime

import (
	"cmp"
	"time"
)

// See [time.Duration].
type Duration = time.Duration

// Duration constants.
const (
	Nanosecond  = time.Nanosecond
	Microsecond = time.Microsecond
	Millisecond = time.Millisecond
	Second      = time.Second
	Minute      = time.Minute
	Hour        = time.Hour
)

// Helpers for generating Duration values

// Nanoseconds returns a Duration value representing n nanoseconds.
func (*Clock) Nanoseconds(n int64) Duration {
	return Duration(n * int64(Nanosecond))
}

// Milliseconds returns a Duration value representing n milliseconds.
func (*Clock) Milliseconds(n int64) Duration {
	return Duration(n * int64(Millisecond))
}

// Seconds returns a Duration value representing n Seconds.
func (*Clock) Seconds(n float64) Duration {
	return Duration(n * float64(Second))
}

// ParseDuration parses a duration string such as "300ms", "-1.5h" or
// "2h45m". See [time.ParseDuration].
func (*Clock) ParseDuration(s string) (Duration, error) {
	return time.ParseDuration(s)
}

// Time is a count of nanoseconds since the clock started. The zero Time is
// the start of the clock.
type Time int64

// Add returns the time t+d.
func (t Time) Add(d Duration) Time {
	return t + Time(d)
}

// Sub returns the duration t-u.
func (t Time) Sub(u Time) Duration {
	return Duration(t - u)
}

// Compare returns -1 if t is before u, +1 if t is after u, and 0 if they
// are the same instant.
func (t Time) Compare(u Time) int {
	return cmp.Compare(t, u)
}

// After reports whether t is after u.
func (t Time) After(u Time) bool { return t > u }

// Before reports whether t is before u.
func (t Time) Before(u Time) bool { return t < u }

// Equal reports whether t and u are the same instant.
func (t Time) Equal(u Time) bool { return t == u }

// IsZero reports whether t is the start of the clock.
func (t Time) IsZero() bool { return t == 0 }

// String formats t as the elapsed duration since the start of the clock,
// prefixed with "T+".
func (t Time) String() string {
	return "T+" + Duration(t).String()
}

