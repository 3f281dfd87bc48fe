package recon

import (
	"time"
)

// =============================================================================
// INSTANT - The single internal time value
// =============================================================================

// Instant is a UTC point in time with millisecond granularity.
//
// Source data arrives with heterogeneous date representations: plain date
// strings, RFC3339 strings, native time values, and store timestamps
// carrying seconds/nanoseconds pairs. All of them are normalized to an
// Instant at the I/O boundary; internal logic never sees anything else.
type Instant struct {
	ms int64 // milliseconds since the Unix epoch, UTC
}

// Constructors - the one conversion surface.

func InstantFromTime(t time.Time) Instant {
	return Instant{ms: t.UnixMilli()}
}

func InstantFromMillis(ms int64) Instant {
	return Instant{ms: ms}
}

// InstantFromUnixParts converts a store timestamp (seconds + nanoseconds).
func InstantFromUnixParts(seconds int64, nanos int32) Instant {
	return Instant{ms: seconds*1000 + int64(nanos)/1e6}
}

// ParseInstant accepts RFC3339 ("2024-03-10T14:00:00Z") and plain date
// ("2024-03-10") strings. Anything else is a ValidationError; malformed
// dates are never coerced to a default.
func ParseInstant(s string) (Instant, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return InstantFromTime(t), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return InstantFromTime(t), nil
	}
	return Instant{}, &ValidationError{Field: "date", Value: s, Reason: "not RFC3339 or YYYY-MM-DD"}
}

// NewInstant builds an Instant at midnight UTC of the given day.
func NewInstant(year int, month time.Month, day int) Instant {
	return InstantFromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// Comparison

func (i Instant) Before(o Instant) bool { return i.ms < o.ms }
func (i Instant) After(o Instant) bool  { return i.ms > o.ms }
func (i Instant) Equal(o Instant) bool  { return i.ms == o.ms }
func (i Instant) IsZero() bool          { return i.ms == 0 }

// Arithmetic

func (i Instant) AddMillis(n int64) Instant { return Instant{ms: i.ms + n} }
func (i Instant) AddDays(n int) Instant     { return Instant{ms: i.ms + int64(n)*millisPerDay} }

// SubMillis returns i - o in milliseconds.
func (i Instant) SubMillis(o Instant) int64 { return i.ms - o.ms }

const millisPerDay = 24 * 60 * 60 * 1000

// Properties

func (i Instant) Time() time.Time    { return time.UnixMilli(i.ms).UTC() }
func (i Instant) UnixMillis() int64  { return i.ms }
func (i Instant) Year() int          { return i.Time().Year() }
func (i Instant) Month() time.Month  { return i.Time().Month() }
func (i Instant) Day() int           { return i.Time().Day() }

func (i Instant) String() string {
	return i.Time().Format(time.RFC3339)
}

// Max returns the later of the two instants.
func (i Instant) Max(o Instant) Instant {
	if o.After(i) {
		return o
	}
	return i
}

// Now returns the current instant. Orchestrators take a clock function so
// tests can pin it.
func Now() Instant { return InstantFromTime(time.Now()) }
