package tuuid

import (
	"fmt"
	"time"
)

// Timestamp counts 100-nanosecond ticks since the Gregorian epoch
// 1582-10-15T00:00:00Z. Only the low 60 bits are ever placed in a UUID.
type Timestamp uint64

const (
	// gregorianOffset is the number of ticks between 1582-10-15 and 1970-01-01.
	gregorianOffset = 122192928000000000

	ticksPerMilli = 10000
	ticksPerSec   = 10000000

	// MaxTimestamp is the largest value representable in the 60-bit field.
	MaxTimestamp Timestamp = 1<<60 - 1

	// counterMax is the last sub-millisecond tick: 10,000 ticks per ms.
	counterMax = ticksPerMilli - 1

	// jitterRange bounds the counter seed picked when the clock advances.
	jitterRange = 256

	// Clock readings outside [minClockMilli, maxClockMilli] have no
	// 60-bit Gregorian representation and are rejected.
	minClockMilli = -gregorianOffset / ticksPerMilli
	maxClockMilli = (int64(MaxTimestamp) - counterMax - gregorianOffset) / ticksPerMilli
)

// Clock reports wall-clock time in Unix milliseconds.
type Clock func() int64

// SystemClock is the operating system wall clock.
func SystemClock() int64 { return time.Now().UnixMilli() }

// TimestampFromUnixMilli converts Unix milliseconds to the Gregorian tick scale.
// The result wraps for ms before 1582-10-15.
func TimestampFromUnixMilli(ms int64) Timestamp {
	return Timestamp(ms*ticksPerMilli + gregorianOffset)
}

// TimestampFromTime converts t to the Gregorian tick scale, truncating to 100ns.
func TimestampFromTime(t time.Time) Timestamp {
	sec := t.Unix()
	return Timestamp(sec*ticksPerSec + int64(t.Nanosecond()/100) + gregorianOffset)
}

// UnixTicks returns 100-nanosecond ticks since the Unix epoch. Negative for
// timestamps before 1970.
func (ts Timestamp) UnixTicks() int64 {
	return int64(ts) - gregorianOffset
}

// UnixMilli returns milliseconds since the Unix epoch.
func (ts Timestamp) UnixMilli() int64 {
	t := ts.UnixTicks()
	if t < 0 {
		return (t - ticksPerMilli + 1) / ticksPerMilli
	}
	return t / ticksPerMilli
}

// Time converts the timestamp to a time.Time in UTC.
func (ts Timestamp) Time() time.Time {
	t := ts.UnixTicks()
	sec := t / ticksPerSec
	rem := t % ticksPerSec
	if rem < 0 {
		sec--
		rem += ticksPerSec
	}
	return time.Unix(sec, rem*100).UTC()
}

type sourceKind uint8

const (
	sourceSystem sourceKind = iota
	sourceFixed
	sourceInjected
)

// TimestampSource selects where a generator reads time from.
type TimestampSource struct {
	kind  sourceKind
	fixed Timestamp
	clock Clock
}

// SystemTimestamps reads the operating system clock.
func SystemTimestamps() TimestampSource {
	return TimestampSource{kind: sourceSystem, clock: SystemClock}
}

// FixedTimestamp freezes the clock at ts. The sub-millisecond counter still
// advances, so a fixed source yields 10,000 distinct values before overrun.
func FixedTimestamp(ts Timestamp) TimestampSource {
	return TimestampSource{kind: sourceFixed, fixed: ts & MaxTimestamp}
}

// InjectedClock reads milliseconds from c. Used by tests to freeze or rewind time.
func InjectedClock(c Clock) TimestampSource {
	if c == nil {
		return SystemTimestamps()
	}
	return TimestampSource{kind: sourceInjected, clock: c}
}

// base returns the counter-zero tick of the current reading. A reading with
// no 60-bit representation yields ErrTimestampRange.
func (s TimestampSource) base() (Timestamp, error) {
	if s.kind == sourceFixed {
		return s.fixed, nil
	}
	clock := s.clock
	if clock == nil {
		clock = SystemClock
	}
	ms := clock()
	if ms < minClockMilli || ms > maxClockMilli {
		return 0, fmt.Errorf("clock reading %d ms: %w", ms, ErrTimestampRange)
	}
	return TimestampFromUnixMilli(ms), nil
}

func (s TimestampSource) isFixed() bool { return s.kind == sourceFixed }

func (s TimestampSource) String() string {
	switch s.kind {
	case sourceFixed:
		return "fixed"
	case sourceInjected:
		return "injected"
	default:
		return "system"
	}
}
