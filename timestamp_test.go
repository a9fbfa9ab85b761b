package tuuid

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestTimestampConversions(t *testing.T) {
	tests := []struct {
		name string
		ms   int64
	}{
		{"unix epoch", 0},
		{"rfc vector", 1645557742000},
		{"recent", 1_700_000_000_123},
		{"before 1970", -1_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := TimestampFromUnixMilli(tt.ms)
			if got := ts.UnixMilli(); got != tt.ms {
				t.Errorf("UnixMilli() = %d, want %d", got, tt.ms)
			}
			if got := ts.UnixTicks(); got != tt.ms*ticksPerMilli {
				t.Errorf("UnixTicks() = %d, want %d", got, tt.ms*ticksPerMilli)
			}
			if got := ts.Time(); !got.Equal(time.UnixMilli(tt.ms)) {
				t.Errorf("Time() = %v, want %v", got, time.UnixMilli(tt.ms))
			}
			if got := TimestampFromTime(time.UnixMilli(tt.ms)); got != ts {
				t.Errorf("TimestampFromTime() = %d, want %d", got, ts)
			}
		})
	}
}

func TestTimestampGregorianEpoch(t *testing.T) {
	epoch := time.Date(1582, 10, 15, 0, 0, 0, 0, time.UTC)
	if got := TimestampFromTime(epoch); got != 0 {
		t.Errorf("TimestampFromTime(1582-10-15) = %d, want 0", got)
	}
	if got := Timestamp(0).Time(); !got.Equal(epoch) {
		t.Errorf("Timestamp(0).Time() = %v, want %v", got, epoch)
	}
	if got := TimestampFromUnixMilli(0); got != gregorianOffset {
		t.Errorf("TimestampFromUnixMilli(0) = %d, want %d", got, uint64(gregorianOffset))
	}
}

func TestTimestampFromTimeTruncates(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	ts := TimestampFromTime(base.Add(150 * time.Nanosecond))
	if got := ts - TimestampFromTime(base); got != 1 {
		t.Errorf("150ns = %d ticks, want 1", got)
	}
}

func TestTimestampSource(t *testing.T) {
	fixed := FixedTimestamp(42)
	if got, err := fixed.base(); err != nil || got != 42 || !fixed.isFixed() {
		t.Errorf("fixed source base() = %d, %v, isFixed() = %t", got, err, fixed.isFixed())
	}

	injected := InjectedClock(func() int64 { return 1000 })
	if got, err := injected.base(); err != nil || got != TimestampFromUnixMilli(1000) || injected.isFixed() {
		t.Errorf("injected source base() = %d, %v", got, err)
	}

	if InjectedClock(nil).String() != "system" {
		t.Error("InjectedClock(nil) should fall back to the system clock")
	}

	before := TimestampFromUnixMilli(time.Now().UnixMilli())
	got, err := SystemTimestamps().base()
	after := TimestampFromUnixMilli(time.Now().UnixMilli())
	if err != nil || got < before || got > after {
		t.Errorf("system source base() = %d, %v, want within [%d, %d]", got, err, before, after)
	}
}

func TestTimestampSourceRange(t *testing.T) {
	tests := []struct {
		name string
		ms   int64
		ok   bool
	}{
		{"gregorian epoch", minClockMilli, true},
		{"before gregorian epoch", minClockMilli - 1, false},
		{"unix epoch", 0, true},
		{"last representable", maxClockMilli, true},
		{"past 60 bits", maxClockMilli + 1, false},
		{"far future", math.MaxInt64, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := tt.ms
			_, err := InjectedClock(func() int64 { return ms }).base()
			if tt.ok && err != nil {
				t.Errorf("base() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrTimestampRange) {
				t.Errorf("base() error = %v, want ErrTimestampRange", err)
			}
		})
	}
}
