package tuuid

import (
	"fmt"
	"strings"
)

// OverrunPolicy decides what a generator does when more than 10,000
// timestamps are requested before the clock moves to the next millisecond.
type OverrunPolicy uint8

const (
	// OverrunAdvance reports the next millisecond ahead of the wall clock.
	OverrunAdvance OverrunPolicy = iota
	// OverrunIncrementClockSequence restarts the counter inside the same
	// millisecond and moves the generator to the next free clock sequence.
	// Timestamps repeat, so ordering within that millisecond degrades.
	OverrunIncrementClockSequence
	// OverrunFail returns an *OverrunError until the clock advances.
	OverrunFail
)

func (p OverrunPolicy) String() string {
	switch p {
	case OverrunAdvance:
		return "advance"
	case OverrunIncrementClockSequence:
		return "increment"
	case OverrunFail:
		return "fail"
	default:
		return fmt.Sprintf("OverrunPolicy(%d)", uint8(p))
	}
}

// ParseOverrunPolicy accepts the names produced by String.
func ParseOverrunPolicy(s string) (OverrunPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "advance":
		return OverrunAdvance, nil
	case "increment", "increment-clock-sequence", "increment_clock_sequence":
		return OverrunIncrementClockSequence, nil
	case "fail", "fail-fast", "fail_fast":
		return OverrunFail, nil
	default:
		return 0, fmt.Errorf("tuuid: unknown overrun policy %q", s)
	}
}
