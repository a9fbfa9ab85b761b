package tuuid

import (
	"crypto/rand"
	"io"
	"sync"
)

// tickState is the mutable part of a monotonic timestamp: the tick at which
// the current millisecond started and how many ticks have been handed out
// inside it.
type tickState struct {
	base    Timestamp
	counter uint32
	started bool
}

// step folds one clock reading into the state and returns the timestamp to
// emit. overran reports that the counter was exhausted on this call; err is
// non-nil only under OverrunFail, in which case the state is left unchanged.
func (s *tickState) step(now Timestamp, seed func() uint32, policy OverrunPolicy) (ts Timestamp, overran bool, err error) {
	if !s.started || now > s.base {
		s.started = true
		s.base = now
		s.counter = seed()
		return s.base + Timestamp(s.counter), false, nil
	}

	// The clock has not advanced or went backwards.
	if s.counter < counterMax {
		s.counter++
		return s.base + Timestamp(s.counter), false, nil
	}

	switch policy {
	case OverrunFail:
		return 0, true, &OverrunError{Timestamp: s.base + Timestamp(s.counter)}
	case OverrunIncrementClockSequence:
		s.counter = 0
	default:
		s.base += ticksPerMilli
		s.counter = 0
	}
	return s.base + Timestamp(s.counter), true, nil
}

// MonotonicTimestampProvider hands out timestamps that never decrease, even
// when the wall clock stalls or moves backwards. It simulates sub-millisecond
// resolution with a tick counter and runs ahead of the wall clock when more
// than 10,000 values are requested within one millisecond.
type MonotonicTimestampProvider struct {
	mu         sync.Mutex
	source     TimestampSource
	randReader io.Reader
	state      tickState
}

// NewMonotonicTimestampProvider creates a provider over source. r seeds the
// counter jitter; nil means crypto/rand.
func NewMonotonicTimestampProvider(source TimestampSource, r io.Reader) *MonotonicTimestampProvider {
	if r == nil {
		r = rand.Reader
	}
	return &MonotonicTimestampProvider{
		source:     source,
		randReader: r,
	}
}

// Next returns the next timestamp. It never blocks and never returns a value
// lower than a previous one. An out-of-range clock reading counts as a stall.
func (p *MonotonicTimestampProvider) Next() Timestamp {
	now, err := p.source.base()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		now = p.state.base
	}
	ts, _, _ := p.state.step(now, p.seed, OverrunAdvance)
	return ts
}

// next is Next with an explicit overrun policy. Out-of-range clock readings
// are returned as errors and leave the state untouched.
func (p *MonotonicTimestampProvider) next(policy OverrunPolicy) (Timestamp, bool, error) {
	now, err := p.source.base()
	if err != nil {
		return 0, false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.step(now, p.seed, policy)
}

// Last returns the most recently emitted timestamp, or 0 before the first call.
func (p *MonotonicTimestampProvider) Last() Timestamp {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.started {
		return 0
	}
	return p.state.base + Timestamp(p.state.counter)
}

// Reset forgets all previously emitted values.
func (p *MonotonicTimestampProvider) Reset() {
	p.mu.Lock()
	p.state = tickState{}
	p.mu.Unlock()
}

// seed picks the counter start for a fresh millisecond. Must be called with p.mu held.
func (p *MonotonicTimestampProvider) seed() uint32 {
	if p.source.isFixed() {
		return 0
	}
	var b [1]byte
	if _, err := io.ReadFull(p.randReader, b[:]); err != nil {
		return 0
	}
	return uint32(b[0]) % jitterRange
}
