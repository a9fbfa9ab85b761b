package tuuid

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock is a settable millisecond clock.
type manualClock struct {
	mu sync.Mutex
	ms int64
}

func (c *manualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ms
}

func (c *manualClock) Set(ms int64) {
	c.mu.Lock()
	c.ms = ms
	c.mu.Unlock()
}

func (c *manualClock) Advance(ms int64) { c.Set(c.Now() + ms) }

// zeroReader yields zero bytes, making jitter deterministic.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("broken reader") }

func TestMonotonicSystemClockMillionCalls(t *testing.T) {
	p := NewMonotonicTimestampProvider(SystemTimestamps(), nil)
	prev := p.Next()
	for i := 0; i < 1_000_000; i++ {
		ts := p.Next()
		if ts <= prev {
			t.Fatalf("call %d: %d not after %d", i, ts, prev)
		}
		prev = ts
	}
	assert.Equal(t, prev, p.Last())
}

func TestMonotonicBackwardJumps(t *testing.T) {
	clock := &manualClock{ms: 1_700_000_000_000}
	p := NewMonotonicTimestampProvider(InjectedClock(clock.Now), nil)

	prev := p.Next()
	steps := []int64{1, 0, -5, -1000, 3, 0, -60_000, 2, 86_400_000, -86_400_000}
	for _, step := range steps {
		clock.Advance(step)
		for i := 0; i < 500; i++ {
			ts := p.Next()
			require.Greater(t, ts, prev, "step %d call %d", step, i)
			prev = ts
		}
	}
}

func TestMonotonicJitterOnAdvance(t *testing.T) {
	clock := &manualClock{ms: 1_000}
	p := NewMonotonicTimestampProvider(InjectedClock(clock.Now), bytes.NewReader([]byte{7, 255}))

	assert.Equal(t, TimestampFromUnixMilli(1_000)+7, p.Next())
	assert.Equal(t, TimestampFromUnixMilli(1_000)+8, p.Next())

	clock.Advance(1)
	assert.Equal(t, TimestampFromUnixMilli(1_001)+255, p.Next())
}

func TestMonotonicFixedSource(t *testing.T) {
	base := TimestampFromUnixMilli(1_700_000_000_000)
	p := NewMonotonicTimestampProvider(FixedTimestamp(base), nil)

	for i := 0; i < ticksPerMilli; i++ {
		require.Equal(t, base+Timestamp(i), p.Next())
	}
	// runs ahead into the next millisecond
	assert.Equal(t, base+ticksPerMilli, p.Next())
	assert.Equal(t, base+ticksPerMilli+1, p.Next())
}

func TestMonotonicBrokenReaderStillAdvances(t *testing.T) {
	clock := &manualClock{ms: 5}
	p := NewMonotonicTimestampProvider(InjectedClock(clock.Now), brokenReader{})
	a := p.Next()
	clock.Advance(1)
	b := p.Next()
	assert.Equal(t, TimestampFromUnixMilli(5), a)
	assert.Equal(t, TimestampFromUnixMilli(6), b)
}

func TestMonotonicOutOfRangeReadingStalls(t *testing.T) {
	clock := &manualClock{ms: 1_700_000_000_000}
	p := NewMonotonicTimestampProvider(InjectedClock(clock.Now), zeroReader{})
	a := p.Next()

	clock.Set(minClockMilli - 1)
	b := p.Next()
	assert.Equal(t, a+1, b)

	_, _, err := p.next(OverrunAdvance)
	assert.ErrorIs(t, err, ErrTimestampRange)
	assert.Equal(t, b, p.Last())

	clock.Set(1_700_000_000_001)
	assert.Equal(t, TimestampFromUnixMilli(1_700_000_000_001), p.Next())
}

func TestMonotonicReset(t *testing.T) {
	base := TimestampFromUnixMilli(10)
	p := NewMonotonicTimestampProvider(FixedTimestamp(base), nil)
	p.Next()
	p.Next()
	p.Reset()
	assert.Equal(t, Timestamp(0), p.Last())
	assert.Equal(t, base, p.Next())
}

func TestTickStateOverrunPolicies(t *testing.T) {
	now := TimestampFromUnixMilli(1)
	seed := func() uint32 { return 0 }

	exhausted := func() tickState { return tickState{base: now, counter: counterMax, started: true} }

	s := exhausted()
	ts, overran, err := s.step(now, seed, OverrunAdvance)
	require.NoError(t, err)
	assert.True(t, overran)
	assert.Equal(t, now+ticksPerMilli, ts)

	s = exhausted()
	ts, overran, err = s.step(now, seed, OverrunIncrementClockSequence)
	require.NoError(t, err)
	assert.True(t, overran)
	assert.Equal(t, now, ts)

	s = exhausted()
	_, overran, err = s.step(now, seed, OverrunFail)
	assert.True(t, overran)
	var oe *OverrunError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, now+counterMax, oe.Timestamp)
	assert.Equal(t, exhausted(), s, "fail-fast must leave the state untouched")

	// a clock advance clears the condition
	ts, overran, err = s.step(now+ticksPerMilli, seed, OverrunFail)
	require.NoError(t, err)
	assert.False(t, overran)
	assert.Equal(t, now+ticksPerMilli, ts)
}

func TestMonotonicConcurrent(t *testing.T) {
	p := NewMonotonicTimestampProvider(SystemTimestamps(), zeroReader{})
	const workers, perWorker = 8, 20_000

	results := make([][]Timestamp, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			out := make([]Timestamp, perWorker)
			for i := range out {
				out[i] = p.Next()
			}
			results[w] = out
		}(w)
	}
	wg.Wait()

	seen := make(map[Timestamp]bool, workers*perWorker)
	for _, out := range results {
		for i, ts := range out {
			require.False(t, seen[ts], "duplicate timestamp %d", ts)
			seen[ts] = true
			if i > 0 {
				require.Greater(t, ts, out[i-1])
			}
		}
	}
}
