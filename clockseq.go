package tuuid

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"math/bits"
	"sync"
	"time"
)

// ClockSequence is the 14-bit disambiguator of v1 and v6 UUIDs.
type ClockSequence uint16

const (
	// ClockSequenceCount is the size of the clock-sequence space.
	ClockSequenceCount = 1 << 14

	clockSequenceMask = ClockSequenceCount - 1
	poolWords         = ClockSequenceCount / 64
)

// ClockSequencePool tracks which clock sequences are held by generators so
// that two generators sharing a node identifier never share a clock sequence.
// Values are never released explicitly: when every slot is taken the pool
// clears itself and starts over.
type ClockSequencePool struct {
	mu         sync.Mutex
	used       [poolWords]uint64
	randReader io.Reader
	resets     uint64
}

// NewClockSequencePool creates an empty pool. Tests should prefer their own
// pool over DefaultClockSequencePool.
func NewClockSequencePool() *ClockSequencePool {
	return &ClockSequencePool{randReader: rand.Reader}
}

var (
	defaultPool     *ClockSequencePool
	defaultPoolOnce sync.Once
)

// DefaultClockSequencePool returns the pool shared by generators that were
// not given one explicitly. It is created on first use.
func DefaultClockSequencePool() *ClockSequencePool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewClockSequencePool()
	})
	return defaultPool
}

// Take marks and returns the first free clock sequence at or after preferred,
// wrapping once around the space. If every value is in use the pool is
// cleared and preferred is handed out again.
func (p *ClockSequencePool) Take(preferred ClockSequence) ClockSequence {
	cs, _ := p.take(preferred)
	return cs
}

// take is Take that also reports whether this call cleared the pool.
func (p *ClockSequencePool) take(preferred ClockSequence) (ClockSequence, bool) {
	start := int(preferred) & clockSequenceMask

	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < ClockSequenceCount; i++ {
		idx := (start + i) & clockSequenceMask
		word, bit := idx/64, uint(idx%64)
		if p.used[word]&(1<<bit) == 0 {
			p.used[word] |= 1 << bit
			return ClockSequence(idx), false
		}
	}

	p.used = [poolWords]uint64{}
	p.resets++
	p.used[start/64] |= 1 << uint(start%64)
	return ClockSequence(start), true
}

// Random takes a clock sequence starting from a uniformly random position.
func (p *ClockSequencePool) Random() ClockSequence {
	return p.Take(p.randomStart())
}

func (p *ClockSequencePool) randomStart() ClockSequence {
	var b [2]byte
	r := p.randReader
	if r == nil {
		r = rand.Reader
	}
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return ClockSequence(time.Now().UnixNano() & clockSequenceMask)
	}
	return ClockSequence(binary.BigEndian.Uint16(b[:]) & clockSequenceMask)
}

// IsUsed reports whether cs is currently held.
func (p *ClockSequencePool) IsUsed(cs ClockSequence) bool {
	idx := int(cs) & clockSequenceMask
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used[idx/64]&(1<<uint(idx%64)) != 0
}

// CountUsed returns how many clock sequences are held.
func (p *ClockSequencePool) CountUsed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, w := range p.used {
		n += bits.OnesCount64(w)
	}
	return n
}

// Resets returns how many times the pool ran full and cleared itself.
func (p *ClockSequencePool) Resets() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resets
}

// Clear releases every clock sequence.
func (p *ClockSequencePool) Clear() {
	p.mu.Lock()
	p.used = [poolWords]uint64{}
	p.mu.Unlock()
}
