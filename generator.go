package tuuid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Lzww0608/tuuid/internal/log"
)

// Generator is a thread-safe generator of v1, v6 or v7 UUIDs. Each generator
// owns a monotonic timestamp provider and, for v1 and v6, one clock sequence
// taken from a shared pool.
type Generator struct {
	mu         sync.Mutex
	version    Version
	clock      *MonotonicTimestampProvider
	pool       *ClockSequencePool
	node       NodeIdentifier
	policy     OverrunPolicy
	clockSeq   ClockSequence
	randReader io.Reader
	logger     zerolog.Logger
}

type generatorOptions struct {
	source     TimestampSource
	nodeSource NodeSource
	policy     OverrunPolicy
	pool       *ClockSequencePool
	clockSeq   *ClockSequence
	randReader io.Reader
	logger     *zerolog.Logger
}

// Option configures a Generator.
type Option func(*generatorOptions)

// WithNodeIdentifier pins the node field instead of resolving one.
func WithNodeIdentifier(n NodeIdentifier) Option {
	return func(o *generatorOptions) { o.nodeSource = FixedNode(n) }
}

// WithNodeSource selects where node resolution starts.
func WithNodeSource(s NodeSource) Option {
	return func(o *generatorOptions) { o.nodeSource = s }
}

// WithFixedTimestamp freezes the clock at ts.
func WithFixedTimestamp(ts Timestamp) Option {
	return func(o *generatorOptions) { o.source = FixedTimestamp(ts) }
}

// WithClock reads wall-clock milliseconds from c.
func WithClock(c Clock) Option {
	return func(o *generatorOptions) { o.source = InjectedClock(c) }
}

// WithTimestampSource sets the timestamp source directly.
func WithTimestampSource(s TimestampSource) Option {
	return func(o *generatorOptions) { o.source = s }
}

// WithOverrunPolicy sets what happens when the sub-millisecond counter runs out.
func WithOverrunPolicy(p OverrunPolicy) Option {
	return func(o *generatorOptions) { o.policy = p }
}

// WithClockSequencePool draws clock sequences from p instead of the process pool.
func WithClockSequencePool(p *ClockSequencePool) Option {
	return func(o *generatorOptions) { o.pool = p }
}

// WithClockSequence asks the pool for cs; the next free value is used if cs is taken.
func WithClockSequence(cs ClockSequence) Option {
	return func(o *generatorOptions) {
		cs &= clockSequenceMask
		o.clockSeq = &cs
	}
}

// WithRandReader replaces crypto/rand for counter jitter, random node bits
// and v7 random fields.
func WithRandReader(r io.Reader) Option {
	return func(o *generatorOptions) { o.randReader = r }
}

// WithLogger sets the logger used for node resolution and overrun events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *generatorOptions) { o.logger = &l }
}

// NewGenerator creates a generator for version 1, 6 or 7. For v1 and v6 the
// node identifier is resolved and a clock sequence is taken immediately.
func NewGenerator(v Version, opts ...Option) (*Generator, error) {
	if !v.IsTimeBased() {
		return nil, fmt.Errorf("version %d: %w", v, ErrInvalidVersion)
	}

	o := generatorOptions{
		source:     SystemTimestamps(),
		nodeSource: HardwareNode(),
		policy:     OverrunAdvance,
		randReader: rand.Reader,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.randReader == nil {
		o.randReader = rand.Reader
	}
	if o.pool == nil {
		o.pool = DefaultClockSequencePool()
	}
	logger := log.Component("tuuid")
	if o.logger != nil {
		logger = *o.logger
	}
	logger = logger.With().Uint8(log.FieldVersion, uint8(v)).Logger()

	g := &Generator{
		version:    v,
		clock:      NewMonotonicTimestampProvider(o.source, o.randReader),
		pool:       o.pool,
		policy:     o.policy,
		randReader: o.randReader,
		logger:     logger,
	}

	if v != VersionUnixTime {
		g.node = NewNodeIdentifierProvider(o.nodeSource, o.randReader, logger).Resolve()
		if o.clockSeq != nil {
			g.clockSeq = g.takeClockSequence(*o.clockSeq)
		} else {
			g.clockSeq = g.takeClockSequence(o.pool.randomStart())
		}
	}
	return g, nil
}

// takeClockSequence takes from the pool and logs when the pool had to reset.
func (g *Generator) takeClockSequence(preferred ClockSequence) ClockSequence {
	cs, reset := g.pool.take(preferred)
	if reset {
		g.logger.Debug().Uint16("clock_seq", uint16(cs)).Msg("clock sequence pool exhausted, cleared")
	}
	return cs
}

// New generates the next UUID. Values from one generator are unique and, for
// v6 and v7 under the default overrun policy, strictly increasing.
func (g *Generator) New() (UUID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts, overran, err := g.clock.next(g.policy)
	if err != nil {
		g.logger.Debug().Err(err).Msg("sub-millisecond counter exhausted")
		return Nil, err
	}
	if overran {
		g.logger.Debug().Stringer("policy", g.policy).Uint64("timestamp", uint64(ts)).Msg("sub-millisecond counter overrun")
		if g.policy == OverrunIncrementClockSequence && g.version != VersionUnixTime {
			g.clockSeq = g.takeClockSequence(g.clockSeq + 1)
		}
	}

	if g.version == VersionUnixTime {
		return g.assembleV7(ts)
	}
	if ts > MaxTimestamp {
		return Nil, fmt.Errorf("%d exceeds 60 bits: %w", uint64(ts), ErrTimestampRange)
	}
	return Assemble(g.version, Fields{Timestamp: ts, ClockSequence: g.clockSeq, Node: g.node})
}

// assembleV7 places the Unix millisecond in unix_ts_ms and the 14-bit
// sub-millisecond counter across rand_a and the top two bits of rand_b.
func (g *Generator) assembleV7(ts Timestamp) (UUID, error) {
	ticks := ts.UnixTicks()
	if ticks < 0 {
		return Nil, fmt.Errorf("%s is before the Unix epoch: %w", ts.Time(), ErrTimestampRange)
	}
	ms := uint64(ticks) / ticksPerMilli
	if ms > mask48 {
		return Nil, fmt.Errorf("%d ms exceeds 48 bits: %w", ms, ErrTimestampRange)
	}
	counter := uint64(ticks) % ticksPerMilli

	var b [8]byte
	if _, err := io.ReadFull(g.randReader, b[:]); err != nil {
		return Nil, fmt.Errorf("tuuid: reading random bits: %w", err)
	}
	randB := (counter&0x3)<<60 | binary.BigEndian.Uint64(b[:])&(1<<60-1)

	return AssembleV7(V7Fields{
		UnixMilli: ms,
		RandA:     uint16(counter >> 2),
		RandB:     randB,
	}), nil
}

// Version returns the UUID version this generator produces.
func (g *Generator) Version() Version { return g.version }

// NodeIdentifier returns the node field used for v1 and v6 UUIDs.
func (g *Generator) NodeIdentifier() NodeIdentifier { return g.node }

// ClockSequence returns the clock sequence currently held by the generator.
func (g *Generator) ClockSequence() ClockSequence {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clockSeq
}

// Must is a helper that wraps a call to a function returning (UUID, error)
// and panics if the error is non-nil. It is intended for use in variable
// initializations such as:
//
//	var id = tuuid.Must(tuuid.NewV6())
func Must(uuid UUID, err error) UUID {
	if err != nil {
		panic(err)
	}
	return uuid
}

type lazyGenerator struct {
	once    sync.Once
	version Version
	g       *Generator
	err     error
}

func (l *lazyGenerator) get() (*Generator, error) {
	l.once.Do(func() {
		l.g, l.err = NewGenerator(l.version)
	})
	return l.g, l.err
}

func (l *lazyGenerator) next() (UUID, error) {
	g, err := l.get()
	if err != nil {
		return Nil, err
	}
	return g.New()
}

// package-level generators, created on first use and sharing the default pool
var (
	defaultV1 = &lazyGenerator{version: VersionTimeBased}
	defaultV6 = &lazyGenerator{version: VersionReorderedTime}
	defaultV7 = &lazyGenerator{version: VersionUnixTime}
)

// New generates a UUIDv7 using the package-level generator.
func New() (UUID, error) { return defaultV7.next() }

// NewV1 generates a UUIDv1 using the package-level generator.
func NewV1() (UUID, error) { return defaultV1.next() }

// NewV6 generates a UUIDv6 using the package-level generator.
func NewV6() (UUID, error) { return defaultV6.next() }

// NewV7 is an alias for New() for callers that name the version explicitly.
func NewV7() (UUID, error) { return defaultV7.next() }
