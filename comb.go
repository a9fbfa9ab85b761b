package tuuid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// CombKind selects where a COMB UUID carries its timestamp.
type CombKind uint8

const (
	// CombPrefix writes the timestamp into bytes 0-5 so values sort by
	// creation time byte-wise.
	CombPrefix CombKind = iota
	// CombSuffix writes the timestamp into bytes 10-15, the ordering SQL
	// Server applies to uniqueidentifier columns.
	CombSuffix
)

func (k CombKind) String() string {
	if k == CombSuffix {
		return "suffix"
	}
	return "prefix"
}

// CombGenerator produces random (version 4) UUIDs with 48 bits replaced by
// the Unix time in milliseconds.
type CombGenerator struct {
	kind       CombKind
	source     TimestampSource
	randReader io.Reader
}

// NewCombGenerator creates a COMB generator. Only WithClock, WithFixedTimestamp,
// WithTimestampSource and WithRandReader apply.
func NewCombGenerator(kind CombKind, opts ...Option) (*CombGenerator, error) {
	if kind != CombPrefix && kind != CombSuffix {
		return nil, fmt.Errorf("tuuid: unknown COMB kind %d", kind)
	}
	o := generatorOptions{source: SystemTimestamps(), randReader: rand.Reader}
	for _, opt := range opts {
		opt(&o)
	}
	if o.randReader == nil {
		o.randReader = rand.Reader
	}
	return &CombGenerator{kind: kind, source: o.source, randReader: o.randReader}, nil
}

// New returns a fresh COMB UUID.
func (g *CombGenerator) New() (UUID, error) {
	base, err := uuid.NewRandomFromReader(g.randReader)
	if err != nil {
		return Nil, fmt.Errorf("tuuid: reading random bits: %w", err)
	}

	ts, err := g.source.base()
	if err != nil {
		return Nil, err
	}
	ms := ts.UnixMilli()
	if ms < 0 || uint64(ms) > mask48 {
		return Nil, fmt.Errorf("%d ms: %w", ms, ErrTimestampRange)
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(ms))

	u := UUID(base)
	if g.kind == CombSuffix {
		copy(u[10:16], b[2:])
	} else {
		copy(u[0:6], b[2:])
	}
	return u, nil
}

// ExtractCombTime returns the millisecond timestamp embedded by a COMB
// generator of the given kind.
func ExtractCombTime(u UUID, kind CombKind) (time.Time, error) {
	if err := checkLayout(u, VersionRandom); err != nil {
		return time.Time{}, err
	}
	var b [8]byte
	if kind == CombSuffix {
		copy(b[2:], u[10:16])
	} else {
		copy(b[2:], u[0:6])
	}
	return time.UnixMilli(int64(binary.BigEndian.Uint64(b[:]))).UTC(), nil
}
