package tuuid

// Bit layouts, most significant half first:
//
//	v1  msb: time_low(32) | time_mid(16) | ver=0001 | time_high(12)
//	v6  msb: time_high(48)              | ver=0110 | time_low(12)
//	v7  msb: unix_ts_ms(48)             | ver=0111 | rand_a(12)
//	v1/v6 lsb: var=10 | clock_seq(14) | node(48)
//	v7    lsb: var=10 | rand_b(62)

const (
	variantRFC4122 uint64 = 0x8000000000000000

	mask12 = 1<<12 - 1
	mask16 = 1<<16 - 1
	mask32 = 1<<32 - 1
	mask48 = 1<<48 - 1
	mask62 = 1<<62 - 1
)

// Fields are the values packed into a v1 or v6 UUID.
type Fields struct {
	Timestamp     Timestamp
	ClockSequence ClockSequence
	Node          NodeIdentifier
}

// V7Fields are the values packed into a v7 UUID.
type V7Fields struct {
	UnixMilli uint64 // 48 bits
	RandA     uint16 // 12 bits
	RandB     uint64 // 62 bits
}

// Assemble packs f into a v1 or v6 UUID.
func Assemble(v Version, f Fields) (UUID, error) {
	switch v {
	case VersionTimeBased:
		return FromHalves(assembleV1(f)), nil
	case VersionReorderedTime:
		return FromHalves(assembleV6(f)), nil
	default:
		return Nil, ErrInvalidVersion
	}
}

// AssembleV7 packs f into a v7 UUID.
func AssembleV7(f V7Fields) UUID {
	msb := (f.UnixMilli&mask48)<<16 | uint64(VersionUnixTime)<<12 | uint64(f.RandA)&mask12
	lsb := variantRFC4122 | f.RandB&mask62
	return FromHalves(msb, lsb)
}

func assembleV1(f Fields) (msb, lsb uint64) {
	ts := uint64(f.Timestamp & MaxTimestamp)
	msb = (ts&mask32)<<32 | ((ts>>32)&mask16)<<16 | uint64(VersionTimeBased)<<12 | (ts>>48)&mask12
	return msb, timeBasedLSB(f)
}

func assembleV6(f Fields) (msb, lsb uint64) {
	ts := uint64(f.Timestamp & MaxTimestamp)
	msb = (ts>>12)<<16 | uint64(VersionReorderedTime)<<12 | ts&mask12
	return msb, timeBasedLSB(f)
}

func timeBasedLSB(f Fields) uint64 {
	return variantRFC4122 | uint64(f.ClockSequence&clockSequenceMask)<<48 | uint64(f.Node&nodeMask)
}

// checkLayout rejects a UUID that is not an RFC 4122 UUID of version want.
func checkLayout(u UUID, want Version) error {
	if u.Version() != want || u.Variant() != VariantRFC4122 {
		return &LayoutError{Want: want, Version: u.Version(), Variant: u.Variant()}
	}
	return nil
}

// ExtractFields unpacks a v1 or v6 UUID. It fails with *LayoutError when u is
// not an RFC 4122 UUID of version v.
func ExtractFields(u UUID, v Version) (Fields, error) {
	if v != VersionTimeBased && v != VersionReorderedTime {
		return Fields{}, ErrInvalidVersion
	}
	if err := checkLayout(u, v); err != nil {
		return Fields{}, err
	}

	msb, lsb := u.Halves()
	var ts uint64
	if v == VersionTimeBased {
		ts = (msb>>32)&mask32 | ((msb>>16)&mask16)<<32 | (msb&mask12)<<48
	} else {
		ts = (msb>>16)<<12 | msb&mask12
	}
	return Fields{
		Timestamp:     Timestamp(ts),
		ClockSequence: ClockSequence((lsb >> 48) & clockSequenceMask),
		Node:          NodeIdentifier(lsb & mask48),
	}, nil
}

// ExtractV7Fields unpacks a v7 UUID.
func ExtractV7Fields(u UUID) (V7Fields, error) {
	if err := checkLayout(u, VersionUnixTime); err != nil {
		return V7Fields{}, err
	}
	msb, lsb := u.Halves()
	return V7Fields{
		UnixMilli: msb >> 16,
		RandA:     uint16(msb & mask12),
		RandB:     lsb & mask62,
	}, nil
}

// ExtractTimestamp returns the creation timestamp of a v1, v6 or v7 UUID.
// v7 UUIDs carry millisecond precision only.
func ExtractTimestamp(u UUID) (Timestamp, error) {
	switch v := u.Version(); v {
	case VersionTimeBased, VersionReorderedTime:
		f, err := ExtractFields(u, v)
		return f.Timestamp, err
	case VersionUnixTime:
		f, err := ExtractV7Fields(u)
		if err != nil {
			return 0, err
		}
		return TimestampFromUnixMilli(int64(f.UnixMilli)), nil
	default:
		return 0, &LayoutError{Want: VersionTimeBased, Version: v, Variant: u.Variant()}
	}
}

// ExtractClockSequence returns the clock sequence of a v1 or v6 UUID.
func ExtractClockSequence(u UUID) (ClockSequence, error) {
	f, err := extractTimeBased(u)
	return f.ClockSequence, err
}

// ExtractNodeIdentifier returns the node identifier of a v1 or v6 UUID.
func ExtractNodeIdentifier(u UUID) (NodeIdentifier, error) {
	f, err := extractTimeBased(u)
	return f.Node, err
}

func extractTimeBased(u UUID) (Fields, error) {
	v := u.Version()
	if v != VersionReorderedTime {
		v = VersionTimeBased
	}
	return ExtractFields(u, v)
}
