package tuuid

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat indicates that the UUID string format is invalid
	ErrInvalidFormat = errors.New("tuuid: invalid UUID format")

	// ErrInvalidLength indicates that the UUID byte slice has incorrect length
	ErrInvalidLength = errors.New("tuuid: invalid UUID length (expected 16 bytes)")

	// ErrInvalidVersion indicates that the UUID version is not supported
	ErrInvalidVersion = errors.New("tuuid: invalid or unsupported UUID version")

	// ErrInvalidVariant indicates that the UUID variant is not RFC 4122
	ErrInvalidVariant = errors.New("tuuid: invalid UUID variant (expected RFC 4122)")

	// ErrClockSequenceOverrun is returned by a fail-fast generator when the
	// sub-millisecond counter is exhausted before the clock advances.
	ErrClockSequenceOverrun = errors.New("tuuid: clock sequence overrun")

	// ErrInvalidLayout indicates that field extraction was attempted on a UUID
	// whose version or variant bits do not match the requested layout.
	ErrInvalidLayout = errors.New("tuuid: invalid UUID layout")

	// ErrTimestampRange indicates a timestamp that cannot be represented in
	// the requested layout.
	ErrTimestampRange = errors.New("tuuid: timestamp out of range")

	// ErrInvalidNodeIdentifier indicates an unparseable node identifier override.
	ErrInvalidNodeIdentifier = errors.New("tuuid: invalid node identifier")
)

// OverrunError carries the timestamp at which a fail-fast generator ran out
// of sub-millisecond counter values.
type OverrunError struct {
	Timestamp Timestamp
}

func (e *OverrunError) Error() string {
	return fmt.Sprintf("tuuid: clock sequence overrun at timestamp %d (%s)",
		uint64(e.Timestamp), e.Timestamp.Time().UTC().Format("2006-01-02T15:04:05.0000000Z"))
}

func (e *OverrunError) Unwrap() error { return ErrClockSequenceOverrun }

// LayoutError reports a version/variant mismatch found during extraction.
// It matches ErrInvalidLayout, and also ErrInvalidVariant when the variant
// is not RFC 4122.
type LayoutError struct {
	Want    Version
	Version Version
	Variant Variant
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("tuuid: invalid UUID layout: want version %d RFC 4122, got version %d variant %s",
		e.Want, e.Version, e.Variant)
}

func (e *LayoutError) Unwrap() []error {
	if e.Variant != VariantRFC4122 {
		return []error{ErrInvalidLayout, ErrInvalidVariant}
	}
	return []error{ErrInvalidLayout}
}
