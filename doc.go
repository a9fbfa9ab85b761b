// Package tuuid generates time-based UUIDs: versions 1, 6 and 7 as defined by
// RFC 4122 and RFC 9562, plus COMB variants of version 4.
//
// Every generator keeps its own monotonic timestamp. Timestamps count
// 100-nanosecond ticks since 1582-10-15 and are built from a millisecond wall
// clock plus a sub-millisecond counter, so values from one generator never go
// backwards even when the clock stalls or is set back. Version 1 and 6
// generators additionally hold a 14-bit clock sequence taken from a shared
// ClockSequencePool, which keeps independent generators in one process apart.
//
// Basic Usage:
//
//	// Generate a new UUIDv7
//	id, err := tuuid.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(id.String())
//
//	// Time-ordered UUIDv6 with the hardware address as node
//	id = tuuid.Must(tuuid.NewV6())
//	fmt.Println(id.Time())
//
// Custom Generator:
//
//	gen, err := tuuid.NewGenerator(tuuid.VersionTimeBased,
//	    tuuid.WithNodeIdentifier(0x111111111111),
//	    tuuid.WithOverrunPolicy(tuuid.OverrunFail),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	id, err = gen.New()
//	if errors.Is(err, tuuid.ErrClockSequenceOverrun) {
//	    // more than 10,000 values in one millisecond
//	}
//
// Inspecting:
//
//	f, err := tuuid.ExtractFields(id, tuuid.VersionTimeBased)
//	fmt.Println(f.Timestamp.Time(), f.ClockSequence, f.Node)
//
// Thread Safety:
//
// Generators, pools and node providers are safe for concurrent use. The
// package-level New, NewV1, NewV6 and NewV7 functions share lazily created
// default generators.
package tuuid
