// Package timeutil provides the injectable time source used by the store
// and eviction layers. The unit is fixed per process via configuration.
package timeutil

import "time"

// Unit selects the resolution of timestamps recorded by the store.
type Unit string

const (
	Second      Unit = "second"
	Millisecond Unit = "millisecond"
)

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	return u == Second || u == Millisecond
}

// Clock is the time source. Implementations must be safe for concurrent use.
type Clock interface {
	// Now returns the current time as an integer in the given unit.
	Now(unit Unit) int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now(unit Unit) int64 {
	t := time.Now()
	if unit == Millisecond {
		return t.UnixMilli()
	}
	return t.Unix()
}
