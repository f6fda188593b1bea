package timeutil

import "sync/atomic"

// MockClock is a deterministic clock for tests. The stored instant is
// returned as-is regardless of unit; callers control the value with Set
// and Advance.
type MockClock struct {
	now atomic.Int64
}

// NewMockClock returns a mock clock frozen at the given instant.
func NewMockClock(now int64) *MockClock {
	c := &MockClock{}
	c.now.Store(now)
	return c
}

func (c *MockClock) Now(Unit) int64 { return c.now.Load() }

// Set moves the clock to the given instant.
func (c *MockClock) Set(now int64) { c.now.Store(now) }

// Advance moves the clock forward by d units.
func (c *MockClock) Advance(d int64) { c.now.Add(d) }
