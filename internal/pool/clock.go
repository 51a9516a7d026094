package pool

import "sync/atomic"

// ManualClock is a Clock driven by the caller, for simulations and tests. Timestamps wrap at
// 2^32 like block timestamps do.
type ManualClock struct {
	now atomic.Uint32
}

func NewManualClock(start uint32) *ManualClock {
	c := &ManualClock{}
	c.now.Store(start)
	return c
}

func (c *ManualClock) BlockTimestamp() uint32 { return c.now.Load() }

// Advance moves the clock forward and returns the new time.
func (c *ManualClock) Advance(seconds uint32) uint32 { return c.now.Add(seconds) }

func (c *ManualClock) Set(t uint32) { c.now.Store(t) }
