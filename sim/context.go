// Package sim holds the state that is shared by all the levels of one memory
// hierarchy, together with the hooking primitives used to observe it.
package sim

import "math/rand"

// A Context carries the mutable simulation state that eviction policies
// depend on: the monotonic access clock used by LRU, the random stream used
// by the random policy, and the cursor into the future-access traces used by
// the clairvoyant policy.
//
// Each hierarchy owns exactly one Context. Two hierarchies created with the
// same seed and driven by the same accesses behave identically.
type Context struct {
	seed   int64
	clock  uint64
	rng    *rand.Rand
	cursor int
}

// NewContext creates a Context whose random stream is seeded with seed.
func NewContext(seed int64) *Context {
	c := &Context{}
	c.Reset(seed)

	return c
}

// Reset rewinds the clock and the future cursor and reseeds the random
// stream.
func (c *Context) Reset(seed int64) {
	c.seed = seed
	c.clock = 0
	c.cursor = 0
	c.rng = rand.New(rand.NewSource(seed))
}

// Seed returns the seed that the random stream was created with.
func (c *Context) Seed() int64 {
	return c.seed
}

// Now returns the current value of the access clock.
func (c *Context) Now() uint64 {
	return c.clock
}

// Tick advances the access clock by one and returns the new value.
func (c *Context) Tick() uint64 {
	c.clock++
	return c.clock
}

// Intn returns a uniformly distributed number in [0, n).
func (c *Context) Intn(n int) int {
	return c.rng.Intn(n)
}

// FutureCursor returns the position of the current access in the future
// access traces.
func (c *Context) FutureCursor() int {
	return c.cursor
}

// AdvanceFuture moves the future cursor to the next access.
func (c *Context) AdvanceFuture() {
	c.cursor++
}
