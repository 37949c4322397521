package cache

import (
	"github.com/sarchlab/memsim/sim"
)

// A VictimFinder decides which block should be evicted. It also keeps the
// per-block metadata that it relies on up to date.
//
// FindVictim is only called when every block of the set is valid.
type VictimFinder interface {
	// FindVictim returns the way ID of the block to evict.
	FindVictim(set *Set) int

	// Visit is called when a read hits the block.
	Visit(set *Set, wayID int)

	// Fill is called after a new line is installed in the block.
	Fill(set *Set, wayID int)
}

// RandomVictimFinder evicts a uniformly chosen block.
type RandomVictimFinder struct {
	ctx *sim.Context
}

// NewRandomVictimFinder returns a victim finder that draws from the random
// stream of the context.
func NewRandomVictimFinder(ctx *sim.Context) *RandomVictimFinder {
	return &RandomVictimFinder{ctx: ctx}
}

// FindVictim returns a random way.
func (e *RandomVictimFinder) FindVictim(set *Set) int {
	return e.ctx.Intn(len(set.Blocks))
}

// Visit does nothing.
func (e *RandomVictimFinder) Visit(_ *Set, _ int) {}

// Fill does nothing.
func (e *RandomVictimFinder) Fill(_ *Set, _ int) {}

// LRUVictimFinder evicts the least recently used block to evict
type LRUVictimFinder struct {
	ctx *sim.Context
}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder(ctx *sim.Context) *LRUVictimFinder {
	return &LRUVictimFinder{ctx: ctx}
}

// FindVictim returns the block with the oldest access time. Ties go to the
// lowest way.
func (e *LRUVictimFinder) FindVictim(set *Set) int {
	victim := 0
	for i := 1; i < len(set.Blocks); i++ {
		if set.Blocks[i].LastAccess < set.Blocks[victim].LastAccess {
			victim = i
		}
	}

	return victim
}

// Visit stamps the block with a new clock value.
func (e *LRUVictimFinder) Visit(set *Set, wayID int) {
	set.Blocks[wayID].LastAccess = e.ctx.Tick()
}

// Fill stamps the block with the current clock value without advancing the
// clock.
func (e *LRUVictimFinder) Fill(set *Set, wayID int) {
	set.Blocks[wayID].LastAccess = e.ctx.Now()
}

// LFUVictimFinder evicts the least frequently used block.
type LFUVictimFinder struct {
}

// NewLFUVictimFinder returns a newly constructed lfu evictor.
func NewLFUVictimFinder() *LFUVictimFinder {
	return &LFUVictimFinder{}
}

// FindVictim returns the block with the smallest access count. Ties go to
// the lowest way.
func (e *LFUVictimFinder) FindVictim(set *Set) int {
	victim := 0
	for i := 1; i < len(set.Blocks); i++ {
		if set.Blocks[i].Frequency < set.Blocks[victim].Frequency {
			victim = i
		}
	}

	return victim
}

// Visit counts one more access to the block.
func (e *LFUVictimFinder) Visit(set *Set, wayID int) {
	set.Blocks[wayID].Frequency++
}

// Fill restarts the count of the block at one.
func (e *LFUVictimFinder) Fill(set *Set, wayID int) {
	set.Blocks[wayID].Frequency = 1
}
