// Package cache provides a set-associative, write-back cache level with
// pluggable eviction policies.
package cache

import (
	"fmt"

	"github.com/sarchlab/memsim/mem"
)

// A Cache is a set-associative level of the memory hierarchy.
//
// The Cache only models what data is stored and where. It does not model
// timing or coherence. Lines missing from the cache are fetched from the next
// level; dirty lines are written to the next level only when they are
// evicted.
type Cache struct {
	name      string
	policy    Policy
	mapping   mem.AddressMapping
	tags      *tagArray
	nextLevel mem.Level
	stats     mem.Statistics

	victimFinder VictimFinder
}

// Name returns the name of the cache.
func (c *Cache) Name() string {
	return c.name
}

// Policy returns the eviction policy of the cache.
func (c *Cache) Policy() Policy {
	return c.policy
}

// Mapping returns how the cache splits addresses.
func (c *Cache) Mapping() mem.AddressMapping {
	return c.mapping
}

// NumSets returns the number of sets.
func (c *Cache) NumSets() int {
	return c.tags.numSets
}

// NumWays returns the number of blocks in each set.
func (c *Cache) NumWays() int {
	return c.tags.numWays
}

// NumSlots returns the total number of blocks.
func (c *Cache) NumSlots() int {
	return c.tags.numSets * c.tags.numWays
}

// LineWidth returns the number of bytes in a line.
func (c *Cache) LineWidth() int {
	return c.tags.lineWidth
}

// TotalSize returns the number of bytes the cache can hold.
func (c *Cache) TotalSize() uint64 {
	return c.tags.TotalSize()
}

// NextLevel returns the level below the cache.
func (c *Cache) NextLevel() mem.Level {
	return c.nextLevel
}

// Stats returns a copy of the hit and miss counters.
func (c *Cache) Stats() mem.Statistics {
	return c.stats
}

// RollCounters adds the interval counters to the totals and clears them.
func (c *Cache) RollCounters() {
	c.stats.Roll()
}

// Inspect returns a copy of the line held in slot i, counting slots set by
// set. It does not change any state of the cache. It panics if the slot does
// not exist.
func (c *Cache) Inspect(i int) mem.Line {
	if i < 0 || i >= c.NumSlots() {
		panic(fmt.Sprintf("%s: slot %d does not exist", c.name, i))
	}

	numWays := c.tags.numWays
	setID := i / numWays
	wayID := i % numWays

	return c.tags.sets[setID].Blocks[wayID].Line.Clone()
}

type futureAware interface {
	AppendFutureAccesses(lineAddrs ...uint64)
	FutureAccesses() []uint64
}

// AppendFutureAccesses extends the future-access trace of the cache. The
// trace is only consumed by the clairvoyant policy; other policies ignore
// it.
func (c *Cache) AppendFutureAccesses(lineAddrs ...uint64) {
	if f, ok := c.victimFinder.(futureAware); ok {
		f.AppendFutureAccesses(lineAddrs...)
	}
}

// FutureAccesses returns the future-access trace, or nil if the policy does
// not use one.
func (c *Cache) FutureAccesses() []uint64 {
	if f, ok := c.victimFinder.(futureAware); ok {
		return f.FutureAccesses()
	}

	return nil
}

// ReadLine returns a copy of the line at the address. On a miss, the line is
// fetched from the next level and installed through WriteLine, so a read
// miss also counts as a write miss.
func (c *Cache) ReadLine(address uint64) mem.Line {
	c.mapping.MustBeLineAligned(address)

	tag := c.mapping.Tag(address)
	set := &c.tags.sets[c.mapping.Set(address)]

	if wayID, found := c.tags.Lookup(set, tag); found {
		c.victimFinder.Visit(set, wayID)
		c.stats.Interval.ReadHit++

		return set.Blocks[wayID].Line.Clone()
	}

	line := c.nextLevel.ReadLine(address)
	line.Tag = tag
	line.Valid = true

	c.WriteLine(address, line)
	c.stats.Interval.ReadMiss++

	return line
}

// WriteLine stores a copy of the line at the address. If the line is not
// resident, it takes an unused block or evicts a victim chosen by the
// eviction policy.
func (c *Cache) WriteLine(address uint64, line mem.Line) {
	c.mapping.MustBeLineAligned(address)
	c.mustHaveWidth(line)

	tag := c.mapping.Tag(address)
	if line.Tag != tag {
		panic(fmt.Sprintf(
			"%s: line tag 0x%x does not match tag 0x%x of address 0x%x",
			c.name, line.Tag, tag, address))
	}

	set := &c.tags.sets[c.mapping.Set(address)]

	if wayID, found := c.tags.Lookup(set, tag); found {
		stored := line.Clone()
		stored.Valid = true
		set.Blocks[wayID].Line = stored
		c.stats.Interval.WriteHit++

		return
	}

	c.install(set, line)
	c.stats.Interval.WriteMiss++
}

func (c *Cache) install(set *Set, line mem.Line) {
	wayID, found := c.tags.FindInvalid(set)
	if !found {
		wayID = c.victimFinder.FindVictim(set)
		c.evict(set, wayID)
	}

	stored := line.Clone()
	stored.Valid = true
	set.Blocks[wayID].Line = stored

	c.victimFinder.Fill(set, wayID)
}

func (c *Cache) evict(set *Set, wayID int) {
	victim := set.Blocks[wayID].Line
	if !victim.Dirty {
		return
	}

	address := c.mapping.LineAddress(victim.Tag, set.ID)

	writeBack := victim.Clone()
	writeBack.Tag = c.nextLevel.Mapping().Tag(address)

	c.nextLevel.WriteLine(address, writeBack)
}

func (c *Cache) mustHaveWidth(line mem.Line) {
	if line.Width() != c.tags.lineWidth {
		panic(fmt.Sprintf("%s: line of %d bytes written to %d-byte lines",
			c.name, line.Width(), c.tags.lineWidth))
	}
}
