package cache

import (
	"fmt"

	"github.com/sarchlab/memsim/mem"
	"github.com/sarchlab/memsim/sim"
)

// Builder can build caches.
type Builder struct {
	ctx       *sim.Context
	nextLevel mem.Level

	lineWidth        int
	numSets          int
	totalLines       int
	policy           Policy
	plruPromoteOnHit bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		lineWidth:  64,
		numSets:    16,
		totalLines: 64,
		policy:     LRU,
	}
}

// WithContext sets the simulation context shared by the hierarchy.
func (b Builder) WithContext(ctx *sim.Context) Builder {
	b.ctx = ctx
	return b
}

// WithNextLevel sets the level that serves the misses of the cache.
func (b Builder) WithNextLevel(level mem.Level) Builder {
	b.nextLevel = level
	return b
}

// WithLineWidth sets the number of bytes in a line.
func (b Builder) WithLineWidth(lineWidth int) Builder {
	b.lineWidth = lineWidth
	return b
}

// WithNumSets sets the number of sets.
func (b Builder) WithNumSets(numSets int) Builder {
	b.numSets = numSets
	return b
}

// WithTotalLines sets the number of lines the cache can hold. The number of
// ways is the number of lines divided by the number of sets.
func (b Builder) WithTotalLines(totalLines int) Builder {
	b.totalLines = totalLines
	return b
}

// WithPolicy sets the eviction policy.
func (b Builder) WithPolicy(policy Policy) Builder {
	b.policy = policy
	return b
}

// WithPLRUPromoteOnHit sets whether read hits update the pseudo-LRU tree.
func (b Builder) WithPLRUPromoteOnHit(promote bool) Builder {
	b.plruPromoteOnHit = promote
	return b
}

// Build builds a cache.
func (b Builder) Build(name string) *Cache {
	b.mustBeValid(name)

	if b.ctx == nil {
		b.ctx = sim.NewContext(0)
	}

	numWays := b.totalLines / b.numSets
	mapping := mem.NewAddressMapping(b.lineWidth, b.numSets)

	c := &Cache{
		name:      name,
		policy:    b.policy,
		mapping:   mapping,
		tags:      newTagArray(b.numSets, numWays, b.lineWidth),
		nextLevel: b.nextLevel,
	}

	c.victimFinder = b.createVictimFinder(mapping)

	return c
}

func (b Builder) createVictimFinder(mapping mem.AddressMapping) VictimFinder {
	var victimFinder VictimFinder

	switch b.policy {
	case Random:
		victimFinder = NewRandomVictimFinder(b.ctx)
	case LRU:
		victimFinder = NewLRUVictimFinder(b.ctx)
	case LFU:
		victimFinder = NewLFUVictimFinder()
	case Clairvoyant:
		victimFinder = NewClairvoyantVictimFinder(b.ctx, mapping)
	case PLRU:
		victimFinder = NewPLRUVictimFinder(b.plruPromoteOnHit)
	default:
		panic("unknown eviction policy: " + b.policy.String())
	}

	return victimFinder
}

func (b Builder) mustBeValid(name string) {
	if b.nextLevel == nil {
		panic(fmt.Sprintf("cache %s has no next level", name))
	}

	if !mem.IsPowerOfTwo(b.lineWidth) {
		panic(fmt.Sprintf("cache %s: line width %d is not a power of two",
			name, b.lineWidth))
	}

	if !mem.IsPowerOfTwo(b.numSets) {
		panic(fmt.Sprintf("cache %s: set count %d is not a power of two",
			name, b.numSets))
	}

	b.mustBeFullSets(name)

	numWays := b.totalLines / b.numSets
	if b.policy == PLRU && !mem.IsPowerOfTwo(numWays) {
		panic(fmt.Sprintf(
			"cache %s: pseudo-LRU needs a power-of-two number of ways, got %d",
			name, numWays))
	}
}

func (b Builder) mustBeFullSets(name string) {
	if b.totalLines%b.numSets != 0 {
		panic(fmt.Sprintf(
			"cache %s must have a integer number of ways: %d lines, %d sets",
			name, b.totalLines, b.numSets))
	}

	if b.totalLines/b.numSets < 1 {
		panic(fmt.Sprintf("cache %s must have at least one way", name))
	}
}
