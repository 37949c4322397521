package cache

import (
	"math"
	"sort"

	"github.com/sarchlab/memsim/mem"
	"github.com/sarchlab/memsim/sim"
)

// ClairvoyantVictimFinder implements Belady's optimal policy. It evicts the
// resident line whose next use lies farthest in the future, and a line that
// is never used again before any other.
//
// The future is an append-only trace of line addresses, one entry per
// logical access. The shared cursor of the context marks the current access;
// entries before the cursor are the past.
type ClairvoyantVictimFinder struct {
	ctx     *sim.Context
	mapping mem.AddressMapping

	future    []uint64
	positions map[uint64][]int
}

// NewClairvoyantVictimFinder creates a clairvoyant victim finder for a cache
// with the given address mapping.
func NewClairvoyantVictimFinder(
	ctx *sim.Context,
	mapping mem.AddressMapping,
) *ClairvoyantVictimFinder {
	return &ClairvoyantVictimFinder{
		ctx:       ctx,
		mapping:   mapping,
		positions: make(map[uint64][]int),
	}
}

// AppendFutureAccesses extends the future trace.
func (e *ClairvoyantVictimFinder) AppendFutureAccesses(lineAddrs ...uint64) {
	for _, addr := range lineAddrs {
		addr = e.mapping.LineBase(addr)
		e.positions[addr] = append(e.positions[addr], len(e.future))
		e.future = append(e.future, addr)
	}
}

// FutureAccesses returns the future trace.
func (e *ClairvoyantVictimFinder) FutureAccesses() []uint64 {
	return e.future
}

// NextUse returns the trace position of the next access to the line at or
// after the cursor, or math.MaxInt if the line is never accessed again.
func (e *ClairvoyantVictimFinder) NextUse(lineAddr uint64) int {
	cursor := e.ctx.FutureCursor()
	positions := e.positions[lineAddr]

	i := sort.SearchInts(positions, cursor)
	if i == len(positions) {
		return math.MaxInt
	}

	return positions[i]
}

// FindVictim returns the first block that is never used again or, if every
// block is used again, the block whose next use is the farthest.
func (e *ClairvoyantVictimFinder) FindVictim(set *Set) int {
	victim := 0
	farthest := -1

	for i := range set.Blocks {
		lineAddr := e.mapping.LineAddress(set.Blocks[i].Line.Tag, set.ID)

		next := e.NextUse(lineAddr)
		if next == math.MaxInt {
			return i
		}

		if next > farthest {
			farthest = next
			victim = i
		}
	}

	return victim
}

// Visit does nothing.
func (e *ClairvoyantVictimFinder) Visit(_ *Set, _ int) {}

// Fill does nothing.
func (e *ClairvoyantVictimFinder) Fill(_ *Set, _ int) {}
