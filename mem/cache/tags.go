package cache

import (
	"github.com/sarchlab/memsim/mem"
)

// A Block of a cache is the information that is associated with a cache line
type Block struct {
	Line       mem.Line
	SetID      int
	WayID      int
	LastAccess uint64
	Frequency  uint64
}

// A Set is a list of blocks where a certain piece memory can be stored at.
//
// PLRUBits is the binary decision tree used by the pseudo-LRU policy, stored
// in heap order: node n has children 2n+1 and 2n+2. A set of B ways has B-1
// nodes.
type Set struct {
	ID       int
	Blocks   []Block
	PLRUBits []bool
}

type tagArray struct {
	numSets   int
	numWays   int
	lineWidth int
	sets      []Set
}

func newTagArray(numSets, numWays, lineWidth int) *tagArray {
	t := &tagArray{
		numSets:   numSets,
		numWays:   numWays,
		lineWidth: lineWidth,
	}

	t.Reset()

	return t
}

// TotalSize returns the maximum number of bytes can be stored in the cache
func (t *tagArray) TotalSize() uint64 {
	return uint64(t.numSets) * uint64(t.numWays) * uint64(t.lineWidth)
}

// Lookup finds the valid block in the set that holds the tag.
func (t *tagArray) Lookup(set *Set, tag uint64) (wayID int, found bool) {
	for i := range set.Blocks {
		block := &set.Blocks[i]
		if block.Line.Valid && block.Line.Tag == tag {
			return i, true
		}
	}

	return 0, false
}

// FindInvalid returns the first block in the set that has never been used.
func (t *tagArray) FindInvalid(set *Set) (wayID int, found bool) {
	for i := range set.Blocks {
		if !set.Blocks[i].Line.Valid {
			return i, true
		}
	}

	return 0, false
}

// Reset will mark all the blocks in the directory invalid
func (t *tagArray) Reset() {
	t.sets = make([]Set, t.numSets)
	for i := 0; i < t.numSets; i++ {
		set := &t.sets[i]
		set.ID = i
		set.PLRUBits = make([]bool, t.numWays-1)

		for j := 0; j < t.numWays; j++ {
			set.Blocks = append(set.Blocks, Block{
				Line:  mem.NewLine(t.lineWidth),
				SetID: i,
				WayID: j,
			})
		}
	}
}
