package cache

// PLRUVictimFinder implements tree-based pseudo-LRU. Each set keeps a binary
// tree of direction bits; a false bit points left and a true bit points
// right. The victim is the leaf reached by following the bits from the root.
// After a way is chosen or filled, every bit on its path is set to point away
// from it.
//
// Whether a read hit also redirects the path is configurable. With
// promoteOnHit off, only fills and evictions touch the tree.
type PLRUVictimFinder struct {
	promoteOnHit bool
}

// NewPLRUVictimFinder creates a tree-based pseudo-LRU victim finder.
func NewPLRUVictimFinder(promoteOnHit bool) *PLRUVictimFinder {
	return &PLRUVictimFinder{promoteOnHit: promoteOnHit}
}

// FindVictim walks the tree from the root and flips the bits on the path to
// the chosen leaf.
func (e *PLRUVictimFinder) FindVictim(set *Set) int {
	numNodes := len(set.Blocks) - 1

	node := 0
	for node < numNodes {
		if set.PLRUBits[node] {
			node = 2*node + 2
		} else {
			node = 2*node + 1
		}
	}

	wayID := node - numNodes
	e.pointAway(set, wayID)

	return wayID
}

// Visit redirects the tree away from the block if hit promotion is enabled.
func (e *PLRUVictimFinder) Visit(set *Set, wayID int) {
	if e.promoteOnHit {
		e.pointAway(set, wayID)
	}
}

// Fill redirects the tree away from the newly filled block.
func (e *PLRUVictimFinder) Fill(set *Set, wayID int) {
	e.pointAway(set, wayID)
}

func (e *PLRUVictimFinder) pointAway(set *Set, wayID int) {
	node := wayID + len(set.Blocks) - 1
	for node > 0 {
		parent := (node - 1) / 2
		cameFromRight := node == 2*parent+2
		set.PLRUBits[parent] = !cameFromRight
		node = parent
	}
}
