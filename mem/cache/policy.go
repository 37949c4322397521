package cache

import (
	"fmt"
	"strings"
)

// Policy selects how a cache picks the block to evict when a set is full.
type Policy int

// The supported eviction policies.
const (
	Random Policy = iota
	LRU
	LFU
	Clairvoyant
	PLRU
)

var policyNames = map[Policy]string{
	Random:      "random",
	LRU:         "lru",
	LFU:         "lfu",
	Clairvoyant: "clairvoyant",
	PLRU:        "plru",
}

// String returns the lower-case name of the policy.
func (p Policy) String() string {
	name, ok := policyNames[p]
	if !ok {
		return fmt.Sprintf("Policy(%d)", int(p))
	}

	return name
}

// ParsePolicy converts a policy name into a Policy. Names are case
// insensitive; "belady" is accepted as an alias of clairvoyant.
func ParsePolicy(name string) (Policy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "belady" {
		return Clairvoyant, nil
	}

	for p, n := range policyNames {
		if n == name {
			return p, nil
		}
	}

	return 0, fmt.Errorf("unknown eviction policy %q", name)
}

// AllPolicies lists every policy in declaration order.
func AllPolicies() []Policy {
	return []Policy{Random, LRU, LFU, Clairvoyant, PLRU}
}
