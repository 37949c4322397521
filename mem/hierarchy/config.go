package hierarchy

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sarchlab/memsim/mem"
	"github.com/sarchlab/memsim/mem/cache"
)

// DefaultStoreSize is the size of the simulated DRAM, enough for a 1024x800
// frame of 32-bit pixels.
const DefaultStoreSize uint64 = 3276800

// WordSize is the number of bytes accessed by ReadUint and WriteUint.
const WordSize = 4

// LevelConfig describes one cache level.
type LevelConfig struct {
	// Name identifies the level, e.g. "L1". Defaults to L<n>.
	Name string
	// LineWidth in bytes. Zero inherits the hierarchy line width.
	LineWidth int
	// SetCount is the number of sets; must be a power of two.
	SetCount int
	// TotalLines is the capacity in lines; ways = TotalLines / SetCount.
	TotalLines int
	// Policy selects the victim on eviction.
	Policy cache.Policy
}

// NumWays returns the associativity of the level.
func (c LevelConfig) NumWays() int {
	if c.SetCount <= 0 {
		return 0
	}

	return c.TotalLines / c.SetCount
}

// Config describes a whole hierarchy, from the first-level cache down to the
// store.
type Config struct {
	LineWidth        int
	StoreSize        uint64
	Seed             int64
	PLRUPromoteOnHit bool
	Levels           []LevelConfig
}

// DefaultConfig returns a three-level hierarchy of 64-byte lines over 16
// sets, with 4, 16, and 64 ways, using LRU everywhere.
func DefaultConfig() Config {
	return Config{
		LineWidth: 64,
		StoreSize: DefaultStoreSize,
		Seed:      1,
		Levels: []LevelConfig{
			{Name: "L1", SetCount: 16, TotalLines: 64, Policy: cache.LRU},
			{Name: "L2", SetCount: 16, TotalLines: 256, Policy: cache.LRU},
			{Name: "L3", SetCount: 16, TotalLines: 1024, Policy: cache.LRU},
		},
	}
}

// WithPolicy returns a copy of the configuration in which every level uses
// the given policy.
func (c Config) WithPolicy(policy cache.Policy) Config {
	levels := make([]LevelConfig, len(c.Levels))
	copy(levels, c.Levels)

	for i := range levels {
		levels[i].Policy = policy
	}

	c.Levels = levels

	return c
}

// Validate checks the geometry of every level.
func (c Config) Validate() error {
	if !mem.IsPowerOfTwo(c.LineWidth) {
		return errors.Errorf("line width %d is not a power of two", c.LineWidth)
	}

	if c.LineWidth < WordSize {
		return errors.Errorf("line width %d cannot hold a %d-byte word",
			c.LineWidth, WordSize)
	}

	if c.StoreSize == 0 || c.StoreSize%uint64(c.LineWidth) != 0 {
		return errors.Errorf(
			"store size %d is not a positive multiple of the line width %d",
			c.StoreSize, c.LineWidth)
	}

	if len(c.Levels) == 0 {
		return errors.New("at least one cache level is required")
	}

	names := make(map[string]bool)
	for i, level := range c.resolved().Levels {
		if err := c.validateLevel(level); err != nil {
			return errors.Wrapf(err, "level %d (%s)", i+1, level.Name)
		}

		if names[level.Name] {
			return errors.Errorf("level name %s is used twice", level.Name)
		}

		names[level.Name] = true
	}

	return nil
}

func (c Config) validateLevel(level LevelConfig) error {
	if level.LineWidth != c.LineWidth {
		return errors.Errorf(
			"line width %d differs from the hierarchy line width %d",
			level.LineWidth, c.LineWidth)
	}

	if !mem.IsPowerOfTwo(level.SetCount) {
		return errors.Errorf("set count %d is not a power of two",
			level.SetCount)
	}

	if level.TotalLines <= 0 {
		return errors.Errorf("total lines %d must be positive",
			level.TotalLines)
	}

	if level.TotalLines%level.SetCount != 0 {
		return errors.Errorf("%d lines cannot be divided into %d sets",
			level.TotalLines, level.SetCount)
	}

	if level.NumWays() < 1 {
		return errors.New("a set must have at least one way")
	}

	if _, known := policyIndex()[level.Policy]; !known {
		return errors.Errorf("unknown policy %s", level.Policy)
	}

	if level.Policy == cache.PLRU && !mem.IsPowerOfTwo(level.NumWays()) {
		return errors.Errorf(
			"pseudo-LRU needs a power-of-two number of ways, got %d",
			level.NumWays())
	}

	return nil
}

func policyIndex() map[cache.Policy]bool {
	index := make(map[cache.Policy]bool)
	for _, p := range cache.AllPolicies() {
		index[p] = true
	}

	return index
}

// resolved fills in inherited line widths and default names.
func (c Config) resolved() Config {
	levels := make([]LevelConfig, len(c.Levels))
	copy(levels, c.Levels)

	for i := range levels {
		if levels[i].LineWidth == 0 {
			levels[i].LineWidth = c.LineWidth
		}

		if levels[i].Name == "" {
			levels[i].Name = fmt.Sprintf("L%d", i+1)
		}
	}

	c.Levels = levels

	return c
}
