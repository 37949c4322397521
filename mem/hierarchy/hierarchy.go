// Package hierarchy chains caches and a backing store into a memory hierarchy
// and translates byte and word accesses into line accesses.
package hierarchy

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/sarchlab/memsim/mem"
	"github.com/sarchlab/memsim/mem/cache"
	"github.com/sarchlab/memsim/mem/dram"
	"github.com/sarchlab/memsim/sim"
)

// HookPosAccess marks the completion of a logical access. The hook detail is
// an AccessResult.
var HookPosAccess = &sim.HookPos{Name: "Access"}

// HookPosTick marks the end of a reporting interval. It fires inside
// ResetCounters before the interval counters are rolled over. The hook item
// is the interval number and the detail is a []LevelStats.
var HookPosTick = &sim.HookPos{Name: "Tick"}

var idGenerator = sim.NewUniqueIDGenerator()

// LevelStats associates the counters of a level with its name.
type LevelStats struct {
	Name string `json:"name"`
	mem.Statistics
}

type accountable interface {
	Stats() mem.Statistics
	RollCounters()
}

// A Hierarchy is an ordered chain of caches ending in a store. The
// hierarchy owns every level; each cache only refers to the level below.
//
// A Hierarchy is not safe for concurrent use.
type Hierarchy struct {
	*sim.HookableBase

	id      string
	config  Config
	ctx     *sim.Context
	caches  []*cache.Cache
	store   *dram.Store
	mapping mem.AddressMapping

	interval         int
	intervalAccesses int
}

// New builds a hierarchy from the configuration.
func New(config Config) (*Hierarchy, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid hierarchy configuration")
	}

	config = config.resolved()

	h := &Hierarchy{
		HookableBase: sim.NewHookableBase(),
		id:           idGenerator.Generate(),
		config:       config,
		ctx:          sim.NewContext(config.Seed),
		caches:       make([]*cache.Cache, len(config.Levels)),
	}

	h.store = dram.NewStore("DRAM", config.StoreSize, config.LineWidth, 1)

	var next mem.Level = h.store
	for i := len(config.Levels) - 1; i >= 0; i-- {
		level := config.Levels[i]
		h.caches[i] = cache.MakeBuilder().
			WithContext(h.ctx).
			WithNextLevel(next).
			WithLineWidth(level.LineWidth).
			WithNumSets(level.SetCount).
			WithTotalLines(level.TotalLines).
			WithPolicy(level.Policy).
			WithPLRUPromoteOnHit(config.PLRUPromoteOnHit).
			Build(level.Name)
		next = h.caches[i]
	}

	h.mapping = h.caches[0].Mapping()

	return h, nil
}

// MustNew is like New but panics on an invalid configuration.
func MustNew(config Config) *Hierarchy {
	h, err := New(config)
	if err != nil {
		panic(err)
	}

	return h
}

// ID returns the unique ID of the hierarchy.
func (h *Hierarchy) ID() string {
	return h.id
}

// Config returns the resolved configuration of the hierarchy.
func (h *Hierarchy) Config() Config {
	return h.config
}

// Context returns the simulation context shared by the levels.
func (h *Hierarchy) Context() *sim.Context {
	return h.ctx
}

// Caches returns the cache levels from the top down.
func (h *Hierarchy) Caches() []*cache.Cache {
	return h.caches
}

// Cache returns the cache level with the given name, or nil.
func (h *Hierarchy) Cache(name string) *cache.Cache {
	for _, c := range h.caches {
		if c.Name() == name {
			return c
		}
	}

	return nil
}

// Store returns the terminal level.
func (h *Hierarchy) Store() *dram.Store {
	return h.store
}

// LineWidth returns the number of bytes in a line.
func (h *Hierarchy) LineWidth() int {
	return h.config.LineWidth
}

// Stats returns the counters of every level from the top down, ending with
// the store.
func (h *Hierarchy) Stats() []LevelStats {
	stats := make([]LevelStats, 0, len(h.caches)+1)
	for _, c := range h.caches {
		stats = append(stats, LevelStats{Name: c.Name(), Statistics: c.Stats()})
	}

	stats = append(stats, LevelStats{
		Name:       h.store.Name(),
		Statistics: h.store.Stats(),
	})

	return stats
}

// ResetCounters closes the current reporting interval: the interval counters
// of every level are added to the totals and then cleared. Drivers call it
// once per tick, before the accesses of the tick.
func (h *Hierarchy) ResetCounters() {
	if h.intervalAccesses > 0 {
		h.InvokeHook(sim.HookCtx{
			Domain: h,
			Pos:    HookPosTick,
			Item:   h.interval,
			Detail: h.Stats(),
		})
		h.interval++
	}

	for _, level := range h.levels() {
		level.RollCounters()
	}

	h.intervalAccesses = 0
}

func (h *Hierarchy) levels() []accountable {
	levels := make([]accountable, 0, len(h.caches)+1)
	for _, c := range h.caches {
		levels = append(levels, c)
	}

	return append(levels, h.store)
}

// SetFutureTrace appends line addresses to the future-access trace of one
// cache level, counted from zero at the top.
func (h *Hierarchy) SetFutureTrace(level int, lineAddrs []uint64) {
	if level < 0 || level >= len(h.caches) {
		panic(fmt.Sprintf("hierarchy has no cache level %d", level))
	}

	h.caches[level].AppendFutureAccesses(lineAddrs...)
}

// AppendFutureAccesses appends the same line addresses to the future-access
// trace of every cache level.
func (h *Hierarchy) AppendFutureAccesses(lineAddrs ...uint64) {
	for _, c := range h.caches {
		c.AppendFutureAccesses(lineAddrs...)
	}
}

// ReadByte returns the byte at the address.
func (h *Hierarchy) ReadByte(address uint64) byte {
	line, offset := h.fetch(address)
	value := line.Bytes[offset]

	h.complete(Access{Op: OpReadByte, Address: address}, uint32(value))

	return value
}

// WriteByte updates the byte at the address.
func (h *Hierarchy) WriteByte(address uint64, value byte) {
	line, offset := h.fetch(address)
	line.Bytes[offset] = value
	h.writeLine(address, line)

	h.complete(
		Access{Op: OpWriteByte, Address: address, Value: uint32(value)},
		uint32(value))
}

// ReadUint returns the little-endian 32-bit word at the address. The address
// must be 4-byte aligned.
func (h *Hierarchy) ReadUint(address uint64) uint32 {
	h.mustBeWordAligned(address)

	line, offset := h.fetch(address)
	value := binary.LittleEndian.Uint32(line.Bytes[offset : offset+WordSize])

	h.complete(Access{Op: OpReadUint, Address: address}, value)

	return value
}

// WriteUint stores a little-endian 32-bit word at the address. The address
// must be 4-byte aligned.
func (h *Hierarchy) WriteUint(address uint64, value uint32) {
	h.mustBeWordAligned(address)

	line, offset := h.fetch(address)
	binary.LittleEndian.PutUint32(line.Bytes[offset:offset+WordSize], value)
	h.writeLine(address, line)

	h.complete(
		Access{Op: OpWriteUint, Address: address, Value: value},
		value)
}

// Do performs the access and returns the value read or written.
func (h *Hierarchy) Do(a Access) uint32 {
	switch a.Op {
	case OpReadByte:
		return uint32(h.ReadByte(a.Address))
	case OpWriteByte:
		h.WriteByte(a.Address, byte(a.Value))
		return a.Value & 0xff
	case OpReadUint:
		return h.ReadUint(a.Address)
	case OpWriteUint:
		h.WriteUint(a.Address, a.Value)
		return a.Value
	default:
		panic(fmt.Sprintf("unknown memory operation %s", a.Op))
	}
}

func (h *Hierarchy) fetch(address uint64) (mem.Line, uint64) {
	lineAddr := h.mapping.LineBase(address)
	line := h.caches[0].ReadLine(lineAddr)

	return line, h.mapping.Offset(address)
}

func (h *Hierarchy) writeLine(address uint64, line mem.Line) {
	line.Dirty = true
	h.caches[0].WriteLine(h.mapping.LineBase(address), line)
}

func (h *Hierarchy) complete(a Access, value uint32) {
	index := h.ctx.FutureCursor()
	h.ctx.AdvanceFuture()
	h.intervalAccesses++

	if h.NumHooks() == 0 {
		return
	}

	h.InvokeHook(sim.HookCtx{
		Domain: h,
		Pos:    HookPosAccess,
		Item:   a,
		Detail: AccessResult{Access: a, Result: value, Index: index},
	})
}

func (h *Hierarchy) mustBeWordAligned(address uint64) {
	if address%WordSize != 0 {
		panic(fmt.Sprintf("word address 0x%x is not %d-byte aligned",
			address, WordSize))
	}

	if h.mapping.Offset(address)+WordSize > h.mapping.LineWidth() {
		panic(fmt.Sprintf("word at 0x%x straddles a line boundary", address))
	}
}
