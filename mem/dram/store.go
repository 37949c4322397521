// Package dram provides the terminal level of the memory hierarchy.
package dram

import (
	"fmt"

	"github.com/sarchlab/memsim/mem"
)

// A Store keeps the data of the simulated main memory in a flat byte array.
//
// The store has no associativity and no eviction. Every access hits. Lines
// are served and accepted whole; the store never holds partially written
// lines.
type Store struct {
	name     string
	mapping  mem.AddressMapping
	capacity uint64
	data     []byte
	stats    mem.Statistics
}

// NewStore creates a store of capacity bytes that serves lines of lineWidth
// bytes. The set count only determines how tags are derived from addresses.
func NewStore(name string, capacity uint64, lineWidth, setCount int) *Store {
	s := &Store{
		name:     name,
		mapping:  mem.NewAddressMapping(lineWidth, setCount),
		capacity: capacity,
		data:     make([]byte, capacity),
	}

	return s
}

// Name returns the name of the store.
func (s *Store) Name() string {
	return s.name
}

// Capacity returns the number of bytes in the store.
func (s *Store) Capacity() uint64 {
	return s.capacity
}

// Mapping returns how the store derives tags from addresses.
func (s *Store) Mapping() mem.AddressMapping {
	return s.mapping
}

// Bytes returns the raw content of the store. It is meant for inspection and
// must not be modified.
func (s *Store) Bytes() []byte {
	return s.data
}

// Stats returns a copy of the hit and miss counters.
func (s *Store) Stats() mem.Statistics {
	return s.stats
}

// RollCounters adds the interval counters to the totals and clears them.
func (s *Store) RollCounters() {
	s.stats.Roll()
}

// ReadLine copies a line out of the store.
func (s *Store) ReadLine(address uint64) mem.Line {
	s.mustBeAccessible(address)

	width := s.mapping.LineWidth()
	line := mem.NewLine(int(width))
	copy(line.Bytes, s.data[address:address+width])
	line.Tag = s.mapping.Tag(address)
	line.Dirty = false
	line.Valid = true

	s.stats.Interval.ReadHit++

	return line
}

// WriteLine copies a line into the store.
func (s *Store) WriteLine(address uint64, line mem.Line) {
	s.mustBeAccessible(address)

	tag := s.mapping.Tag(address)
	if line.Tag != tag {
		panic(fmt.Sprintf(
			"%s: line tag 0x%x does not match tag 0x%x of address 0x%x",
			s.name, line.Tag, tag, address))
	}

	width := s.mapping.LineWidth()
	if uint64(line.Width()) != width {
		panic(fmt.Sprintf("%s: line of %d bytes written to %d-byte lines",
			s.name, line.Width(), width))
	}

	copy(s.data[address:address+width], line.Bytes)

	s.stats.Interval.WriteHit++
}

func (s *Store) mustBeAccessible(address uint64) {
	s.mapping.MustBeLineAligned(address)

	if address > s.capacity || s.capacity-address < s.mapping.LineWidth() {
		panic(fmt.Sprintf(
			"%s: accessing address 0x%x beyond the storage capacity 0x%x",
			s.name, address, s.capacity))
	}
}
