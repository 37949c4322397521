package mem

import (
	"fmt"
	"math/bits"
)

// For capacity conversion.
const (
	KB uint64 = 1 << 10
	MB uint64 = 1 << 20
	GB uint64 = 1 << 30
)

// An AddressMapping splits an address into tag, set, and offset fields using
// pure bit manipulation.
type AddressMapping struct {
	OffsetBits uint
	SetBits    uint
}

// NewAddressMapping returns the mapping of a level with the given line width
// and number of sets. Both numbers must be powers of two.
func NewAddressMapping(lineWidth, setCount int) AddressMapping {
	if !IsPowerOfTwo(lineWidth) {
		panic(fmt.Sprintf("line width %d is not a power of two", lineWidth))
	}

	if !IsPowerOfTwo(setCount) {
		panic(fmt.Sprintf("set count %d is not a power of two", setCount))
	}

	return AddressMapping{
		OffsetBits: Log2(lineWidth),
		SetBits:    Log2(setCount),
	}
}

// LineWidth returns the number of bytes in a line.
func (m AddressMapping) LineWidth() uint64 {
	return 1 << m.OffsetBits
}

// NumSets returns the number of sets.
func (m AddressMapping) NumSets() int {
	return 1 << m.SetBits
}

// Tag returns the tag field of the address.
func (m AddressMapping) Tag(address uint64) uint64 {
	return address >> (m.OffsetBits + m.SetBits)
}

// Set returns the set field of the address.
func (m AddressMapping) Set(address uint64) int {
	return int((address >> m.OffsetBits) & (uint64(1)<<m.SetBits - 1))
}

// Offset returns the position of the addressed byte in its line.
func (m AddressMapping) Offset(address uint64) uint64 {
	return address & (m.LineWidth() - 1)
}

// LineBase returns the address of the line that contains the address.
func (m AddressMapping) LineBase(address uint64) uint64 {
	return address &^ (m.LineWidth() - 1)
}

// LineAddress rebuilds the line address from a tag and a set index.
func (m AddressMapping) LineAddress(tag uint64, set int) uint64 {
	return tag<<(m.SetBits+m.OffsetBits) | uint64(set)<<m.OffsetBits
}

// IsLineAligned checks if the address is a multiple of the line width.
func (m AddressMapping) IsLineAligned(address uint64) bool {
	return m.Offset(address) == 0
}

// MustBeLineAligned panics if the address does not start a line.
func (m AddressMapping) MustBeLineAligned(address uint64) {
	if !m.IsLineAligned(address) {
		panic(fmt.Sprintf("address 0x%x is not aligned to %d-byte lines",
			address, m.LineWidth()))
	}
}

// IsPowerOfTwo checks if n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns the base-2 logarithm of a power of two.
func Log2(n int) uint {
	return uint(bits.TrailingZeros64(uint64(n)))
}
