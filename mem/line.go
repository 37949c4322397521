// Package mem defines the common vocabulary of the memory hierarchy: cache
// lines, the Level interface, address mappings, and hit/miss counters.
package mem

// A Line is a fixed-size block of bytes together with the tag of the memory
// block that it holds.
//
// Lines are always passed by value between levels. Since the byte slice would
// otherwise be shared, every level clones the line before storing or
// returning it.
type Line struct {
	Bytes []byte
	Tag   uint64
	Dirty bool
	Valid bool
}

// NewLine creates an invalid, zero-filled line of the given width.
func NewLine(width int) Line {
	return Line{
		Bytes: make([]byte, width),
	}
}

// Clone returns a deep copy of the line.
func (l Line) Clone() Line {
	c := l
	c.Bytes = make([]byte, len(l.Bytes))
	copy(c.Bytes, l.Bytes)

	return c
}

// Width returns the number of bytes in the line.
func (l Line) Width() int {
	return len(l.Bytes)
}

// A Level is one stage of the memory hierarchy. A level serves full lines to
// the level above it and accepts full lines written back from above.
type Level interface {
	// ReadLine returns a copy of the line at the line-aligned address.
	ReadLine(address uint64) Line

	// WriteLine stores a copy of the line at the line-aligned address. The
	// tag of the line must match the tag that the level derives from the
	// address.
	WriteLine(address uint64, line Line)

	// Mapping returns how the level splits an address into tag, set and
	// offset.
	Mapping() AddressMapping
}
