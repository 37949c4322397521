package hierarchy

import (
	"fmt"
	"strings"
)

// Op is the kind of a memory access issued against a hierarchy.
type Op int

// The operations a hierarchy accepts.
const (
	OpReadByte Op = iota
	OpWriteByte
	OpReadUint
	OpWriteUint
)

var opNames = []string{"read_byte", "write_byte", "read_uint", "write_uint"}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return fmt.Sprintf("Op(%d)", int(o))
	}

	return opNames[o]
}

// IsWrite returns true for the write operations.
func (o Op) IsWrite() bool {
	return o == OpWriteByte || o == OpWriteUint
}

// IsWord returns true for the 4-byte operations.
func (o Op) IsWord() bool {
	return o == OpReadUint || o == OpWriteUint
}

// ParseOp converts the short names used in trace files (r, w, rb, wb) and the
// long names returned by String into an Op.
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(s) {
	case "r", "read", "read_uint":
		return OpReadUint, nil
	case "w", "write", "write_uint":
		return OpWriteUint, nil
	case "rb", "read_byte":
		return OpReadByte, nil
	case "wb", "write_byte":
		return OpWriteByte, nil
	}

	return 0, fmt.Errorf("unknown memory operation %q", s)
}

// An Access is one logical memory operation. Value is only used by writes;
// byte writes use its low 8 bits.
type Access struct {
	Op      Op
	Address uint64
	Value   uint32
}

func (a Access) String() string {
	if a.Op.IsWrite() {
		return fmt.Sprintf("%s 0x%x 0x%x", a.Op, a.Address, a.Value)
	}

	return fmt.Sprintf("%s 0x%x", a.Op, a.Address)
}

// AccessResult is passed to hooks after an access completes.
type AccessResult struct {
	Access

	// Result is the value read, or the value written.
	Result uint32

	// Index is the position of the access in the future-access traces.
	Index int
}
