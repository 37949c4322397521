package workload

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/memsim/mem/hierarchy"
)

// Parse reads a text trace. Each line holds one access:
//
//	r  <address>
//	w  <address> <value>
//	rb <address>
//	wb <address> <value>
//
// Numbers can be written in decimal, hexadecimal (0x), octal (0o), or binary
// (0b). Everything after a # is a comment.
func Parse(r io.Reader) ([]hierarchy.Access, error) {
	var accesses []hierarchy.Access

	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}

		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		a, err := parseAccess(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}

		accesses = append(accesses, a)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read trace")
	}

	return accesses, nil
}

// Load reads a text trace from a file.
func Load(path string) ([]hierarchy.Access, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open trace %s", path)
	}
	defer f.Close()

	accesses, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "trace %s", path)
	}

	return accesses, nil
}

func parseAccess(fields []string) (hierarchy.Access, error) {
	op, err := hierarchy.ParseOp(fields[0])
	if err != nil {
		return hierarchy.Access{}, err
	}

	want := 2
	if op.IsWrite() {
		want = 3
	}

	if len(fields) != want {
		return hierarchy.Access{}, errors.Errorf(
			"%s takes %d operands, got %d", op, want-1, len(fields)-1)
	}

	address, err := strconv.ParseUint(fields[1], 0, 64)
	if err != nil {
		return hierarchy.Access{}, errors.Wrapf(err, "bad address %q", fields[1])
	}

	if op.IsWord() && address%hierarchy.WordSize != 0 {
		return hierarchy.Access{}, errors.Errorf(
			"word address 0x%x is not %d-byte aligned",
			address, hierarchy.WordSize)
	}

	a := hierarchy.Access{Op: op, Address: address}
	if !op.IsWrite() {
		return a, nil
	}

	bitSize := 32
	if !op.IsWord() {
		bitSize = 8
	}

	value, err := strconv.ParseUint(fields[2], 0, bitSize)
	if err != nil {
		return hierarchy.Access{}, errors.Wrapf(err, "bad value %q", fields[2])
	}

	a.Value = uint32(value)

	return a, nil
}
