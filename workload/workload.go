// Package workload produces the access sequences that drive a hierarchy.
package workload

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/sarchlab/memsim/mem/hierarchy"
)

// Pattern selects how addresses are generated.
type Pattern int

// The supported patterns.
const (
	Sequential Pattern = iota
	Strided
	Random
	Hashed
	Transpose
)

var patternNames = []string{
	"sequential", "strided", "random", "hashed", "transpose",
}

func (p Pattern) String() string {
	if p < 0 || int(p) >= len(patternNames) {
		return fmt.Sprintf("Pattern(%d)", int(p))
	}

	return patternNames[p]
}

// ParsePattern converts a pattern name into a Pattern.
func ParsePattern(name string) (Pattern, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range patternNames {
		if n == name {
			return Pattern(i), nil
		}
	}

	return 0, errors.Errorf("unknown access pattern %q", name)
}

// Spec describes a synthetic workload. All accesses are word accesses inside
// [Base, Base+Span).
type Spec struct {
	Pattern  Pattern
	Accesses int
	Base     uint64
	Span     uint64

	// Stride in bytes, used by the strided pattern. It is rounded down to a
	// multiple of the word size.
	Stride uint64

	// WriteRatio is the fraction of accesses that are writes. The transpose
	// pattern ignores it: it writes the first half and reads the second.
	WriteRatio float64

	Seed int64
}

// Validate checks that the workload can be generated.
func (s Spec) Validate() error {
	if s.Accesses < 0 {
		return errors.Errorf("access count %d is negative", s.Accesses)
	}

	if s.Base%hierarchy.WordSize != 0 {
		return errors.Errorf("base address 0x%x is not word aligned", s.Base)
	}

	if s.Span < hierarchy.WordSize {
		return errors.Errorf("span %d is smaller than a word", s.Span)
	}

	if s.WriteRatio < 0 || s.WriteRatio > 1 {
		return errors.Errorf("write ratio %g is not in [0, 1]", s.WriteRatio)
	}

	if s.Pattern == Strided && s.Stride < hierarchy.WordSize {
		return errors.Errorf("stride %d is smaller than a word", s.Stride)
	}

	if s.Pattern < Sequential || s.Pattern > Transpose {
		return errors.Errorf("unknown access pattern %s", s.Pattern)
	}

	return nil
}

// Generate produces the accesses described by the spec.
func Generate(s Spec) ([]hierarchy.Access, error) {
	if err := s.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid workload")
	}

	g := &generator{
		spec:  s,
		rng:   rand.New(rand.NewSource(s.Seed)),
		words: s.Span / hierarchy.WordSize,
	}

	accesses := make([]hierarchy.Access, s.Accesses)
	for i := range accesses {
		accesses[i] = g.access(uint64(i))
	}

	return accesses, nil
}

type generator struct {
	spec  Spec
	rng   *rand.Rand
	words uint64
}

func (g *generator) access(i uint64) hierarchy.Access {
	if g.spec.Pattern == Transpose {
		return g.transpose(i)
	}

	var word uint64

	switch g.spec.Pattern {
	case Sequential:
		word = i % g.words
	case Strided:
		word = (i * (g.spec.Stride / hierarchy.WordSize)) % g.words
	case Random:
		word = uint64(g.rng.Int63n(int64(g.words)))
	case Hashed:
		var key [8]byte
		binary.LittleEndian.PutUint64(key[:], i)
		word = xxhash.Sum64(key[:]) % g.words
	}

	a := hierarchy.Access{
		Op:      hierarchy.OpReadUint,
		Address: g.spec.Base + word*hierarchy.WordSize,
	}

	if g.rng.Float64() < g.spec.WriteRatio {
		a.Op = hierarchy.OpWriteUint
		a.Value = g.rng.Uint32()
	}

	return a
}

// transpose writes a square matrix of words row by row, then reads it column
// by column.
func (g *generator) transpose(i uint64) hierarchy.Access {
	n := uint64(math.Sqrt(float64(g.words)))
	cells := n * n
	half := uint64(g.spec.Accesses+1) / 2

	if i < half {
		k := i % cells
		return hierarchy.Access{
			Op:      hierarchy.OpWriteUint,
			Address: g.spec.Base + k*hierarchy.WordSize,
			Value:   uint32(k),
		}
	}

	k := (i - half) % cells
	row, col := k%n, k/n

	return hierarchy.Access{
		Op:      hierarchy.OpReadUint,
		Address: g.spec.Base + (row*n+col)*hierarchy.WordSize,
	}
}

// FutureTrace returns the line address of every access, in order. The
// result is the future-access trace consumed by clairvoyant caches, with one
// entry per logical access.
func FutureTrace(accesses []hierarchy.Access, lineWidth int) []uint64 {
	mask := ^(uint64(lineWidth) - 1)

	trace := make([]uint64, len(accesses))
	for i, a := range accesses {
		trace[i] = a.Address & mask
	}

	return trace
}
