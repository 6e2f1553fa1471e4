// Package cigar models CIGAR strings as normalized operation lists and
// provides the coordinate arithmetic used to slice and splice alignments.
package cigar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Operation characters.
const (
	Match     byte = 'M'
	Insertion byte = 'I'
	Deletion  byte = 'D'
	Skipped   byte = 'N'
	SoftClip  byte = 'S'
	HardClip  byte = 'H'
	Padding   byte = 'P'
	Equal     byte = '='
	Mismatch  byte = 'X'
)

// ErrInvalidIndex is returned when a cigar index does not address an op.
var ErrInvalidIndex = errors.New("invalid cigar index")

// Op is a single CIGAR operation.
type Op struct {
	Len  int
	Type byte
}

// String returns the SAM encoding of the op, e.g. "10M".
func (o Op) String() string {
	return strconv.Itoa(o.Len) + string(o.Type)
}

// Cigar is a normalized list of operations: no zero-length ops and no two
// adjacent ops of the same type.
type Cigar []Op

// Index addresses a position inside a Cigar: Offset bases into op Op.
// Index{k, 0} is immediately before op k and Index{len(c), 0} is the end.
type Index struct {
	Op     int
	Offset int
}

// Less reports whether i comes strictly before j.
func (i Index) Less(j Index) bool {
	if i.Op != j.Op {
		return i.Op < j.Op
	}
	return i.Offset < j.Offset
}

func (i Index) String() string {
	return fmt.Sprintf("(%d,%d)", i.Op, i.Offset)
}

// ConsumesRef reports whether op type t advances the reference position.
func ConsumesRef(t byte) bool {
	switch t {
	case Match, Equal, Mismatch, Deletion, Skipped:
		return true
	}
	return false
}

// ConsumesRead reports whether op type t advances the read position.
func ConsumesRead(t byte) bool {
	switch t {
	case Match, Equal, Mismatch, Insertion, SoftClip:
		return true
	}
	return false
}

func isClip(t byte) bool {
	return t == SoftClip || t == HardClip
}

// FromList builds a normalized Cigar, dropping zero-length ops and merging
// adjacent ops of the same type.
func FromList(ops []Op) Cigar {
	var c Cigar
	for _, op := range ops {
		if op.Len <= 0 {
			continue
		}
		if n := len(c); n > 0 && c[n-1].Type == op.Type {
			c[n-1].Len += op.Len
			continue
		}
		c = append(c, op)
	}
	return c
}

// Concat joins cigars and normalizes the result.
func Concat(parts ...Cigar) Cigar {
	var ops []Op
	for _, p := range parts {
		ops = append(ops, p...)
	}
	return FromList(ops)
}

// Lengths returns the reference and read spans of the cigar.
func (c Cigar) Lengths() (ref, read int) {
	for _, op := range c {
		if ConsumesRef(op.Type) {
			ref += op.Len
		}
		if ConsumesRead(op.Type) {
			read += op.Len
		}
	}
	return ref, read
}

// Count returns the total length of ops of type t.
func (c Cigar) Count(t byte) int {
	n := 0
	for _, op := range c {
		if op.Type == t {
			n += op.Len
		}
	}
	return n
}

// Equal reports whether two cigars have identical ops.
func (c Cigar) Equal(o Cigar) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

// Edges returns the types of the first and last ops that are not clips,
// or zero bytes when the cigar holds clips only.
func (c Cigar) Edges() (first, last byte) {
	for _, op := range c {
		if !isClip(op.Type) {
			first = op.Type
			break
		}
	}
	for i := len(c) - 1; i >= 0; i-- {
		if !isClip(c[i].Type) {
			last = c[i].Type
			break
		}
	}
	return first, last
}

// End returns the index just past the last op.
func (c Cigar) End() Index {
	return Index{Op: len(c)}
}

// String returns the SAM text of the cigar, "*" when empty.
func (c Cigar) String() string {
	if len(c) == 0 {
		return "*"
	}
	var b strings.Builder
	for _, op := range c {
		b.WriteString(strconv.Itoa(op.Len))
		b.WriteByte(op.Type)
	}
	return b.String()
}

// canonical rewrites an index that sits at the very end of an op to the
// start of the following op and checks that it is in range.
func (c Cigar) canonical(i Index) (Index, error) {
	if i.Op < 0 || i.Offset < 0 || i.Op > len(c) {
		return i, fmt.Errorf("%w: %s in %d ops", ErrInvalidIndex, i, len(c))
	}
	if i.Op == len(c) {
		if i.Offset != 0 {
			return i, fmt.Errorf("%w: %s past end", ErrInvalidIndex, i)
		}
		return i, nil
	}
	switch n := c[i.Op].Len; {
	case i.Offset < n:
		return i, nil
	case i.Offset == n:
		return Index{Op: i.Op + 1}, nil
	default:
		return i, fmt.Errorf("%w: %s exceeds op length %d", ErrInvalidIndex, i, n)
	}
}

// Slice returns the normalized ops between start and end. Ops split by an
// index contribute only the part inside the range.
func (c Cigar) Slice(start, end Index) (Cigar, error) {
	start, err := c.canonical(start)
	if err != nil {
		return nil, err
	}
	end, err = c.canonical(end)
	if err != nil {
		return nil, err
	}
	if end.Less(start) {
		return nil, fmt.Errorf("%w: slice end %s before start %s", ErrInvalidIndex, end, start)
	}

	var ops []Op
	for k := start.Op; k <= end.Op && k < len(c); k++ {
		from, to := 0, c[k].Len
		if k == start.Op {
			from = start.Offset
		}
		if k == end.Op {
			to = end.Offset
		}
		ops = append(ops, Op{Len: to - from, Type: c[k].Type})
	}
	return FromList(ops), nil
}
