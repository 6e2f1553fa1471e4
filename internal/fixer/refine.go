package fixer

import (
	"errors"
	"fmt"

	"github.com/inodb/fixalign/internal/cigar"
)

// ErrTrace is returned when a reference position cannot be traced into the
// cigar.
var ErrTrace = errors.New("cannot trace reference position")

// Refine maps the region's reference window onto c (an alignment starting
// at refStart), optionally extends it over an adjacent deletion or
// insertion, drops clipped ends and recomputes the margin statistics.
func Refine(r *Region, c cigar.Cigar, refStart int, floatFlank bool) error {
	sci, srdp, ok := c.Trace(cigar.Index{}, refStart, 0, r.RealignStart)
	if !ok {
		return fmt.Errorf("%w: realign start %d", ErrTrace, r.RealignStart)
	}
	eci, erdp, ok := c.Trace(sci, r.RealignStart, srdp, r.RealignEnd)
	if !ok {
		return fmt.Errorf("%w: realign end %d", ErrTrace, r.RealignEnd)
	}
	start, end := r.RealignStart, r.RealignEnd

	if floatFlank {
		if k, n, ok := opBefore(c, sci); ok {
			switch c[k].Type {
			case cigar.Deletion:
				start -= n
				sci = cigar.Index{Op: k}
			case cigar.Insertion:
				srdp -= n
				sci = cigar.Index{Op: k}
			}
		}
		if eci.Op < len(c) {
			op := c[eci.Op]
			n := op.Len - eci.Offset
			switch op.Type {
			case cigar.Deletion:
				end += n
				eci = cigar.Index{Op: eci.Op + 1}
			case cigar.Insertion:
				erdp += n
				eci = cigar.Index{Op: eci.Op + 1}
			}
		}
	}

	// Clipped ends carry no alignment to improve.
	for sci.Less(eci) && sci.Offset == 0 && isClip(c[sci.Op].Type) {
		if c[sci.Op].Type == cigar.SoftClip {
			srdp += c[sci.Op].Len
		}
		sci = cigar.Index{Op: sci.Op + 1}
	}
	for sci.Less(eci) && eci.Offset == 0 && eci.Op > 0 && isClip(c[eci.Op-1].Type) {
		if c[eci.Op-1].Type == cigar.SoftClip {
			erdp -= c[eci.Op-1].Len
		}
		eci = cigar.Index{Op: eci.Op - 1}
	}

	slice, err := c.Slice(sci, eci)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTrace, err)
	}

	r.WindowStart, r.WindowEnd = start, end
	r.StartCI, r.EndCI = sci, eci
	r.StartRdp, r.EndRdp = srdp, erdp
	r.MarginLenMod = r.MarginLen + slice.Count(cigar.Insertion) - slice.Count(cigar.Deletion)
	r.DeltaRatioMod = deltaRatio(r.MarginLenMod, r.SumExonSize)
	return nil
}

// opBefore returns the op preceding idx and how many of its bases lie
// before idx: the split part when idx is inside an op, otherwise the whole
// previous op.
func opBefore(c cigar.Cigar, idx cigar.Index) (k, n int, ok bool) {
	if idx.Offset > 0 {
		return idx.Op, idx.Offset, true
	}
	if idx.Op > 0 {
		return idx.Op - 1, c[idx.Op-1].Len, true
	}
	return 0, 0, false
}

func isClip(t byte) bool {
	return t == cigar.SoftClip || t == cigar.HardClip
}
