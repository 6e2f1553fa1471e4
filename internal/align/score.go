// Package align provides global pairwise alignment of a read segment
// against a spliced reference, and the scoring function that both the
// aligner and the fixer agree on.
package align

import (
	"errors"
	"fmt"

	"github.com/inodb/fixalign/internal/cigar"
)

// ErrAlignerContract marks an aligner whose reported result does not agree
// with an independent rescoring. It is always fatal.
var ErrAlignerContract = errors.New("aligner contract violation")

// Scheme is an affine scoring scheme. A gap of length n costs
// GapOpen + GapExtend*(n-1).
type Scheme struct {
	Match     int
	Mismatch  int
	GapOpen   int
	GapExtend int
}

// DefaultScheme is match +1, mismatch -1, gap open -1, gap extend -1.
func DefaultScheme() Scheme {
	return Scheme{Match: 1, Mismatch: -1, GapOpen: -1, GapExtend: -1}
}

// Gap returns the score of a gap of length n.
func (s Scheme) Gap(n int) int {
	if n <= 0 {
		return 0
	}
	return s.GapOpen + s.GapExtend*(n-1)
}

// Pair returns the score of aligning base a against base b.
func (s Scheme) Pair(a, b byte) int {
	if SameBase(a, b) {
		return s.Match
	}
	return s.Mismatch
}

// SameBase compares two nucleotides ignoring case.
func SameBase(a, b byte) bool {
	return a|0x20 == b|0x20
}

// Score computes the score of c aligning read against ref. M ops are scored
// base by base, = and X as match and mismatch, I and D as affine gaps and N
// for free. S, H and P have no place in a scored segment and are rejected.
// Both spans of c must equal the sequence lengths.
func Score(c cigar.Cigar, read, ref []byte, s Scheme) (int, error) {
	refSpan, readSpan := c.Lengths()
	if refSpan != len(ref) || readSpan != len(read) {
		return 0, fmt.Errorf("score %s: spans (%d,%d) do not match sequences (%d,%d)",
			c, readSpan, refSpan, len(read), len(ref))
	}

	score, i, j := 0, 0, 0
	for _, op := range c {
		switch op.Type {
		case cigar.Match:
			for k := 0; k < op.Len; k++ {
				score += s.Pair(read[i+k], ref[j+k])
			}
			i += op.Len
			j += op.Len
		case cigar.Equal:
			score += s.Match * op.Len
			i += op.Len
			j += op.Len
		case cigar.Mismatch:
			score += s.Mismatch * op.Len
			i += op.Len
			j += op.Len
		case cigar.Insertion:
			score += s.Gap(op.Len)
			i += op.Len
		case cigar.Deletion:
			score += s.Gap(op.Len)
			j += op.Len
		case cigar.Skipped:
			j += op.Len
		default:
			return 0, fmt.Errorf("score %s: op %c cannot be scored", c, op.Type)
		}
	}
	return score, nil
}

// CheckContract rescores an aligner result and returns an error wrapping
// ErrAlignerContract if the cigar does not span (read, ref) or its score
// differs from the reported one.
func CheckContract(read, ref []byte, reported int, c cigar.Cigar, s Scheme) error {
	refSpan, readSpan := c.Lengths()
	if refSpan != len(ref) || readSpan != len(read) {
		return fmt.Errorf("%w: cigar %s spans (%d,%d), want (%d,%d)",
			ErrAlignerContract, c, readSpan, refSpan, len(read), len(ref))
	}
	for _, op := range c {
		switch op.Type {
		case cigar.Match, cigar.Insertion, cigar.Deletion:
		default:
			return fmt.Errorf("%w: cigar %s contains op %c", ErrAlignerContract, c, op.Type)
		}
	}
	got, err := Score(c, read, ref, s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAlignerContract, err)
	}
	if got != reported {
		return fmt.Errorf("%w: reported score %d, cigar %s scores %d",
			ErrAlignerContract, reported, c, got)
	}
	return nil
}

// MatchesOnly rewrites = and X ops as M.
func MatchesOnly(c cigar.Cigar) cigar.Cigar {
	ops := make([]cigar.Op, len(c))
	for i, op := range c {
		if op.Type == cigar.Equal || op.Type == cigar.Mismatch {
			op.Type = cigar.Match
		}
		ops[i] = op
	}
	return cigar.FromList(ops)
}
