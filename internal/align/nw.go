package align

import (
	"fmt"
	"math"

	"github.com/inodb/fixalign/internal/cigar"
)

// Aligner aligns a read segment end to end against a reference segment and
// returns the alignment score and a cigar over {M, I, D} (= and X are
// accepted and folded into M by the caller).
type Aligner interface {
	AlignGlobal(read, ref []byte, s Scheme) (int, cigar.Cigar, error)
}

// DefaultMaxCells bounds the dynamic-programming matrix of NeedlemanWunsch.
const DefaultMaxCells = 1 << 26

const negInf = math.MinInt / 4

// DP states: alignment column ends in a match/mismatch (H), a read base
// against a gap (E, cigar I) or a reference base against a gap (F, cigar D).
const (
	stateH uint8 = iota
	stateE
	stateF
)

// NeedlemanWunsch is a global aligner with affine gaps (Gotoh). Ties are
// broken in favour of H, then E, then F, which pushes gaps towards the
// start of the alignment.
type NeedlemanWunsch struct {
	// MaxCells limits (len(read)+1)*(len(ref)+1). Zero means DefaultMaxCells.
	MaxCells int
}

// NewNeedlemanWunsch returns an aligner with the default matrix limit.
func NewNeedlemanWunsch() *NeedlemanWunsch {
	return &NeedlemanWunsch{MaxCells: DefaultMaxCells}
}

// AlignGlobal implements Aligner.
func (a *NeedlemanWunsch) AlignGlobal(read, ref []byte, s Scheme) (int, cigar.Cigar, error) {
	n, m := len(read), len(ref)
	switch {
	case n == 0 && m == 0:
		return 0, nil, nil
	case n == 0:
		return s.Gap(m), cigar.Cigar{{Len: m, Type: cigar.Deletion}}, nil
	case m == 0:
		return s.Gap(n), cigar.Cigar{{Len: n, Type: cigar.Insertion}}, nil
	}

	maxCells := a.MaxCells
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}
	if (n+1)*(m+1) > maxCells {
		return 0, nil, fmt.Errorf("align %dx%d: matrix exceeds %d cells", n, m, maxCells)
	}

	w := m + 1
	// tb packs the predecessor state of H, E and F in 2 bits each.
	tb := make([]uint8, (n+1)*w)

	prevH, prevE, prevF := make([]int, w), make([]int, w), make([]int, w)
	curH, curE, curF := make([]int, w), make([]int, w), make([]int, w)

	prevH[0], prevE[0], prevF[0] = 0, negInf, negInf
	for j := 1; j <= m; j++ {
		prevH[j], prevE[j] = negInf, negInf
		v, p := best3(prevH[j-1]+s.GapOpen, prevE[j-1]+s.GapOpen, prevF[j-1]+s.GapExtend)
		prevF[j] = v
		tb[j] = p << 4
	}

	for i := 1; i <= n; i++ {
		row := i * w
		curH[0], curF[0] = negInf, negInf
		v, p := best3(prevH[0]+s.GapOpen, prevE[0]+s.GapExtend, prevF[0]+s.GapOpen)
		curE[0] = v
		tb[row] = p << 2

		rb := read[i-1]
		for j := 1; j <= m; j++ {
			h, ph := best3(prevH[j-1], prevE[j-1], prevF[j-1])
			curH[j] = h + s.Pair(rb, ref[j-1])

			e, pe := best3(prevH[j]+s.GapOpen, prevE[j]+s.GapExtend, prevF[j]+s.GapOpen)
			curE[j] = e

			f, pf := best3(curH[j-1]+s.GapOpen, curE[j-1]+s.GapOpen, curF[j-1]+s.GapExtend)
			curF[j] = f

			tb[row+j] = ph | pe<<2 | pf<<4
		}
		prevH, curH = curH, prevH
		prevE, curE = curE, prevE
		prevF, curF = curF, prevF
	}

	score, state := best3(prevH[m], prevE[m], prevF[m])

	var rev []cigar.Op
	i, j := n, m
	for i > 0 || j > 0 {
		code := tb[i*w+j]
		switch state {
		case stateH:
			rev = append(rev, cigar.Op{Len: 1, Type: cigar.Match})
			state = code & 3
			i--
			j--
		case stateE:
			rev = append(rev, cigar.Op{Len: 1, Type: cigar.Insertion})
			state = (code >> 2) & 3
			i--
		default:
			rev = append(rev, cigar.Op{Len: 1, Type: cigar.Deletion})
			state = (code >> 4) & 3
			j--
		}
		if i < 0 || j < 0 {
			return 0, nil, fmt.Errorf("align %dx%d: traceback left the matrix", n, m)
		}
	}
	for l, r := 0, len(rev)-1; l < r; l, r = l+1, r-1 {
		rev[l], rev[r] = rev[r], rev[l]
	}
	return score, cigar.FromList(rev), nil
}

// best3 returns the maximum of the H, E and F candidates and the state it
// came from, preferring earlier states on ties.
func best3(h, e, f int) (int, uint8) {
	v, p := h, stateH
	if e > v {
		v, p = e, stateE
	}
	if f > v {
		v, p = f, stateF
	}
	return v, p
}
