package cigar

// Trace walks the cigar from start, where the reference and read positions
// are startRef and startRead, until the reference position reaches target.
// It returns the index reached and the read position there. ok is false if
// target lies before startRef, start is invalid, or the cigar ends first.
//
// When target falls on the boundary of a reference-consuming op the result
// is the start of the next op, so ops that only consume read bases (I, S)
// immediately after the boundary are not passed.
func (c Cigar) Trace(start Index, startRef, startRead, target int) (Index, int, bool) {
	if target < startRef {
		return Index{}, 0, false
	}
	idx, err := c.canonical(start)
	if err != nil {
		return Index{}, 0, false
	}

	pos, rdp := startRef, startRead
	k, off := idx.Op, idx.Offset
	for {
		if pos == target {
			return Index{Op: k, Offset: off}, rdp, true
		}
		if k >= len(c) {
			return Index{}, 0, false
		}
		op := c[k]
		remain := op.Len - off
		ref, read := ConsumesRef(op.Type), ConsumesRead(op.Type)
		if ref {
			if need := target - pos; need < remain {
				if read {
					rdp += need
				}
				return Index{Op: k, Offset: off + need}, rdp, true
			}
			pos += remain
		}
		if read {
			rdp += remain
		}
		k, off = k+1, 0
	}
}
