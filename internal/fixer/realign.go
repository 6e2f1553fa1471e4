package fixer

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/fixalign/internal/align"
	"github.com/inodb/fixalign/internal/annotation"
	"github.com/inodb/fixalign/internal/block"
	"github.com/inodb/fixalign/internal/cigar"
)

// realign aligns the refined region of cur against the exon-joined
// reference and, when the new alignment scores strictly better, stores the
// full-read cigar with the small exons spliced in. Per-region failures are
// recorded in r.Status; the returned error is always fatal.
func (e *Engine) realign(b *block.Block, cur cigar.Cigar, r *Region) error {
	ws, we := r.WindowStart, r.WindowEnd
	window, err := e.ref.Fetch(b.Chrom, ws, we)
	if err != nil {
		return fmt.Errorf("read %s: fetching %s:%d-%d: %w", b.Name, b.Chrom, ws, we, err)
	}

	spliced, introns := splicedReference(window, ws, r)
	read := b.Seq[r.StartRdp:r.EndRdp]

	slice, err := cur.Slice(r.StartCI, r.EndCI)
	if err != nil {
		r.Status = StatusTraceFailed
		e.logger.Debug("cannot slice region", zap.String("read", b.Name), zap.Error(err))
		return nil
	}
	scoreOld, err := align.Score(slice, read, window, e.opts.Scheme)
	if err != nil {
		r.Status = StatusUnscorable
		e.logger.Debug("cannot score region", zap.String("read", b.Name), zap.Error(err))
		return nil
	}

	scoreNew, aln, err := e.aligner.AlignGlobal(read, spliced, e.opts.Scheme)
	if err != nil {
		if errors.Is(err, align.ErrAlignerContract) {
			return fmt.Errorf("read %s: %w", b.Name, err)
		}
		r.Status = StatusAlignFailed
		e.logger.Warn("realignment failed", zap.String("read", b.Name), zap.Error(err))
		return nil
	}
	aln = align.MatchesOnly(aln)
	if err := align.CheckContract(read, spliced, scoreNew, aln, e.opts.Scheme); err != nil {
		return fmt.Errorf("read %s: %w", b.Name, err)
	}

	r.Realigned = true
	r.ScoreOld, r.ScoreNew = scoreOld, scoreNew
	if scoreNew <= scoreOld {
		r.Status = StatusNoGain
		return nil
	}

	mid, ok := insertIntrons(aln, r.TxLeftExonEnd-ws, r.SmallExons, introns)
	if !ok {
		r.Status = StatusTraceFailed
		e.logger.Debug("cannot place exon breakpoints",
			zap.String("read", b.Name), zap.Stringer("cigar", aln))
		return nil
	}

	prefix, err := cur.Slice(cigar.Index{}, r.StartCI)
	if err != nil {
		return fmt.Errorf("read %s: %w", b.Name, err)
	}
	suffix, err := cur.Slice(r.EndCI, cur.End())
	if err != nil {
		return fmt.Errorf("read %s: %w", b.Name, err)
	}
	full := cigar.Concat(prefix, mid, suffix)

	refSpan, readSpan := full.Lengths()
	if readSpan != len(b.Seq) || refSpan != b.End-b.Start {
		r.Status = StatusSpanMismatch
		e.logger.Warn("realigned cigar changes alignment span, keeping original",
			zap.String("read", b.Name),
			zap.Stringer("cigar", full),
			zap.Int("read_span", readSpan),
			zap.Int("ref_span", refSpan))
		return nil
	}
	if first, last := full.Edges(); isGap(first) || isGap(last) {
		r.Status = StatusSpanMismatch
		e.logger.Warn("realigned cigar starts or ends with a gap, keeping original",
			zap.String("read", b.Name),
			zap.Stringer("cigar", full))
		return nil
	}

	r.Status = StatusAccepted
	r.Accepted = true
	r.NewCigar = full
	return nil
}

func isGap(t byte) bool {
	return t == cigar.Deletion || t == cigar.Skipped
}

// splicedReference joins the flanks of window with the small exons of r and
// returns the lengths of the introns between them, left to right.
func splicedReference(window []byte, ws int, r *Region) ([]byte, []int) {
	left, right := r.TxLeftExonEnd, r.TxRightExonStart

	out := make([]byte, 0, len(window))
	out = append(out, window[:left-ws]...)
	introns := make([]int, 0, len(r.SmallExons)+1)
	prev := left
	for _, ex := range r.SmallExons {
		introns = append(introns, ex.Start-prev)
		out = append(out, window[ex.Start-ws:ex.End-ws]...)
		prev = ex.End
	}
	introns = append(introns, right-prev)
	out = append(out, window[right-ws:]...)
	return out, introns
}

// insertIntrons splits aln at the exon boundaries of the spliced reference
// and puts an N op of the matching intron length at each one.
func insertIntrons(aln cigar.Cigar, first int, exons []annotation.Exon, introns []int) (cigar.Cigar, bool) {
	var parts []cigar.Cigar
	idx, pos, rdp := cigar.Index{}, 0, 0
	bp := first
	for i, n := range introns {
		next, nrdp, ok := aln.Trace(idx, pos, rdp, bp)
		if !ok {
			return nil, false
		}
		piece, err := aln.Slice(idx, next)
		if err != nil {
			return nil, false
		}
		parts = append(parts, piece, cigar.Cigar{{Len: n, Type: cigar.Skipped}})
		idx, pos, rdp = next, bp, nrdp
		if i < len(exons) {
			bp += exons[i].Len()
		}
	}
	tail, err := aln.Slice(idx, aln.End())
	if err != nil {
		return nil, false
	}
	parts = append(parts, tail)
	return cigar.Concat(parts...), true
}
