package fixer

import (
	"go.uber.org/zap"

	"github.com/inodb/fixalign/internal/annotation"
	"github.com/inodb/fixalign/internal/block"
)

// GeneLookup finds annotated genes overlapping a reference range.
type GeneLookup interface {
	Overlap(chrom string, start, end, minOverlap int) []*annotation.Gene
}

// Detect proposes realignment regions for every intron of b. The result
// has one entry per intron, in intron order; introns without a candidate
// get a nil group.
func Detect(b *block.Block, genes GeneLookup, opts Options, logger *zap.Logger) [][]*Region {
	groups := make([][]*Region, len(b.Introns))
	for i, in := range b.Introns {
		logger.Debug("search window",
			zap.String("read", b.Name),
			zap.String("chrom", b.Chrom),
			zap.Int("start", in.Start-opts.FlankLen),
			zap.Int("end", in.End+opts.FlankLen))

		for _, g := range genes.Overlap(b.Chrom, in.Start, in.End, opts.MinOverlap) {
			if !opts.IgnoreStrand && g.Strand != 0 && g.Strand != b.Strand {
				continue
			}
			if r := proposeRegion(b, i, in, g, opts); r != nil {
				groups[i] = append(groups[i], r)
			} else {
				logger.Debug("window does not cover flanking exons",
					zap.String("read", b.Name), zap.String("gene", g.ID))
			}
		}
	}
	return groups
}

// proposeRegion returns nil when g has no small exon inside the intron or
// when the read does not reach the flanking exon boundaries.
func proposeRegion(b *block.Block, ordinal int, in block.Intron, g *annotation.Gene, opts Options) *Region {
	exons := g.ExonsWithin(in.Start, in.End, opts.SmallExonSize)
	if len(exons) == 0 {
		return nil
	}

	left, ok := g.LeftExonEnd(in.Start)
	if !ok {
		left = in.Start
	}
	right, ok := g.RightExonStart(in.End)
	if !ok {
		right = in.End
	}

	start := max(left-opts.FlankLen, b.Start)
	end := min(right+opts.FlankLen, b.End)
	if start > left || end < right {
		return nil
	}

	sum := 0
	for _, e := range exons {
		sum += e.Len()
	}
	margin := in.Len()

	return &Region{
		ReadName:         b.Name,
		Chrom:            b.Chrom,
		IntronIndex:      ordinal,
		IntronStart:      in.Start,
		IntronEnd:        in.End,
		Gene:             g.ID,
		GeneStrand:       g.Strand,
		TxLeftExonEnd:    left,
		TxRightExonStart: right,
		SmallExons:       exons,
		RealignStart:     start,
		RealignEnd:       end,
		MarginLen:        margin,
		SumExonSize:      sum,
		DeltaRatio:       deltaRatio(margin, sum),
	}
}
