// Package fixer detects introns of spliced alignments that swallowed small
// annotated exons and realigns them against the exon-joined reference.
package fixer

import (
	"errors"
	"fmt"
	"math"

	"github.com/inodb/fixalign/internal/align"
)

// ErrConfig marks invalid options.
var ErrConfig = errors.New("invalid configuration")

// Options control detection, filtering and realignment.
type Options struct {
	SmallExonSize int
	FlankLen      int
	MinOverlap    int
	IgnoreStrand  bool
	DeltaRatioThd float64
	Simplify      bool
	FloatFlankLen bool
	OnlyRegion    bool

	// SequentialRegions applies the regions of one intron one after the
	// other on the evolving cigar. When false, every region is realigned
	// against the same cigar and only the largest score gain is kept.
	SequentialRegions bool

	Scheme  align.Scheme
	Workers int
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		SmallExonSize:     100,
		FlankLen:          20,
		MinOverlap:        1,
		IgnoreStrand:      true,
		DeltaRatioThd:     0.5,
		Simplify:          true,
		FloatFlankLen:     true,
		SequentialRegions: true,
		Scheme:            align.DefaultScheme(),
		Workers:           1,
	}
}

// Validate checks that the options describe a usable configuration.
func (o Options) Validate() error {
	switch {
	case o.SmallExonSize < 1:
		return fmt.Errorf("%w: small_exon_size %d must be positive", ErrConfig, o.SmallExonSize)
	case o.FlankLen < 0:
		return fmt.Errorf("%w: flank_len %d must not be negative", ErrConfig, o.FlankLen)
	case o.MinOverlap < 1:
		return fmt.Errorf("%w: min_overlap %d must be positive", ErrConfig, o.MinOverlap)
	case math.IsNaN(o.DeltaRatioThd) || o.DeltaRatioThd < 0:
		return fmt.Errorf("%w: delta_ratio_thd %v must be a non-negative number", ErrConfig, o.DeltaRatioThd)
	case o.Workers < 0:
		return fmt.Errorf("%w: workers %d must not be negative", ErrConfig, o.Workers)
	case o.Scheme.Match <= o.Scheme.Mismatch:
		return fmt.Errorf("%w: match score %d must exceed mismatch score %d", ErrConfig, o.Scheme.Match, o.Scheme.Mismatch)
	case o.Scheme.GapOpen > 0 || o.Scheme.GapExtend > 0:
		return fmt.Errorf("%w: gap scores (%d, %d) must not be positive", ErrConfig, o.Scheme.GapOpen, o.Scheme.GapExtend)
	}
	return nil
}
