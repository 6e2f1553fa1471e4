package fixer

import (
	"fmt"

	"github.com/biogo/hts/sam"
	"go.uber.org/zap"

	"github.com/inodb/fixalign/internal/align"
	"github.com/inodb/fixalign/internal/block"
	"github.com/inodb/fixalign/internal/cigar"
	"github.com/inodb/fixalign/internal/reference"
)

// Engine fixes spliced alignments that skipped small annotated exons.
type Engine struct {
	genes   GeneLookup
	ref     reference.Fetcher
	aligner align.Aligner
	opts    Options
	logger  *zap.Logger
}

// NewEngine creates an engine using the default aligner.
func NewEngine(genes GeneLookup, ref reference.Fetcher, opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		genes:   genes,
		ref:     ref,
		aligner: align.NewNeedlemanWunsch(),
		opts:    opts,
		logger:  zap.NewNop(),
	}, nil
}

// SetAligner replaces the aligner used for realignment.
func (e *Engine) SetAligner(a align.Aligner) {
	e.aligner = a
}

// SetLogger sets the logger for debug and warning messages.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Options returns the engine configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// Outcome is the result of inspecting one record.
type Outcome struct {
	Record *sam.Record
	Skip   block.Skip

	Introns           int
	Regions           []*Region // one per considered region, in intron order
	TraceFailures     int       // regions dropped because their window could not be traced
	MisalignedIntrons int
	FixedIntrons      int
	Changed           bool
}

// FixRecord inspects rec and, unless the engine runs in region-only mode,
// rewrites its cigar when a realignment is accepted. Errors are fatal for
// the run: malformed records, reference failures and aligner contract
// violations.
func (e *Engine) FixRecord(rec *sam.Record) (*Outcome, error) {
	out := &Outcome{Record: rec}
	if out.Skip = block.Classify(rec); out.Skip != block.None {
		return out, nil
	}
	b, err := block.New(rec)
	if err != nil {
		return nil, err
	}
	if len(b.Introns) == 0 {
		out.Skip = block.NoIntron
		return out, nil
	}
	out.Introns = len(b.Introns)

	cur := b.Cigar
	for _, group := range Detect(b, e.genes, e.opts, e.logger) {
		if len(group) == 0 {
			continue
		}

		var kept []*Region
		for _, r := range group {
			if err := Refine(r, cur, b.Start, e.opts.FloatFlankLen); err != nil {
				out.TraceFailures++
				e.logger.Debug("skipping region", zap.String("read", b.Name),
					zap.String("gene", r.Gene), zap.Error(err))
				continue
			}
			kept = append(kept, r)
		}
		if e.opts.Simplify && len(kept) > 1 {
			kept = []*Region{simplest(kept)}
		}
		out.Regions = append(out.Regions, kept...)

		var passing []*Region
		for _, r := range kept {
			if absDeltaRatioMod(r) > e.opts.DeltaRatioThd {
				r.Status = StatusFiltered
				continue
			}
			passing = append(passing, r)
		}
		if len(passing) == 0 {
			continue
		}
		out.MisalignedIntrons++

		if e.opts.OnlyRegion {
			for _, r := range passing {
				r.Status = StatusRegionOnly
			}
			continue
		}

		var fixed bool
		if e.opts.SequentialRegions {
			cur, fixed, err = e.applySequential(b, cur, passing)
		} else {
			cur, fixed, err = e.applyBest(b, cur, passing)
		}
		if err != nil {
			return nil, err
		}
		if fixed {
			out.FixedIntrons++
		}
	}

	if !cur.Equal(b.Cigar) {
		sc, err := cur.ToSAM()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", b.Name, err)
		}
		rec.Cigar = sc
		out.Changed = true
	}
	return out, nil
}

// applySequential realigns each region on the cigar left by the previous
// one.
func (e *Engine) applySequential(b *block.Block, cur cigar.Cigar, regions []*Region) (cigar.Cigar, bool, error) {
	var fixed, dirty bool
	for _, r := range regions {
		if dirty {
			if err := Refine(r, cur, b.Start, e.opts.FloatFlankLen); err != nil {
				r.Status = StatusTraceFailed
				continue
			}
		}
		if err := e.realign(b, cur, r); err != nil {
			return nil, false, err
		}
		if r.Accepted {
			cur = r.NewCigar
			fixed, dirty = true, true
		}
	}
	return cur, fixed, nil
}

// applyBest realigns every region against the same cigar and keeps the
// accepted one with the largest score gain.
func (e *Engine) applyBest(b *block.Block, cur cigar.Cigar, regions []*Region) (cigar.Cigar, bool, error) {
	var best *Region
	for _, r := range regions {
		if err := e.realign(b, cur, r); err != nil {
			return nil, false, err
		}
		if r.Accepted && (best == nil || r.Gain() > best.Gain()) {
			best = r
		}
	}
	if best == nil {
		return cur, false, nil
	}
	for _, r := range regions {
		if r.Accepted && r != best {
			r.Status = StatusSuperseded
			r.Accepted = false
			r.NewCigar = nil
		}
	}
	return best.NewCigar, true, nil
}

// simplest returns the region whose refined delta ratio is closest to zero.
func simplest(regions []*Region) *Region {
	best := regions[0]
	for _, r := range regions[1:] {
		if absDeltaRatioMod(r) < absDeltaRatioMod(best) {
			best = r
		}
	}
	return best
}
