package fixer

import (
	"math"

	"github.com/inodb/fixalign/internal/annotation"
	"github.com/inodb/fixalign/internal/cigar"
)

// Status is the outcome of a considered region.
type Status string

// Region outcomes.
const (
	StatusFiltered     Status = "filtered"
	StatusRegionOnly   Status = "region_only"
	StatusNoGain       Status = "no_gain"
	StatusUnscorable   Status = "unscorable"
	StatusAlignFailed  Status = "align_failed"
	StatusTraceFailed  Status = "trace_failed"
	StatusSpanMismatch Status = "span_mismatch"
	StatusAccepted     Status = "accepted"
	StatusSuperseded   Status = "superseded"
)

// Region is a candidate window around one read intron that may hide
// annotated small exons. Coordinates are 0-based, half-open.
type Region struct {
	ReadName    string
	Chrom       string
	IntronIndex int // ordinal of the intron within the read
	IntronStart int
	IntronEnd   int

	Gene             string
	GeneStrand       int8
	TxLeftExonEnd    int
	TxRightExonStart int
	SmallExons       []annotation.Exon

	// Window proposed by the detector.
	RealignStart int
	RealignEnd   int

	MarginLen   int
	SumExonSize int
	DeltaRatio  float64

	// Set by refinement. WindowStart/WindowEnd are the realignment
	// boundaries after extension over adjacent indels.
	WindowStart   int
	WindowEnd     int
	StartCI       cigar.Index
	EndCI         cigar.Index
	StartRdp      int
	EndRdp        int
	MarginLenMod  int
	DeltaRatioMod float64

	Status    Status
	Realigned bool
	Accepted  bool
	ScoreOld  int
	ScoreNew  int
	NewCigar  cigar.Cigar // full-read cigar when accepted
}

// SmallExonStarts returns the starts of the missed exons.
func (r *Region) SmallExonStarts() []int {
	out := make([]int, len(r.SmallExons))
	for i, e := range r.SmallExons {
		out[i] = e.Start
	}
	return out
}

// SmallExonEnds returns the ends of the missed exons.
func (r *Region) SmallExonEnds() []int {
	out := make([]int, len(r.SmallExons))
	for i, e := range r.SmallExons {
		out[i] = e.End
	}
	return out
}

// Gain returns ScoreNew - ScoreOld.
func (r *Region) Gain() int {
	return r.ScoreNew - r.ScoreOld
}

func deltaRatio(margin, sum int) float64 {
	return float64(margin-sum) / float64(sum)
}

func absDeltaRatioMod(r *Region) float64 {
	return math.Abs(r.DeltaRatioMod)
}
