package fixer

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/fatih/set.v0"

	"github.com/inodb/fixalign/internal/block"
)

// Stats are the run counters. They are updated by the collector only.
type Stats struct {
	InputReads        int
	ReadsWithIntrons  int
	TotalIntrons      int
	MisalignedReads   int
	MisalignedIntrons int
	FixedReads        int
	FixedIntrons      int
	WallTime          time.Duration

	RegionsConsidered int
	RegionsRealigned  int
	RegionsAccepted   int
	TraceFailures     int
	SpanMismatches    int
	Skipped           map[block.Skip]int

	// FixedReadNames holds distinct names of fixed reads; the two mates of
	// a pair count once.
	FixedReadNames set.Interface
	Interrupted    bool
}

// NewStats returns zeroed counters.
func NewStats() *Stats {
	return &Stats{
		Skipped:        make(map[block.Skip]int),
		FixedReadNames: set.New(set.ThreadSafe),
	}
}

// Add accounts for one record.
func (s *Stats) Add(o *Outcome) {
	s.InputReads++
	if o.Skip != block.None {
		s.Skipped[o.Skip]++
		return
	}
	s.ReadsWithIntrons++
	s.TotalIntrons += o.Introns
	s.TraceFailures += o.TraceFailures
	s.MisalignedIntrons += o.MisalignedIntrons
	s.FixedIntrons += o.FixedIntrons
	if o.MisalignedIntrons > 0 {
		s.MisalignedReads++
	}
	if o.FixedIntrons > 0 {
		s.FixedReads++
		s.FixedReadNames.Add(o.Record.Name)
	}
	for _, r := range o.Regions {
		s.RegionsConsidered++
		if r.Realigned {
			s.RegionsRealigned++
		}
		switch r.Status {
		case StatusAccepted:
			s.RegionsAccepted++
		case StatusTraceFailed:
			s.TraceFailures++
		case StatusSpanMismatch:
			s.SpanMismatches++
		}
	}
}

// WriteSummary prints the main counters, one per line. Misaligned counts
// carry their percentage of the input, fixed counts their percentage of
// the misaligned ones; a percentage is left out when its base is zero.
func (s *Stats) WriteSummary(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Input reads: %d\n"+
		"Total introns: %d\n"+
		"Misaligned reads: %d%s\n"+
		"Misaligned introns: %d%s\n"+
		"Fixed reads: %d%s\n"+
		"Fixed introns: %d%s\n"+
		"Wall time: %s\n",
		s.InputReads, s.TotalIntrons,
		s.MisalignedReads, percent(s.MisalignedReads, s.InputReads),
		s.MisalignedIntrons, percent(s.MisalignedIntrons, s.TotalIntrons),
		s.FixedReads, percent(s.FixedReads, s.MisalignedReads),
		s.FixedIntrons, percent(s.FixedIntrons, s.MisalignedIntrons),
		s.WallTime.Round(time.Millisecond))
	return err
}

func percent(n, of int) string {
	if of == 0 {
		return ""
	}
	return fmt.Sprintf(" (%.2f%%)", 100*float64(n)/float64(of))
}
