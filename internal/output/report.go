package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/inodb/fixalign/internal/fixer"
)

// Report is the JSON form of the run statistics.
type Report struct {
	InputReads        int            `json:"input_reads"`
	ReadsWithIntrons  int            `json:"reads_with_introns"`
	TotalIntrons      int            `json:"total_introns"`
	MisalignedReads   int            `json:"misaligned_reads"`
	MisalignedIntrons int            `json:"misaligned_introns"`
	FixedReads        int            `json:"fixed_reads"`
	FixedIntrons      int            `json:"fixed_introns"`
	FixedReadNames    int            `json:"fixed_read_names"`
	RegionsConsidered int            `json:"regions_considered"`
	RegionsRealigned  int            `json:"regions_realigned"`
	RegionsAccepted   int            `json:"regions_accepted"`
	TraceFailures     int            `json:"trace_failures"`
	SpanMismatches    int            `json:"span_mismatches"`
	Skipped           map[string]int `json:"skipped"`
	WallTimeSeconds   float64        `json:"wall_time_seconds"`
	Interrupted       bool           `json:"interrupted"`
}

// NewReport converts run statistics.
func NewReport(s *fixer.Stats) *Report {
	skipped := make(map[string]int, len(s.Skipped))
	for reason, n := range s.Skipped {
		skipped[string(reason)] = n
	}
	return &Report{
		InputReads:        s.InputReads,
		ReadsWithIntrons:  s.ReadsWithIntrons,
		TotalIntrons:      s.TotalIntrons,
		MisalignedReads:   s.MisalignedReads,
		MisalignedIntrons: s.MisalignedIntrons,
		FixedReads:        s.FixedReads,
		FixedIntrons:      s.FixedIntrons,
		FixedReadNames:    s.FixedReadNames.Size(),
		RegionsConsidered: s.RegionsConsidered,
		RegionsRealigned:  s.RegionsRealigned,
		RegionsAccepted:   s.RegionsAccepted,
		TraceFailures:     s.TraceFailures,
		SpanMismatches:    s.SpanMismatches,
		Skipped:           skipped,
		WallTimeSeconds:   s.WallTime.Seconds(),
		Interrupted:       s.Interrupted,
	}
}

// WriteReport writes the JSON report to path, or to stdout for "-".
func WriteReport(path string, s *fixer.Stats) error {
	if path == "-" {
		return EncodeReport(os.Stdout, s)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := EncodeReport(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeReport writes the indented JSON report to w.
func EncodeReport(w io.Writer, s *fixer.Stats) error {
	report, err := json.MarshalIndent(NewReport(s), "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	report = append(report, '\n')
	_, err = w.Write(report)
	return err
}
