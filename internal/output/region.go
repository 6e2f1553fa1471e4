// Package output provides region table, file and report writers.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/fixalign/internal/annotation"
	"github.com/inodb/fixalign/internal/fixer"
)

// RegionColumns are the region table columns, in order.
var RegionColumns = []string{
	"read_id",
	"chromosome",
	"intron_start",
	"intron_end",
	"gene",
	"tx_leftexon_end",
	"tx_rightexon_start",
	"small_exon_count",
	"sum_exon_size",
	"margin_len",
	"margin_len_mod",
	"delta_ratio",
	"delta_ratio_mod",
	"realigned",
	"accepted",
	"score_old",
	"score_new",
	"strand",
	"realign_start",
	"realign_end",
	"small_exon_starts",
	"small_exon_ends",
	"status",
	"new_cigar",
}

// RegionWriter writes considered regions in tab-delimited format.
// Coordinates are 0-based, half-open.
type RegionWriter struct {
	w *bufio.Writer
}

// NewRegionWriter creates a new tab-delimited region writer.
func NewRegionWriter(w io.Writer) *RegionWriter {
	return &RegionWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line.
func (rw *RegionWriter) WriteHeader() error {
	_, err := rw.w.WriteString(strings.Join(RegionColumns, "\t") + "\n")
	return err
}

// Write writes a single region.
func (rw *RegionWriter) Write(r *fixer.Region) error {
	scoreOld, scoreNew := "-", "-"
	if r.Realigned {
		scoreOld = strconv.Itoa(r.ScoreOld)
		scoreNew = strconv.Itoa(r.ScoreNew)
	}
	newCigar := "-"
	if r.Accepted {
		newCigar = r.NewCigar.String()
	}

	values := []string{
		r.ReadName,
		r.Chrom,
		strconv.Itoa(r.IntronStart),
		strconv.Itoa(r.IntronEnd),
		r.Gene,
		strconv.Itoa(r.TxLeftExonEnd),
		strconv.Itoa(r.TxRightExonStart),
		strconv.Itoa(len(r.SmallExons)),
		strconv.Itoa(r.SumExonSize),
		strconv.Itoa(r.MarginLen),
		strconv.Itoa(r.MarginLenMod),
		formatRatio(r.DeltaRatio),
		formatRatio(r.DeltaRatioMod),
		strconv.FormatBool(r.Realigned),
		strconv.FormatBool(r.Accepted),
		scoreOld,
		scoreNew,
		annotation.FormatStrand(r.GeneStrand),
		strconv.Itoa(r.WindowStart),
		strconv.Itoa(r.WindowEnd),
		joinInts(r.SmallExonStarts()),
		joinInts(r.SmallExonEnds()),
		string(r.Status),
		newCigar,
	}

	_, err := rw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// WriteRegions writes every region of one record.
func (rw *RegionWriter) WriteRegions(regions []*fixer.Region) error {
	for _, r := range regions {
		if err := rw.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (rw *RegionWriter) Flush() error {
	return rw.w.Flush()
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
