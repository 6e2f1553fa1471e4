package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/fixalign/internal/annotation"
	"github.com/inodb/fixalign/internal/block"
	"github.com/inodb/fixalign/internal/cigar"
	"github.com/inodb/fixalign/internal/fixer"
)

func acceptedRegion() *fixer.Region {
	return &fixer.Region{
		ReadName:         "read1",
		Chrom:            "chr1",
		IntronStart:      200,
		IntronEnd:        400,
		Gene:             "G1",
		GeneStrand:       1,
		TxLeftExonEnd:    200,
		TxRightExonStart: 400,
		SmallExons:       []annotation.Exon{{Start: 250, End: 260}},
		RealignStart:     180,
		RealignEnd:       420,
		MarginLen:        200,
		SumExonSize:      10,
		DeltaRatio:       19,
		WindowStart:      180,
		WindowEnd:        420,
		MarginLenMod:     210,
		DeltaRatioMod:    20,
		Status:           fixer.StatusAccepted,
		Realigned:        true,
		Accepted:         true,
		ScoreOld:         30,
		ScoreNew:         50,
		NewCigar:         cigar.MustParse("100M50N10M140N100M"),
	}
}

func TestRegionWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewRegionWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	header := strings.TrimSuffix(buf.String(), "\n")
	cols := strings.Split(header, "\t")
	assert.Equal(t, "read_id", cols[0])
	assert.Equal(t, "score_new", cols[16])
	assert.Len(t, cols, len(RegionColumns))
}

func TestRegionWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := NewRegionWriter(&buf)

	require.NoError(t, w.WriteRegions([]*fixer.Region{acceptedRegion()}))
	require.NoError(t, w.Flush())

	fields := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\t")
	require.Len(t, fields, len(RegionColumns))

	row := make(map[string]string)
	for i, c := range RegionColumns {
		row[c] = fields[i]
	}
	checks := map[string]string{
		"read_id":           "read1",
		"intron_start":      "200",
		"small_exon_count":  "1",
		"margin_len_mod":    "210",
		"delta_ratio":       "19.0000",
		"realigned":         "true",
		"accepted":          "true",
		"score_old":         "30",
		"score_new":         "50",
		"strand":            "+",
		"small_exon_starts": "250",
		"small_exon_ends":   "260",
		"status":            "accepted",
		"new_cigar":         "100M50N10M140N100M",
	}
	for col, want := range checks {
		assert.Equal(t, want, row[col], col)
	}
}

func TestRegionWriter_WriteFiltered(t *testing.T) {
	r := acceptedRegion()
	r.Status = fixer.StatusFiltered
	r.Realigned, r.Accepted = false, false
	r.NewCigar = nil

	var buf bytes.Buffer
	w := NewRegionWriter(&buf)
	require.NoError(t, w.Write(r))
	require.NoError(t, w.Flush())

	line := buf.String()
	assert.Contains(t, line, "\tfalse\tfalse\t-\t-\t")
	assert.True(t, strings.HasSuffix(line, "\tfiltered\t-\n"))
}

func TestCreateFile_Compression(t *testing.T) {
	for _, name := range []string{"regions.tsv", "regions.tsv.gz", "regions.tsv.lz4"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			f, err := CreateFile(path)
			require.NoError(t, err)

			w := NewRegionWriter(f)
			require.NoError(t, w.WriteHeader())
			require.NoError(t, w.Write(acceptedRegion()))
			require.NoError(t, w.Flush())
			require.NoError(t, f.Close())

			rf, err := OpenFile(path)
			require.NoError(t, err)
			defer rf.Close()
			data, err := io.ReadAll(rf)
			require.NoError(t, err)

			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			require.Len(t, lines, 2)
			assert.True(t, strings.HasPrefix(lines[1], "read1\tchr1\t200\t400\tG1"))
		})
	}
}

func TestCreateFile_BadPath(t *testing.T) {
	_, err := CreateFile(filepath.Join(t.TempDir(), "missing", "out.tsv"))
	assert.Error(t, err)
}

type countingSink struct {
	n   int
	err error
}

func (c *countingSink) WriteRegions(regions []*fixer.Region) error {
	c.n += len(regions)
	return c.err
}

func TestTeeSink(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	require.NoError(t, TeeSink{a, b}.WriteRegions([]*fixer.Region{acceptedRegion(), acceptedRegion()}))
	assert.Equal(t, 2, a.n)
	assert.Equal(t, 2, b.n)

	failing := &countingSink{err: errors.New("disk full")}
	c := &countingSink{}
	assert.Error(t, TeeSink{failing, c}.WriteRegions([]*fixer.Region{acceptedRegion()}))
	assert.Zero(t, c.n)
}

func TestEncodeReport(t *testing.T) {
	s := fixer.NewStats()
	s.InputReads = 10
	s.TotalIntrons = 4
	s.FixedReads = 2
	s.FixedReadNames.Add("a", "b")
	s.Skipped[block.NoIntron] = 3
	s.WallTime = 1500 * time.Millisecond

	var buf bytes.Buffer
	require.NoError(t, EncodeReport(&buf, s))

	var got Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 10, got.InputReads)
	assert.Equal(t, 4, got.TotalIntrons)
	assert.Equal(t, 2, got.FixedReads)
	assert.Equal(t, 2, got.FixedReadNames)
	assert.Equal(t, map[string]int{"no_intron": 3}, got.Skipped)
	assert.InDelta(t, 1.5, got.WallTimeSeconds, 1e-9)
}

func TestWriteReport_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, WriteReport(path, fixer.NewStats()))

	rf, err := OpenFile(path)
	require.NoError(t, err)
	defer rf.Close()
	data, err := io.ReadAll(rf)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"input_reads": 0`)
}
