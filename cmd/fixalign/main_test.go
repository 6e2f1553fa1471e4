package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/inodb/fixalign/internal/annotation"
	"github.com/inodb/fixalign/internal/bamio"
	"github.com/inodb/fixalign/internal/output"
	"github.com/inodb/fixalign/internal/reference"
)

var testChrom = func() []byte {
	rng := rand.New(rand.NewSource(7))
	b := make([]byte, 1000)
	for i := range b {
		b[i] = "ACGT"[rng.Intn(4)]
	}
	return b
}()

const testGeneBED = "chr1\t100\t500\tG1\t0\t+\t100\t500\t0\t3\t100,10,100,\t0,150,300,\n"

// testInputs writes a FASTA, a BED and a SAM file with one read that
// skipped the 10 bp exon of G1 and one unspliced read.
func testInputs(t *testing.T) (dir, fasta, bed, samPath string) {
	t.Helper()
	dir = t.TempDir()

	var fa strings.Builder
	fa.WriteString(">chr1\n")
	for i := 0; i < len(testChrom); i += 60 {
		fa.Write(testChrom[i:min(i+60, len(testChrom))])
		fa.WriteByte('\n')
	}
	fasta = filepath.Join(dir, "genome.fa")
	require.NoError(t, os.WriteFile(fasta, []byte(fa.String()), 0o644))

	bed = filepath.Join(dir, "genes.bed")
	require.NoError(t, os.WriteFile(bed, []byte(testGeneBED), 0o644))

	var seq []byte
	seq = append(seq, testChrom[100:200]...)
	seq = append(seq, testChrom[250:260]...)
	seq = append(seq, testChrom[400:500]...)

	lines := []string{
		"@HD\tVN:1.6\tSO:unsorted",
		"@SQ\tSN:chr1\tLN:1000",
		"missed\t0\tchr1\t101\t60\t100M10I200N100M\t*\t0\t0\t" + string(seq) + "\t*",
		"plain\t0\tchr1\t601\t60\t50M\t*\t0\t0\t" + string(testChrom[600:650]) + "\t*",
		"",
	}
	samPath = filepath.Join(dir, "reads.sam")
	require.NoError(t, os.WriteFile(samPath, []byte(strings.Join(lines, "\n")), 0o644))
	return dir, fasta, bed, samPath
}

// resetConfig isolates viper state and the config file location.
func resetConfig(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	viper.Reset()
	t.Cleanup(viper.Reset)
	return home
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	invocation = args
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func readRecords(t *testing.T, path string) (*sam.Header, []*sam.Record) {
	t.Helper()
	r, err := bamio.Open(path, 1)
	require.NoError(t, err)
	defer r.Close()

	var recs []*sam.Record
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	return r.Header(), recs
}

func TestFix_EndToEnd(t *testing.T) {
	resetConfig(t)
	dir, fasta, bed, samPath := testInputs(t)

	for _, name := range []string{"out.sam", "out.bam"} {
		t.Run(name, func(t *testing.T) {
			out := filepath.Join(dir, name)
			regions := filepath.Join(dir, name+".regions.tsv.gz")
			report := filepath.Join(dir, name+".report.json")

			_, err := execute(t, "fix",
				"-r", fasta, "-a", bed, "-o", out,
				"--regions", regions, "--report", report,
				"--delta-ratio-thd", "25", "-j", "2",
				samPath)
			require.NoError(t, err)

			h, recs := readRecords(t, out)
			require.Len(t, recs, 2)
			assert.Equal(t, "missed", recs[0].Name)
			assert.Equal(t, "100M50N10M140N100M", recs[0].Cigar.String())
			assert.Equal(t, "plain", recs[1].Name)
			assert.Equal(t, "50M", recs[1].Cigar.String())

			progs := h.Progs()
			require.NotEmpty(t, progs)
			assert.Equal(t, "fixalign", progs[len(progs)-1].UID())

			f, err := output.OpenFile(regions)
			require.NoError(t, err)
			data, err := io.ReadAll(f)
			require.NoError(t, err)
			require.NoError(t, f.Close())
			rows := strings.Split(strings.TrimSpace(string(data)), "\n")
			require.Len(t, rows, 2)
			assert.True(t, strings.HasPrefix(rows[0], "read_id\tchromosome\t"))
			assert.True(t, strings.HasPrefix(rows[1], "missed\tchr1\t200\t400\tG1\t"))

			raw, err := os.ReadFile(report)
			require.NoError(t, err)
			var rep map[string]any
			require.NoError(t, json.Unmarshal(raw, &rep))
			assert.EqualValues(t, 2, rep["input_reads"])
			assert.EqualValues(t, 1, rep["fixed_reads"])
		})
	}
}

func TestFix_OnlyRegionToDuckDB(t *testing.T) {
	resetConfig(t)
	dir, fasta, bed, samPath := testInputs(t)
	db := filepath.Join(dir, "regions.duckdb")
	out := filepath.Join(dir, "unused.sam")

	_, err := execute(t, "fix", "-r", fasta, "-a", bed, "-o", out,
		"--db", db, "--only-region", "--annotation-cache", filepath.Join(dir, "cache"),
		samPath)
	require.NoError(t, err)
	assert.NoFileExists(t, out)
	assert.FileExists(t, filepath.Join(dir, "cache", "genes.bed.gob"))

	summary, err := execute(t, "regions", db)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(summary), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(geneSummaryColumns, "\t"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "G1\tchr1\t1\t1\t"))

	reads, err := execute(t, "regions", "--gene", "G1", db)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(reads))
}

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// what was written.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	done := make(chan []byte)
	go func() {
		data, _ := io.ReadAll(r)
		done <- data
	}()

	orig := os.Stdout
	os.Stdout = w
	func() {
		defer func() { os.Stdout = orig }()
		fn()
	}()
	require.NoError(t, w.Close())
	return string(<-done)
}

func TestFix_OnlyRegionDefaultsToStdout(t *testing.T) {
	resetConfig(t)
	_, fasta, bed, samPath := testInputs(t)

	var err error
	table := captureStdout(t, func() {
		_, err = execute(t, "fix", "-r", fasta, "-a", bed, "--only-region",
			"--delta-ratio-thd", "25", samPath)
	})
	require.NoError(t, err)

	rows := strings.Split(strings.TrimSpace(table), "\n")
	require.Len(t, rows, 2)
	assert.True(t, strings.HasPrefix(rows[0], "read_id\tchromosome\t"))
	assert.True(t, strings.HasPrefix(rows[1], "missed\tchr1\t200\t400\tG1\t"))
	assert.Contains(t, rows[1], "region_only")
}

func TestCheckHeader_Logs(t *testing.T) {
	ref := reference.NewMemoryFASTA(map[string][]byte{"chr1": testChrom})
	idx, err := annotation.NewIndex([]*annotation.Gene{
		{ID: "G1", Chrom: "chr1", Strand: 1, Start: 100, End: 500, Exons: []annotation.Exon{{Start: 100, End: 500}}},
		{ID: "G2", Chrom: "chr2", Strand: 1, Start: 10, End: 50, Exons: []annotation.Exon{{Start: 10, End: 50}}},
	})
	require.NoError(t, err)

	sq := func(name string, n int) *sam.Reference {
		r, err := sam.NewReference(name, "", "", n, nil, nil)
		require.NoError(t, err)
		return r
	}
	h, err := sam.NewHeader(nil, []*sam.Reference{sq("chr1", 999), sq("chrM", 16569)})
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	checkHeader(zap.New(core), h, ref, idx)

	warns := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warns, 2)
	assert.Equal(t, "chr1: header length 999, reference length 1000", warns[0].ContextMap()["sequence"])
	assert.Equal(t, "chrM: not in reference", warns[1].ContextMap()["sequence"])

	debug := logs.FilterMessage("annotated chromosome not in input header").All()
	require.Len(t, debug, 1)
	assert.Equal(t, "chr2", debug[0].ContextMap()["chrom"])
}

func TestRun_ExitCodes(t *testing.T) {
	resetConfig(t)
	_, fasta, bed, samPath := testInputs(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"missing reference", []string{"fix", "-a", bed, samPath}, ExitUsage},
		{"bad option", []string{"fix", "-r", fasta, "-a", bed, "--small-exon-size", "0", samPath}, ExitUsage},
		{"unknown flag", []string{"fix", "--no-such-flag", samPath}, ExitUsage},
		{"two outputs on stdout", []string{"fix", "-r", fasta, "-a", bed, "--regions", "-", samPath}, ExitUsage},
		{"missing input", []string{"fix", "-r", fasta, "-a", bed, "-o", os.DevNull, "missing.sam"}, ExitError},
		{"version", []string{"--version"}, ExitSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			assert.Equal(t, tt.want, run(tt.args))
		})
	}
}

func TestConfigSetGet(t *testing.T) {
	home := resetConfig(t)

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "No configuration set")

	out, err = execute(t, "config", "set", "flank_len", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "Set flank_len = 30")

	data, err := os.ReadFile(filepath.Join(home, ".fixalign.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "flank_len: 30\n", string(data))

	viper.Reset()
	out, err = execute(t, "config", "get", "flank_len")
	require.NoError(t, err)
	assert.Equal(t, "30\n", out)

	viper.Reset()
	newRootCmd()
	require.NoError(t, initConfig(""))
	assert.Equal(t, 30, optionsFromConfig().FlankLen)

	_, err = execute(t, "config", "set", "no_such_key", "1")
	var ee *exitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ExitUsage, ee.code)
}
