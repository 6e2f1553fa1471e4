package annotation

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrFormat marks malformed annotation input.
var ErrFormat = errors.New("malformed BED record")

// LoadBED reads a BED12 file, gzipped when the path ends in ".gz".
func LoadBED(path string) ([]*Gene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open BED file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f

	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	genes, err := ReadBED(reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return genes, nil
}

// ReadBED parses BED12 records. Header lines (track, browser, #) and blank
// lines are skipped. Records with a single block are dropped since they
// cannot hide an exon inside an intron.
func ReadBED(r io.Reader) ([]*Gene, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	var genes []*Gene
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}

		g, err := parseBEDLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if len(g.Exons) < 2 {
			continue
		}
		genes = append(genes, g)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan BED: %w", err)
	}
	return genes, nil
}

func parseBEDLine(line string) (*Gene, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 12 {
		return nil, fmt.Errorf("%w: %d columns, want 12", ErrFormat, len(fields))
	}

	chromStart, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: chromStart %q", ErrFormat, fields[1])
	}
	chromEnd, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("%w: chromEnd %q", ErrFormat, fields[2])
	}
	if chromStart < 0 || chromEnd <= chromStart {
		return nil, fmt.Errorf("%w: span [%d,%d)", ErrFormat, chromStart, chromEnd)
	}

	g := &Gene{
		ID:    fields[3],
		Chrom: fields[0],
		Start: chromStart,
		End:   chromEnd,
	}
	switch fields[5] {
	case "+":
		g.Strand = 1
	case "-":
		g.Strand = -1
	}

	blockCount, err := strconv.Atoi(fields[9])
	if err != nil || blockCount < 1 {
		return nil, fmt.Errorf("%w: blockCount %q", ErrFormat, fields[9])
	}
	sizes, err := parseIntList(fields[10])
	if err != nil {
		return nil, fmt.Errorf("%w: blockSizes: %v", ErrFormat, err)
	}
	starts, err := parseIntList(fields[11])
	if err != nil {
		return nil, fmt.Errorf("%w: blockStarts: %v", ErrFormat, err)
	}
	if len(sizes) != blockCount || len(starts) != blockCount {
		return nil, fmt.Errorf("%w: blockCount %d with %d sizes and %d starts",
			ErrFormat, blockCount, len(sizes), len(starts))
	}

	g.Exons = make([]Exon, blockCount)
	prevEnd := chromStart
	for i := range blockCount {
		e := Exon{Start: chromStart + starts[i], End: chromStart + starts[i] + sizes[i]}
		if sizes[i] <= 0 || e.Start < prevEnd || e.End > chromEnd {
			return nil, fmt.Errorf("%w: block %d [%d,%d) out of order or outside [%d,%d)",
				ErrFormat, i, e.Start, e.End, chromStart, chromEnd)
		}
		g.Exons[i] = e
		prevEnd = e.End
	}
	return g, nil
}

// parseIntList parses a comma separated list; a trailing comma is allowed.
func parseIntList(s string) ([]int, error) {
	s = strings.TrimSuffix(s, ",")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
