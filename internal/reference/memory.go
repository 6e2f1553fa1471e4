package reference

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// MemoryFASTA holds whole sequences in memory. It is read-only after
// loading and safe for concurrent use.
type MemoryFASTA struct {
	sequences map[string][]byte
}

// NewMemoryFASTA wraps sequences keyed by name. Bases are upper-cased.
func NewMemoryFASTA(seqs map[string][]byte) *MemoryFASTA {
	m := &MemoryFASTA{sequences: make(map[string][]byte, len(seqs))}
	for name, s := range seqs {
		m.sequences[name] = bytes.ToUpper(s)
	}
	return m
}

// LoadFASTA reads a (optionally gzipped) FASTA file into memory.
func LoadFASTA(path string) (*MemoryFASTA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FASTA file: %w", err)
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

	return ReadFASTA(reader)
}

// ReadFASTA parses FASTA content. The sequence name is the first word of
// the header line.
func ReadFASTA(reader io.Reader) (*MemoryFASTA, error) {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 64*1024*1024)

	m := &MemoryFASTA{sequences: make(map[string][]byte)}
	var name string
	var seq bytes.Buffer
	flush := func() {
		if name != "" {
			m.sequences[name] = bytes.ToUpper(bytes.Clone(seq.Bytes()))
		}
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) > 0 && line[0] == '>' {
			flush()
			fields := strings.Fields(string(line[1:]))
			if len(fields) == 0 {
				return nil, fmt.Errorf("FASTA header without a name")
			}
			name = fields[0]
			seq.Reset()
			continue
		}
		if name == "" && len(bytes.TrimSpace(line)) > 0 {
			return nil, fmt.Errorf("FASTA sequence data before first header")
		}
		seq.Write(bytes.TrimSpace(line))
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan FASTA: %w", err)
	}
	return m, nil
}

// Length returns the length of chrom.
func (m *MemoryFASTA) Length(chrom string) (int, bool) {
	s, ok := m.sequences[chrom]
	return len(s), ok
}

// Fetch implements Fetcher.
func (m *MemoryFASTA) Fetch(chrom string, start, end int) ([]byte, error) {
	s, ok := m.sequences[chrom]
	if !ok {
		return nil, fmt.Errorf("fetch %s:%d-%d: %w", chrom, start, end, ErrUnknownSequence)
	}
	if start < 0 || end < start || end > len(s) {
		return nil, fmt.Errorf("fetch %s:%d-%d: outside sequence of length %d", chrom, start, end, len(s))
	}
	return bytes.Clone(s[start:end]), nil
}

// Close is a no-op.
func (m *MemoryFASTA) Close() error {
	return nil
}
