// Package reference provides reference sequence access by 0-based,
// half-open range.
package reference

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/biogo/hts/fai"
	"github.com/biogo/hts/sam"
)

// ErrUnknownSequence is returned for chromosome names missing from the
// reference.
var ErrUnknownSequence = errors.New("unknown reference sequence")

// Fetcher returns reference bases in [start, end) of chrom, upper-cased.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(chrom string, start, end int) ([]byte, error)
}

// Reference is a Fetcher that knows its sequence lengths and holds
// resources.
type Reference interface {
	Fetcher
	io.Closer
	Length(chrom string) (int, bool)
}

// CheckHeader compares the @SQ lines of an alignment header with ref and
// describes every sequence that ref lacks or holds with another length.
func CheckHeader(ref Reference, seqs []*sam.Reference) []string {
	var problems []string
	for _, sq := range seqs {
		n, ok := ref.Length(sq.Name())
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("%s: not in reference", sq.Name()))
		case n != sq.Len():
			problems = append(problems, fmt.Sprintf("%s: header length %d, reference length %d", sq.Name(), sq.Len(), n))
		}
	}
	return problems
}

// Open opens a FASTA file. Gzipped files are loaded into memory; plain
// files are accessed through their .fai index, which is built in memory
// when no index file exists.
func Open(path string) (Reference, error) {
	if strings.HasSuffix(path, ".gz") {
		return LoadFASTA(path)
	}
	return OpenIndexed(path)
}

// IndexedFASTA reads ranges from an indexed FASTA file. A mutex serializes
// access to the underlying file handle.
type IndexedFASTA struct {
	mu   sync.Mutex
	f    *os.File
	file *fai.File
	idx  fai.Index
}

// OpenIndexed opens path, using path+".fai" when present.
func OpenIndexed(path string) (*IndexedFASTA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FASTA file: %w", err)
	}

	idx, err := loadIndex(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &IndexedFASTA{f: f, file: fai.NewFile(f, idx), idx: idx}, nil
}

func loadIndex(path string, f *os.File) (fai.Index, error) {
	if fi, err := os.Open(path + ".fai"); err == nil {
		defer fi.Close()
		idx, err := fai.ReadFrom(fi)
		if err != nil {
			return nil, fmt.Errorf("read FASTA index: %w", err)
		}
		return idx, nil
	}

	idx, err := fai.NewIndex(f)
	if err != nil {
		return nil, fmt.Errorf("index FASTA: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind FASTA: %w", err)
	}
	return idx, nil
}

// Length returns the length of chrom.
func (r *IndexedFASTA) Length(chrom string) (int, bool) {
	rec, ok := r.idx[chrom]
	return rec.Length, ok
}

// Fetch implements Fetcher.
func (r *IndexedFASTA) Fetch(chrom string, start, end int) ([]byte, error) {
	rec, ok := r.idx[chrom]
	if !ok {
		return nil, fmt.Errorf("fetch %s:%d-%d: %w", chrom, start, end, ErrUnknownSequence)
	}
	if start < 0 || end < start || end > rec.Length {
		return nil, fmt.Errorf("fetch %s:%d-%d: outside sequence of length %d", chrom, start, end, rec.Length)
	}
	if start == end {
		return []byte{}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seq, err := r.file.SeqRange(chrom, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch %s:%d-%d: %w", chrom, start, end, err)
	}
	b, err := io.ReadAll(seq)
	if err != nil {
		return nil, fmt.Errorf("fetch %s:%d-%d: %w", chrom, start, end, err)
	}
	return bytes.ToUpper(b), nil
}

// Close closes the FASTA file.
func (r *IndexedFASTA) Close() error {
	return r.f.Close()
}
