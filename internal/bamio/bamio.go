// Package bamio opens SAM and BAM alignment files for reading and writing.
package bamio

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
)

// bgzfMagic starts every BGZF block (gzip with the extra field flag set).
var bgzfMagic = []byte{0x1f, 0x8b, 0x08, 0x04}

// Reader yields alignment records from a SAM or BAM stream.
type Reader struct {
	closer io.Closer
	sam    *sam.Reader
	bam    *bam.Reader
	format string
}

// Open opens path ("-" for stdin). BAM is recognized by its BGZF magic;
// anything else is parsed as SAM text. workers sets the BAM decompression
// concurrency (0 lets bam pick).
func Open(path string, workers int) (*Reader, error) {
	var (
		in     io.Reader
		closer io.Closer
	)
	if path == "-" {
		in = os.Stdin
		closer = io.NopCloser(os.Stdin)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open alignment file: %w", err)
		}
		in, closer = f, f
	}

	r, err := NewReader(in, workers)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = closer
	return r, nil
}

// NewReader detects the format of in and returns a reader over it.
func NewReader(in io.Reader, workers int) (*Reader, error) {
	br := bufio.NewReader(in)
	magic, _ := br.Peek(len(bgzfMagic))
	if bytes.Equal(magic, bgzfMagic) {
		r, err := bam.NewReader(br, workers)
		if err != nil {
			return nil, fmt.Errorf("read BAM header: %w", err)
		}
		return &Reader{bam: r, format: "BAM"}, nil
	}
	r, err := sam.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("read SAM header: %w", err)
	}
	return &Reader{sam: r, format: "SAM"}, nil
}

// Format returns "SAM" or "BAM".
func (r *Reader) Format() string {
	return r.format
}

// Header returns the input header.
func (r *Reader) Header() *sam.Header {
	if r.bam != nil {
		return r.bam.Header()
	}
	return r.sam.Header()
}

// Read returns the next record, or io.EOF.
func (r *Reader) Read() (*sam.Record, error) {
	if r.bam != nil {
		return r.bam.Read()
	}
	return r.sam.Read()
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.bam != nil {
		if err := r.bam.Close(); err != nil {
			return err
		}
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Writer writes records as SAM text or BAM.
type Writer struct {
	file *os.File
	buf  *bufio.Writer
	sam  *sam.Writer
	bam  *bam.Writer
}

// Create opens path for writing ("-" for stdout). A ".bam" suffix selects
// BAM output, anything else SAM text.
func Create(path string, h *sam.Header, workers int) (*Writer, error) {
	w := &Writer{}
	var out io.Writer
	if path == "-" {
		out = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create output file: %w", err)
		}
		w.file = f
		out = f
	}
	w.buf = bufio.NewWriterSize(out, 1<<16)

	var err error
	if strings.HasSuffix(path, ".bam") {
		w.bam, err = bam.NewWriter(w.buf, h, workers)
	} else {
		w.sam, err = sam.NewWriter(w.buf, h, sam.FlagDecimal)
	}
	if err != nil {
		if w.file != nil {
			w.file.Close()
		}
		return nil, fmt.Errorf("write header: %w", err)
	}
	return w, nil
}

// Write writes one record.
func (w *Writer) Write(rec *sam.Record) error {
	if w.bam != nil {
		return w.bam.Write(rec)
	}
	return w.sam.Write(rec)
}

// Close flushes buffered output and closes the file.
func (w *Writer) Close() error {
	if w.bam != nil {
		if err := w.bam.Close(); err != nil {
			return fmt.Errorf("close BAM writer: %w", err)
		}
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// WithProgram returns a copy of h with a @PG line for this tool appended,
// chained to the last program already present.
func WithProgram(h *sam.Header, name, version, command string) (*sam.Header, error) {
	out := h.Clone()
	var prev string
	taken := make(map[string]bool)
	for _, p := range out.Progs() {
		taken[p.UID()] = true
		prev = p.UID()
	}
	id := name
	for i := 1; taken[id]; i++ {
		id = fmt.Sprintf("%s.%d", name, i)
	}
	if err := out.AddProgram(sam.NewProgram(id, name, command, prev, version)); err != nil {
		return nil, fmt.Errorf("add @PG line: %w", err)
	}
	return out, nil
}
