package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4"
)

type compressedFile struct {
	io.Writer
	codec io.Closer
	file  *os.File
}

func (c *compressedFile) Close() error {
	if c.codec != nil {
		if err := c.codec.Close(); err != nil {
			c.file.Close()
			return err
		}
	}
	if c.file == os.Stdout {
		return nil
	}
	return c.file.Close()
}

// CreateFile creates path for writing ("-" for stdout). Output to a ".gz"
// path is gzip compressed, to a ".lz4" path lz4 compressed.
func CreateFile(path string) (io.WriteCloser, error) {
	if path == "-" {
		return &compressedFile{Writer: os.Stdout, file: os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	switch {
	case strings.HasSuffix(path, ".gz"):
		gz := gzip.NewWriter(f)
		return &compressedFile{Writer: gz, codec: gz, file: f}, nil
	case strings.HasSuffix(path, ".lz4"):
		lw := lz4.NewWriter(f)
		return &compressedFile{Writer: lw, codec: lw, file: f}, nil
	}
	return &compressedFile{Writer: f, file: f}, nil
}

// OpenFile opens a file written by CreateFile, decompressing by suffix.
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return &readCloser{Reader: gz, closers: []io.Closer{gz, f}}, nil
	case strings.HasSuffix(path, ".lz4"):
		return &readCloser{Reader: lz4.NewReader(f), closers: []io.Closer{f}}, nil
	}
	return f, nil
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
