package duckdb

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/inodb/fixalign/internal/annotation"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// AnnotationCache keeps parsed BED12 genes as a gob file next to a small
// key=value metadata file:
//
//	{dir}/{name}.gob       (serialized genes)
//	{dir}/{name}.gob.meta  (source BED fingerprint)
//
// name is derived from the BED file name so one directory can hold caches
// for several annotations.
type AnnotationCache struct {
	dir  string
	name string
}

// NewAnnotationCache creates a cache in dir for the annotation at bedPath.
func NewAnnotationCache(dir, bedPath string) *AnnotationCache {
	base := filepath.Base(bedPath)
	base = strings.TrimSuffix(base, ".gz")
	return &AnnotationCache{dir: dir, name: base}
}

func (ac *AnnotationCache) gobPath() string {
	return filepath.Join(ac.dir, ac.name+".gob")
}

func (ac *AnnotationCache) metaPath() string {
	return filepath.Join(ac.dir, ac.name+".gob.meta")
}

// Valid checks whether the cached genes match the current BED file.
func (ac *AnnotationCache) Valid(bed FileFingerprint) bool {
	meta, err := ac.readMeta()
	if err != nil {
		return false
	}
	if meta["bed_size"] != strconv.FormatInt(bed.Size, 10) ||
		meta["bed_modtime"] != bed.ModTime.UTC().Format(time.RFC3339Nano) {
		return false
	}
	if _, err := os.Stat(ac.gobPath()); err != nil {
		return false
	}
	return true
}

// Load reads the cached genes.
func (ac *AnnotationCache) Load() ([]*annotation.Gene, error) {
	f, err := os.Open(ac.gobPath())
	if err != nil {
		return nil, fmt.Errorf("open annotation cache: %w", err)
	}
	defer f.Close()

	var genes []*annotation.Gene
	if err := gob.NewDecoder(f).Decode(&genes); err != nil {
		return nil, fmt.Errorf("decode annotation cache: %w", err)
	}
	return genes, nil
}

// Write serializes genes and records the BED fingerprint.
func (ac *AnnotationCache) Write(genes []*annotation.Gene, bed FileFingerprint) error {
	if err := os.MkdirAll(ac.dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	f, err := os.Create(ac.gobPath())
	if err != nil {
		return fmt.Errorf("create annotation cache: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(genes); err != nil {
		f.Close()
		os.Remove(ac.gobPath())
		return fmt.Errorf("encode annotation cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close annotation cache: %w", err)
	}

	return ac.writeMeta(bed, len(genes))
}

// Clear removes the cached files.
func (ac *AnnotationCache) Clear() {
	os.Remove(ac.gobPath())
	os.Remove(ac.metaPath())
}

func (ac *AnnotationCache) writeMeta(bed FileFingerprint, genes int) error {
	lines := []string{
		"bed_path=" + bed.Path,
		"bed_size=" + strconv.FormatInt(bed.Size, 10),
		"bed_modtime=" + bed.ModTime.UTC().Format(time.RFC3339Nano),
		"genes=" + strconv.Itoa(genes),
		"created_at=" + time.Now().UTC().Format(time.RFC3339),
		"",
	}
	return os.WriteFile(ac.metaPath(), []byte(strings.Join(lines, "\n")), 0644)
}

func (ac *AnnotationCache) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(ac.metaPath())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}

// LoadIndex indexes the genes of bedPath, read from the cache in dir when
// it is current and parsed from the BED file otherwise (refreshing the
// cache with the genes in index order). An empty dir disables caching.
// fromCache reports which path was taken.
func LoadIndex(dir, bedPath string) (idx *annotation.Index, fromCache bool, err error) {
	if dir == "" {
		genes, err := annotation.LoadBED(bedPath)
		if err != nil {
			return nil, false, err
		}
		idx, err = annotation.NewIndex(genes)
		return idx, false, err
	}

	fp, err := StatFile(bedPath)
	if err != nil {
		return nil, false, fmt.Errorf("stat annotation: %w", err)
	}
	ac := NewAnnotationCache(dir, bedPath)
	if ac.Valid(fp) {
		if genes, err := ac.Load(); err == nil {
			if idx, err := annotation.NewIndex(genes); err == nil {
				return idx, true, nil
			}
		}
		ac.Clear()
	}

	genes, err := annotation.LoadBED(bedPath)
	if err != nil {
		return nil, false, err
	}
	idx, err = annotation.NewIndex(genes)
	if err != nil {
		return nil, false, err
	}
	if err := ac.Write(idx.All(), fp); err != nil {
		return nil, false, err
	}
	return idx, false, nil
}
