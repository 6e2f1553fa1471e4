// Package duckdb stores considered realignment regions in DuckDB
// (queryable, append-only) and caches parsed annotations as gob files.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding the realign_regions table.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist. Columns follow the
// region table; score_old and score_new are NULL for regions that were not
// realigned.
func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS realign_regions (
		read_id VARCHAR,
		chromosome VARCHAR,
		intron_start BIGINT,
		intron_end BIGINT,
		gene VARCHAR,
		tx_leftexon_end BIGINT,
		tx_rightexon_start BIGINT,
		small_exon_count BIGINT,
		sum_exon_size BIGINT,
		margin_len BIGINT,
		margin_len_mod BIGINT,
		delta_ratio DOUBLE,
		delta_ratio_mod DOUBLE,
		realigned BOOLEAN,
		accepted BOOLEAN,
		score_old BIGINT,
		score_new BIGINT,
		strand VARCHAR,
		realign_start BIGINT,
		realign_end BIGINT,
		small_exon_starts VARCHAR,
		small_exon_ends VARCHAR,
		status VARCHAR,
		new_cigar VARCHAR
	)`)
	return err
}
