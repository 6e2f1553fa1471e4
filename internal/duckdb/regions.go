package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/fixalign/internal/annotation"
	"github.com/inodb/fixalign/internal/fixer"
)

// RegionAppender streams regions into realign_regions through the DuckDB
// Appender API. It satisfies fixer.RegionSink. Rows become visible after
// Close.
type RegionAppender struct {
	conn     *sql.Conn
	appender *goduckdb.Appender
	rows     int
}

// NewRegionAppender opens a dedicated connection and appender.
func (s *Store) NewRegionAppender() (*RegionAppender, error) {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "realign_regions")
		return err
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create appender: %w", err)
	}
	return &RegionAppender{conn: conn, appender: appender}, nil
}

// WriteRegions appends one row per region.
func (a *RegionAppender) WriteRegions(regions []*fixer.Region) error {
	for _, r := range regions {
		if err := a.appender.AppendRow(regionRow(r)...); err != nil {
			return fmt.Errorf("append region %s: %w", r.ReadName, err)
		}
		a.rows++
	}
	return nil
}

// Rows returns the number of appended rows.
func (a *RegionAppender) Rows() int {
	return a.rows
}

// Close flushes pending rows and releases the connection.
func (a *RegionAppender) Close() error {
	err := a.appender.Close()
	if cerr := a.conn.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close appender: %w", err)
	}
	return nil
}

// WriteRegions batch-inserts regions.
func (s *Store) WriteRegions(regions []*fixer.Region) error {
	if len(regions) == 0 {
		return nil
	}
	a, err := s.NewRegionAppender()
	if err != nil {
		return err
	}
	if err := a.WriteRegions(regions); err != nil {
		a.Close()
		return err
	}
	return a.Close()
}

// ClearRegions removes all stored regions.
func (s *Store) ClearRegions() error {
	_, err := s.db.Exec("DELETE FROM realign_regions")
	return err
}

// CountRegions returns the number of stored regions.
func (s *Store) CountRegions() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT count(*) FROM realign_regions").Scan(&n); err != nil {
		return 0, fmt.Errorf("count regions: %w", err)
	}
	return n, nil
}

// GeneSummary aggregates the regions of one gene.
type GeneSummary struct {
	Gene          string
	Chromosome    string
	Regions       int
	Reads         int
	Filtered      int
	Realigned     int
	Accepted      int
	MeanScoreGain float64 // over accepted regions, 0 if none
}

// SummarizeByGene returns one summary per gene ordered by gene name.
func (s *Store) SummarizeByGene() ([]GeneSummary, error) {
	rows, err := s.db.Query(`SELECT
		gene,
		min(chromosome),
		count(*),
		count(DISTINCT read_id),
		count(*) FILTER (WHERE status = 'filtered'),
		count(*) FILTER (WHERE realigned),
		count(*) FILTER (WHERE accepted),
		coalesce(avg(score_new - score_old) FILTER (WHERE accepted), 0)
		FROM realign_regions
		GROUP BY gene
		ORDER BY gene`)
	if err != nil {
		return nil, fmt.Errorf("summarize regions: %w", err)
	}
	defer rows.Close()

	var out []GeneSummary
	for rows.Next() {
		var g GeneSummary
		if err := rows.Scan(&g.Gene, &g.Chromosome, &g.Regions, &g.Reads,
			&g.Filtered, &g.Realigned, &g.Accepted, &g.MeanScoreGain); err != nil {
			return nil, fmt.Errorf("scan gene summary: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gene summaries: %w", err)
	}
	return out, nil
}

// AcceptedReads returns the names of reads with an accepted region in gene,
// ordered by name.
func (s *Store) AcceptedReads(gene string) ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT read_id FROM realign_regions
		WHERE gene = ? AND accepted ORDER BY read_id`, gene)
	if err != nil {
		return nil, fmt.Errorf("query accepted reads: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan read name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func regionRow(r *fixer.Region) []driver.Value {
	var scoreOld, scoreNew driver.Value
	if r.Realigned {
		scoreOld, scoreNew = int64(r.ScoreOld), int64(r.ScoreNew)
	}
	var newCigar driver.Value
	if r.Accepted {
		newCigar = r.NewCigar.String()
	}
	return []driver.Value{
		r.ReadName,
		r.Chrom,
		int64(r.IntronStart),
		int64(r.IntronEnd),
		r.Gene,
		int64(r.TxLeftExonEnd),
		int64(r.TxRightExonStart),
		int64(len(r.SmallExons)),
		int64(r.SumExonSize),
		int64(r.MarginLen),
		int64(r.MarginLenMod),
		r.DeltaRatio,
		r.DeltaRatioMod,
		r.Realigned,
		r.Accepted,
		scoreOld,
		scoreNew,
		annotation.FormatStrand(r.GeneStrand),
		int64(r.WindowStart),
		int64(r.WindowEnd),
		joinInts(r.SmallExonStarts()),
		joinInts(r.SmallExonEnds()),
		string(r.Status),
		newCigar,
	}
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
