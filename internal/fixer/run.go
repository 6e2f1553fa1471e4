package fixer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/biogo/hts/sam"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RecordReader yields alignment records and io.EOF at the end. Both
// *sam.Reader and *bam.Reader satisfy it.
type RecordReader interface {
	Read() (*sam.Record, error)
}

// RecordWriter receives records in input order.
type RecordWriter interface {
	Write(*sam.Record) error
}

// RegionSink receives the considered regions of each record, in input
// order.
type RegionSink interface {
	WriteRegions([]*Region) error
}

// Run reads every record from in, fixes it and writes it to out in input
// order. out is not used in region-only mode; sink may be nil. When ctx is
// cancelled the records already read are finished and written, the
// returned stats are marked Interrupted and the error is nil.
func (e *Engine) Run(ctx context.Context, in RecordReader, out RecordWriter, sink RegionSink) (*Stats, error) {
	start := time.Now()
	stats := NewStats()

	workers := e.opts.Workers

	g, gctx := errgroup.WithContext(ctx)
	// readCtx also ends when the collector fails, so the reader stops
	// before the remaining results are drained.
	readCtx, stopReading := context.WithCancel(gctx)
	defer stopReading()
	items := make(chan WorkItem, 2*max(workers, 1))

	g.Go(func() error {
		defer close(items)
		for seq := 0; ; seq++ {
			if readCtx.Err() != nil {
				return nil
			}
			rec, err := in.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading record %d: %w", seq+1, err)
			}
			select {
			case items <- WorkItem{Seq: seq, Record: rec}:
			case <-readCtx.Done():
				return nil
			}
		}
	})

	results := e.ParallelFix(items, workers)

	g.Go(func() error {
		return OrderedCollect(results, stopReading, func(r WorkResult) error {
			if r.Err != nil {
				return r.Err
			}
			stats.Add(r.Outcome)
			if sink != nil && len(r.Outcome.Regions) > 0 {
				if err := sink.WriteRegions(r.Outcome.Regions); err != nil {
					return fmt.Errorf("writing regions: %w", err)
				}
			}
			if e.opts.OnlyRegion || out == nil {
				return nil
			}
			if err := out.Write(r.Outcome.Record); err != nil {
				return fmt.Errorf("writing record %s: %w", r.Outcome.Record.Name, err)
			}
			return nil
		})
	})

	err := g.Wait()
	stats.WallTime = time.Since(start)
	if err != nil {
		return stats, err
	}
	if ctx.Err() != nil {
		stats.Interrupted = true
		e.logger.Warn("interrupted", zap.Int("reads", stats.InputReads))
	}
	return stats, nil
}
