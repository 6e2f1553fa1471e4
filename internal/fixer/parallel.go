package fixer

import (
	"runtime"
	"sync"

	"github.com/biogo/hts/sam"
)

// WorkItem holds a record read from the input, numbered in input order.
type WorkItem struct {
	Seq    int
	Record *sam.Record
}

// WorkResult holds the outcome for a single record.
type WorkResult struct {
	Seq     int
	Outcome *Outcome
	Err     error
}

// ParallelFix runs FixRecord on work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
func (e *Engine) ParallelFix(items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				out, err := e.FixRecord(item.Record)
				results <- WorkResult{Seq: item.Seq, Outcome: out, Err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order,
// holding early arrivals until the gap before them is filled. It returns
// when results is closed. On the first error from fn, stop (if non-nil) is
// called so producers can quit, the remaining results are discarded and
// the error is returned.
func OrderedCollect(results <-chan WorkResult, stop func(), fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	next := 0

	var err error
	for r := range results {
		if err != nil {
			continue
		}
		pending[r.Seq] = r
		for err == nil {
			rr, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if err = fn(rr); err != nil && stop != nil {
				stop()
			}
		}
	}
	return err
}
