package fixer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeItems(t *testing.T, n int) <-chan WorkItem {
	t.Helper()
	ch := make(chan WorkItem, n)
	for i := range n {
		ch <- WorkItem{
			Seq:    i,
			Record: newRecord(t, fmt.Sprintf("r%d", i), 100, "300M", refSeq(100, 400)),
		}
	}
	close(ch)
	return ch
}

func TestParallelFix_OrderPreservation(t *testing.T) {
	e := newEngine(t, DefaultOptions(), threeExonGene())

	results := e.ParallelFix(makeItems(t, 200), 8)

	var collected []int
	err := OrderedCollect(results, nil, func(r WorkResult) error {
		require.NoError(t, r.Err)
		assert.Equal(t, fmt.Sprintf("r%d", r.Seq), r.Outcome.Record.Name)
		collected = append(collected, r.Seq)
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, collected, 200)
	for i, seq := range collected {
		assert.Equal(t, i, seq, "result %d out of order", i)
	}
}

func TestParallelFix_DefaultWorkers(t *testing.T) {
	e := newEngine(t, DefaultOptions(), threeExonGene())

	count := 0
	err := OrderedCollect(e.ParallelFix(makeItems(t, 20), 0), nil, func(r WorkResult) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}

func TestParallelFix_EmptyInput(t *testing.T) {
	e := newEngine(t, DefaultOptions(), threeExonGene())

	ch := make(chan WorkItem)
	close(ch)

	count := 0
	err := OrderedCollect(e.ParallelFix(ch, 4), nil, func(r WorkResult) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestOrderedCollect_EarlyError(t *testing.T) {
	e := newEngine(t, DefaultOptions(), threeExonGene())

	count, stops := 0, 0
	err := OrderedCollect(e.ParallelFix(makeItems(t, 100), 4), func() { stops++ }, func(r WorkResult) error {
		count++
		if count == 5 {
			return fmt.Errorf("stop at 5")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 5, count)
	assert.Equal(t, 1, stops)
}

func TestOrderedCollect_OutOfOrderArrival(t *testing.T) {
	results := make(chan WorkResult, 4)
	for _, seq := range []int{2, 0, 3, 1} {
		results <- WorkResult{Seq: seq}
	}
	close(results)

	var got []int
	err := OrderedCollect(results, nil, func(r WorkResult) error {
		got = append(got, r.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, got)
}
