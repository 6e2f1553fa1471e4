package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inodb/fixalign/internal/duckdb"
)

func newRegionsCmd() *cobra.Command {
	var gene string

	cmd := &cobra.Command{
		Use:   "regions [flags] <regions.duckdb>",
		Short: "Summarize stored realignment regions per gene",
		Example: `  fixalign regions regions.duckdb            # per-gene summary
  fixalign regions --gene G1 regions.duckdb  # reads fixed in G1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("open region database: %w", err)
			}
			store, err := duckdb.Open(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			if gene != "" {
				return writeAcceptedReads(cmd.OutOrStdout(), store, gene)
			}
			return writeGeneSummary(cmd.OutOrStdout(), store)
		},
	}
	cmd.Flags().StringVar(&gene, "gene", "", "List the reads with an accepted region in this gene")

	return cmd
}

var geneSummaryColumns = []string{
	"gene", "chromosome", "regions", "reads", "filtered", "realigned", "accepted", "mean_score_gain",
}

func writeGeneSummary(w io.Writer, store *duckdb.Store) error {
	sums, err := store.SummarizeByGene()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Join(geneSummaryColumns, "\t")); err != nil {
		return err
	}
	for _, g := range sums {
		row := []string{
			g.Gene,
			g.Chromosome,
			strconv.Itoa(g.Regions),
			strconv.Itoa(g.Reads),
			strconv.Itoa(g.Filtered),
			strconv.Itoa(g.Realigned),
			strconv.Itoa(g.Accepted),
			strconv.FormatFloat(g.MeanScoreGain, 'f', 2, 64),
		}
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func writeAcceptedReads(w io.Writer, store *duckdb.Store, gene string) error {
	names, err := store.AcceptedReads(gene)
	if err != nil {
		return err
	}
	for _, n := range names {
		if _, err := fmt.Fprintln(w, n); err != nil {
			return err
		}
	}
	return nil
}
