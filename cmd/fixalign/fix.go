package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/biogo/hts/sam"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/fixalign/internal/align"
	"github.com/inodb/fixalign/internal/annotation"
	"github.com/inodb/fixalign/internal/bamio"
	"github.com/inodb/fixalign/internal/duckdb"
	"github.com/inodb/fixalign/internal/fixer"
	"github.com/inodb/fixalign/internal/output"
	"github.com/inodb/fixalign/internal/reference"
)

type fixPaths struct {
	reference  string
	annotation string
	output     string
	regions    string
	db         string
	report     string
}

func newFixCmd() *cobra.Command {
	var p fixPaths

	cmd := &cobra.Command{
		Use:   "fix [flags] <input.bam|input.sam|->",
		Short: "Realign introns that skipped small annotated exons",
		Example: `  fixalign fix -r genome.fa -a genes.bed -o fixed.bam reads.bam
  fixalign fix -r genome.fa -a genes.bed --regions regions.tsv.gz --only-region reads.bam
  samtools view -h reads.bam | fixalign fix -r genome.fa -a genes.bed -o - - > fixed.sam`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if p.reference == "" {
				return usageError(errors.New("--reference is required"))
			}
			if p.annotation == "" {
				return usageError(errors.New("--annotation is required"))
			}
			opts := optionsFromConfig()
			if err := opts.Validate(); err != nil {
				return usageError(err)
			}
			if opts.OnlyRegion && p.regions == "" && p.db == "" {
				p.regions = "-"
			}
			if !opts.OnlyRegion && p.regions == "-" && p.output == "-" {
				return usageError(errors.New("--regions and --output cannot both be stdout"))
			}
			logger, err := newLogger(viper.GetBool("verbose"))
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runFix(ctx, logger, args[0], p, opts, commandLine(cmd))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&p.reference, "reference", "r", "", "Reference FASTA (.fai used when present)")
	flags.StringVarP(&p.annotation, "annotation", "a", "", "Gene annotation in BED12 format")
	flags.StringVarP(&p.output, "output", "o", "-", "Output SAM/BAM (.bam suffix selects BAM, - for stdout)")
	flags.StringVar(&p.regions, "regions", "", "Write considered regions as TSV (.gz, .lz4 compressed; stdout with --only-region and no --db)")
	flags.StringVar(&p.db, "db", "", "Append considered regions to a DuckDB database")
	flags.StringVar(&p.report, "report", "", "Write run statistics as JSON")

	defaults := fixer.DefaultOptions()
	flags.Int("small-exon-size", defaults.SmallExonSize, "Largest annotated exon treated as small")
	flags.Int("flank-len", defaults.FlankLen, "Reference bases kept on each side of the realigned window")
	flags.Int("min-overlap", defaults.MinOverlap, "Minimum overlap between a gene and the intron window")
	flags.Bool("ignore-strand", defaults.IgnoreStrand, "Consider genes on both strands")
	flags.Float64("delta-ratio-thd", defaults.DeltaRatioThd, "Largest |delta ratio| of a region that is realigned")
	flags.Bool("simplify", defaults.Simplify, "Keep only the region with the smallest |delta ratio| per intron")
	flags.Bool("float-flank-len", defaults.FloatFlankLen, "Extend the window over indels at its boundaries")
	flags.Bool("only-region", defaults.OnlyRegion, "Report regions without realigning or writing records")
	flags.Bool("sequential-regions", defaults.SequentialRegions, "Apply the regions of an intron one after the other")
	flags.Int("match", defaults.Scheme.Match, "Match score")
	flags.Int("mismatch", defaults.Scheme.Mismatch, "Mismatch score")
	flags.Int("gap-open", defaults.Scheme.GapOpen, "Gap open score")
	flags.Int("gap-extend", defaults.Scheme.GapExtend, "Gap extend score")
	flags.IntP("workers", "j", defaults.Workers, "Worker goroutines (0 = all CPUs)")
	flags.String("annotation-cache", "", "Directory for the parsed annotation cache")

	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if _, ok := optionKeys[key]; ok {
			viper.BindPFlag(key, f)
		}
	})

	return cmd
}

// optionKeys are the configuration keys settable by flag, environment and
// config file.
var optionKeys = map[string]struct{}{
	"small_exon_size":    {},
	"flank_len":          {},
	"min_overlap":        {},
	"ignore_strand":      {},
	"delta_ratio_thd":    {},
	"simplify":           {},
	"float_flank_len":    {},
	"only_region":        {},
	"sequential_regions": {},
	"match":              {},
	"mismatch":           {},
	"gap_open":           {},
	"gap_extend":         {},
	"workers":            {},
	"annotation_cache":   {},
}

func optionsFromConfig() fixer.Options {
	return fixer.Options{
		SmallExonSize:     viper.GetInt("small_exon_size"),
		FlankLen:          viper.GetInt("flank_len"),
		MinOverlap:        viper.GetInt("min_overlap"),
		IgnoreStrand:      viper.GetBool("ignore_strand"),
		DeltaRatioThd:     viper.GetFloat64("delta_ratio_thd"),
		Simplify:          viper.GetBool("simplify"),
		FloatFlankLen:     viper.GetBool("float_flank_len"),
		OnlyRegion:        viper.GetBool("only_region"),
		SequentialRegions: viper.GetBool("sequential_regions"),
		Scheme: align.Scheme{
			Match:     viper.GetInt("match"),
			Mismatch:  viper.GetInt("mismatch"),
			GapOpen:   viper.GetInt("gap_open"),
			GapExtend: viper.GetInt("gap_extend"),
		},
		Workers: viper.GetInt("workers"),
	}
}

func commandLine(cmd *cobra.Command) string {
	return strings.Join(append([]string{cmd.Root().Name()}, invocation...), " ")
}

func runFix(ctx context.Context, logger *zap.Logger, input string, p fixPaths, opts fixer.Options, cl string) (err error) {
	idx, fromCache, err := duckdb.LoadIndex(viper.GetString("annotation_cache"), p.annotation)
	if err != nil {
		return fmt.Errorf("loading annotation: %w", err)
	}
	logger.Info("loaded annotation",
		zap.String("path", p.annotation),
		zap.Int("genes", idx.GeneCount()),
		zap.Bool("cached", fromCache))

	ref, err := reference.Open(p.reference)
	if err != nil {
		return fmt.Errorf("opening reference: %w", err)
	}
	defer ref.Close()

	in, err := bamio.Open(input, opts.Workers)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()
	logger.Info("reading alignments", zap.String("path", input), zap.String("format", in.Format()))
	checkHeader(logger, in.Header(), ref, idx)

	var out fixer.RecordWriter
	if !opts.OnlyRegion {
		w, werr := openOutput(in, p.output, opts.Workers, cl)
		if werr != nil {
			return werr
		}
		defer closeInto(&err, w.Close)
		out = w
	}

	sink, closeSinks, err := openSinks(p)
	if err != nil {
		return err
	}
	defer closeInto(&err, closeSinks)

	engine, err := fixer.NewEngine(idx, ref, opts)
	if err != nil {
		return usageError(err)
	}
	engine.SetLogger(logger)

	stats, err := engine.Run(ctx, in, out, sink)
	if err != nil {
		return err
	}

	if err := stats.WriteSummary(os.Stderr); err != nil {
		return err
	}
	if p.report != "" {
		if err := output.WriteReport(p.report, stats); err != nil {
			return err
		}
	}
	if stats.Interrupted {
		return &exitError{code: ExitInterrupted}
	}
	return nil
}

// checkHeader warns about @SQ lines the reference cannot serve and notes
// annotated chromosomes the input never names.
func checkHeader(logger *zap.Logger, h *sam.Header, ref reference.Reference, idx *annotation.Index) {
	for _, problem := range reference.CheckHeader(ref, h.Refs()) {
		logger.Warn("input header does not match reference", zap.String("sequence", problem))
	}
	named := make(map[string]bool, len(h.Refs()))
	for _, sq := range h.Refs() {
		named[sq.Name()] = true
	}
	for _, chrom := range idx.Chromosomes() {
		if !named[chrom] {
			logger.Debug("annotated chromosome not in input header",
				zap.String("chrom", chrom), zap.Int("genes", len(idx.Genes(chrom))))
		}
	}
}

// openOutput creates the alignment output with the input header and a @PG
// line for this run.
func openOutput(in *bamio.Reader, path string, workers int, cl string) (*bamio.Writer, error) {
	h, err := bamio.WithProgram(in.Header(), "fixalign", version, cl)
	if err != nil {
		return nil, err
	}
	w, err := bamio.Create(path, h, workers)
	if err != nil {
		return nil, fmt.Errorf("creating output: %w", err)
	}
	return w, nil
}

// openSinks opens the region outputs requested in p. The returned close
// function flushes and closes all of them.
func openSinks(p fixPaths) (fixer.RegionSink, func() error, error) {
	var (
		tee     output.TeeSink
		closers []func() error
	)
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	if p.regions != "" {
		f, err := output.CreateFile(p.regions)
		if err != nil {
			return nil, nil, fmt.Errorf("creating region table: %w", err)
		}
		rw := output.NewRegionWriter(f)
		closers = append(closers, func() error {
			if err := rw.Flush(); err != nil {
				f.Close()
				return fmt.Errorf("flush region table: %w", err)
			}
			return f.Close()
		})
		if err := rw.WriteHeader(); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("writing region table header: %w", err)
		}
		tee = append(tee, rw)
	}

	if p.db != "" {
		store, err := duckdb.Open(p.db)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, store.Close)
		app, err := store.NewRegionAppender()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, app.Close)
		tee = append(tee, app)
	}

	if len(tee) == 0 {
		return nil, closeAll, nil
	}
	return tee, closeAll, nil
}

// closeInto runs fn and stores its error in *err unless *err is already set.
func closeInto(err *error, fn func() error) {
	if cerr := fn(); cerr != nil && *err == nil {
		*err = cerr
	}
}
