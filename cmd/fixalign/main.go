// Package main provides the fixalign command-line tool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/fixalign/internal/fixer"
)

// Exit codes
const (
	ExitSuccess     = 0
	ExitError       = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// invocation holds the arguments of the current run for the @PG line.
var invocation []string

// exitError carries a specific exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func usageError(err error) error {
	return &exitError{code: ExitUsage, err: err}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	invocation = args
	root := newRootCmd()
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if errors.Is(err, fixer.ErrConfig) {
		return ExitUsage
	}
	return ExitError
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "fixalign",
		Short: "Recover small exons missed by spliced long-read alignments",
		Long: `fixalign finds introns of spliced alignments that swallowed small
annotated exons, realigns the read locally against the exon-joined
reference and rewrites the CIGAR when the realignment scores better.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/.fixalign.yaml)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Verbose (debug) logging")
	viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	root.AddCommand(newFixCmd())
	root.AddCommand(newRegionsCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// initConfig reads the config file and FIXALIGN_* environment variables.
func initConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".fixalign")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("FIXALIGN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return usageError(fmt.Errorf("reading config: %w", err))
	}
	return nil
}

// newLogger builds a console logger on stderr: info level by default,
// debug level with caller information when verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Development = true
	} else {
		cfg.DisableCaller = true
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
