// Package main provides the vibe-motif command-line tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-motif/internal/threshold"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if isUsageError(err) {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

// usageError marks bad invocations (exit code 2).
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func isUsageError(err error) bool {
	var ue usageError
	return errors.As(err, &ue) ||
		errors.Is(err, threshold.ErrUsage) ||
		errors.Is(err, threshold.ErrInvalidFDR) ||
		strings.HasPrefix(err.Error(), "unknown command")
}

// usageArgs turns argument validation failures into usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "vibe-motif",
		Short: "Scan DNA sequences for transcription factor motifs",
		Long: `vibe-motif scans DNA sequences or genomic regions with position weight
matrices and reports motif matches, counts or best scores. Thresholds are
given as a fraction of each motif's score range, read from a file, or
calibrated on background sequences at a target false discovery rate.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default ~/.vibe-motif.yaml)")
	pf.BoolP("verbose", "v", false, "Log progress to stderr")
	pf.Int("ncpus", 0, "Number of worker goroutines (default: number of CPUs)")
	pf.String("genome-dir", "", "Directory with one subdirectory of FASTA files per genome")
	_ = viper.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = viper.BindPFlag("ncpus", pf.Lookup("ncpus"))
	_ = viper.BindPFlag("genome_dir", pf.Lookup("genome-dir"))

	root.AddCommand(newScanCmd())
	root.AddCommand(newThresholdCmd())
	root.AddCommand(newGenomeCmd())
	root.AddCommand(newConfigCmd())
	return root
}

// initConfig reads the config file and VIBE_MOTIF_* environment variables.
func initConfig(cfgFile string) error {
	setDefaults()
	viper.SetEnvPrefix("VIBE_MOTIF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".vibe-motif")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if cfgFile != "" && errors.Is(err, os.ErrNotExist) {
			// config set creates it.
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func setDefaults() {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".vibe-motif")
	viper.SetDefault("genome_dir", filepath.Join(base, "genomes"))
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.backend", "badger")
	viper.SetDefault("cache.dir", filepath.Join(base, "cache"))
	viper.SetDefault("cache.max_entries", 0)
	viper.SetDefault("threshold_cache", filepath.Join(base, "cache", "thresholds.duckdb"))
}

// newLogger builds a console logger on stderr: warnings by default,
// progress with --verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg.Level.SetLevel(zap.InfoLevel)
	}
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	return cfg.Build()
}
