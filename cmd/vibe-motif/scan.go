package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-motif/internal/fasta"
	"github.com/inodb/vibe-motif/internal/genome"
	"github.com/inodb/vibe-motif/internal/output"
	"github.com/inodb/vibe-motif/internal/scanner"
	"github.com/inodb/vibe-motif/internal/threshold"
)

type scanFlags struct {
	pwm           string
	genome        string
	fdr           float64
	fraction      float64
	thresholdFile string
	background    string
	length        int
	count         int
	nreport       int
	noRC          bool
	mode          string
	format        string
	outputFile    string
	cache         bool
	metricsAddr   string
}

func newScanCmd() *cobra.Command {
	var f scanFlags

	cmd := &cobra.Command{
		Use:   "scan [flags] <input>",
		Short: "Scan sequences or regions for motif matches",
		Long: `Scan a FASTA file or a file of genomic regions (chrom:start-end or BED)
with every motif of a PWM file. Regions need a genome (-g).

Without --threshold, --threshold-file or --fdr a default threshold of 0.95
of each motif's score range is used.`,
		Example: `  vibe-motif scan -p motifs.pwm --threshold 0.9 peaks.fa
  vibe-motif scan -p motifs.pwm -g hg38 --fdr 0.01 peaks.bed
  vibe-motif scan -p motifs.pwm --fdr 0.05 --background bg.fa --mode count peaks.fa
  vibe-motif scan -p motifs.pwm --mode score peaks.fa`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, f, args[0])
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.pwm, "pwm", "p", "", "PWM file with motifs (required)")
	fl.StringVarP(&f.genome, "genome", "g", "", "Genome name, for regions and as FDR background")
	fl.Float64Var(&f.fdr, "fdr", 0, "Calibrate thresholds at this false discovery rate")
	fl.Float64VarP(&f.fraction, "threshold", "t", 0, "Threshold as a fraction of each motif's score range (0.0-1.0)")
	fl.StringVar(&f.thresholdFile, "threshold-file", "", "File with motif<TAB>threshold lines")
	fl.StringVar(&f.background, "background", "", "FASTA file of background sequences for --fdr")
	fl.IntVar(&f.length, "bg-length", threshold.DefaultLength, "Length of sequences sampled from the genome for --fdr")
	fl.IntVar(&f.count, "bg-count", threshold.DefaultCount, "Number of sequences sampled from the genome for --fdr")
	fl.IntVarP(&f.nreport, "nreport", "n", 50, "Maximum number of matches per motif and sequence")
	fl.BoolVar(&f.noRC, "no-rc", false, "Only scan the forward strand")
	fl.StringVar(&f.mode, "mode", "matches", "Output: matches, count, score or best")
	fl.StringVarP(&f.format, "format", "f", "tab", "Match output format: tab or bed")
	fl.StringVarP(&f.outputFile, "output", "o", "", "Output file (default: stdout)")
	fl.BoolVar(&f.cache, "cache", false, "Cache scan results (overrides cache.enabled)")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while scanning")
	return cmd
}

// thresholdOptions maps flags to threshold options. It returns false when no
// threshold flag was given.
func thresholdOptions(cmd *cobra.Command, f scanFlags) (threshold.Options, bool) {
	var opts threshold.Options
	set := false
	if cmd.Flags().Changed("threshold") {
		opts.Fraction = &f.fraction
		set = true
	}
	if f.thresholdFile != "" {
		opts.File = f.thresholdFile
		set = true
	}
	if cmd.Flags().Changed("fdr") {
		opts.FDR = &f.fdr
		opts.Length = f.length
		opts.Count = f.count
		if f.background == "" {
			opts.Genome = f.genome
		}
		set = true
	}
	// Passed through so that a background without --fdr is reported.
	opts.Background = f.background
	return opts, set || f.background != ""
}

func runScan(cmd *cobra.Command, f scanFlags, inputPath string) error {
	if f.pwm == "" {
		return usageError{errors.New("a PWM file is required (-p)")}
	}
	switch f.mode {
	case "matches", "count", "score", "best":
	default:
		return usageError{fmt.Errorf("unknown mode %q (want matches, count, score or best)", f.mode)}
	}
	if f.format != "tab" && f.format != "bed" {
		return usageError{fmt.Errorf("unknown format %q (want tab or bed)", f.format)}
	}
	if f.nreport < 1 {
		return usageError{fmt.Errorf("--nreport must be at least 1")}
	}

	cfg := loadSettings()
	if cmd.Flags().Changed("cache") {
		cfg.Cache.Enabled = f.cache
	}
	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	var reg prometheus.Registerer
	if f.metricsAddr != "" {
		registry := prometheus.NewRegistry()
		stop, err := serveMetrics(f.metricsAddr, registry, logger)
		if err != nil {
			return err
		}
		defer stop()
		reg = registry
	}

	s, err := cfg.newScanner(logger, reg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.SetMotifs(scanner.MotifPath(f.pwm)); err != nil {
		return err
	}
	if f.genome != "" {
		if err := s.SetGenome(f.genome); err != nil {
			return err
		}
	}
	if opts, ok := thresholdOptions(cmd, f); ok {
		if err := s.SetThreshold(opts); err != nil {
			return err
		}
	}

	in, units, err := loadInput(inputPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.outputFile != "" {
		file, err := os.Create(f.outputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	logger.Info("scanning",
		zap.String("input", inputPath),
		zap.Int("units", len(units)),
		zap.Int("motifs", len(s.Motifs())),
		zap.Int("workers", s.Workers()))

	switch f.mode {
	case "count":
		return writeCounts(out, s, in, units, f.nreport, !f.noRC)
	case "score":
		return writeScores(out, s, in, units, !f.noRC)
	case "best":
		return writeBest(out, s, in, units, !f.noRC)
	default:
		return writeMatches(out, s, in, units, f.nreport, !f.noRC, f.format)
	}
}

// loadInput reads an input file once, keeping the names of its units for
// output.
func loadInput(path string) (scanner.Input, []output.Unit, error) {
	detected, err := scanner.DetectInput(path)
	if err != nil {
		if errors.Is(err, scanner.ErrUnknownInput) {
			return nil, nil, usageError{err}
		}
		return nil, nil, err
	}

	switch detected.(type) {
	case scanner.SequenceFile:
		records, err := fasta.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		units := make([]output.Unit, len(records))
		for i, r := range records {
			units[i] = output.SequenceUnit(r.ID)
		}
		return scanner.Sequences(records), units, nil
	default:
		regions, err := genome.ReadRegionFile(path)
		if err != nil {
			return nil, nil, err
		}
		units := make([]output.Unit, len(regions))
		for i, r := range regions {
			units[i] = output.RegionUnit(r)
		}
		return scanner.Regions(regions), units, nil
	}
}

func writeMatches(out io.Writer, s *scanner.Scanner, in scanner.Input, units []output.Unit, nreport int, rc bool, format string) error {
	type matchWriter interface {
		WriteHeader() error
		Write(output.Unit, scanner.Result) error
		Flush() error
	}
	var w matchWriter = output.NewMatchWriter(out, s.Motifs())
	if format == "bed" {
		w = output.NewBEDWriter(out, s.Motifs())
	}

	if err := w.WriteHeader(); err != nil {
		return err
	}
	i := 0
	for r, err := range s.Scan(in, nreport, rc) {
		if err != nil {
			return err
		}
		if err := w.Write(units[i], r); err != nil {
			return err
		}
		i++
	}
	return w.Flush()
}

func writeCounts(out io.Writer, s *scanner.Scanner, in scanner.Input, units []output.Unit, nreport int, rc bool) error {
	w := output.NewTableWriter(out, s.Motifs())
	if err := w.WriteHeader(); err != nil {
		return err
	}
	totals := make([]int, len(s.Motifs()))
	i := 0
	for counts, err := range s.Count(in, nreport, rc) {
		if err != nil {
			return err
		}
		if err := w.WriteCounts(units[i], counts); err != nil {
			return err
		}
		for k, c := range counts {
			totals[k] += c
		}
		i++
	}
	if err := w.WriteTotals(totals); err != nil {
		return err
	}
	return w.Flush()
}

func writeScores(out io.Writer, s *scanner.Scanner, in scanner.Input, units []output.Unit, rc bool) error {
	w := output.NewTableWriter(out, s.Motifs())
	if err := w.WriteHeader(); err != nil {
		return err
	}
	i := 0
	for scores, err := range s.BestScore(in, rc) {
		if err != nil {
			return err
		}
		if err := w.WriteScores(units[i], scores); err != nil {
			return err
		}
		i++
	}
	return w.Flush()
}

func writeBest(out io.Writer, s *scanner.Scanner, in scanner.Input, units []output.Unit, rc bool) error {
	w := output.NewTableWriter(out, s.Motifs())
	if err := w.WriteHeader(); err != nil {
		return err
	}
	i := 0
	for best, err := range s.BestMatch(in, rc) {
		if err != nil {
			return err
		}
		if err := w.WriteBest(units[i], best); err != nil {
			return err
		}
		i++
	}
	return w.Flush()
}

// serveMetrics exposes registry on addr until the returned stop function
// is called.
func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return func() { srv.Close() }, nil
}
