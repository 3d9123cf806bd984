package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-motif/internal/scanner"
	"github.com/inodb/vibe-motif/internal/threshold"
)

func newThresholdCmd() *cobra.Command {
	var (
		pwm        string
		genomeName string
		background string
		fdr        float64
		length     int
		count      int
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "threshold",
		Short: "Calibrate motif thresholds at a false discovery rate",
		Long: `Determine a score threshold for every motif so that at most the given
fraction of background sequences has a match. Background sequences come from
a FASTA file or are sampled from a genome. Results are cached, so repeated
runs with the same motifs, background and FDR are immediate.

The output is a motif<TAB>threshold table usable with scan --threshold-file.`,
		Example: `  vibe-motif threshold -p motifs.pwm --fdr 0.01 -g hg38 > thresholds.txt
  vibe-motif threshold -p motifs.pwm --fdr 0.05 --background bg.fa`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pwm == "" {
				return usageError{errors.New("a PWM file is required (-p)")}
			}
			if !cmd.Flags().Changed("fdr") {
				return usageError{errors.New("--fdr is required")}
			}
			opts := threshold.Options{
				FDR:        &fdr,
				Genome:     genomeName,
				Background: background,
				Length:     length,
				Count:      count,
			}

			cfg := loadSettings()
			logger, err := newLogger(cfg.Verbose)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			// Calibration does not use the result cache.
			cfg.Cache.Enabled = false
			s, err := cfg.newScanner(logger, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.SetMotifs(scanner.MotifPath(pwm)); err != nil {
				return err
			}
			if err := s.SetThreshold(opts); err != nil {
				return err
			}
			logger.Info("thresholds determined", zap.Int("motifs", len(s.Motifs())))

			out := cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			return threshold.WriteTable(out, s.Motifs(), s.Thresholds())
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&pwm, "pwm", "p", "", "PWM file with motifs (required)")
	fl.Float64Var(&fdr, "fdr", 0, "False discovery rate, between 0 and 1 (required)")
	fl.StringVarP(&genomeName, "genome", "g", "", "Genome to sample background sequences from")
	fl.StringVar(&background, "background", "", "FASTA file of background sequences")
	fl.IntVar(&length, "bg-length", threshold.DefaultLength, "Length of sequences sampled from the genome")
	fl.IntVar(&count, "bg-count", threshold.DefaultCount, "Number of sequences sampled from the genome")
	fl.StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}
