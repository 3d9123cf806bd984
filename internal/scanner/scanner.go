// Package scanner ties motifs, thresholds, a reference genome, the worker
// pool and the result cache together behind one stateful Scanner.
package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/inodb/vibe-motif/internal/dispatch"
	"github.com/inodb/vibe-motif/internal/genome"
	"github.com/inodb/vibe-motif/internal/motif"
	"github.com/inodb/vibe-motif/internal/pwmscan"
	"github.com/inodb/vibe-motif/internal/resultcache"
	"github.com/inodb/vibe-motif/internal/threshold"
)

var (
	// ErrNoMotifs is returned when scanning before SetMotifs.
	ErrNoMotifs = errors.New("no motifs set")
	// ErrNoGenome is returned when scanning regions without a genome.
	ErrNoGenome = errors.New("no genome set; needed to scan regions")
	// ErrUnknownInput is returned for inputs that are neither sequences nor regions.
	ErrUnknownInput = errors.New("unknown input type")
	// ErrInvalidNReport is returned for a report count below 1.
	ErrInvalidNReport = errors.New("nreport must be at least 1")
)

// Config holds the scanner's environment.
type Config struct {
	// Workers is the worker pool size; 0 means one per CPU. Ignored when
	// Pool is set.
	Workers int
	// Pool is a shared worker pool. When nil the scanner starts and owns one.
	Pool *dispatch.Pool
	// GenomeDir is the directory holding one subdirectory per genome.
	GenomeDir string
	// ThresholdCachePath is the DuckDB file of calibrated thresholds;
	// empty keeps them in memory for the scanner's lifetime.
	ThresholdCachePath string
	// WorkDir receives normalized motif files; empty means os.TempDir().
	WorkDir string
	// Cache stores scan results across calls. Nil disables caching. The
	// scanner closes it in Close.
	Cache resultcache.Backend
	// Registerer receives the scanner's metrics. Nil disables registration.
	Registerer prometheus.Registerer
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithScanFunc replaces the scan engine.
func WithScanFunc(fn pwmscan.Func) Option {
	return func(s *Scanner) { s.scanFn = fn }
}

// Scanner scans sequences or genomic regions for a motif collection.
//
// Configure it with SetMotifs, then optionally SetThreshold and SetGenome.
// A Scanner is not safe for concurrent configuration; scans on one Scanner
// should not overlap.
type Scanner struct {
	cfg      Config
	logger   *zap.Logger
	scanFn   pwmscan.Func
	metrics  *metrics
	pool     *dispatch.Pool
	ownsPool bool

	store      *threshold.Store
	calibrator *threshold.Calibrator

	motifFile   string
	tempFile    string
	motifs      []*motif.Motif
	motifIDs    []string
	motifDigest string

	table  threshold.Table
	genome *genome.Index
}

// New creates a Scanner. No motifs, threshold or genome are set.
func New(cfg Config, opts ...Option) *Scanner {
	s := &Scanner{
		cfg:    cfg,
		logger: zap.NewNop(),
		scanFn: pwmscan.Scan,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics(cfg.Registerer)

	if cfg.Pool != nil {
		s.pool = cfg.Pool
	} else {
		s.pool = dispatch.NewPool(cfg.Workers)
		s.ownsPool = true
	}
	return s
}

// Workers returns the worker pool size.
func (s *Scanner) Workers() int {
	return s.pool.Size()
}

// Motifs returns the current motif collection.
func (s *Scanner) Motifs() []*motif.Motif {
	return s.motifs
}

// MotifFile returns the normalized motif file backing the current motifs.
func (s *Scanner) MotifFile() string {
	return s.motifFile
}

// Thresholds returns the current cutoff table, or nil before one was set.
func (s *Scanner) Thresholds() threshold.Table {
	return s.table
}

// Genome returns the current genome, or nil.
func (s *Scanner) Genome() *genome.Index {
	return s.genome
}

// SetMotifs loads a motif collection. In-memory motifs are first written to
// a PWM file in the work directory and read back, so both sources are
// handled identically. Changing motifs clears the threshold table.
func (s *Scanner) SetMotifs(src MotifSource) error {
	var path, temp string
	switch src := src.(type) {
	case MotifPath:
		path = string(src)
	case MotifObjects:
		if len(src) == 0 {
			return motif.ErrNoMotifs
		}
		f, err := os.CreateTemp(s.cfg.WorkDir, "motifs-*.pwm")
		if err != nil {
			return fmt.Errorf("create motif file: %w", err)
		}
		path = f.Name()
		temp = path
		werr := motif.Write(f, src)
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			os.Remove(path)
			return fmt.Errorf("write motif file: %w", err)
		}
	default:
		return fmt.Errorf("unknown motif source %T", src)
	}

	motifs, err := motif.ReadFile(path)
	if err != nil {
		if temp != "" {
			os.Remove(temp)
		}
		return err
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	s.removeTempFile()
	s.motifFile = path
	s.tempFile = temp
	s.motifs = motifs
	s.motifIDs = motif.IDs(motifs)
	s.motifDigest = resultcache.MotifSetDigest(motifs)
	s.table = nil
	s.logger.Info("motifs loaded", zap.String("file", path), zap.Int("motifs", len(motifs)))
	return nil
}

// SetGenome selects a genome under Config.GenomeDir by name.
func (s *Scanner) SetGenome(name string) error {
	idx, err := genome.Open(s.cfg.GenomeDir, name)
	if err != nil {
		return err
	}
	idx.SetLogger(s.logger)
	if s.genome != nil {
		s.genome.Close()
	}
	s.genome = idx
	return nil
}

// SetThreshold resolves per-motif cutoffs for the current motifs. On error
// the previous table stays in place.
func (s *Scanner) SetThreshold(opts threshold.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if len(s.motifs) == 0 {
		return ErrNoMotifs
	}

	var (
		table  threshold.Table
		method string
		err    error
	)
	switch {
	case opts.Fraction != nil:
		method = "fraction"
		table = threshold.FromFraction(s.motifs, *opts.Fraction)
	case opts.File != "":
		method = "file"
		table, err = threshold.FromFile(s.motifs, opts.File, s.logger)
	default:
		method = "fdr"
		table, err = s.calibrate(opts.WithDefaults())
	}
	if err != nil {
		return err
	}

	s.table = table
	s.metrics.thresholdsSolved.WithLabelValues(method).Add(float64(len(s.motifs)))
	return nil
}

func (s *Scanner) calibrate(opts threshold.Options) (threshold.Table, error) {
	var bg threshold.Background
	if opts.Genome != "" {
		idx, err := genome.Open(s.cfg.GenomeDir, opts.Genome)
		if err != nil {
			return nil, err
		}
		defer idx.Close()
		idx.SetLogger(s.logger)
		bg = threshold.GenomeBackground(idx, opts.Length, opts.Count)
	} else {
		var err error
		bg, err = threshold.FileBackground(opts.Background)
		if err != nil {
			return nil, err
		}
	}

	if s.calibrator == nil {
		store, err := threshold.OpenStore(s.cfg.ThresholdCachePath)
		if err != nil {
			return nil, err
		}
		s.store = store
		s.calibrator = threshold.NewCalibrator(store, s.bestScores)
		s.calibrator.SetLogger(s.logger)
	}
	return s.calibrator.Calibrate(s.motifs, bg, *opts.FDR)
}

// bestScores scans background sequences on the pool, keeping only the best
// score of every motif on either strand.
func (s *Scanner) bestScores(motifs []*motif.Motif, seqs []string) ([][]float64, error) {
	return dispatch.Dispatch(s.pool, seqs, func(chunk []string) ([][]float64, error) {
		out := make([][]float64, len(chunk))
		for i, seq := range chunk {
			row := make([]float64, len(motifs))
			for j, m := range motifs {
				hits := s.scanFn([]byte(seq), m, m.MinScore(), 1, true)
				if len(hits) == 0 {
					return nil, fmt.Errorf("motif %s: no score for background sequence", m.ID)
				}
				row[j] = hits[0].Score
			}
			out[i] = row
		}
		return out, nil
	})
}

func (s *Scanner) removeTempFile() {
	if s.tempFile != "" {
		os.Remove(s.tempFile)
		s.tempFile = ""
	}
}

// Close releases the worker pool (if owned), the genome, the threshold store
// and the result cache, and removes motif files the scanner wrote.
func (s *Scanner) Close() error {
	if s.ownsPool {
		s.pool.Close()
	}
	s.removeTempFile()
	var errs []error
	if s.genome != nil {
		errs = append(errs, s.genome.Close())
		s.genome = nil
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
		s.store = nil
		s.calibrator = nil
	}
	if s.cfg.Cache != nil {
		errs = append(errs, s.cfg.Cache.Close())
		s.cfg.Cache = nil
	}
	return errors.Join(errs...)
}
