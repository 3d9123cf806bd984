package threshold

import (
	"fmt"
	"os"

	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"

	"github.com/inodb/vibe-motif/internal/fasta"
	"github.com/inodb/vibe-motif/internal/genome"
	"github.com/inodb/vibe-motif/internal/motif"
	"github.com/inodb/vibe-motif/internal/pwmscan"
)

// Background is a set of motif-free sequences with a stable identity.
// Load is only called when at least one motif needs calibration.
type Background struct {
	ID   string
	Load func() ([]string, error)
}

// FileBackground uses the sequences of a FASTA file. The identity is a
// checksum of the file content.
func FileBackground(path string) (Background, error) {
	if _, err := os.Stat(path); err != nil {
		return Background{}, fmt.Errorf("background file: %w", err)
	}
	sum, err := fasta.Checksum(path)
	if err != nil {
		return Background{}, fmt.Errorf("background file: %w", err)
	}
	return Background{
		ID: "file:" + sum,
		Load: func() ([]string, error) {
			records, err := fasta.ReadFile(path)
			if err != nil {
				return nil, err
			}
			return fasta.Sequences(records), nil
		},
	}, nil
}

// GenomeBackground samples count random sequences of the given length from
// idx. The sample is seeded by its identity, so it is reproducible.
func GenomeBackground(idx *genome.Index, length, count int) Background {
	id := fmt.Sprintf("genome:%s/%d/%d", idx.Name(), length, count)
	return Background{
		ID: id,
		Load: func() ([]string, error) {
			return idx.Sample(length, count, murmur3.Sum64([]byte(id)))
		},
	}
}

// BestScoresFunc returns, for every sequence, the best score of every motif
// (report count 1, both strands, cutoff at the motif minimum).
type BestScoresFunc func(motifs []*motif.Motif, seqs []string) ([][]float64, error)

// SerialBestScores is a BestScoresFunc that scans on the calling goroutine.
func SerialBestScores(motifs []*motif.Motif, seqs []string) ([][]float64, error) {
	out := make([][]float64, len(seqs))
	for i, s := range seqs {
		row := make([]float64, len(motifs))
		for j, m := range motifs {
			hits := pwmscan.Scan([]byte(s), m, m.MinScore(), 1, true)
			row[j] = hits[0].Score
		}
		out[i] = row
	}
	return out, nil
}

// Calibrator derives cutoffs from background score distributions and
// memoizes them in a Store.
type Calibrator struct {
	store      *Store
	bestScores BestScoresFunc
	logger     *zap.Logger
}

// NewCalibrator creates a calibrator. A nil bestScores uses SerialBestScores.
func NewCalibrator(store *Store, bestScores BestScoresFunc) *Calibrator {
	if bestScores == nil {
		bestScores = SerialBestScores
	}
	return &Calibrator{
		store:      store,
		bestScores: bestScores,
		logger:     zap.NewNop(),
	}
}

// SetLogger sets the logger for progress messages.
func (c *Calibrator) SetLogger(l *zap.Logger) {
	c.logger = l
}

// Calibrate returns the cutoff of every motif at the given FDR: the score
// at the (1-fdr) percentile of per-sequence best background scores. Known
// (motif, background, fdr) combinations are served from the store; new ones
// are computed and written before returning.
func (c *Calibrator) Calibrate(motifs []*motif.Motif, bg Background, fdr float64) (Table, error) {
	if !(fdr > 0 && fdr < 1) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidFDR, fdr)
	}

	table := make(Table, len(motifs))
	var todo []*motif.Motif
	for _, m := range motifs {
		score, ok, err := c.store.Get(Key(m.Hash(), bg.ID, fdr))
		if err != nil {
			return nil, err
		}
		if !ok {
			todo = append(todo, m)
			continue
		}
		table[m.ID] = cutoffFor(score, m.MaxScore())
	}

	if len(todo) == 0 {
		c.logger.Debug("thresholds served from cache", zap.Int("motifs", len(motifs)))
		return table, nil
	}

	c.logger.Info("determining thresholds",
		zap.Float64("fdr", fdr),
		zap.String("background", bg.ID),
		zap.Int("motifs", len(todo)))

	seqs, err := bg.Load()
	if err != nil {
		return nil, fmt.Errorf("load background: %w", err)
	}
	if len(seqs) == 0 {
		return nil, fmt.Errorf("background %s has no sequences", bg.ID)
	}

	best, err := c.bestScores(todo, seqs)
	if err != nil {
		return nil, fmt.Errorf("scan background: %w", err)
	}

	scores := make([]float64, len(best))
	for j, m := range todo {
		for i, row := range best {
			scores[i] = row[j]
		}
		score := ScoreAtPercentile(scores, 100-100*fdr)
		if err := c.store.Set(Key(m.Hash(), bg.ID, fdr), score); err != nil {
			return nil, err
		}
		table[m.ID] = cutoffFor(score, m.MaxScore())
	}
	return table, nil
}
