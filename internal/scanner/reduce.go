package scanner

import (
	"fmt"
	"iter"

	"github.com/inodb/vibe-motif/internal/motif"
	"github.com/inodb/vibe-motif/internal/pwmscan"
	"github.com/inodb/vibe-motif/internal/threshold"
)

// Count yields the number of matches of every motif per input.
func (s *Scanner) Count(in Input, nreport int, rc bool) iter.Seq2[[]int, error] {
	return func(yield func([]int, error) bool) {
		for r, err := range s.Scan(in, nreport, rc) {
			if err != nil {
				yield(nil, err)
				return
			}
			counts := make([]int, len(r))
			for i, matches := range r {
				counts[i] = len(matches)
			}
			if !yield(counts, nil) {
				return
			}
		}
	}
}

// TotalCount sums the per-input counts of every motif.
func (s *Scanner) TotalCount(in Input, nreport int, rc bool) ([]int, error) {
	total := make([]int, len(s.motifs))
	for counts, err := range s.Count(in, nreport, rc) {
		if err != nil {
			return nil, err
		}
		for i, c := range counts {
			total[i] += c
		}
	}
	return total, nil
}

// bestOnly scans with every cutoff at the motif minimum and a single report,
// ignoring the configured thresholds.
func (s *Scanner) bestOnly(in Input, rc bool) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		s.scan(in, threshold.FromFraction(s.motifs, 0), 1, rc, yield)
	}
}

// BestScore yields the best score of every motif per input. Thresholds are
// ignored, so every motif always has a score.
func (s *Scanner) BestScore(in Input, rc bool) iter.Seq2[[]float64, error] {
	return func(yield func([]float64, error) bool) {
		for r, err := range s.BestMatch(in, rc) {
			if err != nil {
				yield(nil, err)
				return
			}
			scores := make([]float64, len(r))
			for i, m := range r {
				scores[i] = m.Score
			}
			if !yield(scores, nil) {
				return
			}
		}
	}
}

// BestMatch yields the highest-scoring match of every motif per input. Ties
// go to the match found first: forward strand left to right, then reverse.
// Thresholds are ignored.
func (s *Scanner) BestMatch(in Input, rc bool) iter.Seq2[[]pwmscan.Match, error] {
	return func(yield func([]pwmscan.Match, error) bool) {
		for r, err := range s.bestOnly(in, rc) {
			if err != nil {
				yield(nil, err)
				return
			}
			best := make([]pwmscan.Match, len(r))
			for i, matches := range r {
				if len(matches) == 0 {
					yield(nil, fmt.Errorf("motif %s: no match at minimum cutoff", s.motifs[i].ID))
					return
				}
				best[i] = top(matches)
			}
			if !yield(best, nil) {
				return
			}
		}
	}
}

// top returns the first match with the highest score.
func top(matches []pwmscan.Match) pwmscan.Match {
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Score > best.Score {
			best = m
		}
	}
	return best
}

// ScanFileBestScore scans a FASTA file and returns, per motif ID, the best
// score in every sequence (both strands).
func ScanFileBestScore(path string, motifs []*motif.Motif, opts ...Option) (map[string][]float64, error) {
	s := New(Config{}, opts...)
	defer s.Close()

	if err := s.SetMotifs(MotifObjects(motifs)); err != nil {
		return nil, err
	}
	s.logger.Sugar().Infof("scanning %s", path)

	out := make(map[string][]float64, len(motifs))
	for _, m := range s.motifs {
		out[m.ID] = []float64{}
	}
	for scores, err := range s.BestScore(SequenceFile(path), true) {
		if err != nil {
			return nil, err
		}
		for i, m := range s.motifs {
			out[m.ID] = append(out[m.ID], scores[i])
		}
	}
	return out, nil
}
