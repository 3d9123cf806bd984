// Package pwmscan scores nucleotide sequences against position-weight matrices.
package pwmscan

import (
	"sort"

	"github.com/inodb/vibe-motif/internal/motif"
)

// Match is one qualifying window.
type Match struct {
	Score  float64
	Pos    int // offset on the forward strand
	Strand int // +1 or -1
}

// Func is the signature of Scan, so callers can substitute or wrap the engine.
type Func func(seq []byte, m *motif.Motif, cutoff float64, maxHits int, rc bool) []Match

var complement [256]byte

var baseIndex [256]int8

func init() {
	for i := range baseIndex {
		baseIndex[i] = -1
		complement[i] = 'N'
	}
	baseIndex['A'], baseIndex['a'] = motif.ColA, motif.ColA
	baseIndex['C'], baseIndex['c'] = motif.ColC, motif.ColC
	baseIndex['G'], baseIndex['g'] = motif.ColG, motif.ColG
	baseIndex['T'], baseIndex['t'] = motif.ColT, motif.ColT

	complement['A'] = 'T'
	complement['C'] = 'G'
	complement['G'] = 'C'
	complement['T'] = 'A'
	complement['R'] = 'Y'
	complement['Y'] = 'R'
	complement['S'] = 'S'
	complement['W'] = 'W'
	complement['K'] = 'M'
	complement['M'] = 'K'
	complement['B'] = 'V'
	complement['V'] = 'B'
	complement['D'] = 'H'
	complement['H'] = 'D'
}

// ReverseComplement returns the reverse complement of an upper-case sequence.
// Unknown bases become N.
func ReverseComplement(seq []byte) []byte {
	n := len(seq)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = complement[seq[n-1-i]]
	}
	return out
}

// ToUpper upper-cases ASCII bases into a new slice.
func ToUpper(seq []byte) []byte {
	out := make([]byte, len(seq))
	for i, b := range seq {
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		out[i] = b
	}
	return out
}

// Scan slides m over seq and returns at most maxHits windows scoring at
// least cutoff, best first. Ties keep scan order: forward windows left to
// right, then reverse-strand windows.
//
// When cutoff is at or below the matrix minimum and nothing qualifies
// (sequence shorter than the matrix), maxHits placeholder matches at
// (MinScore, 0, +1) are returned so that best-score reductions stay defined.
// A constant matrix (MinScore == MaxScore) has no informative window and
// always gets the placeholders under such a cutoff.
func Scan(seq []byte, m *motif.Motif, cutoff float64, maxHits int, rc bool) []Match {
	if maxHits <= 0 {
		return nil
	}

	minScore := m.MinScore()
	if cutoff <= minScore && minScore == m.MaxScore() {
		return placeholders(minScore, maxHits)
	}

	upper := ToUpper(seq)
	w := newWeights(m)

	matches := w.scanStrand(upper, cutoff, +1, nil)
	if rc {
		matches = w.scanStrand(ReverseComplement(upper), cutoff, -1, matches)
	}

	if len(matches) == 0 {
		if cutoff <= minScore {
			return placeholders(minScore, maxHits)
		}
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > maxHits {
		matches = matches[:maxHits:maxHits]
	}
	return matches
}

func placeholders(score float64, n int) []Match {
	out := make([]Match, n)
	for i := range out {
		out[i] = Match{Score: score, Pos: 0, Strand: 1}
	}
	return out
}

// weights holds a motif matrix with an extra fifth column for unknown bases.
type weights struct {
	rows [][5]float64
}

func newWeights(m *motif.Motif) weights {
	rows := make([][5]float64, len(m.Matrix))
	for i, r := range m.Matrix {
		copy(rows[i][:4], r[:])
		rows[i][4] = (r[0] + r[1] + r[2] + r[3]) / 4
	}
	return weights{rows: rows}
}

func (w weights) scanStrand(seq []byte, cutoff float64, strand int, out []Match) []Match {
	l := len(w.rows)
	n := len(seq)
	if l == 0 || n < l {
		return out
	}
	for start := 0; start <= n-l; start++ {
		var score float64
		for j := 0; j < l; j++ {
			col := baseIndex[seq[start+j]]
			if col < 0 {
				col = 4
			}
			score += w.rows[j][col]
		}
		if score < cutoff {
			continue
		}
		pos := start
		if strand < 0 {
			pos = n - start - l
		}
		out = append(out, Match{Score: score, Pos: pos, Strand: strand})
	}
	return out
}
