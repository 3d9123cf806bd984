// Package motif provides position-weight matrix motifs and the PWM file format.
package motif

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/spaolacci/murmur3"
)

// Base column order of every matrix row.
const (
	ColA = iota
	ColC
	ColG
	ColT
)

// Motif is a named position-weight matrix. Each row holds the score of
// A, C, G and T at that position.
type Motif struct {
	ID     string
	Matrix [][4]float64
}

// New creates a motif, copying the matrix rows.
func New(id string, matrix [][4]float64) *Motif {
	rows := make([][4]float64, len(matrix))
	copy(rows, matrix)
	return &Motif{ID: id, Matrix: rows}
}

// Len returns the number of matrix positions.
func (m *Motif) Len() int {
	return len(m.Matrix)
}

// MinScore returns the sum of the per-position minima.
func (m *Motif) MinScore() float64 {
	var s float64
	for _, row := range m.Matrix {
		s += math.Min(math.Min(row[0], row[1]), math.Min(row[2], row[3]))
	}
	return s
}

// MaxScore returns the sum of the per-position maxima.
func (m *Motif) MaxScore() float64 {
	var s float64
	for _, row := range m.Matrix {
		s += math.Max(math.Max(row[0], row[1]), math.Max(row[2], row[3]))
	}
	return s
}

// ScoreAt returns the fraction-of-range score, min + (max-min)*f.
func (m *Motif) ScoreAt(f float64) float64 {
	lo := m.MinScore()
	return lo + (m.MaxScore()-lo)*f
}

// Fraction converts an absolute score into its fraction of the min-max range.
// A motif with an empty range maps every score to 0.
func (m *Motif) Fraction(score float64) float64 {
	lo, hi := m.MinScore(), m.MaxScore()
	if hi == lo {
		return 0
	}
	return (score - lo) / (hi - lo)
}

// Hash returns a stable content digest of the motif ID and matrix values.
func (m *Motif) Hash() string {
	h := murmur3.New128()
	h.Write([]byte(m.ID))
	h.Write([]byte{0})
	var buf [8]byte
	for _, row := range m.Matrix {
		for _, v := range row {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	hi, lo := h.Sum128()
	return fmt.Sprintf("%016x%016x", hi, lo)
}

// String renders the motif in PWM file format.
func (m *Motif) String() string {
	b := make([]byte, 0, 16+len(m.Matrix)*48)
	b = append(b, '>')
	b = append(b, m.ID...)
	b = append(b, '\n')
	for _, row := range m.Matrix {
		for i, v := range row {
			if i > 0 {
				b = append(b, '\t')
			}
			b = strconv.AppendFloat(b, v, 'g', -1, 64)
		}
		b = append(b, '\n')
	}
	return string(b)
}
