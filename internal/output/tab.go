// Package output provides scan result formatters.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-motif/internal/genome"
	"github.com/inodb/vibe-motif/internal/motif"
	"github.com/inodb/vibe-motif/internal/pwmscan"
)

// Unit names one scanned input. Region is set for genomic regions.
type Unit struct {
	Name   string
	Region *genome.Region
}

// SequenceUnit names a sequence.
func SequenceUnit(id string) Unit {
	return Unit{Name: id}
}

// RegionUnit names a region by its coordinates.
func RegionUnit(r genome.Region) Unit {
	return Unit{Name: r.String(), Region: &r}
}

// MatchWriter writes one tab-delimited row per match.
type MatchWriter struct {
	w       *bufio.Writer
	motifs  []*motif.Motif
	columns []string
}

// NewMatchWriter creates a match writer for results over motifs.
func NewMatchWriter(w io.Writer, motifs []*motif.Motif) *MatchWriter {
	return &MatchWriter{
		w:      bufio.NewWriter(w),
		motifs: motifs,
		columns: []string{
			"#seq_id",
			"motif",
			"score",
			"pos",
			"strand",
		},
	}
}

// WriteHeader writes the header line.
func (mw *MatchWriter) WriteHeader() error {
	_, err := mw.w.WriteString(strings.Join(mw.columns, "\t") + "\n")
	return err
}

// Write writes the matches of every motif for one unit. Positions are
// relative to the start of the unit.
func (mw *MatchWriter) Write(u Unit, result [][]pwmscan.Match) error {
	for i, matches := range result {
		for _, m := range matches {
			values := []string{
				u.Name,
				mw.motifs[i].ID,
				formatScore(m.Score),
				strconv.Itoa(m.Pos),
				strand(m.Strand),
			}
			if _, err := mw.w.WriteString(strings.Join(values, "\t") + "\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (mw *MatchWriter) Flush() error {
	return mw.w.Flush()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func strand(s int) string {
	if s < 0 {
		return "-"
	}
	return "+"
}
