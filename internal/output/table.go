package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-motif/internal/motif"
	"github.com/inodb/vibe-motif/internal/pwmscan"
)

// TableWriter writes one row per unit with one column per motif, for
// counts, best scores or best matches.
type TableWriter struct {
	w      *bufio.Writer
	motifs []*motif.Motif
}

// NewTableWriter creates a table writer with one column per motif.
func NewTableWriter(w io.Writer, motifs []*motif.Motif) *TableWriter {
	return &TableWriter{w: bufio.NewWriter(w), motifs: motifs}
}

// WriteHeader writes the header line.
func (tw *TableWriter) WriteHeader() error {
	cols := make([]string, 0, len(tw.motifs)+1)
	cols = append(cols, "#seq_id")
	for _, m := range tw.motifs {
		cols = append(cols, m.ID)
	}
	return tw.row(cols)
}

// WriteCounts writes per-motif match counts.
func (tw *TableWriter) WriteCounts(u Unit, counts []int) error {
	cols := make([]string, 0, len(counts)+1)
	cols = append(cols, u.Name)
	for _, c := range counts {
		cols = append(cols, strconv.Itoa(c))
	}
	return tw.row(cols)
}

// WriteScores writes per-motif best scores.
func (tw *TableWriter) WriteScores(u Unit, scores []float64) error {
	cols := make([]string, 0, len(scores)+1)
	cols = append(cols, u.Name)
	for _, s := range scores {
		cols = append(cols, formatScore(s))
	}
	return tw.row(cols)
}

// WriteBest writes per-motif best matches as score,pos,strand.
func (tw *TableWriter) WriteBest(u Unit, best []pwmscan.Match) error {
	cols := make([]string, 0, len(best)+1)
	cols = append(cols, u.Name)
	for _, m := range best {
		cols = append(cols, fmt.Sprintf("%s,%d,%s", formatScore(m.Score), m.Pos, strand(m.Strand)))
	}
	return tw.row(cols)
}

// WriteTotals writes a summary row of summed counts.
func (tw *TableWriter) WriteTotals(totals []int) error {
	return tw.WriteCounts(Unit{Name: "total"}, totals)
}

func (tw *TableWriter) row(cols []string) error {
	_, err := tw.w.WriteString(strings.Join(cols, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TableWriter) Flush() error {
	return tw.w.Flush()
}
