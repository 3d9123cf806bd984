package output

import (
	"bufio"
	"fmt"
	"io"

	"github.com/inodb/vibe-motif/internal/motif"
	"github.com/inodb/vibe-motif/internal/pwmscan"
)

// BEDWriter writes matches as BED6. Matches in genomic regions are placed
// on the chromosome; matches in plain sequences use the sequence name as
// chromosome.
type BEDWriter struct {
	w      *bufio.Writer
	motifs []*motif.Motif
}

// NewBEDWriter creates a BED writer for results over motifs.
func NewBEDWriter(w io.Writer, motifs []*motif.Motif) *BEDWriter {
	return &BEDWriter{w: bufio.NewWriter(w), motifs: motifs}
}

// WriteHeader is a no-op; BED has no header.
func (bw *BEDWriter) WriteHeader() error {
	return nil
}

// Write writes the matches of every motif for one unit.
func (bw *BEDWriter) Write(u Unit, result [][]pwmscan.Match) error {
	chrom, offset := u.Name, 0
	if u.Region != nil {
		chrom, offset = u.Region.Chrom, u.Region.Start
	}
	for i, matches := range result {
		m := bw.motifs[i]
		for _, hit := range matches {
			start := offset + hit.Pos
			_, err := fmt.Fprintf(bw.w, "%s\t%d\t%d\t%s\t%s\t%s\n",
				chrom, start, start+m.Len(), m.ID, formatScore(hit.Score), strand(hit.Strand))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (bw *BEDWriter) Flush() error {
	return bw.w.Flush()
}
