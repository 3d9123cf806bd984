package threshold

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vibe-motif/internal/motif"
)

const neverToken = "never"

// FromFraction sets every motif's cutoff to min + (max-min)*f.
func FromFraction(motifs []*motif.Motif, f float64) Table {
	t := make(Table, len(motifs))
	for _, m := range motifs {
		t[m.ID] = Score(m.ScoreAt(f))
	}
	return t
}

// ReadFractions parses a threshold table: one "motif<TAB>fraction" per line,
// where the fraction may be "never" for a motif that is not scanned. The
// returned cutoffs hold fractions of each motif's score range, not scores.
// '#' comments and a non-numeric header line are skipped.
func ReadFractions(r io.Reader) (map[string]Cutoff, error) {
	fractions := make(map[string]Cutoff)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected motif and threshold", lineNo)
		}
		if fields[1] == neverToken {
			fractions[fields[0]] = NeverMatch
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			if len(fractions) == 0 && lineNo == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: parse threshold %q: %w", lineNo, fields[1], err)
		}
		fractions[fields[0]] = Score(v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read threshold file: %w", err)
	}
	return fractions, nil
}

// FromFile reads a threshold table and converts each fraction to a score.
// Motifs missing from the file get DefaultFraction.
func FromFile(motifs []*motif.Motif, path string, logger *zap.Logger) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open threshold file: %w", err)
	}
	defer f.Close()

	fractions, err := ReadFractions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	t := make(Table, len(motifs))
	for _, m := range motifs {
		frac, ok := fractions[m.ID]
		switch {
		case !ok:
			logger.Warn("motif missing from threshold file, using default",
				zap.String("motif", m.ID),
				zap.Float64("fraction", DefaultFraction))
			t[m.ID] = Score(m.ScoreAt(DefaultFraction))
		case frac.Never:
			t[m.ID] = NeverMatch
		default:
			t[m.ID] = Score(m.ScoreAt(frac.Value))
		}
	}
	return t, nil
}

// WriteTable writes t as a threshold table readable by FromFile. Sentinel
// cutoffs are written as "never".
func WriteTable(w io.Writer, motifs []*motif.Motif, t Table) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# motif\tthreshold")
	for _, m := range motifs {
		c, ok := t[m.ID]
		if !ok {
			continue
		}
		v := neverToken
		if !c.Never {
			v = strconv.FormatFloat(m.Fraction(c.Value), 'f', 6, 64)
		}
		fmt.Fprintf(bw, "%s\t%s\n", m.ID, v)
	}
	return bw.Flush()
}
