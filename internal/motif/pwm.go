package motif

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrNoMotifs is returned when a PWM source contains no motifs.
var ErrNoMotifs = errors.New("no motifs found")

// ReadFile parses a PWM file.
func ReadFile(path string) ([]*Motif, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open motif file: %w", err)
	}
	defer f.Close()

	motifs, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return motifs, nil
}

// Read parses motifs in PWM format:
//
//	>motif_id
//	0.1	0.2	0.3	0.4
//	...
//
// Each row holds the A, C, G and T scores of one position. Blank lines and
// lines starting with '#' are ignored.
func Read(r io.Reader) ([]*Motif, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var motifs []*Motif
	var current *Motif
	seen := make(map[string]bool)
	lineNo := 0

	finish := func() error {
		if current == nil {
			return nil
		}
		if len(current.Matrix) == 0 {
			return fmt.Errorf("motif %q has no matrix rows", current.ID)
		}
		motifs = append(motifs, current)
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, ">") {
			if err := finish(); err != nil {
				return nil, err
			}
			id := strings.TrimSpace(strings.TrimPrefix(line, ">"))
			// Only the first word is the identifier.
			if idx := strings.IndexAny(id, " \t"); idx != -1 {
				id = id[:idx]
			}
			if id == "" {
				return nil, fmt.Errorf("line %d: empty motif identifier", lineNo)
			}
			if seen[id] {
				return nil, fmt.Errorf("line %d: duplicate motif identifier %q", lineNo, id)
			}
			seen[id] = true
			current = &Motif{ID: id}
			continue
		}

		if current == nil {
			return nil, fmt.Errorf("line %d: matrix row before motif header", lineNo)
		}

		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, fmt.Errorf("line %d: expected 4 columns, got %d", lineNo, len(fields))
		}
		var row [4]float64
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: parse score %q: %w", lineNo, field, err)
			}
			row[i] = v
		}
		current.Matrix = append(current.Matrix, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan motif file: %w", err)
	}
	if err := finish(); err != nil {
		return nil, err
	}
	if len(motifs) == 0 {
		return nil, ErrNoMotifs
	}
	return motifs, nil
}

// Write writes motifs in PWM format.
func Write(w io.Writer, motifs []*Motif) error {
	bw := bufio.NewWriter(w)
	for _, m := range motifs {
		if _, err := bw.WriteString(m.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes motifs to a PWM file.
func WriteFile(path string, motifs []*Motif) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create motif file: %w", err)
	}
	if err := Write(f, motifs); err != nil {
		f.Close()
		return fmt.Errorf("write motif file: %w", err)
	}
	return f.Close()
}

// IDs returns the motif identifiers in order.
func IDs(motifs []*Motif) []string {
	ids := make([]string, len(motifs))
	for i, m := range motifs {
		ids[i] = m.ID
	}
	return ids
}
