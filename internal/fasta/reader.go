// Package fasta reads nucleotide sequences from FASTA files.
package fasta

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spaolacci/murmur3"
)

// Record is a single FASTA sequence.
type Record struct {
	ID  string
	Seq string
}

// ReadFile parses a FASTA file. Files ending in .gz are decompressed.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FASTA file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f

	// Handle gzipped files
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return Read(reader)
}

// Read parses FASTA content. The record ID is the first word of the header.
func Read(reader io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(reader)
	// Chromosome-sized lines are rare but allowed.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 64*1024*1024)

	var records []Record
	var currentID string
	var currentSeq strings.Builder
	inRecord := false

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, ">") {
			if inRecord {
				records = append(records, Record{ID: currentID, Seq: currentSeq.String()})
			}
			currentID = parseHeader(line)
			currentSeq.Reset()
			inRecord = true
			continue
		}
		if !inRecord {
			if strings.TrimSpace(line) == "" {
				continue
			}
			return nil, fmt.Errorf("sequence data before first FASTA header")
		}
		currentSeq.WriteString(strings.TrimSpace(line))
	}

	if inRecord {
		records = append(records, Record{ID: currentID, Seq: currentSeq.String()})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan FASTA: %w", err)
	}

	return records, nil
}

// parseHeader extracts the identifier from a FASTA header line.
func parseHeader(header string) string {
	header = strings.TrimSpace(strings.TrimPrefix(header, ">"))
	if idx := strings.IndexAny(header, " \t"); idx != -1 {
		return header[:idx]
	}
	return header
}

// Sequences returns the sequence strings of the records.
func Sequences(records []Record) []string {
	seqs := make([]string, len(records))
	for i, r := range records {
		seqs[i] = r.Seq
	}
	return seqs
}

// Checksum returns a content digest of the file at path.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := murmur3.New128()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	hi, lo := h.Sum128()
	return fmt.Sprintf("%016x%016x", hi, lo), nil
}

// LooksLikeFASTA reports whether the first non-blank line of the file at
// path is a FASTA header.
func LooksLikeFASTA(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return false
		}
		defer gz.Close()
		reader = gz
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		return strings.HasPrefix(line, ">")
	}
	return false
}
