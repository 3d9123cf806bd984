package scanner

import (
	"fmt"
	"os"
	"strings"

	"github.com/inodb/vibe-motif/internal/fasta"
	"github.com/inodb/vibe-motif/internal/genome"
	"github.com/inodb/vibe-motif/internal/motif"
)

// MotifSource is either MotifObjects or MotifPath.
type MotifSource interface {
	motifSource()
}

// MotifObjects is an in-memory motif collection.
type MotifObjects []*motif.Motif

// MotifPath is a PWM file.
type MotifPath string

func (MotifObjects) motifSource() {}
func (MotifPath) motifSource()    {}

// Input is one of Sequences, SequenceFile, Regions or RegionFile.
type Input interface {
	input()
}

// Sequences is an in-memory sequence collection.
type Sequences []fasta.Record

// SequenceFile is a FASTA file.
type SequenceFile string

// Regions is an in-memory list of genomic regions.
type Regions []genome.Region

// RegionFile holds one "chrom:start-end" region per line.
type RegionFile string

func (Sequences) input()    {}
func (SequenceFile) input() {}
func (Regions) input()      {}
func (RegionFile) input()   {}

// SequencesFromStrings wraps raw sequences, naming them by index.
func SequencesFromStrings(seqs ...string) Sequences {
	out := make(Sequences, len(seqs))
	for i, s := range seqs {
		out[i] = fasta.Record{ID: fmt.Sprintf("seq%d", i+1), Seq: s}
	}
	return out
}

// DetectInput classifies a file path as a FASTA file or a region file,
// by extension first and by content otherwise.
func DetectInput(path string) (Input, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("input file: %w", err)
	}

	lower := strings.ToLower(strings.TrimSuffix(strings.ToLower(path), ".gz"))
	for _, ext := range []string{".fa", ".fasta", ".fna", ".fas"} {
		if strings.HasSuffix(lower, ext) {
			return SequenceFile(path), nil
		}
	}
	if strings.HasSuffix(lower, ".bed") {
		return RegionFile(path), nil
	}

	if fasta.LooksLikeFASTA(path) {
		return SequenceFile(path), nil
	}
	if genome.LooksLikeRegionFile(path) {
		return RegionFile(path), nil
	}
	return nil, fmt.Errorf("%w: %s is neither FASTA nor a region list", ErrUnknownInput, path)
}
