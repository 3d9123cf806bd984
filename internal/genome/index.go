// Package genome provides read-only access to genome sequences stored as
// FASTA files under a genome index directory. Large genomes should be kept
// as plain FASTA: those are read from disk, while gzipped files are held in
// memory.
//
// Layout:
//
//	{root}/{name}/*.fa[.gz]   (one or more FASTA files, any chromosome split)
package genome

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/inodb/vibe-motif/internal/fasta"
)

// ErrNotFound is returned when a genome index directory does not exist.
var ErrNotFound = errors.New("genome index not found")

var fastaSuffixes = []string{".fa", ".fasta", ".fna", ".fa.gz", ".fasta.gz", ".fna.gz"}

// Exists reports whether a genome index directory exists under root.
func Exists(root, name string) bool {
	info, err := os.Stat(filepath.Join(root, name))
	return err == nil && info.IsDir()
}

// Index serves sequences of one genome. Plain FASTA files with regular line
// wrapping are indexed by byte offset and read from disk on demand; gzipped
// or irregularly wrapped files are held in memory. The index is built on
// first use and is read-only afterwards, so an Index is safe for concurrent
// use until Close.
type Index struct {
	name   string
	dir    string
	logger *zap.Logger

	once    sync.Once
	loadErr error
	chroms  map[string]*chromosome
	names   []string
	files   []*os.File
}

// Open binds the genome index {root}/{name}.
func Open(root, name string) (*Index, error) {
	if !Exists(root, name) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Join(root, name))
	}
	return &Index{
		name:   name,
		dir:    filepath.Join(root, name),
		logger: zap.NewNop(),
	}, nil
}

// SetLogger sets the logger for load messages.
func (idx *Index) SetLogger(l *zap.Logger) {
	idx.logger = l
}

// Name returns the genome name.
func (idx *Index) Name() string {
	return idx.name
}

// Dir returns the index directory.
func (idx *Index) Dir() string {
	return idx.dir
}

// Close releases the open FASTA files.
func (idx *Index) Close() error {
	var errs []error
	for _, f := range idx.files {
		errs = append(errs, f.Close())
	}
	idx.files = nil
	return errors.Join(errs...)
}

func (idx *Index) load() error {
	idx.once.Do(func() {
		entries, err := os.ReadDir(idx.dir)
		if err != nil {
			idx.loadErr = fmt.Errorf("read genome index: %w", err)
			return
		}
		idx.chroms = make(map[string]*chromosome)
		inMemory := 0
		for _, e := range entries {
			if e.IsDir() || !hasFASTASuffix(e.Name()) {
				continue
			}
			path := filepath.Join(idx.dir, e.Name())
			indexed, err := idx.addIndexed(path)
			if err != nil {
				idx.loadErr = fmt.Errorf("index %s: %w", e.Name(), err)
				return
			}
			if indexed {
				continue
			}
			if err := idx.addInMemory(path); err != nil {
				idx.loadErr = fmt.Errorf("load %s: %w", e.Name(), err)
				return
			}
			inMemory++
		}
		if len(idx.chroms) == 0 {
			idx.loadErr = fmt.Errorf("genome index %s contains no FASTA sequences", idx.dir)
			return
		}
		names := make([]string, 0, len(idx.chroms))
		for name := range idx.chroms {
			names = append(names, name)
		}
		sort.Strings(names)
		idx.names = names
		idx.logger.Debug("loaded genome index",
			zap.String("genome", idx.name),
			zap.Int("chromosomes", len(names)),
			zap.Int("files_in_memory", inMemory))
	})
	return idx.loadErr
}

// addIndexed records the line layout of a plain FASTA file. It reports false
// when the file must be loaded into memory instead.
func (idx *Index) addIndexed(path string) (bool, error) {
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		return false, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	layouts, regular, err := scanLayout(f)
	if err != nil || !regular {
		f.Close()
		return false, err
	}
	idx.files = append(idx.files, f)
	for _, l := range layouts {
		idx.chroms[l.name] = &chromosome{length: l.length, file: f, layout: l}
	}
	return true, nil
}

func (idx *Index) addInMemory(path string) error {
	records, err := fasta.ReadFile(path)
	if err != nil {
		return err
	}
	for _, r := range records {
		seq := strings.ToUpper(r.Seq)
		idx.chroms[r.ID] = &chromosome{length: len(seq), seq: seq}
	}
	return nil
}

func hasFASTASuffix(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range fastaSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// Chromosomes returns the sorted chromosome names.
func (idx *Index) Chromosomes() ([]string, error) {
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx.names, nil
}

// GetSequence returns the upper-cased bases of chrom[start:end).
func (idx *Index) GetSequence(chrom string, start, end int) (string, error) {
	if err := idx.load(); err != nil {
		return "", err
	}
	c, ok := idx.chroms[chrom]
	if !ok {
		return "", fmt.Errorf("chromosome %q not in genome %s", chrom, idx.name)
	}
	if start < 0 || end > c.length || start >= end {
		return "", fmt.Errorf("region %s:%d-%d outside chromosome length %d", chrom, start, end, c.length)
	}
	return c.read(start, end)
}

// Region returns the bases of r.
func (idx *Index) Region(r Region) (string, error) {
	return idx.GetSequence(r.Chrom, r.Start, r.End)
}

// Sample draws count random sequences of the given length. Windows are
// picked uniformly over the genome and windows containing N are rejected.
// The same seed always yields the same sample.
func (idx *Index) Sample(length, count int, seed uint64) ([]string, error) {
	if length <= 0 || count <= 0 {
		return nil, fmt.Errorf("sample length and count must be positive")
	}
	if err := idx.load(); err != nil {
		return nil, err
	}

	// Cumulative number of valid window starts per chromosome.
	var eligible []string
	var cum []int
	total := 0
	for _, name := range idx.names {
		n := idx.chroms[name].length - length + 1
		if n <= 0 {
			continue
		}
		total += n
		eligible = append(eligible, name)
		cum = append(cum, total)
	}
	if total == 0 {
		return nil, fmt.Errorf("no chromosome in %s is at least %d bp", idx.name, length)
	}

	rng := rand.New(rand.NewPCG(seed, uint64(length)))
	seqs := make([]string, 0, count)
	maxAttempts := count * 100
	for attempt := 0; len(seqs) < count && attempt < maxAttempts; attempt++ {
		p := rng.IntN(total)
		i := sort.SearchInts(cum, p+1)
		offset := p
		if i > 0 {
			offset -= cum[i-1]
		}
		s, err := idx.chroms[eligible[i]].read(offset, offset+length)
		if err != nil {
			return nil, err
		}
		if strings.ContainsRune(s, 'N') {
			continue
		}
		seqs = append(seqs, s)
	}
	if len(seqs) < count {
		return nil, fmt.Errorf("could only sample %d of %d N-free sequences of length %d", len(seqs), count, length)
	}
	return seqs, nil
}
