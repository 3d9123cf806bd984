package resultcache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/inodb/vibe-motif/internal/genome"
	"github.com/inodb/vibe-motif/internal/motif"
	"github.com/inodb/vibe-motif/internal/pwmscan"
)

// Result holds the matches of every motif for one scanned unit.
type Result = [][]pwmscan.Match

func digest(parts ...string) string {
	h := murmur3.New128()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	hi, lo := h.Sum128()
	return fmt.Sprintf("%016x%016x", hi, lo)
}

// SequenceID returns the unit identity of a raw sequence: a digest of its
// upper-cased bases.
func SequenceID(seq string) string {
	return "seq:" + digest(strings.ToUpper(seq))
}

// RegionID returns the unit identity of a region in the named genome.
func RegionID(genomeName string, r genome.Region) string {
	return "region:" + genomeName + "/" + r.String()
}

// MotifSetDigest digests the content hashes of motifs in load order.
// Result slices follow that order, so reordering the motifs changes the
// digest as editing a matrix does.
func MotifSetDigest(motifs []*motif.Motif) string {
	hashes := make([]string, len(motifs))
	for i, m := range motifs {
		hashes[i] = m.Hash()
	}
	return digest(hashes...)
}

// KeyParams is the scan configuration folded into every result key.
type KeyParams struct {
	MotifDigest     string
	ThresholdDigest string
	NReport         int
	ReverseStrand   bool
}

// Key returns the cache key of a unit under these parameters.
func (p KeyParams) Key(unitID string) string {
	return digest(unitID, p.MotifDigest, p.ThresholdDigest,
		strconv.Itoa(p.NReport), strconv.FormatBool(p.ReverseStrand))
}

// Encode serializes a result for storage.
func Encode(r Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes a stored result.
func Decode(b []byte) (Result, error) {
	var r Result
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	// gob does not distinguish empty from nil slices.
	for i := range r {
		if r[i] == nil {
			r[i] = []pwmscan.Match{}
		}
	}
	return r, nil
}
