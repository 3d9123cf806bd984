// Package threshold resolves per-motif score cutoffs: from a fraction of the
// score range, from a threshold file, or calibrated on background sequences
// at a target false discovery rate.
package threshold

import (
	"fmt"
	"math"
	"strconv"

	"github.com/spaolacci/murmur3"
)

// DefaultFraction is the fraction of the min-max range used when no
// threshold was configured.
const DefaultFraction = 0.95

// Cutoff is the threshold of one motif. Never means the cutoff equals the
// motif's maximum score: the motif is not scanned at all.
type Cutoff struct {
	Value float64
	Never bool
}

// NeverMatch is the sentinel cutoff.
var NeverMatch = Cutoff{Never: true}

// Score returns a concrete cutoff.
func Score(v float64) Cutoff {
	return Cutoff{Value: v}
}

func (c Cutoff) String() string {
	if c.Never {
		return neverToken
	}
	return strconv.FormatFloat(c.Value, 'g', -1, 64)
}

// Table maps motif ID to cutoff.
type Table map[string]Cutoff

// Digest returns a digest of the cutoffs of ids, in that order.
func (t Table) Digest(ids []string) string {
	h := murmur3.New128()
	for _, id := range ids {
		c, ok := t[id]
		s := "missing"
		if ok {
			s = c.String()
		}
		fmt.Fprintf(h, "%s=%s\x00", id, s)
	}
	hi, lo := h.Sum128()
	return fmt.Sprintf("%016x%016x", hi, lo)
}

// isClose mirrors numpy.isclose with default tolerances.
func isClose(a, b float64) bool {
	return math.Abs(a-b) <= 1e-8+1e-5*math.Abs(b)
}

// cutoffFor applies the sentinel policy to a calibrated score.
func cutoffFor(score, maxScore float64) Cutoff {
	if isClose(score, maxScore) {
		return NeverMatch
	}
	return Score(score)
}
