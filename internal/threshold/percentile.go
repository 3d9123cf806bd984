package threshold

import (
	"math"
	"sort"
)

// ScoreAtPercentile returns the score at percentile p (0-100) of scores,
// interpolating linearly between the two nearest ranks.
func ScoreAtPercentile(scores []float64, p float64) float64 {
	if len(scores) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	idx := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	if lo < 0 {
		return sorted[0]
	}
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := idx - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}
