package resultcache

import (
	"fmt"
)

// Stats reports what one Resolve call did.
type Stats struct {
	Hits     int // units served from entries written before this call
	Computed int // distinct keys computed and written by this call
}

// ComputeFunc computes results for the units at the given indices, one
// result per index, in the same order.
type ComputeFunc func(indices []int) ([]Result, error)

// Resolve returns one result per key, in key order.
//
// Keys already in the backend are not recomputed. The remaining distinct
// keys are computed in a single compute call, written, and then the whole
// batch is replayed from the backend. A key written by this call that is
// missing on replay yields ErrUndersized; it is never silently recomputed.
func Resolve(b Backend, keys []string, compute ComputeFunc) ([]Result, Stats, error) {
	var stats Stats

	missing, err := lookupMissing(b, keys)
	if err != nil {
		return nil, stats, err
	}
	stats.Hits = len(keys)

	written := make(map[string]bool, len(missing))
	if len(missing) > 0 {
		computed, err := compute(missing)
		if err != nil {
			return nil, stats, err
		}
		if len(computed) != len(missing) {
			return nil, stats, fmt.Errorf("computed %d results for %d units", len(computed), len(missing))
		}
		if err := store(b, keys, missing, computed); err != nil {
			return nil, stats, err
		}
		for _, i := range missing {
			written[keys[i]] = true
		}
		stats.Computed = len(missing)
	}

	results, err := replay(b, keys)
	if err != nil {
		return nil, stats, err
	}
	for _, k := range keys {
		if written[k] {
			stats.Hits--
		}
	}
	return results, stats, nil
}

// lookupMissing returns the index of the first occurrence of every distinct
// key that is not in the backend.
func lookupMissing(b Backend, keys []string) ([]int, error) {
	conn, err := b.Acquire()
	if err != nil {
		return nil, fmt.Errorf("acquire cache connection: %w", err)
	}
	defer conn.Close()

	seen := make(map[string]bool, len(keys))
	var missing []int
	for i, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		_, ok, err := conn.Get(k)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, i)
		}
	}
	return missing, nil
}

func store(b Backend, keys []string, indices []int, results []Result) error {
	conn, err := b.Acquire()
	if err != nil {
		return fmt.Errorf("acquire cache connection: %w", err)
	}
	defer conn.Close()

	for j, i := range indices {
		enc, err := Encode(results[j])
		if err != nil {
			return err
		}
		if err := conn.Set(keys[i], enc); err != nil {
			return err
		}
	}
	return nil
}

func replay(b Backend, keys []string) ([]Result, error) {
	conn, err := b.Acquire()
	if err != nil {
		return nil, fmt.Errorf("acquire cache connection: %w", err)
	}
	defer conn.Close()

	out := make([]Result, len(keys))
	for i, k := range keys {
		enc, ok, err := conn.Get(k)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrUndersized
		}
		r, err := Decode(enc)
		if err != nil {
			return nil, fmt.Errorf("cache entry %s: %w", k, err)
		}
		out[i] = r
	}
	return out, nil
}
