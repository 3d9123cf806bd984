package scanner

import (
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/inodb/vibe-motif/internal/dispatch"
	"github.com/inodb/vibe-motif/internal/fasta"
	"github.com/inodb/vibe-motif/internal/genome"
	"github.com/inodb/vibe-motif/internal/motif"
	"github.com/inodb/vibe-motif/internal/pwmscan"
	"github.com/inodb/vibe-motif/internal/resultcache"
	"github.com/inodb/vibe-motif/internal/threshold"
)

// Result holds the matches of every motif, in motif order, for one input.
type Result = resultcache.Result

// unit is one scannable item: raw bases, or a region fetched from the
// genome on the worker.
type unit struct {
	id     string
	seq    string
	region *genome.Region
}

// Scan scores every input against every motif and yields one Result per
// input, in input order. Each motif keeps at most nreport matches; rc also
// scans the reverse strand. Work starts when the sequence is first ranged
// over and proceeds in batches, so ranging again rescans from the start.
//
// Without a threshold the default fraction of 0.95 is installed.
func (s *Scanner) Scan(in Input, nreport int, rc bool) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		if err := s.ensureThreshold(); err != nil {
			yield(nil, err)
			return
		}
		s.scan(in, s.table, nreport, rc, yield)
	}
}

func (s *Scanner) ensureThreshold() error {
	if len(s.motifs) == 0 {
		return ErrNoMotifs
	}
	if s.table == nil {
		s.logger.Warn("no threshold set, using default; this is likely not optimal",
			zap.Float64("fraction", threshold.DefaultFraction))
		s.table = threshold.FromFraction(s.motifs, threshold.DefaultFraction)
		s.metrics.thresholdsSolved.WithLabelValues("default").Add(float64(len(s.motifs)))
	}
	return nil
}

func (s *Scanner) scan(in Input, table threshold.Table, nreport int, rc bool, yield func(Result, error) bool) {
	if len(s.motifs) == 0 {
		yield(nil, ErrNoMotifs)
		return
	}
	if nreport < 1 {
		yield(nil, fmt.Errorf("%w: got %d", ErrInvalidNReport, nreport))
		return
	}

	j, err := s.newJob(table, nreport, rc)
	if err != nil {
		yield(nil, err)
		return
	}
	units, err := s.units(in)
	if err != nil {
		yield(nil, err)
		return
	}

	batch := s.pool.Size() * dispatch.MaxChunkSize
	for start := 0; start < len(units); start += batch {
		end := min(start+batch, len(units))
		results, err := s.scanBatch(units[start:end], j)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, r := range results {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// units resolves an input into scannable units.
func (s *Scanner) units(in Input) ([]unit, error) {
	switch in := in.(type) {
	case Sequences:
		return s.sequenceUnits(in), nil
	case SequenceFile:
		records, err := fasta.ReadFile(string(in))
		if err != nil {
			return nil, err
		}
		return s.sequenceUnits(records), nil
	case Regions:
		return s.regionUnits(in)
	case RegionFile:
		regions, err := genome.ReadRegionFile(string(in))
		if err != nil {
			return nil, err
		}
		return s.regionUnits(regions)
	case nil:
		return nil, fmt.Errorf("%w: nil input", ErrUnknownInput)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownInput, in)
	}
}

func (s *Scanner) sequenceUnits(records []fasta.Record) []unit {
	units := make([]unit, len(records))
	for i, r := range records {
		units[i].seq = r.Seq
		if s.cfg.Cache != nil {
			units[i].id = resultcache.SequenceID(r.Seq)
		}
	}
	return units
}

func (s *Scanner) regionUnits(regions []genome.Region) ([]unit, error) {
	if s.genome == nil {
		return nil, ErrNoGenome
	}
	units := make([]unit, len(regions))
	for i := range regions {
		units[i].region = &regions[i]
		units[i].id = resultcache.RegionID(s.genome.Name(), regions[i])
	}
	return units, nil
}

// scanBatch scores one batch on the pool, going through the result cache
// when one is configured.
func (s *Scanner) scanBatch(units []unit, j *job) ([]Result, error) {
	if s.cfg.Cache == nil {
		return dispatch.Dispatch(s.pool, units, j.scanChunk)
	}

	keys := make([]string, len(units))
	for i, u := range units {
		keys[i] = j.params.Key(u.id)
	}
	results, stats, err := resultcache.Resolve(s.cfg.Cache, keys, func(indices []int) ([]Result, error) {
		todo := make([]unit, len(indices))
		for k, i := range indices {
			todo[k] = units[i]
		}
		return dispatch.Dispatch(s.pool, todo, j.scanChunk)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.cacheHits.Add(float64(stats.Hits))
	s.metrics.cacheMisses.Add(float64(stats.Computed))
	s.logger.Debug("scanned batch",
		zap.Int("units", len(units)),
		zap.Int("cached", stats.Hits),
		zap.Int("computed", stats.Computed))
	return results, nil
}

// job is the read-only state shared by every worker during one scan.
type job struct {
	motifs  []*motif.Motif
	cutoffs []threshold.Cutoff
	nreport int
	rc      bool
	genome  *genome.Index
	scanFn  pwmscan.Func
	metrics *metrics
	params  resultcache.KeyParams
}

func (s *Scanner) newJob(table threshold.Table, nreport int, rc bool) (*job, error) {
	cutoffs := make([]threshold.Cutoff, len(s.motifs))
	for i, m := range s.motifs {
		c, ok := table[m.ID]
		if !ok {
			return nil, fmt.Errorf("no threshold for motif %s", m.ID)
		}
		cutoffs[i] = c
	}
	return &job{
		motifs:  s.motifs,
		cutoffs: cutoffs,
		nreport: nreport,
		rc:      rc,
		genome:  s.genome,
		scanFn:  s.scanFn,
		metrics: s.metrics,
		params: resultcache.KeyParams{
			MotifDigest:     s.motifDigest,
			ThresholdDigest: table.Digest(s.motifIDs),
			NReport:         nreport,
			ReverseStrand:   rc,
		},
	}, nil
}

func (j *job) scanChunk(chunk []unit) ([]Result, error) {
	out := make([]Result, len(chunk))
	for i, u := range chunk {
		seq := u.seq
		if u.region != nil {
			var err error
			seq, err = j.genome.Region(*u.region)
			if err != nil {
				return nil, err
			}
		}
		out[i] = j.scanOne([]byte(seq))
	}
	j.metrics.unitsScanned.Add(float64(len(chunk)))
	return out, nil
}

// scanOne scores one sequence. Motifs whose cutoff never matches are
// skipped without calling the engine.
func (j *job) scanOne(seq []byte) Result {
	r := make(Result, len(j.motifs))
	for k, m := range j.motifs {
		c := j.cutoffs[k]
		if c.Never {
			r[k] = []pwmscan.Match{}
			continue
		}
		hits := j.scanFn(seq, m, c.Value, j.nreport, j.rc)
		j.metrics.engineCalls.Inc()
		if hits == nil {
			hits = []pwmscan.Match{}
		}
		r[k] = hits
	}
	return r
}
