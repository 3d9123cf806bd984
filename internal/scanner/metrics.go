package scanner

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	unitsScanned     prometheus.Counter
	engineCalls      prometheus.Counter
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	thresholdsSolved *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		unitsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vibe_motif_units_scanned_total",
			Help: "Sequences and regions scored by the scan engine.",
		}),
		engineCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vibe_motif_engine_calls_total",
			Help: "Motif-by-unit invocations of the scan engine.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vibe_motif_result_cache_hits_total",
			Help: "Units served from the result cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vibe_motif_result_cache_misses_total",
			Help: "Distinct units computed and written to the result cache.",
		}),
		thresholdsSolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vibe_motif_thresholds_resolved_total",
			Help: "Motif thresholds resolved, by method.",
		}, []string{"method"}),
	}
	if reg == nil {
		return m
	}

	m.unitsScanned = register(reg, m.unitsScanned)
	m.engineCalls = register(reg, m.engineCalls)
	m.cacheHits = register(reg, m.cacheHits)
	m.cacheMisses = register(reg, m.cacheMisses)
	m.thresholdsSolved = register(reg, m.thresholdsSolved)
	return m
}

// register adds c to reg, reusing an identical collector that is already
// registered (several scanners may share one registry).
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
