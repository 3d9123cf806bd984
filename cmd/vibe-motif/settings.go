package main

import (
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-motif/internal/resultcache"
	"github.com/inodb/vibe-motif/internal/scanner"
)

// settings is the resolved configuration of one invocation.
type settings struct {
	Verbose        bool
	NCPUs          int
	GenomeDir      string
	ThresholdCache string
	Cache          cacheSettings
}

type cacheSettings struct {
	Enabled    bool
	Backend    string
	Dir        string
	MaxEntries int
}

func loadSettings() settings {
	return settings{
		Verbose:        viper.GetBool("verbose"),
		NCPUs:          viper.GetInt("ncpus"),
		GenomeDir:      viper.GetString("genome_dir"),
		ThresholdCache: viper.GetString("threshold_cache"),
		Cache: cacheSettings{
			Enabled:    viper.GetBool("cache.enabled"),
			Backend:    viper.GetString("cache.backend"),
			Dir:        viper.GetString("cache.dir"),
			MaxEntries: viper.GetInt("cache.max_entries"),
		},
	}
}

// openCache opens the configured result cache, or returns nil when caching
// is disabled.
func (c cacheSettings) openCache(logger *zap.Logger) (resultcache.Backend, error) {
	if !c.Enabled {
		return nil, nil
	}
	switch c.Backend {
	case "memory":
		return resultcache.NewMemory(c.MaxEntries), nil
	case "badger", "":
		return resultcache.OpenBadger(resultcache.BadgerConfig{
			Path:   filepath.Join(c.Dir, "badger"),
			Logger: logger,
		})
	case "bolt":
		return resultcache.OpenBolt(filepath.Join(c.Dir, "results.db"))
	default:
		return nil, usageError{fmt.Errorf("unknown cache backend %q (want memory, badger or bolt)", c.Backend)}
	}
}

// newScanner builds a scanner from the settings. The caller closes it.
func (s settings) newScanner(logger *zap.Logger, reg prometheus.Registerer) (*scanner.Scanner, error) {
	cache, err := s.Cache.openCache(logger)
	if err != nil {
		return nil, err
	}
	cfg := scanner.Config{
		Workers:            s.NCPUs,
		GenomeDir:          s.GenomeDir,
		ThresholdCachePath: s.ThresholdCache,
		Cache:              cache,
		Registerer:         reg,
	}
	return scanner.New(cfg, scanner.WithLogger(logger)), nil
}
