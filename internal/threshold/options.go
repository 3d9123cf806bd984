package threshold

import (
	"errors"
	"fmt"
)

// Defaults for genome-sampled backgrounds.
const (
	DefaultLength = 200
	DefaultCount  = 10000
)

var (
	// ErrUsage marks mutually exclusive or incomplete threshold options.
	ErrUsage = errors.New("invalid threshold options")
	// ErrInvalidFDR is returned for an FDR outside (0, 1).
	ErrInvalidFDR = errors.New("fdr should be between 0 and 1")
)

// Options selects how thresholds are resolved. Exactly one of Fraction,
// File or FDR must be set; FDR needs exactly one of Genome or Background.
type Options struct {
	// Fraction of each motif's min-max score range, 0.0-1.0.
	Fraction *float64
	// File is a motif<TAB>fraction table.
	File string
	// FDR is the target false discovery rate, strictly between 0 and 1.
	FDR *float64

	// Genome is sampled for background sequences.
	Genome string
	// Length and Count of genome-sampled sequences (defaults 200 and 10000).
	Length int
	Count  int
	// Background is a FASTA file of background sequences.
	Background string
}

// Validate checks the option combination.
func (o Options) Validate() error {
	set := 0
	for _, b := range []bool{o.Fraction != nil, o.File != "", o.FDR != nil} {
		if b {
			set++
		}
	}
	if set == 0 {
		return fmt.Errorf("%w: need a threshold, a threshold file or an fdr", ErrUsage)
	}
	if set > 1 {
		return fmt.Errorf("%w: need either fdr or threshold", ErrUsage)
	}

	if o.Fraction != nil || o.File != "" {
		if o.Genome != "" || o.Background != "" {
			return fmt.Errorf("%w: genome and background are only used with fdr", ErrUsage)
		}
	}
	if o.Fraction != nil && (*o.Fraction < 0 || *o.Fraction > 1) {
		return fmt.Errorf("%w: threshold %g is not between 0 and 1", ErrUsage, *o.Fraction)
	}

	if o.FDR != nil {
		if !(*o.FDR > 0 && *o.FDR < 1) {
			return fmt.Errorf("%w: got %g", ErrInvalidFDR, *o.FDR)
		}
		if o.Genome != "" && o.Background != "" {
			return fmt.Errorf("%w: need either genome or background file", ErrUsage)
		}
		if o.Genome == "" && o.Background == "" {
			return fmt.Errorf("%w: fdr needs a genome or a background file", ErrUsage)
		}
	}
	if o.Length < 0 || o.Count < 0 {
		return fmt.Errorf("%w: background length and count must be positive", ErrUsage)
	}
	return nil
}

// WithDefaults fills in the background length and count.
func (o Options) WithDefaults() Options {
	if o.Length == 0 {
		o.Length = DefaultLength
	}
	if o.Count == 0 {
		o.Count = DefaultCount
	}
	return o
}
