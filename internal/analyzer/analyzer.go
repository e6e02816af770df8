// Package analyzer inspects a dataset and proposes structure for it: a
// Dim/Fact split by column cardinality, empirical functional dependencies,
// numeric correlations, and a candidate schema built from those signals.
//
// The analyzer never mutates its input. Per column-pair failures during
// dependency detection are recorded on the Analyzer (see Errors) and the
// pair is skipped; a scan never aborts on one bad column.
package analyzer

import (
	"fmt"
	"log"
	"sync"

	"normalizer/internal/dataset"
)

// Logger is the minimal logging interface used by the analyzer.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Config holds analysis knobs. Zero fields take the defaults listed.
type Config struct {
	// SampleSize bounds the rows scanned by DetectDependencies and
	// Correlations. Default 1000.
	SampleSize int `json:"sample_size"`
	// RatioThreshold: a column whose unique/total ratio is strictly below
	// it is a Dim candidate. Default 0.1.
	RatioThreshold float64 `json:"ratio_threshold"`
	// CorrelationThreshold is the minimum |r| reported by Correlations.
	// Default 0.8.
	CorrelationThreshold float64 `json:"correlation_threshold"`
	// Seed drives subsampling. Zero means 42.
	Seed uint64 `json:"seed"`
	// MaxDistinct, when > 0, also makes any column with fewer distinct
	// values a Dim candidate.
	MaxDistinct int `json:"max_distinct"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		SampleSize:           1000,
		RatioThreshold:       0.1,
		CorrelationThreshold: 0.8,
		Seed:                 42,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SampleSize <= 0 {
		c.SampleSize = d.SampleSize
	}
	if c.RatioThreshold <= 0 {
		c.RatioThreshold = d.RatioThreshold
	}
	if c.CorrelationThreshold <= 0 {
		c.CorrelationThreshold = d.CorrelationThreshold
	}
	if c.Seed == 0 {
		c.Seed = d.Seed
	}
	return c
}

// PairError records one skipped column pair.
type PairError struct {
	Determinant string
	Dependent   string
	Err         error
}

func (e PairError) Error() string {
	return fmt.Sprintf("pair %s -> %s: %v", e.Determinant, e.Dependent, e.Err)
}

func (e PairError) Unwrap() error { return e.Err }

// Analyzer runs the analyses. The zero value is usable and applies the
// default Config. An Analyzer may be shared between goroutines.
type Analyzer struct {
	Config Config
	Logger Logger

	mu     sync.Mutex
	errLog []PairError
}

// New returns an Analyzer with cfg and logger.
func New(cfg Config, logger Logger) *Analyzer {
	return &Analyzer{Config: cfg, Logger: logger}
}

// Errors returns the pair errors recorded so far, oldest first.
func (a *Analyzer) Errors() []PairError {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]PairError(nil), a.errLog...)
}

// ResetErrors clears the error log.
func (a *Analyzer) ResetErrors() {
	a.mu.Lock()
	a.errLog = nil
	a.mu.Unlock()
}

func (a *Analyzer) record(pe PairError) {
	a.mu.Lock()
	a.errLog = append(a.errLog, pe)
	a.mu.Unlock()
}

func (a *Analyzer) cfg() Config { return a.Config.withDefaults() }

func (a *Analyzer) logger() func(string, ...any) {
	if a.Logger == nil {
		l := log.New(discardWriter{}, "", 0)
		return l.Printf
	}
	return a.Logger.Printf
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (n int, err error) { return len(p), nil }

// columnKeys turns every cell of column i into its grouping key. null marks
// missing cells. The first unsupported value aborts with its error.
func columnKeys(d *dataset.Dataset, i int) (keys []string, null []bool, err error) {
	keys = make([]string, len(d.Rows))
	null = make([]bool, len(d.Rows))
	for r, row := range d.Rows {
		v := row[i]
		if dataset.IsNull(v) {
			null[r] = true
			continue
		}
		k, err := dataset.Key(v)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", r, err)
		}
		keys[r] = k
	}
	return keys, null, nil
}

// distinctCount counts distinct non-null values of column i. Unsupported
// values fall back to their printed form so classification still works.
func distinctCount(d *dataset.Dataset, i int) int {
	seen := make(map[string]struct{})
	for _, row := range d.Rows {
		v := row[i]
		if dataset.IsNull(v) {
			continue
		}
		k, err := dataset.Key(v)
		if err != nil {
			k = fmt.Sprintf("%T:%v", v, v)
		}
		seen[k] = struct{}{}
	}
	return len(seen)
}
