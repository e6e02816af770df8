// Package metrics is the process-wide metrics seam. Core packages call the
// package-level helpers; the CLI installs a concrete Backend (see
// internal/metrics/datadog) or leaves the no-op default in place.
package metrics

import (
	"sync"
	"time"
)

// Metric names understood by backends.
const (
	StepTotal           = "normalizer_step_total"
	StepDurationSeconds = "normalizer_step_duration_seconds"
	RowsTotal           = "normalizer_rows_total"
	TablesTotal         = "normalizer_tables_total"
	PairErrorsTotal     = "normalizer_pair_errors_total"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter forwards to the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush asks the installed backend to submit buffered data.
func Flush() error { return current().Flush() }

// RecordStep counts one completed step and its duration. status is "ok"
// or "error".
func RecordStep(step, status string, d time.Duration) {
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordRows counts rows of a kind ("input", "dim", "fact", "dropped",
// "loaded").
func RecordRows(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RowsTotal, float64(n), Labels{"kind": kind})
}

// RecordTables counts produced tables by role.
func RecordTables(role string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(TablesTotal, float64(n), Labels{"role": role})
}
