// Package decompose turns a flat dataset into normalized Dim and Fact
// tables.
//
// Three strategies implement Decomposer:
//
//   - Explicit follows a user-declared schema. This is the primary
//     strategy; it assigns surrogate keys and substitutes foreign keys.
//   - FunctionalDependency derives Dim tables from dependencies found by
//     the analyzer and falls back to a single Fact_Main table.
//   - Cardinality is the legacy path: the analyzer's suggested schema fed
//     through Explicit.
//
// Every run starts from the source dataset, which is never mutated, and
// produces fresh tables.
package decompose

import (
	"fmt"
	"log"

	"normalizer/internal/dataset"
	"normalizer/internal/schema"
)

// Logger is the minimal logging interface used by the decomposers.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Decomposer produces normalized tables from a dataset.
type Decomposer interface {
	Decompose(d *dataset.Dataset) (*Result, error)
}

// Table is one normalized table.
type Table struct {
	Name string
	Data *dataset.Dataset
}

// TableError records a table-level problem that did not stop the run.
type TableError struct {
	Table string
	Err   error
}

func (e TableError) Error() string { return fmt.Sprintf("table %s: %v", e.Table, e.Err) }
func (e TableError) Unwrap() error { return e.Err }

// Result is the output of one decomposition run.
type Result struct {
	// Tables holds Dim tables first, then Fact tables.
	Tables []Table
	// Schema describes Tables as materialized: surrogate keys included,
	// references pointing at the Dim key column.
	Schema *schema.Schema
	// Issues are non-fatal findings (missing columns, skipped tables).
	Issues []TableError
	// Dropped counts Fact rows removed per table because a reference
	// value had no Dim row.
	Dropped map[string]int
}

func newResult() *Result {
	return &Result{Schema: schema.New(), Dropped: make(map[string]int)}
}

// Get returns the named table.
func (r *Result) Get(name string) (*dataset.Dataset, bool) {
	for _, t := range r.Tables {
		if t.Name == name {
			return t.Data, true
		}
	}
	return nil, false
}

// Names returns table names in output order.
func (r *Result) Names() []string {
	out := make([]string, len(r.Tables))
	for i, t := range r.Tables {
		out[i] = t.Name
	}
	return out
}

// Rows returns the total row count across tables.
func (r *Result) Rows() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Data.Len()
	}
	return n
}

func (r *Result) add(name string, d *dataset.Dataset, cols []schema.Column) {
	r.Tables = append(r.Tables, Table{Name: name, Data: d})
	r.Schema.Add(name, cols...)
}

func (r *Result) issue(table string, err error) {
	r.Issues = append(r.Issues, TableError{Table: table, Err: err})
}

// Decompose runs the explicit-schema strategy with sequential surrogates.
func Decompose(d *dataset.Dataset, s *schema.Schema) (*Result, error) {
	return (&Explicit{Schema: s}).Decompose(d)
}

func loggerFunc(l Logger) func(string, ...any) {
	if l == nil {
		return log.New(discardWriter{}, "", 0).Printf
	}
	return l.Printf
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (n int, err error) { return len(p), nil }
