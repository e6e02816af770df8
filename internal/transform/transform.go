// Package transform holds the cleaning rules applied to a dataset before it
// is analyzed or decomposed, and the Pipeline that runs them in order.
//
// Rule is a closed set: every implementation lives in this package, so a
// type switch over Rule values is exhaustive. Rules never modify their
// input; each Apply returns a new Dataset.
//
// Columns named explicitly by a rule must exist; a missing one fails the
// rule with *dataset.ColumnNotFoundError. An empty column list means "every
// column the rule can work on".
package transform

import (
	"log"

	"normalizer/internal/dataset"
)

// Logger is the minimal logging interface used by Pipeline.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Rule is one dataset transformation.
type Rule interface {
	// Type is the rule's name in pipeline files, e.g. "fill_missing".
	Type() string
	Apply(d *dataset.Dataset) (*dataset.Dataset, error)

	sealed()
}

// columnIndexes resolves cols against d. Empty cols selects every column
// accepted by want (nil accepts all).
func columnIndexes(d *dataset.Dataset, cols []string, want func(dataset.Kind) bool) ([]int, error) {
	if len(cols) == 0 {
		var out []int
		for i := range d.Columns {
			k := dataset.KindUnknown
			if i < len(d.Kinds) {
				k = d.Kinds[i]
			}
			if want == nil || want(k) {
				out = append(out, i)
			}
		}
		return out, nil
	}
	out := make([]int, len(cols))
	for i, c := range cols {
		j := d.Index(c)
		if j < 0 {
			return nil, &dataset.ColumnNotFoundError{Column: c}
		}
		out[i] = j
	}
	return out, nil
}

func columnIndex(d *dataset.Dataset, col string) (int, error) {
	j := d.Index(col)
	if j < 0 {
		return -1, &dataset.ColumnNotFoundError{Column: col}
	}
	return j, nil
}

func isString(k dataset.Kind) bool { return k == dataset.KindString }

// mapCells returns a copy of d with fn applied to every cell of the given
// columns. Their kinds are re-inferred; a column left without values keeps
// its previous kind.
func mapCells(d *dataset.Dataset, idx []int, fn func(v any) (any, error)) (*dataset.Dataset, error) {
	out := d.Clone()
	for _, row := range out.Rows {
		for _, j := range idx {
			v, err := fn(row[j])
			if err != nil {
				return nil, err
			}
			row[j] = v
		}
	}
	reinferColumns(out, idx)
	return out, nil
}

func reinferColumns(d *dataset.Dataset, idx []int) {
	if len(d.Kinds) < len(d.Columns) {
		k := make([]dataset.Kind, len(d.Columns))
		copy(k, d.Kinds)
		d.Kinds = k
	}
	for _, j := range idx {
		vals := make([]any, len(d.Rows))
		for r, row := range d.Rows {
			vals[r] = row[j]
		}
		if k := dataset.KindOfValues(vals); k != dataset.KindUnknown {
			d.Kinds[j] = k
		}
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func loggerFunc(l Logger) func(string, ...any) {
	if l == nil {
		return log.New(discardWriter{}, "", 0).Printf
	}
	return l.Printf
}
