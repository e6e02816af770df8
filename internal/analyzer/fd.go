package analyzer

import (
	"errors"
	"time"

	"normalizer/internal/dataset"
	"normalizer/internal/metrics"
)

// Dependency is an empirical functional dependency Determinant -> each of
// Dependents, observed on the analyzed sample.
type Dependency struct {
	Determinant string
	Dependents  []string
}

// ErrNoDeterminantValues marks a pair skipped because the determinant
// column has no non-null value in the sample.
var ErrNoDeterminantValues = errors.New("determinant has no non-null values")

// DetectDependencies scans every ordered column pair (A, B), A != B, on a
// seeded subsample of at most SampleSize rows and reports A -> B when every
// non-null value of A maps to at most one distinct non-null value of B and
// at least one value of A maps to a value of B.
//
// Rows with a null A are skipped; null B values are ignored within a group.
// Results are in determinant column order and dependents are in column
// order. Dependencies are not minimized; transitive ones are kept.
//
// The scan costs O(columns^2 x sample rows). Pairs that fail (a cell type
// with no canonical key, or an all-null determinant) are recorded with
// Errors and skipped.
func (a *Analyzer) DetectDependencies(d *dataset.Dataset) []Dependency {
	start := time.Now()
	logf := a.logger()
	if d.Empty() {
		return nil
	}
	cfg := a.cfg()
	s := d.Sample(cfg.SampleSize, cfg.Seed)

	type colKeys struct {
		keys     []string
		null     []bool
		err      error
		hasValue bool
	}
	cols := make([]colKeys, s.Width())
	for i := range cols {
		k, n, err := columnKeys(s, i)
		cols[i] = colKeys{keys: k, null: n, err: err}
		for _, isNull := range n {
			if !isNull {
				cols[i].hasValue = true
				break
			}
		}
	}

	var (
		out    []Dependency
		pairs  int
		failed int
	)
	fail := func(aName, bName string, err error) {
		failed++
		a.record(PairError{Determinant: aName, Dependent: bName, Err: err})
		logf("stage=fd pair=%s->%s skipped err=%v", aName, bName, err)
	}

	for ai, aName := range s.Columns {
		var deps []string
		for bi, bName := range s.Columns {
			if ai == bi {
				continue
			}
			pairs++
			ca, cb := cols[ai], cols[bi]
			switch {
			case ca.err != nil:
				fail(aName, bName, ca.err)
				continue
			case cb.err != nil:
				fail(aName, bName, cb.err)
				continue
			case !ca.hasValue:
				fail(aName, bName, ErrNoDeterminantValues)
				continue
			}
			if determines(ca.keys, ca.null, cb.keys, cb.null) {
				deps = append(deps, bName)
			}
		}
		if len(deps) > 0 {
			out = append(out, Dependency{Determinant: aName, Dependents: deps})
		}
	}

	metrics.IncCounter(metrics.PairErrorsTotal, float64(failed), nil)
	metrics.RecordStep("detect_dependencies", "ok", time.Since(start))
	logf("stage=detect_dependencies ok rows=%d pairs=%d deps=%d skipped=%d duration=%s",
		s.Len(), pairs, len(out), failed, time.Since(start))
	return out
}

// determines reports whether every non-null A key maps to at most one B key
// and at least one group has a B value.
func determines(aKeys []string, aNull []bool, bKeys []string, bNull []bool) bool {
	seen := make(map[string]string)
	matched := false
	for r := range aKeys {
		if aNull[r] || bNull[r] {
			continue
		}
		if prev, ok := seen[aKeys[r]]; ok {
			if prev != bKeys[r] {
				return false
			}
			continue
		}
		seen[aKeys[r]] = bKeys[r]
		matched = true
	}
	return matched
}

// RowUnique reports whether column col has a distinct non-null value on
// every row of d, which makes it determine everything trivially.
func RowUnique(d *dataset.Dataset, col string) bool {
	i := d.Index(col)
	if i < 0 || d.Len() == 0 {
		return false
	}
	return distinctCount(d, i) == d.Len()
}
