package decompose

import (
	"fmt"
	"sort"
	"time"

	"normalizer/internal/analyzer"
	"normalizer/internal/dataset"
	"normalizer/internal/metrics"
	"normalizer/internal/schema"
)

// FunctionalDependency builds one Dim table per dependency determinant.
//
// Dependencies are taken greedily by descending dependent-set size, ties
// kept in discovery order. A determinant is skipped when it was already
// claimed by a larger Dim, when it is unique on every row (it would
// determine everything), or when none of its dependents is still
// unclaimed. Each accepted determinant claims its unclaimed dependents into
// Dim_<determinant>, keyed and deduplicated on the determinant.
//
// The Fact table keeps every unclaimed column, determinants included, in
// dataset order; determinant columns reference their Dim. Table-level
// failures are recorded in Result.Issues and logged. When no Dim can be
// built the whole dataset becomes the Fact table.
type FunctionalDependency struct {
	Analyzer *analyzer.Analyzer
	// FactName defaults to Fact_Main.
	FactName string
	Logger   Logger
}

// DecomposeViaFDs runs the dependency-driven strategy with an.
func DecomposeViaFDs(d *dataset.Dataset, an *analyzer.Analyzer) (*Result, error) {
	return (&FunctionalDependency{Analyzer: an}).Decompose(d)
}

// Decompose implements Decomposer.
func (f *FunctionalDependency) Decompose(d *dataset.Dataset) (*Result, error) {
	start := time.Now()
	logf := loggerFunc(f.Logger)
	if err := dataset.CheckInput(d); err != nil {
		metrics.RecordStep("decompose_fd", "error", time.Since(start))
		return nil, err
	}
	an := f.Analyzer
	if an == nil {
		an = &analyzer.Analyzer{}
	}
	factName := f.FactName
	if factName == "" {
		factName = analyzer.FactMain
	}

	deps := an.DetectDependencies(d)
	sort.SliceStable(deps, func(i, j int) bool {
		return len(deps[i].Dependents) > len(deps[j].Dependents)
	})

	res := newResult()
	claimed := make(map[string]bool)
	var determinants []string

	for _, dep := range deps {
		det := dep.Determinant
		if claimed[det] {
			continue
		}
		if analyzer.RowUnique(d, det) {
			logf("stage=fd_dim determinant=%s skipped reason=row_unique", det)
			continue
		}
		var mine []string
		for _, c := range dep.Dependents {
			if !claimed[c] && c != det {
				mine = append(mine, c)
			}
		}
		if len(mine) == 0 {
			continue
		}

		name := schema.DimPrefix + det
		data, err := coalesceOn(d, det, mine)
		if err != nil {
			res.issue(name, err)
			logf("stage=fd_dim table=%s failed err=%v", name, err)
			continue
		}

		cols := []schema.Column{schema.Key(det)}
		for _, c := range mine {
			cols = append(cols, schema.Field(c))
			claimed[c] = true
		}
		claimed[det] = true
		determinants = append(determinants, det)
		res.add(name, data, cols)
		metrics.RecordRows("dim", data.Len())
		logf("stage=fd_dim table=%s rows=%d columns=%d", name, data.Len(), len(cols))
	}

	if len(determinants) == 0 {
		res.add(factName, d.Clone(), fieldsOf(d.Columns, nil))
		logf("stage=fd_fact table=%s fallback=whole_dataset rows=%d", factName, d.Len())
		metrics.RecordTables("fact", 1)
		metrics.RecordStep("decompose_fd", "ok", time.Since(start))
		return res, nil
	}

	isDet := make(map[string]bool, len(determinants))
	for _, det := range determinants {
		isDet[det] = true
	}
	var factCols []string
	for _, c := range d.Columns {
		if isDet[c] || !claimed[c] {
			factCols = append(factCols, c)
		}
	}
	fact, err := d.Project(factCols)
	if err != nil {
		// Project only fails on unknown columns, which cannot happen here.
		res.issue(factName, err)
		fact = d.Clone()
		factCols = d.Columns
		isDet = nil
	}
	res.add(factName, fact, fieldsOf(factCols, isDet))

	metrics.RecordRows("fact", fact.Len())
	metrics.RecordTables("dim", len(determinants))
	metrics.RecordTables("fact", 1)
	metrics.RecordStep("decompose_fd", "ok", time.Since(start))
	logf("stage=fd_fact table=%s rows=%d columns=%d duration=%s", factName, fact.Len(), len(factCols), time.Since(start))
	return res, nil
}

func fieldsOf(cols []string, refs map[string]bool) []schema.Column {
	out := make([]schema.Column, len(cols))
	for i, c := range cols {
		if refs[c] {
			out[i] = schema.Ref(c, schema.DimPrefix+c, c)
			continue
		}
		out[i] = schema.Field(c)
	}
	return out
}

// coalesceOn builds one row per distinct non-null det value, in first-seen
// order, taking the first non-null value of each dependent.
func coalesceOn(d *dataset.Dataset, det string, deps []string) (*dataset.Dataset, error) {
	proj, err := d.Project(append([]string{det}, deps...))
	if err != nil {
		return nil, err
	}
	index := make(map[string]int)
	var rows [][]any
	for r, row := range proj.Rows {
		if dataset.IsNull(row[0]) {
			continue
		}
		k, err := dataset.Key(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r, err)
		}
		at, ok := index[k]
		if !ok {
			index[k] = len(rows)
			rows = append(rows, append([]any(nil), row...))
			continue
		}
		out := rows[at]
		for i := 1; i < len(row); i++ {
			if dataset.IsNull(out[i]) && !dataset.IsNull(row[i]) {
				out[i] = row[i]
			}
		}
	}
	res := &dataset.Dataset{Columns: proj.Columns, Kinds: proj.Kinds, Rows: rows}
	return res, nil
}
