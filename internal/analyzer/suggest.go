package analyzer

import (
	"math"
	"time"

	"normalizer/internal/dataset"
	"normalizer/internal/metrics"
	"normalizer/internal/schema"
)

// FactMain is the name of the fact table produced by suggestion and by the
// dependency-driven decomposition.
const FactMain = "Fact_Main"

// Suggest builds a candidate schema from the cardinality split:
//
//   - one Dim_<col> per Dim candidate, keyed on that column;
//   - a numeric column strongly correlated with a numeric Dim candidate
//     moves into that Dim when the Dim column determines it on every row
//     (the highest |r| wins, ties go to the earlier Dim). Another Dim
//     candidate only moves into an earlier one, and a chain of moves lands
//     in the first Dim of the chain. A merely correlated column stays put;
//   - Fact_Main keeps the remaining columns plus one reference per Dim,
//     in dataset column order.
//
// An empty dataset yields an empty schema. A dataset without Dim
// candidates yields Fact_Main alone.
func (a *Analyzer) Suggest(d *dataset.Dataset) *schema.Schema {
	start := time.Now()
	out := schema.New()
	if d.Empty() {
		return out
	}

	cls := a.ClassifyColumns(d)
	isDim := make(map[string]bool, len(cls.Dim))
	for _, c := range cls.Dim {
		isDim[c] = true
	}

	// attach[column] = Dim column it moves into.
	attach := make(map[string]string)
	best := make(map[string]float64)
	for _, c := range a.Correlations(d) {
		for _, p := range [][2]string{{c.A, c.B}, {c.B, c.A}} {
			dim, col := p[0], p[1]
			if !isDim[dim] || (isDim[col] && !dimBefore(cls.Dim, dim, col)) {
				continue
			}
			r := math.Abs(c.R)
			if prev, ok := best[col]; ok && (r < prev || (r == prev && dimBefore(cls.Dim, attach[col], dim))) {
				continue
			}
			if !dependsOn(d, dim, col) {
				continue
			}
			best[col] = r
			attach[col] = dim
		}
	}
	// Dim-to-Dim moves always point at an earlier column, so chains end.
	for col := range attach {
		root := attach[col]
		for attach[root] != "" {
			root = attach[root]
		}
		attach[col] = root
	}

	dims := 0
	for _, dim := range cls.Dim {
		if attach[dim] != "" {
			continue
		}
		cols := []schema.Column{schema.Key(dim)}
		for _, col := range d.Columns {
			if attach[col] == dim {
				cols = append(cols, schema.Field(col))
			}
		}
		out.Add(schema.DimPrefix+dim, cols...)
		dims++
	}

	var fact []schema.Column
	for _, col := range d.Columns {
		switch {
		case attach[col] != "":
			// moved into its Dim
		case isDim[col]:
			fact = append(fact, schema.Ref(col, schema.DimPrefix+col, col))
		default:
			fact = append(fact, schema.Field(col))
		}
	}
	out.Add(FactMain, fact...)

	metrics.RecordStep("suggest", "ok", time.Since(start))
	a.logger()("stage=suggest ok dims=%d fact_columns=%d duration=%s", dims, len(fact), time.Since(start))
	return out
}

// dependsOn reports whether every row's col value can be rebuilt from its
// dim value over all of d: equal dim values carry equal col values, col is
// null exactly where dim is null. Dim tables drop rows with nulls, so a
// null col under a present dim value would orphan its Fact rows.
// Unsupported values count as not determined.
func dependsOn(d *dataset.Dataset, dim, col string) bool {
	di, ci := d.Index(dim), d.Index(col)
	if di < 0 || ci < 0 {
		return false
	}
	dk, dn, err := columnKeys(d, di)
	if err != nil {
		return false
	}
	ck, cn, err := columnKeys(d, ci)
	if err != nil {
		return false
	}
	seen := make(map[string]string)
	for r := range dk {
		if dn[r] != cn[r] {
			return false
		}
		if dn[r] {
			continue
		}
		if prev, ok := seen[dk[r]]; ok && prev != ck[r] {
			return false
		}
		seen[dk[r]] = ck[r]
	}
	return len(seen) > 0
}

// dimBefore reports whether a precedes b in dims.
func dimBefore(dims []string, a, b string) bool {
	for _, d := range dims {
		switch d {
		case a:
			return true
		case b:
			return false
		}
	}
	return false
}
