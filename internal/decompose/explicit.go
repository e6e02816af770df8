package decompose

import (
	"errors"
	"fmt"
	"time"

	"normalizer/internal/dataset"
	"normalizer/internal/metrics"
	"normalizer/internal/schema"
)

// Explicit decomposes along a declared schema in two phases: every Dim
// table is materialized first, then every Fact table, so Fact references
// always resolve against finished Dims.
//
// Phase 1, per Dim table in schema order:
//   - project onto the declared columns present in the dataset (missing
//     columns become Issues; a table with none present is skipped);
//   - drop rows with a null in any projected column;
//   - dedupe on the declared primary key, first occurrence wins;
//   - when a primary key is declared and no column name ends in "_id",
//     insert a surrogate key column first (see SurrogateName).
//
// Phase 2, per Fact table: project and drop nulls the same way, then
// replace each reference column's values with the Dim key (the surrogate
// when one was synthesized, else the first primary-key column). Rows whose
// value has no Dim row are dropped and counted in Result.Dropped.
//
// Hard failures return no Result:
//   - *dataset.InvalidInputError for a nil or empty dataset;
//   - *schema.InvalidSchemaError when validation finds errors;
//   - *MissingReferenceColumnError when a referenced column (or its Dim
//     table) is not in the materialized Dim;
//   - *AmbiguousReferenceError when a referenced Dim column repeats a
//     value, including a Dim without a primary key and the leading column
//     of a composite key.
type Explicit struct {
	Schema    *schema.Schema
	Surrogate SurrogateStrategy
	Logger    Logger
}

// dimOutput is a materialized Dim table and how to join against it.
type dimOutput struct {
	data *dataset.Dataset
	// key is the column Fact references are rewritten to.
	key string
	// natural is the column a reference without ref_column joins on.
	natural string
}

// Decompose implements Decomposer.
func (e *Explicit) Decompose(d *dataset.Dataset) (*Result, error) {
	start := time.Now()
	logf := loggerFunc(e.Logger)

	if err := dataset.CheckInput(d); err != nil {
		metrics.RecordStep("decompose_explicit", "error", time.Since(start))
		return nil, err
	}
	if err := schema.Check(e.Schema); err != nil {
		metrics.RecordStep("decompose_explicit", "error", time.Since(start))
		return nil, err
	}

	res := newResult()
	dims := make(map[string]dimOutput)

	p1 := time.Now()
	for _, t := range e.Schema.DimTables() {
		out, cols, ok := e.buildDim(d, t, res)
		if !ok {
			logf("stage=dim table=%s skipped", t.Name)
			continue
		}
		dims[t.Name] = out
		res.add(t.Name, out.data, cols)
		metrics.RecordRows("dim", out.data.Len())
		logf("stage=dim table=%s rows=%d key=%s", t.Name, out.data.Len(), out.key)
	}
	logf("stage=phase1_dims ok tables=%d duration=%s", len(dims), time.Since(p1))

	p2 := time.Now()
	facts := 0
	for _, t := range e.Schema.FactTables() {
		data, cols, ok, err := e.buildFact(d, t, dims, res)
		if err != nil {
			metrics.RecordStep("decompose_explicit", "error", time.Since(start))
			logf("stage=fact table=%s failed err=%v", t.Name, err)
			return nil, err
		}
		if !ok {
			logf("stage=fact table=%s skipped", t.Name)
			continue
		}
		facts++
		res.add(t.Name, data, cols)
		metrics.RecordRows("fact", data.Len())
		metrics.RecordRows("dropped", res.Dropped[t.Name])
		logf("stage=fact table=%s rows=%d dropped=%d", t.Name, data.Len(), res.Dropped[t.Name])
	}
	logf("stage=phase2_facts ok tables=%d duration=%s", facts, time.Since(p2))

	metrics.RecordTables("dim", len(dims))
	metrics.RecordTables("fact", facts)
	metrics.RecordStep("decompose_explicit", "ok", time.Since(start))
	return res, nil
}

// present splits a table's declared columns into those the dataset carries
// and records the rest as issues.
func present(d *dataset.Dataset, t schema.Table, res *Result) []schema.Column {
	var out []schema.Column
	for _, c := range t.Columns {
		if !d.Has(c.Name) {
			res.issue(t.Name, &dataset.ColumnNotFoundError{Table: t.Name, Column: c.Name})
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		res.issue(t.Name, ErrNoColumnsPresent)
	}
	return out
}

func names(cols []schema.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func (e *Explicit) buildDim(d *dataset.Dataset, t schema.Table, res *Result) (dimOutput, []schema.Column, bool) {
	cols := present(d, t, res)
	if len(cols) == 0 {
		return dimOutput{}, nil, false
	}

	proj, err := d.Project(names(cols))
	if err != nil {
		res.issue(t.Name, err)
		return dimOutput{}, nil, false
	}
	proj = proj.DropNulls()

	var pks []string
	hasKeyName := false
	for _, c := range cols {
		if c.IsPrimary {
			pks = append(pks, c.Name)
		}
		hasKeyName = hasKeyName || looksLikeKey(c.Name)
	}

	out := dimOutput{data: proj}
	if len(pks) == 0 {
		// Nothing to dedupe on and nothing to key by; references must name
		// their column explicitly.
		return out, cols, true
	}

	proj, err = proj.DedupOn(pks)
	if err != nil {
		res.issue(t.Name, err)
		return dimOutput{}, nil, false
	}
	out.data = proj
	out.key = pks[0]
	out.natural = pks[0]

	if hasKeyName {
		return out, cols, true
	}

	sk := SurrogateName(t.Name)
	vals, kind := e.Surrogate.values(proj.Len())
	withKey, err := proj.InsertColumn(0, sk, kind, vals)
	if err != nil {
		res.issue(t.Name, err)
		return dimOutput{}, nil, false
	}
	out.data = withKey
	out.key = sk

	// The surrogate becomes the key; natural key columns stay as data.
	mat := make([]schema.Column, 0, len(cols)+1)
	mat = append(mat, schema.Key(sk))
	for _, c := range cols {
		c.IsPrimary = false
		mat = append(mat, c)
	}
	return out, mat, true
}

func (e *Explicit) buildFact(d *dataset.Dataset, t schema.Table, dims map[string]dimOutput, res *Result) (*dataset.Dataset, []schema.Column, bool, error) {
	cols := present(d, t, res)
	if len(cols) == 0 {
		return nil, nil, false, nil
	}
	proj, err := d.Project(names(cols))
	if err != nil {
		res.issue(t.Name, err)
		return nil, nil, false, nil
	}
	proj = proj.DropNulls()

	mat := append([]schema.Column(nil), cols...)
	// lookups[i] is non-nil for reference columns.
	lookups := make([]map[string]any, len(cols))
	for i, c := range cols {
		if !c.IsReference() {
			continue
		}
		rt, rc := c.Target()
		dim, ok := dims[rt]
		if !ok {
			return nil, nil, false, &MissingReferenceColumnError{Table: t.Name, Column: c.Name, RefTable: rt, RefColumn: rc}
		}
		joinOn := rc
		if joinOn == "" {
			joinOn = dim.natural
		}
		if joinOn == "" || !dim.data.Has(joinOn) {
			return nil, nil, false, &MissingReferenceColumnError{Table: t.Name, Column: c.Name, RefTable: rt, RefColumn: joinOn}
		}
		keyCol := dim.key
		if keyCol == "" {
			keyCol = joinOn
		}
		m, err := keyMap(dim.data, joinOn, keyCol)
		if err != nil {
			var ae *AmbiguousReferenceError
			if errors.As(err, &ae) {
				ae.Table, ae.Column, ae.RefTable = t.Name, c.Name, rt
			}
			return nil, nil, false, err
		}
		lookups[i] = m
		mat[i] = schema.Ref(c.Name, rt, keyCol)
		mat[i].IsPrimary = c.IsPrimary
	}

	rows := make([][]any, 0, proj.Len())
	dropped := 0
	for _, row := range proj.Rows {
		nr := append([]any(nil), row...)
		keep := true
		for i, m := range lookups {
			if m == nil {
				continue
			}
			k, err := dataset.Key(row[i])
			if err != nil {
				keep = false
				break
			}
			v, ok := m[k]
			if !ok {
				keep = false
				break
			}
			nr[i] = v
		}
		if !keep {
			dropped++
			continue
		}
		rows = append(rows, nr)
	}
	if dropped > 0 {
		res.Dropped[t.Name] = dropped
	}

	out := &dataset.Dataset{Columns: proj.Columns, Rows: rows}
	out.Reinfer()
	// Keep the projected kinds where no rows survive to infer from.
	for i := range out.Kinds {
		if out.Kinds[i] == dataset.KindUnknown && lookups[i] == nil && i < len(proj.Kinds) {
			out.Kinds[i] = proj.Kinds[i]
		}
	}
	return out, mat, true, nil
}

// keyMap maps each value of joinOn in dim to the value of keyCol on the
// same row.
//
// Errors:
//   - *AmbiguousReferenceError when a joinOn value repeats.
func keyMap(dim *dataset.Dataset, joinOn, keyCol string) (map[string]any, error) {
	ji, ki := dim.Index(joinOn), dim.Index(keyCol)
	m := make(map[string]any, dim.Len())
	for _, row := range dim.Rows {
		k, err := dataset.Key(row[ji])
		if err != nil {
			return nil, fmt.Errorf("join column %s: %w", joinOn, err)
		}
		// Dims are already deduped on their key, so a repeat here means
		// the value names several Dim rows.
		if _, dup := m[k]; dup {
			return nil, &AmbiguousReferenceError{RefColumn: joinOn, Value: k}
		}
		m[k] = row[ki]
	}
	return m, nil
}
