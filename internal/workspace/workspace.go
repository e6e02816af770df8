// Package workspace is an editing session over one schema and the dataset
// it describes.
//
// Every mutation validates its arguments, applies the change, and returns a
// Change describing what happened so a front end can refresh just the
// affected table. A Workspace is not safe for concurrent use.
package workspace

import (
	"errors"
	"fmt"
	"strings"

	"normalizer/internal/analyzer"
	"normalizer/internal/dataset"
	"normalizer/internal/decompose"
	"normalizer/internal/schema"
	"normalizer/internal/transform"
)

// Logger is the minimal logging interface used by Workspace.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// ChangeKind names a mutation.
type ChangeKind string

const (
	TableAdded        ChangeKind = "table_added"
	TableRemoved      ChangeKind = "table_removed"
	FieldAdded        ChangeKind = "field_added"
	FieldRemoved      ChangeKind = "field_removed"
	FieldUpdated      ChangeKind = "field_updated"
	ColumnsSet        ChangeKind = "columns_set"
	DatasetSet        ChangeKind = "dataset_set"
	SchemaReplaced    ChangeKind = "schema_replaced"
	TransformsApplied ChangeKind = "transforms_applied"
	Saved             ChangeKind = "saved"
	Loaded            ChangeKind = "loaded"
	Created           ChangeKind = "created"
)

// Change describes one applied mutation. Table and Field are empty when
// the change is not scoped to one.
type Change struct {
	Kind  ChangeKind
	Table string
	Field string
}

func (c Change) String() string {
	switch {
	case c.Field != "":
		return fmt.Sprintf("%s %s.%s", c.Kind, c.Table, c.Field)
	case c.Table != "":
		return fmt.Sprintf("%s %s", c.Kind, c.Table)
	default:
		return string(c.Kind)
	}
}

var (
	ErrTableExists   = errors.New("table already exists")
	ErrTableNotFound = errors.New("table not found")
	ErrFieldExists   = errors.New("field already exists")
	ErrFieldNotFound = errors.New("field not found")
	ErrInvalidName   = errors.New("invalid name")
	ErrNoDataset     = errors.New("no dataset loaded")
	ErrNoPath        = errors.New("workspace has no path")
)

// InUseError is returned when removing a table other tables reference.
type InUseError struct {
	Table      string
	References []schema.Edge
}

func (e *InUseError) Error() string {
	refs := make([]string, len(e.References))
	for i, r := range e.References {
		refs[i] = r.Table + "." + r.Column
	}
	return fmt.Sprintf("table %s is referenced by %s", e.Table, strings.Join(refs, ", "))
}

// InvalidReferenceError is returned for a reference that cannot be
// declared: from a non-Fact table, or to a table that is not a declared
// Dim.
type InvalidReferenceError struct {
	Table    string
	Field    string
	RefTable string
	Reason   string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("%s.%s -> %s: %s", e.Table, e.Field, e.RefTable, e.Reason)
}

// Workspace holds the schema being edited, the source dataset and the
// file the schema is saved to.
type Workspace struct {
	Path   string
	Logger Logger

	schema *schema.Schema
	data   *dataset.Dataset
}

// New returns an empty workspace saving to path ("" for none).
func New(path string) *Workspace {
	return &Workspace{Path: path, schema: schema.New()}
}

// Load opens the schema at path. A missing file yields an empty workspace
// and a Created change.
func Load(path string) (*Workspace, Change, error) {
	s, err := schema.Load(path)
	switch {
	case errors.Is(err, schema.ErrNotFound):
		return New(path), Change{Kind: Created}, nil
	case err != nil:
		return nil, Change{}, err
	}
	return &Workspace{Path: path, schema: s}, Change{Kind: Loaded}, nil
}

// Schema returns a copy of the current schema.
func (w *Workspace) Schema() *schema.Schema { return w.schema.Clone() }

// Dataset returns the current dataset, nil when none is loaded. Callers
// must not modify it.
func (w *Workspace) Dataset() *dataset.Dataset { return w.data }

// Save writes the schema to Path.
func (w *Workspace) Save() (Change, error) {
	if w.Path == "" {
		return Change{}, ErrNoPath
	}
	if err := schema.Save(w.Path, w.schema); err != nil {
		return Change{}, err
	}
	w.logf("stage=workspace ok saved=%s tables=%d", w.Path, w.schema.Len())
	return Change{Kind: Saved}, nil
}

// SetDataset replaces the source dataset. The schema is kept.
func (w *Workspace) SetDataset(d *dataset.Dataset) (Change, error) {
	if d == nil {
		return Change{}, &dataset.InvalidInputError{Reason: "dataset is nil"}
	}
	w.data = d
	return Change{Kind: DatasetSet}, nil
}

// AddTable declares an empty table. The name must carry a Dim_ or Fact_
// prefix.
func (w *Workspace) AddTable(name string) (Change, error) {
	if strings.TrimSpace(name) == "" || schema.RoleOf(name) == schema.RoleUnknown {
		return Change{}, fmt.Errorf("add table %q: %w: want a %s or %s prefix", name, ErrInvalidName, schema.DimPrefix, schema.FactPrefix)
	}
	if w.schema.Has(name) {
		return Change{}, fmt.Errorf("add table %s: %w", name, ErrTableExists)
	}
	w.schema.Add(name)
	return Change{Kind: TableAdded, Table: name}, nil
}

// RemoveTable drops a table. It is refused while another table references
// it.
func (w *Workspace) RemoveTable(name string) (Change, error) {
	if !w.schema.Has(name) {
		return Change{}, fmt.Errorf("remove table %s: %w", name, ErrTableNotFound)
	}
	var refs []schema.Edge
	for _, e := range w.schema.ReferencedBy(name) {
		if e.Table != name {
			refs = append(refs, e)
		}
	}
	if len(refs) > 0 {
		return Change{}, &InUseError{Table: name, References: refs}
	}
	w.schema.Remove(name)
	return Change{Kind: TableRemoved, Table: name}, nil
}

// AddField appends a column to a table.
func (w *Workspace) AddField(table string, c schema.Column) (Change, error) {
	cols, ok := w.schema.Get(table)
	if !ok {
		return Change{}, fmt.Errorf("add field %s.%s: %w", table, c.Name, ErrTableNotFound)
	}
	if strings.TrimSpace(c.Name) == "" {
		return Change{}, fmt.Errorf("add field to %s: %w: empty field name", table, ErrInvalidName)
	}
	if indexOf(cols, c.Name) >= 0 {
		return Change{}, fmt.Errorf("add field %s.%s: %w", table, c.Name, ErrFieldExists)
	}
	if err := w.checkReference(table, c); err != nil {
		return Change{}, err
	}
	w.schema.Add(table, append(cols, c)...)
	return Change{Kind: FieldAdded, Table: table, Field: c.Name}, nil
}

// RemoveField drops a column. References to it from other tables are left
// in place; Validate reports them as warnings or errors as usual.
func (w *Workspace) RemoveField(table, field string) (Change, error) {
	cols, ok := w.schema.Get(table)
	if !ok {
		return Change{}, fmt.Errorf("remove field %s.%s: %w", table, field, ErrTableNotFound)
	}
	i := indexOf(cols, field)
	if i < 0 {
		return Change{}, fmt.Errorf("remove field %s.%s: %w", table, field, ErrFieldNotFound)
	}
	w.schema.Add(table, append(cols[:i], cols[i+1:]...)...)
	return Change{Kind: FieldRemoved, Table: table, Field: field}, nil
}

// UpdateField replaces the column called field with c, keeping its
// position. c may carry a new name.
func (w *Workspace) UpdateField(table, field string, c schema.Column) (Change, error) {
	cols, ok := w.schema.Get(table)
	if !ok {
		return Change{}, fmt.Errorf("update field %s.%s: %w", table, field, ErrTableNotFound)
	}
	i := indexOf(cols, field)
	if i < 0 {
		return Change{}, fmt.Errorf("update field %s.%s: %w", table, field, ErrFieldNotFound)
	}
	if strings.TrimSpace(c.Name) == "" {
		return Change{}, fmt.Errorf("update field %s.%s: %w: empty field name", table, field, ErrInvalidName)
	}
	if c.Name != field && indexOf(cols, c.Name) >= 0 {
		return Change{}, fmt.Errorf("update field %s.%s: rename to %s: %w", table, field, c.Name, ErrFieldExists)
	}
	if err := w.checkReference(table, c); err != nil {
		return Change{}, err
	}
	cols[i] = c
	w.schema.Add(table, cols...)
	return Change{Kind: FieldUpdated, Table: table, Field: c.Name}, nil
}

// SetColumns replaces every column of a table.
func (w *Workspace) SetColumns(table string, cols []schema.Column) (Change, error) {
	if !w.schema.Has(table) {
		return Change{}, fmt.Errorf("set columns %s: %w", table, ErrTableNotFound)
	}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if strings.TrimSpace(c.Name) == "" {
			return Change{}, fmt.Errorf("set columns %s: %w: empty field name", table, ErrInvalidName)
		}
		if seen[c.Name] {
			return Change{}, fmt.Errorf("set columns %s.%s: %w", table, c.Name, ErrFieldExists)
		}
		seen[c.Name] = true
		if err := w.checkReference(table, c); err != nil {
			return Change{}, err
		}
	}
	w.schema.Add(table, cols...)
	return Change{Kind: ColumnsSet, Table: table}, nil
}

// Suggest replaces the schema with the analyzer's suggestion for the
// current dataset. A nil analyzer uses the default configuration.
func (w *Workspace) Suggest(an *analyzer.Analyzer) (Change, error) {
	if w.data == nil {
		return Change{}, fmt.Errorf("suggest: %w", ErrNoDataset)
	}
	if err := dataset.CheckInput(w.data); err != nil {
		return Change{}, fmt.Errorf("suggest: %w", err)
	}
	if an == nil {
		an = analyzer.New(analyzer.DefaultConfig(), w.Logger)
	}
	w.schema = an.Suggest(w.data)
	w.logf("stage=workspace ok suggest dims=%d facts=%d", len(w.schema.DimTables()), len(w.schema.FactTables()))
	return Change{Kind: SchemaReplaced}, nil
}

// ApplyTransforms runs p over the dataset and keeps the result. Step
// failures do not fail the call; they are reported in the returned Stats.
func (w *Workspace) ApplyTransforms(p *transform.Pipeline) (transform.Stats, Change, error) {
	if w.data == nil {
		return transform.Stats{}, Change{}, fmt.Errorf("apply transforms: %w", ErrNoDataset)
	}
	if p == nil {
		return transform.Stats{}, Change{}, errors.New("apply transforms: pipeline is nil")
	}
	if p.Logger == nil {
		p.Logger = w.Logger
	}
	out, st := p.Execute(w.data)
	if out != nil {
		w.data = out
	}
	return st, Change{Kind: TransformsApplied}, nil
}

// Decompose runs the explicit strategy over the current dataset and
// schema.
func (w *Workspace) Decompose(surrogate decompose.SurrogateStrategy) (*decompose.Result, error) {
	if w.data == nil {
		return nil, fmt.Errorf("decompose: %w", ErrNoDataset)
	}
	return (&decompose.Explicit{Schema: w.schema, Surrogate: surrogate, Logger: w.Logger}).Decompose(w.data)
}

// Validate checks the current schema.
func (w *Workspace) Validate() []schema.Issue { return schema.Validate(w.schema) }

// Stats summarizes the workspace for a status line.
type Stats struct {
	Records int
	Columns int
	Dims    int
	Facts   int
}

// Stats counts the dataset shape and the schema's tables by role.
func (w *Workspace) Stats() Stats {
	st := Stats{Dims: len(w.schema.DimTables()), Facts: len(w.schema.FactTables())}
	if w.data != nil {
		st.Records, st.Columns = w.data.Len(), w.data.Width()
	}
	return st
}

// Preview returns up to n leading rows of the dataset.
func (w *Workspace) Preview(n int) *dataset.Dataset {
	if w.data == nil {
		return nil
	}
	if n < 0 || n > w.data.Len() {
		n = w.data.Len()
	}
	out := w.data.Clone()
	out.Rows = out.Rows[:n]
	return out
}

func (w *Workspace) checkReference(table string, c schema.Column) error {
	if !c.IsReference() {
		if c.RefColumn != nil && *c.RefColumn != "" {
			return &InvalidReferenceError{Table: table, Field: c.Name, Reason: "ref_column set without ref_table"}
		}
		return nil
	}
	rt, _ := c.Target()
	if schema.RoleOf(table) != schema.RoleFact {
		return &InvalidReferenceError{Table: table, Field: c.Name, RefTable: rt, Reason: "only Fact tables may declare references"}
	}
	if schema.RoleOf(rt) != schema.RoleDim || !w.schema.Has(rt) {
		return &InvalidReferenceError{Table: table, Field: c.Name, RefTable: rt, Reason: "target is not a declared Dim table"}
	}
	return nil
}

func (w *Workspace) logf(format string, v ...any) {
	if w.Logger == nil {
		return
	}
	w.Logger.Printf(format, v...)
}

func indexOf(cols []schema.Column, name string) int {
	for i, c := range cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}
