package workspace

import (
	"errors"
	"path/filepath"
	"testing"

	"normalizer/internal/dataset"
	"normalizer/internal/decompose"
	"normalizer/internal/schema"
	"normalizer/internal/transform"
)

func salesData() *dataset.Dataset {
	return dataset.New(
		[]string{"sale_id", "customer", "city", "amount"},
		[][]any{
			{int64(1), "Ann", "Oslo", 10.5},
			{int64(2), "Bob", "Rome", 3.0},
			{int64(3), "Ann", "Oslo", 7.25},
		},
	)
}

// seeded returns a workspace with Dim_Customer and Fact_Sales declared.
func seeded(t *testing.T) *Workspace {
	t.Helper()
	w := New(filepath.Join(t.TempDir(), "schema.json"))
	steps := []func() (Change, error){
		func() (Change, error) { return w.AddTable("Dim_Customer") },
		func() (Change, error) { return w.AddField("Dim_Customer", schema.Key("customer")) },
		func() (Change, error) { return w.AddField("Dim_Customer", schema.Field("city")) },
		func() (Change, error) { return w.AddTable("Fact_Sales") },
		func() (Change, error) { return w.AddField("Fact_Sales", schema.Key("sale_id")) },
		func() (Change, error) {
			return w.AddField("Fact_Sales", schema.Ref("customer", "Dim_Customer", "customer"))
		},
		func() (Change, error) { return w.AddField("Fact_Sales", schema.Field("amount")) },
	}
	for i, step := range steps {
		if _, err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	return w
}

//
// Tables
//

func TestAddTable(t *testing.T) {
	t.Parallel()

	w := New("")
	ch, err := w.AddTable("Dim_Region")
	if err != nil {
		t.Fatalf("AddTable: %v", err)
	}
	if ch != (Change{Kind: TableAdded, Table: "Dim_Region"}) {
		t.Fatalf("change = %+v", ch)
	}

	tests := []struct {
		name string
		want error
	}{
		{"Dim_Region", ErrTableExists},
		{"Region", ErrInvalidName},
		{"  ", ErrInvalidName},
	}
	for _, tt := range tests {
		if _, err := w.AddTable(tt.name); !errors.Is(err, tt.want) {
			t.Fatalf("AddTable(%q) err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestRemoveTable_RefusedWhileReferenced(t *testing.T) {
	t.Parallel()

	w := seeded(t)
	_, err := w.RemoveTable("Dim_Customer")
	var inUse *InUseError
	if !errors.As(err, &inUse) {
		t.Fatalf("err = %v, want InUseError", err)
	}
	if len(inUse.References) != 1 || inUse.References[0].Table != "Fact_Sales" {
		t.Fatalf("references = %+v", inUse.References)
	}

	if _, err := w.RemoveTable("Fact_Sales"); err != nil {
		t.Fatalf("RemoveTable(Fact_Sales): %v", err)
	}
	ch, err := w.RemoveTable("Dim_Customer")
	if err != nil || ch.Kind != TableRemoved {
		t.Fatalf("RemoveTable(Dim_Customer) = %+v, %v", ch, err)
	}
	if _, err := w.RemoveTable("Dim_Customer"); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("err = %v, want ErrTableNotFound", err)
	}
}

//
// Fields
//

func TestAddField_Errors(t *testing.T) {
	t.Parallel()

	w := seeded(t)
	if _, err := w.AddTable("Fact_Returns"); err != nil {
		t.Fatalf("AddTable: %v", err)
	}

	var refErr *InvalidReferenceError
	tests := []struct {
		name  string
		table string
		col   schema.Column
		check func(error) bool
	}{
		{"missing table", "Dim_Nope", schema.Field("x"), func(err error) bool { return errors.Is(err, ErrTableNotFound) }},
		{"duplicate", "Dim_Customer", schema.Field("city"), func(err error) bool { return errors.Is(err, ErrFieldExists) }},
		{"empty name", "Dim_Customer", schema.Field(""), func(err error) bool { return errors.Is(err, ErrInvalidName) }},
		{"ref from dim", "Dim_Customer", schema.Ref("seg", "Dim_Customer", ""), func(err error) bool { return errors.As(err, &refErr) }},
		{"ref to fact", "Fact_Returns", schema.Ref("sale_id", "Fact_Sales", ""), func(err error) bool { return errors.As(err, &refErr) }},
		{"ref to undeclared dim", "Fact_Returns", schema.Ref("store", "Dim_Store", ""), func(err error) bool { return errors.As(err, &refErr) }},
	}
	for _, tt := range tests {
		if _, err := w.AddField(tt.table, tt.col); !tt.check(err) {
			t.Fatalf("%s: err = %v", tt.name, err)
		}
	}
}

func TestUpdateAndRemoveField(t *testing.T) {
	t.Parallel()

	w := seeded(t)
	ch, err := w.UpdateField("Fact_Sales", "amount", schema.Field("total"))
	if err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	if ch != (Change{Kind: FieldUpdated, Table: "Fact_Sales", Field: "total"}) {
		t.Fatalf("change = %+v", ch)
	}
	cols, _ := w.Schema().Get("Fact_Sales")
	if got := cols[2].Name; got != "total" {
		t.Fatalf("column 2 = %s, want total", got)
	}

	if _, err := w.UpdateField("Fact_Sales", "total", schema.Field("sale_id")); !errors.Is(err, ErrFieldExists) {
		t.Fatalf("rename collision err = %v", err)
	}
	if _, err := w.RemoveField("Fact_Sales", "total"); err != nil {
		t.Fatalf("RemoveField: %v", err)
	}
	if _, err := w.RemoveField("Fact_Sales", "total"); !errors.Is(err, ErrFieldNotFound) {
		t.Fatalf("err = %v, want ErrFieldNotFound", err)
	}
	cols, _ = w.Schema().Get("Fact_Sales")
	if len(cols) != 2 {
		t.Fatalf("columns = %+v", cols)
	}
}

func TestSetColumns(t *testing.T) {
	t.Parallel()

	w := seeded(t)
	if _, err := w.SetColumns("Dim_Customer", []schema.Column{schema.Key("a"), schema.Field("a")}); !errors.Is(err, ErrFieldExists) {
		t.Fatalf("err = %v, want ErrFieldExists", err)
	}
	ch, err := w.SetColumns("Dim_Customer", []schema.Column{schema.Key("customer")})
	if err != nil || ch.Kind != ColumnsSet {
		t.Fatalf("SetColumns = %+v, %v", ch, err)
	}
	if st := w.Stats(); st.Dims != 1 || st.Facts != 1 || st.Records != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

//
// Data
//

func TestSuggestAndDecompose(t *testing.T) {
	t.Parallel()

	w := New("")
	if _, err := w.Suggest(nil); !errors.Is(err, ErrNoDataset) {
		t.Fatalf("err = %v, want ErrNoDataset", err)
	}
	if _, err := w.SetDataset(salesData()); err != nil {
		t.Fatalf("SetDataset: %v", err)
	}
	ch, err := w.Suggest(nil)
	if err != nil || ch.Kind != SchemaReplaced {
		t.Fatalf("Suggest = %+v, %v", ch, err)
	}
	if w.Schema().Len() == 0 {
		t.Fatalf("suggested schema is empty")
	}

	w = seeded(t)
	if _, err := w.SetDataset(salesData()); err != nil {
		t.Fatalf("SetDataset: %v", err)
	}
	res, err := w.Decompose(decompose.SurrogateSequential)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	dim, ok := res.Get("Dim_Customer")
	if !ok || dim.Len() != 2 {
		t.Fatalf("Dim_Customer = %v", dim)
	}
}

func TestApplyTransforms(t *testing.T) {
	t.Parallel()

	w := New("")
	if _, err := w.SetDataset(salesData()); err != nil {
		t.Fatalf("SetDataset: %v", err)
	}
	p := &transform.Pipeline{Name: "p"}
	p.Add("big", transform.FilterRows{Column: "amount", Operator: ">=", Value: 5.0})
	p.Add("bad", transform.TrimStrings{Columns: []string{"nope"}})

	st, ch, err := w.ApplyTransforms(p)
	if err != nil || ch.Kind != TransformsApplied {
		t.Fatalf("ApplyTransforms = %+v, %v", ch, err)
	}
	if len(st.Errors) != 1 || w.Dataset().Len() != 2 {
		t.Fatalf("stats = %+v rows = %d", st, w.Dataset().Len())
	}
	if got := w.Preview(1).Len(); got != 1 {
		t.Fatalf("Preview(1) rows = %d", got)
	}
}

//
// Persistence
//

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ws", "schema.json")
	w, ch, err := Load(path)
	if err != nil || ch.Kind != Created || w.Schema().Len() != 0 {
		t.Fatalf("Load(missing) = %+v, %v", ch, err)
	}

	src := seeded(t)
	src.Path = path
	if ch, err := src.Save(); err != nil || ch.Kind != Saved {
		t.Fatalf("Save = %+v, %v", ch, err)
	}
	w, ch, err = Load(path)
	if err != nil || ch.Kind != Loaded {
		t.Fatalf("Load = %+v, %v", ch, err)
	}
	if !w.Schema().Equal(src.Schema()) {
		t.Fatalf("loaded schema differs")
	}

	if _, err := New("").Save(); !errors.Is(err, ErrNoPath) {
		t.Fatalf("err = %v, want ErrNoPath", err)
	}
}
