package transform

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"normalizer/internal/dataset"
)

func people() *dataset.Dataset {
	return dataset.New(
		[]string{"id", "name", "age", "city"},
		[][]any{
			{int64(1), " Ann ", int64(30), "oslo"},
			{int64(2), "Bob", nil, "rome"},
			{int64(3), "Cid", int64(50), nil},
			{int64(1), " Ann ", int64(30), "oslo"},
			{int64(4), "Dee", int64(40), "rome"},
		},
	)
}

func column(t *testing.T, d *dataset.Dataset, name string) []any {
	t.Helper()
	v, err := d.Column(name)
	if err != nil {
		t.Fatalf("Column(%s): %v", name, err)
	}
	return v
}

//
// Rules
//

func TestRemoveDuplicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule RemoveDuplicates
		want []any
	}{
		{"all columns first", RemoveDuplicates{}, []any{int64(1), int64(2), int64(3), int64(4)}},
		{"subset last", RemoveDuplicates{Columns: []string{"city"}, Keep: "last"}, []any{int64(3), int64(1), int64(4)}},
		{"none", RemoveDuplicates{Keep: "none"}, []any{int64(2), int64(3), int64(4)}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := tt.rule.Apply(people())
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if got := column(t, out, "id"); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFillMissing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule FillMissing
		col  string
		want []any
	}{
		{"constant json number", FillMissing{Columns: []string{"age"}, Value: 0.0}, "age",
			[]any{int64(30), int64(0), int64(50), int64(30), int64(40)}},
		{"mean", FillMissing{Columns: []string{"age"}, Method: "mean"}, "age",
			[]any{int64(30), 37.5, int64(50), int64(30), int64(40)}},
		{"median", FillMissing{Columns: []string{"age"}, Method: "median"}, "age",
			[]any{int64(30), 35.0, int64(50), int64(30), int64(40)}},
		{"mode", FillMissing{Columns: []string{"city"}, Method: "mode"}, "city",
			[]any{"oslo", "rome", "oslo", "oslo", "rome"}},
		{"forward", FillMissing{Columns: []string{"city"}, Method: "forward"}, "city",
			[]any{"oslo", "rome", "rome", "oslo", "rome"}},
		{"backward", FillMissing{Columns: []string{"age"}, Method: "backward"}, "age",
			[]any{int64(30), int64(50), int64(50), int64(30), int64(40)}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := tt.rule.Apply(people())
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if got := column(t, out, tt.col); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("%s = %v, want %v", tt.col, got, tt.want)
			}
		})
	}

	if _, err := (FillMissing{Columns: []string{"city"}, Method: "mean"}).Apply(people()); err == nil {
		t.Fatalf("mean over text should fail")
	}
}

func TestDropMissing(t *testing.T) {
	t.Parallel()

	d := dataset.New([]string{"a", "b", "c"}, [][]any{
		{int64(1), nil, nil},
		{nil, nil, nil},
		{int64(3), "x", nil},
		{int64(4), "y", true},
	})
	tests := []struct {
		rule DropMissing
		want int
	}{
		{DropMissing{}, 1},
		{DropMissing{How: "all"}, 3},
		{DropMissing{Columns: []string{"a", "b"}}, 2},
		{DropMissing{Threshold: 2}, 2},
	}
	for _, tt := range tests {
		out, err := tt.rule.Apply(d)
		if err != nil {
			t.Fatalf("%+v: %v", tt.rule, err)
		}
		if out.Len() != tt.want {
			t.Fatalf("%+v rows = %d, want %d", tt.rule, out.Len(), tt.want)
		}
	}
}

func TestConvertType(t *testing.T) {
	t.Parallel()

	d := dataset.New([]string{"v"}, [][]any{{"12"}, {"1.5"}, {"x"}, {nil}, {"2024-03-01"}})
	tests := []struct {
		target string
		want   []any
		kind   dataset.Kind
	}{
		{"integer", []any{int64(12), nil, nil, nil, nil}, dataset.KindInteger},
		{"float", []any{12.0, 1.5, nil, nil, nil}, dataset.KindFloat},
		{"datetime", []any{nil, nil, nil, nil, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}, dataset.KindTimestamp},
		{"string", []any{"12", "1.5", "x", nil, "2024-03-01"}, dataset.KindString},
	}
	for _, tt := range tests {
		out, err := (ConvertType{Columns: []string{"v"}, Target: tt.target}).Apply(d)
		if err != nil {
			t.Fatalf("%s: %v", tt.target, err)
		}
		if got := column(t, out, "v"); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("%s = %v, want %v", tt.target, got, tt.want)
		}
		if out.Kind("v") != tt.kind {
			t.Fatalf("%s kind = %v, want %v", tt.target, out.Kind("v"), tt.kind)
		}
	}

	b, _ := (ConvertType{Columns: []string{"v"}, Target: "boolean"}).Apply(dataset.New([]string{"v"}, [][]any{{"yes"}, {int64(0)}, {"maybe"}}))
	if got := column(t, b, "v"); !reflect.DeepEqual(got, []any{true, false, nil}) {
		t.Fatalf("boolean = %v", got)
	}
	if _, err := (ConvertType{Columns: []string{"v"}, Target: "blob"}).Apply(d); err == nil {
		t.Fatalf("unknown target should fail")
	}
}

func TestRenameColumns(t *testing.T) {
	t.Parallel()

	out, err := (RenameColumns{Mapping: map[string]string{"name": "full_name", "missing": "x"}}).Apply(people())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if want := []string{"id", "full_name", "age", "city"}; !reflect.DeepEqual(out.Columns, want) {
		t.Fatalf("Columns = %v, want %v", out.Columns, want)
	}
	if _, err := (RenameColumns{Mapping: map[string]string{"name": "id"}}).Apply(people()); err == nil {
		t.Fatalf("collision should fail")
	}
}

func TestFilterRows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule FilterRows
		want []any
	}{
		{"eq text", FilterRows{Column: "city", Value: "rome"}, []any{int64(2), int64(4)}},
		{"ne keeps nulls", FilterRows{Column: "city", Operator: "!=", Value: "rome"}, []any{int64(1), int64(3), int64(1)}},
		{"gt json number", FilterRows{Column: "age", Operator: ">", Value: 35.0}, []any{int64(3), int64(4)}},
		{"le numeric string", FilterRows{Column: "age", Operator: "<=", Value: "30"}, []any{int64(1), int64(1)}},
		{"contains", FilterRows{Column: "name", Operator: "contains", Value: "nn"}, []any{int64(1), int64(1)}},
		{"not_contains keeps nulls", FilterRows{Column: "city", Operator: "not_contains", Value: "o"}, []any{int64(3)}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := tt.rule.Apply(people())
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if got := column(t, out, "id"); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ids = %v, want %v", got, tt.want)
			}
		})
	}

	var cnf *dataset.ColumnNotFoundError
	if _, err := (FilterRows{Column: "nope", Value: 1}).Apply(people()); !errors.As(err, &cnf) {
		t.Fatalf("err = %v, want ColumnNotFoundError", err)
	}
	if _, err := (FilterRows{Column: "age", Operator: "~", Value: 1}).Apply(people()); err == nil {
		t.Fatalf("unknown operator should fail")
	}
}

func TestTextRules(t *testing.T) {
	t.Parallel()

	out, err := (TrimStrings{}).Apply(people())
	if err != nil {
		t.Fatalf("TrimStrings: %v", err)
	}
	if got := column(t, out, "name")[0]; got != "Ann" {
		t.Fatalf("trimmed = %q", got)
	}

	out, err = (NormalizeText{Columns: []string{"city"}, Case: "title"}).Apply(out)
	if err != nil {
		t.Fatalf("NormalizeText: %v", err)
	}
	if got := column(t, out, "city"); !reflect.DeepEqual(got, []any{"Oslo", "Rome", nil, "Oslo", "Rome"}) {
		t.Fatalf("city = %v", got)
	}

	out, err = (ReplaceValues{Column: "age", Mapping: map[string]any{"30": 31.0}}).Apply(out)
	if err != nil {
		t.Fatalf("ReplaceValues: %v", err)
	}
	if got := column(t, out, "age")[0]; got != int64(31) {
		t.Fatalf("age = %#v, want int64(31)", got)
	}
}

func TestExtractPattern(t *testing.T) {
	t.Parallel()

	d := dataset.New([]string{"ref"}, [][]any{{"INV-2024-001"}, {"n/a"}, {nil}})
	out, err := (ExtractPattern{Column: "ref", Pattern: `INV-(\d{4})`, NewColumn: "year"}).Apply(d)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := column(t, out, "year"); !reflect.DeepEqual(got, []any{"2024", nil, nil}) {
		t.Fatalf("year = %v", got)
	}
	if d.Has("year") {
		t.Fatalf("source dataset modified")
	}
	if _, err := (ExtractPattern{Column: "ref", Pattern: "(", NewColumn: "x"}).Apply(d); err == nil {
		t.Fatalf("bad pattern should fail")
	}
}

//
// RowHash
//

func TestRowHash_DeterministicWithTrim(t *testing.T) {
	t.Parallel()

	h := RowHash{Fields: []string{"id", "name"}, Target: "row_hash", IncludeFieldNames: true, TrimSpace: true}
	d := dataset.New([]string{"id", "name"}, [][]any{{int64(7), " ABC "}, {int64(7), "ABC"}, {int64(7), nil}, {int64(7), ""}})
	out, err := h.Apply(d)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	hashes := column(t, out, "row_hash")
	s0, ok := hashes[0].(string)
	if !ok || len(s0) != 64 {
		t.Fatalf("row_hash = %#v, want 64-char hex", hashes[0])
	}
	if hashes[0] != hashes[1] {
		t.Fatalf("trimmed values should hash equal")
	}
	if hashes[2] == hashes[3] {
		t.Fatalf("missing and empty should hash differently")
	}
}

func TestRowHash_Overwrite(t *testing.T) {
	t.Parallel()

	d := dataset.New([]string{"id", "row_hash"}, [][]any{{int64(1), "keep"}, {int64(2), nil}})
	out, err := (RowHash{Fields: []string{"id"}, Target: "row_hash"}).Apply(d)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got := column(t, out, "row_hash")
	if got[0] != "keep" || got[1] == nil {
		t.Fatalf("row_hash = %v", got)
	}

	out, _ = (RowHash{Fields: []string{"id"}, Target: "row_hash", Overwrite: true}).Apply(d)
	if column(t, out, "row_hash")[0] == "keep" {
		t.Fatalf("Overwrite should replace existing values")
	}
}

//
// Pipeline
//

// TestPipeline_ContinuesAfterFailure verifies a failing step is recorded
// and skipped.
func TestPipeline_ContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	p := &Pipeline{Name: "clean"}
	p.Add("trim", TrimStrings{})
	p.Add("bad", FilterRows{Column: "nope", Value: 1})
	p.Add("dedupe", RemoveDuplicates{})
	p.Steps = append(p.Steps, Step{Name: "off", Rule: DropMissing{}, Disabled: true})

	src := people()
	before := src.Clone()
	out, st := p.Execute(src)
	if out.Len() != 4 {
		t.Fatalf("rows = %d, want 4", out.Len())
	}
	if len(st.Applied) != 2 || len(st.Errors) != 1 || st.Errors[0].Name != "bad" {
		t.Fatalf("stats = %+v", st)
	}
	if st.Applied[1].RowsChanged() != -1 || st.InitialRows != 5 || st.FinalRows != 4 {
		t.Fatalf("stats = %+v", st)
	}
	if !reflect.DeepEqual(src, before) {
		t.Fatalf("source dataset modified")
	}

	if out, st := p.Execute(nil); out != nil || len(st.Errors) != 1 {
		t.Fatalf("nil dataset: out=%v stats=%+v", out, st)
	}
	if !p.Remove("bad") || p.Remove("bad") {
		t.Fatalf("Remove should report the first removal only")
	}
}

// TestPipeline_JSONRoundTrip checks the file format and the enabled flag.
func TestPipeline_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	in := `{"name":"p","rules":[
		{"name":"fill","type":"fill_missing","config":{"columns":["age"],"method":"constant","value":0}},
		{"type":"filter_rows","config":{"column":"age","operator":">","value":10},"enabled":false},
		{"name":"h","type":"hash","config":{"fields":["id"],"target":"row_hash"}}
	]}`
	var p Pipeline
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(p.Steps) != 3 || !p.Steps[1].Disabled || p.Steps[1].Name != "filter_rows_2" {
		t.Fatalf("steps = %+v", p.Steps)
	}
	if _, ok := p.Steps[0].Rule.(FillMissing); !ok {
		t.Fatalf("step 0 = %T", p.Steps[0].Rule)
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Pipeline
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal back: %v", err)
	}
	if !reflect.DeepEqual(back.Steps, p.Steps) {
		t.Fatalf("round trip differs:\n%+v\n%+v", back.Steps, p.Steps)
	}

	for _, bad := range []string{
		`{"name":"p","rules":[{"type":"explode"}]}`,
		`{"name":"p","rules":[{"type":"trim_strings","config":{"colums":["a"]}}]}`,
	} {
		if err := json.Unmarshal([]byte(bad), &p); err == nil {
			t.Fatalf("expected error for %s", bad)
		}
	}
}

func TestPipelines_SaveLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "pipelines.json")
	if ps, err := LoadPipelines(path); err != nil || ps != nil {
		t.Fatalf("missing file: %v %v", ps, err)
	}
	p := &Pipeline{Name: "a"}
	p.Add("upper", NormalizeText{Columns: []string{"city"}, Case: "upper"})
	if err := SavePipelines(path, []*Pipeline{p}); err != nil {
		t.Fatalf("SavePipelines: %v", err)
	}
	ps, err := LoadPipelines(path)
	if err != nil {
		t.Fatalf("LoadPipelines: %v", err)
	}
	if len(ps) != 1 || ps[0].Name != "a" || !reflect.DeepEqual(ps[0].Steps, p.Steps) {
		t.Fatalf("loaded = %+v", ps)
	}
	if types := RuleTypes(); len(types) != 11 || !strings.Contains(strings.Join(types, ","), "hash") {
		t.Fatalf("RuleTypes = %v", types)
	}
}
