package schema

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func salesSchema() *Schema {
	s := New()
	s.Add("Dim_Customer", Key("customer_name"), Field("city"))
	s.Add("Dim_Product", Key("product_id"), Field("product_name"))
	s.Add("Fact_Sales",
		Ref("customer_name", "Dim_Customer", "customer_name"),
		Ref("product_id", "Dim_Product", ""),
		Field("amount"),
	)
	return s
}

//
// Schema
//

// TestSchema_OrderAndAccessors verifies insertion order, role filtering and
// reference listings.
func TestSchema_OrderAndAccessors(t *testing.T) {
	t.Parallel()

	s := salesSchema()
	if want := []string{"Dim_Customer", "Dim_Product", "Fact_Sales"}; !reflect.DeepEqual(s.Names(), want) {
		t.Fatalf("Names = %v, want %v", s.Names(), want)
	}
	if got := len(s.DimTables()); got != 2 {
		t.Fatalf("DimTables = %d, want 2", got)
	}
	if got := s.FactTables()[0].Name; got != "Fact_Sales" {
		t.Fatalf("FactTables[0] = %s", got)
	}
	if got := s.PrimaryKeys("Dim_Product"); !reflect.DeepEqual(got, []string{"product_id"}) {
		t.Fatalf("PrimaryKeys = %v", got)
	}

	refs := s.References()
	if len(refs) != 2 || refs[1] != (Edge{Table: "Fact_Sales", Column: "product_id", RefTable: "Dim_Product"}) {
		t.Fatalf("References = %+v", refs)
	}
	if got := s.ReferencedBy("Dim_Customer"); len(got) != 1 || got[0].Column != "customer_name" {
		t.Fatalf("ReferencedBy = %+v", got)
	}

	// Re-adding keeps position.
	s.Add("Dim_Customer", Key("customer_name"))
	if s.Names()[0] != "Dim_Customer" {
		t.Fatalf("re-add moved table: %v", s.Names())
	}
	if !s.Remove("Dim_Product") || s.Remove("Dim_Product") {
		t.Fatalf("Remove should succeed once")
	}
	if s.Len() != 2 {
		t.Fatalf("Len after remove = %d", s.Len())
	}
}

// TestSchema_CloneIsDeep verifies Clone does not share reference pointers.
func TestSchema_CloneIsDeep(t *testing.T) {
	t.Parallel()

	s := salesSchema()
	c := s.Clone()
	if !s.Equal(c) {
		t.Fatalf("clone not equal")
	}
	cols, _ := c.Get("Fact_Sales")
	*cols[0].RefTable = "Dim_Other"
	if !s.Equal(c) {
		t.Fatalf("Get must return copies")
	}
	c.Add("Fact_Sales", Field("x"))
	if s.Equal(c) {
		t.Fatalf("mutating the clone changed equality unexpectedly")
	}
}

// TestRoleOf covers case-insensitive prefix matching.
func TestRoleOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Role
	}{
		{"Dim_Customer", RoleDim},
		{"dim_customer", RoleDim},
		{"FACT_sales", RoleFact},
		{"Customer", RoleUnknown},
		{"Dimension", RoleUnknown},
	}
	for _, tt := range tests {
		if got := RoleOf(tt.in); got != tt.want {
			t.Fatalf("RoleOf(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := BaseName("Dim_Customer"); got != "Customer" {
		t.Fatalf("BaseName = %q", got)
	}
}

//
// Validate
//

// TestValidate covers each error and warning class.
func TestValidate(t *testing.T) {
	t.Parallel()

	col := "id"
	tests := []struct {
		name     string
		build    func() *Schema
		wantErr  string
		wantWarn string
	}{
		{
			name:  "valid",
			build: salesSchema,
			// Fact_Sales.product_id has no ref_column.
			wantWarn: "no ref_column",
		},
		{
			name: "unknown prefix",
			build: func() *Schema {
				s := New()
				s.Add("Customers", Key("id"))
				return s
			},
			wantErr: "must start with",
		},
		{
			name: "duplicate column",
			build: func() *Schema {
				s := New()
				s.Add("Dim_A", Key("id"), Field("id"))
				return s
			},
			wantErr: "duplicate column",
		},
		{
			name: "empty column",
			build: func() *Schema {
				s := New()
				s.Add("Dim_A", Key("id"), Field(" "))
				return s
			},
			wantErr: "column name is empty",
		},
		{
			name: "ref_column without ref_table",
			build: func() *Schema {
				s := New()
				s.Add("Fact_A", Column{Name: "x", RefColumn: &col})
				return s
			},
			wantErr: "without ref_table",
		},
		{
			name: "reference to fact",
			build: func() *Schema {
				s := New()
				s.Add("Fact_B", Field("id"))
				s.Add("Fact_A", Ref("b", "Fact_B", "id"))
				return s
			},
			wantErr: "not a declared Dim",
		},
		{
			name: "reference to missing dim",
			build: func() *Schema {
				s := New()
				s.Add("Fact_A", Ref("b", "Dim_B", "id"))
				return s
			},
			wantErr: "not a declared Dim",
		},
		{
			name: "dim without key",
			build: func() *Schema {
				s := New()
				s.Add("Dim_A", Field("name"))
				return s
			},
			wantWarn: "no primary key",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			issues := Validate(tt.build())
			var gotErr, gotWarn []string
			for _, is := range issues {
				if is.Severity == SeverityError {
					gotErr = append(gotErr, is.Message)
				} else {
					gotWarn = append(gotWarn, is.Message)
				}
			}
			if tt.wantErr == "" && len(gotErr) > 0 {
				t.Fatalf("unexpected errors: %v", gotErr)
			}
			if tt.wantErr != "" && !containsAny(gotErr, tt.wantErr) {
				t.Fatalf("errors %v missing %q", gotErr, tt.wantErr)
			}
			if tt.wantWarn != "" && !containsAny(gotWarn, tt.wantWarn) {
				t.Fatalf("warnings %v missing %q", gotWarn, tt.wantWarn)
			}
		})
	}
}

func containsAny(msgs []string, sub string) bool {
	for _, m := range msgs {
		if strings.Contains(m, sub) {
			return true
		}
	}
	return false
}

// TestCheck verifies the error type and that warnings alone pass.
func TestCheck(t *testing.T) {
	t.Parallel()

	if err := Check(salesSchema()); err != nil {
		t.Fatalf("Check(valid) = %v", err)
	}
	var ise *InvalidSchemaError
	if err := Check(nil); !errors.As(err, &ise) {
		t.Fatalf("Check(nil) = %v, want InvalidSchemaError", err)
	}
	s := New()
	s.Add("bad", Field("x"))
	err := Check(s)
	if !errors.As(err, &ise) || len(ise.Issues) != 1 {
		t.Fatalf("Check(bad) = %v", err)
	}
}

//
// Serialization
//

// TestSaveLoad_RoundTrip verifies order, zero-column tables and null refs
// survive a save and load.
func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	s := salesSchema()
	s.Add("Dim_Empty")
	// Insert a table whose name sorts before the others to catch any
	// alphabetical reordering.
	s.Add("Dim_AAA", Key("k"))

	path := filepath.Join(t.TempDir(), "nested", "schema.json")
	if err := Save(path, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Equal(s) {
		t.Fatalf("round trip mismatch:\n got=%v\nwant=%v", got.Names(), s.Names())
	}
	if cols, _ := got.Get("Dim_Empty"); len(cols) != 0 {
		t.Fatalf("zero-column table came back with %d columns", len(cols))
	}
	if cols, _ := got.Get("Dim_Customer"); cols[1].RefTable != nil || cols[1].RefColumn != nil {
		t.Fatalf("null refs not preserved: %+v", cols[1])
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

// TestMarshal_Format pins the document shape.
func TestMarshal_Format(t *testing.T) {
	t.Parallel()

	s := New()
	s.Add("Dim_A", Key("id"))
	b, err := Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{
  "Dim_A": [
    {
      "name": "id",
      "is_primary": true,
      "ref_table": null,
      "ref_column": null
    }
  ]
}
`
	if string(b) != want {
		t.Fatalf("Marshal output:\n%s\nwant:\n%s", b, want)
	}

	empty, _ := Marshal(New())
	if string(empty) != "{}\n" {
		t.Fatalf("Marshal(empty) = %q", empty)
	}
}

// TestLoad_Errors distinguishes missing files from malformed content.
func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.json"))
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Load(missing) = %v, want ErrNotFound", err)
	}

	bad := map[string]string{
		"syntax":     `{"Dim_A": [`,
		"array root": `[]`,
		"table":      `{"Dim_A": {"name": "x"}}`,
		"column":     `{"Dim_A": ["x"]}`,
		"duplicate":  `{"Dim_A": [], "Dim_A": []}`,
		"trailing":   `{} {}`,
	}
	for name, body := range bad {
		path := filepath.Join(dir, name+".json")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, err := Load(path)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("%s: Load = %v, want ParseError", name, err)
		}
		if pe.Path != path {
			t.Fatalf("%s: ParseError.Path = %q, want %q", name, pe.Path, path)
		}
	}
}
