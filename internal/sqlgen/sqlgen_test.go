package sqlgen

import (
	"errors"
	"strings"
	"testing"

	"normalizer/internal/dataset"
	"normalizer/internal/schema"
)

func salesSchema() *schema.Schema {
	s := schema.New()
	s.Add("Dim_Customer", schema.Key("customer_id"), schema.Field("Customer Name"))
	s.Add("Fact_Sales",
		schema.Ref("customer_id", "Dim_Customer", "customer_id"),
		schema.Field("amount"),
		schema.Field("sale_date"),
	)
	return s
}

// TestGenerate_MySQLScript pins the full script layout.
func TestGenerate_MySQLScript(t *testing.T) {
	t.Parallel()

	got, err := Generate(salesSchema(), Options{Dialect: MySQL, Preamble: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := "-- Auto-generated SQL script for MYSQL\n" +
		"-- Database: generated_database\n\n" +
		"CREATE DATABASE IF NOT EXISTS `generated_database`;\n" +
		"USE `generated_database`;\n\n" +
		"-- Dimension table: dim_customer\n" +
		"CREATE TABLE `dim_customer` (\n" +
		"    `customer_id` INT NOT NULL,\n" +
		"    `customer_name` VARCHAR(100),\n" +
		"    PRIMARY KEY (`customer_id`)\n" +
		");\n\n" +
		"-- Fact table: fact_sales\n" +
		"CREATE TABLE `fact_sales` (\n" +
		"    `customer_id` INT,\n" +
		"    `amount` DECIMAL(10, 2),\n" +
		"    `sale_date` DATE,\n" +
		"    FOREIGN KEY (`customer_id`) REFERENCES `dim_customer` (`customer_id`)\n" +
		");\n\n"
	if got != want {
		t.Fatalf("script mismatch\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

// TestGenerate_Deterministic verifies repeated generation is identical.
func TestGenerate_Deterministic(t *testing.T) {
	t.Parallel()

	ds := dataset.New([]string{"customer_id", "Customer Name", "amount"}, [][]any{
		{int64(1), "Ann", 9.5},
		{int64(2), "Bob", 3.0},
	})
	for _, d := range Dialects {
		opt := Options{Dialect: d, Dataset: ds, Preamble: true}
		a, err := Generate(salesSchema(), opt)
		if err != nil {
			t.Fatalf("%s: %v", d, err)
		}
		b, _ := Generate(salesSchema(), opt)
		if a != b {
			t.Fatalf("%s: output differs between runs", d)
		}
	}
}

// TestGenerate_Preambles checks the per-dialect database statements.
func TestGenerate_Preambles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dialect Dialect
		want    []string
		absent  []string
	}{
		{PostgreSQL, []string{`CREATE DATABASE "shop";`, "\\c shop;"}, nil},
		{SQLServer, []string{"CREATE DATABASE [shop];\nGO\nUSE [shop];\nGO"}, nil},
		{SQLite, nil, []string{"CREATE DATABASE", "USE "}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.dialect), func(t *testing.T) {
			t.Parallel()
			got, err := Generate(salesSchema(), Options{Dialect: tt.dialect, Preamble: true, DatabaseName: "Shop"})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Fatalf("missing %q in\n%s", w, got)
				}
			}
			for _, a := range tt.absent {
				if strings.Contains(got, a) {
					t.Fatalf("unexpected %q in\n%s", a, got)
				}
			}
		})
	}

	got, _ := Generate(salesSchema(), Options{Dialect: MySQL})
	if strings.Contains(got, "CREATE DATABASE") {
		t.Fatalf("preamble emitted without Preamble")
	}
}

// TestGenerate_KeysAndReferences covers defaulted keys and references
// without ref_column.
func TestGenerate_KeysAndReferences(t *testing.T) {
	t.Parallel()

	s := schema.New()
	s.Add("Dim_Region", schema.Field("region"), schema.Field("zone"))
	s.Add("Dim_Product", schema.Field("label"), schema.Key("sku"))
	s.Add("Fact_Stock", schema.Ref("region", "Dim_Region", ""), schema.Ref("sku", "Dim_Product", ""))

	got, err := Generate(s, Options{Dialect: PostgreSQL})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, w := range []string{
		`"region" VARCHAR(100) NOT NULL`,
		`PRIMARY KEY ("region")`,
		`PRIMARY KEY ("sku")`,
		`FOREIGN KEY ("region") REFERENCES "dim_region" ("region")`,
		`FOREIGN KEY ("sku") REFERENCES "dim_product" ("sku")`,
	} {
		if !strings.Contains(got, w) {
			t.Fatalf("missing %q in\n%s", w, got)
		}
	}
	if strings.Index(got, "dim_product") > strings.Index(got, "fact_stock") {
		t.Fatalf("Dim tables must precede Facts")
	}
}

// TestGenerate_Errors covers validation and identifier failures.
func TestGenerate_Errors(t *testing.T) {
	t.Parallel()

	var se *schema.InvalidSchemaError
	bad := schema.New()
	bad.Add("Customers", schema.Key("id"))
	if _, err := Generate(bad, Options{}); !errors.As(err, &se) {
		t.Fatalf("err = %v, want InvalidSchemaError", err)
	}

	clash := schema.New()
	clash.Add("Dim_X", schema.Key("A b"), schema.Field("a_b"))
	if _, err := Generate(clash, Options{}); err == nil || !strings.Contains(err.Error(), "both map to") {
		t.Fatalf("err = %v, want clash error", err)
	}

	empty := schema.New()
	empty.Add("Dim_X", schema.Key("%%"))
	if _, err := Generate(empty, Options{}); err == nil {
		t.Fatalf("expected error for empty identifier")
	}
}

// TestPlan_ResolvesNamesTypesAndKeys checks the definitions shared with
// the database loader.
func TestPlan_ResolvesNamesTypesAndKeys(t *testing.T) {
	t.Parallel()

	defs, err := Plan(salesSchema(), Options{Dialect: PostgreSQL})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(defs) != 2 || defs[0].Name != "dim_customer" || defs[1].Source != "Fact_Sales" {
		t.Fatalf("defs = %+v", defs)
	}
	dim := defs[0]
	if dim.Role != schema.RoleDim || len(dim.PrimaryKey) != 1 || dim.PrimaryKey[0] != "customer_id" {
		t.Fatalf("dim = %+v", dim)
	}
	if c := dim.Columns[1]; c.Name != "customer_name" || c.Source != "Customer Name" || c.NotNull {
		t.Fatalf("dim column 1 = %+v", c)
	}
	fact := defs[1]
	want := ForeignKeyDef{Column: "customer_id", RefTable: "dim_customer", RefColumn: "customer_id"}
	if len(fact.ForeignKeys) != 1 || fact.ForeignKeys[0] != want {
		t.Fatalf("fact foreign keys = %+v", fact.ForeignKeys)
	}
	if got := fact.Columns[2].Type; got != "DATE" {
		t.Fatalf("sale_date type = %s, want DATE", got)
	}
}

//
// Types
//

// TestColumnType_Priority verifies dataset kinds beat samples, which beat
// names.
func TestColumnType_Priority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dialect Dialect
		column  string
		data    []any
		sample  any
		max     int
		want    string
	}{
		{"data beats name", MySQL, "customer_id", []any{"abc", "abcd", nil}, nil, 0, "VARCHAR(6)"},
		{"data wide int", MySQL, "n", []any{int64(5_000_000_000)}, nil, 0, "BIGINT"},
		{"data width capped", MySQL, "note", []any{strings.Repeat("x", 300)}, nil, 0, "VARCHAR(255)"},
		{"data float", PostgreSQL, "n", []any{int64(1), 2.5}, nil, 0, "NUMERIC(10, 2)"},
		{"all null falls to sample", MySQL, "code", []any{nil}, "xyz", 0, "VARCHAR(6)"},
		{"sample bool", SQLServer, "flag", nil, true, 0, "BIT"},
		{"name id", MySQL, "order_id", nil, nil, 0, "INT"},
		{"name key suffix", MySQL, "productkey", nil, nil, 0, "INT"},
		{"name _key suffix", PostgreSQL, "order_key", nil, nil, 0, "INTEGER"},
		{"name is_", PostgreSQL, "is_active", nil, nil, 0, "BOOLEAN"},
		{"name time", MySQL, "created_time", nil, nil, 0, "DATETIME"},
		{"name date", MySQL, "order_date", nil, nil, 0, "DATE"},
		{"name count", MySQL, "item_count", nil, nil, 0, "INT"},
		{"name price", SQLite, "unit_price", nil, nil, 0, "REAL"},
		{"name email", PostgreSQL, "email", nil, nil, 80, "VARCHAR(80)"},
		{"default", MySQL, "misc", nil, nil, 0, "VARCHAR(100)"},
		{"default sqlite", SQLite, "misc", nil, nil, 0, "TEXT"},
		{"default capped", MySQL, "misc", nil, nil, 50, "VARCHAR(50)"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ColumnType(tt.dialect, tt.column, tt.data, tt.sample, tt.max); got != tt.want {
				t.Fatalf("ColumnType = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestGenerate_UsesTableData verifies per-table data wins over the source
// dataset.
func TestGenerate_UsesTableData(t *testing.T) {
	t.Parallel()

	src := dataset.New([]string{"customer_id"}, [][]any{{"c-1"}})
	dim := dataset.New([]string{"customer_id", "Customer Name"}, [][]any{{int64(1), "Ann"}})
	got, err := Generate(salesSchema(), Options{
		Dialect: SQLite,
		Dataset: src,
		Tables:  map[string]*dataset.Dataset{"Dim_Customer": dim},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(got, "\"customer_id\" INTEGER NOT NULL") {
		t.Fatalf("Dim_Customer should use its own data:\n%s", got)
	}
	if !strings.Contains(got, "\"customer_id\" TEXT,") {
		t.Fatalf("Fact_Sales should fall back to the source dataset:\n%s", got)
	}
}

//
// Identifiers and inserts
//

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"Customer Name", 0, "customer_name"},
		{"  Café Owner! ", 0, "cafe_owner"},
		{"Total $ Amount", 0, "total__amount"},
		{"Ünïcödé", 0, "unicode"},
		{strings.Repeat("a", 70), 0, strings.Repeat("a", 64)},
		{"日本語", 4, "日"},
		{"%%%", 0, ""},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in, tt.limit); got != tt.want {
			t.Fatalf("Sanitize(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestInserts(t *testing.T) {
	t.Parallel()

	ds := dataset.New([]string{"id", "Name", "active"}, [][]any{
		{int64(1), "O'Brien", true},
		{int64(2), nil, false},
	})
	got, err := Inserts("Dim_X", ds, Options{Dialect: MySQL})
	if err != nil {
		t.Fatalf("Inserts: %v", err)
	}
	want := "INSERT INTO `dim_x` (`id`, `name`, `active`) VALUES\n" +
		"    (1, 'O''Brien', TRUE),\n" +
		"    (2, NULL, FALSE);\n"
	if got != want {
		t.Fatalf("Inserts =\n%s\nwant\n%s", got, want)
	}

	rows := make([][]any, insertBatch+1)
	for i := range rows {
		rows[i] = []any{int64(i)}
	}
	big, _ := Inserts("Dim_Y", dataset.New([]string{"id"}, rows), Options{Dialect: SQLServer})
	if n := strings.Count(big, "INSERT INTO [dim_y]"); n != 2 {
		t.Fatalf("statements = %d, want 2", n)
	}

	if got, _ := Inserts("Dim_Z", dataset.New([]string{"id"}, nil), Options{}); got != "" {
		t.Fatalf("empty dataset rendered %q", got)
	}
}

func TestLiteral(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    Dialect
		v    any
		want string
	}{
		{SQLServer, "é", "N'é'"},
		{SQLite, true, "1"},
		{PostgreSQL, 2.50, "2.5"},
		{MySQL, `a\b`, `'a\\b'`},
		{PostgreSQL, nil, "NULL"},
	}
	for _, tt := range tests {
		if got := Literal(tt.d, tt.v); got != tt.want {
			t.Fatalf("Literal(%s, %v) = %q, want %q", tt.d, tt.v, got, tt.want)
		}
	}
}

func TestParseDialect(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Dialect{"postgres": PostgreSQL, "MSSQL": SQLServer, "sqlite3": SQLite, "": MySQL} {
		if got, err := ParseDialect(in); err != nil || got != want {
			t.Fatalf("ParseDialect(%q) = (%v, %v), want %v", in, got, err, want)
		}
	}
	if _, err := ParseDialect("oracle"); err == nil {
		t.Fatalf("expected error for oracle")
	}
}
