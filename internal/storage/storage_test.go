package storage

import (
	"context"
	"strings"
	"testing"

	"normalizer/internal/schema"
	"normalizer/internal/sqlgen"
)

type fakeRepo struct{ closed int }

func (f *fakeRepo) Close() { f.closed++ }
func (f *fakeRepo) Dialect() sqlgen.Dialect { return sqlgen.SQLite }
func (f *fakeRepo) EnsureTables(context.Context, []TableSpec) error { return nil }
func (f *fakeRepo) InsertRows(context.Context, string, []string, [][]any, []string) (int64, error) {
	return 0, nil
}

func TestRegisterAndNew(t *testing.T) {
	Register("fake-test", func(ctx context.Context, cfg Config) (Repository, error) {
		return &fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: "fake-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if repo.Dialect() != sqlgen.SQLite {
		t.Fatalf("dialect=%s, want sqlite", repo.Dialect())
	}

	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	if _, err := New(context.Background(), Config{Kind: "nope"}); err == nil || !strings.Contains(err.Error(), "fake-test") {
		t.Fatalf("expected unsupported-kind error listing registered kinds, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register("fake-test", func(ctx context.Context, cfg Config) (Repository, error) { return nil, nil })
}

func TestSpecsFromPlan(t *testing.T) {
	t.Parallel()

	s := schema.New()
	s.Add("Dim_Customer", schema.Key("customer_id"), schema.Field("Customer Name"))
	s.Add("Fact_Orders", schema.Field("order_no"), schema.Ref("customer_id", "Dim_Customer", "customer_id"))

	defs, err := sqlgen.Plan(s, sqlgen.Options{Dialect: sqlgen.PostgreSQL})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	specs := SpecsFromPlan(defs)
	if len(specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(specs))
	}

	dim := specs[0]
	if dim.Name != "dim_customer" || dim.Load != LoadDimension {
		t.Fatalf("dim spec = %+v", dim)
	}
	if len(dim.PrimaryKey) != 1 || dim.PrimaryKey[0] != "customer_id" {
		t.Fatalf("dim primary key = %v", dim.PrimaryKey)
	}
	if dim.Columns[0].IsNullable() {
		t.Fatalf("key column must be NOT NULL")
	}
	if got := dim.Sources(); got[1] != "Customer Name" {
		t.Fatalf("sources = %v", got)
	}
	if got := dim.ColumnNames(); got[1] != "customer_name" {
		t.Fatalf("column names = %v", got)
	}

	fact := specs[1]
	if fact.Load != LoadFact || len(fact.ForeignKeys) != 1 {
		t.Fatalf("fact spec = %+v", fact)
	}
	if fk := fact.ForeignKeys[0]; fk.RefTable != "dim_customer" || fk.RefColumn != "customer_id" {
		t.Fatalf("fk = %+v", fk)
	}
}

func TestTableElements(t *testing.T) {
	t.Parallel()

	notNull := false
	spec := TableSpec{
		Name: "fact_orders",
		Columns: []ColumnSpec{
			{Name: "id", Type: "INTEGER", Nullable: &notNull},
			{Name: "customer_id", Type: "INTEGER"},
		},
		PrimaryKey:  []string{"id"},
		ForeignKeys: []ForeignKeySpec{{Column: "customer_id", RefTable: "dim_customer", RefColumn: "customer_id"}},
	}
	quote := func(s string) string { return "<" + s + ">" }

	got, err := TableElements(spec, quote)
	if err != nil {
		t.Fatalf("TableElements: %v", err)
	}
	want := []string{
		"<id> INTEGER NOT NULL",
		"<customer_id> INTEGER",
		"PRIMARY KEY (<id>)",
		"FOREIGN KEY (<customer_id>) REFERENCES <dim_customer> (<customer_id>)",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("got:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}

	if _, err := TableElements(TableSpec{Name: "x"}, quote); err == nil {
		t.Fatalf("expected error for table without columns")
	}
	if _, err := TableElements(TableSpec{Name: "x", Columns: []ColumnSpec{{Name: "a"}}}, quote); err == nil {
		t.Fatalf("expected error for untyped column")
	}
}

func TestBatches(t *testing.T) {
	t.Parallel()

	rows := make([][]any, 7)
	got := Batches(rows, 3, 7) // 2 rows per batch
	if len(got) != 4 || len(got[0]) != 2 || len(got[3]) != 1 {
		t.Fatalf("batches sizes wrong: %d batches", len(got))
	}
	if got := Batches(rows, 10, 5); len(got) != 7 {
		t.Fatalf("wide rows must still get one row per batch, got %d batches", len(got))
	}
	if got := Batches(nil, 3, 10); got != nil {
		t.Fatalf("no rows must give no batches")
	}
}

func TestDedupeRows(t *testing.T) {
	t.Parallel()

	cols := []string{"k", "v"}
	rows := [][]any{{int64(1), "a"}, {1.0, "b"}, {" 2 ", "c"}, {"2", "d"}, {int64(3), "e"}}

	got := DedupeRows(cols, rows, []string{"k"})
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3: %v", len(got), got)
	}
	if got[1][1] != "c" {
		t.Fatalf("first occurrence must win, got %v", got[1])
	}
	if got := DedupeRows(cols, rows, nil); len(got) != len(rows) {
		t.Fatalf("no conflict columns must keep every row")
	}
	if got := DedupeRows(cols, rows, []string{"missing"}); len(got) != len(rows) {
		t.Fatalf("unknown conflict column must keep every row")
	}
}
