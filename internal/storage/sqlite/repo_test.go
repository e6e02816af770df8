package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"normalizer/internal/storage"
)

func boolPtr(v bool) *bool { return &v }

func TestRepo_EnsureAndInsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo, err := New(ctx, storage.Config{Kind: "sqlite", DSN: filepath.Join(t.TempDir(), "out.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer repo.Close()

	tables := []storage.TableSpec{
		{
			Name:       "dim_customer",
			Load:       storage.LoadDimension,
			Columns:    []storage.ColumnSpec{{Name: "customer_id", Type: "INTEGER", Nullable: boolPtr(false)}, {Name: "name", Type: "TEXT"}},
			PrimaryKey: []string{"customer_id"},
		},
		{
			Name:        "fact_orders",
			Load:        storage.LoadFact,
			Columns:     []storage.ColumnSpec{{Name: "customer_id", Type: "INTEGER"}, {Name: "placed", Type: "TIMESTAMP"}},
			ForeignKeys: []storage.ForeignKeySpec{{Column: "customer_id", RefTable: "dim_customer", RefColumn: "customer_id"}},
		},
	}
	// Twice: creation is idempotent.
	for i := 0; i < 2; i++ {
		if err := repo.EnsureTables(ctx, tables); err != nil {
			t.Fatalf("EnsureTables #%d: %v", i, err)
		}
	}

	dimCols := []string{"customer_id", "name"}
	n, err := repo.InsertRows(ctx, "dim_customer", dimCols, [][]any{{int64(1), "Ann"}, {int64(2), "Bob"}}, []string{"customer_id"})
	if err != nil || n != 2 {
		t.Fatalf("InsertRows dims n=%d err=%v", n, err)
	}
	n, err = repo.InsertRows(ctx, "dim_customer", dimCols, [][]any{{int64(2), "Bob"}, {int64(3), "Cy"}}, []string{"customer_id"})
	if err != nil || n != 1 {
		t.Fatalf("re-insert with conflict must skip existing keys: n=%d err=%v", n, err)
	}

	placed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	n, err = repo.InsertRows(ctx, "fact_orders", []string{"customer_id", "placed"}, [][]any{{int64(1), placed}, {int64(3), placed}}, nil)
	if err != nil || n != 2 {
		t.Fatalf("InsertRows facts n=%d err=%v", n, err)
	}

	if _, err := repo.InsertRows(ctx, "fact_orders", []string{"customer_id", "placed"}, [][]any{{int64(99), placed}}, nil); err == nil {
		t.Fatalf("expected foreign key violation for unknown customer")
	}
}

func TestBuildInsertSQL_OrIgnoreAndTimes(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	q, args := buildInsertSQL("t", []string{"a", "b"}, [][]any{{int64(1), ts}}, true)
	if q != `INSERT OR IGNORE INTO "t" ("a", "b") VALUES (?, ?);` {
		t.Fatalf("unexpected insert: %s", q)
	}
	if args[1] != "2024-01-02T03:04:05Z" {
		t.Fatalf("time arg = %v", args[1])
	}
}
