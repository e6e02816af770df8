package multitable

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"normalizer/internal/dataset"
	"normalizer/internal/decompose"
	"normalizer/internal/schema"
	"normalizer/internal/sqlgen"
	"normalizer/internal/storage"
	_ "normalizer/internal/storage/sqlite"
)

type insertCall struct {
	table    string
	columns  []string
	rows     int
	conflict []string
}

type fakeRepo struct {
	mu        sync.Mutex
	ensured   []storage.TableSpec
	inserts   []insertCall
	failTable string
	closed    bool
}

func (f *fakeRepo) Close()                  { f.closed = true }
func (f *fakeRepo) Dialect() sqlgen.Dialect { return sqlgen.PostgreSQL }

func (f *fakeRepo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	f.ensured = append(f.ensured, tables...)
	return nil
}

func (f *fakeRepo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, conflict []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if table == f.failTable {
		return 0, errors.New("boom")
	}
	f.inserts = append(f.inserts, insertCall{table: table, columns: columns, rows: len(rows), conflict: conflict})
	return int64(len(rows)), nil
}

func (f *fakeRepo) insertedInto(table string) (rows int, calls []insertCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.inserts {
		if c.table == table {
			rows += c.rows
			calls = append(calls, c)
		}
	}
	return rows, calls
}

func salesResult(t *testing.T) *decompose.Result {
	t.Helper()
	ds := dataset.New(
		[]string{"sale_id", "customer", "region", "amount"},
		[][]any{
			{int64(1), "Ann", "North", 10.5},
			{int64(2), "Bob", "South", 3.0},
			{int64(3), "Ann", "North", 7.25},
		},
	)
	s := schema.New()
	s.Add("Dim_Customer", schema.Key("customer"), schema.Field("region"))
	s.Add("Fact_Sales", schema.Field("sale_id"), schema.Ref("customer", "Dim_Customer", "customer"), schema.Field("amount"))

	res, err := decompose.Decompose(ds, s)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	return res
}

func TestEngine_LoadsDimsBeforeFacts(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	e := &Engine{Repo: repo, Runtime: RuntimeConfig{BatchSize: 2, LoaderWorkers: 1}}

	st, err := e.Load(context.Background(), salesResult(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(repo.ensured) != 2 || repo.ensured[0].Load != storage.LoadDimension || repo.ensured[1].Load != storage.LoadFact {
		t.Fatalf("ensured = %+v", repo.ensured)
	}
	if repo.inserts[0].table != "dim_customer" {
		t.Fatalf("first insert went to %s, want dim_customer", repo.inserts[0].table)
	}

	rows, calls := repo.insertedInto("dim_customer")
	if rows != 2 || len(calls[0].conflict) != 1 || calls[0].conflict[0] != "customer_id" {
		t.Fatalf("dim inserts rows=%d calls=%+v", rows, calls)
	}
	rows, calls = repo.insertedInto("fact_sales")
	if rows != 3 || len(calls) != 2 {
		t.Fatalf("fact inserts rows=%d calls=%d, want 3 rows in 2 batches", rows, len(calls))
	}
	if calls[0].conflict != nil {
		t.Fatalf("fact inserts must not carry a conflict key")
	}
	if st.Inserted["dim_customer"] != 2 || st.Inserted["fact_sales"] != 3 {
		t.Fatalf("stats = %+v", st.Inserted)
	}
}

func TestEngine_DimFailureStopsFacts(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{failTable: "dim_customer"}
	e := &Engine{Repo: repo}

	if _, err := e.Load(context.Background(), salesResult(t)); err == nil {
		t.Fatalf("expected error from failing dimension load")
	}
	if rows, _ := repo.insertedInto("fact_sales"); rows != 0 {
		t.Fatalf("facts were loaded after a dimension failure: %d rows", rows)
	}
}

func TestEngine_RequiresRepo(t *testing.T) {
	t.Parallel()
	if _, err := (&Engine{}).Load(context.Background(), &decompose.Result{}); err == nil {
		t.Fatalf("expected error without Repo")
	}
}

func TestRunner_SQLiteEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "sales.db")

	cfg := LoadConfig{Storage: Storage{Kind: "sqlite", DSN: dsn}}
	r := NewDefaultRunner(nil)
	res := salesResult(t)

	// Twice: dimensions are conflict-keyed, facts append.
	for i := 0; i < 2; i++ {
		if _, err := r.Run(ctx, cfg, res); err != nil {
			t.Fatalf("Run #%d: %v", i, err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var dims, facts int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "dim_customer"`).Scan(&dims); err != nil {
		t.Fatalf("count dims: %v", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "fact_sales"`).Scan(&facts); err != nil {
		t.Fatalf("count facts: %v", err)
	}
	if dims != 2 || facts != 6 {
		t.Fatalf("dims=%d facts=%d, want 2 and 6", dims, facts)
	}
}

func TestRunner_ValidatesConfig(t *testing.T) {
	t.Parallel()

	r := &Runner{NewRepository: func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		t.Fatalf("repository must not be opened for an invalid config")
		return nil, nil
	}}
	for _, cfg := range []LoadConfig{
		{},
		{Storage: Storage{Kind: "sqlite"}},
		{Storage: Storage{Kind: "sqlite", DSN: "x"}, Runtime: RuntimeConfig{BatchSize: -1}},
	} {
		if _, err := r.Run(context.Background(), cfg, &decompose.Result{}); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}
