// Package multitable loads normalized Dim and Fact tables into a database
// through a storage.Repository.
//
// Loading is two-pass: every dimension table is created and filled before
// any fact table, so foreign keys always find their targets.
package multitable

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"normalizer/internal/dataset"
	"normalizer/internal/decompose"
	"normalizer/internal/metrics"
	"normalizer/internal/sqlgen"
	"normalizer/internal/storage"
)

// Logger is the minimal logging interface used by the multitable engine.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Engine loads one decomposition result.
type Engine struct {
	Repo    storage.Repository
	Logger  Logger
	Runtime RuntimeConfig
}

// Stats reports rows written per destination table.
type Stats struct {
	Tables   []string
	Inserted map[string]int64
}

// Load creates the destination tables and writes res into them.
//
// Tables without columns or rows are created (when they have columns) but
// not written. Dimension rows are inserted with their primary key as the
// conflict key, so loading the same result twice leaves dimensions intact;
// fact rows are appended.
//
// Errors:
//   - planning errors from sqlgen.Plan (invalid schema, identifier clashes);
//   - the first EnsureTables or InsertRows error. Dimension failures stop
//     the run before any fact is written.
func (e *Engine) Load(ctx context.Context, res *decompose.Result) (Stats, error) {
	if e.Repo == nil {
		return Stats{}, fmt.Errorf("engine: Repo is required")
	}
	if res == nil {
		return Stats{}, fmt.Errorf("engine: nil result")
	}
	rt := e.Runtime.withDefaults()
	logf := e.logger()
	start := time.Now()

	data := make(map[string]*dataset.Dataset, len(res.Tables))
	for _, t := range res.Tables {
		data[t.Name] = t.Data
	}
	defs, err := sqlgen.Plan(res.Schema, sqlgen.Options{
		Dialect:    e.Repo.Dialect(),
		Tables:     data,
		MaxVarchar: rt.MaxVarchar,
	})
	if err != nil {
		metrics.RecordStep("load", "error", time.Since(start))
		return Stats{}, fmt.Errorf("plan tables: %w", err)
	}

	var dims, facts, all []storage.TableSpec
	sources := make(map[string]*dataset.Dataset, len(defs))
	for i, spec := range storage.SpecsFromPlan(defs) {
		if len(spec.Columns) == 0 {
			logf("stage=plan table=%s skipped reason=no_columns", spec.Name)
			continue
		}
		sources[spec.Name] = data[defs[i].Source]
		all = append(all, spec)
		if spec.Load == storage.LoadDimension {
			dims = append(dims, spec)
		} else {
			facts = append(facts, spec)
		}
	}

	ddlStart := time.Now()
	if err := e.Repo.EnsureTables(ctx, all); err != nil {
		metrics.RecordStep("load", "error", time.Since(start))
		return Stats{}, err
	}
	logf("stage=ddl ok tables=%d duration=%s", len(all), durMS(ddlStart))

	st := Stats{Inserted: make(map[string]int64, len(all))}
	for _, t := range all {
		st.Tables = append(st.Tables, t.Name)
	}
	var mu sync.Mutex
	record := func(table string, n int64) {
		mu.Lock()
		st.Inserted[table] += n
		mu.Unlock()
	}

	pass1Start := time.Now()
	if err := e.loadPass(ctx, dims, sources, rt, record, logf); err != nil {
		metrics.RecordStep("load", "error", time.Since(start))
		return st, err
	}
	logf("stage=pass1_load_dims ok tables=%d duration=%s", len(dims), durMS(pass1Start))

	pass2Start := time.Now()
	if err := e.loadPass(ctx, facts, sources, rt, record, logf); err != nil {
		metrics.RecordStep("load", "error", time.Since(start))
		return st, err
	}
	logf("stage=pass2_load_facts ok tables=%d duration=%s", len(facts), durMS(pass2Start))

	var total int64
	for _, n := range st.Inserted {
		total += n
	}
	metrics.RecordRows("loaded", int(total))
	metrics.RecordStep("load", "ok", time.Since(start))
	return st, nil
}

// loadPass loads the tables of one pass, at most rt.LoaderWorkers at a time.
func (e *Engine) loadPass(
	ctx context.Context,
	tables []storage.TableSpec,
	sources map[string]*dataset.Dataset,
	rt RuntimeConfig,
	record func(string, int64),
	logf func(string, ...any),
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rt.LoaderWorkers)
	for _, spec := range tables {
		g.Go(func() error {
			n, err := e.loadTable(gctx, spec, sources[spec.Name], rt, logf)
			record(spec.Name, n)
			if err != nil {
				return fmt.Errorf("load %s: %w", spec.Name, err)
			}
			logf("stage=load_table table=%s kind=%s inserted=%d", spec.Name, spec.Load, n)
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) loadTable(ctx context.Context, spec storage.TableSpec, src *dataset.Dataset, rt RuntimeConfig, logf func(string, ...any)) (int64, error) {
	if src.Len() == 0 {
		return 0, nil
	}
	proj, err := src.Project(spec.Sources())
	if err != nil {
		return 0, err
	}

	var conflict []string
	if spec.Load == storage.LoadDimension {
		conflict = spec.PrimaryKey
	}
	cols := spec.ColumnNames()

	var total int64
	for lo := 0; lo < len(proj.Rows); lo += rt.BatchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch := proj.Rows[lo:min(lo+rt.BatchSize, len(proj.Rows))]
		t0 := time.Now()
		n, err := e.Repo.InsertRows(ctx, spec.Name, cols, batch, conflict)
		total += n
		if err != nil {
			return total, err
		}
		if rt.DebugTimings {
			logf("stage=insert_batch table=%s batch_rows=%d inserted=%d duration=%s", spec.Name, len(batch), n, durMS(t0))
		}
	}
	return total, nil
}

func (e *Engine) logger() func(format string, v ...any) {
	if e.Logger == nil {
		return log.New(discardWriter{}, "", 0).Printf
	}
	return e.Logger.Printf
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
