package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"normalizer/internal/sqlgen"
	"normalizer/internal/storage"
)

// maxParams is the Postgres limit on bind parameters per statement.
const maxParams = 65535

// Repo implements storage.Repository for Postgres on a pgx pool.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New connects a pool to cfg.DSN and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() { r.pool.Close() }

func (r *Repo) Dialect() sqlgen.Dialect { return sqlgen.PostgreSQL }

// EnsureTables creates each table with CREATE TABLE IF NOT EXISTS. Tables
// are created in the given order, so dimensions must come first.
func (r *Repo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		ddl, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// InsertRows bulk-inserts rows, batching under the parameter limit. With
// conflictColumns the insert becomes ON CONFLICT (...) DO NOTHING.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, conflictColumns []string) (int64, error) {
	var total int64
	for _, batch := range storage.Batches(rows, len(columns), maxParams) {
		q, args := buildInsertSQL(table, columns, batch, conflictColumns)
		tag, err := r.pool.Exec(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", table, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// buildCreateSQL is pure so DDL can be tested without a database.
func buildCreateSQL(t storage.TableSpec) (string, error) {
	elems, err := storage.TableElements(t, pgIdent)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", pgIdent(t.Name), strings.Join(elems, ", ")), nil
}

// buildInsertSQL constructs one INSERT with $n placeholders.
//
// Constraints:
//   - every row has len(columns) values.
func buildInsertSQL(table string, columns []string, rows [][]any, conflictColumns []string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgIdent(table))
	b.WriteString(" (")
	b.WriteString(storage.QuoteList(columns, pgIdent))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	if len(conflictColumns) > 0 {
		b.WriteString(" ON CONFLICT (")
		b.WriteString(storage.QuoteList(conflictColumns, pgIdent))
		b.WriteString(") DO NOTHING")
	}
	b.WriteString(";")
	return b.String(), args
}
