package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"normalizer/internal/sqlgen"
	"normalizer/internal/storage"
)

// maxParams stays under SQL Server's 2100 parameters per request.
const maxParams = 2000

// Repo implements storage.Repository for SQL Server.
//
// SQL Server has neither CREATE TABLE IF NOT EXISTS nor INSERT ... ON
// CONFLICT, so creation is guarded by OBJECT_ID and conflict handling is a
// NOT EXISTS probe plus in-batch dedupe.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New opens a "sqlserver" driver connection and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) Dialect() sqlgen.Dialect { return sqlgen.SQLServer }

func (r *Repo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		ddl, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, conflictColumns []string) (int64, error) {
	rows = storage.DedupeRows(columns, rows, conflictColumns)
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, batch := range storage.Batches(rows, len(columns), maxParams) {
		q, args := buildInsertSQL(table, columns, batch, conflictColumns)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func msIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

// buildCreateSQL wraps the CREATE TABLE in an OBJECT_ID guard.
func buildCreateSQL(t storage.TableSpec) (string, error) {
	elems, err := storage.TableElements(t, msIdent)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(t.Name, "'", "''"), msIdent(t.Name), strings.Join(elems, ", "),
	), nil
}

// buildInsertSQL renders a plain multi-row INSERT, or with conflictColumns
// an INSERT ... SELECT over a VALUES list that skips keys already stored.
func buildInsertSQL(table string, columns []string, rows [][]any, conflictColumns []string) (string, []any) {
	var values strings.Builder
	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			values.WriteString(", ")
		}
		values.WriteString("(")
		for j := range columns {
			if j > 0 {
				values.WriteString(", ")
			}
			fmt.Fprintf(&values, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		values.WriteString(")")
	}

	cols := storage.QuoteList(columns, msIdent)
	if len(conflictColumns) == 0 {
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s;", msIdent(table), cols, values.String()), args
	}

	match := make([]string, len(conflictColumns))
	for i, c := range conflictColumns {
		match[i] = fmt.Sprintf("t.%s = v.%s", msIdent(c), msIdent(c))
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM (VALUES %s) AS v (%s) WHERE NOT EXISTS (SELECT 1 FROM %s AS t WHERE %s);",
		msIdent(table), cols, cols, values.String(), cols, msIdent(table), strings.Join(match, " AND "),
	), args
}
