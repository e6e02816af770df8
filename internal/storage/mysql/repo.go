package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"normalizer/internal/sqlgen"
	"normalizer/internal/storage"
)

// maxParams is the MySQL prepared-statement placeholder limit.
const maxParams = 65535

// Repo implements storage.Repository for MySQL / MariaDB.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mysql", New)
}

// New opens cfg.DSN with the go-sql-driver DSN syntax
// ("user:pass@tcp(host:3306)/db?parseTime=true") and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) Dialect() sqlgen.Dialect { return sqlgen.MySQL }

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

func myIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

func buildCreateSQL(t storage.TableSpec) (string, error) {
	elems, err := storage.TableElements(t, myIdent)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", myIdent(t.Name), strings.Join(elems, ", ")), nil
}

// buildInsertSQL renders a multi-row INSERT. With conflictColumns a
// duplicate key turns into a no-op update of the first conflict column;
// MySQL reports such rows as 0 affected.
func buildInsertSQL(table string, columns []string, rows [][]any, conflictColumns []string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(myIdent(table))
	b.WriteString(" (")
	b.WriteString(storage.QuoteList(columns, myIdent))
	b.WriteString(") VALUES ")

	ph := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ph)
		args = append(args, row[:len(columns)]...)
	}
	if len(conflictColumns) > 0 {
		c := myIdent(conflictColumns[0])
		fmt.Fprintf(&b, " ON DUPLICATE KEY UPDATE %s = %s", c, c)
	}
	b.WriteString(";")
	return b.String(), args
}
