// Package source opens normalizer inputs: flat files by extension and
// query results from any supported database.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"normalizer/internal/dataset"
)

// drivers maps the storage kinds onto database/sql driver names.
var drivers = map[string]string{
	"postgres": "pgx",
	"mssql":    "sqlserver",
	"mysql":    "mysql",
	"sqlite":   "sqlite",
}

// Kinds lists the database kinds Open accepts.
func Kinds() []string {
	out := make([]string, 0, len(drivers))
	for k := range drivers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open connects to dsn and pings it. kind is one of Kinds; "postgresql"
// and "sqlserver" are accepted as aliases.
func Open(ctx context.Context, kind, dsn string) (*sql.DB, error) {
	k := strings.ToLower(strings.TrimSpace(kind))
	switch k {
	case "postgresql", "pg":
		k = "postgres"
	case "sqlserver":
		k = "mssql"
	}
	driver, ok := drivers[k]
	if !ok {
		return nil, fmt.Errorf("source: unknown database kind %q (want one of %v)", kind, Kinds())
	}
	if dsn == "" {
		return nil, fmt.Errorf("source: %s: empty DSN", k)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", k, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("source: ping %s: %w", k, err)
	}
	return db, nil
}

// Query opens the database, reads the result of query into a Dataset and
// closes the connection.
func Query(ctx context.Context, kind, dsn, query string, args ...any) (*dataset.Dataset, error) {
	db, err := Open(ctx, kind, dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return dataset.ReadSQL(ctx, db, query, args...)
}
