// Package storage is the database side of the normalizer: backend-agnostic
// table specs plus a registry of backends that create and fill the
// normalized tables.
//
// Backends live in subpackages and register themselves from init(). Import
// normalizer/internal/storage/all to get every backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"normalizer/internal/sqlgen"
)

// Config is the minimal configuration needed to create a Repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Repository creates normalized tables and writes rows into them.
//
// Each backend implements these semantics in its own idiomatic way
// (Postgres ON CONFLICT, SQLite OR IGNORE, MySQL ON DUPLICATE KEY, SQL
// Server NOT EXISTS).
type Repository interface {
	// Close releases backend resources. Call it once when done.
	Close()

	// Dialect is the SQL dialect used to type the backend's columns.
	Dialect() sqlgen.Dialect

	// EnsureTables creates the given tables when missing. It is idempotent.
	EnsureTables(ctx context.Context, tables []TableSpec) error

	// InsertRows writes rows into table. When conflictColumns is non-empty,
	// rows whose conflict key already exists (in the table or earlier in
	// rows) are skipped instead of failing. It returns the rows written.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any, conflictColumns []string) (int64, error)
}

// Factory builds a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Concurrency:
//   - Safe for concurrent use with Register.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
