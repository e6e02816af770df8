// Package sqlgen renders CREATE TABLE scripts for a schema.
//
// Output is a pure function of the schema, the options and the optional
// datasets: no timestamps, no random names. Dim tables come first so every
// FOREIGN KEY names a table that already exists when the script runs.
package sqlgen

import (
	"fmt"
	"strings"
	"time"

	"normalizer/internal/dataset"
	"normalizer/internal/metrics"
	"normalizer/internal/schema"
)

// Dialect selects the SQL flavor.
type Dialect string

const (
	MySQL      Dialect = "mysql"
	PostgreSQL Dialect = "postgresql"
	SQLite     Dialect = "sqlite"
	SQLServer  Dialect = "sqlserver"
)

// Dialects lists the supported dialects in display order.
var Dialects = []Dialect{MySQL, PostgreSQL, SQLite, SQLServer}

// ParseDialect accepts the dialect names plus "postgres", "pg" and "mssql".
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mysql":
		return MySQL, nil
	case "postgresql", "postgres", "pg":
		return PostgreSQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	}
	return "", fmt.Errorf("unsupported SQL dialect %q (want mysql|postgresql|sqlite|sqlserver)", s)
}

func (d Dialect) orDefault() Dialect {
	if _, ok := typeSets[d]; ok {
		return d
	}
	return MySQL
}

// DefaultDatabaseName names the database in the preamble when Options
// leaves it unset.
const DefaultDatabaseName = "generated_database"

// Options controls one Generate call.
type Options struct {
	Dialect Dialect
	// Dataset is consulted for column kinds by column name.
	Dataset *dataset.Dataset
	// Tables holds per-table data (e.g. decomposition output); it wins over
	// Dataset for the tables it names.
	Tables map[string]*dataset.Dataset
	// Samples maps "Table.column" or "column" to a representative value.
	Samples map[string]any
	// DatabaseName is sanitized before use.
	DatabaseName string
	// Preamble emits CREATE DATABASE and the dialect's USE statement.
	// SQLite has none.
	Preamble      bool
	MaxIdentifier int
	MaxVarchar    int
}

func (o Options) withDefaults() Options {
	o.Dialect = o.Dialect.orDefault()
	if o.DatabaseName == "" {
		o.DatabaseName = DefaultDatabaseName
	}
	if o.MaxIdentifier <= 0 {
		o.MaxIdentifier = DefaultMaxIdentifier
	}
	if o.MaxVarchar <= 0 {
		o.MaxVarchar = DefaultMaxVarchar
	}
	return o
}

// TableDef is one table as it will be created: sanitized identifiers,
// resolved column types and keys.
type TableDef struct {
	// Name is the sanitized identifier; Source the schema table name.
	Name   string
	Source string
	Role   schema.Role

	Columns     []ColumnDef
	PrimaryKey  []string
	ForeignKeys []ForeignKeyDef
}

// ColumnDef is one column of a TableDef.
type ColumnDef struct {
	Name    string
	Source  string
	Type    string
	NotNull bool
}

// ForeignKeyDef links Column to RefTable.RefColumn, all sanitized.
type ForeignKeyDef struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Plan resolves s into table definitions, Dim tables first.
//
// Dim tables are keyed on their primary-key columns, or on their first
// column when none is declared. Each reference becomes a foreign key; a
// reference without ref_column points at the target's first key column.
// Tables without columns are returned with no columns.
//
// Errors:
//   - *schema.InvalidSchemaError when s fails validation;
//   - a name that sanitizes to nothing, or two names in the same scope
//     that sanitize to the same identifier.
func Plan(s *schema.Schema, opt Options) ([]TableDef, error) {
	if err := schema.Check(s); err != nil {
		return nil, err
	}
	g := &generator{opt: opt.withDefaults(), s: s}
	return g.plan()
}

// Generate renders the DDL script for s: a header, the optional preamble
// and one CREATE TABLE block per table of Plan.
//
// Errors are those of Plan.
func Generate(s *schema.Schema, opt Options) (string, error) {
	start := time.Now()
	if err := schema.Check(s); err != nil {
		metrics.RecordStep("generate_sql", "error", time.Since(start))
		return "", err
	}
	g := &generator{opt: opt.withDefaults(), s: s}

	out, err := g.script()
	if err != nil {
		metrics.RecordStep("generate_sql", "error", time.Since(start))
		return "", err
	}
	metrics.RecordStep("generate_sql", "ok", time.Since(start))
	return out, nil
}

type generator struct {
	opt Options
	s   *schema.Schema
	b   strings.Builder
}

func (g *generator) ident(name string) (string, error) {
	id := Sanitize(name, g.opt.MaxIdentifier)
	if id == "" {
		return "", fmt.Errorf("identifier %q has no usable characters", name)
	}
	return id, nil
}

func (g *generator) script() (string, error) {
	d := g.opt.Dialect
	db, err := g.ident(g.opt.DatabaseName)
	if err != nil {
		return "", err
	}
	defs, err := g.plan()
	if err != nil {
		return "", err
	}

	fmt.Fprintf(&g.b, "-- Auto-generated SQL script for %s\n", strings.ToUpper(string(d)))
	fmt.Fprintf(&g.b, "-- Database: %s\n\n", db)
	if g.opt.Preamble {
		g.b.WriteString(preamble(d, db))
	}
	for _, t := range defs {
		g.render(t)
	}
	return g.b.String(), nil
}

func preamble(d Dialect, db string) string {
	q := d.Quote(db)
	switch d {
	case MySQL:
		return fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s;\nUSE %s;\n\n", q, q)
	case PostgreSQL:
		// \c takes a bare name.
		return fmt.Sprintf("CREATE DATABASE %s;\n\\c %s;\n\n", q, db)
	case SQLServer:
		return fmt.Sprintf("CREATE DATABASE %s;\nGO\nUSE %s;\nGO\n\n", q, q)
	default:
		return ""
	}
}

func (g *generator) plan() ([]TableDef, error) {
	var out []TableDef
	seen := make(map[string]string)
	for _, t := range append(g.s.DimTables(), g.s.FactTables()...) {
		name, err := g.ident(t.Name)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("tables %q and %q both map to %s", prev, t.Name, name)
		}
		seen[name] = t.Name
		def, err := g.table(name, t)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

func (g *generator) table(name string, t schema.Table) (TableDef, error) {
	def := TableDef{Name: name, Source: t.Name, Role: schema.RoleOf(t.Name)}
	if len(t.Columns) == 0 {
		return def, nil
	}

	var pks []string
	for _, c := range t.Columns {
		if c.IsPrimary {
			pks = append(pks, c.Name)
		}
	}
	if len(pks) == 0 && def.Role == schema.RoleDim {
		pks = []string{t.Columns[0].Name}
	}
	isPK := make(map[string]bool, len(pks))
	for _, c := range pks {
		isPK[c] = true
	}

	cols := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		col, err := g.ident(c.Name)
		if err != nil {
			return TableDef{}, fmt.Errorf("table %s: %w", t.Name, err)
		}
		if prev, dup := cols[col]; dup {
			return TableDef{}, fmt.Errorf("table %s: columns %q and %q both map to %s", t.Name, prev, c.Name, col)
		}
		cols[col] = c.Name

		def.Columns = append(def.Columns, ColumnDef{
			Name:    col,
			Source:  c.Name,
			Type:    g.columnType(t.Name, c.Name, col),
			NotNull: isPK[c.Name],
		})
		if isPK[c.Name] {
			def.PrimaryKey = append(def.PrimaryKey, col)
		}
		if c.IsReference() {
			fk, err := g.foreignKey(col, c)
			if err != nil {
				return TableDef{}, fmt.Errorf("table %s: %w", t.Name, err)
			}
			def.ForeignKeys = append(def.ForeignKeys, fk)
		}
	}
	return def, nil
}

func (g *generator) render(t TableDef) {
	d := g.opt.Dialect
	label := "Fact"
	if t.Role == schema.RoleDim {
		label = "Dimension"
	}
	fmt.Fprintf(&g.b, "-- %s table: %s\n", label, t.Name)
	if len(t.Columns) == 0 {
		fmt.Fprintf(&g.b, "-- %s declares no columns; nothing to create.\n\n", t.Source)
		return
	}

	lines := make([]string, 0, len(t.Columns)+1+len(t.ForeignKeys))
	for _, c := range t.Columns {
		line := fmt.Sprintf("    %s %s", d.Quote(c.Name), c.Type)
		if c.NotNull {
			line += " NOT NULL"
		}
		lines = append(lines, line)
	}
	if len(t.PrimaryKey) > 0 {
		quoted := make([]string, len(t.PrimaryKey))
		for i, pk := range t.PrimaryKey {
			quoted[i] = d.Quote(pk)
		}
		lines = append(lines, fmt.Sprintf("    PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}
	for _, fk := range t.ForeignKeys {
		lines = append(lines, fmt.Sprintf("    FOREIGN KEY (%s) REFERENCES %s (%s)", d.Quote(fk.Column), d.Quote(fk.RefTable), d.Quote(fk.RefColumn)))
	}
	fmt.Fprintf(&g.b, "CREATE TABLE %s (\n%s\n);\n\n", d.Quote(t.Name), strings.Join(lines, ",\n"))
}

func (g *generator) foreignKey(col string, c schema.Column) (ForeignKeyDef, error) {
	rt, rc := c.Target()
	if rc == "" {
		rc = keyOf(g.s, rt)
	}
	table, err := g.ident(rt)
	if err != nil {
		return ForeignKeyDef{}, err
	}
	ref, err := g.ident(rc)
	if err != nil {
		return ForeignKeyDef{}, err
	}
	return ForeignKeyDef{Column: col, RefTable: table, RefColumn: ref}, nil
}

// keyOf is the first primary-key column of table, or its first column.
func keyOf(s *schema.Schema, table string) string {
	cols, _ := s.Get(table)
	for _, c := range cols {
		if c.IsPrimary {
			return c.Name
		}
	}
	if len(cols) > 0 {
		return cols[0].Name
	}
	return ""
}

// columnType infers from data and samples by the declared name and falls
// back to the name heuristic on the sanitized identifier.
func (g *generator) columnType(table, column, ident string) string {
	return ColumnType(g.opt.Dialect, ident, g.values(table, column), g.sample(table, column), g.opt.MaxVarchar)
}

func (g *generator) values(table, column string) []any {
	for _, ds := range []*dataset.Dataset{g.opt.Tables[table], g.opt.Dataset} {
		if ds == nil {
			continue
		}
		for _, name := range []string{column, Sanitize(column, g.opt.MaxIdentifier)} {
			if vals, err := ds.Column(name); err == nil {
				return vals
			}
		}
	}
	return nil
}

func (g *generator) sample(table, column string) any {
	if v, ok := g.opt.Samples[table+"."+column]; ok {
		return v
	}
	return g.opt.Samples[column]
}
