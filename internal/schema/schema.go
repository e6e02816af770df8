// Package schema defines the schema descriptor that drives decomposition
// and SQL generation: an ordered set of Dim_ and Fact_ tables, each an
// ordered list of columns with primary-key and reference markers.
//
// A Schema is the only durable state of a normalization session. It is
// persisted as a whole (see Save and Load) and validated as a whole
// (see Validate and Check) before any decomposition runs.
package schema

import (
	"slices"
	"strings"
)

// Column describes one column of a table.
//
// RefColumn is meaningful only when RefTable is set. A nil RefColumn on a
// reference means "the referenced table's key".
type Column struct {
	Name      string  `json:"name"`
	IsPrimary bool    `json:"is_primary"`
	RefTable  *string `json:"ref_table"`
	RefColumn *string `json:"ref_column"`
}

// Field returns a plain column.
func Field(name string) Column { return Column{Name: name} }

// Key returns a primary-key column.
func Key(name string) Column { return Column{Name: name, IsPrimary: true} }

// Ref returns a column referencing table.column. An empty column leaves
// RefColumn nil.
func Ref(name, table, column string) Column {
	c := Column{Name: name, RefTable: &table}
	if column != "" {
		c.RefColumn = &column
	}
	return c
}

// IsReference reports whether the column points at another table.
func (c Column) IsReference() bool { return c.RefTable != nil && *c.RefTable != "" }

// Target returns the referenced table and column ("" when unset).
func (c Column) Target() (table, column string) {
	if c.RefTable != nil {
		table = *c.RefTable
	}
	if c.RefColumn != nil {
		column = *c.RefColumn
	}
	return table, column
}

// Equal compares two columns by value, including the reference targets.
func (c Column) Equal(o Column) bool {
	return c.Name == o.Name && c.IsPrimary == o.IsPrimary &&
		equalPtr(c.RefTable, o.RefTable) && equalPtr(c.RefColumn, o.RefColumn)
}

func (c Column) clone() Column {
	out := c
	if c.RefTable != nil {
		v := *c.RefTable
		out.RefTable = &v
	}
	if c.RefColumn != nil {
		v := *c.RefColumn
		out.RefColumn = &v
	}
	return out
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Table is a named column list, as returned by Schema.Tables.
type Table struct {
	Name    string
	Columns []Column
}

// Role classifies a table by its name prefix.
type Role int

const (
	RoleUnknown Role = iota
	RoleDim
	RoleFact
)

func (r Role) String() string {
	switch r {
	case RoleDim:
		return "dim"
	case RoleFact:
		return "fact"
	default:
		return "unknown"
	}
}

// Prefixes that decide a table's role; matched case-insensitively.
const (
	DimPrefix  = "Dim_"
	FactPrefix = "Fact_"
)

// RoleOf returns the role implied by a table name.
func RoleOf(name string) Role {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, strings.ToLower(DimPrefix)):
		return RoleDim
	case strings.HasPrefix(lower, strings.ToLower(FactPrefix)):
		return RoleFact
	default:
		return RoleUnknown
	}
}

// BaseName strips the role prefix: "Dim_Customer" -> "Customer".
func BaseName(name string) string {
	switch RoleOf(name) {
	case RoleDim:
		return name[len(DimPrefix):]
	case RoleFact:
		return name[len(FactPrefix):]
	default:
		return name
	}
}

// Edge is one foreign-key reference declared in a schema.
type Edge struct {
	Table     string
	Column    string
	RefTable  string
	RefColumn string // empty when the reference defaults to the key
}

// Schema is an ordered mapping from table name to columns. The zero value
// is not usable; call New.
//
// Schema is not safe for concurrent mutation.
type Schema struct {
	names  []string
	tables map[string][]Column
}

// New returns an empty schema.
func New() *Schema {
	return &Schema{tables: make(map[string][]Column)}
}

// Add sets the columns of a table. A new table is appended; an existing one
// keeps its position and gets its columns replaced.
func (s *Schema) Add(name string, cols ...Column) {
	if _, ok := s.tables[name]; !ok {
		s.names = append(s.names, name)
	}
	cp := make([]Column, len(cols))
	for i, c := range cols {
		cp[i] = c.clone()
	}
	s.tables[name] = cp
}

// Get returns a copy of a table's columns.
func (s *Schema) Get(name string) ([]Column, bool) {
	cols, ok := s.tables[name]
	if !ok {
		return nil, false
	}
	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = c.clone()
	}
	return out, true
}

// Has reports whether a table is declared.
func (s *Schema) Has(name string) bool {
	_, ok := s.tables[name]
	return ok
}

// Remove deletes a table. It reports whether the table existed.
func (s *Schema) Remove(name string) bool {
	if _, ok := s.tables[name]; !ok {
		return false
	}
	delete(s.tables, name)
	s.names = slices.DeleteFunc(s.names, func(n string) bool { return n == name })
	return true
}

// Len returns the number of tables.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Names returns table names in insertion order.
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.names...)
}

// Tables returns every table in insertion order.
func (s *Schema) Tables() []Table {
	if s == nil {
		return nil
	}
	out := make([]Table, 0, len(s.names))
	for _, n := range s.names {
		cols, _ := s.Get(n)
		out = append(out, Table{Name: n, Columns: cols})
	}
	return out
}

// DimTables returns the Dim_ tables in insertion order.
func (s *Schema) DimTables() []Table { return s.byRole(RoleDim) }

// FactTables returns the Fact_ tables in insertion order.
func (s *Schema) FactTables() []Table { return s.byRole(RoleFact) }

func (s *Schema) byRole(r Role) []Table {
	var out []Table
	for _, t := range s.Tables() {
		if RoleOf(t.Name) == r {
			out = append(out, t)
		}
	}
	return out
}

// PrimaryKeys returns the primary-key column names of a table.
func (s *Schema) PrimaryKeys(table string) []string {
	var out []string
	for _, c := range s.tables[table] {
		if c.IsPrimary {
			out = append(out, c.Name)
		}
	}
	return out
}

// References returns every declared reference, in table then column order.
func (s *Schema) References() []Edge {
	var out []Edge
	for _, n := range s.names {
		for _, c := range s.tables[n] {
			if !c.IsReference() {
				continue
			}
			rt, rc := c.Target()
			out = append(out, Edge{Table: n, Column: c.Name, RefTable: rt, RefColumn: rc})
		}
	}
	return out
}

// ReferencedBy returns the references pointing at table.
func (s *Schema) ReferencedBy(table string) []Edge {
	var out []Edge
	for _, e := range s.References() {
		if e.RefTable == table {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns a deep copy.
func (s *Schema) Clone() *Schema {
	out := New()
	if s == nil {
		return out
	}
	for _, n := range s.names {
		out.Add(n, s.tables[n]...)
	}
	return out
}

// Equal reports whether both schemas declare the same tables and columns
// in the same order.
func (s *Schema) Equal(o *Schema) bool {
	if s.Len() != o.Len() {
		return false
	}
	if s.Len() == 0 {
		return true
	}
	for i, n := range s.names {
		if o.names[i] != n {
			return false
		}
		a, b := s.tables[n], o.tables[n]
		if len(a) != len(b) {
			return false
		}
		for j := range a {
			if !a[j].Equal(b[j]) {
				return false
			}
		}
	}
	return true
}
