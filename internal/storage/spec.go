package storage

import (
	"normalizer/internal/schema"
	"normalizer/internal/sqlgen"
)

// Load kinds. Dimension tables are loaded before fact tables so every
// foreign key finds its target row.
const (
	LoadDimension = "dimension"
	LoadFact      = "fact"
)

// TableSpec describes one destination table. Names are already sanitized
// identifiers; backends quote them but never rewrite them.
type TableSpec struct {
	Name        string           `json:"name"`
	Load        string           `json:"load"`
	Columns     []ColumnSpec     `json:"columns"`
	PrimaryKey  []string         `json:"primary_key,omitempty"`
	ForeignKeys []ForeignKeySpec `json:"foreign_keys,omitempty"`
}

type ColumnSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable *bool  `json:"nullable,omitempty"`
	// Source is the dataset column feeding this column.
	Source string `json:"source,omitempty"`
}

type ForeignKeySpec struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// IsNullable reports whether the column accepts NULL. Columns default to
// nullable.
func (c ColumnSpec) IsNullable() bool { return c.Nullable == nil || *c.Nullable }

// Sources returns the dataset column names in column order.
func (t TableSpec) Sources() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Source
		if out[i] == "" {
			out[i] = c.Name
		}
	}
	return out
}

// ColumnNames returns the destination column names in column order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// SpecsFromPlan converts resolved DDL definitions into table specs.
// Definition order is kept, which puts dimensions first.
func SpecsFromPlan(defs []sqlgen.TableDef) []TableSpec {
	out := make([]TableSpec, 0, len(defs))
	for _, d := range defs {
		spec := TableSpec{
			Name:       d.Name,
			Load:       LoadFact,
			PrimaryKey: append([]string(nil), d.PrimaryKey...),
		}
		if d.Role == schema.RoleDim {
			spec.Load = LoadDimension
		}
		for _, c := range d.Columns {
			col := ColumnSpec{Name: c.Name, Type: c.Type, Source: c.Source}
			if c.NotNull {
				f := false
				col.Nullable = &f
			}
			spec.Columns = append(spec.Columns, col)
		}
		for _, fk := range d.ForeignKeys {
			spec.ForeignKeys = append(spec.ForeignKeys, ForeignKeySpec(fk))
		}
		out = append(out, spec)
	}
	return out
}
