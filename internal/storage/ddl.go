package storage

import (
	"fmt"
	"strings"
)

// TableElements renders the column, PRIMARY KEY and FOREIGN KEY elements of
// a CREATE TABLE body, quoting identifiers with quote. Backends wrap the
// result in their own create-if-missing statement.
//
// Errors:
//   - empty table name or a table without columns.
func TableElements(t TableSpec, quote func(string) string) ([]string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return nil, fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("table %s: no columns", t.Name)
	}

	out := make([]string, 0, len(t.Columns)+1+len(t.ForeignKeys))
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Type) == "" {
			return nil, fmt.Errorf("table %s: column %s has no type", t.Name, c.Name)
		}
		def := quote(c.Name) + " " + c.Type
		if !c.IsNullable() {
			def += " NOT NULL"
		}
		out = append(out, def)
	}
	if len(t.PrimaryKey) > 0 {
		out = append(out, "PRIMARY KEY ("+QuoteList(t.PrimaryKey, quote)+")")
	}
	for _, fk := range t.ForeignKeys {
		out = append(out, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			quote(fk.Column), quote(fk.RefTable), quote(fk.RefColumn)))
	}
	return out, nil
}

// QuoteList quotes and comma-joins column names.
func QuoteList(cols []string, quote func(string) string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = quote(c)
	}
	return strings.Join(q, ", ")
}

// Batches splits rows so no statement binds more than maxParams values.
// Every batch has at least one row.
func Batches(rows [][]any, columns, maxParams int) [][][]any {
	if len(rows) == 0 {
		return nil
	}
	per := len(rows)
	if columns > 0 && maxParams > 0 {
		per = max(1, maxParams/columns)
	}
	out := make([][][]any, 0, (len(rows)+per-1)/per)
	for lo := 0; lo < len(rows); lo += per {
		out = append(out, rows[lo:min(lo+per, len(rows))])
	}
	return out
}
