// Package export writes decomposition results to files: one delimited file
// or JSON document per table, a single multi-sheet workbook, or a SQL
// script with the DDL and optional INSERT statements.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"normalizer/internal/dataset"
	"normalizer/internal/decompose"
	"normalizer/internal/sqlgen"
)

// Format selects an output kind.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	FormatSQL  Format = "sql"
)

// ParseFormat accepts the Format names plus "excel".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "sql":
		return FormatSQL, nil
	}
	return "", fmt.Errorf("unsupported export format %q (want csv|json|xlsx|sql)", s)
}

// WriteCSV writes one <table>.csv per table into dir, creating dir when
// needed, and returns the written paths in table order. comma zero means ','.
func WriteCSV(dir string, res *decompose.Result, comma rune) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, t := range res.Tables {
		p := filepath.Join(dir, FileName(t.Name)+".csv")
		if err := writeCSVFile(p, t.Data, comma); err != nil {
			return paths, fmt.Errorf("table %s: %w", t.Name, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func writeCSVFile(path string, d *dataset.Dataset, comma rune) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if comma != 0 {
		w.Comma = comma
	}
	if err := w.Write(d.Columns); err != nil {
		_ = f.Close()
		return err
	}
	rec := make([]string, d.Width())
	for _, row := range d.Rows {
		for i, v := range row {
			rec[i] = dataset.Format(v)
		}
		if err := w.Write(rec); err != nil {
			_ = f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteJSON writes one <table>.json per table into dir: an array of
// objects keyed by column name, keys in column order.
func WriteJSON(dir string, res *decompose.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, t := range res.Tables {
		p := filepath.Join(dir, FileName(t.Name)+".json")
		b, err := marshalRows(t.Data)
		if err != nil {
			return paths, fmt.Errorf("table %s: %w", t.Name, err)
		}
		if err := os.WriteFile(p, b, 0o644); err != nil {
			return paths, fmt.Errorf("table %s: %w", t.Name, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// marshalRows keeps column order, which a map would lose.
func marshalRows(d *dataset.Dataset) ([]byte, error) {
	var b strings.Builder
	b.WriteString("[")
	for r, row := range d.Rows {
		if r > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n  {")
		for i, col := range d.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			k, err := json.Marshal(col)
			if err != nil {
				return nil, err
			}
			v, err := json.Marshal(jsonValue(row[i]))
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col, err)
			}
			b.Write(k)
			b.WriteString(": ")
			b.Write(v)
		}
		b.WriteString("}")
	}
	if len(d.Rows) > 0 {
		b.WriteString("\n")
	}
	b.WriteString("]\n")
	return []byte(b.String()), nil
}

func jsonValue(v any) any {
	if dataset.IsNull(v) {
		return nil
	}
	switch v.(type) {
	case string, int64, float64, bool:
		return v
	default:
		return dataset.Format(v)
	}
}

// SQLOptions configure WriteSQL.
type SQLOptions struct {
	sqlgen.Options
	// WithData appends INSERT statements for every table.
	WithData bool
}

// Script renders the DDL for res.Schema, typed from the result tables,
// followed by INSERT statements when opt.WithData is set.
func Script(res *decompose.Result, opt SQLOptions) (string, error) {
	so := opt.Options
	so.Tables = make(map[string]*dataset.Dataset, len(res.Tables))
	for _, t := range res.Tables {
		so.Tables[t.Name] = t.Data
	}

	script, err := sqlgen.Generate(res.Schema, so)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(script)
	if opt.WithData {
		for _, t := range res.Tables {
			ins, err := sqlgen.Inserts(t.Name, t.Data, so)
			if err != nil {
				return "", fmt.Errorf("table %s: %w", t.Name, err)
			}
			if ins == "" {
				continue
			}
			fmt.Fprintf(&b, "-- Data for %s\n%s\n", t.Name, ins)
		}
	}
	return b.String(), nil
}

// WriteSQL writes Script(res, opt) to path, creating its directory.
func WriteSQL(path string, res *decompose.Result, opt SQLOptions) error {
	script, err := Script(res, opt)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(script), 0o644)
}

// FileName makes a table name safe as a file name stem.
func FileName(table string) string {
	r := strings.NewReplacer("/", "_", `\`, "_", ":", "_", "*", "_", "?", "_", `"`, "_", "<", "_", ">", "_", "|", "_")
	s := strings.TrimSpace(r.Replace(table))
	if s == "" {
		return "table"
	}
	return s
}
