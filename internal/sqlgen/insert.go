package sqlgen

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"normalizer/internal/dataset"
)

// insertBatch bounds rows per INSERT. SQL Server rejects more than 1000
// row value expressions in one statement.
const insertBatch = 500

// Inserts renders INSERT statements loading ds into table, using the same
// identifier rules as Generate. An empty dataset yields "".
func Inserts(table string, ds *dataset.Dataset, opt Options) (string, error) {
	opt = opt.withDefaults()
	if ds == nil || ds.Len() == 0 {
		return "", nil
	}
	g := &generator{opt: opt}
	name, err := g.ident(table)
	if err != nil {
		return "", err
	}
	d := opt.Dialect

	cols := make([]string, len(ds.Columns))
	for i, c := range ds.Columns {
		id, err := g.ident(c)
		if err != nil {
			return "", fmt.Errorf("table %s: %w", table, err)
		}
		cols[i] = d.Quote(id)
	}
	head := fmt.Sprintf("INSERT INTO %s (%s) VALUES\n", d.Quote(name), strings.Join(cols, ", "))

	var b strings.Builder
	for start := 0; start < ds.Len(); start += insertBatch {
		end := min(start+insertBatch, ds.Len())
		b.WriteString(head)
		for r := start; r < end; r++ {
			vals := make([]string, len(ds.Columns))
			for i := range ds.Columns {
				var v any
				if i < len(ds.Rows[r]) {
					v = ds.Rows[r][i]
				}
				vals[i] = Literal(d, v)
			}
			b.WriteString("    (")
			b.WriteString(strings.Join(vals, ", "))
			if r == end-1 {
				b.WriteString(");\n")
			} else {
				b.WriteString("),\n")
			}
		}
	}
	return b.String(), nil
}

// Literal renders one value as a SQL literal for dialect d.
func Literal(d Dialect, v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(d, t)
	case []byte:
		return quoteString(d, string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case float32:
		return Literal(d, float64(t))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "NULL"
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		switch d {
		case SQLite, SQLServer:
			if t {
				return "1"
			}
			return "0"
		}
		if t {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		if dataset.KindOfValue(t) == dataset.KindDate {
			return quoteString(d, t.Format(time.DateOnly))
		}
		return quoteString(d, t.UTC().Format("2006-01-02 15:04:05"))
	default:
		return quoteString(d, fmt.Sprint(v))
	}
}

func quoteString(d Dialect, s string) string {
	q := "'" + strings.ReplaceAll(s, "'", "''") + "'"
	if d == MySQL {
		// MySQL treats backslash as an escape by default.
		q = strings.ReplaceAll(q, `\`, `\\`)
	}
	if d == SQLServer {
		return "N" + q
	}
	return q
}
