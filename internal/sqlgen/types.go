package sqlgen

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"normalizer/internal/dataset"
)

// DefaultMaxVarchar caps inferred VARCHAR lengths when Options leaves it
// unset.
const DefaultMaxVarchar = 255

// defaultVarchar is the length used when nothing but the name is known.
const defaultVarchar = 100

// typeSet is one dialect's type vocabulary.
type typeSet struct {
	integer   string
	bigint    string
	decimal   string
	boolean   string
	date      string
	timestamp string
	// varchar is empty for dialects that only have unbounded text.
	varchar string
	text    string
}

var typeSets = map[Dialect]typeSet{
	MySQL: {
		integer: "INT", bigint: "BIGINT", decimal: "DECIMAL(10, 2)", boolean: "BOOLEAN",
		date: "DATE", timestamp: "DATETIME", varchar: "VARCHAR", text: "TEXT",
	},
	PostgreSQL: {
		integer: "INTEGER", bigint: "BIGINT", decimal: "NUMERIC(10, 2)", boolean: "BOOLEAN",
		date: "DATE", timestamp: "TIMESTAMP", varchar: "VARCHAR", text: "TEXT",
	},
	SQLite: {
		integer: "INTEGER", bigint: "INTEGER", decimal: "REAL", boolean: "INTEGER",
		date: "TEXT", timestamp: "TEXT", text: "TEXT",
	},
	SQLServer: {
		integer: "INT", bigint: "BIGINT", decimal: "DECIMAL(10, 2)", boolean: "BIT",
		date: "DATE", timestamp: "DATETIME2", varchar: "NVARCHAR", text: "NVARCHAR(MAX)",
	},
}

func (t typeSet) varcharOf(n, maxVarchar int) string {
	if t.varchar == "" {
		return t.text
	}
	if n < 1 {
		n = 1
	}
	if n > maxVarchar {
		n = maxVarchar
	}
	return fmt.Sprintf("%s(%d)", t.varchar, n)
}

// TypeForKind maps a column kind onto the dialect. width is the longest
// observed string length in runes (only used for strings); wide selects the
// 64-bit integer type.
//
// KindUnknown yields "".
func TypeForKind(d Dialect, k dataset.Kind, width int, wide bool, maxVarchar int) string {
	t := typeSets[d.orDefault()]
	if maxVarchar <= 0 {
		maxVarchar = DefaultMaxVarchar
	}
	switch k {
	case dataset.KindInteger:
		if wide {
			return t.bigint
		}
		return t.integer
	case dataset.KindFloat:
		return t.decimal
	case dataset.KindBoolean:
		return t.boolean
	case dataset.KindDate:
		return t.date
	case dataset.KindTimestamp:
		return t.timestamp
	case dataset.KindString:
		return t.varcharOf(width, maxVarchar)
	default:
		return ""
	}
}

// ColumnType infers the SQL type of one column, trying in order:
//
//  1. the column's kind in data (string widths get 50% headroom);
//  2. sample, when non-nil (string widths are doubled);
//  3. NameType on the lowercased name.
//
// data may be nil. maxVarchar <= 0 means DefaultMaxVarchar.
func ColumnType(d Dialect, name string, data []any, sample any, maxVarchar int) string {
	d = d.orDefault()
	if maxVarchar <= 0 {
		maxVarchar = DefaultMaxVarchar
	}
	if typ := typeFromValues(d, data, maxVarchar); typ != "" {
		return typ
	}
	if typ := typeFromSample(d, sample, maxVarchar); typ != "" {
		return typ
	}
	return NameType(d, name, maxVarchar)
}

func typeFromValues(d Dialect, data []any, maxVarchar int) string {
	k := dataset.KindOfValues(data)
	if k == dataset.KindUnknown {
		return ""
	}
	width, wide := 0, false
	for _, v := range data {
		if t, ok := v.(int64); ok {
			wide = wide || t > math.MaxInt32 || t < math.MinInt32
		}
		if k == dataset.KindString && v != nil {
			if n := utf8.RuneCountInString(dataset.Format(v)); n > width {
				width = n
			}
		}
	}
	if k == dataset.KindString {
		width = int(float64(width) * 1.5)
	}
	return TypeForKind(d, k, width, wide, maxVarchar)
}

func typeFromSample(d Dialect, v any, maxVarchar int) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		return TypeForKind(d, dataset.KindBoolean, 0, false, maxVarchar)
	case int, int32:
		return TypeForKind(d, dataset.KindInteger, 0, false, maxVarchar)
	case int64:
		return TypeForKind(d, dataset.KindInteger, 0, t > math.MaxInt32 || t < math.MinInt32, maxVarchar)
	case float32, float64:
		return TypeForKind(d, dataset.KindFloat, 0, false, maxVarchar)
	case time.Time:
		return TypeForKind(d, dataset.KindOfValue(t), 0, false, maxVarchar)
	case string:
		return TypeForKind(d, dataset.KindString, utf8.RuneCountInString(t)*2, false, maxVarchar)
	default:
		return ""
	}
}

// namePatterns are checked in order against the lowercased column name.
var namePatterns = []struct {
	match func(string) bool
	kind  dataset.Kind
}{
	{match: func(n string) bool {
		return n == "id" || strings.HasSuffix(n, "_id") || strings.HasSuffix(n, "key")
	}, kind: dataset.KindInteger},
	{match: func(n string) bool { return strings.HasPrefix(n, "is_") }, kind: dataset.KindBoolean},
	{match: containsAny("time"), kind: dataset.KindTimestamp},
	{match: containsAny("date"), kind: dataset.KindDate},
	{match: containsAny("count", "number", "total", "quantity"), kind: dataset.KindInteger},
	{match: containsAny("price", "cost", "amount", "salary", "revenue"), kind: dataset.KindFloat},
	{match: containsAny("email", "phone", "address", "description"), kind: dataset.KindString},
}

func containsAny(subs ...string) func(string) bool {
	return func(n string) bool {
		for _, s := range subs {
			if strings.Contains(n, s) {
				return true
			}
		}
		return false
	}
}

// NameType guesses a type from a column name alone. Text-like names get
// VARCHAR(maxVarchar); names that match no pattern get VARCHAR(100), or
// unbounded text where the dialect has no VARCHAR.
func NameType(d Dialect, name string, maxVarchar int) string {
	d = d.orDefault()
	if maxVarchar <= 0 {
		maxVarchar = DefaultMaxVarchar
	}
	n := strings.ToLower(strings.TrimSpace(name))
	for _, p := range namePatterns {
		if p.match(n) {
			return TypeForKind(d, p.kind, maxVarchar, false, maxVarchar)
		}
	}
	return typeSets[d].varcharOf(defaultVarchar, maxVarchar)
}
