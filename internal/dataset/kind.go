package dataset

import (
	"strings"
	"time"
)

// Kind is the coarse column type carried alongside each column.
type Kind int

const (
	KindUnknown Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindDate
	KindTimestamp
	KindString
)

var kindNames = map[Kind]string{
	KindUnknown:   "unknown",
	KindInteger:   "integer",
	KindFloat:     "float",
	KindBoolean:   "boolean",
	KindDate:      "date",
	KindTimestamp: "timestamp",
	KindString:    "string",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Numeric reports whether values of this kind can enter arithmetic.
func (k Kind) Numeric() bool { return k == KindInteger || k == KindFloat }

// ParseKind maps a user-facing type name onto a Kind. It accepts the names
// produced by String plus a few common aliases ("int", "text", "datetime").
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "integer", "int", "bigint":
		return KindInteger, true
	case "float", "double", "numeric", "decimal":
		return KindFloat, true
	case "boolean", "bool":
		return KindBoolean, true
	case "date":
		return KindDate, true
	case "timestamp", "datetime":
		return KindTimestamp, true
	case "string", "text":
		return KindString, true
	default:
		return KindUnknown, false
	}
}

// KindOfValue returns the Kind of a single cell.
func KindOfValue(v any) Kind {
	switch t := v.(type) {
	case nil:
		return KindUnknown
	case int64, int, int32:
		return KindInteger
	case float64:
		if IsNull(t) {
			return KindUnknown
		}
		return KindFloat
	case float32:
		return KindFloat
	case bool:
		return KindBoolean
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return KindDate
		}
		return KindTimestamp
	default:
		return KindString
	}
}

// KindOfValues folds the kinds of a column. Integers widen to float, dates
// widen to timestamps, and any other disagreement yields KindString.
func KindOfValues(values []any) Kind {
	k := KindUnknown
	for _, v := range values {
		k = widen(k, KindOfValue(v))
	}
	return k
}

func widen(a, b Kind) Kind {
	switch {
	case a == b:
		return a
	case a == KindUnknown:
		return b
	case b == KindUnknown:
		return a
	case a.Numeric() && b.Numeric():
		return KindFloat
	case (a == KindDate && b == KindTimestamp) || (a == KindTimestamp && b == KindDate):
		return KindTimestamp
	default:
		return KindString
	}
}

func kindsOf(columns []string, rows [][]any) []Kind {
	out := make([]Kind, len(columns))
	for _, r := range rows {
		for i := range out {
			if i < len(r) {
				out[i] = widen(out[i], KindOfValue(r[i]))
			}
		}
	}
	return out
}
