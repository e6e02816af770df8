package storage

import (
	"fmt"
	"strings"
	"time"
)

// NormalizeKey converts a key value to a canonical string form, suitable
// for in-memory conflict checks (e.g. "Germany" or "8429529").
//
// Backends must not assume a particular underlying type for keys; this
// helper keeps conflict detection consistent across backends.
func NormalizeKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case int64:
		return fmt.Sprintf("%d", t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int:
		return fmt.Sprintf("%d", t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprint(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// DedupeRows drops rows whose conflict key repeats an earlier row. Rows are
// returned unchanged when conflictColumns is empty or names a column that
// is not in columns.
func DedupeRows(columns []string, rows [][]any, conflictColumns []string) [][]any {
	if len(conflictColumns) == 0 {
		return rows
	}
	idx := make([]int, len(conflictColumns))
	for i, c := range conflictColumns {
		idx[i] = -1
		for j, col := range columns {
			if col == c {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return rows
		}
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([][]any, 0, len(rows))
	var b strings.Builder
	for _, r := range rows {
		b.Reset()
		for i, j := range idx {
			if i > 0 {
				b.WriteByte(0x1f)
			}
			b.WriteString(NormalizeKey(r[j]))
		}
		k := b.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
