package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Querier is the part of *sql.DB (or *sql.Tx, *sql.Conn) ReadSQL needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ReadSQL runs query and collects the result set into a Dataset. Driver
// values are normalized onto the Dataset value set: []byte becomes string,
// sized integers become int64, float32 becomes float64.
func ReadSQL(ctx context.Context, db Querier, query string, args ...any) (*Dataset, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sql: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sql: columns: %w", err)
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sql: scan row %d: %w", len(out)+1, err)
		}
		for i, v := range vals {
			vals[i] = normalizeDriverValue(v)
		}
		out = append(out, vals)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sql: iterate rows: %w", err)
	}
	return New(cols, out), nil
}

func normalizeDriverValue(v any) any {
	switch t := v.(type) {
	case nil, int64, float64, bool, string:
		return v
	case []byte:
		return string(t)
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		if t > 1<<63-1 {
			return strconv.FormatUint(t, 10)
		}
		return int64(t)
	case float32:
		return float64(t)
	case time.Time:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}
