package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"normalizer/internal/dataset"
)

// RowHash computes a deterministic SHA-256 hash from selected columns and
// writes it into Target on each row.
//
// It gives rows a stable, never-null identity, which is useful as a Fact
// table key when the natural key columns can be missing.
//
// JSON form:
//
//	{
//	  "type": "hash",
//	  "config": {
//	    "fields": ["order_id", "customer", "ordered_at"],
//	    "target": "row_hash",
//	    "include_field_names": true,
//	    "trim_space": true,
//	    "overwrite": true
//	  }
//	}
//
// Canonical form:
//   - Fields are concatenated in the given order using Separator.
//   - Missing values are encoded as a single NUL byte (0x00) so missing
//     differs from empty-string.
//   - time.Time values are encoded as RFC3339Nano in UTC.
//   - Output is a lowercase hex string (length 64).
type RowHash struct {
	// Fields is the ordered list of input columns. Empty means every
	// column except Target.
	Fields []string `json:"fields,omitempty"`

	// Target is the column receiving the hash. It is appended when absent.
	Target string `json:"target"`

	// IncludeFieldNames includes "field=value" in the canonical form.
	// This reduces accidental collisions when many fields are missing/empty.
	IncludeFieldNames bool `json:"include_field_names,omitempty"`

	// Separator used between field components. Defaults to ASCII Unit
	// Separator (0x1f).
	Separator string `json:"separator,omitempty"`

	// Overwrite replaces existing non-missing Target values. When false
	// only missing Target cells are filled.
	Overwrite bool `json:"overwrite,omitempty"`

	// TrimSpace trims leading/trailing whitespace of text values before
	// hashing.
	TrimSpace bool `json:"trim_space,omitempty"`
}

func (RowHash) Type() string { return "hash" }
func (RowHash) sealed()      {}

func (h RowHash) Apply(d *dataset.Dataset) (*dataset.Dataset, error) {
	if h.Target == "" {
		return nil, fmt.Errorf("hash: target is required")
	}
	fields := h.Fields
	if len(fields) == 0 {
		for _, c := range d.Columns {
			if c != h.Target {
				fields = append(fields, c)
			}
		}
	}
	idx, err := columnIndexes(d, fields, nil)
	if err != nil {
		return nil, err
	}

	sep := h.Separator
	if sep == "" {
		sep = "\x1f"
	}

	ti := d.Index(h.Target)
	vals := make([]any, d.Len())
	for i, row := range d.Rows {
		if ti >= 0 && !h.Overwrite && !dataset.IsNull(row[ti]) {
			vals[i] = row[ti]
			continue
		}
		sum := hashRow(row, fields, idx, sep, h.IncludeFieldNames, h.TrimSpace)
		vals[i] = hex.EncodeToString(sum[:])
	}
	if ti >= 0 {
		return d.SetColumn(h.Target, vals)
	}
	return d.InsertColumn(-1, h.Target, dataset.KindString, vals)
}

func hashRow(row []any, names []string, idx []int, sep string, includeNames, trimSpace bool) [sha256.Size]byte {
	var b strings.Builder
	b.Grow(len(idx) * 20)

	for i, j := range idx {
		if i > 0 {
			b.WriteString(sep)
		}
		if includeNames {
			b.WriteString(names[i])
			b.WriteByte('=')
		}
		appendCanonicalValue(&b, row[j], trimSpace)
	}
	return sha256.Sum256([]byte(b.String()))
}

// appendCanonicalValue appends a stable, canonical representation of v.
// It avoids fmt.Sprint for common types to reduce allocations.
func appendCanonicalValue(b *strings.Builder, v any, trimSpace bool) {
	if dataset.IsNull(v) {
		b.WriteByte('\x00')
		return
	}
	switch t := v.(type) {
	case string:
		if trimSpace && hasEdgeSpace(t) {
			t = strings.TrimSpace(t)
		}
		b.WriteString(t)
	case []byte:
		s := string(t)
		if trimSpace && hasEdgeSpace(s) {
			s = strings.TrimSpace(s)
		}
		b.WriteString(s)
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case int:
		b.WriteString(strconv.Itoa(t))
	case int32:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case float32:
		b.WriteString(strconv.FormatFloat(float64(t), 'g', -1, 32))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case time.Time:
		b.WriteString(t.UTC().Format(time.RFC3339Nano))
	default:
		b.WriteString(fmt.Sprint(t))
	}
}

func hasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	isSpace := func(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f' }
	return isSpace(s[0]) || isSpace(s[len(s)-1])
}
