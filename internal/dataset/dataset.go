// Package dataset holds the in-memory tabular representation every other
// package works on, plus the readers that build it from CSV, JSON, XLSX,
// HTML and SQL sources.
//
// A Dataset is column-ordered and row-major. Cell values are one of:
//
//	nil        missing value
//	int64      integer
//	float64    floating point
//	bool       boolean
//	time.Time  date or timestamp
//	string     text
//
// Readers normalize driver- and parser-specific types into that set. Any
// other type is carried through untouched but is rejected by Key, which is
// what the analyzer and decomposer use for grouping.
//
// Datasets are treated as read-only inputs: every transforming method
// returns a new Dataset and leaves the receiver alone. Row slices may be
// shared between a Dataset and the one derived from it, so callers that
// mutate cells must Clone first.
package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Dataset is an ordered set of named columns and the rows that fill them.
type Dataset struct {
	Columns []string
	// Kinds is parallel to Columns. KindUnknown means no value was seen.
	Kinds []Kind
	Rows  [][]any
}

// New builds a Dataset and infers column kinds from the values.
//
// Rows shorter than columns are padded with nil; longer rows are cut.
func New(columns []string, rows [][]any) *Dataset {
	d := &Dataset{
		Columns: append([]string(nil), columns...),
		Rows:    make([][]any, 0, len(rows)),
	}
	for _, r := range rows {
		d.Rows = append(d.Rows, fitRow(r, len(columns)))
	}
	d.Kinds = kindsOf(d.Columns, d.Rows)
	return d
}

func fitRow(r []any, n int) []any {
	if len(r) == n {
		return r
	}
	out := make([]any, n)
	copy(out, r)
	return out
}

// Len returns the number of rows. A nil Dataset has zero rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Width returns the number of columns.
func (d *Dataset) Width() int {
	if d == nil {
		return 0
	}
	return len(d.Columns)
}

// Empty reports whether the dataset has no columns or no rows.
func (d *Dataset) Empty() bool { return d.Len() == 0 || d.Width() == 0 }

// Index returns the position of a column, or -1.
func (d *Dataset) Index(name string) int {
	if d == nil {
		return -1
	}
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether the dataset carries the named column.
func (d *Dataset) Has(name string) bool { return d.Index(name) >= 0 }

// Kind returns the kind of the named column, KindUnknown when absent.
func (d *Dataset) Kind(name string) Kind {
	i := d.Index(name)
	if i < 0 || i >= len(d.Kinds) {
		return KindUnknown
	}
	return d.Kinds[i]
}

// Column returns the values of one column in row order.
func (d *Dataset) Column(name string) ([]any, error) {
	i := d.Index(name)
	if i < 0 {
		return nil, &ColumnNotFoundError{Column: name}
	}
	out := make([]any, len(d.Rows))
	for r, row := range d.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// Clone returns a deep copy of the row matrix.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	out := &Dataset{
		Columns: append([]string(nil), d.Columns...),
		Kinds:   append([]Kind(nil), d.Kinds...),
		Rows:    make([][]any, len(d.Rows)),
	}
	for i, r := range d.Rows {
		out.Rows[i] = append([]any(nil), r...)
	}
	return out
}

// Project returns a dataset restricted to cols, in the order given.
//
// Errors:
//   - *ColumnNotFoundError for the first column that is not present.
func (d *Dataset) Project(cols []string) (*Dataset, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		j := d.Index(c)
		if j < 0 {
			return nil, &ColumnNotFoundError{Column: c}
		}
		idx[i] = j
	}

	out := &Dataset{
		Columns: append([]string(nil), cols...),
		Kinds:   make([]Kind, len(cols)),
		Rows:    make([][]any, len(d.Rows)),
	}
	for i, j := range idx {
		if j < len(d.Kinds) {
			out.Kinds[i] = d.Kinds[j]
		}
	}
	for r, row := range d.Rows {
		nr := make([]any, len(idx))
		for i, j := range idx {
			nr[i] = row[j]
		}
		out.Rows[r] = nr
	}
	return out, nil
}

// DropNulls returns the rows that have no missing value in any column.
func (d *Dataset) DropNulls() *Dataset {
	out := d.withRows(make([][]any, 0, len(d.Rows)))
	for _, r := range d.Rows {
		if !rowHasNull(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

func rowHasNull(r []any) bool {
	for _, v := range r {
		if IsNull(v) {
			return true
		}
	}
	return false
}

// DedupOn keeps the first row for every distinct combination of cols.
// An empty cols slice dedupes on every column.
//
// Errors:
//   - *ColumnNotFoundError when a key column is absent.
//   - the error from Key when a key cell holds an unsupported type.
func (d *Dataset) DedupOn(cols []string) (*Dataset, error) {
	idx, err := d.indexes(cols)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(d.Rows))
	out := d.withRows(make([][]any, 0, len(d.Rows)))
	for _, r := range d.Rows {
		k, err := RowKey(r, idx)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out.Rows = append(out.Rows, r)
	}
	return out, nil
}

func (d *Dataset) indexes(cols []string) ([]int, error) {
	if len(cols) == 0 {
		idx := make([]int, len(d.Columns))
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	idx := make([]int, len(cols))
	for i, c := range cols {
		j := d.Index(c)
		if j < 0 {
			return nil, &ColumnNotFoundError{Column: c}
		}
		idx[i] = j
	}
	return idx, nil
}

// Filter returns the rows for which keep returns true.
func (d *Dataset) Filter(keep func(row []any) bool) *Dataset {
	out := d.withRows(make([][]any, 0, len(d.Rows)))
	for _, r := range d.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Sample returns n rows picked with a seeded generator. Source order is
// kept so a sample of a sorted dataset is still sorted. When n <= 0 or
// n >= Len the receiver is returned unchanged.
func (d *Dataset) Sample(n int, seed uint64) *Dataset {
	if n <= 0 || n >= d.Len() {
		return d
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pick := rng.Perm(len(d.Rows))[:n]
	sort.Ints(pick)

	out := d.withRows(make([][]any, 0, n))
	for _, i := range pick {
		out.Rows = append(out.Rows, d.Rows[i])
	}
	return out
}

// InsertColumn returns a dataset with a new column at position at.
// values must have one entry per row.
func (d *Dataset) InsertColumn(at int, name string, kind Kind, values []any) (*Dataset, error) {
	if len(values) != len(d.Rows) {
		return nil, fmt.Errorf("dataset: insert column %q: got %d values for %d rows", name, len(values), len(d.Rows))
	}
	if d.Has(name) {
		return nil, fmt.Errorf("dataset: insert column %q: column already exists", name)
	}
	if at < 0 || at > len(d.Columns) {
		at = len(d.Columns)
	}

	out := &Dataset{
		Columns: insertAt(d.Columns, at, name),
		Kinds:   insertAt(d.kindsPadded(), at, kind),
		Rows:    make([][]any, len(d.Rows)),
	}
	for i, r := range d.Rows {
		out.Rows[i] = insertAt(r, at, values[i])
	}
	return out, nil
}

// SetColumn returns a dataset whose named column is replaced by values.
// The column kind is re-inferred.
func (d *Dataset) SetColumn(name string, values []any) (*Dataset, error) {
	j := d.Index(name)
	if j < 0 {
		return nil, &ColumnNotFoundError{Column: name}
	}
	if len(values) != len(d.Rows) {
		return nil, fmt.Errorf("dataset: set column %q: got %d values for %d rows", name, len(values), len(d.Rows))
	}
	out := d.Clone()
	for i := range out.Rows {
		out.Rows[i][j] = values[i]
	}
	out.Kinds = out.kindsPadded()
	out.Kinds[j] = KindOfValues(values)
	return out, nil
}

// Reinfer recomputes Kinds from the current values.
func (d *Dataset) Reinfer() { d.Kinds = kindsOf(d.Columns, d.Rows) }

func (d *Dataset) kindsPadded() []Kind {
	k := make([]Kind, len(d.Columns))
	copy(k, d.Kinds)
	return k
}

func (d *Dataset) withRows(rows [][]any) *Dataset {
	return &Dataset{
		Columns: append([]string(nil), d.Columns...),
		Kinds:   d.kindsPadded(),
		Rows:    rows,
	}
}

func insertAt[T any](s []T, at int, v T) []T {
	out := make([]T, 0, len(s)+1)
	out = append(out, s[:at]...)
	out = append(out, v)
	return append(out, s[at:]...)
}

// IsNull reports whether v is a missing value. NaN floats count as missing.
func IsNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(t)
	default:
		return false
	}
}

// Key converts a cell into a canonical string for grouping and lookups.
//
// Integral floats collapse onto their integer form so 3 and 3.0 group
// together, the same way a numeric column compares after a CSV round trip.
//
// Errors:
//   - *UnsupportedValueError for composite values (slices, maps, structs
//     other than time.Time).
func Key(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case int:
		return strconv.Itoa(t), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return strconv.FormatInt(int64(t), 10), nil
		}
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case float32:
		return Key(float64(t))
	case bool:
		return strconv.FormatBool(t), nil
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), nil
	case []byte:
		return string(t), nil
	default:
		return "", &UnsupportedValueError{Value: v}
	}
}

// RowKey joins the Key of the cells at idx with a separator that cannot
// appear in numeric or boolean keys.
func RowKey(row []any, idx []int) (string, error) {
	if len(idx) == 1 {
		return Key(row[idx[0]])
	}
	var b strings.Builder
	for i, j := range idx {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		if IsNull(row[j]) {
			b.WriteByte(0)
			continue
		}
		k, err := Key(row[j])
		if err != nil {
			return "", err
		}
		b.WriteString(k)
	}
	return b.String(), nil
}

// Format renders a cell for text outputs (CSV, spreadsheets, reports).
// Missing values render as the empty string.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if math.IsNaN(t) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
