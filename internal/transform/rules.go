package transform

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"normalizer/internal/dataset"
)

//
// RemoveDuplicates
//

// RemoveDuplicates drops rows repeating an earlier combination of Columns
// (all columns when empty). Keep is "first" (default), "last", or "none"
// to drop every row of a repeated combination.
type RemoveDuplicates struct {
	Columns []string `json:"columns,omitempty"`
	Keep    string   `json:"keep,omitempty"`
}

func (RemoveDuplicates) Type() string { return "remove_duplicates" }
func (RemoveDuplicates) sealed()      {}

func (r RemoveDuplicates) Apply(d *dataset.Dataset) (*dataset.Dataset, error) {
	idx, err := columnIndexes(d, r.Columns, nil)
	if err != nil {
		return nil, err
	}
	keys := make([]string, d.Len())
	count := make(map[string]int, d.Len())
	for i, row := range d.Rows {
		k, err := dataset.RowKey(row, idx)
		if err != nil {
			return nil, fmt.Errorf("remove_duplicates: row %d: %w", i, err)
		}
		keys[i] = k
		count[k]++
	}

	keep := make([]bool, d.Len())
	switch strings.ToLower(r.Keep) {
	case "", "first":
		seen := make(map[string]bool, len(count))
		for i, k := range keys {
			keep[i] = !seen[k]
			seen[k] = true
		}
	case "last":
		seen := make(map[string]bool, len(count))
		for i := len(keys) - 1; i >= 0; i-- {
			keep[i] = !seen[keys[i]]
			seen[keys[i]] = true
		}
	case "none", "false":
		for i, k := range keys {
			keep[i] = count[k] == 1
		}
	default:
		return nil, fmt.Errorf("remove_duplicates: unknown keep %q (want first|last|none)", r.Keep)
	}

	i := 0
	return d.Filter(func([]any) bool {
		ok := keep[i]
		i++
		return ok
	}), nil
}

//
// FillMissing
//

// FillMissing replaces missing values. Method is one of constant (default,
// using Value), mean, median, mode, forward or backward. mean and median
// need numeric columns. Columns defaults to all columns.
type FillMissing struct {
	Columns []string `json:"columns,omitempty"`
	Method  string   `json:"method,omitempty"`
	Value   any      `json:"value,omitempty"`
}

func (FillMissing) Type() string { return "fill_missing" }
func (FillMissing) sealed()      {}

func (f FillMissing) Apply(d *dataset.Dataset) (*dataset.Dataset, error) {
	idx, err := columnIndexes(d, f.Columns, nil)
	if err != nil {
		return nil, err
	}
	out := d.Clone()
	for _, j := range idx {
		if err := f.fill(out, j); err != nil {
			return nil, fmt.Errorf("fill_missing: column %s: %w", d.Columns[j], err)
		}
	}
	reinferColumns(out, idx)
	return out, nil
}

func (f FillMissing) fill(d *dataset.Dataset, j int) error {
	var kind dataset.Kind
	if j < len(d.Kinds) {
		kind = d.Kinds[j]
	}
	setAll := func(v any) {
		for _, row := range d.Rows {
			if dataset.IsNull(row[j]) {
				row[j] = v
			}
		}
	}

	switch strings.ToLower(f.Method) {
	case "", "constant":
		v := f.Value
		if v == nil {
			v = ""
		}
		setAll(coerce(v, kind))
	case "mean", "median":
		vals := numericValues(d, j)
		if vals == nil && kind != dataset.KindUnknown && !kind.Numeric() {
			return fmt.Errorf("%s needs a numeric column, got %s", f.Method, kind)
		}
		if len(vals) == 0 {
			return nil
		}
		if strings.EqualFold(f.Method, "mean") {
			setAll(mean(vals))
		} else {
			setAll(median(vals))
		}
	case "mode":
		if v, ok := mode(d, j); ok {
			setAll(v)
		} else if f.Value != nil {
			setAll(coerce(f.Value, kind))
		}
	case "forward", "ffill":
		var last any
		for _, row := range d.Rows {
			if dataset.IsNull(row[j]) {
				row[j] = last
				continue
			}
			last = row[j]
		}
	case "backward", "bfill":
		var next any
		for i := len(d.Rows) - 1; i >= 0; i-- {
			row := d.Rows[i]
			if dataset.IsNull(row[j]) {
				row[j] = next
				continue
			}
			next = row[j]
		}
	default:
		return fmt.Errorf("unknown method %q", f.Method)
	}
	return nil
}

func numericValues(d *dataset.Dataset, j int) []float64 {
	var out []float64
	for _, row := range d.Rows {
		if f, ok := toFloat(row[j]); ok {
			out = append(out, f)
		}
	}
	return out
}

func mean(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// mode returns the most frequent non-null value; ties go to the value seen
// first.
func mode(d *dataset.Dataset, j int) (any, bool) {
	count := make(map[string]int)
	first := make(map[string]any)
	var order []string
	for _, row := range d.Rows {
		if dataset.IsNull(row[j]) {
			continue
		}
		k, err := dataset.Key(row[j])
		if err != nil {
			continue
		}
		if _, ok := first[k]; !ok {
			first[k] = row[j]
			order = append(order, k)
		}
		count[k]++
	}
	best, bestN := "", 0
	for _, k := range order {
		if count[k] > bestN {
			best, bestN = k, count[k]
		}
	}
	if bestN == 0 {
		return nil, false
	}
	return first[best], true
}

//
// DropMissing
//

// DropMissing removes rows with missing values among Columns (all when
// empty). How "any" (default) drops a row with any missing value, "all"
// only rows missing every value. Threshold > 0 overrides How and keeps rows
// with at least that many present values.
type DropMissing struct {
	Columns   []string `json:"columns,omitempty"`
	How       string   `json:"how,omitempty"`
	Threshold int      `json:"threshold,omitempty"`
}

func (DropMissing) Type() string { return "drop_missing" }
func (DropMissing) sealed()      {}

func (r DropMissing) Apply(d *dataset.Dataset) (*dataset.Dataset, error) {
	idx, err := columnIndexes(d, r.Columns, nil)
	if err != nil {
		return nil, err
	}
	how := strings.ToLower(r.How)
	if how != "" && how != "any" && how != "all" {
		return nil, fmt.Errorf("drop_missing: unknown how %q (want any|all)", r.How)
	}
	return d.Filter(func(row []any) bool {
		present := 0
		for _, j := range idx {
			if !dataset.IsNull(row[j]) {
				present++
			}
		}
		switch {
		case r.Threshold > 0:
			return present >= r.Threshold
		case how == "all":
			return present > 0
		default:
			return present == len(idx)
		}
	}), nil
}

//
// ConvertType
//

// ConvertType coerces Columns to Target (string, integer, float, datetime,
// date or boolean). Values that cannot be converted become missing.
type ConvertType struct {
	Columns []string `json:"columns"`
	Target  string   `json:"target_type"`
}

func (ConvertType) Type() string { return "convert_type" }
func (ConvertType) sealed()      {}

func (c ConvertType) Apply(d *dataset.Dataset) (*dataset.Dataset, error) {
	kind, ok := dataset.ParseKind(c.Target)
	if !ok {
		return nil, fmt.Errorf("convert_type: unknown target %q", c.Target)
	}
	if len(c.Columns) == 0 {
		return d, nil
	}
	idx, err := columnIndexes(d, c.Columns, nil)
	if err != nil {
		return nil, err
	}
	out, err := mapCells(d, idx, func(v any) (any, error) { return convert(v, kind), nil })
	if err != nil {
		return nil, err
	}
	for _, j := range idx {
		out.Kinds[j] = kind
	}
	return out, nil
}

// convert returns v as kind k, or nil when it does not fit.
func convert(v any, k dataset.Kind) any {
	if dataset.IsNull(v) {
		return nil
	}
	switch k {
	case dataset.KindString:
		return dataset.Format(v)
	case dataset.KindInteger:
		switch t := v.(type) {
		case int64:
			return t
		case bool:
			return boolInt(t)
		case string:
			if n, ok := dataset.ParseAs(t, dataset.KindInteger); ok {
				return n
			}
		}
		if f, ok := toFloat(v); ok && f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return int64(f)
		}
		return nil
	case dataset.KindFloat:
		if b, ok := v.(bool); ok {
			return float64(boolInt(b))
		}
		if f, ok := toFloat(v); ok {
			return f
		}
		return nil
	case dataset.KindDate, dataset.KindTimestamp:
		switch t := v.(type) {
		case time.Time:
			if k == dataset.KindDate {
				y, m, day := t.Date()
				return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
			}
			return t
		case string:
			if p, ok := dataset.ParseAs(t, k); ok {
				return p
			}
		}
		return nil
	case dataset.KindBoolean:
		switch t := v.(type) {
		case bool:
			return t
		case string:
			if b, ok := dataset.ParseAs(t, dataset.KindBoolean); ok {
				return b
			}
			return nil
		}
		if f, ok := toFloat(v); ok {
			return f != 0
		}
		return nil
	default:
		return v
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// toFloat reads numeric cells and numeric strings.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case float64:
		if math.IsNaN(t) {
			return 0, false
		}
		return t, true
	case float32:
		return float64(t), true
	case string:
		f, ok := dataset.ParseAs(t, dataset.KindFloat)
		if !ok {
			return 0, false
		}
		return f.(float64), true
	}
	return 0, false
}

// coerce fits a configured value (often a JSON float64 or string) to the
// column kind when that is lossless, and returns it unchanged otherwise.
func coerce(v any, k dataset.Kind) any {
	switch k {
	case dataset.KindInteger:
		if f, ok := v.(float64); ok && f == math.Trunc(f) {
			return int64(f)
		}
		if s, ok := v.(string); ok {
			if n, ok := dataset.ParseAs(s, k); ok {
				return n
			}
		}
	case dataset.KindFloat:
		switch t := v.(type) {
		case int64:
			return float64(t)
		case int:
			return float64(t)
		case string:
			if f, ok := dataset.ParseAs(t, k); ok {
				return f
			}
		}
	case dataset.KindBoolean, dataset.KindDate, dataset.KindTimestamp:
		if s, ok := v.(string); ok {
			if p, ok := dataset.ParseAs(s, k); ok {
				return p
			}
		}
	}
	if i, ok := v.(int); ok {
		return int64(i)
	}
	return v
}

//
// RenameColumns
//

// RenameColumns renames columns by Mapping (old -> new). Names absent from
// the dataset are ignored.
type RenameColumns struct {
	Mapping map[string]string `json:"mapping"`
}

func (RenameColumns) Type() string { return "rename_column" }
func (RenameColumns) sealed()      {}

func (r RenameColumns) Apply(d *dataset.Dataset) (*dataset.Dataset, error) {
	out := d.Clone()
	seen := make(map[string]bool, len(out.Columns))
	for i, c := range out.Columns {
		if n, ok := r.Mapping[c]; ok && n != "" {
			out.Columns[i] = n
		}
		if seen[out.Columns[i]] {
			return nil, fmt.Errorf("rename_column: duplicate column %q after rename", out.Columns[i])
		}
		seen[out.Columns[i]] = true
	}
	return out, nil
}

//
// FilterRows
//

// FilterRows keeps rows where Column compares true against Value.
//
// Operator is one of == (default), !=, >, <, >=, <=, contains or
// not_contains. Numbers compare numerically (numeric strings in Value are
// accepted), timestamps chronologically, everything else as text. A
// missing cell fails every operator except != and not_contains.
type FilterRows struct {
	Column   string `json:"column"`
	Operator string `json:"operator,omitempty"`
	Value    any    `json:"value"`
}

func (FilterRows) Type() string { return "filter_rows" }
func (FilterRows) sealed()      {}

func (f FilterRows) Apply(d *dataset.Dataset) (*dataset.Dataset, error) {
	j, err := columnIndex(d, f.Column)
	if err != nil {
		return nil, err
	}
	op := f.Operator
	if op == "" {
		op = "=="
	}
	var test func(v any) bool
	switch op {
	case "==", "!=", ">", "<", ">=", "<=":
		test = func(v any) bool {
			if dataset.IsNull(v) {
				return op == "!="
			}
			c, ok := compare(v, f.Value)
			if !ok {
				return op == "!="
			}
			switch op {
			case "==":
				return c == 0
			case "!=":
				return c != 0
			case ">":
				return c > 0
			case "<":
				return c < 0
			case ">=":
				return c >= 0
			default:
				return c <= 0
			}
		}
	case "contains", "not_contains":
		needle := dataset.Format(f.Value)
		want := op == "contains"
		test = func(v any) bool {
			if dataset.IsNull(v) {
				return !want
			}
			return strings.Contains(dataset.Format(v), needle) == want
		}
	default:
		return nil, fmt.Errorf("filter_rows: unknown operator %q", f.Operator)
	}
	return d.Filter(func(row []any) bool { return test(row[j]) }), nil
}

// compare orders a cell against a configured value.
func compare(cell, value any) (int, bool) {
	if value == nil {
		return 0, false
	}
	switch c := cell.(type) {
	case int64, float64, int:
		a, _ := toFloat(c)
		b, ok := toFloat(value)
		if !ok {
			return 0, false
		}
		return cmpFloat(a, b), true
	case time.Time:
		var t time.Time
		switch v := value.(type) {
		case time.Time:
			t = v
		case string:
			p, ok := dataset.ParseAs(v, dataset.KindTimestamp)
			if !ok {
				return 0, false
			}
			t = p.(time.Time)
		default:
			return 0, false
		}
		return c.Compare(t), true
	case bool:
		var b bool
		switch v := value.(type) {
		case bool:
			b = v
		case string:
			p, ok := dataset.ParseAs(v, dataset.KindBoolean)
			if !ok {
				return 0, false
			}
			b = p.(bool)
		default:
			return 0, false
		}
		return int(boolInt(c) - boolInt(b)), true
	default:
		return strings.Compare(dataset.Format(cell), dataset.Format(value)), true
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

//
// TrimStrings
//

// TrimStrings strips surrounding whitespace from text cells in Columns
// (all string columns when empty).
type TrimStrings struct {
	Columns []string `json:"columns,omitempty"`
}

func (TrimStrings) Type() string { return "trim_strings" }
func (TrimStrings) sealed()      {}

func (r TrimStrings) Apply(d *dataset.Dataset) (*dataset.Dataset, error) {
	idx, err := columnIndexes(d, r.Columns, isString)
	if err != nil {
		return nil, err
	}
	return mapCells(d, idx, func(v any) (any, error) {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s), nil
		}
		return v, nil
	})
}

//
// ReplaceValues
//

// ReplaceValues maps cells of Column whose text form equals a Mapping key
// to the mapped value.
type ReplaceValues struct {
	Column  string         `json:"column"`
	Mapping map[string]any `json:"mapping"`
}

func (ReplaceValues) Type() string { return "replace_values" }
func (ReplaceValues) sealed()      {}

func (r ReplaceValues) Apply(d *dataset.Dataset) (*dataset.Dataset, error) {
	j, err := columnIndex(d, r.Column)
	if err != nil {
		return nil, err
	}
	kind := d.Kind(r.Column)
	return mapCells(d, []int{j}, func(v any) (any, error) {
		if dataset.IsNull(v) {
			return v, nil
		}
		if nv, ok := r.Mapping[dataset.Format(v)]; ok {
			return coerce(nv, kind), nil
		}
		return v, nil
	})
}

//
// NormalizeText
//

// NormalizeText changes the letter case of Columns (all string columns when
// empty). Case is lower (default), upper or title. Non-text cells are
// formatted first.
type NormalizeText struct {
	Columns []string `json:"columns,omitempty"`
	Case    string   `json:"case,omitempty"`
}

func (NormalizeText) Type() string { return "normalize_text" }
func (NormalizeText) sealed()      {}

func (r NormalizeText) Apply(d *dataset.Dataset) (*dataset.Dataset, error) {
	var mk func() cases.Caser
	switch strings.ToLower(r.Case) {
	case "", "lower":
		mk = func() cases.Caser { return cases.Lower(language.Und) }
	case "upper":
		mk = func() cases.Caser { return cases.Upper(language.Und) }
	case "title":
		mk = func() cases.Caser { return cases.Title(language.Und) }
	default:
		return nil, fmt.Errorf("normalize_text: unknown case %q (want lower|upper|title)", r.Case)
	}
	idx, err := columnIndexes(d, r.Columns, isString)
	if err != nil {
		return nil, err
	}
	c := mk()
	return mapCells(d, idx, func(v any) (any, error) {
		if dataset.IsNull(v) {
			return v, nil
		}
		return c.String(dataset.Format(v)), nil
	})
}

//
// ExtractPattern
//

// ExtractPattern writes the first capture group of Pattern (the whole match
// when the pattern has no group) found in Column into NewColumn. Cells that
// do not match get a missing value. NewColumn is replaced when it exists
// and appended otherwise.
type ExtractPattern struct {
	Column    string `json:"column"`
	Pattern   string `json:"pattern"`
	NewColumn string `json:"new_column"`
}

func (ExtractPattern) Type() string { return "extract_pattern" }
func (ExtractPattern) sealed()      {}

func (r ExtractPattern) Apply(d *dataset.Dataset) (*dataset.Dataset, error) {
	if r.NewColumn == "" {
		return nil, fmt.Errorf("extract_pattern: new_column is required")
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return nil, fmt.Errorf("extract_pattern: %w", err)
	}
	j, err := columnIndex(d, r.Column)
	if err != nil {
		return nil, err
	}
	vals := make([]any, d.Len())
	for i, row := range d.Rows {
		if dataset.IsNull(row[j]) {
			continue
		}
		m := re.FindStringSubmatch(dataset.Format(row[j]))
		switch {
		case m == nil:
		case len(m) > 1:
			vals[i] = m[1]
		default:
			vals[i] = m[0]
		}
	}
	if d.Has(r.NewColumn) {
		return d.SetColumn(r.NewColumn, vals)
	}
	return d.InsertColumn(-1, r.NewColumn, dataset.KindOfValues(vals), vals)
}
