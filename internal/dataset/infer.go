package dataset

import (
	"strconv"
	"strings"
	"time"
)

// DefaultNullValues are the text tokens treated as missing by the text
// readers when TextOptions.NullValues is nil.
var DefaultNullValues = []string{"", "NA", "N/A", "n/a", "null", "NULL", "None", "NaN", "nan", "-"}

// TextOptions control how string cells from CSV, XLSX and HTML sources are
// turned into typed values.
type TextOptions struct {
	// NullValues are matched after trimming. nil means DefaultNullValues;
	// an empty non-nil slice disables null detection except for "".
	NullValues []string
	// NoInference keeps every non-null cell as a string.
	NoInference bool
	// KeepSpace disables trimming of cell values.
	KeepSpace bool
}

func (o TextOptions) nullSet() map[string]struct{} {
	vals := o.NullValues
	if vals == nil {
		vals = DefaultNullValues
	}
	out := make(map[string]struct{}, len(vals)+1)
	out[""] = struct{}{}
	for _, v := range vals {
		out[v] = struct{}{}
	}
	return out
}

// FromStrings converts a header row and string records into a typed
// Dataset. Column kinds are inferred per column; cells that fail to parse
// as the inferred kind cannot occur because inference requires every
// non-null cell to parse.
//
// Records with a field count different from the header are skipped; text
// sources are best-effort and a ragged line must not fail the read.
func FromStrings(headers []string, records [][]string, opt TextOptions) *Dataset {
	cols := make([]string, len(headers))
	for i, h := range headers {
		cols[i] = strings.TrimSpace(h)
	}
	nulls := opt.nullSet()

	clean := make([][]string, 0, len(records))
	for _, rec := range records {
		if len(rec) != len(cols) {
			continue
		}
		if !opt.KeepSpace {
			for i := range rec {
				rec[i] = strings.TrimSpace(rec[i])
			}
		}
		clean = append(clean, rec)
	}

	kinds := make([]Kind, len(cols))
	for i := range kinds {
		kinds[i] = KindString
	}
	if !opt.NoInference {
		kinds = inferKinds(len(cols), clean, nulls)
	}

	d := &Dataset{Columns: cols, Kinds: kinds, Rows: make([][]any, len(clean))}
	for r, rec := range clean {
		row := make([]any, len(cols))
		for i, s := range rec {
			if _, isNull := nulls[strings.TrimSpace(s)]; isNull {
				continue
			}
			v, ok := ParseAs(s, kinds[i])
			if !ok {
				v = s
			}
			row[i] = v
		}
		d.Rows[r] = row
	}
	return d
}

// inferKinds infers a coarse kind per column. A column whose cells are all
// null is KindUnknown.
func inferKinds(width int, rows [][]string, nulls map[string]struct{}) []Kind {
	out := make([]Kind, width)

	for col := 0; col < width; col++ {
		var seen bool
		allInt := true
		allFloat := true
		allBool := true
		allDate := true
		allTS := true

		for _, r := range rows {
			v := strings.TrimSpace(r[col])
			if _, isNull := nulls[v]; isNull {
				continue
			}
			seen = true

			if allInt {
				if _, err := strconv.ParseInt(v, 10, 64); err != nil {
					allInt = false
				}
			}
			if allFloat {
				if _, err := strconv.ParseFloat(v, 64); err != nil {
					allFloat = false
				}
			}
			if allBool {
				if _, ok := parseBoolLoose(v); !ok {
					allBool = false
				}
			}
			if allDate {
				if _, ok := parseDateLoose(v); !ok {
					allDate = false
				}
			}
			if allTS {
				if _, ok := parseTimestampLoose(v); !ok {
					allTS = false
				}
			}
		}

		switch {
		case !seen:
			out[col] = KindUnknown
		case allInt:
			out[col] = KindInteger
		case allBool:
			out[col] = KindBoolean
		case allDate:
			out[col] = KindDate
		case allTS:
			out[col] = KindTimestamp
		case allFloat:
			out[col] = KindFloat
		default:
			out[col] = KindString
		}
	}
	return out
}

// ParseAs converts a string cell to the Go value used for kind k.
// KindString and KindUnknown return s unchanged.
func ParseAs(s string, k Kind) (any, bool) {
	v := strings.TrimSpace(s)
	switch k {
	case KindInteger:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case KindFloat:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case KindBoolean:
		b, ok := parseBoolLoose(v)
		if !ok {
			return nil, false
		}
		return b, true
	case KindDate:
		t, ok := parseDateLoose(v)
		if !ok {
			return nil, false
		}
		return t, true
	case KindTimestamp:
		if t, ok := parseTimestampLoose(v); ok {
			return t, true
		}
		if t, ok := parseDateLoose(v); ok {
			return t, true
		}
		return nil, false
	default:
		return s, true
	}
}

func parseBoolLoose(s string) (bool, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "1", "t", "true", "yes", "y":
		return true, true
	case "0", "f", "false", "no", "n":
		return false, true
	default:
		return false, false
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
}

var tsLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"02.01.2006 15:04:05",
}

func parseDateLoose(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseTimestampLoose(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range tsLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
