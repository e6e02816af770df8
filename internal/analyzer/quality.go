package analyzer

import (
	"math"
	"slices"
	"unicode/utf8"

	"normalizer/internal/dataset"
)

// Profile summarizes a dataset column by column.
type Profile struct {
	Rows    int
	Columns int
	Fields  []FieldProfile
}

// FieldProfile describes one column. Numeric is set for numeric columns,
// Text for string columns.
type FieldProfile struct {
	Name     string
	Kind     dataset.Kind
	Nulls    int
	NullPct  float64
	Distinct int
	Numeric  *NumericStats
	Text     *TextStats
}

// NumericStats are computed over non-null values. Std is the sample
// standard deviation (n-1); it is 0 for a single value.
type NumericStats struct {
	Min, Max, Mean, Std float64
}

// TextStats are rune lengths over non-null values.
type TextStats struct {
	MinLen, MaxLen int
	AvgLen         float64
}

// Profile computes per-column statistics over every row.
func (a *Analyzer) Profile(d *dataset.Dataset) Profile {
	p := Profile{Rows: d.Len(), Columns: d.Width()}
	for i, col := range d.Columns {
		fp := FieldProfile{Name: col, Kind: d.Kind(col), Distinct: distinctCount(d, i)}
		var nums []float64
		var lens []int
		for _, row := range d.Rows {
			v := row[i]
			if dataset.IsNull(v) {
				fp.Nulls++
				continue
			}
			if f, ok := toFloat(v); ok {
				nums = append(nums, f)
			}
			if s, ok := v.(string); ok {
				lens = append(lens, utf8.RuneCountInString(s))
			}
		}
		if p.Rows > 0 {
			fp.NullPct = 100 * float64(fp.Nulls) / float64(p.Rows)
		}
		if fp.Kind.Numeric() && len(nums) > 0 {
			fp.Numeric = numericStats(nums)
		}
		if fp.Kind == dataset.KindString && len(lens) > 0 {
			ts := &TextStats{MinLen: lens[0], MaxLen: lens[0]}
			total := 0
			for _, n := range lens {
				ts.MinLen = min(ts.MinLen, n)
				ts.MaxLen = max(ts.MaxLen, n)
				total += n
			}
			ts.AvgLen = float64(total) / float64(len(lens))
			fp.Text = ts
		}
		p.Fields = append(p.Fields, fp)
	}
	return p
}

func numericStats(v []float64) *NumericStats {
	ns := &NumericStats{Min: v[0], Max: v[0]}
	var sum float64
	for _, x := range v {
		ns.Min = math.Min(ns.Min, x)
		ns.Max = math.Max(ns.Max, x)
		sum += x
	}
	ns.Mean = sum / float64(len(v))
	if len(v) > 1 {
		var ss float64
		for _, x := range v {
			ss += (x - ns.Mean) * (x - ns.Mean)
		}
		ns.Std = math.Sqrt(ss / float64(len(v)-1))
	}
	return ns
}

// Thresholds used by DetectAnomalies.
const (
	HighMissingPct = 50.0
	IQRFactor      = 1.5
)

// Anomalies are data quality findings.
type Anomalies struct {
	// HighMissing lists columns with more than HighMissingPct percent nulls.
	HighMissing []string
	// LowVariance lists columns with a single distinct value.
	LowVariance []string
	// Outliers lists numeric columns with values outside the IQR fences.
	Outliers []Outlier
	// DuplicateRows counts rows identical to an earlier row.
	DuplicateRows int
}

// Outlier reports the IQR fences of a column and how many values fall
// outside them.
type Outlier struct {
	Column       string
	Lower, Upper float64
	Count        int
}

// Empty reports whether no anomaly was found.
func (an Anomalies) Empty() bool {
	return len(an.HighMissing) == 0 && len(an.LowVariance) == 0 && len(an.Outliers) == 0 && an.DuplicateRows == 0
}

// DetectAnomalies runs the data quality checks over every row of d.
func (a *Analyzer) DetectAnomalies(d *dataset.Dataset) Anomalies {
	var out Anomalies
	if d.Empty() {
		return out
	}
	prof := a.Profile(d)
	for i, fp := range prof.Fields {
		if fp.NullPct > HighMissingPct {
			out.HighMissing = append(out.HighMissing, fp.Name)
		}
		if fp.Distinct == 1 {
			out.LowVariance = append(out.LowVariance, fp.Name)
		}
		if fp.Numeric == nil {
			continue
		}
		var vals []float64
		for _, row := range d.Rows {
			if f, ok := toFloat(row[i]); ok {
				vals = append(vals, f)
			}
		}
		if o, ok := iqrOutliers(fp.Name, vals); ok {
			out.Outliers = append(out.Outliers, o)
		}
	}

	idx := make([]int, d.Width())
	for i := range idx {
		idx[i] = i
	}
	seen := make(map[string]struct{}, d.Len())
	for _, row := range d.Rows {
		k, err := dataset.RowKey(row, idx)
		if err != nil {
			continue
		}
		if _, dup := seen[k]; dup {
			out.DuplicateRows++
			continue
		}
		seen[k] = struct{}{}
	}
	return out
}

func iqrOutliers(col string, vals []float64) (Outlier, bool) {
	if len(vals) < 4 {
		return Outlier{}, false
	}
	sorted := slices.Clone(vals)
	slices.Sort(sorted)
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	o := Outlier{Column: col, Lower: q1 - IQRFactor*iqr, Upper: q3 + IQRFactor*iqr}
	for _, v := range vals {
		if v < o.Lower || v > o.Upper {
			o.Count++
		}
	}
	return o, o.Count > 0
}

// quantile uses linear interpolation between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
