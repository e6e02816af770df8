package analyzer

import (
	"math"

	"normalizer/internal/dataset"
)

// Correlation is the Pearson coefficient of two numeric columns.
type Correlation struct {
	A, B string
	R    float64
}

// Correlations returns numeric column pairs whose |r| reaches
// CorrelationThreshold, computed on the same sample DetectDependencies
// uses. Pairs are in column order (A before B). Rows where either value is
// missing are left out of a pair; pairs with fewer than two rows or zero
// variance are not reported.
func (a *Analyzer) Correlations(d *dataset.Dataset) []Correlation {
	if d.Empty() {
		return nil
	}
	cfg := a.cfg()
	s := d.Sample(cfg.SampleSize, cfg.Seed)

	var numeric []int
	for i := range s.Columns {
		if i < len(s.Kinds) && s.Kinds[i].Numeric() {
			numeric = append(numeric, i)
		}
	}

	var out []Correlation
	for x := 0; x < len(numeric); x++ {
		for y := x + 1; y < len(numeric); y++ {
			i, j := numeric[x], numeric[y]
			r, ok := pearson(s.Rows, i, j)
			if !ok || math.Abs(r) < cfg.CorrelationThreshold {
				continue
			}
			out = append(out, Correlation{A: s.Columns[i], B: s.Columns[j], R: r})
		}
	}
	return out
}

func pearson(rows [][]any, i, j int) (float64, bool) {
	var n, sx, sy, sxx, syy, sxy float64
	for _, row := range rows {
		x, okx := toFloat(row[i])
		y, oky := toFloat(row[j])
		if !okx || !oky {
			continue
		}
		n++
		sx += x
		sy += y
		sxx += x * x
		syy += y * y
		sxy += x * y
	}
	if n < 2 {
		return 0, false
	}
	cov := sxy - sx*sy/n
	vx := sxx - sx*sx/n
	vy := syy - sy*sy/n
	if vx <= 0 || vy <= 0 {
		return 0, false
	}
	r := cov / math.Sqrt(vx*vy)
	// Rounding can push a perfect correlation a hair past 1.
	return math.Max(-1, math.Min(1, r)), true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case float64:
		if math.IsNaN(t) {
			return 0, false
		}
		return t, true
	case float32:
		return float64(t), true
	default:
		return 0, false
	}
}
