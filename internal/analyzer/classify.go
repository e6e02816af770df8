package analyzer

import (
	"time"

	"normalizer/internal/dataset"
	"normalizer/internal/metrics"
)

// Classification is the cardinality split of a dataset's columns. Both
// lists keep the dataset's column order.
type Classification struct {
	Dim  []string
	Fact []string
}

// ClassifyColumns splits columns by unique/total ratio, where unique counts
// distinct non-null values and total is the row count.
//
// A column is a Dim candidate when its ratio is strictly below
// RatioThreshold, or when MaxDistinct > 0 and it has fewer distinct values
// than MaxDistinct. A column with no values at all is a Fact candidate: it
// cannot key a dimension.
//
// An empty dataset yields an empty Classification.
func (a *Analyzer) ClassifyColumns(d *dataset.Dataset) Classification {
	start := time.Now()
	var out Classification
	if d.Empty() {
		return out
	}
	cfg := a.cfg()
	total := float64(d.Len())

	for i, col := range d.Columns {
		unique := distinctCount(d, i)
		ratio := float64(unique) / total
		dim := unique > 0 &&
			(ratio < cfg.RatioThreshold || (cfg.MaxDistinct > 0 && unique < cfg.MaxDistinct))
		if dim {
			out.Dim = append(out.Dim, col)
		} else {
			out.Fact = append(out.Fact, col)
		}
	}

	a.logger()("stage=classify ok dim=%d fact=%d duration=%s", len(out.Dim), len(out.Fact), time.Since(start))
	metrics.RecordStep("classify", "ok", time.Since(start))
	return out
}
