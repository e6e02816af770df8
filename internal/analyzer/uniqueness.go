package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"normalizer/internal/dataset"
)

// DistinctCap bounds per-column distinct counting in Uniqueness.
const DistinctCap = 10000

// Stats are bounded per-column uniqueness counts.
//
// PerColumnTotal counts rows where the column has a value and is the
// denominator for ratios; TotalRows is informational.
type Stats struct {
	TotalRows         int
	PerColumnTotal    map[string]int
	PerColumnDistinct map[string]int
	PerColumnCapped   map[string]bool
	ColumnOrder       []string
}

// Ratio returns distinct/total for col, or 0 when the column has no values.
func (s Stats) Ratio(col string) float64 {
	den := s.PerColumnTotal[col]
	if den <= 0 {
		return 0
	}
	return float64(s.PerColumnDistinct[col]) / float64(den)
}

// Uniqueness counts values per column over every row of d. Once a column
// reaches DistinctCap distinct values its set is dropped and the column is
// reported as capped.
func Uniqueness(d *dataset.Dataset) Stats {
	stats := Stats{
		PerColumnTotal:    make(map[string]int, d.Width()),
		PerColumnDistinct: make(map[string]int, d.Width()),
		PerColumnCapped:   make(map[string]bool, d.Width()),
	}
	if d == nil {
		return stats
	}
	stats.ColumnOrder = append([]string(nil), d.Columns...)
	if d.Empty() {
		return stats
	}

	sets := make([]map[string]struct{}, d.Width())
	for i := range sets {
		sets[i] = make(map[string]struct{})
	}

	for _, row := range d.Rows {
		stats.TotalRows++
		for i, col := range d.Columns {
			v := row[i]
			if dataset.IsNull(v) {
				continue
			}
			if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
				continue
			}
			stats.PerColumnTotal[col]++

			if stats.PerColumnCapped[col] {
				continue
			}
			k, err := dataset.Key(v)
			if err != nil {
				k = fmt.Sprint(v)
			}
			sets[i][k] = struct{}{}
			if len(sets[i]) >= DistinctCap {
				stats.PerColumnCapped[col] = true
				sets[i] = nil
			}
		}
	}

	for i, col := range d.Columns {
		if stats.PerColumnCapped[col] {
			stats.PerColumnDistinct[col] = DistinctCap
			continue
		}
		stats.PerColumnDistinct[col] = len(sets[i])
	}
	return stats
}

// BreakoutCandidates lists up to limit columns with ratio <= 0.90, lowest
// ratio first (ties by name). These are the columns worth declaring as
// dimensions by hand.
func BreakoutCandidates(stats Stats, limit int) []string {
	if len(stats.PerColumnTotal) == 0 || limit <= 0 {
		return nil
	}

	type cand struct {
		col   string
		ratio float64
	}
	var cands []cand
	for _, col := range stats.ColumnOrder {
		if stats.PerColumnDistinct[col] <= 0 || stats.PerColumnTotal[col] <= 0 {
			continue
		}
		r := stats.Ratio(col)
		if r > 0.90 {
			continue
		}
		cands = append(cands, cand{col: col, ratio: r})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].ratio == cands[j].ratio {
			return cands[i].col < cands[j].col
		}
		return cands[i].ratio < cands[j].ratio
	})

	out := make([]string, 0, min(limit, len(cands)))
	for _, c := range cands {
		out = append(out, c.col)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// FormatUniquenessReport renders stats as a tab-separated table, lowest
// ratio first. Columns without values are omitted.
func FormatUniquenessReport(stats Stats) string {
	if stats.TotalRows <= 0 {
		return "uniqueness: no rows sampled"
	}

	type row struct {
		col    string
		dist   int
		den    int
		ratio  float64
		capped bool
	}
	rows := make([]row, 0, len(stats.ColumnOrder))
	for _, col := range stats.ColumnOrder {
		den := stats.PerColumnTotal[col]
		if den <= 0 {
			continue
		}
		rows = append(rows, row{
			col:    col,
			dist:   stats.PerColumnDistinct[col],
			den:    den,
			ratio:  stats.Ratio(col),
			capped: stats.PerColumnCapped[col],
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ratio == rows[j].ratio {
			return rows[i].col < rows[j].col
		}
		return rows[i].ratio < rows[j].ratio
	})

	var b strings.Builder
	fmt.Fprintf(&b, "uniqueness report:\tsampled_rows=%d\n", stats.TotalRows)
	fmt.Fprintf(&b, "%-15s\t%-7s\t%-7s\tratio\tcapped\n", "col", "unique", "rows")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-15s\t%-7d\t%d\t%.1f%%\t%t\n", r.col, r.dist, r.den, r.ratio*100, r.capped)
	}
	return strings.TrimRight(b.String(), "\n")
}
