package dataset

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLOptions configure ReadHTML.
type HTMLOptions struct {
	// Selector matches candidate tables; default "table".
	Selector string
	// Index picks which matched table to read (0-based).
	Index int
	Text  TextOptions
}

// ReadHTML extracts one <table> from an HTML document.
//
// The header comes from the first row containing <th> cells; without one,
// columns are named col_1..col_n and every row is data. Cell text is
// trimmed and fed through the same inference as CSV input. Rows with a
// cell count different from the header are skipped.
//
// Errors:
//   - the document fails to parse.
//   - no table matches Selector at Index.
func ReadHTML(r io.Reader, opt HTMLOptions) (*Dataset, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	sel := opt.Selector
	if strings.TrimSpace(sel) == "" {
		sel = "table"
	}
	tables := doc.Find(sel)
	if opt.Index < 0 || opt.Index >= tables.Length() {
		return nil, fmt.Errorf("html: no table %q at index %d (found %d)", sel, opt.Index, tables.Length())
	}
	table := tables.Eq(opt.Index)

	var headers []string
	var records [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// Nested tables contribute their own rows to their own table only.
		if tr.Closest("table").Get(0) != table.Get(0) {
			return
		}
		if headers == nil {
			if th := tr.Find("th"); th.Length() > 0 {
				headers = normalizeHeaders(cellTexts(tr.Find("th, td")), nil)
				return
			}
		}
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		records = append(records, cellTexts(cells))
	})

	if headers == nil {
		width := 0
		for _, r := range records {
			width = max(width, len(r))
		}
		headers = syntheticHeaders(width)
	}
	return FromStrings(headers, records, opt.Text), nil
}

func cellTexts(s *goquery.Selection) []string {
	out := make([]string, 0, s.Length())
	s.Each(func(_ int, c *goquery.Selection) {
		out = append(out, strings.Join(strings.Fields(c.Text()), " "))
	})
	return out
}
