package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSVOptions configure ReadCSV.
type CSVOptions struct {
	// Comma is the field delimiter; zero means ','.
	Comma rune
	// NoHeader makes ReadCSV synthesize column names col_1..col_n.
	NoHeader bool
	// LazyQuotes is passed through to encoding/csv.
	LazyQuotes bool
	// HeaderMap renames source headers (after trimming) to column names.
	HeaderMap map[string]string

	Text TextOptions
}

// ReadCSV parses a whole CSV stream into a typed Dataset.
//
// Edge cases:
//   - A UTF-8 BOM on the first header is stripped.
//   - Records with the wrong field count are skipped.
//   - An empty input yields a Dataset with no columns and no rows.
//
// Errors:
//   - Returns the first read error other than a field-count mismatch.
func ReadCSV(r io.Reader, opt CSVOptions) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.Comma = ','
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = opt.LazyQuotes

	var headers []string
	var records [][]string
	line := 0
	for {
		rec, err := cr.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read line %d: %w", line, err)
		}
		if headers == nil {
			if opt.NoHeader {
				headers = syntheticHeaders(len(rec))
			} else {
				headers = normalizeHeaders(rec, opt.HeaderMap)
				continue
			}
		}
		records = append(records, rec)
	}

	if headers == nil {
		return &Dataset{}, nil
	}
	return FromStrings(headers, records, opt.Text), nil
}

// ReadCSVFile opens path and calls ReadCSV.
func ReadCSVFile(path string, opt CSVOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f, opt)
}

// WriteCSV writes d with a header row. Missing values become empty fields.
func WriteCSV(w io.Writer, d *Dataset, comma rune) error {
	cw := csv.NewWriter(w)
	if comma != 0 {
		cw.Comma = comma
	}
	if err := cw.Write(d.Columns); err != nil {
		return err
	}
	rec := make([]string, len(d.Columns))
	for _, row := range d.Rows {
		for i := range rec {
			rec[i] = Format(row[i])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func normalizeHeaders(hdr []string, hm map[string]string) []string {
	out := make([]string, len(hdr))
	for i, h := range hdr {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		if mapped, ok := hm[h]; ok {
			h = mapped
		}
		if h == "" {
			h = fmt.Sprintf("col_%d", i+1)
		}
		out[i] = h
	}
	return out
}

func syntheticHeaders(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("col_%d", i+1)
	}
	return out
}
