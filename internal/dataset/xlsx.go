package dataset

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

// XLSXOptions configure ReadXLSX.
type XLSXOptions struct {
	// Sheet selects a worksheet by name; empty means the first sheet.
	Sheet string
	// NoHeader makes the reader synthesize column names col_1..col_n.
	NoHeader bool
	Text     TextOptions
}

// ReadXLSX reads one worksheet of an Excel workbook. Cell text goes through
// the same inference as CSV input.
//
// Errors:
//   - the workbook cannot be opened or the sheet does not exist.
func ReadXLSX(r io.Reader, opt XLSXOptions) (*Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open workbook: %w", err)
	}
	defer f.Close()

	sheet := opt.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return &Dataset{}, nil
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx: read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &Dataset{}, nil
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}

	var headers []string
	body := rows
	if opt.NoHeader {
		headers = syntheticHeaders(width)
	} else {
		headers = normalizeHeaders(padStrings(rows[0], width), nil)
		body = rows[1:]
	}

	// excelize omits trailing empty cells, so rows are padded back to the
	// header width before inference.
	records := make([][]string, 0, len(body))
	for _, r := range body {
		if allBlank(r) {
			continue
		}
		records = append(records, padStrings(r, width))
	}
	return FromStrings(headers, records, opt.Text), nil
}

// ReadXLSXFile opens path and calls ReadXLSX.
func ReadXLSXFile(path string, opt XLSXOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadXLSX(f, opt)
}

func padStrings(r []string, n int) []string {
	if len(r) >= n {
		return r
	}
	out := make([]string, n)
	copy(out, r)
	return out
}

func allBlank(r []string) bool {
	for _, s := range r {
		if s != "" {
			return false
		}
	}
	return true
}
