package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"normalizer/internal/decompose"
)

// maxSheetName is Excel's limit on worksheet name length.
const maxSheetName = 31

var sheetReplacer = strings.NewReplacer(":", "_", `\`, "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")")

// WriteXLSX writes every table to its own worksheet of one workbook at
// path. Sheet names are cut to 31 characters and made unique with a
// numeric suffix; the header row is bold.
func WriteXLSX(path string, res *decompose.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	used := make(map[string]bool)
	first := true
	for _, t := range res.Tables {
		sheet := SheetName(t.Name, used)
		if first {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return err
			}
			first = false
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}

		sw, err := f.NewStreamWriter(sheet)
		if err != nil {
			return err
		}
		head := make([]any, len(t.Data.Columns))
		for i, c := range t.Data.Columns {
			head[i] = excelize.Cell{StyleID: header, Value: c}
		}
		if err := sw.SetRow("A1", head); err != nil {
			return err
		}
		for r, row := range t.Data.Rows {
			cells := make([]any, len(row))
			for i, v := range row {
				cells[i] = cellValue(v)
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := sw.SetRow(cell, cells); err != nil {
				return fmt.Errorf("table %s row %d: %w", t.Name, r, err)
			}
		}
		if err := sw.Flush(); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

// SheetName replaces characters Excel rejects, cuts name to Excel's limit and disambiguates against used,
// recording the result in used.
func SheetName(name string, used map[string]bool) string {
	base := truncateRunes(sheetReplacer.Replace(name), maxSheetName)
	if base == "" {
		base = "Sheet"
	}
	s := base
	for i := 2; used[s]; i++ {
		suffix := fmt.Sprintf("_%d", i)
		s = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	used[s] = true
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t
	case float64:
		if t != t {
			return nil
		}
		return t
	default:
		return v
	}
}
