package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"normalizer/internal/dataset"
)

// FileOptions control ReadFile. Fields apply only to the formats that use
// them.
type FileOptions struct {
	// Format overrides detection by extension: csv, tsv, json, xlsx, html.
	Format string
	// Comma is the CSV delimiter; zero means ',' (tab for tsv).
	Comma rune
	// Sheet is the XLSX worksheet; empty means the first.
	Sheet string
	// Selector and Index pick the HTML table.
	Selector string
	Index    int
	NoHeader bool
	Text     dataset.TextOptions
}

// DetectFormat maps a file extension onto a reader name.
func DetectFormat(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt":
		return "csv", nil
	case ".tsv", ".tab":
		return "tsv", nil
	case ".json", ".jsonl", ".ndjson":
		return "json", nil
	case ".xlsx", ".xlsm":
		return "xlsx", nil
	case ".html", ".htm":
		return "html", nil
	default:
		return "", fmt.Errorf("source: cannot detect format of %s (extension %q)", path, ext)
	}
}

// ReadFile loads path into a Dataset using the reader for its format.
func ReadFile(path string, opt FileOptions) (*dataset.Dataset, error) {
	format := strings.ToLower(opt.Format)
	if format == "" {
		f, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}

	switch format {
	case "csv", "tsv":
		comma := opt.Comma
		if comma == 0 && format == "tsv" {
			comma = '\t'
		}
		return dataset.ReadCSVFile(path, dataset.CSVOptions{Comma: comma, NoHeader: opt.NoHeader, Text: opt.Text})
	case "json":
		return dataset.ReadJSONFile(path, dataset.JSONOptions{})
	case "xlsx", "excel":
		return dataset.ReadXLSXFile(path, dataset.XLSXOptions{Sheet: opt.Sheet, NoHeader: opt.NoHeader, Text: opt.Text})
	case "html":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return dataset.ReadHTML(f, dataset.HTMLOptions{Selector: opt.Selector, Index: opt.Index, Text: opt.Text})
	default:
		return nil, fmt.Errorf("source: unsupported format %q", opt.Format)
	}
}
