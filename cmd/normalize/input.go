package main

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/pflag"

	"normalizer/internal/dataset"
	"normalizer/internal/source"
)

var (
	inputPath   string
	inputFormat string
	delimiter   string
	sheetName   string
	htmlTable   int
	nullTokens  string
	dbKind      string
	dbDSN       string
	dbQuery     string
)

func addInputFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&inputPath, "input", "i", "", "input file (csv, tsv, json, xlsx, html)")
	fs.StringVar(&inputFormat, "input-format", "", "override input format detection")
	fs.StringVar(&delimiter, "delimiter", "", "CSV field delimiter (default ',')")
	fs.StringVar(&sheetName, "sheet", "", "Excel worksheet (default: first)")
	fs.IntVar(&htmlTable, "html-table", 0, "index of the HTML table to read")
	fs.StringVar(&nullTokens, "null-values", "", "comma-separated tokens read as null (default: built-in list)")
	fs.StringVar(&dbKind, "db-kind", "", "read input from a database: postgres|mysql|mssql|sqlite")
	fs.StringVar(&dbDSN, "db-dsn", "", "database connection string for --db-kind")
	fs.StringVar(&dbQuery, "query", "", "SQL query producing the input rows")
}

type inputSpec struct {
	Path, Format, Delimiter, Sheet, Nulls string
	HTMLTable                             int
	DBKind, DBDSN, Query                  string
}

func currentInput() inputSpec {
	return inputSpec{
		Path: inputPath, Format: inputFormat, Delimiter: delimiter, Sheet: sheetName, Nulls: nullTokens,
		HTMLTable: htmlTable, DBKind: dbKind, DBDSN: dbDSN, Query: dbQuery,
	}
}

// readInput loads the dataset named by the input flags.
func readInput(ctx context.Context, in inputSpec) (*dataset.Dataset, error) {
	fromDB := in.DBKind != "" || in.Query != ""
	switch {
	case in.Path == "" && !fromDB:
		return nil, fmt.Errorf("one of --input or --db-kind/--query must be specified")
	case in.Path != "" && fromDB:
		return nil, fmt.Errorf("only one of --input or --db-kind/--query can be specified")
	case fromDB:
		if in.DBKind == "" || in.Query == "" {
			return nil, fmt.Errorf("--db-kind and --query are both required for database input")
		}
		return source.Query(ctx, in.DBKind, in.DBDSN, in.Query)
	}

	opt := source.FileOptions{Format: in.Format, Sheet: in.Sheet, Index: in.HTMLTable}
	if in.Delimiter != "" {
		d := in.Delimiter
		if d == `\t` {
			d = "\t"
		}
		r, size := utf8.DecodeRuneInString(d)
		if size != len(d) {
			return nil, fmt.Errorf("--delimiter must be a single character, got %q", in.Delimiter)
		}
		opt.Comma = r
	}
	if in.Nulls != "" {
		opt.Text.NullValues = splitList(in.Nulls)
	}
	return source.ReadFile(in.Path, opt)
}

// splitList splits a comma-separated flag, trimming blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
