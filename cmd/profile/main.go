// Command profile samples an input and either prints a column report or
// emits a bootstrap configuration for cmd/normalize.
//
// The input may be a local path, a file:// URL or an http(s) URL. Only the
// first -bytes bytes are read (0 reads everything); a truncated delimited
// sample is cut back to its last complete line.
//
// Output modes:
//
//   - Default: a normalize config JSON on stdout with the storage section
//     filled for -backend. With -schema-out the suggested Dim/Fact schema is
//     written alongside.
//   - Report (-report): the uniqueness report, breakout candidates and, with
//     -quality, data quality findings. No JSON is printed.
//
// # DSN overrides
//
// The emitted storage DSN is resolved in this order:
//  1. -dsn flag
//  2. DSN environment variable
//  3. DSN_HOST / DSN_PORT / DSN_USER / DSN_PASSWORD / DSN_DB, plus
//     DSN_SSLMODE (postgres), DSN_ENCRYPT (mssql), DSN_SQLITE (sqlite) and
//     DSN_PARAMS
//  4. a template DSN for the backend
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"normalizer/internal/analyzer"
	"normalizer/internal/config"
	"normalizer/internal/dataset"
	"normalizer/internal/schema"
	"normalizer/internal/source"
)

type options struct {
	URL       string
	Bytes     int
	Format    string
	Name      string
	Backend   string
	DSN       string
	Insecure  bool
	Report    bool
	Quality   bool
	Breakout  int
	SchemaOut string
	Pretty    bool
}

func main() {
	var o options
	flag.StringVar(&o.URL, "url", "", "URL or path of the input (CSV, TSV, JSON, XLSX, HTML)")
	flag.IntVar(&o.Bytes, "bytes", 20000, "bytes to sample from the start of the input (0 reads all)")
	flag.StringVar(&o.Format, "format", "", "input format; detected from the sample when empty")
	flag.StringVar(&o.Name, "name", "dataset", "dataset name, used as the job name")
	flag.StringVar(&o.Backend, "backend", "postgres", "storage backend: postgres|mssql|mysql|sqlite")
	flag.StringVar(&o.DSN, "dsn", "", "storage DSN (highest priority override)")
	flag.BoolVar(&o.Insecure, "allow-insecure", false, "skip TLS verification for https inputs")
	flag.BoolVar(&o.Report, "report", false, "print the column report instead of JSON")
	flag.BoolVar(&o.Quality, "quality", false, "include data quality findings in the report")
	flag.IntVar(&o.Breakout, "breakout", 5, "maximum breakout candidates listed in the report")
	flag.StringVar(&o.SchemaOut, "schema-out", "", "write the suggested schema JSON to this path")
	flag.BoolVar(&o.Pretty, "pretty", true, "pretty-print JSON output")
	flag.Parse()

	if strings.TrimSpace(o.URL) == "" {
		fmt.Fprintln(os.Stderr, "missing -url")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := run(ctx, o, os.Stdout); err != nil {
		fatalf("profile: %v", err)
	}
}

func run(ctx context.Context, o options, w io.Writer) error {
	sample, truncated, err := source.Peek(ctx, o.URL, o.Bytes, o.Insecure)
	if err != nil {
		return err
	}
	ds, err := source.ReadSample(sample, truncated, source.FileOptions{Format: o.Format})
	if err != nil {
		return err
	}
	an := analyzer.New(analyzer.DefaultConfig(), nil)

	if o.SchemaOut != "" {
		if err := schema.Save(o.SchemaOut, an.Suggest(ds)); err != nil {
			return err
		}
	}
	if o.Report {
		writeReport(w, an, ds, o)
		return nil
	}

	cfg, err := bootstrapConfig(o)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	if o.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(cfg)
}

func writeReport(w io.Writer, an *analyzer.Analyzer, ds *dataset.Dataset, o options) {
	stats := analyzer.Uniqueness(ds)
	fmt.Fprintln(w, analyzer.FormatUniquenessReport(stats))

	cands := analyzer.BreakoutCandidates(stats, o.Breakout)
	if len(cands) == 0 {
		fmt.Fprintln(w, "breakout candidates: (none)")
	} else {
		fmt.Fprintf(w, "breakout candidates: %s\n", strings.Join(cands, ", "))
	}

	if !o.Quality {
		return
	}
	a := an.DetectAnomalies(ds)
	if a.Empty() {
		fmt.Fprintln(w, "quality: no findings")
		return
	}
	for _, c := range a.HighMissing {
		fmt.Fprintf(w, "quality: %s is mostly missing\n", c)
	}
	for _, c := range a.LowVariance {
		fmt.Fprintf(w, "quality: %s has a single value\n", c)
	}
	for _, out := range a.Outliers {
		fmt.Fprintf(w, "quality: %s has %d outliers outside [%g, %g]\n", out.Column, out.Count, out.Lower, out.Upper)
	}
	if a.DuplicateRows > 0 {
		fmt.Fprintf(w, "quality: %d duplicate rows\n", a.DuplicateRows)
	}
}

// bootstrapConfig is the default normalize config with the job named after
// the dataset and the storage section resolved for the backend.
func bootstrapConfig(o options) (config.Config, error) {
	backend := normalizeBackend(o.Backend)
	dsn, ok, err := resolveDSNOverride(backend, strings.TrimSpace(o.DSN))
	if err != nil {
		return config.Config{}, err
	}
	if !ok {
		dsn, _, err = buildDSN(backend, dsnParts{})
		if err != nil {
			return config.Config{}, err
		}
	}

	c := config.Default()
	if job := normalizeName(o.Name); job != "" {
		c.Job = job
	}
	c.Storage = config.Storage{Kind: backend, DSN: dsn}
	c.SQL.Dialect = dialectFor(backend)
	return c, nil
}

func dialectFor(backend string) string {
	switch backend {
	case "postgres":
		return "postgresql"
	case "mssql":
		return "sqlserver"
	}
	return backend
}

// normalizeName lowercases s and keeps [a-z0-9_], folding separators to
// single underscores.
func normalizeName(s string) string {
	var b strings.Builder
	under := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			under = false
		case r == '_' || r == ' ' || r == '-' || r == '.' || r == '/':
			if !under {
				b.WriteByte('_')
				under = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
