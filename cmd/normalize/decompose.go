package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"normalizer/internal/analyzer"
	"normalizer/internal/dataset"
	"normalizer/internal/decompose"
	"normalizer/internal/export"
	"normalizer/internal/metrics"
	"normalizer/internal/multitable"
	"normalizer/internal/schema"
	"normalizer/internal/sqlgen"
	"normalizer/internal/transform"
)

var (
	schemaPath    string
	strategy      string
	surrogate     string
	pipelinesPath string
	pipelineName  string

	exportFormat string
	outputPath   string
	withData     bool
	dialect      string

	sqlOutput   string
	sqlWithData bool

	storageKind string
	storageDSN  string
)

var decomposeCmd = &cobra.Command{
	Use:   "decompose",
	Short: "Split the input into Dim/Fact tables and export them",
	RunE:  runDecompose,
}

var sqlCmd = &cobra.Command{
	Use:   "sql",
	Short: "Render CREATE TABLE statements for a schema",
	Long: `sql renders a CREATE TABLE script for --schema. With --input the column types are
inferred from the data; with --with-data the input is decomposed and INSERT
statements are appended.`,
	RunE: runSQL,
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Decompose the input and load the tables into a database",
	RunE:  runLoad,
}

func addDecomposeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&schemaPath, "schema", "s", "", "schema JSON for the explicit strategy")
	f.StringVar(&strategy, "strategy", "", "explicit|fd|cardinality (overrides config)")
	f.StringVar(&surrogate, "surrogate", "", "surrogate keys: sequential|token (overrides config)")
	f.StringVar(&pipelinesPath, "pipelines", "", "transform pipelines file applied before decomposing")
	f.StringVar(&pipelineName, "pipeline", "", "pipeline to run from --pipelines (default: all, in order)")
}

func init() {
	addDecomposeFlags(decomposeCmd)
	decomposeCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "export format: csv|json|xlsx|sql")
	decomposeCmd.Flags().StringVarP(&outputPath, "output", "o", "normalized", "output directory (csv, json) or file (xlsx, sql)")
	decomposeCmd.Flags().BoolVar(&withData, "with-data", true, "include INSERT statements in sql exports")
	decomposeCmd.Flags().StringVar(&dialect, "dialect", "", "SQL dialect for sql exports (overrides config)")

	sqlCmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "schema JSON (required)")
	sqlCmd.Flags().StringVar(&dialect, "dialect", "", "mysql|postgresql|sqlite|sqlserver (overrides config)")
	sqlCmd.Flags().StringVarP(&sqlOutput, "output", "o", "", "output file (default: stdout)")
	sqlCmd.Flags().BoolVar(&sqlWithData, "with-data", false, "decompose --input and append INSERT statements")
	sqlCmd.Flags().StringVar(&surrogate, "surrogate", "", "surrogate keys: sequential|token (overrides config)")
	_ = sqlCmd.MarkFlagRequired("schema")

	addDecomposeFlags(loadCmd)
	loadCmd.Flags().StringVar(&storageKind, "storage", "", "destination kind: postgres|mysql|mssql|sqlite (overrides config)")
	loadCmd.Flags().StringVar(&storageDSN, "dsn", "", "destination DSN (overrides config; $VARS are expanded)")
}

// applyOverrides folds command-line flags into the loaded config.
func applyOverrides() {
	if strategy != "" {
		cfg.Decompose.Strategy = strings.ToLower(strategy)
	}
	if surrogate != "" {
		cfg.Decompose.Surrogate = surrogate
	}
	if dialect != "" {
		cfg.SQL.Dialect = dialect
	}
	if storageKind != "" {
		cfg.Storage.Kind = storageKind
	}
	if storageDSN != "" {
		cfg.Storage.DSN = storageDSN
	}
}

// newDecomposer builds the configured strategy. The explicit strategy
// needs a schema file.
func newDecomposer(schemaFile string) (decompose.Decomposer, error) {
	sur, err := cfg.SurrogateStrategy()
	if err != nil {
		return nil, err
	}
	an := analyzer.New(cfg.AnalyzerConfig(), stdLog)

	switch cfg.Decompose.Strategy {
	case "explicit", "":
		if schemaFile == "" {
			return nil, fmt.Errorf("--schema is required for the explicit strategy (or use --strategy fd|cardinality)")
		}
		s, err := schema.Load(schemaFile)
		if err != nil {
			return nil, err
		}
		return &decompose.Explicit{Schema: s, Surrogate: sur, Logger: stdLog}, nil
	case "fd":
		return &decompose.FunctionalDependency{Analyzer: an, Logger: stdLog}, nil
	case "cardinality":
		return &decompose.Cardinality{Analyzer: an, Surrogate: sur, Logger: stdLog}, nil
	}
	return nil, fmt.Errorf("unknown strategy %q", cfg.Decompose.Strategy)
}

// applyPipelines runs the selected transform pipelines over ds.
func applyPipelines(ds *dataset.Dataset, path, name string) (*dataset.Dataset, error) {
	if path == "" {
		return ds, nil
	}
	ps, err := transform.LoadPipelines(path)
	if err != nil {
		return nil, err
	}
	ran := 0
	for _, p := range ps {
		if name != "" && p.Name != name {
			continue
		}
		p.Logger = stdLog
		var st transform.Stats
		ds, st = p.Execute(ds)
		ran++
		logger.Info("pipeline applied", "pipeline", p.Name, "steps", len(st.Applied), "failed", len(st.Errors),
			"rows_before", st.InitialRows, "rows_after", st.FinalRows)
		for _, e := range st.Errors {
			logger.Warn("pipeline step failed", "err", e)
		}
	}
	if name != "" && ran == 0 {
		return nil, fmt.Errorf("pipeline %q not found in %s", name, path)
	}
	return ds, nil
}

// buildResult reads the input, applies pipelines and decomposes it.
func buildResult(ctx context.Context) (*decompose.Result, error) {
	start := time.Now()
	dec, err := newDecomposer(schemaPath)
	if err != nil {
		return nil, err
	}
	ds, err := readInput(ctx, currentInput())
	if err != nil {
		return nil, err
	}
	ds, err = applyPipelines(ds, pipelinesPath, pipelineName)
	if err != nil {
		return nil, err
	}
	res, err := dec.Decompose(ds)
	if err != nil {
		return nil, describeDecomposeError(err)
	}
	for _, iss := range res.Issues {
		logger.Warn("table issue", "table", iss.Table, "err", iss.Err)
	}
	logger.Info("decomposed", "strategy", cfg.Decompose.Strategy, "tables", len(res.Tables),
		"rows", ds.Len(), "duration", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// describeDecomposeError adds the remedy for the failures a user can fix
// in the schema file.
func describeDecomposeError(err error) error {
	var missing *decompose.MissingReferenceColumnError
	var ambiguous *decompose.AmbiguousReferenceError
	var invalid *schema.InvalidSchemaError
	switch {
	case errors.As(err, &missing):
		return fmt.Errorf("%w (add the column to the referenced Dim table)", err)
	case errors.As(err, &ambiguous):
		return fmt.Errorf("%w (reference a column that is unique in the Dim table)", err)
	case errors.As(err, &invalid):
		return fmt.Errorf("%w (run 'normalize schema validate' for details)", err)
	}
	return err
}

func runDecompose(cmd *cobra.Command, args []string) error {
	applyOverrides()
	if err := checkConfig(cfg, false); err != nil {
		return err
	}
	ctx := cmd.Context()
	defer startMetrics(ctx, cfg)()

	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	res, err := buildResult(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	paths, err := writeExport(res, format, outputPath)
	if err != nil {
		metrics.RecordStep("export", "error", time.Since(start))
		return err
	}
	metrics.RecordStep("export", "ok", time.Since(start))
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}

// writeExport writes res in format and returns the files written.
func writeExport(res *decompose.Result, format export.Format, out string) ([]string, error) {
	switch format {
	case export.FormatCSV:
		return export.WriteCSV(out, res, 0)
	case export.FormatJSON:
		return export.WriteJSON(out, res)
	case export.FormatXLSX:
		out = withExt(out, ".xlsx")
		return []string{out}, export.WriteXLSX(out, res)
	case export.FormatSQL:
		opt, err := cfg.SQLOptions()
		if err != nil {
			return nil, err
		}
		out = withExt(out, ".sql")
		return []string{out}, export.WriteSQL(out, res, export.SQLOptions{Options: opt, WithData: withData})
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

// withExt appends ext unless path already has an extension.
func withExt(path, ext string) string {
	if filepath.Ext(path) == "" {
		return path + ext
	}
	return path
}

func runSQL(cmd *cobra.Command, args []string) error {
	applyOverrides()
	if err := checkConfig(cfg, false); err != nil {
		return err
	}
	opt, err := cfg.SQLOptions()
	if err != nil {
		return err
	}

	var script string
	if sqlWithData {
		cfg.Decompose.Strategy = "explicit"
		res, err := buildResult(cmd.Context())
		if err != nil {
			return err
		}
		if script, err = export.Script(res, export.SQLOptions{Options: opt, WithData: true}); err != nil {
			return err
		}
	} else {
		s, err := schema.Load(schemaPath)
		if err != nil {
			return err
		}
		if inputPath != "" || dbQuery != "" {
			if opt.Dataset, err = readInput(cmd.Context(), currentInput()); err != nil {
				return err
			}
		}
		if script, err = sqlgen.Generate(s, opt); err != nil {
			return err
		}
	}

	if sqlOutput == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), script)
		return err
	}
	if err := os.WriteFile(sqlOutput, []byte(script), 0o644); err != nil {
		return err
	}
	logger.Info("sql written", "path", sqlOutput, "dialect", string(opt.Dialect))
	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	applyOverrides()
	if err := checkConfig(cfg, true); err != nil {
		return err
	}
	ctx := cmd.Context()
	defer startMetrics(ctx, cfg)()

	res, err := buildResult(ctx)
	if err != nil {
		return err
	}
	st, err := multitable.NewDefaultRunner(stdLog).Run(ctx, cfg.LoadConfig(), res)
	if err != nil {
		return err
	}
	for _, t := range st.Tables {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", t, st.Inserted[t])
	}
	return nil
}
