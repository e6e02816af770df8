package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"normalizer/internal/analyzer"
	"normalizer/internal/dataset"
	"normalizer/internal/metrics"
	"normalizer/internal/schema"
)

var (
	showProfile   bool
	showQuality   bool
	suggestOutput string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Classify columns and report functional dependencies and correlations",
	RunE:  runAnalyze,
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Propose a Dim/Fact schema from column cardinality",
	RunE:  runSuggest,
}

func init() {
	analyzeCmd.Flags().BoolVar(&showProfile, "profile", false, "also print per-column statistics")
	analyzeCmd.Flags().BoolVar(&showQuality, "quality", false, "also print data quality findings")
	suggestCmd.Flags().StringVarP(&suggestOutput, "output", "o", "", "write the schema JSON here (default: stdout)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if err := checkConfig(cfg, false); err != nil {
		return err
	}
	ctx := cmd.Context()
	defer startMetrics(ctx, cfg)()

	start := time.Now()
	ds, err := readInput(ctx, currentInput())
	if err != nil {
		metrics.RecordStep("analyze", "error", time.Since(start))
		return err
	}
	an := analyzer.New(cfg.AnalyzerConfig(), stdLog)
	writeAnalysis(cmd.OutOrStdout(), an, ds, showProfile, showQuality)
	for _, pe := range an.Errors() {
		logger.Warn("pair skipped", "determinant", pe.Determinant, "dependent", pe.Dependent, "err", pe.Err)
	}
	metrics.RecordStep("analyze", "ok", time.Since(start))
	return nil
}

// writeAnalysis renders the analyzer findings as plain text.
func writeAnalysis(w io.Writer, an *analyzer.Analyzer, ds *dataset.Dataset, profile, quality bool) {
	fmt.Fprintf(w, "Rows: %d  Columns: %d\n\n", ds.Len(), ds.Width())

	cl := an.ClassifyColumns(ds)
	fmt.Fprintf(w, "Dimension candidates: %s\n", joinOrNone(cl.Dim))
	fmt.Fprintf(w, "Fact candidates:      %s\n\n", joinOrNone(cl.Fact))

	deps := an.DetectDependencies(ds)
	fmt.Fprintf(w, "Functional dependencies (%d):\n", len(deps))
	for _, d := range deps {
		fmt.Fprintf(w, "  %s -> %s\n", d.Determinant, strings.Join(d.Dependents, ", "))
	}

	corr := an.Correlations(ds)
	fmt.Fprintf(w, "\nCorrelations (%d):\n", len(corr))
	for _, c := range corr {
		fmt.Fprintf(w, "  %s ~ %s  r=%.3f\n", c.A, c.B, c.R)
	}

	fmt.Fprintf(w, "\n%s\n", strings.TrimRight(analyzer.FormatUniquenessReport(analyzer.Uniqueness(ds)), "\n"))

	if profile {
		p := an.Profile(ds)
		fmt.Fprintf(w, "\nProfile:\n")
		for _, f := range p.Fields {
			fmt.Fprintf(w, "  %-24s %-8s nulls=%d (%.1f%%) distinct=%d", f.Name, f.Kind, f.Nulls, f.NullPct, f.Distinct)
			switch {
			case f.Numeric != nil:
				fmt.Fprintf(w, " min=%g max=%g mean=%.3f std=%.3f", f.Numeric.Min, f.Numeric.Max, f.Numeric.Mean, f.Numeric.Std)
			case f.Text != nil:
				fmt.Fprintf(w, " len=%d..%d avg=%.1f", f.Text.MinLen, f.Text.MaxLen, f.Text.AvgLen)
			}
			fmt.Fprintln(w)
		}
	}
	if quality {
		a := an.DetectAnomalies(ds)
		fmt.Fprintf(w, "\nQuality:\n")
		if a.Empty() {
			fmt.Fprintf(w, "  no findings\n")
		}
		if len(a.HighMissing) > 0 {
			fmt.Fprintf(w, "  high missing: %s\n", strings.Join(a.HighMissing, ", "))
		}
		if len(a.LowVariance) > 0 {
			fmt.Fprintf(w, "  single value: %s\n", strings.Join(a.LowVariance, ", "))
		}
		for _, o := range a.Outliers {
			fmt.Fprintf(w, "  outliers: %s %d outside [%g, %g]\n", o.Column, o.Count, o.Lower, o.Upper)
		}
		if a.DuplicateRows > 0 {
			fmt.Fprintf(w, "  duplicate rows: %d\n", a.DuplicateRows)
		}
	}
}

func joinOrNone(cols []string) string {
	if len(cols) == 0 {
		return "(none)"
	}
	return strings.Join(cols, ", ")
}

func runSuggest(cmd *cobra.Command, args []string) error {
	if err := checkConfig(cfg, false); err != nil {
		return err
	}
	ds, err := readInput(cmd.Context(), currentInput())
	if err != nil {
		return err
	}
	s := analyzer.New(cfg.AnalyzerConfig(), stdLog).Suggest(ds)
	for _, iss := range schema.Validate(s) {
		fmt.Fprintln(os.Stderr, iss)
	}
	if suggestOutput != "" {
		if err := schema.Save(suggestOutput, s); err != nil {
			return err
		}
		logger.Info("schema written", "path", suggestOutput, "tables", len(s.Names()))
		return nil
	}
	b, err := schema.Marshal(s)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(b)
	return err
}
