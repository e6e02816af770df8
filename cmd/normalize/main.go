// Command normalize analyzes a flat dataset, proposes or applies a
// Dim/Fact schema, and writes the normalized tables to files, SQL scripts
// or a database.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"normalizer/internal/config"
	"normalizer/internal/logging"
	"normalizer/internal/metrics"
	"normalizer/internal/metrics/datadog"

	// every backend is linked in; the config picks one.
	_ "normalizer/internal/storage/all"
)

var (
	cfgPath        string
	envFile        string
	verbose        bool
	metricsBackend string
)

// Set by PersistentPreRunE for every subcommand.
var (
	cfg    config.Config
	logger *slog.Logger
	stdLog *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize a flat dataset into dimension and fact tables",
	Long: `normalize reads a flat table (CSV, TSV, JSON, Excel, HTML or a database query),
detects cardinality and functional dependencies, and splits it into Dim_* and
Fact_* tables with surrogate keys and foreign keys. Results can be exported as
files, rendered as CREATE TABLE scripts, or loaded into a database.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "JSON config file (defaults apply when empty)")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file read before NORMALIZER_* overrides")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")
	pf.StringVar(&metricsBackend, "metrics-backend", "", "metrics backend: none|datadog (overrides config)")
	addInputFlags(pf)

	rootCmd.AddCommand(analyzeCmd, suggestCmd, decomposeCmd, sqlCmd, transformCmd, loadCmd, schemaCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	logger = logging.New(verbose)
	stdLog = logging.Std(logger)

	c, err := config.FromEnvironment(cfgPath, envFile)
	if err != nil {
		return err
	}
	if metricsBackend != "" {
		c.Metrics.Backend = metricsBackend
	}
	cfg = c
	return nil
}

// checkConfig prints every issue to stderr and fails on errors.
func checkConfig(c config.Config, requireStorage bool) error {
	issues := config.Validate(c, requireStorage)
	for _, iss := range issues {
		fmt.Fprintln(os.Stderr, iss)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration is invalid")
	}
	return nil
}

// startMetrics installs the configured backend and returns the function
// that flushes and closes it.
func startMetrics(ctx context.Context, c config.Config) func() {
	if c.Metrics.Backend != "datadog" {
		return func() {}
	}
	b, err := datadog.NewBackend(ctx, datadog.Options{
		JobName:    c.Job,
		Tags:       datadog.ParseTagsCSV(c.Metrics.Tags),
		FlushEvery: 60 * time.Second,
	})
	if err != nil {
		logger.Warn("metrics: datadog backend unavailable, using nop", "err", err)
		return func() {}
	}
	logger.Info("metrics: datadog backend enabled", "job", c.Job)
	metrics.SetBackend(b)
	return func() {
		if err := b.Close(); err != nil {
			logger.Warn("metrics: close", "err", err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
