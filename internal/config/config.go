// Package config holds the run configuration shared by the normalize
// commands: analyzer thresholds, decomposition and SQL options, the load
// destination and the metrics backend.
//
// Values are layered: Default, then an optional JSON file, then
// NORMALIZER_* environment variables (optionally seeded from a .env file).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"normalizer/internal/analyzer"
	"normalizer/internal/decompose"
	"normalizer/internal/multitable"
	"normalizer/internal/sqlgen"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NORMALIZER_"

// Config is the full run configuration.
type Config struct {
	// Job names the run in logs and metric tags.
	Job string `json:"job" env:"JOB"`

	Analyzer  Analyzer  `json:"analyzer" envPrefix:"ANALYZER_"`
	Decompose Decompose `json:"decompose" envPrefix:"DECOMPOSE_"`
	SQL       SQL       `json:"sql" envPrefix:"SQL_"`
	Storage   Storage   `json:"storage" envPrefix:"STORAGE_"`
	Runtime   Runtime   `json:"runtime" envPrefix:"RUNTIME_"`
	Metrics   Metrics   `json:"metrics" envPrefix:"METRICS_"`
}

type Analyzer struct {
	SampleSize           int     `json:"sample_size" env:"SAMPLE_SIZE"`
	RatioThreshold       float64 `json:"ratio_threshold" env:"RATIO_THRESHOLD"`
	CorrelationThreshold float64 `json:"correlation_threshold" env:"CORRELATION_THRESHOLD"`
	Seed                 uint64  `json:"seed" env:"SEED"`
	MaxDistinct          int     `json:"max_distinct" env:"MAX_DISTINCT"`
}

type Decompose struct {
	// Strategy is "explicit", "fd" or "cardinality".
	Strategy string `json:"strategy" env:"STRATEGY"`
	// Surrogate is "sequential" or "token".
	Surrogate string `json:"surrogate" env:"SURROGATE"`
}

type SQL struct {
	Dialect       string `json:"dialect" env:"DIALECT"`
	DatabaseName  string `json:"database_name" env:"DATABASE_NAME"`
	Preamble      bool   `json:"preamble" env:"PREAMBLE"`
	MaxIdentifier int    `json:"max_identifier" env:"MAX_IDENTIFIER"`
	MaxVarchar    int    `json:"max_varchar" env:"MAX_VARCHAR"`
}

type Storage struct {
	Kind string `json:"kind" env:"KIND"`
	DSN  string `json:"dsn" env:"DSN"`
}

type Runtime struct {
	LoaderWorkers int  `json:"loader_workers" env:"LOADER_WORKERS"`
	BatchSize     int  `json:"batch_size" env:"BATCH_SIZE"`
	DebugTimings  bool `json:"debug_timings" env:"DEBUG_TIMINGS"`
}

type Metrics struct {
	// Backend is "none" or "datadog".
	Backend string `json:"backend" env:"BACKEND"`
	// Tags is a comma-separated list of extra metric tags.
	Tags string `json:"tags" env:"TAGS"`
}

// Default returns the documented defaults.
func Default() Config {
	a := analyzer.DefaultConfig()
	return Config{
		Job: "normalizer",
		Analyzer: Analyzer{
			SampleSize:           a.SampleSize,
			RatioThreshold:       a.RatioThreshold,
			CorrelationThreshold: a.CorrelationThreshold,
			Seed:                 a.Seed,
		},
		Decompose: Decompose{Strategy: "explicit", Surrogate: "sequential"},
		SQL: SQL{
			Dialect:       string(sqlgen.MySQL),
			DatabaseName:  sqlgen.DefaultDatabaseName,
			MaxIdentifier: sqlgen.DefaultMaxIdentifier,
			MaxVarchar:    sqlgen.DefaultMaxVarchar,
		},
		Runtime: Runtime{LoaderWorkers: 4, BatchSize: 5000},
		Metrics: Metrics{Backend: "none"},
	}
}

// Load returns Default overlaid with the JSON file at path. An empty path
// skips the file. Unknown keys are rejected.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return c, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return c, fmt.Errorf("decode config %s: %w", path, err)
	}
	return c, nil
}

// ApplyEnv overrides c from NORMALIZER_* variables. When dotenv is non-empty
// that file is loaded first; a missing file is not an error. Variables
// already set in the process environment win over the file.
func ApplyEnv(c *Config, dotenv string) error {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", dotenv, err)
		}
	}
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

// FromEnvironment is Load followed by ApplyEnv.
func FromEnvironment(path, dotenv string) (Config, error) {
	c, err := Load(path)
	if err != nil {
		return c, err
	}
	if err := ApplyEnv(&c, dotenv); err != nil {
		return c, err
	}
	return c, nil
}

// AnalyzerConfig converts to the analyzer's option struct.
func (c Config) AnalyzerConfig() analyzer.Config {
	return analyzer.Config{
		SampleSize:           c.Analyzer.SampleSize,
		RatioThreshold:       c.Analyzer.RatioThreshold,
		CorrelationThreshold: c.Analyzer.CorrelationThreshold,
		Seed:                 c.Analyzer.Seed,
		MaxDistinct:          c.Analyzer.MaxDistinct,
	}
}

// SurrogateStrategy parses Decompose.Surrogate.
func (c Config) SurrogateStrategy() (decompose.SurrogateStrategy, error) {
	return decompose.ParseSurrogate(c.Decompose.Surrogate)
}

// SQLOptions converts to generator options. Data fields are left for the
// caller.
func (c Config) SQLOptions() (sqlgen.Options, error) {
	d, err := sqlgen.ParseDialect(c.SQL.Dialect)
	if err != nil {
		return sqlgen.Options{}, err
	}
	return sqlgen.Options{
		Dialect:       d,
		DatabaseName:  c.SQL.DatabaseName,
		Preamble:      c.SQL.Preamble,
		MaxIdentifier: c.SQL.MaxIdentifier,
		MaxVarchar:    c.SQL.MaxVarchar,
	}, nil
}

// LoadConfig converts to the loader's configuration.
func (c Config) LoadConfig() multitable.LoadConfig {
	return multitable.LoadConfig{
		Job:     c.Job,
		Storage: multitable.Storage{Kind: c.Storage.Kind, DSN: c.Storage.DSN},
		Runtime: multitable.RuntimeConfig{
			LoaderWorkers: c.Runtime.LoaderWorkers,
			BatchSize:     c.Runtime.BatchSize,
			MaxVarchar:    c.SQL.MaxVarchar,
			DebugTimings:  c.Runtime.DebugTimings,
		},
	}
}

// Strategies lists the accepted Decompose.Strategy values.
var Strategies = []string{"explicit", "fd", "cardinality"}

func validStrategy(s string) bool {
	for _, v := range Strategies {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
