package config

import (
	"fmt"
	"slices"

	"normalizer/internal/sqlgen"
	"normalizer/internal/storage"
)

// Severity classifies an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is the JSON path of the field.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string { return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message) }

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks c without touching any database. When requireStorage is
// set a missing or unregistered storage kind is an error; otherwise the
// storage section is only checked if present.
func Validate(c Config, requireStorage bool) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, args ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	a := c.Analyzer
	if a.SampleSize <= 0 {
		add(SeverityError, "analyzer.sample_size", "must be > 0, got %d", a.SampleSize)
	} else if a.SampleSize < 50 {
		add(SeverityWarning, "analyzer.sample_size", "%d rows is too few for reliable dependency detection", a.SampleSize)
	}
	if a.RatioThreshold <= 0 || a.RatioThreshold > 1 {
		add(SeverityError, "analyzer.ratio_threshold", "must be in (0, 1], got %g", a.RatioThreshold)
	}
	if a.CorrelationThreshold < 0 || a.CorrelationThreshold > 1 {
		add(SeverityError, "analyzer.correlation_threshold", "must be in [0, 1], got %g", a.CorrelationThreshold)
	}
	if a.MaxDistinct < 0 {
		add(SeverityError, "analyzer.max_distinct", "must be >= 0, got %d", a.MaxDistinct)
	}

	if !validStrategy(c.Decompose.Strategy) {
		add(SeverityError, "decompose.strategy", "unknown strategy %q (want one of %v)", c.Decompose.Strategy, Strategies)
	} else if c.Decompose.Strategy == "cardinality" {
		add(SeverityWarning, "decompose.strategy", "cardinality strategy ignores functional dependencies and may split tables poorly")
	}
	if _, err := c.SurrogateStrategy(); err != nil {
		add(SeverityError, "decompose.surrogate", "%v", err)
	}

	if _, err := sqlgen.ParseDialect(c.SQL.Dialect); err != nil {
		add(SeverityError, "sql.dialect", "%v", err)
	}
	if c.SQL.MaxIdentifier < 0 {
		add(SeverityError, "sql.max_identifier", "must be >= 0, got %d", c.SQL.MaxIdentifier)
	}
	if c.SQL.MaxVarchar < 0 {
		add(SeverityError, "sql.max_varchar", "must be >= 0, got %d", c.SQL.MaxVarchar)
	}

	if requireStorage || c.Storage.Kind != "" {
		switch {
		case c.Storage.Kind == "":
			add(SeverityError, "storage.kind", "required")
		case !slices.Contains(storage.Kinds(), c.Storage.Kind):
			add(SeverityError, "storage.kind", "unknown kind %q (registered: %v)", c.Storage.Kind, storage.Kinds())
		}
		if c.Storage.DSN == "" {
			add(SeverityError, "storage.dsn", "required")
		}
	}
	if c.Runtime.LoaderWorkers < 0 {
		add(SeverityError, "runtime.loader_workers", "must be >= 0, got %d", c.Runtime.LoaderWorkers)
	}
	if c.Runtime.BatchSize < 0 {
		add(SeverityError, "runtime.batch_size", "must be >= 0, got %d", c.Runtime.BatchSize)
	}

	switch c.Metrics.Backend {
	case "", "none", "datadog":
	default:
		add(SeverityError, "metrics.backend", "unknown backend %q (want none|datadog)", c.Metrics.Backend)
	}
	return out
}
