package schema

import (
	"fmt"
	"strings"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding.
type Issue struct {
	Severity Severity
	// Path locates the finding: "Dim_Customer" or "Fact_Sales.customer".
	Path    string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// Validate checks a schema and returns every issue found, errors and
// warnings mixed, in table order. A nil schema yields one error issue.
//
// Errors:
//   - empty table name, or a name without a Dim_/Fact_ prefix
//   - empty or duplicate column name
//   - ref_column set without ref_table
//   - reference to a table that is not a declared Dim
//
// Warnings:
//   - Dim table without a primary key (it is neither deduplicated nor
//     given a surrogate key)
//   - reference without ref_column (the Dim key is used)
func Validate(s *Schema) []Issue {
	if s == nil {
		return []Issue{{Severity: SeverityError, Path: "", Message: "schema is nil"}}
	}

	var out []Issue
	add := func(sev Severity, path, format string, args ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	for _, t := range s.Tables() {
		if strings.TrimSpace(t.Name) == "" {
			add(SeverityError, t.Name, "table name is empty")
			continue
		}
		role := RoleOf(t.Name)
		if role == RoleUnknown {
			add(SeverityError, t.Name, "table name must start with %s or %s", DimPrefix, FactPrefix)
		}

		seen := make(map[string]struct{}, len(t.Columns))
		hasPK := false
		for i, c := range t.Columns {
			path := t.Name + "." + c.Name
			if strings.TrimSpace(c.Name) == "" {
				add(SeverityError, fmt.Sprintf("%s[%d]", t.Name, i), "column name is empty")
				continue
			}
			if _, dup := seen[c.Name]; dup {
				add(SeverityError, path, "duplicate column name")
			}
			seen[c.Name] = struct{}{}
			hasPK = hasPK || c.IsPrimary

			if c.RefColumn != nil && !c.IsReference() {
				add(SeverityError, path, "ref_column set without ref_table")
				continue
			}
			if !c.IsReference() {
				continue
			}
			rt, rc := c.Target()
			if RoleOf(rt) != RoleDim || !s.Has(rt) {
				add(SeverityError, path, "references %q which is not a declared Dim table", rt)
				continue
			}
			if rc == "" {
				add(SeverityWarning, path, "reference to %s has no ref_column; the table key is used", rt)
			}
		}

		if role == RoleDim && !hasPK {
			add(SeverityWarning, t.Name, "Dim table has no primary key")
		}
	}
	return out
}

// Errors filters issues down to SeverityError.
func Errors(issues []Issue) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// Check validates s and returns *InvalidSchemaError when any error-level
// issue is present.
func Check(s *Schema) error {
	if errs := Errors(Validate(s)); len(errs) > 0 {
		return &InvalidSchemaError{Issues: errs}
	}
	return nil
}
