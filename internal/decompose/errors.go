package decompose

import (
	"errors"
	"fmt"
)

// ErrNoColumnsPresent marks a table skipped because none of its declared
// columns exist in the dataset.
var ErrNoColumnsPresent = errors.New("no declared column is present in the dataset")

// MissingReferenceColumnError reports a Fact reference whose target column
// does not exist in the materialized Dim table (or whose Dim table was not
// materialized at all).
type MissingReferenceColumnError struct {
	Table     string
	Column    string
	RefTable  string
	RefColumn string
}

func (e *MissingReferenceColumnError) Error() string {
	if e.RefColumn == "" {
		return fmt.Sprintf("%s.%s references %s, which has no key column to join on", e.Table, e.Column, e.RefTable)
	}
	return fmt.Sprintf("%s.%s references %s.%s, which does not exist", e.Table, e.Column, e.RefTable, e.RefColumn)
}

// AmbiguousReferenceError reports a referenced Dim column whose values are
// not unique, so it cannot serve as a join key.
type AmbiguousReferenceError struct {
	Table     string
	Column    string
	RefTable  string
	RefColumn string
	// Value is the first repeated value found.
	Value string
}

func (e *AmbiguousReferenceError) Error() string {
	return fmt.Sprintf("%s.%s references %s.%s, which is not unique (value %q repeats)",
		e.Table, e.Column, e.RefTable, e.RefColumn, e.Value)
}
