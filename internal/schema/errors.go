package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrNotFound is returned by Load when the schema file does not exist.
// It wraps fs.ErrNotExist. Callers usually recover by starting a new
// schema.
var ErrNotFound = fmt.Errorf("schema file not found: %w", fs.ErrNotExist)

// InvalidSchemaError reports a schema that cannot drive decomposition.
type InvalidSchemaError struct {
	Issues []Issue
}

func (e *InvalidSchemaError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid schema"
	}
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		if is.Path == "" {
			parts[i] = is.Message
			continue
		}
		parts[i] = is.Path + ": " + is.Message
	}
	return "invalid schema: " + strings.Join(parts, "; ")
}

// ParseError reports malformed schema content. Offset is the byte offset
// reached by the decoder when the problem was detected.
type ParseError struct {
	Path   string
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	loc := "schema"
	if e.Path != "" {
		loc = e.Path
	}
	return fmt.Sprintf("parse %s at offset %d: %v", loc, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var errNotObject = errors.New("root must be a JSON object of table name to column list")
