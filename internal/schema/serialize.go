package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Marshal encodes s as an indented JSON object whose keys follow the table
// insertion order:
//
//	{
//	  "Dim_Customer": [
//	    {"name": "customer_id", "is_primary": true, "ref_table": null, "ref_column": null}
//	  ]
//	}
func Marshal(s *Schema) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, t := range s.Tables() {
		if i > 0 {
			buf.WriteString(",")
		}
		key, err := json.Marshal(t.Name)
		if err != nil {
			return nil, err
		}
		cols := t.Columns
		if cols == nil {
			cols = []Column{}
		}
		val, err := json.MarshalIndent(cols, "  ", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal table %s: %w", t.Name, err)
		}
		buf.WriteString("\n  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
	}
	if s.Len() > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// Unmarshal decodes a schema, keeping the table order of the document.
//
// Errors:
//   - *ParseError for malformed JSON, a non-object root, a table value that
//     is not an array, a column that is not an object, or a repeated table.
func Unmarshal(data []byte) (*Schema, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	fail := func(err error) (*Schema, error) {
		return nil, &ParseError{Offset: dec.InputOffset(), Err: err}
	}

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fail(err)
	}
	if tok != json.Delim('{') {
		return fail(errNotObject)
	}

	s := New()
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return fail(err)
		}
		name, _ := kt.(string)
		if s.Has(name) {
			return fail(fmt.Errorf("duplicate table %q", name))
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fail(fmt.Errorf("table %q: %w", name, err))
		}
		cols, err := decodeColumns(raw)
		if err != nil {
			return fail(fmt.Errorf("table %q: %w", name, err))
		}
		s.Add(name, cols...)
	}
	if _, err := dec.Token(); err != nil {
		return fail(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fail(errors.New("trailing data after schema object"))
	}
	return s, nil
}

func decodeColumns(raw json.RawMessage) ([]Column, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, errors.New("columns must be a JSON array")
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}
	cols := make([]Column, 0, len(elems))
	for i, e := range elems {
		e = bytes.TrimSpace(e)
		if len(e) == 0 || e[0] != '{' {
			return nil, fmt.Errorf("column %d must be a JSON object", i)
		}
		var c Column
		if err := json.Unmarshal(e, &c); err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// Save writes s to path atomically (temp file in the same directory, then
// rename), creating parent directories as needed.
func Save(path string, s *Schema) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save schema: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("save schema: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save schema: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("save schema: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save schema: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save schema: %w", err)
	}
	return nil
}

// Load reads a schema written by Save.
//
// Errors:
//   - ErrNotFound (errors.Is) when path does not exist.
//   - *ParseError (errors.As) when the content is malformed.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	s, err := Unmarshal(data)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return s, nil
}
