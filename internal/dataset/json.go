package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// JSONOptions configure ReadJSON.
type JSONOptions struct {
	// Separator joins nested object keys when flattening; default ".".
	Separator string
	// Text, when set, routes string values through the same null detection
	// the text readers use. Type inference is not applied to JSON strings.
	Text *TextOptions
}

// ReadJSON reads records from r. Accepted shapes:
//
//	[ {...}, {...} ]          array of objects
//	{ "data": [ {...} ] }     envelope; the first array-of-objects field wins
//	{ ... }                   a single record
//	{...}\n{...}\n            JSON lines / concatenated objects
//
// Columns appear in first-seen key order. Nested objects are flattened with
// Separator; arrays are kept as their JSON text. Numbers become int64 when
// integral, float64 otherwise.
//
// Errors:
//   - wraps the decoder error with the record position on malformed input.
//   - a non-object array element is an error.
func ReadJSON(r io.Reader, opt JSONOptions) (*Dataset, error) {
	sep := opt.Separator
	if sep == "" {
		sep = "."
	}
	acc := newRecordAccumulator(sep)
	if opt.Text != nil {
		acc.nulls = opt.Text.nullSet()
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return &Dataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("json: read root token: %w", err)
	}

	switch tok {
	case json.Delim('['):
		if err := readObjectArray(dec, acc); err != nil {
			return nil, err
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("json: read root array end: %w", err)
		}
	case json.Delim('{'):
		streamed, err := readEnvelopeOrSingle(dec, acc)
		if err != nil {
			return nil, err
		}
		if !streamed {
			if err := readTrailingObjects(dec, acc); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("json: unsupported root token %T (want object or array)", tok)
	}
	return acc.dataset(), nil
}

// ReadJSONFile opens path and calls ReadJSON.
func ReadJSONFile(path string, opt JSONOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJSON(f, opt)
}

// object is a decoded JSON object that remembers key order.
type object struct {
	keys []string
	vals map[string]any
}

func (o *object) plain() map[string]any {
	out := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		out[k] = plainValue(o.vals[k])
	}
	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case *object:
		return t.plain()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = plainValue(t[i])
		}
		return out
	default:
		return v
	}
}

// readValue materializes one JSON value whose first token is tok.
func readValue(dec *json.Decoder, tok json.Token) (any, error) {
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		obj := &object{vals: make(map[string]any)}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("json: read object key: %w", err)
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("json: object key not a string (got %T)", kt)
			}
			vt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("json: read value of %q: %w", key, err)
			}
			v, err := readValue(dec, vt)
			if err != nil {
				return nil, err
			}
			if _, dup := obj.vals[key]; !dup {
				obj.keys = append(obj.keys, key)
			}
			obj.vals[key] = v
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("json: read object end: %w", err)
		}
		return obj, nil
	case '[':
		var arr []any
		for dec.More() {
			et, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("json: read array element: %w", err)
			}
			v, err := readValue(dec, et)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("json: read array end: %w", err)
		}
		if arr == nil {
			arr = []any{}
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("json: unexpected delimiter %q", d)
	}
}

// readObjectArray consumes array elements after '[' until the closing
// bracket (which is left for the caller). Null elements are skipped.
func readObjectArray(dec *json.Decoder, acc *recordAccumulator) error {
	for i := 0; dec.More(); i++ {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: decode array element %d: %w", i, err)
		}
		v, err := readValue(dec, tok)
		if err != nil {
			return fmt.Errorf("json: decode array element %d: %w", i, err)
		}
		if v == nil {
			continue
		}
		obj, ok := v.(*object)
		if !ok {
			return fmt.Errorf("json: array element %d not an object (got %T)", i, v)
		}
		acc.add(obj)
	}
	return nil
}

// readEnvelopeOrSingle walks a root object after '{'. The first field whose
// value is an array of objects becomes the record stream and remaining
// fields are discarded; otherwise the root object is one record.
func readEnvelopeOrSingle(dec *json.Decoder, acc *recordAccumulator) (bool, error) {
	single := &object{vals: make(map[string]any)}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return false, fmt.Errorf("json: read object key: %w", err)
		}
		key, _ := kt.(string)
		vt, err := dec.Token()
		if err != nil {
			return false, fmt.Errorf("json: read object value token: %w", err)
		}
		v, err := readValue(dec, vt)
		if err != nil {
			return false, err
		}
		if arr, ok := v.([]any); ok && len(arr) > 0 && allObjects(arr) {
			for _, e := range arr {
				acc.add(e.(*object))
			}
			for dec.More() {
				if _, err := dec.Token(); err != nil {
					return true, fmt.Errorf("json: skip envelope key: %w", err)
				}
				t, err := dec.Token()
				if err != nil {
					return true, fmt.Errorf("json: skip envelope value: %w", err)
				}
				if _, err := readValue(dec, t); err != nil {
					return true, err
				}
			}
			if _, err := dec.Token(); err != nil {
				return true, fmt.Errorf("json: read root object end: %w", err)
			}
			return true, nil
		}
		if _, dup := single.vals[key]; !dup {
			single.keys = append(single.keys, key)
		}
		single.vals[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return false, fmt.Errorf("json: read root object end: %w", err)
	}
	acc.add(single)
	return false, nil
}

func allObjects(arr []any) bool {
	for _, e := range arr {
		if _, ok := e.(*object); !ok {
			return false
		}
	}
	return true
}

// readTrailingObjects handles JSON lines: further top-level objects after
// the first one.
func readTrailingObjects(dec *json.Decoder, acc *recordAccumulator) error {
	for n := 2; ; n++ {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("json: decode record %d: %w", n, err)
		}
		v, err := readValue(dec, tok)
		if err != nil {
			return fmt.Errorf("json: decode record %d: %w", n, err)
		}
		obj, ok := v.(*object)
		if !ok {
			return fmt.Errorf("json: record %d not an object (got %T)", n, v)
		}
		acc.add(obj)
	}
}

type recordAccumulator struct {
	sep   string
	nulls map[string]struct{}
	cols  []string
	index map[string]int
	rows  []map[int]any
}

func newRecordAccumulator(sep string) *recordAccumulator {
	return &recordAccumulator{sep: sep, index: make(map[string]int)}
}

func (a *recordAccumulator) add(obj *object) {
	row := make(map[int]any, len(obj.keys))
	a.flatten("", obj, row)
	a.rows = append(a.rows, row)
}

func (a *recordAccumulator) flatten(prefix string, obj *object, row map[int]any) {
	for _, k := range obj.keys {
		name := k
		if prefix != "" {
			name = prefix + a.sep + k
		}
		if nested, ok := obj.vals[k].(*object); ok && len(nested.keys) > 0 {
			a.flatten(name, nested, row)
			continue
		}
		i, ok := a.index[name]
		if !ok {
			i = len(a.cols)
			a.index[name] = i
			a.cols = append(a.cols, name)
		}
		row[i] = a.scalar(obj.vals[k])
	}
}

func (a *recordAccumulator) scalar(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case string:
		if a.nulls != nil {
			if _, isNull := a.nulls[strings.TrimSpace(t)]; isNull {
				return nil
			}
		}
		return t
	case bool:
		return t
	case *object, []any:
		b, err := json.Marshal(plainValue(t))
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func (a *recordAccumulator) dataset() *Dataset {
	rows := make([][]any, len(a.rows))
	for r, m := range a.rows {
		row := make([]any, len(a.cols))
		for i, v := range m {
			row[i] = v
		}
		rows[r] = row
	}
	return New(a.cols, rows)
}
