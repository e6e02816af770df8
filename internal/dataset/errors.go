package dataset

import "fmt"

// InvalidInputError reports a dataset that cannot be processed at all,
// typically nil or empty input.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Reason == "" {
		return "invalid input dataset"
	}
	return "invalid input dataset: " + e.Reason
}

// ColumnNotFoundError reports a declared column that the dataset does not
// carry. Table is set when the lookup happened on behalf of a schema table.
type ColumnNotFoundError struct {
	Table  string
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("column %q of table %s not found in dataset", e.Column, e.Table)
	}
	return fmt.Sprintf("column %q not found in dataset", e.Column)
}

// UnsupportedValueError is returned by Key for cells that have no canonical
// scalar form.
type UnsupportedValueError struct {
	Value any
}

func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("unsupported value type %T", e.Value)
}

// CheckInput returns an *InvalidInputError for nil or empty datasets.
func CheckInput(d *Dataset) error {
	switch {
	case d == nil:
		return &InvalidInputError{Reason: "dataset is nil"}
	case d.Width() == 0:
		return &InvalidInputError{Reason: "dataset has no columns"}
	case d.Len() == 0:
		return &InvalidInputError{Reason: "dataset has no rows"}
	}
	return nil
}
