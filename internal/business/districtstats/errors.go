package districtstats

import (
	"errors"
	"fmt"
)

var (
	ErrNoSnapshot         = errors.New("no district snapshot loaded yet")
	ErrUnknownDistrict    = errors.New("unknown district")
	ErrRefreshInProgress  = errors.New("a refresh is already running")
	ErrUnknownRankingAxis = errors.New("unknown ranking field")
)

// DataFormatError reports a field that could not be converted. It aborts the
// whole computation.
type DataFormatError struct {
	Dataset string // boundaries, population, area
	Row     int    // zero-based index within the dataset
	Column  int    // -1 when not column-addressed
	Value   string
	Err     error
}

func (e *DataFormatError) Error() string {
	if e.Column >= 0 {
		return fmt.Sprintf("%s row %d column %d: invalid value %q: %v", e.Dataset, e.Row, e.Column, e.Value, e.Err)
	}
	return fmt.Sprintf("%s row %d: invalid value %q: %v", e.Dataset, e.Row, e.Value, e.Err)
}

func (e *DataFormatError) Unwrap() error { return e.Err }

// EmptyInputWarning is attached to a result when a dataset had no records.
// It is informational and never returned as an error by ComputeStats.
type EmptyInputWarning struct {
	Dataset string
}

func (w EmptyInputWarning) Error() string {
	return fmt.Sprintf("%s dataset is empty", w.Dataset)
}
