package quantgo

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySketch is returned when an operation needs at least one
	// ingested batch and the container holds no entries.
	ErrEmptySketch = errors.New("sketch holds no entries")

	// ErrCollective is returned when the distributed exchange fails. It is
	// fatal for the round: no partial or degraded merge is attempted.
	ErrCollective = errors.New("collective exchange failed")
)

// ErrColumnCountMismatch indicates that an input's column count disagrees with
// the container's configured column count. This is a caller bug; the operation
// must be treated as unrecoverable.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrColumnCountMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrColumnCountMismatch) Error() string {
	return fmt.Sprintf("column count mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrColumnCountMismatch) Unwrap() error { return e.cause }

// ErrUnsortedColumn indicates that a pushed column's values were not sorted
// ascending. This is a caller bug; pre-sorting is part of the Push contract.
type ErrUnsortedColumn struct {
	Column int
	Index  int
}

func (e *ErrUnsortedColumn) Error() string {
	return fmt.Sprintf("column %d: values not sorted ascending at position %d", e.Column, e.Index)
}

// ErrSizeMismatch indicates that parallel input slices disagree in length.
type ErrSizeMismatch struct {
	What     string
	Expected int
	Actual   int
}

func (e *ErrSizeMismatch) Error() string {
	return fmt.Sprintf("%s length mismatch: expected %d, got %d", e.What, e.Expected, e.Actual)
}
