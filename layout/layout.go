// Package layout defines the compressed-sparse-column offset arrays that locate
// each feature column's entries inside one flat buffer.
//
// A Columns value holds numColumns+1 non-decreasing offsets; the entries of
// column i occupy the half-open range [Columns[i], Columns[i+1]) of the flat
// buffer. Every bulk operation in quantgo addresses per-column sub-ranges
// through this layout instead of keeping one container per column, so that a
// single pass can process all columns.
package layout

import (
	"errors"
	"fmt"
)

// ErrInvalid indicates a malformed column layout.
var ErrInvalid = errors.New("invalid column layout")

// Columns is a CSC-style offset array with numColumns+1 elements.
type Columns []int32

// FromSizes builds a layout from per-column entry counts.
func FromSizes(sizes []int) Columns {
	cols := make(Columns, len(sizes)+1)
	for i, n := range sizes {
		cols[i+1] = cols[i] + int32(n)
	}
	return cols
}

// Uniform builds a layout where every column holds exactly size entries.
func Uniform(numColumns, size int) Columns {
	cols := make(Columns, numColumns+1)
	for i := 1; i <= numColumns; i++ {
		cols[i] = cols[i-1] + int32(size)
	}
	return cols
}

// NumColumns returns the number of columns described by the layout.
func (c Columns) NumColumns() int {
	if len(c) == 0 {
		return 0
	}
	return len(c) - 1
}

// Segment returns the half-open entry range of column i.
func (c Columns) Segment(i int) (begin, end int) {
	return int(c[i]), int(c[i+1])
}

// Size returns the entry count of column i.
func (c Columns) Size(i int) int {
	return int(c[i+1] - c[i])
}

// Total returns the total entry count across all columns.
func (c Columns) Total() int {
	if len(c) == 0 {
		return 0
	}
	return int(c[len(c)-1])
}

// Clone returns a copy of the layout.
func (c Columns) Clone() Columns {
	out := make(Columns, len(c))
	copy(out, c)
	return out
}

// Validate checks that the layout is well formed: at least one offset,
// starting at zero and monotonically non-decreasing.
func (c Columns) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("%w: empty offset array", ErrInvalid)
	}
	if c[0] != 0 {
		return fmt.Errorf("%w: first offset is %d, want 0", ErrInvalid, c[0])
	}
	for i := 1; i < len(c); i++ {
		if c[i] < c[i-1] {
			return fmt.Errorf("%w: offset %d decreases (%d < %d)", ErrInvalid, i, c[i], c[i-1])
		}
	}
	return nil
}
