// Package cuts holds the histogram bin boundaries emitted from a finished
// quantile sketch. A Matrix is the sole artifact handed to the downstream
// histogram builder: per column, an ordered list of cut values plus the
// column's lower bound, addressed through a CSC-style offset array.
package cuts

import (
	"fmt"
	"sort"

	"github.com/hupe1980/quantgo/layout"
)

// Matrix is an immutable set of per-column cut values.
type Matrix struct {
	values []float32
	ptrs   layout.Columns
	mins   []float32
}

// Builder assembles a Matrix column by column.
type Builder struct {
	values []float32
	sizes  []int
	mins   []float32
}

// NewBuilder returns a Builder pre-sized for the given column count.
func NewBuilder(numColumns int) *Builder {
	return &Builder{
		sizes: make([]int, 0, numColumns),
		mins:  make([]float32, 0, numColumns),
	}
}

// AddColumn appends one column's lower bound and ordered cut values.
func (b *Builder) AddColumn(minValue float32, cuts []float32) {
	b.values = append(b.values, cuts...)
	b.sizes = append(b.sizes, len(cuts))
	b.mins = append(b.mins, minValue)
}

// Build finalizes the matrix.
func (b *Builder) Build() *Matrix {
	return &Matrix{
		values: b.values,
		ptrs:   layout.FromSizes(b.sizes),
		mins:   b.mins,
	}
}

// NumColumns returns the number of feature columns.
func (m *Matrix) NumColumns() int {
	return m.ptrs.NumColumns()
}

// TotalBins returns the total cut count across all columns.
func (m *Matrix) TotalBins() int {
	return m.ptrs.Total()
}

// Ptrs returns the cut-offset layout. The returned slice must not be mutated.
func (m *Matrix) Ptrs() layout.Columns {
	return m.ptrs
}

// Values returns the flat cut-value buffer. The returned slice must not be
// mutated.
func (m *Matrix) Values() []float32 {
	return m.values
}

// ColumnCuts returns the ordered cut values of column i as a sub-slice of the
// flat buffer.
func (m *Matrix) ColumnCuts(i int) []float32 {
	begin, end := m.ptrs.Segment(i)
	return m.values[begin:end]
}

// MinValue returns the lower bound of column i: a value strictly below every
// sample observed in that column.
func (m *Matrix) MinValue(i int) float32 {
	return m.mins[i]
}

// SearchBin returns the global bin index of value v in column col: the offset
// of the column plus the position of the first cut greater than v, clamped to
// the column's last bin.
func (m *Matrix) SearchBin(col int, v float32) (int, error) {
	if col < 0 || col >= m.NumColumns() {
		return 0, fmt.Errorf("column %d out of range [0, %d)", col, m.NumColumns())
	}
	c := m.ColumnCuts(col)
	if len(c) == 0 {
		return 0, fmt.Errorf("column %d has no cuts", col)
	}
	idx := sort.Search(len(c), func(i int) bool { return c[i] > v })
	if idx == len(c) {
		idx = len(c) - 1
	}
	begin, _ := m.ptrs.Segment(col)
	return begin + idx, nil
}
