package quantgo

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/quantgo/layout"
	"github.com/hupe1980/quantgo/sketch"
)

// Snapshot is a deep copy of a container's sketch state, sufficient to resume
// a run on a fresh container. It is the unit persisted by the checkpoint
// package.
type Snapshot struct {
	Entries     []sketch.Entry
	Columns     layout.Columns
	MaxBins     int
	NumRows     int64
	Worker      int
	Categorical *roaring.Bitmap
}

// NumColumns returns the column count captured by the snapshot.
func (s Snapshot) NumColumns() int {
	return s.Columns.NumColumns()
}

// Snapshot captures the container's current state. The copy shares nothing
// with the container and stays valid across later mutations.
func (c *Container) Snapshot() Snapshot {
	s := Snapshot{
		Entries: c.Entries(),
		Columns: c.cols.Clone(),
		MaxBins: c.maxBins,
		NumRows: c.numRows,
		Worker:  c.worker,
	}
	if c.categorical != nil {
		s.Categorical = c.categorical.Clone()
	}
	return s
}

// Restore replaces the container's sketch state with the snapshot's. The
// snapshot must describe the same column count the container was constructed
// with.
func (c *Container) Restore(s Snapshot) error {
	if err := c.checkLayout(s.Columns); err != nil {
		return err
	}
	if s.Columns.Total() != len(s.Entries) {
		return &ErrSizeMismatch{What: "entries", Expected: s.Columns.Total(), Actual: len(s.Entries)}
	}

	out := c.buf.Scratch(len(s.Entries))
	out = append(out, s.Entries...)
	c.buf.Flip(out)
	c.cols = s.Columns.Clone()
	c.maxBins = s.MaxBins
	c.numRows = s.NumRows
	if s.Categorical != nil {
		c.categorical = s.Categorical.Clone()
	}
	return nil
}
