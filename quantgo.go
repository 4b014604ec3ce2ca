package quantgo

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/quantgo/collective"
	"github.com/hupe1980/quantgo/cuts"
	"github.com/hupe1980/quantgo/internal/binenc"
	"github.com/hupe1980/quantgo/layout"
	"github.com/hupe1980/quantgo/sketch"
)

// Container holds one weighted quantile sketch per feature column for a local
// data partition.
//
// Entries live in a single flat buffer addressed through a column layout and
// backed by a double buffer: every reshaping operation writes the scratch
// arena and flips it live on success. Mutating operations (Push, Prune, Merge,
// Unique, AllReduce) must be issued strictly sequentially against one
// Container; parallelism happens inside each operation, per column. The
// container is not safe for concurrent mutation.
type Container struct {
	numColumns int
	maxBins    int
	numRows    int64
	worker     int

	categorical *roaring.Bitmap
	logger      *Logger
	metrics     MetricsCollector
	comm        collective.Communicator
	parallelism int

	buf  doubleBuffer
	cols layout.Columns
}

// New creates a Container for a partition with the given column count, bin
// budget per column, row count and worker identifier.
func New(numColumns, maxBins int, numRows int64, worker int, optFns ...Option) (*Container, error) {
	if numColumns < 1 {
		return nil, fmt.Errorf("column count must be positive, got %d", numColumns)
	}
	if maxBins < 2 {
		return nil, fmt.Errorf("bin budget must be at least 2, got %d", maxBins)
	}

	opts := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		communicator:     collective.SingleWorker{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.parallelism < 1 {
		opts.parallelism = runtime.GOMAXPROCS(0)
	}

	return &Container{
		numColumns:  numColumns,
		maxBins:     maxBins,
		numRows:     numRows,
		worker:      worker,
		categorical: opts.categorical,
		logger:      opts.logger.WithWorker(worker),
		metrics:     opts.metricsCollector,
		comm:        opts.communicator,
		parallelism: opts.parallelism,
		cols:        make(layout.Columns, numColumns+1),
	}, nil
}

// NumColumns returns the configured column count.
func (c *Container) NumColumns() int { return c.numColumns }

// MaxBins returns the configured per-column bin budget.
func (c *Container) MaxBins() int { return c.maxBins }

// NumRows returns the configured row count of the local partition.
func (c *Container) NumRows() int64 { return c.numRows }

// Worker returns the worker identifier the container is bound to.
func (c *Container) Worker() int { return c.worker }

// TotalEntries returns the entry count across all columns.
func (c *Container) TotalEntries() int { return c.cols.Total() }

// ColumnEntries returns the entry count of column col.
func (c *Container) ColumnEntries(col int) int { return c.cols.Size(col) }

// Columns returns a copy of the current column layout.
func (c *Container) Columns() layout.Columns { return c.cols.Clone() }

// Entries returns a copy of the current flat entry buffer.
func (c *Container) Entries() []sketch.Entry {
	cur := c.buf.Current()
	out := make([]sketch.Entry, len(cur))
	copy(out, cur)
	return out
}

// forEachColumn runs fn over all columns with bounded parallelism. The bulk
// operations built on it write disjoint sub-ranges of one output buffer, so
// no synchronization beyond the join is needed.
func (c *Container) forEachColumn(fn func(col int) error) error {
	var g errgroup.Group
	g.SetLimit(c.parallelism)
	for col := 0; col < c.numColumns; col++ {
		g.Go(func() error { return fn(col) })
	}
	return g.Wait()
}

// Push ingests one batch of pre-sorted per-column samples.
//
// values holds all columns' samples back to back in the ranges described by
// cols; within each column values must be sorted ascending. weights is either
// nil (unit weight per sample) or parallel to values. budget describes the
// per-column entry capacity derived from the cut count; a column's summary is
// pruned down to its budget segment size before it is materialized.
//
// The first push installs the batch as the container's sketch; later pushes
// merge the batch into it.
func (c *Container) Push(ctx context.Context, values []float32, weights []float64, cols, budget layout.Columns) error {
	start := time.Now()
	err := c.push(ctx, values, weights, cols, budget)
	c.metrics.RecordPush(len(values), time.Since(start), err)
	c.logger.LogPush(ctx, len(values), c.TotalEntries(), err)
	return err
}

func (c *Container) push(ctx context.Context, values []float32, weights []float64, cols, budget layout.Columns) error {
	if err := c.checkLayout(cols); err != nil {
		return err
	}
	if err := c.checkLayout(budget); err != nil {
		return err
	}
	if cols.Total() != len(values) {
		return &ErrSizeMismatch{What: "values", Expected: cols.Total(), Actual: len(values)}
	}
	if weights != nil && len(weights) != len(values) {
		return &ErrSizeMismatch{What: "weights", Expected: len(values), Actual: len(weights)}
	}

	if err := c.forEachColumn(func(col int) error {
		begin, end := cols.Segment(col)
		for i := begin + 1; i < end; i++ {
			if values[i] < values[i-1] {
				return &ErrUnsortedColumn{Column: col, Index: i - begin}
			}
		}
		return nil
	}); err != nil {
		return err
	}

	batch, batchCols, err := c.buildBatch(values, weights, cols, budget)
	if err != nil {
		return err
	}

	if c.cols.Total() == 0 {
		out := c.buf.Scratch(len(batch))
		out = append(out, batch...)
		c.buf.Flip(out)
		c.cols = batchCols
		return nil
	}
	return c.merge(batchCols, batch)
}

// buildBatch materializes a compact batch summary: per column, the
// duplicate-accumulation scan over the sorted run followed by a prune down to
// the column's budget.
func (c *Container) buildBatch(values []float32, weights []float64, cols, budget layout.Columns) ([]sketch.Entry, layout.Columns, error) {
	worst := make([]int, c.numColumns)
	for col := range worst {
		capacity := budget.Size(col)
		if capacity < 2 {
			capacity = 2
		}
		worst[col] = min(cols.Size(col), capacity)
	}
	worstCols := layout.FromSizes(worst)

	out := make([]sketch.Entry, worstCols.Total())
	counts := make([]int, c.numColumns)
	if err := c.forEachColumn(func(col int) error {
		begin, end := cols.Segment(col)
		if begin == end {
			return nil
		}
		var w []float64
		if weights != nil {
			w = weights[begin:end]
		}
		distinct := sketch.BuildWeighted(nil, values[begin:end], w)

		wBegin, wEnd := worstCols.Segment(col)
		dst := out[wBegin:wBegin:wEnd]
		dst = sketch.PruneSegment(dst, distinct, worst[col])
		counts[col] = len(dst)
		return nil
	}); err != nil {
		return nil, nil, err
	}

	total := compact(out, worstCols, counts)
	return out[:total], layout.FromSizes(counts), nil
}

// Prune reduces every column's entry count to at most `to`, keeping the
// column minimum, maximum and widest-bound entries. Columns already at or
// below the target are copied unchanged.
func (c *Container) Prune(ctx context.Context, to int) error {
	if to < 1 {
		return fmt.Errorf("prune target must be positive, got %d", to)
	}
	start := time.Now()
	before := c.TotalEntries()

	worst := make([]int, c.numColumns)
	for col := range worst {
		worst[col] = min(c.cols.Size(col), max(to, 2))
	}
	worstCols := layout.FromSizes(worst)

	cur := c.buf.Current()
	out := c.buf.Scratch(worstCols.Total())[:worstCols.Total()]
	counts := make([]int, c.numColumns)
	if err := c.forEachColumn(func(col int) error {
		begin, end := c.cols.Segment(col)
		wBegin, wEnd := worstCols.Segment(col)
		dst := out[wBegin:wBegin:wEnd]
		dst = sketch.PruneSegment(dst, cur[begin:end], to)
		counts[col] = len(dst)
		return nil
	}); err != nil {
		return err
	}

	total := compact(out, worstCols, counts)
	c.buf.Flip(out[:total])
	c.cols = layout.FromSizes(counts)

	c.metrics.RecordPrune(before, total, time.Since(start))
	c.logger.LogPrune(ctx, to, before, total)
	return nil
}

// Merge combines the container's sketch with another column-aligned entry
// sequence, per column, using the rank-preserving two-pointer merge. The
// other sketch must be valid: same column count, entries sorted by value
// within each column.
func (c *Container) Merge(ctx context.Context, otherCols layout.Columns, otherEntries []sketch.Entry) error {
	start := time.Now()
	err := c.mergeChecked(otherCols, otherEntries)
	c.metrics.RecordMerge(time.Since(start), err)
	c.logger.LogMerge(ctx, len(otherEntries), c.TotalEntries(), err)
	return err
}

func (c *Container) mergeChecked(otherCols layout.Columns, otherEntries []sketch.Entry) error {
	if err := c.checkLayout(otherCols); err != nil {
		return err
	}
	if otherCols.Total() != len(otherEntries) {
		return &ErrSizeMismatch{What: "entries", Expected: otherCols.Total(), Actual: len(otherEntries)}
	}
	return c.merge(otherCols, otherEntries)
}

func (c *Container) merge(otherCols layout.Columns, otherEntries []sketch.Entry) error {
	worst := make([]int, c.numColumns)
	for col := range worst {
		worst[col] = c.cols.Size(col) + otherCols.Size(col)
	}
	worstCols := layout.FromSizes(worst)

	cur := c.buf.Current()
	out := c.buf.Scratch(worstCols.Total())[:worstCols.Total()]
	counts := make([]int, c.numColumns)
	if err := c.forEachColumn(func(col int) error {
		aBegin, aEnd := c.cols.Segment(col)
		bBegin, bEnd := otherCols.Segment(col)
		wBegin, wEnd := worstCols.Segment(col)
		dst := out[wBegin:wBegin:wEnd]
		dst = sketch.MergeSegments(dst, cur[aBegin:aEnd], otherEntries[bBegin:bEnd])
		counts[col] = len(dst)
		return nil
	}); err != nil {
		return err
	}

	total := compact(out, worstCols, counts)
	c.buf.Flip(out[:total])
	c.cols = layout.FromSizes(counts)
	return nil
}

// Unique collapses adjacent same-valued entries within each column using
// exact value equality and returns the new total entry count.
func (c *Container) Unique(ctx context.Context) (int, error) {
	return c.UniqueFunc(ctx, sketch.ValueEq)
}

// UniqueFunc is Unique with a caller-supplied equality comparator.
func (c *Container) UniqueFunc(ctx context.Context, eq sketch.EqualFunc) (int, error) {
	start := time.Now()
	before := c.TotalEntries()

	cur := c.buf.Current()
	out := c.buf.Scratch(before)[:before]
	counts := make([]int, c.numColumns)
	if err := c.forEachColumn(func(col int) error {
		begin, end := c.cols.Segment(col)
		dst := out[begin:begin:end]
		dst = sketch.UniqueSegment(dst, cur[begin:end], eq)
		counts[col] = len(dst)
		return nil
	}); err != nil {
		return 0, err
	}

	total := compact(out, c.cols, counts)
	c.buf.Flip(out[:total])
	c.cols = layout.FromSizes(counts)

	c.metrics.RecordUnique(before-total, time.Since(start))
	c.logger.LogUnique(ctx, before, total)
	return total, nil
}

// FixError repairs floating-point drift in the rank bounds accumulated through
// repeated merges, column by column. It never removes or reorders entries and
// is idempotent.
func (c *Container) FixError(_ context.Context) error {
	cur := c.buf.Current()
	return c.forEachColumn(func(col int) error {
		begin, end := c.cols.Segment(col)
		sketch.FixSegment(cur[begin:end])
		return nil
	})
}

// AllReduce exchanges the local sketch with every cooperating worker and
// replaces it with the column-wise merge of all workers' sketches. It is a
// synchronization point: every worker in the group must call it exactly once
// per round. After return all workers hold the identical global sketch.
//
// Any collective failure is fatal for the round; no partial merge is
// attempted.
func (c *Container) AllReduce(ctx context.Context) error {
	start := time.Now()
	payloadBytes, err := c.allReduce(ctx)
	c.metrics.RecordAllReduce(c.comm.WorldSize(), payloadBytes, time.Since(start), err)
	c.logger.LogAllReduce(ctx, c.comm.WorldSize(), payloadBytes, time.Since(start), err)
	return err
}

func (c *Container) allReduce(ctx context.Context) (int, error) {
	if c.comm.WorldSize() <= 1 {
		return 0, nil
	}

	payload := binenc.EncodeSummary(nil, c.buf.Current(), c.cols)
	gathered, err := c.comm.Allgather(ctx, payload)
	if err != nil {
		return len(payload), fmt.Errorf("%w: %w", ErrCollective, err)
	}
	if len(gathered) != c.comm.WorldSize() {
		return len(payload), fmt.Errorf("%w: gathered %d payloads from %d workers",
			ErrCollective, len(gathered), c.comm.WorldSize())
	}

	for rank, buf := range gathered {
		if rank == c.comm.Rank() {
			continue
		}
		entries, cols, err := binenc.DecodeSummary(buf)
		if err != nil {
			return len(payload), fmt.Errorf("%w: rank %d: %w", ErrCollective, rank, err)
		}
		if cols.NumColumns() != c.numColumns {
			return len(payload), &ErrColumnCountMismatch{
				Expected: c.numColumns,
				Actual:   cols.NumColumns(),
				cause:    fmt.Errorf("%w: rank %d", ErrCollective, rank),
			}
		}
		if err := c.merge(cols, entries); err != nil {
			return len(payload), err
		}
	}
	return len(payload), nil
}

// MakeCuts walks the final sketch and emits per-column cut boundary values.
// Numeric columns get up to MaxBins rank-spaced cuts ending strictly above the
// column maximum; categorical columns get one cut per distinct observed value.
// The operation reads the container without mutating it.
func (c *Container) MakeCuts(ctx context.Context) (*cuts.Matrix, error) {
	start := time.Now()
	m, err := c.makeCuts()
	totalBins := 0
	if m != nil {
		totalBins = m.TotalBins()
	}
	c.metrics.RecordMakeCuts(totalBins, time.Since(start), err)
	c.logger.LogMakeCuts(ctx, c.numColumns, totalBins, err)
	return m, err
}

func (c *Container) makeCuts() (*cuts.Matrix, error) {
	if c.TotalEntries() == 0 {
		return nil, ErrEmptySketch
	}

	cur := c.buf.Current()
	colCuts := make([][]float32, c.numColumns)
	colMins := make([]float32, c.numColumns)
	if err := c.forEachColumn(func(col int) error {
		begin, end := c.cols.Segment(col)
		seg := cur[begin:end]
		if len(seg) == 0 {
			return nil
		}
		colMins[col] = belowLowest(seg[0].Value)
		if c.categorical != nil && c.categorical.Contains(uint32(col)) {
			vals := make([]float32, len(seg))
			for i, e := range seg {
				vals[i] = e.Value
			}
			colCuts[col] = vals
			return nil
		}
		colCuts[col] = numericCuts(seg, c.maxBins)
		return nil
	}); err != nil {
		return nil, err
	}

	b := cuts.NewBuilder(c.numColumns)
	for col := 0; col < c.numColumns; col++ {
		b.AddColumn(colMins[col], colCuts[col])
	}
	return b.Build(), nil
}

// numericCuts emits rank-spaced interior cuts plus a final cut strictly above
// the column maximum. When the summary has fewer distinct values than the bin
// budget, every value past the first becomes a cut.
func numericCuts(seg []sketch.Entry, maxBins int) []float32 {
	out := make([]float32, 0, min(len(seg), maxBins))
	if len(seg) <= maxBins {
		for _, e := range seg[1:] {
			out = append(out, e.Value)
		}
	} else {
		for i := 1; i < maxBins; i++ {
			v := sketch.SegmentQuantile(seg, float64(i)/float64(maxBins))
			if len(out) == 0 || v > out[len(out)-1] {
				out = append(out, v)
			}
		}
	}

	last := aboveHighest(seg[len(seg)-1].Value)
	for len(out) > 0 && out[len(out)-1] >= last {
		out = out[:len(out)-1]
	}
	return append(out, last)
}

// belowLowest returns a value strictly below v, used as the column's lower
// bound so the minimum sample falls inside the first bin.
func belowLowest(v float32) float32 {
	return v - (float32(math.Abs(float64(v))) + 1e-5)
}

// aboveHighest returns a value strictly above v, used as the final cut so the
// maximum sample falls inside the last bin.
func aboveHighest(v float32) float32 {
	return v + (float32(math.Abs(float64(v))) + 1e-5)
}

// Quantile returns the value of column col whose effective rank is closest to
// the q-quantile of the column's total weight, for q in [0, 1].
func (c *Container) Quantile(col int, q float64) (float32, error) {
	if col < 0 || col >= c.numColumns {
		return 0, fmt.Errorf("column %d out of range [0, %d)", col, c.numColumns)
	}
	if q < 0 || q > 1 {
		return 0, fmt.Errorf("quantile must be in [0, 1], got %v", q)
	}
	begin, end := c.cols.Segment(col)
	if begin == end {
		return 0, ErrEmptySketch
	}
	return sketch.SegmentQuantile(c.buf.Current()[begin:end], q), nil
}

func (c *Container) checkLayout(cols layout.Columns) error {
	if err := cols.Validate(); err != nil {
		return err
	}
	if cols.NumColumns() != c.numColumns {
		return &ErrColumnCountMismatch{Expected: c.numColumns, Actual: cols.NumColumns()}
	}
	return nil
}

// compact shifts each column's entries left so the buffer becomes contiguous
// under the actual per-column counts, and returns the new total. Regions only
// ever move toward lower offsets, so the sequential pass is safe.
func compact(buf []sketch.Entry, worst layout.Columns, counts []int) int {
	w := 0
	for col := 0; col < worst.NumColumns(); col++ {
		begin, _ := worst.Segment(col)
		n := counts[col]
		if begin != w {
			copy(buf[w:w+n], buf[begin:begin+n])
		}
		w += n
	}
	return w
}
