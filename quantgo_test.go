package quantgo

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/quantgo/collective"
	"github.com/hupe1980/quantgo/layout"
	"github.com/hupe1980/quantgo/sketch"
	"github.com/hupe1980/quantgo/testutil"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(0, 16, 100, 0)
	require.Error(t, err)

	_, err = New(4, 1, 100, 0)
	require.Error(t, err)

	c, err := New(4, 16, 100, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, c.NumColumns())
	assert.Equal(t, 16, c.MaxBins())
	assert.Equal(t, int64(100), c.NumRows())
	assert.Equal(t, 3, c.Worker())
	assert.Equal(t, 0, c.TotalEntries())
}

// pushSingle ingests one single-column batch with unit weights and a budget
// large enough that nothing is pruned away.
func pushSingle(t *testing.T, c *Container, values []float32) {
	t.Helper()
	cols := layout.FromSizes([]int{len(values)})
	budget := layout.Uniform(1, len(values)+1)
	require.NoError(t, c.Push(context.Background(), values, nil, cols, budget))
}

func TestPush_AccumulatesDuplicateWeight(t *testing.T) {
	c, err := New(1, 16, 6, 0)
	require.NoError(t, err)

	pushSingle(t, c, []float32{1, 1, 2, 3, 3, 3})

	got := c.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, sketch.Entry{Value: 1, RankMin: 0, RankMax: 2, WMin: 2}, got[0])
	assert.Equal(t, sketch.Entry{Value: 2, RankMin: 2, RankMax: 3, WMin: 1}, got[1])
	assert.Equal(t, sketch.Entry{Value: 3, RankMin: 3, RankMax: 6, WMin: 3}, got[2])
}

func TestPush_ExplicitWeights(t *testing.T) {
	c, err := New(1, 16, 3, 0)
	require.NoError(t, err)

	values := []float32{1, 1, 2}
	weights := []float64{0.5, 1.5, 3}
	cols := layout.FromSizes([]int{3})
	budget := layout.Uniform(1, 4)
	require.NoError(t, c.Push(context.Background(), values, weights, cols, budget))

	got := c.Entries()
	require.Len(t, got, 2)
	assert.Equal(t, sketch.Entry{Value: 1, RankMin: 0, RankMax: 2, WMin: 2}, got[0])
	assert.Equal(t, sketch.Entry{Value: 2, RankMin: 2, RankMax: 5, WMin: 3}, got[1])
}

func TestPush_SecondBatchMerges(t *testing.T) {
	c, err := New(1, 16, 4, 0)
	require.NoError(t, err)

	pushSingle(t, c, []float32{1, 3})
	pushSingle(t, c, []float32{2, 3})

	got := c.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, float32(1), got[0].Value)
	assert.Equal(t, float32(2), got[1].Value)
	assert.Equal(t, float32(3), got[2].Value)
	// The tied value 3 carries combined weight from both batches.
	assert.Equal(t, float64(2), got[2].WMin)
	assert.Equal(t, float64(4), got[2].RankMax)
}

func TestPush_Errors(t *testing.T) {
	ctx := context.Background()
	c, err := New(1, 16, 4, 0)
	require.NoError(t, err)

	budget := layout.Uniform(1, 4)

	var unsorted *ErrUnsortedColumn
	err = c.Push(ctx, []float32{2, 1}, nil, layout.FromSizes([]int{2}), budget)
	require.ErrorAs(t, err, &unsorted)
	assert.Equal(t, 0, unsorted.Column)
	assert.Equal(t, 1, unsorted.Index)

	var size *ErrSizeMismatch
	err = c.Push(ctx, []float32{1, 2}, nil, layout.FromSizes([]int{3}), budget)
	require.ErrorAs(t, err, &size)

	err = c.Push(ctx, []float32{1, 2}, []float64{1}, layout.FromSizes([]int{2}), budget)
	require.ErrorAs(t, err, &size)

	var colCount *ErrColumnCountMismatch
	err = c.Push(ctx, []float32{1, 2}, nil, layout.FromSizes([]int{1, 1}), budget)
	require.ErrorAs(t, err, &colCount)

	err = c.Push(ctx, []float32{1, 2}, nil, layout.Columns{1, 3}, budget)
	require.ErrorIs(t, err, layout.ErrInvalid)

	// Nothing was installed by the failed pushes.
	assert.Equal(t, 0, c.TotalEntries())
}

func TestPush_MultiColumn(t *testing.T) {
	c, err := New(3, 16, 4, 0)
	require.NoError(t, err)

	// Column 1 is empty; empty columns are valid and simply stay empty.
	values := []float32{1, 2, 5, 5, 6}
	cols := layout.FromSizes([]int{2, 0, 3})
	budget := layout.Uniform(3, 8)
	require.NoError(t, c.Push(context.Background(), values, nil, cols, budget))

	assert.Equal(t, 2, c.ColumnEntries(0))
	assert.Equal(t, 0, c.ColumnEntries(1))
	assert.Equal(t, 2, c.ColumnEntries(2)) // 5,5 collapsed
	assert.Equal(t, 4, c.TotalEntries())
}

func TestPrune_ToTarget(t *testing.T) {
	c, err := New(1, 16, 10, 0)
	require.NoError(t, err)
	pushSingle(t, c, []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	require.Equal(t, 10, c.TotalEntries())

	require.NoError(t, c.Prune(context.Background(), 4))

	got := c.Entries()
	require.LessOrEqual(t, len(got), 4)
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, float32(0), got[0].Value)
	assert.Equal(t, float32(9), got[len(got)-1].Value)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Value, got[i-1].Value)
	}
}

func TestPrune_NoOpBelowTarget(t *testing.T) {
	c, err := New(1, 16, 3, 0)
	require.NoError(t, err)
	pushSingle(t, c, []float32{1, 2, 3})

	before := c.Entries()
	require.NoError(t, c.Prune(context.Background(), 8))
	assert.Equal(t, before, c.Entries())
}

func TestPrune_RejectsInvalidTarget(t *testing.T) {
	c, err := New(1, 16, 3, 0)
	require.NoError(t, err)
	require.Error(t, c.Prune(context.Background(), 0))
}

func TestMerge_External(t *testing.T) {
	ctx := context.Background()
	c, err := New(1, 16, 4, 0)
	require.NoError(t, err)
	pushSingle(t, c, []float32{1, 3})

	other := []sketch.Entry{
		{Value: 2, RankMin: 0, RankMax: 1, WMin: 1},
		{Value: 4, RankMin: 1, RankMax: 2, WMin: 1},
	}
	require.NoError(t, c.Merge(ctx, layout.FromSizes([]int{2}), other))

	got := c.Entries()
	require.Len(t, got, 4)
	assert.Equal(t, []float32{1, 2, 3, 4}, []float32{got[0].Value, got[1].Value, got[2].Value, got[3].Value})
	// Total weight is the sum of both sketches.
	assert.Equal(t, float64(4), got[3].RankMax)

	var size *ErrSizeMismatch
	err = c.Merge(ctx, layout.FromSizes([]int{3}), other)
	require.ErrorAs(t, err, &size)
}

func TestUnique_CollapsesRuns(t *testing.T) {
	ctx := context.Background()
	c, err := New(1, 16, 6, 0)
	require.NoError(t, err)

	require.NoError(t, c.Restore(Snapshot{
		Entries: []sketch.Entry{
			{Value: 1, RankMin: 0, RankMax: 1, WMin: 1},
			{Value: 1, RankMin: 1, RankMax: 3, WMin: 1},
			{Value: 2, RankMin: 3, RankMax: 4, WMin: 1},
		},
		Columns: layout.FromSizes([]int{3}),
		MaxBins: 16,
	}))

	total, err := c.Unique(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	got := c.Entries()
	// First entry of the run survives carrying the run's max upper bound.
	assert.Equal(t, sketch.Entry{Value: 1, RankMin: 0, RankMax: 3, WMin: 1}, got[0])
	assert.Equal(t, sketch.Entry{Value: 2, RankMin: 3, RankMax: 4, WMin: 1}, got[1])
}

func TestUniqueFunc_CustomComparator(t *testing.T) {
	ctx := context.Background()
	c, err := New(1, 16, 3, 0)
	require.NoError(t, err)
	pushSingle(t, c, []float32{1, 1.4, 2})

	total, err := c.UniqueFunc(ctx, func(a, b sketch.Entry) bool {
		d := a.Value - b.Value
		return d < 0.5 && d > -0.5
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestFixError_Idempotent(t *testing.T) {
	ctx := context.Background()
	c, err := New(1, 16, 3, 0)
	require.NoError(t, err)

	require.NoError(t, c.Restore(Snapshot{
		Entries: []sketch.Entry{
			{Value: 1, RankMin: 0, RankMax: 2, WMin: 2},
			{Value: 2, RankMin: 1.9, RankMax: 1.5, WMin: 1}, // drifted bounds
			{Value: 3, RankMin: 3, RankMax: 6, WMin: 3},
		},
		Columns: layout.FromSizes([]int{3}),
		MaxBins: 16,
	}))

	require.NoError(t, c.FixError(ctx))
	first := c.Entries()
	for i, e := range first {
		assert.LessOrEqual(t, e.RankMin, e.RankMax, "entry %d", i)
		if i > 0 {
			assert.GreaterOrEqual(t, e.RankMin, first[i-1].RankMin)
			assert.GreaterOrEqual(t, e.RankMax, first[i-1].RankMax)
		}
	}

	require.NoError(t, c.FixError(ctx))
	assert.Equal(t, first, c.Entries())
}

func TestAllReduce_SingleWorkerNoOp(t *testing.T) {
	c, err := New(1, 16, 3, 0)
	require.NoError(t, err)
	pushSingle(t, c, []float32{1, 2, 3})

	before := c.Entries()
	require.NoError(t, c.AllReduce(context.Background()))
	assert.Equal(t, before, c.Entries())
}

func TestAllReduce_TwoWorkers(t *testing.T) {
	ctx := context.Background()
	group, err := collective.NewGroup(2)
	require.NoError(t, err)

	containers := make([]*Container, 2)
	for rank := 0; rank < 2; rank++ {
		comm, err := group.Worker(rank)
		require.NoError(t, err)
		c, err := New(1, 16, 1, rank, WithCommunicator(comm))
		require.NoError(t, err)
		pushSingle(t, c, []float32{5})
		containers[rank] = c
	}

	var g errgroup.Group
	for rank := 0; rank < 2; rank++ {
		g.Go(func() error { return containers[rank].AllReduce(ctx) })
	}
	require.NoError(t, g.Wait())

	for rank, c := range containers {
		got := c.Entries()
		require.Len(t, got, 1, "rank %d", rank)
		assert.Equal(t, sketch.Entry{Value: 5, RankMin: 0, RankMax: 2, WMin: 2}, got[0], "rank %d", rank)
	}
	assert.Equal(t, containers[0].Entries(), containers[1].Entries())
}

func TestAllReduce_DisjointWorkers(t *testing.T) {
	ctx := context.Background()
	group, err := collective.NewGroup(2)
	require.NoError(t, err)

	data := [][]float32{{1, 2}, {3, 4}}
	containers := make([]*Container, 2)
	for rank := 0; rank < 2; rank++ {
		comm, err := group.Worker(rank)
		require.NoError(t, err)
		c, err := New(1, 16, 2, rank, WithCommunicator(comm))
		require.NoError(t, err)
		pushSingle(t, c, data[rank])
		containers[rank] = c
	}

	var g errgroup.Group
	for rank := 0; rank < 2; rank++ {
		g.Go(func() error { return containers[rank].AllReduce(ctx) })
	}
	require.NoError(t, g.Wait())

	for rank, c := range containers {
		got := c.Entries()
		require.Len(t, got, 4, "rank %d", rank)
		assert.Equal(t, float64(4), got[3].RankMax, "rank %d", rank)
	}
	assert.Equal(t, containers[0].Entries(), containers[1].Entries())
}

func TestMakeCuts_Numeric(t *testing.T) {
	c, err := New(1, 16, 4, 0)
	require.NoError(t, err)
	pushSingle(t, c, []float32{1, 2, 3, 4})

	m, err := c.MakeCuts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, m.NumColumns())

	cuts := m.ColumnCuts(0)
	require.Len(t, cuts, 4)
	assert.Equal(t, []float32{2, 3, 4}, cuts[:3])
	// Final cut is strictly above the column maximum.
	assert.Greater(t, cuts[3], float32(4))
	assert.Less(t, m.MinValue(0), float32(1))

	bin, err := m.SearchBin(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, bin)

	bin, err = m.SearchBin(0, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, bin)

	// Out-of-range values clamp to the last bin.
	bin, err = m.SearchBin(0, 1e9)
	require.NoError(t, err)
	assert.Equal(t, 3, bin)
}

func TestMakeCuts_RespectsBinBudget(t *testing.T) {
	c, err := New(1, 4, 64, 0)
	require.NoError(t, err)

	values := make([]float32, 64)
	for i := range values {
		values[i] = float32(i)
	}
	pushSingle(t, c, values)

	m, err := c.MakeCuts(context.Background())
	require.NoError(t, err)

	cuts := m.ColumnCuts(0)
	assert.LessOrEqual(t, len(cuts), 4)
	assert.Greater(t, cuts[len(cuts)-1], float32(63))
	for i := 1; i < len(cuts); i++ {
		assert.Greater(t, cuts[i], cuts[i-1])
	}
}

func TestMakeCuts_Categorical(t *testing.T) {
	cat := roaring.New()
	cat.Add(1)

	c, err := New(2, 4, 6, 0, WithCategoricalColumns(cat))
	require.NoError(t, err)

	values := []float32{1, 2, 3, 0, 2, 5}
	cols := layout.FromSizes([]int{3, 3})
	budget := layout.Uniform(2, 8)
	require.NoError(t, c.Push(context.Background(), values, nil, cols, budget))

	m, err := c.MakeCuts(context.Background())
	require.NoError(t, err)

	// Categorical column: one cut per distinct value, the values themselves.
	assert.Equal(t, []float32{0, 2, 5}, m.ColumnCuts(1))
	// Numeric column still ends above its max.
	numCuts := m.ColumnCuts(0)
	assert.Greater(t, numCuts[len(numCuts)-1], float32(3))
}

func TestMakeCuts_EmptySketch(t *testing.T) {
	c, err := New(1, 16, 0, 0)
	require.NoError(t, err)
	_, err = c.MakeCuts(context.Background())
	require.ErrorIs(t, err, ErrEmptySketch)
}

func TestQuantile(t *testing.T) {
	c, err := New(1, 16, 6, 0)
	require.NoError(t, err)
	pushSingle(t, c, []float32{1, 1, 2, 3, 3, 3})

	got, err := c.Quantile(0, 0.5)
	require.NoError(t, err)
	assert.Equal(t, float32(2), got)

	got, err = c.Quantile(0, 0)
	require.NoError(t, err)
	assert.Equal(t, float32(1), got)

	got, err = c.Quantile(0, 1)
	require.NoError(t, err)
	assert.Equal(t, float32(3), got)

	_, err = c.Quantile(1, 0.5)
	require.Error(t, err)
	_, err = c.Quantile(0, 1.5)
	require.Error(t, err)
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	c, err := New(1, 16, 6, 2)
	require.NoError(t, err)
	pushSingle(t, c, []float32{1, 2, 3, 4, 5, 6})

	snap := c.Snapshot()
	assert.Equal(t, 2, snap.Worker)
	assert.Equal(t, 1, snap.NumColumns())

	require.NoError(t, c.Prune(ctx, 2))
	require.NotEqual(t, snap.Entries, c.Entries())

	require.NoError(t, c.Restore(snap))
	assert.Equal(t, snap.Entries, c.Entries())
	assert.Equal(t, snap.Columns, c.Columns())

	// The snapshot is a deep copy: mutating it does not touch the container.
	snap.Entries[0].Value = -1
	assert.NotEqual(t, snap.Entries[0], c.Entries()[0])
}

func TestRestore_Validation(t *testing.T) {
	c, err := New(2, 16, 3, 0)
	require.NoError(t, err)

	var colCount *ErrColumnCountMismatch
	err = c.Restore(Snapshot{Columns: layout.FromSizes([]int{1})})
	require.ErrorAs(t, err, &colCount)

	var size *ErrSizeMismatch
	err = c.Restore(Snapshot{Columns: layout.FromSizes([]int{1, 1})})
	require.ErrorAs(t, err, &size)
}

// TestRankBounds_RandomizedWorkload drives the container through a randomized
// sequence of weighted pushes interleaved with prune, unique and fix-error,
// then checks every surviving entry's rank bounds against an exact oracle over
// the raw samples: bounds are internally consistent, monotone along each
// column, and bracket the true weighted rank of the entry's value.
func TestRankBounds_RandomizedWorkload(t *testing.T) {
	const (
		numColumns = 2
		batchSize  = 40
		batches    = 5
		eps        = 1e-6
	)

	ctx := context.Background()
	rng := testutil.NewRNG(42)

	c, err := New(numColumns, 16, int64(batches*batchSize), 0)
	require.NoError(t, err)

	seenValues := make([][]float32, numColumns)
	seenWeights := make([][]float64, numColumns)
	pushCols := layout.Uniform(numColumns, batchSize)
	budget := layout.Uniform(numColumns, 24)

	for b := 0; b < batches; b++ {
		var values []float32
		var weights []float64
		for col := 0; col < numColumns; col++ {
			v := rng.SortedValues(batchSize, 12)
			w := rng.UniformWeights(batchSize)
			values = append(values, v...)
			weights = append(weights, w...)
			seenValues[col] = append(seenValues[col], v...)
			seenWeights[col] = append(seenWeights[col], w...)
		}
		require.NoError(t, c.Push(ctx, values, weights, pushCols, budget))

		if b == 2 {
			require.NoError(t, c.Prune(ctx, 20))
		}
	}

	require.NoError(t, c.Prune(ctx, 16))
	_, err = c.Unique(ctx)
	require.NoError(t, err)
	require.NoError(t, c.FixError(ctx))

	entries := c.Entries()
	cols := c.Columns()
	for col := 0; col < numColumns; col++ {
		begin, end := cols.Segment(col)
		seg := entries[begin:end]
		require.NotEmpty(t, seg, "column %d", col)

		minV, maxV := seenValues[col][0], seenValues[col][0]
		for _, v := range seenValues[col] {
			minV = min(minV, v)
			maxV = max(maxV, v)
		}
		// Pruning always retains the column minimum and maximum.
		assert.Equal(t, minV, seg[0].Value, "column %d", col)
		assert.Equal(t, maxV, seg[len(seg)-1].Value, "column %d", col)

		total := testutil.TotalWeight(seenValues[col], seenWeights[col])
		for i, e := range seg {
			assert.LessOrEqual(t, e.RankMin, e.RankMax, "column %d entry %d", col, i)
			if i > 0 {
				assert.Greater(t, e.Value, seg[i-1].Value, "column %d entry %d", col, i)
				assert.GreaterOrEqual(t, e.RankMin, seg[i-1].RankMin, "column %d entry %d", col, i)
				assert.GreaterOrEqual(t, e.RankMax, seg[i-1].RankMax, "column %d entry %d", col, i)
			}

			below, atOrBelow := testutil.ExactRank(seenValues[col], seenWeights[col], e.Value)
			assert.LessOrEqual(t, e.RankMin, atOrBelow+eps, "column %d entry %d", col, i)
			assert.GreaterOrEqual(t, e.RankMax, below-eps, "column %d entry %d", col, i)
		}
		assert.LessOrEqual(t, seg[len(seg)-1].RankMax, total+eps, "column %d", col)
	}
}

func TestBasicMetricsCollector_RecordsOperations(t *testing.T) {
	ctx := context.Background()
	mc := &BasicMetricsCollector{}
	c, err := New(1, 16, 10, 0, WithMetricsCollector(mc))
	require.NoError(t, err)

	pushSingle(t, c, []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	require.NoError(t, c.Prune(ctx, 4))
	_, err = c.Unique(ctx)
	require.NoError(t, err)
	_, err = c.MakeCuts(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), mc.PushCount.Load())
	assert.Equal(t, int64(10), mc.PushSamples.Load())
	assert.Equal(t, int64(0), mc.PushErrors.Load())
	assert.Equal(t, int64(1), mc.PruneCount.Load())
	assert.Greater(t, mc.PruneRemoved.Load(), int64(0))
	assert.Equal(t, int64(1), mc.UniqueCount.Load())
	assert.Equal(t, int64(1), mc.MakeCutsCount.Load())
	assert.Greater(t, mc.MakeCutsBinsLast.Load(), int64(0))
}
