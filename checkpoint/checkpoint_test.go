package checkpoint

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/quantgo"
	"github.com/hupe1980/quantgo/blobstore"
	"github.com/hupe1980/quantgo/codec"
	"github.com/hupe1980/quantgo/layout"
	"github.com/hupe1980/quantgo/sketch"
)

func testSnapshot() quantgo.Snapshot {
	cat := roaring.New()
	cat.Add(1)
	return quantgo.Snapshot{
		Entries: []sketch.Entry{
			{Value: 1, RankMin: 0, RankMax: 2, WMin: 2},
			{Value: 3, RankMin: 2, RankMax: 3, WMin: 1},
			{Value: 7, RankMin: 0, RankMax: 1, WMin: 1},
		},
		Columns:     layout.Columns{0, 2, 3},
		MaxBins:     16,
		NumRows:     100,
		Worker:      2,
		Categorical: cat,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{"none", "zstd", "lz4"} {
		t.Run(name, func(t *testing.T) {
			comp, ok := codec.ByName(name)
			require.True(t, ok)

			m := NewManager(blobstore.NewMemoryStore(), WithCompressor(comp))
			snap := testSnapshot()
			require.NoError(t, m.Save(ctx, "round-1", snap))

			got, err := m.Load(ctx, "round-1")
			require.NoError(t, err)
			assert.Equal(t, snap.Entries, got.Entries)
			assert.Equal(t, snap.Columns, got.Columns)
			assert.Equal(t, snap.MaxBins, got.MaxBins)
			assert.Equal(t, snap.NumRows, got.NumRows)
			assert.Equal(t, snap.Worker, got.Worker)
			require.NotNil(t, got.Categorical)
			assert.True(t, got.Categorical.Contains(1))
		})
	}
}

func TestLoad_DetectsCorruption(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	m := NewManager(store)
	require.NoError(t, m.Save(ctx, "ckpt", testSnapshot()))

	blob, err := store.Get(ctx, "ckpt")
	require.NoError(t, err)
	blob[len(blob)/2] ^= 0xFF
	require.NoError(t, store.Put(ctx, "ckpt", blob))

	_, err = m.Load(ctx, "ckpt")
	require.ErrorIs(t, err, ErrChecksum)
}

func TestLoad_RejectsForeignBlob(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "junk", []byte("not a checkpoint at all")))

	_, err := NewManager(store).Load(ctx, "junk")
	require.Error(t, err)
}

func TestCommitAndLoadCurrent(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore())

	snap := testSnapshot()
	require.NoError(t, m.Save(ctx, "round-7", snap))
	require.NoError(t, m.Commit(ctx, "round-7"))

	got, err := m.LoadCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Entries, got.Entries)
}

func TestLoadCurrent_NoPointer(t *testing.T) {
	m := NewManager(blobstore.NewMemoryStore())
	_, err := m.LoadCurrent(context.Background())
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestList_HidesCurrentPointer(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore())

	require.NoError(t, m.Save(ctx, "round-1", testSnapshot()))
	require.NoError(t, m.Commit(ctx, "round-1"))

	names, err := m.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"round-1"}, names)
}

// retainingStore hands List callers the very slice it keeps, the way an
// arbitrary Store implementation is allowed to.
type retainingStore struct {
	*blobstore.MemoryStore
	names []string
}

func (s *retainingStore) List(context.Context, string) ([]string, error) {
	return s.names, nil
}

func TestList_DoesNotMutateStoreSlice(t *testing.T) {
	store := &retainingStore{
		MemoryStore: blobstore.NewMemoryStore(),
		names:       []string{CurrentName, "round-1", "round-2"},
	}
	m := NewManager(store)

	names, err := m.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"round-1", "round-2"}, names)
	assert.Equal(t, []string{CurrentName, "round-1", "round-2"}, store.names)
}

func TestSave_RateLimited(t *testing.T) {
	ctx := context.Background()
	// Generous limit: the save must still complete promptly.
	m := NewManager(blobstore.NewMemoryStore(), WithRateLimit(1<<20))
	require.NoError(t, m.Save(ctx, "round-1", testSnapshot()))
}

func TestSnapshotWithoutCategorical(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore())

	snap := testSnapshot()
	snap.Categorical = nil
	require.NoError(t, m.Save(ctx, "plain", snap))

	got, err := m.Load(ctx, "plain")
	require.NoError(t, err)
	assert.Nil(t, got.Categorical)
}
