package bruteforce

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdb/quiver/distance"
	"github.com/quiverdb/quiver/index"
	"github.com/quiverdb/quiver/model"
)

func newTestIndex(t *testing.T, dim int, optFns ...func(o *Options)) *Index {
	t.Helper()

	idx, err := New("articles", dim, optFns...)
	require.NoError(t, err)
	return idx
}

func TestNewValidation(t *testing.T) {
	_, err := New("", 3)
	var cfgErr *index.ErrInvalidConfig
	assert.ErrorAs(t, err, &cfgErr)

	_, err = New("articles", 0)
	assert.ErrorAs(t, err, &cfgErr)
}

func TestInsertAndSearchCosine(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 3)

	rec1 := model.NewVectorRecord([]float32{1, 0, 0}).WithExternalID("one")
	rec2 := model.NewVectorRecord([]float32{0, 1, 0}).WithExternalID("two")
	rec3 := model.NewVectorRecord([]float32{1, 1, 0}).WithExternalID("three")
	require.NoError(t, idx.InsertBatch(ctx, []model.VectorRecord{rec1, rec2, rec3}))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, rec1.ID, results[0].ID)
	assert.Equal(t, "one", results[0].ExternalID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-4)

	assert.Equal(t, rec3.ID, results[1].ID)
	assert.InDelta(t, 0.70710678, results[1].Score, 1e-4)
}

func TestSearchL2(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2, func(o *Options) { o.Metric = distance.MetricL2 })

	near := model.NewVectorRecord([]float32{1, 1})
	far := model.NewVectorRecord([]float32{5, 5})
	require.NoError(t, idx.InsertBatch(ctx, []model.VectorRecord{far, near}))

	results, err := idx.Search(ctx, []float32{0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Lower distance ranks first.
	assert.Equal(t, near.ID, results[0].ID)
	assert.InDelta(t, math.Sqrt2, float64(results[0].Score), 1e-4)
	assert.Equal(t, far.ID, results[1].ID)
}

func TestSearchDot(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2, func(o *Options) { o.Metric = distance.MetricDot })

	big := model.NewVectorRecord([]float32{3, 0})
	small := model.NewVectorRecord([]float32{1, 0})
	require.NoError(t, idx.InsertBatch(ctx, []model.VectorRecord{small, big}))

	results, err := idx.Search(ctx, []float32{2, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, big.ID, results[0].ID)
	assert.InDelta(t, 6.0, results[0].Score, 1e-4)
}

func TestTieBreakByLowerID(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2)

	// UUIDv7 ids sort in generation order, so rec1 < rec2. Identical
	// vectors guarantee identical scores.
	rec1 := model.NewVectorRecord([]float32{1, 0})
	rec2 := model.NewVectorRecord([]float32{1, 0})
	require.NoError(t, idx.InsertBatch(ctx, []model.VectorRecord{rec2, rec1}))

	// Both score cosine 1.0 against the query.
	results, err := idx.Search(ctx, []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, rec1.ID, results[0].ID)
	assert.Equal(t, rec2.ID, results[1].ID)
}

func TestZeroVectorQueryUnderCosine(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2)
	require.NoError(t, idx.Insert(ctx, model.NewVectorRecord([]float32{1, 0})))

	// Zero vectors cannot be inserted under cosine, but querying with one
	// is allowed and every match scores 0.
	results, err := idx.Search(ctx, []float32{0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Zero(t, results[0].Score)
}

func TestInsertValidation(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 3)

	var dimErr *index.ErrDimensionMismatch
	require.ErrorAs(t, idx.Insert(ctx, model.NewVectorRecord([]float32{1})), &dimErr)

	var vecErr *index.ErrInvalidVector
	nan := model.NewVectorRecord([]float32{float32(math.NaN()), 0, 0})
	require.ErrorAs(t, idx.Insert(ctx, nan), &vecErr)

	require.ErrorIs(t, idx.Insert(ctx, model.NewVectorRecord([]float32{0, 0, 0})), index.ErrZeroVector)

	rec := model.NewVectorRecord([]float32{1, 2, 3})
	require.NoError(t, idx.Insert(ctx, rec))
	var dupErr *index.ErrDuplicateKey
	require.ErrorAs(t, idx.Insert(ctx, rec), &dupErr)

	assert.Equal(t, 1, idx.Count())
}

func TestInsertBatchAtomic(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2)

	good := model.NewVectorRecord([]float32{1, 0})
	bad := model.NewVectorRecord([]float32{1})

	require.Error(t, idx.InsertBatch(ctx, []model.VectorRecord{good, bad}))
	assert.Zero(t, idx.Count())

	dup := model.NewVectorRecord([]float32{0, 1})
	var dupErr *index.ErrDuplicateKey
	require.ErrorAs(t, idx.InsertBatch(ctx, []model.VectorRecord{dup, dup}), &dupErr)
	assert.Zero(t, idx.Count())
}

func TestDeleteAndGet(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2)

	rec := model.NewVectorRecord([]float32{1, 0}).WithMetadata(map[string]any{"lang": "en"})
	require.NoError(t, idx.Insert(ctx, rec))

	got, err := idx.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "en", got.Metadata["lang"])

	// Mutating the returned copy does not touch the stored record.
	got.Vector[0] = 99
	again, err := idx.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, float32(1), again.Vector[0])

	require.NoError(t, idx.Delete(ctx, rec.ID))
	assert.Zero(t, idx.Count())

	var notFound *index.ErrNotFound
	assert.ErrorAs(t, idx.Delete(ctx, rec.ID), &notFound)
	_, err = idx.Get(ctx, rec.ID)
	assert.ErrorAs(t, err, &notFound)
}

func TestSearchWithFilter(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2)

	keep := model.NewVectorRecord([]float32{0.9, 0.1})
	skip := model.NewVectorRecord([]float32{1, 0})
	require.NoError(t, idx.InsertBatch(ctx, []model.VectorRecord{keep, skip}))

	results, err := idx.Search(ctx, []float32{1, 0}, 2, &index.SearchOptions{
		Filter: func(id model.DocumentID) bool { return id != skip.ID },
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, keep.ID, results[0].ID)
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2)

	rec1 := model.NewVectorRecord([]float32{1, 0}).WithExternalID("one")
	rec2 := model.NewVectorRecord([]float32{0, 1}).WithExternalID("two")
	require.NoError(t, idx.InsertBatch(ctx, []model.VectorRecord{rec1, rec2}))

	snap, err := idx.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "articles", snap.Collection)
	assert.Equal(t, "cosine", snap.Metric)
	assert.Len(t, snap.Records, 2)

	restored, err := Restore(snap)
	require.NoError(t, err)
	assert.Equal(t, "articles", restored.Collection())
	assert.Equal(t, 2, restored.Count())

	got, err := restored.Get(ctx, rec1.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", got.ExternalID)
	assert.Equal(t, rec1.Vector, got.Vector)
}

func TestSnapshotWithoutRoundTrip(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2)

	rec1 := model.NewVectorRecord([]float32{1, 0})
	rec2 := model.NewVectorRecord([]float32{0, 1})
	require.NoError(t, idx.InsertBatch(ctx, []model.VectorRecord{rec1, rec2}))

	snap, err := idx.Snapshot()
	require.NoError(t, err)

	restored, err := Restore(snap.Without(rec1.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, restored.Count())

	var notFound *index.ErrNotFound
	_, err = restored.Get(ctx, rec1.ID)
	assert.ErrorAs(t, err, &notFound)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2)
	require.NoError(t, idx.Insert(ctx, model.NewVectorRecord([]float32{1, 0})))

	idx.Clear()
	assert.Zero(t, idx.Count())
	assert.Equal(t, 2, idx.Dimension())

	require.NoError(t, idx.Insert(ctx, model.NewVectorRecord([]float32{0, 1})))
	assert.Equal(t, 1, idx.Count())
}
