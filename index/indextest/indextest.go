// Package indextest runs the behavioral contract shared by every index
// backend. Backend test packages call Run with a factory and get the full
// suite: validation, atomic batches, deterministic ordering, snapshot
// round-trips and concurrent access.
package indextest

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/quiverdb/quiver/distance"
	"github.com/quiverdb/quiver/index"
	"github.com/quiverdb/quiver/model"
	"github.com/quiverdb/quiver/snapshot"
)

// Factory builds an empty index for one contract test.
type Factory func(t testing.TB, collection string, dimension int, metric distance.Metric) index.Index

// Run executes the full backend contract against indexes built by the
// factory.
func Run(t *testing.T, factory Factory) {
	t.Run("Identity", func(t *testing.T) { testIdentity(t, factory) })
	t.Run("InsertAndGet", func(t *testing.T) { testInsertAndGet(t, factory) })
	t.Run("RejectsBadInserts", func(t *testing.T) { testRejectsBadInserts(t, factory) })
	t.Run("BatchAtomicity", func(t *testing.T) { testBatchAtomicity(t, factory) })
	t.Run("SearchOrdering", func(t *testing.T) { testSearchOrdering(t, factory) })
	t.Run("ZeroQueryCosine", func(t *testing.T) { testZeroQueryCosine(t, factory) })
	t.Run("SearchBounds", func(t *testing.T) { testSearchBounds(t, factory) })
	t.Run("Filter", func(t *testing.T) { testFilter(t, factory) })
	t.Run("Clear", func(t *testing.T) { testClear(t, factory) })
	t.Run("SnapshotIdentity", func(t *testing.T) { testSnapshotIdentity(t, factory) })
	t.Run("SnapshotEnvelope", func(t *testing.T) { testSnapshotEnvelope(t, factory) })
	t.Run("ConcurrentSearch", func(t *testing.T) { testConcurrentSearch(t, factory) })
}

func testIdentity(t *testing.T, factory Factory) {
	idx := factory(t, "articles", 3, distance.MetricCosine)

	assert.NotEmpty(t, idx.Name())
	assert.Equal(t, "articles", idx.Collection())
	assert.Equal(t, 3, idx.Dimension())
	assert.Equal(t, distance.MetricCosine, idx.Metric())
	assert.Zero(t, idx.Count())
}

func testInsertAndGet(t *testing.T, factory Factory) {
	ctx := context.Background()
	idx := factory(t, "articles", 3, distance.MetricCosine)

	rec := model.NewVectorRecord([]float32{1, 2, 3}).
		WithExternalID("doc-1").
		WithMetadata(map[string]any{"lang": "en"})
	require.NoError(t, idx.Insert(ctx, rec))
	assert.Equal(t, 1, idx.Count())

	got, err := idx.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Vector, got.Vector)
	assert.Equal(t, "doc-1", got.ExternalID)
	assert.Equal(t, "en", got.Metadata["lang"])

	var notFound *index.ErrNotFound
	_, err = idx.Get(ctx, model.NewDocumentID())
	assert.ErrorAs(t, err, &notFound)
}

func testRejectsBadInserts(t *testing.T, factory Factory) {
	ctx := context.Background()
	idx := factory(t, "articles", 3, distance.MetricCosine)

	var dimErr *index.ErrDimensionMismatch
	require.ErrorAs(t, idx.Insert(ctx, model.NewVectorRecord([]float32{1, 2})), &dimErr)

	var vecErr *index.ErrInvalidVector
	nan := model.NewVectorRecord([]float32{1, float32(math.NaN()), 3})
	require.ErrorAs(t, idx.Insert(ctx, nan), &vecErr)

	inf := model.NewVectorRecord([]float32{float32(math.Inf(1)), 0, 0})
	require.ErrorAs(t, idx.Insert(ctx, inf), &vecErr)

	require.ErrorIs(t, idx.Insert(ctx, model.NewVectorRecord([]float32{0, 0, 0})), index.ErrZeroVector)

	rec := model.NewVectorRecord([]float32{1, 0, 0})
	require.NoError(t, idx.Insert(ctx, rec))
	var dupErr *index.ErrDuplicateKey
	dup := rec
	dup.Vector = []float32{0, 1, 0}
	require.ErrorAs(t, idx.Insert(ctx, dup), &dupErr)

	// The original record survives the rejected duplicate.
	got, err := idx.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, got.Vector)
	assert.Equal(t, 1, idx.Count())
}

func testZeroQueryCosine(t *testing.T, factory Factory) {
	ctx := context.Background()
	idx := factory(t, "articles", 2, distance.MetricCosine)

	require.NoError(t, idx.Insert(ctx, model.NewVectorRecord([]float32{1, 0})))

	// A zero query has no direction; every match scores 0, never NaN.
	results, err := idx.Search(ctx, []float32{0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Zero(t, results[0].Score)
	assert.False(t, math.IsNaN(float64(results[0].Score)))
}

func testBatchAtomicity(t *testing.T, factory Factory) {
	ctx := context.Background()
	idx := factory(t, "articles", 2, distance.MetricCosine)

	good := model.NewVectorRecord([]float32{1, 0})
	bad := model.NewVectorRecord([]float32{1, 0, 0})
	require.Error(t, idx.InsertBatch(ctx, []model.VectorRecord{good, bad}))
	assert.Zero(t, idx.Count(), "failed batch must insert nothing")

	require.NoError(t, idx.InsertBatch(ctx, []model.VectorRecord{good}))
	assert.Equal(t, 1, idx.Count())

	// A batch colliding with an existing record fails whole.
	other := model.NewVectorRecord([]float32{0, 1})
	var dupErr *index.ErrDuplicateKey
	require.ErrorAs(t, idx.InsertBatch(ctx, []model.VectorRecord{other, good}), &dupErr)
	assert.Equal(t, 1, idx.Count())
}

func testSearchOrdering(t *testing.T, factory Factory) {
	ctx := context.Background()
	idx := factory(t, "articles", 3, distance.MetricCosine)

	rec1 := model.NewVectorRecord([]float32{1, 0, 0})
	rec2 := model.NewVectorRecord([]float32{0, 1, 0})
	rec3 := model.NewVectorRecord([]float32{1, 1, 0})
	require.NoError(t, idx.InsertBatch(ctx, []model.VectorRecord{rec1, rec2, rec3}))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, rec1.ID, results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-4)
	assert.Equal(t, rec3.ID, results[1].ID)
	assert.InDelta(t, 0.70710678, results[1].Score, 1e-4)
}

func testSearchBounds(t *testing.T, factory Factory) {
	ctx := context.Background()
	idx := factory(t, "articles", 2, distance.MetricCosine)

	// Searching an empty index is not an error.
	results, err := idx.Search(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, idx.Insert(ctx, model.NewVectorRecord([]float32{1, 0})))
	require.NoError(t, idx.Insert(ctx, model.NewVectorRecord([]float32{0, 1})))

	results, err = idx.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2, "k beyond count returns all records")

	_, err = idx.Search(ctx, []float32{1, 0}, 0, nil)
	assert.ErrorIs(t, err, index.ErrInvalidK)

	var dimErr *index.ErrDimensionMismatch
	_, err = idx.Search(ctx, []float32{1, 0, 0}, 1, nil)
	assert.ErrorAs(t, err, &dimErr)
}

func testFilter(t *testing.T, factory Factory) {
	ctx := context.Background()
	idx := factory(t, "articles", 2, distance.MetricCosine)

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

func testClear(t *testing.T, factory Factory) {
	ctx := context.Background()
	idx := factory(t, "articles", 2, distance.MetricL2)

	require.NoError(t, idx.Insert(ctx, model.NewVectorRecord([]float32{1, 0})))
	idx.Clear()

	assert.Zero(t, idx.Count())
	assert.Equal(t, "articles", idx.Collection())
	assert.Equal(t, distance.MetricL2, idx.Metric())

	require.NoError(t, idx.Insert(ctx, model.NewVectorRecord([]float32{0, 1})))
	assert.Equal(t, 1, idx.Count())
}

func testSnapshotIdentity(t *testing.T, factory Factory) {
	ctx := context.Background()
	idx := factory(t, "articles", 2, distance.MetricCosine)

	recs := []model.VectorRecord{
		model.NewVectorRecord([]float32{1, 0}).WithExternalID("one"),
		model.NewVectorRecord([]float32{0, 1}).WithExternalID("two"),
		model.NewVectorRecord([]float32{1, 1}).WithMetadata(map[string]any{"lang": "en"}),
	}
	require.NoError(t, idx.InsertBatch(ctx, recs))

	snap, err := idx.Snapshot()
	require.NoError(t, err)
	require.NoError(t, snap.Validate())

	assert.Equal(t, "articles", snap.Collection, "snapshot must carry the collection name")
	assert.Equal(t, 2, snap.Dimension)
	assert.Equal(t, idx.Metric().String(), snap.Metric)
	require.Len(t, snap.Records, len(recs))

	byID := make(map[model.DocumentID]snapshot.Record, len(snap.Records))
	for _, r := range snap.Records {
		byID[r.ID] = r
	}
	for _, rec := range recs {
		got, ok := byID[rec.ID]
		require.True(t, ok, "record %s missing from snapshot", rec.ID)
		assert.Equal(t, rec.Vector, got.Vector)
		assert.Equal(t, rec.ExternalID, got.ExternalID)
	}
}

func testSnapshotEnvelope(t *testing.T, factory Factory) {
	ctx := context.Background()
	idx := factory(t, "articles", 2, distance.MetricCosine)

	require.NoError(t, idx.Insert(ctx, model.NewVectorRecord([]float32{1, 0})))

	snap, err := idx.Snapshot()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, snapshot.Encode(&buf, snap))

	decoded, err := snapshot.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, snap.Collection, decoded.Collection)
	assert.Equal(t, snap.Kind, decoded.Kind)
	require.Len(t, decoded.Records, 1)
	assert.Equal(t, snap.Records[0].ID, decoded.Records[0].ID)
}

func testConcurrentSearch(t *testing.T, factory Factory) {
	ctx := context.Background()
	idx := factory(t, "articles", 4, distance.MetricCosine)

	seed := []model.VectorRecord{
		model.NewVectorRecord([]float32{1, 0, 0, 0}),
		model.NewVectorRecord([]float32{0, 1, 0, 0}),
		model.NewVectorRecord([]float32{0, 0, 1, 0}),
	}
	require.NoError(t, idx.InsertBatch(ctx, seed))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				if _, err := idx.Search(ctx, []float32{1, 0, 1, 0}, 2, nil); err != nil {
					return err
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		for j := 0; j < 100; j++ {
			v := []float32{float32(j + 1), 1, 0, 0}
			if err := idx.Insert(ctx, model.NewVectorRecord(v)); err != nil {
				return err
			}
		}
		return nil
	})

	require.NoError(t, g.Wait())
	assert.Equal(t, len(seed)+100, idx.Count())
}
