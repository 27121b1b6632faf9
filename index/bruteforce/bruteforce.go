// Package bruteforce implements an exact vector index backed by a linear
// scan. It serves as the correctness reference for approximate backends
// and is the right choice for small collections, where scanning beats
// graph traversal overhead.
package bruteforce

import (
	"context"
	"slices"
	"sync"

	"github.com/quiverdb/quiver/distance"
	"github.com/quiverdb/quiver/index"
	"github.com/quiverdb/quiver/model"
	"github.com/quiverdb/quiver/snapshot"
)

// Options configure a brute-force index.
type Options struct {
	// Metric is the scoring metric. Defaults to cosine.
	Metric distance.Metric
}

// DefaultOptions are the options applied when none are supplied.
var DefaultOptions = Options{
	Metric: distance.MetricCosine,
}

// Index is an exact, scan-based vector index. A single RWMutex guards the
// record map: reads run concurrently, writes are exclusive.
type Index struct {
	mu         sync.RWMutex
	records    map[model.DocumentID]model.VectorRecord
	collection string
	dimension  int
	opts       Options
}

var _ index.Index = (*Index)(nil)

// New creates an empty brute-force index for the given collection.
func New(collection string, dimension int, optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if collection == "" {
		return nil, &index.ErrInvalidConfig{Reason: "collection name must not be empty"}
	}
	if dimension <= 0 {
		return nil, &index.ErrInvalidConfig{Reason: "dimension must be positive"}
	}

	return &Index{
		records:    make(map[model.DocumentID]model.VectorRecord),
		collection: collection,
		dimension:  dimension,
		opts:       opts,
	}, nil
}

// Restore builds an index from a snapshot. Graph snapshots are accepted
// too: their records are a superset of what a scan index needs.
func Restore(snap *snapshot.Snapshot, optFns ...func(o *Options)) (*Index, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	metric, err := distance.ParseMetric(snap.Metric)
	if err != nil {
		return nil, &index.ErrInvalidConfig{Reason: err.Error()}
	}

	idx, err := New(snap.Collection, snap.Dimension, optFns...)
	if err != nil {
		return nil, err
	}
	idx.opts.Metric = metric

	for _, rec := range snap.Records {
		idx.records[rec.ID] = model.VectorRecord{
			ID:         rec.ID,
			Vector:     slices.Clone(rec.Vector),
			ExternalID: rec.ExternalID,
			Metadata:   rec.Metadata,
			InsertedAt: rec.InsertedAt,
		}
	}

	return idx, nil
}

// Name returns "BruteForce".
func (idx *Index) Name() string { return "BruteForce" }

// Collection returns the collection name.
func (idx *Index) Collection() string { return idx.collection }

// Dimension returns the vector dimensionality.
func (idx *Index) Dimension() int { return idx.dimension }

// Metric returns the scoring metric.
func (idx *Index) Metric() distance.Metric { return idx.opts.Metric }

// Insert adds a single record.
func (idx *Index) Insert(ctx context.Context, rec model.VectorRecord) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.validateLocked(rec, nil); err != nil {
		return err
	}

	idx.records[rec.ID] = rec.Clone()
	return nil
}

// InsertBatch adds records atomically: every record is validated against
// the index and against the rest of the batch before anything is stored.
func (idx *Index) InsertBatch(ctx context.Context, recs []model.VectorRecord) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	seen := make(map[model.DocumentID]struct{}, len(recs))
	for _, rec := range recs {
		if err := idx.validateLocked(rec, seen); err != nil {
			return err
		}
		seen[rec.ID] = struct{}{}
	}

	for _, rec := range recs {
		idx.records[rec.ID] = rec.Clone()
	}
	return nil
}

func (idx *Index) validateLocked(rec model.VectorRecord, pending map[model.DocumentID]struct{}) error {
	if err := index.ValidateInsert(idx.dimension, idx.opts.Metric, rec); err != nil {
		return err
	}
	if _, ok := idx.records[rec.ID]; ok {
		return &index.ErrDuplicateKey{ID: rec.ID}
	}
	if pending != nil {
		if _, ok := pending[rec.ID]; ok {
			return &index.ErrDuplicateKey{ID: rec.ID}
		}
	}
	return nil
}

// Search scans every record and returns the k best matches, best first.
// Equal scores are broken by lower id, so results are deterministic.
func (idx *Index) Search(ctx context.Context, query []float32, k int, opts *index.SearchOptions) ([]model.SearchResult, error) {
	if err := index.ValidateK(k); err != nil {
		return nil, err
	}
	if err := index.ValidateVector(idx.dimension, query); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	metric := idx.opts.Metric

	type scored struct {
		rec  model.VectorRecord
		rank float32
	}
	candidates := make([]scored, 0, len(idx.records))
	for _, rec := range idx.records {
		if opts != nil && opts.Filter != nil && !opts.Filter(rec.ID) {
			continue
		}
		candidates = append(candidates, scored{
			rec:  rec,
			rank: metric.Rank(metric.Score(query, rec.Vector)),
		})
	}

	slices.SortFunc(candidates, func(a, b scored) int {
		if a.rank != b.rank {
			if a.rank < b.rank {
				return -1
			}
			return 1
		}
		return model.CompareIDs(a.rec.ID, b.rec.ID)
	})

	if k > len(candidates) {
		k = len(candidates)
	}

	results := make([]model.SearchResult, 0, k)
	for _, c := range candidates[:k] {
		rec := c.rec.Clone()
		results = append(results, model.SearchResult{
			ID:         rec.ID,
			ExternalID: rec.ExternalID,
			Metadata:   rec.Metadata,
			Score:      metric.ScoreFromRank(c.rank),
		})
	}
	return results, nil
}

// Delete removes a record by id.
func (idx *Index) Delete(ctx context.Context, id model.DocumentID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.records[id]; !ok {
		return &index.ErrNotFound{ID: id}
	}
	delete(idx.records, id)
	return nil
}

// Get returns a copy of the stored record.
func (idx *Index) Get(ctx context.Context, id model.DocumentID) (model.VectorRecord, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rec, ok := idx.records[id]
	if !ok {
		return model.VectorRecord{}, &index.ErrNotFound{ID: id}
	}
	return rec.Clone(), nil
}

// Count returns the number of stored records.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.records)
}

// Clear removes all records, keeping the configuration.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.records = make(map[model.DocumentID]model.VectorRecord)
}

// Snapshot exports the full index state. Records are ordered by id so the
// output is deterministic.
func (idx *Index) Snapshot() (*snapshot.Snapshot, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	snap := &snapshot.Snapshot{
		Kind:       snapshot.KindBruteForce,
		Collection: idx.collection,
		Dimension:  idx.dimension,
		Metric:     idx.opts.Metric.String(),
		Records:    make([]snapshot.Record, 0, len(idx.records)),
	}
	for _, rec := range idx.records {
		clone := rec.Clone()
		snap.Records = append(snap.Records, snapshot.Record{
			ID:         clone.ID,
			Vector:     clone.Vector,
			ExternalID: clone.ExternalID,
			Metadata:   clone.Metadata,
			InsertedAt: clone.InsertedAt,
		})
	}
	slices.SortFunc(snap.Records, func(a, b snapshot.Record) int {
		return model.CompareIDs(a.ID, b.ID)
	})

	return snap, nil
}
