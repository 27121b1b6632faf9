// Package index defines the contract every vector index backend satisfies,
// along with the shared error taxonomy and input validation.
package index

import (
	"context"
	"math"

	"github.com/quiverdb/quiver/distance"
	"github.com/quiverdb/quiver/model"
	"github.com/quiverdb/quiver/snapshot"
)

// SearchOptions tune a single query.
type SearchOptions struct {
	// EFSearch overrides the graph beam width for this query. Ignored by
	// exact backends. Zero means use the index default.
	EFSearch int
	// Filter restricts results to records the predicate accepts. Filtering
	// happens during traversal, not by truncating the final result set.
	Filter func(id model.DocumentID) bool
}

// Index is a collection of vectors searchable by similarity. All
// implementations are safe for concurrent use.
type Index interface {
	// Name identifies the backend ("BruteForce" or "HNSW").
	Name() string

	// Collection returns the collection name the index was created with.
	Collection() string

	// Dimension returns the fixed vector dimensionality.
	Dimension() int

	// Metric returns the scoring metric.
	Metric() distance.Metric

	// Insert adds a single record. It fails with ErrDimensionMismatch,
	// ErrInvalidVector or ErrDuplicateKey without mutating the index.
	Insert(ctx context.Context, rec model.VectorRecord) error

	// InsertBatch adds records atomically: either every record is inserted
	// or, if any fails validation, none are.
	InsertBatch(ctx context.Context, recs []model.VectorRecord) error

	// Search returns the k best matches for the query, best first, with
	// ties broken by lower id. Fewer than k results are returned when the
	// index holds fewer matching records.
	Search(ctx context.Context, query []float32, k int, opts *SearchOptions) ([]model.SearchResult, error)

	// Delete removes a record. Graph-backed indexes do not support removal
	// and return ErrDeleteUnsupported.
	Delete(ctx context.Context, id model.DocumentID) error

	// Get returns a copy of the stored record.
	Get(ctx context.Context, id model.DocumentID) (model.VectorRecord, error)

	// Count returns the number of stored records.
	Count() int

	// Clear removes all records, keeping the configuration.
	Clear()

	// Snapshot exports the full index state, including the collection name
	// and, for graph backends, the adjacency needed for exact restore.
	Snapshot() (*snapshot.Snapshot, error)
}

// ValidateVector checks the dimension and finiteness of a vector. It is
// run before any mutation so a failed insert leaves the index unchanged.
func ValidateVector(dim int, v []float32) error {
	if len(v) != dim {
		return &ErrDimensionMismatch{Expected: dim, Actual: len(v)}
	}
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return &ErrInvalidVector{Index: i, Value: x}
		}
	}
	return nil
}

// ValidateInsert runs the full pre-insert checks for one record: finite
// vector of the right dimension, and no zero vector under cosine, which
// has no defined direction.
func ValidateInsert(dim int, metric distance.Metric, rec model.VectorRecord) error {
	if err := ValidateVector(dim, rec.Vector); err != nil {
		return err
	}
	if metric == distance.MetricCosine && distance.Magnitude(rec.Vector) == 0 {
		return ErrZeroVector
	}
	return nil
}

// ValidateK rejects non-positive result counts.
func ValidateK(k int) error {
	if k <= 0 {
		return ErrInvalidK
	}
	return nil
}
