package quiver

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/quiverdb/quiver/index"
	"github.com/quiverdb/quiver/index/bruteforce"
	"github.com/quiverdb/quiver/index/hnsw"
	"github.com/quiverdb/quiver/model"
	"github.com/quiverdb/quiver/snapshot"
)

// Backend selects the index implementation.
type Backend int

const (
	// BackendBruteForce scans every record; exact, O(n*d) per query.
	BackendBruteForce Backend = iota
	// BackendHNSW searches a navigable small world graph; approximate,
	// logarithmic-ish per query, no deletes.
	BackendHNSW
)

func (b Backend) String() string {
	switch b {
	case BackendBruteForce:
		return "bruteforce"
	case BackendHNSW:
		return "hnsw"
	default:
		return fmt.Sprintf("unknown(%d)", int(b))
	}
}

// New builds an index of the chosen backend for the given collection.
func New(backend Backend, collection string, dimension int, optFns ...func(o *Options)) (index.Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}

	idx, err := build(backend, collection, dimension, opts)
	if err != nil {
		return nil, err
	}

	opts.Logger.LogBuild(idx.Name(), collection, dimension, opts.Metric)
	return idx, nil
}

func build(backend Backend, collection string, dimension int, opts Options) (index.Index, error) {
	switch backend {
	case BackendBruteForce:
		return bruteforce.New(collection, dimension, func(o *bruteforce.Options) {
			o.Metric = opts.Metric
		})
	case BackendHNSW:
		return hnsw.New(collection, dimension, func(o *hnsw.Options) {
			o.Metric = opts.Metric
			o.M = opts.M
			o.EFConstruction = opts.EFConstruction
			o.EFSearch = opts.EFSearch
			o.Heuristic = opts.Heuristic
			o.Seed = opts.Seed
		})
	default:
		return nil, &index.ErrInvalidConfig{Reason: fmt.Sprintf("unknown backend %d", backend)}
	}
}

// Restore rebuilds an index from a snapshot, dispatching on the snapshot
// kind. The restored index keeps the snapshot's collection name, dimension
// and metric.
func Restore(snap *snapshot.Snapshot, optFns ...func(o *Options)) (index.Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}

	var (
		idx index.Index
		err error
	)
	switch snap.Kind {
	case snapshot.KindBruteForce:
		idx, err = bruteforce.Restore(snap)
	case snapshot.KindHNSW:
		idx, err = hnsw.Restore(snap, func(o *hnsw.Options) {
			o.M = opts.M
			o.EFConstruction = opts.EFConstruction
			o.EFSearch = opts.EFSearch
			o.Heuristic = opts.Heuristic
			o.Seed = opts.Seed
		})
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", snapshot.ErrInvalidSnapshot, snap.Kind)
	}
	if err != nil {
		return nil, err
	}

	opts.Logger.LogRestore(idx.Name(), idx.Collection(), idx.Count())
	return idx, nil
}

// SearchBatch runs one search per query concurrently and returns the
// result sets in query order. The first error cancels the remaining
// queries.
func SearchBatch(ctx context.Context, idx index.Index, queries [][]float32, k int, opts *index.SearchOptions) ([][]model.SearchResult, error) {
	results := make([][]model.SearchResult, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		i, query := i, query
		g.Go(func() error {
			r, err := idx.Search(ctx, query, k, opts)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
