// Package hnsw implements an approximate vector index over a hierarchical
// navigable small world graph. Inserts link each record into a layered
// neighborhood graph; queries descend the layers greedily and run a beam
// search over the bottom layer.
//
// The graph never removes records: deletions would leave dangling links
// and degrade recall unpredictably. Remove records by exporting a
// snapshot, filtering it and restoring the result.
package hnsw

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/quiverdb/quiver/distance"
	"github.com/quiverdb/quiver/index"
	"github.com/quiverdb/quiver/internal/queue"
	"github.com/quiverdb/quiver/internal/visited"
	"github.com/quiverdb/quiver/model"
	"github.com/quiverdb/quiver/snapshot"
)

const (
	// minimumM is the smallest usable out-degree; below 2 the graph cannot
	// stay navigable.
	minimumM = 2
	// m0Multiplier doubles the degree bound on the bottom layer, which
	// holds every record.
	m0Multiplier = 2
	// layerNormalization scales the exponential layer assignment.
	layerNormalization = 1.0

	// DefaultM is the default maximum out-degree per layer.
	DefaultM = 16
	// DefaultEFConstruction is the default beam width used while linking
	// a new record.
	DefaultEFConstruction = 200
	// DefaultEFSearch is the default query beam width.
	DefaultEFSearch = 64
)

// Options configure a graph index.
type Options struct {
	// Metric is the scoring metric. Defaults to cosine.
	Metric distance.Metric
	// M bounds the out-degree per layer (2M on the bottom layer).
	M int
	// EFConstruction is the beam width used while inserting.
	EFConstruction int
	// EFSearch is the default query beam width. Must be at least k at
	// query time; SearchOptions.EFSearch overrides it per query.
	EFSearch int
	// Heuristic enables diversity-aware neighbor selection. Keeping it on
	// preserves recall on clustered data.
	Heuristic bool
	// Seed fixes the layer-assignment RNG for reproducible graphs. Nil
	// seeds from the clock.
	Seed *int64
}

// DefaultOptions are the options applied when none are supplied.
var DefaultOptions = Options{
	Metric:         distance.MetricCosine,
	M:              DefaultM,
	EFConstruction: DefaultEFConstruction,
	EFSearch:       DefaultEFSearch,
	Heuristic:      true,
}

// Balanced trades memory for recall evenly. This is the tuning to start
// from when the workload is unknown.
func Balanced() func(o *Options) {
	return func(o *Options) {
		o.M = 32
		o.EFConstruction = 200
		o.EFSearch = 128
	}
}

// EdgeCache keeps the graph small and queries cheap, at some recall cost.
// Suited to memory-constrained deployments.
func EdgeCache() func(o *Options) {
	return func(o *Options) {
		o.M = 16
		o.EFConstruction = 80
		o.EFSearch = 64
	}
}

// HighRecall widens the graph and the query beam for recall-critical
// workloads. Inserts and queries cost correspondingly more.
func HighRecall() func(o *Options) {
	return func(o *Options) {
		o.M = 48
		o.EFConstruction = 320
		o.EFSearch = 256
	}
}

type graphNode struct {
	record model.VectorRecord
	level  int
	// conns[l] holds the rows this node links to at layer l, 0 <= l <= level.
	conns [][]uint32
}

// Index is a graph-backed approximate vector index. A single RWMutex
// covers the node arena and the graph: searches share the read lock,
// inserts take the write lock.
type Index struct {
	mu         sync.RWMutex
	nodes      []*graphNode
	rows       map[model.DocumentID]uint32
	entryPoint uint32
	maxLevel   int // -1 while empty

	rng             *rand.Rand
	layerMultiplier float64
	score           distance.Func

	collection string
	dimension  int
	opts       Options

	visitedPool sync.Pool
}

var _ index.Index = (*Index)(nil)

// New creates an empty graph index for the given collection.
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
	if opts.M < minimumM {
		return nil, &index.ErrInvalidConfig{Reason: fmt.Sprintf("m must be >= %d, got %d", minimumM, opts.M)}
	}
	if opts.EFConstruction < opts.M {
		return nil, &index.ErrInvalidConfig{Reason: fmt.Sprintf("ef_construction must be >= m, got %d", opts.EFConstruction)}
	}
	if opts.EFSearch < 1 {
		return nil, &index.ErrInvalidConfig{Reason: "ef_search must be positive"}
	}

	score, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, &index.ErrInvalidConfig{Reason: err.Error()}
	}

	seed := time.Now().UnixNano()
	if opts.Seed != nil {
		seed = *opts.Seed
	}

	return &Index{
		rows:            make(map[model.DocumentID]uint32),
		maxLevel:        -1,
		rng:             rand.New(rand.NewSource(seed)),
		layerMultiplier: layerNormalization / math.Log(float64(opts.M)),
		score:           score,
		collection:      collection,
		dimension:       dimension,
		opts:            opts,
		visitedPool: sync.Pool{
			New: func() any { return visited.New(1024) },
		},
	}, nil
}

// Build creates an index and inserts the given records in one call.
func Build(ctx context.Context, collection string, dimension int, recs []model.VectorRecord, optFns ...func(o *Options)) (*Index, error) {
	idx, err := New(collection, dimension, optFns...)
	if err != nil {
		return nil, err
	}
	if err := idx.InsertBatch(ctx, recs); err != nil {
		return nil, err
	}
	return idx, nil
}

// Restore builds an index from a snapshot. Snapshots carrying adjacency
// are reconstructed exactly; snapshots without it (filtered with Without,
// or exported by a scan index) are rebuilt record by record.
func Restore(snap *snapshot.Snapshot, optFns ...func(o *Options)) (*Index, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	metric, err := distance.ParseMetric(snap.Metric)
	if err != nil {
		return nil, &index.ErrInvalidConfig{Reason: err.Error()}
	}

	fns := append([]func(o *Options){func(o *Options) { o.Metric = metric }}, optFns...)
	idx, err := New(snap.Collection, snap.Dimension, fns...)
	if err != nil {
		return nil, err
	}

	if !snap.HasGraphState() {
		recs := make([]model.VectorRecord, 0, len(snap.Records))
		for _, rec := range snap.Records {
			recs = append(recs, model.VectorRecord{
				ID:         rec.ID,
				Vector:     rec.Vector,
				ExternalID: rec.ExternalID,
				Metadata:   rec.Metadata,
				InsertedAt: rec.InsertedAt,
			})
		}
		if err := idx.InsertBatch(context.Background(), recs); err != nil {
			return nil, err
		}
		return idx, nil
	}

	idx.nodes = make([]*graphNode, len(snap.Records))
	for i, rec := range snap.Records {
		idx.nodes[i] = &graphNode{
			record: model.VectorRecord{
				ID:         rec.ID,
				Vector:     slices.Clone(rec.Vector),
				ExternalID: rec.ExternalID,
				Metadata:   rec.Metadata,
				InsertedAt: rec.InsertedAt,
			},
			level: rec.Level,
			conns: make([][]uint32, rec.Level+1),
		}
		idx.rows[rec.ID] = uint32(i)
	}

	for i, rec := range snap.Records {
		node := idx.nodes[i]
		for layer, neighbors := range rec.Neighbors {
			conns := make([]uint32, 0, len(neighbors))
			for _, id := range neighbors {
				conns = append(conns, idx.rows[id])
			}
			node.conns[layer] = conns
		}
	}

	idx.entryPoint = idx.rows[*snap.EntryPoint]
	idx.maxLevel = snap.MaxLevel

	return idx, nil
}

// Name returns "HNSW".
func (idx *Index) Name() string { return "HNSW" }

// Collection returns the collection name.
func (idx *Index) Collection() string { return idx.collection }

// Dimension returns the vector dimensionality.
func (idx *Index) Dimension() int { return idx.dimension }

// Metric returns the scoring metric.
func (idx *Index) Metric() distance.Metric { return idx.opts.Metric }

// Insert links a single record into the graph.
func (idx *Index) Insert(ctx context.Context, rec model.VectorRecord) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.validateLocked(rec, nil); err != nil {
		return err
	}

	idx.insertLocked(rec)
	return nil
}

// InsertBatch links records atomically: every record is validated against
// the index and against the rest of the batch before any linking happens.
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
		idx.insertLocked(rec)
	}
	return nil
}

func (idx *Index) validateLocked(rec model.VectorRecord, pending map[model.DocumentID]struct{}) error {
	if err := index.ValidateInsert(idx.dimension, idx.opts.Metric, rec); err != nil {
		return err
	}
	if _, ok := idx.rows[rec.ID]; ok {
		return &index.ErrDuplicateKey{ID: rec.ID}
	}
	if pending != nil {
		if _, ok := pending[rec.ID]; ok {
			return &index.ErrDuplicateKey{ID: rec.ID}
		}
	}
	return nil
}

func (idx *Index) insertLocked(rec model.VectorRecord) {
	row := uint32(len(idx.nodes))
	level := idx.randomLevelLocked()

	node := &graphNode{
		record: rec.Clone(),
		level:  level,
		conns:  make([][]uint32, level+1),
	}
	idx.nodes = append(idx.nodes, node)
	idx.rows[rec.ID] = row

	if idx.maxLevel < 0 {
		idx.entryPoint = row
		idx.maxLevel = level
		return
	}

	query := node.record.Vector
	curr := idx.entryPoint
	currRank := idx.rankOf(query, curr)

	// Greedy descent through the layers above the new record's level.
	for layer := idx.maxLevel; layer > level; layer-- {
		curr, currRank = idx.greedyStepLocked(query, curr, currRank, layer)
	}

	// Link into every layer the record participates in.
	top := min(level, idx.maxLevel)
	for layer := top; layer >= 0; layer-- {
		results := idx.searchLayerLocked(query, curr, currRank, layer, idx.opts.EFConstruction, nil)

		neighbors := idx.selectNeighborsLocked(query, results, idx.maxConns(layer))
		node.conns[layer] = neighbors

		for _, n := range neighbors {
			idx.linkLocked(n, row, layer)
		}

		if closest, ok := results.Min(); ok {
			curr, currRank = closest.Row, closest.Rank
		}
	}

	if level > idx.maxLevel {
		idx.entryPoint = row
		idx.maxLevel = level
	}
}

// randomLevelLocked draws a layer from the exponential distribution
// -ln(u) * layerMultiplier, so each layer holds roughly 1/M of the one
// below it.
func (idx *Index) randomLevelLocked() int {
	u := idx.rng.Float64()
	for u == 0 {
		u = idx.rng.Float64()
	}
	return int(-math.Log(u) * idx.layerMultiplier)
}

func (idx *Index) maxConns(layer int) int {
	if layer == 0 {
		return idx.opts.M * m0Multiplier
	}
	return idx.opts.M
}

func (idx *Index) rankOf(query []float32, row uint32) float32 {
	return idx.opts.Metric.Rank(idx.score(query, idx.nodes[row].record.Vector))
}

// greedyStepLocked walks the given layer until no neighbor improves on
// the current position.
func (idx *Index) greedyStepLocked(query []float32, curr uint32, currRank float32, layer int) (uint32, float32) {
	for {
		node := idx.nodes[curr]
		if layer > node.level {
			return curr, currRank
		}
		improved := false
		for _, n := range node.conns[layer] {
			if r := idx.rankOf(query, n); r < currRank {
				curr, currRank = n, r
				improved = true
			}
		}
		if !improved {
			return curr, currRank
		}
	}
}

// searchLayerLocked runs a beam search over one layer and returns a
// max-oriented queue holding at most ef results. The filter gates only
// admission to the result set; filtered-out rows are still traversed.
func (idx *Index) searchLayerLocked(query []float32, ep uint32, epRank float32, layer, ef int, filter func(model.DocumentID) bool) *queue.Queue {
	seen := idx.visitedPool.Get().(*visited.Set)
	defer func() {
		seen.Reset()
		idx.visitedPool.Put(seen)
	}()

	candidates := queue.NewMin(ef)
	results := queue.NewMax(ef)

	seen.Visit(ep)
	candidates.Push(queue.Item{Row: ep, Rank: epRank})
	if filter == nil || filter(idx.nodes[ep].record.ID) {
		results.Push(queue.Item{Row: ep, Rank: epRank})
	}

	for candidates.Len() > 0 {
		c, _ := candidates.Pop()
		if worst, ok := results.Top(); ok && results.Len() >= ef && c.Rank > worst.Rank {
			break
		}

		node := idx.nodes[c.Row]
		if layer > node.level {
			continue
		}
		for _, n := range node.conns[layer] {
			if seen.Visited(n) {
				continue
			}
			seen.Visit(n)

			r := idx.rankOf(query, n)
			worst, ok := results.Top()
			if ok && results.Len() >= ef && r >= worst.Rank {
				continue
			}

			candidates.Push(queue.Item{Row: n, Rank: r})
			if filter == nil || filter(idx.nodes[n].record.ID) {
				results.PushBounded(queue.Item{Row: n, Rank: r}, ef)
			}
		}
	}

	return results
}

// selectNeighborsLocked picks at most m links from the beam results. With
// the heuristic enabled, a candidate closer to an already-selected
// neighbor than to the query is set aside, and the slots left over are
// filled from those pruned candidates, closest first.
func (idx *Index) selectNeighborsLocked(query []float32, results *queue.Queue, m int) []uint32 {
	ordered := make([]queue.Item, results.Len())
	for i := len(ordered) - 1; i >= 0; i-- {
		ordered[i], _ = results.Pop()
	}

	if !idx.opts.Heuristic || len(ordered) <= m {
		n := min(m, len(ordered))
		selected := make([]uint32, 0, n)
		for _, it := range ordered[:n] {
			selected = append(selected, it.Row)
		}
		return selected
	}

	selected := make([]uint32, 0, m)
	pruned := make([]queue.Item, 0, len(ordered))

	for _, cand := range ordered {
		if len(selected) >= m {
			break
		}
		candVec := idx.nodes[cand.Row].record.Vector
		diverse := true
		for _, s := range selected {
			if idx.rankOf(candVec, s) < cand.Rank {
				diverse = false
				break
			}
		}
		if diverse {
			selected = append(selected, cand.Row)
		} else {
			pruned = append(pruned, cand)
		}
	}

	for _, cand := range pruned {
		if len(selected) >= m {
			break
		}
		selected = append(selected, cand.Row)
	}

	return selected
}

// linkLocked adds a back-link from row to target at the given layer,
// re-selecting the row's neighbor set when it would exceed its bound.
func (idx *Index) linkLocked(row, target uint32, layer int) {
	node := idx.nodes[row]
	limit := idx.maxConns(layer)

	if len(node.conns[layer]) < limit {
		node.conns[layer] = append(node.conns[layer], target)
		return
	}

	base := node.record.Vector
	combined := queue.NewMax(len(node.conns[layer]) + 1)
	combined.Push(queue.Item{Row: target, Rank: idx.rankOf(base, target)})
	for _, n := range node.conns[layer] {
		combined.Push(queue.Item{Row: n, Rank: idx.rankOf(base, n)})
	}

	node.conns[layer] = idx.selectNeighborsLocked(base, combined, limit)
}

// Search descends the upper layers greedily, beam-searches the bottom
// layer and returns the k best matches, best first with ties broken by
// lower id.
func (idx *Index) Search(ctx context.Context, query []float32, k int, opts *index.SearchOptions) ([]model.SearchResult, error) {
	if err := index.ValidateK(k); err != nil {
		return nil, err
	}
	if err := index.ValidateVector(idx.dimension, query); err != nil {
		return nil, err
	}

	ef := idx.opts.EFSearch
	var filter func(model.DocumentID) bool
	if opts != nil {
		if opts.EFSearch > 0 {
			ef = opts.EFSearch
		}
		filter = opts.Filter
	}
	if ef < k {
		return nil, &index.ErrInvalidConfig{Reason: fmt.Sprintf("ef_search (%d) must be >= k (%d)", ef, k)}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.maxLevel < 0 {
		return []model.SearchResult{}, nil
	}

	curr := idx.entryPoint
	currRank := idx.rankOf(query, curr)
	for layer := idx.maxLevel; layer > 0; layer-- {
		curr, currRank = idx.greedyStepLocked(query, curr, currRank, layer)
	}

	results := idx.searchLayerLocked(query, curr, currRank, 0, ef, filter)

	found := make([]queue.Item, results.Len())
	for i := len(found) - 1; i >= 0; i-- {
		found[i], _ = results.Pop()
	}
	slices.SortFunc(found, func(a, b queue.Item) int {
		if a.Rank != b.Rank {
			if a.Rank < b.Rank {
				return -1
			}
			return 1
		}
		return model.CompareIDs(idx.nodes[a.Row].record.ID, idx.nodes[b.Row].record.ID)
	})

	if k > len(found) {
		k = len(found)
	}

	out := make([]model.SearchResult, 0, k)
	for _, it := range found[:k] {
		rec := idx.nodes[it.Row].record.Clone()
		out = append(out, model.SearchResult{
			ID:         rec.ID,
			ExternalID: rec.ExternalID,
			Metadata:   rec.Metadata,
			Score:      idx.opts.Metric.ScoreFromRank(it.Rank),
		})
	}
	return out, nil
}

// Delete always fails: see the package comment for the supported removal
// workflow.
func (idx *Index) Delete(ctx context.Context, id model.DocumentID) error {
	return index.ErrDeleteUnsupported
}

// Get returns a copy of the stored record.
func (idx *Index) Get(ctx context.Context, id model.DocumentID) (model.VectorRecord, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	row, ok := idx.rows[id]
	if !ok {
		return model.VectorRecord{}, &index.ErrNotFound{ID: id}
	}
	return idx.nodes[row].record.Clone(), nil
}

// Count returns the number of stored records.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.nodes)
}

// Clear removes all records and graph state, keeping the configuration.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.nodes = nil
	idx.rows = make(map[model.DocumentID]uint32)
	idx.maxLevel = -1
}

// Snapshot exports every record with its per-layer adjacency, so Restore
// can rebuild the exact same graph.
func (idx *Index) Snapshot() (*snapshot.Snapshot, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	snap := &snapshot.Snapshot{
		Kind:       snapshot.KindHNSW,
		Collection: idx.collection,
		Dimension:  idx.dimension,
		Metric:     idx.opts.Metric.String(),
		Records:    make([]snapshot.Record, 0, len(idx.nodes)),
	}

	for _, node := range idx.nodes {
		rec := node.record.Clone()

		neighbors := make([][]model.DocumentID, node.level+1)
		for layer, conns := range node.conns {
			ids := make([]model.DocumentID, 0, len(conns))
			for _, n := range conns {
				ids = append(ids, idx.nodes[n].record.ID)
			}
			neighbors[layer] = ids
		}

		snap.Records = append(snap.Records, snapshot.Record{
			ID:         rec.ID,
			Vector:     rec.Vector,
			ExternalID: rec.ExternalID,
			Metadata:   rec.Metadata,
			InsertedAt: rec.InsertedAt,
			Level:      node.level,
			Neighbors:  neighbors,
		})
	}

	if idx.maxLevel >= 0 {
		ep := idx.nodes[idx.entryPoint].record.ID
		snap.EntryPoint = &ep
		snap.MaxLevel = idx.maxLevel
	}

	return snap, nil
}
