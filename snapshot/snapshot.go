// Package snapshot defines the portable export format shared by all index
// backends. A snapshot carries the collection identity, every record, and,
// for graph-backed indexes, the adjacency needed to restore the graph
// without rebuilding it.
package snapshot

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/quiverdb/quiver/distance"
	"github.com/quiverdb/quiver/model"
)

// ErrInvalidSnapshot is wrapped by every validation failure.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Kind identifies which backend produced a snapshot.
type Kind string

const (
	KindBruteForce Kind = "bruteforce"
	KindHNSW       Kind = "hnsw"
)

// Record is one exported vector. Level and Neighbors are populated only in
// graph snapshots; Neighbors[l] holds the ids the record links to at
// layer l.
type Record struct {
	ID         model.DocumentID     `json:"id"`
	Vector     []float32            `json:"vector"`
	ExternalID string               `json:"external_id,omitempty"`
	Metadata   map[string]any       `json:"metadata,omitempty"`
	InsertedAt time.Time            `json:"inserted_at"`
	Level      int                  `json:"level,omitempty"`
	Neighbors  [][]model.DocumentID `json:"neighbors,omitempty"`
}

// Snapshot is a complete, self-contained export of one index.
type Snapshot struct {
	Kind       Kind              `json:"kind"`
	Collection string            `json:"collection"`
	Dimension  int               `json:"dimension"`
	Metric     string            `json:"metric"`
	Records    []Record          `json:"records"`
	EntryPoint *model.DocumentID `json:"entry_point,omitempty"`
	MaxLevel   int               `json:"max_level,omitempty"`
}

// HasGraphState reports whether the snapshot carries adjacency that allows
// exact graph reconstruction. Snapshots filtered with Without lose it and
// must be restored by rebuilding.
func (s *Snapshot) HasGraphState() bool {
	return s.Kind == KindHNSW && s.EntryPoint != nil
}

// Validate checks structural integrity: known kind, preserved collection
// name, consistent dimensions, resolvable graph references.
func (s *Snapshot) Validate() error {
	switch s.Kind {
	case KindBruteForce, KindHNSW:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSnapshot, s.Kind)
	}

	if s.Collection == "" {
		return fmt.Errorf("%w: empty collection name", ErrInvalidSnapshot)
	}

	if s.Dimension <= 0 {
		return fmt.Errorf("%w: dimension %d", ErrInvalidSnapshot, s.Dimension)
	}

	if _, err := distance.ParseMetric(s.Metric); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	positions := make(map[model.DocumentID]uint32, len(s.Records))
	for i, rec := range s.Records {
		if rec.ID == model.NilID {
			return fmt.Errorf("%w: record %d has nil id", ErrInvalidSnapshot, i)
		}
		if _, ok := positions[rec.ID]; ok {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidSnapshot, rec.ID)
		}
		positions[rec.ID] = uint32(i)

		if len(rec.Vector) != s.Dimension {
			return fmt.Errorf("%w: record %s has dimension %d, want %d", ErrInvalidSnapshot, rec.ID, len(rec.Vector), s.Dimension)
		}
		for _, x := range rec.Vector {
			f := float64(x)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return fmt.Errorf("%w: record %s has non-finite component", ErrInvalidSnapshot, rec.ID)
			}
		}
	}

	if s.HasGraphState() {
		return s.validateGraph(positions)
	}

	if s.Kind == KindHNSW && len(s.Records) > 0 && s.EntryPoint == nil {
		// Allowed: adjacency was stripped (e.g. by Without); restore rebuilds.
		for _, rec := range s.Records {
			if len(rec.Neighbors) != 0 {
				return fmt.Errorf("%w: record %s has adjacency but no entry point", ErrInvalidSnapshot, rec.ID)
			}
		}
	}

	return nil
}

func (s *Snapshot) validateGraph(positions map[model.DocumentID]uint32) error {
	if len(s.Records) == 0 {
		return fmt.Errorf("%w: entry point set on empty snapshot", ErrInvalidSnapshot)
	}
	entry, ok := positions[*s.EntryPoint]
	if !ok {
		return fmt.Errorf("%w: entry point %s not among records", ErrInvalidSnapshot, *s.EntryPoint)
	}

	maxLevel := 0
	linked := roaring.New()
	for i, rec := range s.Records {
		if rec.Level < 0 {
			return fmt.Errorf("%w: record %s has negative level", ErrInvalidSnapshot, rec.ID)
		}
		if len(rec.Neighbors) != rec.Level+1 {
			return fmt.Errorf("%w: record %s has %d layers, want %d", ErrInvalidSnapshot, rec.ID, len(rec.Neighbors), rec.Level+1)
		}
		if rec.Level > maxLevel {
			maxLevel = rec.Level
		}
		for layer, neighbors := range rec.Neighbors {
			linked.Clear()
			for _, id := range neighbors {
				pos, ok := positions[id]
				if !ok {
					return fmt.Errorf("%w: record %s layer %d links to unknown id %s", ErrInvalidSnapshot, rec.ID, layer, id)
				}
				if pos == uint32(i) {
					return fmt.Errorf("%w: record %s layer %d links to itself", ErrInvalidSnapshot, rec.ID, layer)
				}
				if linked.Contains(pos) {
					return fmt.Errorf("%w: record %s layer %d links to %s twice", ErrInvalidSnapshot, rec.ID, layer, id)
				}
				linked.Add(pos)
			}
		}
	}

	if s.MaxLevel != maxLevel {
		return fmt.Errorf("%w: max level %d, records reach %d", ErrInvalidSnapshot, s.MaxLevel, maxLevel)
	}
	if lvl := s.Records[entry].Level; lvl != s.MaxLevel {
		return fmt.Errorf("%w: entry point %s at level %d, want top level %d", ErrInvalidSnapshot, *s.EntryPoint, lvl, s.MaxLevel)
	}

	return nil
}

// Without returns a copy of the snapshot with the given ids removed. This
// is the supported way to drop records from a graph-backed index: export,
// filter, restore. Adjacency is stripped from the result because links to
// removed records would dangle; restoring a filtered graph snapshot
// rebuilds the graph from the surviving records.
func (s *Snapshot) Without(ids ...model.DocumentID) *Snapshot {
	banned := make(map[model.DocumentID]struct{}, len(ids))
	for _, id := range ids {
		banned[id] = struct{}{}
	}

	out := &Snapshot{
		Kind:       s.Kind,
		Collection: s.Collection,
		Dimension:  s.Dimension,
		Metric:     s.Metric,
		Records:    make([]Record, 0, len(s.Records)),
	}
	for _, rec := range s.Records {
		if _, ok := banned[rec.ID]; ok {
			continue
		}
		rec.Level = 0
		rec.Neighbors = nil
		out.Records = append(out.Records, rec)
	}

	return out
}
