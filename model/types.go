// Package model defines the record types shared by every index backend.
package model

import (
	"bytes"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// DocumentID uniquely identifies a record within a collection.
// IDs are UUIDv7, so their byte order roughly follows insertion time and
// gives a stable tie-break for equal scores.
type DocumentID = uuid.UUID

// NilID is the zero DocumentID.
var NilID DocumentID

// NewDocumentID generates a fresh UUIDv7 id.
func NewDocumentID() DocumentID {
	return uuid.Must(uuid.NewV7())
}

// ParseDocumentID parses the canonical string form of an id.
func ParseDocumentID(s string) (DocumentID, error) {
	return uuid.Parse(s)
}

// CompareIDs orders two ids by their byte representation.
func CompareIDs(a, b DocumentID) int {
	return bytes.Compare(a[:], b[:])
}

// VectorRecord is a vector together with its identity and caller-supplied
// payload. The index treats ExternalID and Metadata as opaque.
type VectorRecord struct {
	ID         DocumentID     `json:"id"`
	Vector     []float32      `json:"vector"`
	ExternalID string         `json:"external_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	InsertedAt time.Time      `json:"inserted_at"`
}

// NewVectorRecord creates a record with a generated id and the current time.
func NewVectorRecord(vector []float32) VectorRecord {
	return VectorRecord{
		ID:         NewDocumentID(),
		Vector:     vector,
		InsertedAt: time.Now().UTC(),
	}
}

// WithExternalID sets the caller-side identifier and returns the record.
func (r VectorRecord) WithExternalID(externalID string) VectorRecord {
	r.ExternalID = externalID
	return r
}

// WithMetadata sets the metadata payload and returns the record.
func (r VectorRecord) WithMetadata(metadata map[string]any) VectorRecord {
	r.Metadata = metadata
	return r
}

// Dimension returns the number of components in the record's vector.
func (r VectorRecord) Dimension() int {
	return len(r.Vector)
}

// Clone returns a copy whose vector and metadata map do not alias the
// originals. Metadata values themselves are shared.
func (r VectorRecord) Clone() VectorRecord {
	r.Vector = slices.Clone(r.Vector)
	if r.Metadata != nil {
		r.Metadata = maps.Clone(r.Metadata)
	}
	return r
}

// SearchResult is a single query match.
type SearchResult struct {
	ID         DocumentID     `json:"id"`
	ExternalID string         `json:"external_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	// Score is the raw metric value: cosine similarity, Euclidean distance
	// or dot product, depending on the index metric.
	Score float32 `json:"score"`
}
