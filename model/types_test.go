package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentIDOrdering(t *testing.T) {
	a := NewDocumentID()
	b := NewDocumentID()

	assert.NotEqual(t, a, b)
	// UUIDv7 ids generated in sequence sort in generation order.
	assert.Negative(t, CompareIDs(a, b))
	assert.Zero(t, CompareIDs(a, a))
}

func TestParseDocumentIDRoundTrip(t *testing.T) {
	id := NewDocumentID()

	got, err := ParseDocumentID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseDocumentID("not-a-uuid")
	require.Error(t, err)
}

func TestNewVectorRecord(t *testing.T) {
	rec := NewVectorRecord([]float32{1, 2, 3}).
		WithExternalID("doc-1").
		WithMetadata(map[string]any{"lang": "en"})

	assert.NotEqual(t, NilID, rec.ID)
	assert.Equal(t, 3, rec.Dimension())
	assert.Equal(t, "doc-1", rec.ExternalID)
	assert.Equal(t, "en", rec.Metadata["lang"])
	assert.False(t, rec.InsertedAt.IsZero())
}

func TestVectorRecordClone(t *testing.T) {
	rec := NewVectorRecord([]float32{1, 2, 3}).
		WithMetadata(map[string]any{"k": "v"})

	clone := rec.Clone()
	clone.Vector[0] = 99
	clone.Metadata["k"] = "changed"

	assert.Equal(t, float32(1), rec.Vector[0])
	assert.Equal(t, "v", rec.Metadata["k"])
	assert.Equal(t, rec.ID, clone.ID)
}
