package snapshot

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdb/quiver/codec"
	"github.com/quiverdb/quiver/model"
)

func flatSnapshot(t *testing.T, n int) *Snapshot {
	t.Helper()

	s := &Snapshot{
		Kind:       KindBruteForce,
		Collection: "articles",
		Dimension:  3,
		Metric:     "cosine",
	}
	for i := 0; i < n; i++ {
		s.Records = append(s.Records, Record{
			ID:         model.NewDocumentID(),
			Vector:     []float32{float32(i), 1, 0},
			ExternalID: "ext",
			Metadata:   map[string]any{"n": float64(i)},
			InsertedAt: time.Now().UTC().Truncate(time.Millisecond),
		})
	}
	return s
}

func graphSnapshot(t *testing.T) *Snapshot {
	t.Helper()

	a := model.NewDocumentID()
	b := model.NewDocumentID()
	s := &Snapshot{
		Kind:       KindHNSW,
		Collection: "articles",
		Dimension:  2,
		Metric:     "l2",
		Records: []Record{
			{ID: a, Vector: []float32{0, 0}, Level: 1, Neighbors: [][]model.DocumentID{{b}, {}}},
			{ID: b, Vector: []float32{1, 1}, Level: 0, Neighbors: [][]model.DocumentID{{a}}},
		},
		EntryPoint: &a,
		MaxLevel:   1,
	}
	return s
}

func TestValidate(t *testing.T) {
	assert.NoError(t, flatSnapshot(t, 3).Validate())
	assert.NoError(t, graphSnapshot(t).Validate())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{"unknown kind", func(s *Snapshot) { s.Kind = "lsh" }},
		{"empty collection", func(s *Snapshot) { s.Collection = "" }},
		{"zero dimension", func(s *Snapshot) { s.Dimension = 0 }},
		{"bad metric", func(s *Snapshot) { s.Metric = "manhattan" }},
		{"dimension mismatch", func(s *Snapshot) { s.Records[0].Vector = []float32{1} }},
		{"duplicate id", func(s *Snapshot) { s.Records[1].ID = s.Records[0].ID }},
		{"nil id", func(s *Snapshot) { s.Records[0].ID = model.NilID }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := flatSnapshot(t, 2)
			tt.mutate(s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidSnapshot)
		})
	}
}

func TestValidateGraphRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{"dangling entry point", func(s *Snapshot) { id := model.NewDocumentID(); s.EntryPoint = &id }},
		{"layer count mismatch", func(s *Snapshot) { s.Records[0].Neighbors = s.Records[0].Neighbors[:1] }},
		{"unknown neighbor", func(s *Snapshot) { s.Records[1].Neighbors[0][0] = model.NewDocumentID() }},
		{"wrong max level", func(s *Snapshot) { s.MaxLevel = 5 }},
		{"entry point below top layer", func(s *Snapshot) { s.EntryPoint = &s.Records[1].ID }},
		{"duplicate neighbor", func(s *Snapshot) {
			s.Records[0].Neighbors[0] = []model.DocumentID{s.Records[1].ID, s.Records[1].ID}
		}},
		{"self link", func(s *Snapshot) { s.Records[1].Neighbors[0][0] = s.Records[1].ID }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := graphSnapshot(t)
			tt.mutate(s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidSnapshot)
		})
	}
}

func TestWithout(t *testing.T) {
	s := flatSnapshot(t, 4)
	victim := s.Records[1].ID

	out := s.Without(victim)
	require.Len(t, out.Records, 3)
	assert.Equal(t, s.Collection, out.Collection)
	for _, rec := range out.Records {
		assert.NotEqual(t, victim, rec.ID)
	}

	// Removing nothing keeps every record.
	assert.Len(t, s.Without().Records, 4)
}

func TestWithoutStripsGraphState(t *testing.T) {
	s := graphSnapshot(t)

	out := s.Without(s.Records[1].ID)
	require.Len(t, out.Records, 1)
	assert.Equal(t, KindHNSW, out.Kind)
	assert.False(t, out.HasGraphState())
	assert.Nil(t, out.Records[0].Neighbors)
	assert.NoError(t, out.Validate())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	compressions := []Compression{CompressionNone, CompressionZstd, CompressionLZ4}
	codecs := []codec.Codec{codec.JSON{}, codec.GoJSON{}}

	for _, comp := range compressions {
		for _, c := range codecs {
			t.Run(string(comp)+"/"+c.Name(), func(t *testing.T) {
				in := flatSnapshot(t, 5)

				var buf bytes.Buffer
				require.NoError(t, Encode(&buf, in, func(o *EncodeOptions) {
					o.Codec = c
					o.Compression = comp
				}))

				out, err := Decode(&buf)
				require.NoError(t, err)
				assert.Equal(t, in.Collection, out.Collection)
				assert.Equal(t, in.Dimension, out.Dimension)
				assert.Equal(t, in.Metric, out.Metric)
				require.Len(t, out.Records, len(in.Records))
				for i := range in.Records {
					assert.Equal(t, in.Records[i].ID, out.Records[i].ID)
					assert.Equal(t, in.Records[i].Vector, out.Records[i].Vector)
					assert.Equal(t, in.Records[i].ExternalID, out.Records[i].ExternalID)
				}
			})
		}
	}
}

func TestGraphEnvelopeRoundTrip(t *testing.T) {
	in := graphSnapshot(t)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, in))

	out, err := Decode(&buf)
	require.NoError(t, err)
	require.True(t, out.HasGraphState())
	assert.Equal(t, *in.EntryPoint, *out.EntryPoint)
	assert.Equal(t, in.MaxLevel, out.MaxLevel)
	assert.Equal(t, in.Records[0].Neighbors, out.Records[0].Neighbors)
}

func TestDecodeRejectsCorruptHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, flatSnapshot(t, 1)))

	data := buf.Bytes()

	bad := append([]byte("XXXX"), data[4:]...)
	_, err := Decode(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrInvalidMagic)
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	bad = append([]byte{}, data...)
	bad[4] = 99
	_, err = Decode(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrInvalidVersion)
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	_, err = Decode(bytes.NewReader(data[:3]))
	assert.ErrorIs(t, err, ErrDecodeFailed)
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
}

func TestEncodeRejectsInvalidSnapshot(t *testing.T) {
	s := flatSnapshot(t, 1)
	s.Collection = ""

	var buf bytes.Buffer
	assert.ErrorIs(t, Encode(&buf, s), ErrInvalidSnapshot)
	assert.Zero(t, buf.Len())
}

func TestWriteReadFile(t *testing.T) {
	path := t.TempDir() + "/articles.snap"
	in := flatSnapshot(t, 3)

	require.NoError(t, WriteFile(path, in, func(o *EncodeOptions) {
		o.Compression = CompressionLZ4
	}))

	out, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, in.Collection, out.Collection)
	assert.Len(t, out.Records, 3)
}
