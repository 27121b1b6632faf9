package hnsw_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quiverdb/quiver/distance"
	"github.com/quiverdb/quiver/index"
	"github.com/quiverdb/quiver/index/hnsw"
	"github.com/quiverdb/quiver/index/indextest"
)

func TestContract(t *testing.T) {
	indextest.Run(t, func(t testing.TB, collection string, dimension int, metric distance.Metric) index.Index {
		seed := int64(42)
		idx, err := hnsw.New(collection, dimension, func(o *hnsw.Options) {
			o.Metric = metric
			o.Seed = &seed
		})
		require.NoError(t, err)
		return idx
	})
}
