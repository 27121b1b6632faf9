package bruteforce_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quiverdb/quiver/distance"
	"github.com/quiverdb/quiver/index"
	"github.com/quiverdb/quiver/index/bruteforce"
	"github.com/quiverdb/quiver/index/indextest"
)

func TestContract(t *testing.T) {
	indextest.Run(t, func(t testing.TB, collection string, dimension int, metric distance.Metric) index.Index {
		idx, err := bruteforce.New(collection, dimension, func(o *bruteforce.Options) {
			o.Metric = metric
		})
		require.NoError(t, err)
		return idx
	})
}
