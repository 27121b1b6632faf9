package quiver

import (
	"github.com/quiverdb/quiver/distance"
	"github.com/quiverdb/quiver/index/hnsw"
)

// Options configure index construction. Graph parameters are ignored by
// the brute-force backend.
type Options struct {
	// Metric is the scoring metric. Defaults to cosine.
	Metric distance.Metric

	// M bounds the graph out-degree per layer.
	M int

	// EFConstruction is the beam width used while inserting into the graph.
	EFConstruction int

	// EFSearch is the default query beam width. SearchOptions.EFSearch
	// overrides it per query.
	EFSearch int

	// Heuristic enables diversity-aware neighbor selection in the graph.
	Heuristic bool

	// Seed fixes the graph's layer-assignment RNG for reproducible builds.
	Seed *int64

	// Logger receives structured build and restore events. Defaults to a
	// no-op logger.
	Logger *Logger
}

// DefaultOptions are the options applied when none are supplied.
var DefaultOptions = Options{
	Metric:         distance.MetricCosine,
	M:              hnsw.DefaultM,
	EFConstruction: hnsw.DefaultEFConstruction,
	EFSearch:       hnsw.DefaultEFSearch,
	Heuristic:      true,
	Logger:         NoopLogger(),
}

// WithMetric sets the scoring metric.
func WithMetric(m distance.Metric) func(o *Options) {
	return func(o *Options) { o.Metric = m }
}

// WithLogger sets the logger used for build and restore events.
func WithLogger(l *Logger) func(o *Options) {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}
