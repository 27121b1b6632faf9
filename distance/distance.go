// Package distance provides the scoring functions used to compare vectors.
// Cosine and Euclidean kernels are backed by github.com/viant/vec, which
// dispatches to SIMD implementations where the platform supports them.
package distance

import (
	"fmt"
	"strings"

	"github.com/viant/vec/search"
)

// Metric identifies how two vectors are compared and how the resulting
// scores are ordered.
type Metric int

const (
	// MetricCosine scores by cosine similarity in [-1, 1]. Higher is better.
	MetricCosine Metric = iota
	// MetricL2 scores by Euclidean distance. Lower is better.
	MetricL2
	// MetricDot scores by inner product. Higher is better.
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricL2:
		return "l2"
	case MetricDot:
		return "dot"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMetric resolves a metric from its stable name. Names are the ones
// produced by String and are stored in snapshot headers.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(name) {
	case "cosine":
		return MetricCosine, nil
	case "l2", "euclidean":
		return MetricL2, nil
	case "dot":
		return MetricDot, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", name)
	}
}

// Score computes the raw score between two equal-length vectors.
// Length checks are the caller's responsibility.
func (m Metric) Score(a, b []float32) float32 {
	switch m {
	case MetricCosine:
		return CosineSimilarity(a, b)
	case MetricL2:
		return Euclidean(a, b)
	case MetricDot:
		return Dot(a, b)
	default:
		return 0
	}
}

// Better reports whether score a ranks strictly ahead of score b under
// the metric's ordering.
func (m Metric) Better(a, b float32) bool {
	if m == MetricL2 {
		return a < b
	}
	return a > b
}

// Rank converts a score into an ascending sort key: lower rank means a
// better match for every metric. Similarity metrics are negated so that
// a single min-oriented ordering works for all of them.
func (m Metric) Rank(score float32) float32 {
	if m == MetricL2 {
		return score
	}
	return -score
}

// ScoreFromRank recovers the raw score from a rank produced by Rank.
func (m Metric) ScoreFromRank(rank float32) float32 {
	if m == MetricL2 {
		return rank
	}
	return -rank
}

// Func is a function type for score calculation.
type Func func(a, b []float32) float32

// Provider returns the scoring function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine:
		return CosineSimilarity, nil
	case MetricL2:
		return Euclidean, nil
	case MetricDot:
		return Dot, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

// CosineSimilarity returns the cosine of the angle between a and b.
// If either vector has zero magnitude the similarity is defined as 0.
func CosineSimilarity(a, b []float32) float32 {
	va := search.Float32s(a)
	if va.Magnitude() == 0 || search.Float32s(b).Magnitude() == 0 {
		return 0
	}
	return 1 - va.CosineDistance(b)
}

// Euclidean returns the L2 distance between a and b.
func Euclidean(a, b []float32) float32 {
	return search.Float32s(a).EuclideanDistance(b)
}

// Dot returns the inner product of a and b.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Magnitude returns the L2 norm of v.
func Magnitude(v []float32) float32 {
	return search.Float32s(v).Magnitude()
}
