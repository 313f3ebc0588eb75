// Package feature implements appearance-feature vectors and the ring
// buffer tracks use to accumulate them, plus the cosine/Euclidean distance
// metrics the visual voting stage gates on.
package feature

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Vector is a single appearance-embedding observation.
type Vector []float32

// ErrDimensionMismatch is returned when two vectors being compared have
// different lengths.
var ErrDimensionMismatch = errors.New("feature: dimension mismatch")

// Cosine returns the cosine distance (1 - cosine similarity) between a and
// b. Zero when the vectors point the same direction, up to 2 when opposite.
func Cosine(a, b Vector) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	af := toFloat64(a)
	bf := toFloat64(b)
	dot := floats.Dot(af, bf)
	na := math.Sqrt(floats.Dot(af, af))
	nb := math.Sqrt(floats.Dot(bf, bf))
	if na == 0 || nb == 0 {
		return 1, nil
	}
	sim := dot / (na * nb)
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return float32(1 - sim), nil
}

// Euclidean returns the Euclidean (L2) distance between a and b.
func Euclidean(a, b Vector) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum)), nil
}

func toFloat64(v Vector) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// MetricKind selects which distance a Metric uses and how its threshold is
// interpreted.
type MetricKind int

const (
	// MetricEuclidean treats smaller distances as better matches; a pair
	// is accepted when distance <= threshold.
	MetricEuclidean MetricKind = iota
	// MetricCosine treats distance as 1-similarity; a pair is accepted
	// when (1 - distance) >= threshold, i.e. distance <= 1-threshold.
	MetricCosine
)

// Metric bundles a distance kind with its acceptance threshold, mirroring
// the two interchangeable visual-distance strategies.
type Metric struct {
	Kind      MetricKind
	Threshold float32
}

// NewEuclideanMetric builds a Euclidean metric; threshold must be positive.
func NewEuclideanMetric(threshold float32) Metric {
	if threshold <= 0 {
		panic("feature: euclidean threshold must be positive")
	}
	return Metric{Kind: MetricEuclidean, Threshold: threshold}
}

// NewCosineMetric builds a cosine metric; threshold must lie within [-1,1].
func NewCosineMetric(threshold float32) Metric {
	if threshold < -1 || threshold > 1 {
		panic("feature: cosine threshold must lie within [-1.0, 1.0]")
	}
	return Metric{Kind: MetricCosine, Threshold: threshold}
}

// Distance computes the metric's underlying distance between a and b.
func (m Metric) Distance(a, b Vector) (float32, error) {
	switch m.Kind {
	case MetricCosine:
		return Cosine(a, b)
	default:
		return Euclidean(a, b)
	}
}

// IsOK reports whether a computed distance satisfies the metric's
// acceptance threshold.
func (m Metric) IsOK(dist float32) bool {
	switch m.Kind {
	case MetricCosine:
		return dist <= (1 - m.Threshold)
	default:
		return dist <= m.Threshold
	}
}

// Weight converts a distance into an ascending "better" score usable
// directly as an assignment-matrix cost: for Euclidean that's the distance
// itself (smaller is better, so callers typically negate/gate on it); for
// cosine it is the similarity (1 - distance), matching the original
// distance_to_weight convention.
func (m Metric) Weight(dist float32) float32 {
	if m.Kind == MetricCosine {
		return 1 - dist
	}
	return dist
}
