package tracker

import (
	"github.com/LdDl/trackcore/feature"
	"github.com/LdDl/trackcore/geometry"
	"github.com/LdDl/trackcore/kalmanfilter"
)

// mahalanobisGate4 is the 95% chi-squared quantile for 4 degrees of
// freedom (index 3 of the table): the cut-off for the Mahalanobis voter.
var mahalanobisGate4 = kalmanfilter.Chi2Inv95()[3]

// positionalScore computes the configured positional voter's score for a
// candidate box against a track's predicted box/Kalman state. ok is false
// when the pair is gated out.
func positionalScore(method PositionalMetric, filter *kalmanfilter.BBoxFilter, candidate, predicted geometry.Universal2DBox, kalman kalmanfilter.State) (score float32, ok bool) {
	switch method.Kind {
	case PositionalMahalanobis:
		d := filter.GatingDistance(kalman, candidate)
		if d > mahalanobisGate4 {
			return 0, false
		}
		// assignment.Solve maximizes and defaults gated-out/padding cells to
		// zero, so the score must be a positive inverted cost: zero at the
		// gate boundary, growing as the match tightens.
		return mahalanobisGate4 - d, true
	default:
		iou := float32(geometry.IoU(candidate, predicted))
		if iou < method.IoUThreshold {
			return 0, false
		}
		return iou, true
	}
}

// normalizedPositionalScore maps a raw positional score into [0,1] "higher
// is better" space for use inside the combined cost. IoU is already in
// [0,1]; Mahalanobis scores (the positive inverted cost `gate - d`, in
// [0,gate]) are rescaled linearly against the gate.
func normalizedPositionalScore(method PositionalMetric, raw float32) float32 {
	if method.Kind == PositionalMahalanobis {
		n := raw / mahalanobisGate4
		if n < 0 {
			n = 0
		}
		if n > 1 {
			n = 1
		}
		return n
	}
	return raw
}

// visualDistance computes the configured appearance metric's distance
// between a candidate feature and the minimum distance to any feature in a
// track's history, mirroring min_{f in history} d(f_c, f). ok is false when
// the track's feature history is empty.
func visualDistance(kind VisualMetricKind, candidate feature.Vector, history []feature.Vector) (dist float32, ok bool) {
	if len(history) == 0 {
		return 0, false
	}
	best := float32(0)
	for i, h := range history {
		var d float32
		var err error
		if kind == VisualEuclidean {
			d, err = feature.Euclidean(candidate, h)
		} else {
			d, err = feature.Cosine(candidate, h)
		}
		if err != nil {
			continue
		}
		if i == 0 || d < best {
			best = d
		}
	}
	return best, true
}

// visualGate reports whether a visual distance satisfies the configured threshold.
func visualGate(kind VisualMetricKind, threshold, dist float32) bool {
	if kind == VisualEuclidean {
		return dist <= threshold
	}
	return (1 - dist) >= threshold
}

// normalizedVisualDistance maps a visual distance into [0,1] "higher is
// worse" space for use inside the combined cost.
func normalizedVisualDistance(kind VisualMetricKind, threshold, dist float32) float32 {
	if kind == VisualEuclidean {
		if threshold <= 0 {
			return 1
		}
		n := dist / threshold
		if n > 1 {
			n = 1
		}
		return n
	}
	// cosine distance is already within [0,2]; fold into [0,1].
	n := dist / 2
	if n > 1 {
		n = 1
	}
	return n
}

// CombinedCost blends a normalized positional score and a normalized
// visual distance into the cost the assignment solver maximizes, as
// `score = w_pos*pos_score_normalized + w_vis*(1-vis_distance_normalized)`
// (we maximize score directly rather than minimizing a cost, so visual
// distance is inverted into a similarity before blending).
func CombinedCost(posScoreNormalized, visDistanceNormalized, positionalWeight float32) float32 {
	return positionalWeight*posScoreNormalized + (1-positionalWeight)*(1-visDistanceNormalized)
}
