package geometry

import (
	"math"
	"sort"
)

// TooFar reports whether two boxes are guaranteed not to overlap, using the
// bounding-circle fast path: true when the center-to-center distance exceeds
// the sum of the two radii.
func TooFar(l, r Universal2DBox) bool {
	maxDistance := l.Radius() + r.Radius()
	x := l.Xc - r.Xc
	y := l.Yc - r.Yc
	return float64(x*x+y*y) > float64(maxDistance*maxDistance)
}

// axisAlignedIntersection is the fast path for two unrotated boxes: compute
// left/top/width/height corners in f64 for stability, take the overlap
// rectangle's area.
func axisAlignedIntersection(l, r Universal2DBox) float64 {
	lw, rw := float64(l.Height)*float64(l.Aspect), float64(r.Height)*float64(r.Aspect)
	ax0, ay0 := float64(l.Xc)-lw/2, float64(l.Yc)-float64(l.Height)/2
	ax1, ay1 := ax0+lw, ay0+float64(l.Height)
	bx0, by0 := float64(r.Xc)-rw/2, float64(r.Yc)-float64(r.Height)/2
	bx1, by1 := bx0+rw, by0+float64(r.Height)

	x1, y1 := maxf64(ax0, bx0), maxf64(ay0, by0)
	x2, y2 := minf64(ax1, bx1), minf64(ay1, by1)

	w, h := x2-x1, y2-y1
	if w > 0 && h > 0 {
		return w * h
	}
	return 0.0
}

// Intersection returns the intersection area of two boxes. Two unrotated
// boxes take a fast axis-aligned path; any rotated box falls back to
// Sutherland-Hodgman clipping of the box vertex rings. A bounding-circle
// pre-check short-circuits non-overlapping boxes to 0 before any polygon
// work.
func Intersection(l, r Universal2DBox) float64 {
	if TooFar(l, r) {
		return 0.0
	}
	if l.Angle == nil && r.Angle == nil {
		return axisAlignedIntersection(l, r)
	}
	lc := l
	rc := r
	p1 := lc.CachedVertices()
	p2 := rc.CachedVertices()
	return Area(SutherlandHodgmanClip(p1, p2))
}

// IoU returns the Intersection-over-Union of two boxes; 0 when the union is 0.
func IoU(l, r Universal2DBox) float64 {
	inter := Intersection(l, r)
	if inter == 0.0 {
		return 0.0
	}
	union := float64(l.Height*l.Height*l.Aspect) + float64(r.Height*r.Height*r.Aspect) - inter
	if union <= 0 {
		return 0.0
	}
	return inter / union
}

func maxf64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// NMS runs non-maximum suppression over boxes with parallel scores.
// Boxes with score <= scoreThreshold (when provided) are dropped first; the
// rest are sorted by descending score (stable on ties, preserving original
// input order) and greedily kept unless their IoU with an already-kept,
// higher-scored box exceeds nmsThreshold. Returns the indices (into the
// input slices) retained, in descending-score order.
func NMS(boxes []Universal2DBox, scores []float32, nmsThreshold float32, scoreThreshold *float32) []int {
	type candidate struct {
		index int
		score float32
	}

	st := -float32(math.MaxFloat32)
	if scoreThreshold != nil {
		st = *scoreThreshold
	}

	candidates := make([]candidate, 0, len(boxes))
	for i, b := range boxes {
		if scores[i] <= st || b.Height <= 0 || b.Aspect <= 0 {
			continue
		}
		candidates = append(candidates, candidate{index: i, score: scores[i]})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	excluded := make(map[int]bool, len(candidates))
	kept := make([]int, 0, len(candidates))

	for i, cb := range candidates {
		if excluded[cb.index] {
			continue
		}
		kept = append(kept, cb.index)
		for _, ob := range candidates[i+1:] {
			if excluded[ob.index] {
				continue
			}
			iou := float32(IoU(boxes[cb.index], boxes[ob.index]))
			if iou > nmsThreshold {
				excluded[ob.index] = true
			}
		}
	}
	return kept
}
