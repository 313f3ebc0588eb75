package kalmanfilter

// PointVectorFilter tracks K independent 2D landmark points sharing one
// filter configuration and one predict/update clock (e.g. pose keypoints
// riding on the same object). Each point keeps its own 4-state estimate.
type PointVectorFilter struct {
	filter *PointFilter
	states []State
	scale  float32
}

// NewPointVectorFilter builds an uninitialized K-point vector filter.
func NewPointVectorFilter(filter *PointFilter, k int) *PointVectorFilter {
	return &PointVectorFilter{
		filter: filter,
		states: make([]State, k),
	}
}

// Len returns the number of tracked points.
func (v *PointVectorFilter) Len() int {
	return len(v.states)
}

// Initiate seeds every point's state from its (x, y) observation. points
// must have exactly 2*Len() entries, interleaved as [x0, y0, x1, y1, ...].
// scale (typically the owning box's height) weights process noise for all
// points uniformly.
func (v *PointVectorFilter) Initiate(points []float32, scale float32) {
	v.scale = scale
	for i := range v.states {
		x, y := points[2*i], points[2*i+1]
		v.states[i] = v.filter.Initiate(x, y, scale)
	}
}

// Predict advances every point's state by one tick.
func (v *PointVectorFilter) Predict() {
	for i, s := range v.states {
		v.states[i] = v.filter.Predict(s, v.scale)
	}
}

// Update folds in a fresh observation (and scale) for every point.
// Points present with a false mask entry are predicted-only (no
// measurement available for that landmark this epoch).
func (v *PointVectorFilter) Update(points []float32, mask []bool, scale float32) {
	v.scale = scale
	for i, s := range v.states {
		if mask != nil && !mask[i] {
			continue
		}
		x, y := points[2*i], points[2*i+1]
		v.states[i] = v.filter.Update(s, x, y, scale)
	}
}

// Points returns the current (x, y) estimate for every tracked point.
func (v *PointVectorFilter) Points() []float32 {
	out := make([]float32, 0, 2*len(v.states))
	for _, s := range v.states {
		x, y := s.XY()
		out = append(out, x, y)
	}
	return out
}

// GatingDistance sums the squared Mahalanobis distance over every point
// present in the mask (or all points if mask is nil), as a combined gate
// for the whole landmark set.
func (v *PointVectorFilter) GatingDistance(points []float32, mask []bool) float32 {
	var total float32
	for i, s := range v.states {
		if mask != nil && !mask[i] {
			continue
		}
		x, y := points[2*i], points[2*i+1]
		total += v.filter.GatingDistance(s, x, y, v.scale)
	}
	return total
}
