package kalmanfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointFilterInitiate(t *testing.T) {
	f := DefaultPointFilter()
	s := f.Initiate(10, 20, 40)

	require.Equal(t, 4, s.Dim())
	x, y := s.XY()
	assert.InDelta(t, 10, x, 1e-6)
	assert.InDelta(t, 20, y, 1e-6)
	vx, vy := s.PointVelocity()
	assert.InDelta(t, 0, vx, 1e-6)
	assert.InDelta(t, 0, vy, 1e-6)
}

func TestPointFilterPredictAdvancesByVelocity(t *testing.T) {
	f := DefaultPointFilter()
	s := f.Initiate(0, 0, 40)
	s.Mean.SetVec(2, 3.0)
	s.Mean.SetVec(3, -1.0)

	next := f.Predict(s, 40)
	x, y := next.XY()
	assert.InDelta(t, 3.0, x, 1e-6)
	assert.InDelta(t, -1.0, y, 1e-6)
}

func TestPointFilterUpdateConverges(t *testing.T) {
	f := DefaultPointFilter()
	s := f.Initiate(0, 0, 40)

	for i := 0; i < 50; i++ {
		s = f.Predict(s, 40)
		s = f.Update(s, 5, 5, 40)
	}
	x, y := s.XY()
	assert.InDelta(t, 5.0, x, 0.5)
	assert.InDelta(t, 5.0, y, 0.5)
}

func TestPointVectorFilterIndependentPoints(t *testing.T) {
	pf := DefaultPointFilter()
	v := NewPointVectorFilter(pf, 2)
	v.Initiate([]float32{0, 0, 100, 100}, 40)

	v.Predict()
	pts := v.Points()
	require.Len(t, pts, 4)
	assert.InDelta(t, 0, pts[0], 1e-6)
	assert.InDelta(t, 100, pts[2], 1e-6)

	v.Update([]float32{10, 10, 100, 100}, []bool{true, false}, 40)
	pts = v.Points()
	// point 0 moved toward its measurement, point 1 stayed put (no measurement).
	assert.Greater(t, pts[0], 0.0)
	assert.InDelta(t, 100, pts[2], 1e-6)
}

func TestPointFilterGatingDistanceMonotonic(t *testing.T) {
	f := DefaultPointFilter()
	s := f.Initiate(0, 0, 40)

	near := f.GatingDistance(s, 1, 0, 40)
	far := f.GatingDistance(s, 100, 0, 40)
	assert.Less(t, near, far)
}
