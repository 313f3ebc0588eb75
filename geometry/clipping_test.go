package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// square lists the corners in the same order Universal2DBox.Vertices uses,
// which is the orientation SutherlandHodgmanClip expects.
func square(x0, y0, side float64) Polygon {
	return Polygon{
		{X: x0, Y: y0 + side},
		{X: x0 + side, Y: y0 + side},
		{X: x0 + side, Y: y0},
		{X: x0, Y: y0},
	}
}

func TestSutherlandHodgmanClipSelfEqualsSelf(t *testing.T) {
	s := square(0, 0, 10)
	clipped := SutherlandHodgmanClip(s, s)
	assert.InDelta(t, Area(s), Area(clipped), 1e-6)
}

func TestSutherlandHodgmanClipPartialOverlap(t *testing.T) {
	a := square(0, 0, 10)
	b := square(5, 5, 10)
	clipped := SutherlandHodgmanClip(a, b)
	assert.InDelta(t, 25.0, Area(clipped), 1e-6)
}

func TestSutherlandHodgmanClipNoOverlapIsEmpty(t *testing.T) {
	a := square(0, 0, 5)
	b := square(100, 100, 5)
	clipped := SutherlandHodgmanClip(a, b)
	assert.InDelta(t, 0.0, Area(clipped), 1e-6)
}

func TestClipAreaNeverExceedsEitherInput(t *testing.T) {
	a := square(0, 0, 10)
	b := square(3, 3, 4)
	clipped := SutherlandHodgmanClip(a, b)
	area := Area(clipped)
	assert.LessOrEqual(t, area, Area(a)+1e-6)
	assert.LessOrEqual(t, area, Area(b)+1e-6)
}

func TestAreaDegenerate(t *testing.T) {
	assert.Equal(t, 0.0, Area(Polygon{{X: 0, Y: 0}, {X: 1, Y: 1}}))
	assert.Equal(t, 0.0, Area(nil))
}
