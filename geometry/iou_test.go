package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoUSelfIsOne(t *testing.T) {
	box := LTWH(10, 10, 20, 20)
	assert.InDelta(t, 1.0, IoU(box, box), 1e-6)
}

func TestIoUIsSymmetric(t *testing.T) {
	a := LTWH(0, 0, 10, 10)
	b := LTWH(5, 5, 10, 10)
	assert.InDelta(t, IoU(a, b), IoU(b, a), 1e-9)
}

func TestIoUNoOverlapIsZero(t *testing.T) {
	a := LTWH(0, 0, 5, 5)
	b := LTWH(1000, 1000, 5, 5)
	assert.Equal(t, 0.0, IoU(a, b))
}

func TestTooFarShortCircuitsDistantBoxes(t *testing.T) {
	a := LTWH(0, 0, 5, 5)
	b := LTWH(1000, 1000, 5, 5)
	assert.True(t, TooFar(a, b))
}

func TestOrientedBoxesIdenticalCenterAndAreaHaveIoUOne(t *testing.T) {
	a := NewUniversal2DBox(0, 0, nil, 1, 10)
	angle := float32(math.Pi / 2)
	b := a.Rotate(angle)
	assert.InDelta(t, 1.0, IoU(a, b), 1e-3)
}

func TestNMSOrientedBoxScenario(t *testing.T) {
	boxes := []Universal2DBox{
		NewUniversal2DBox(0, 0, nil, 1, 10),
		func() Universal2DBox {
			angle := float32(math.Pi / 2)
			return NewUniversal2DBox(0, 0, &angle, 1, 10)
		}(),
	}
	scores := []float32{0.9, 0.8}
	kept := NMS(boxes, scores, 0.5, nil)
	require.Len(t, kept, 1)
	assert.Equal(t, 0, kept[0])
}

func TestNMSThresholdOneSuppressesNothing(t *testing.T) {
	// suppression requires IoU to strictly exceed nmsThreshold; even an
	// exact duplicate (IoU == 1.0) does not exceed a threshold of 1.0.
	boxes := []Universal2DBox{
		LTWH(0, 0, 10, 10),
		LTWH(0, 0, 10, 10),
		LTWH(5, 5, 10, 10),
	}
	scores := []float32{0.9, 0.85, 0.8}
	kept := NMS(boxes, scores, 1.0, nil)
	require.Len(t, kept, 3)
	assert.ElementsMatch(t, []int{0, 1, 2}, kept)
}

func TestNMSThresholdZeroKeepsOnlyTopAmongOverlapping(t *testing.T) {
	boxes := []Universal2DBox{
		LTWH(0, 0, 10, 10),
		LTWH(0, 0, 10, 10),
		LTWH(0, 0, 10, 10),
	}
	scores := []float32{0.9, 0.8, 0.7}
	kept := NMS(boxes, scores, 0.0, nil)
	require.Len(t, kept, 1)
	assert.Equal(t, 0, kept[0])
}

func TestNMSScoreThresholdDrops(t *testing.T) {
	boxes := []Universal2DBox{
		LTWH(0, 0, 10, 10),
		LTWH(100, 100, 10, 10),
	}
	scores := []float32{0.9, 0.1}
	st := float32(0.5)
	kept := NMS(boxes, scores, 0.5, &st)
	require.Len(t, kept, 1)
	assert.Equal(t, 0, kept[0])
}
