// Package geometry implements the box representations and clipping kernels
// used on the hot path of the tracking engine: axis-aligned and oriented
// boxes, Sutherland-Hodgman polygon clipping, IoU and NMS.
package geometry

import "math"

// Point is a 2D vertex.
type Point struct {
	X float64
	Y float64
}

// Polygon is an ordered ring of vertices produced by clipping. Treat it as
// immutable once returned.
type Polygon []Point

// BoundingBox is an axis-aligned box in (left, top, width, height) form.
type BoundingBox struct {
	Left       float32
	Top        float32
	Width      float32
	Height     float32
	Confidence float32
}

// NewBoundingBox creates a BoundingBox with confidence 1.0.
func NewBoundingBox(left, top, width, height float32) BoundingBox {
	return BoundingBox{Left: left, Top: top, Width: width, Height: height, Confidence: 1.0}
}

// NewBoundingBoxWithConfidence creates a BoundingBox with an explicit confidence in [0,1].
func NewBoundingBoxWithConfidence(left, top, width, height, confidence float32) BoundingBox {
	if confidence < 0.0 || confidence > 1.0 {
		panic("geometry: confidence must lay between 0.0 and 1.0")
	}
	return BoundingBox{Left: left, Top: top, Width: width, Height: height, Confidence: confidence}
}

// AsXYAAH converts the box to the canonical Universal2DBox (axis-aligned, angle absent).
func (b BoundingBox) AsXYAAH() Universal2DBox {
	return Universal2DBox{
		Xc:         b.Left + b.Width/2.0,
		Yc:         b.Top + b.Height/2.0,
		Angle:      nil,
		Aspect:     b.Width / b.Height,
		Height:     b.Height,
		Confidence: b.Confidence,
	}
}

// Universal2DBox is the canonical box: center, optional angle (absent means
// axis-aligned), aspect ratio (width/height), height and confidence.
type Universal2DBox struct {
	Xc         float32
	Yc         float32
	Angle      *float32
	Aspect     float32
	Height     float32
	Confidence float32

	vertexCache Polygon
}

// NewUniversal2DBox builds a box with confidence 1.0. Angle of nil means axis-aligned.
func NewUniversal2DBox(xc, yc float32, angle *float32, aspect, height float32) Universal2DBox {
	return Universal2DBox{Xc: xc, Yc: yc, Angle: angle, Aspect: aspect, Height: height, Confidence: 1.0}
}

// NewUniversal2DBoxWithConfidence builds a box with an explicit confidence.
func NewUniversal2DBoxWithConfidence(xc, yc float32, angle *float32, aspect, height, confidence float32) Universal2DBox {
	if confidence < 0.0 || confidence > 1.0 {
		panic("geometry: confidence must lay between 0.0 and 1.0")
	}
	return Universal2DBox{Xc: xc, Yc: yc, Angle: angle, Aspect: aspect, Height: height, Confidence: confidence}
}

// LTWH builds an axis-aligned Universal2DBox from (left, top, width, height).
func LTWH(left, top, width, height float32) Universal2DBox {
	return NewBoundingBox(left, top, width, height).AsXYAAH()
}

// LTWHWithConfidence builds an axis-aligned Universal2DBox with confidence.
func LTWHWithConfidence(left, top, width, height, confidence float32) Universal2DBox {
	return NewBoundingBoxWithConfidence(left, top, width, height, confidence).AsXYAAH()
}

// AsLTWH converts back to a BoundingBox. Only valid for axis-aligned boxes.
func (b Universal2DBox) AsLTWH() (BoundingBox, bool) {
	if b.Angle != nil {
		return BoundingBox{}, false
	}
	width := b.Height * b.Aspect
	return BoundingBox{
		Left:       b.Xc - width/2.0,
		Top:        b.Yc - b.Height/2.0,
		Width:      width,
		Height:     b.Height,
		Confidence: b.Confidence,
	}, true
}

// Radius returns the bounding-circle radius used for fast separability checks.
func (b Universal2DBox) Radius() float32 {
	hw := b.Aspect * b.Height / 2.0
	hh := b.Height / 2.0
	return float32(math.Sqrt(float64(hw*hw + hh*hh)))
}

// Area returns the box's own area (height*aspect*height).
func (b Universal2DBox) Area() float32 {
	w := b.Height * b.Aspect
	return w * b.Height
}

// Rotate returns a copy of the box with the given angle set and its vertex cache cleared.
func (b Universal2DBox) Rotate(angle float32) Universal2DBox {
	return Universal2DBox{
		Xc:         b.Xc,
		Yc:         b.Yc,
		Angle:      &angle,
		Aspect:     b.Aspect,
		Height:     b.Height,
		Confidence: b.Confidence,
	}
}

// WithConfidence returns a copy of the box with confidence overwritten.
func (b Universal2DBox) WithConfidence(confidence float32) Universal2DBox {
	if confidence < 0.0 || confidence > 1.0 {
		panic("geometry: confidence must lay between 0.0 and 1.0")
	}
	b.Confidence = confidence
	b.vertexCache = nil
	return b
}

// Vertices computes (and does not cache) the box's corner ring, ordered
// counter-clockwise as drawn in y-down image coordinates (negative shoelace
// sum).
func (b Universal2DBox) Vertices() Polygon {
	angle := float64(0)
	if b.Angle != nil {
		angle = float64(*b.Angle)
	}
	height := float64(b.Height)
	aspect := float64(b.Aspect)

	c := math.Cos(angle)
	s := math.Sin(angle)

	halfWidth := height * aspect / 2.0
	halfHeight := height / 2.0

	r1x := -halfWidth*c - halfHeight*s
	r1y := -halfWidth*s + halfHeight*c

	r2x := halfWidth*c - halfHeight*s
	r2y := halfWidth*s + halfHeight*c

	x := float64(b.Xc)
	y := float64(b.Yc)

	return Polygon{
		{X: x + r1x, Y: y + r1y},
		{X: x + r2x, Y: y + r2y},
		{X: x - r1x, Y: y - r1y},
		{X: x - r2x, Y: y - r2y},
	}
}

// CachedVertices returns the cached vertex ring, generating it on first call.
func (b *Universal2DBox) CachedVertices() Polygon {
	if b.vertexCache == nil {
		b.vertexCache = b.Vertices()
	}
	return b.vertexCache
}

// AlmostEqual compares two boxes within eps tolerance, normalizing absent angles to 0.
func (b Universal2DBox) AlmostEqual(other Universal2DBox, eps float32) bool {
	a1, a2 := float32(0), float32(0)
	if b.Angle != nil {
		a1 = *b.Angle
	}
	if other.Angle != nil {
		a2 = *other.Angle
	}
	return absf32(b.Xc-other.Xc) < eps &&
		absf32(b.Yc-other.Yc) < eps &&
		absf32(NormalizeAngle(a1)-NormalizeAngle(a2)) < eps &&
		absf32(b.Aspect-other.Aspect) < eps &&
		absf32(b.Height-other.Height) < eps
}

// NormalizeAngle folds an angle (radians) into [0, 2*pi).
func NormalizeAngle(a float32) float32 {
	const pi2 = 2 * math.Pi
	n := math.Floor(float64(a) / pi2)
	r := float64(a) - n*pi2
	if r < 0 {
		r += pi2
	}
	return float32(r)
}

func absf32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
