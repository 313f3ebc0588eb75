package geometry

// isInside reports whether point q lies on the side of the oriented edge
// (p1 -> p2) where the cross product (p2-p1) x (q-p1) is non-positive
// (points on the edge count as inside). That side is the interior for rings
// ordered like Universal2DBox.Vertices: counter-clockwise as drawn in y-down
// image coordinates, i.e. a negative shoelace sum.
func isInside(q, p1, p2 Point) bool {
	r := (p2.X-p1.X)*(q.Y-p1.Y) - (p2.Y-p1.Y)*(q.X-p1.X)
	return r <= 0.0
}

// computeIntersection returns the intersection point of segment (s, e) with
// the infinite line through (cp1, cp2).
func computeIntersection(cp1, cp2, s, e Point) Point {
	dc := Point{X: cp1.X - cp2.X, Y: cp1.Y - cp2.Y}
	dp := Point{X: s.X - e.X, Y: s.Y - e.Y}
	n1 := cp1.X*cp2.Y - cp1.Y*cp2.X
	n2 := s.X*e.Y - s.Y*e.X
	n3 := 1.0 / (dc.X*dp.Y - dc.Y*dp.X)
	return Point{
		X: (n1*dp.X - n2*dc.X) * n3,
		Y: (n1*dp.Y - n2*dc.Y) * n3,
	}
}

// SutherlandHodgmanClip clips subjectPolygon against every edge of
// clipPolygon in turn, returning the convex intersection as an ordered ring.
// Both inputs are expected to be convex polygons in the vertex order
// Universal2DBox.Vertices produces (see isInside); a clip ring in the
// opposite order yields an empty result. Returns an empty polygon when there
// is no overlap, and an empty or zero-area polygon for degenerate contact
// (shared edge, single-point touch), instead of panicking.
func SutherlandHodgmanClip(subjectPolygon, clipPolygon Polygon) Polygon {
	finalPolygon := make(Polygon, len(subjectPolygon))
	copy(finalPolygon, subjectPolygon)

	clip := make(Polygon, len(clipPolygon))
	copy(clip, clipPolygon)

	for i := 0; i < len(clip); i++ {
		nextPolygon := finalPolygon
		finalPolygon = Polygon{}

		ii := i - 1
		if i == 0 {
			ii = len(clip) - 1
		}

		cEdgeStart := clip[ii]
		cEdgeEnd := clip[i]

		for j := 0; j < len(nextPolygon); j++ {
			ji := j - 1
			if j == 0 {
				ji = len(nextPolygon) - 1
			}

			sEdgeStart := nextPolygon[ji]
			sEdgeEnd := nextPolygon[j]

			if isInside(sEdgeEnd, cEdgeStart, cEdgeEnd) {
				if !isInside(sEdgeStart, cEdgeStart, cEdgeEnd) {
					finalPolygon = append(finalPolygon, computeIntersection(sEdgeStart, sEdgeEnd, cEdgeStart, cEdgeEnd))
				}
				finalPolygon = append(finalPolygon, sEdgeEnd)
			} else if isInside(sEdgeStart, cEdgeStart, cEdgeEnd) {
				finalPolygon = append(finalPolygon, computeIntersection(sEdgeStart, sEdgeEnd, cEdgeStart, cEdgeEnd))
			}
		}

		if len(finalPolygon) == 0 {
			return finalPolygon
		}
	}
	return finalPolygon
}

// Area computes the polygon's area via the shoelace formula.
func Area(p Polygon) float64 {
	n := len(p)
	if n < 3 {
		return 0.0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += p[i].X*p[j].Y - p[j].X*p[i].Y
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2.0
}
