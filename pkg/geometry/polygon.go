package geometry

import (
	"math"
)

// Polygon is an ordered vertex list. The closing edge from the last vertex
// back to the first is implicit.
type Polygon []Point2D

// Bounds returns the bounding box of the polygon. ok is false for an empty
// polygon.
func (p Polygon) Bounds() (Rect, bool) {
	if len(p) == 0 {
		return Rect{}, false
	}
	return BoundingBox(p), true
}

// Contains reports whether pt lies inside the polygon (ray casting).
func (p Polygon) Contains(pt Point2D) bool {
	return PointInPolygon(pt, p)
}

// Area returns the unsigned area (shoelace formula).
func (p Polygon) Area() float64 {
	if len(p) < 3 {
		return 0
	}
	var sum float64
	j := len(p) - 1
	for i := range p {
		sum += (p[j].X + p[i].X) * (p[j].Y - p[i].Y)
		j = i
	}
	return math.Abs(sum) / 2
}

// PointInPolygon uses ray casting to test whether pt lies inside polygon.
func PointInPolygon(pt Point2D, polygon []Point2D) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := polygon[i], polygon[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) &&
			pt.X < (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
		j = i
	}
	return inside
}
