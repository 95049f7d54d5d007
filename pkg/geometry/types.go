// Package geometry provides the value types shared by the perception and
// action layers: points, rectangles and polygons in screen coordinates.
package geometry

import (
	"math"
)

// Point2D is a screen position with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Round snaps the point to the nearest pixel.
func (p Point2D) Round() PointInt {
	return PointInt{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}

// PointInt is a pixel position.
type PointInt struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// ToFloat converts to Point2D.
func (p PointInt) ToFloat() Point2D {
	return Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// Rect is an axis-aligned rectangle. Width and Height are expected to be
// non-negative; constructors normalize negative extents.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// NewRect creates a new Rect, flipping negative extents so the result always
// has non-negative width and height.
func NewRect(x, y, width, height float64) Rect {
	if width < 0 {
		x += width
		width = -width
	}
	if height < 0 {
		y += height
		height = -height
	}
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// RectFromPoints returns the rectangle spanned by two opposite corners.
func RectFromPoints(a, b Point2D) Rect {
	x := math.Min(a.X, b.X)
	y := math.Min(a.Y, b.Y)
	return Rect{X: x, Y: y, Width: math.Abs(a.X - b.X), Height: math.Abs(a.Y - b.Y)}
}

// Right is the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom is the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Contains reports whether p lies inside the rectangle, edges included.
func (r Rect) Contains(p Point2D) bool {
	return p.X >= r.X && p.X <= r.Right() &&
		p.Y >= r.Y && p.Y <= r.Bottom()
}

// ContainsRect reports whether other lies entirely within r.
func (r Rect) ContainsRect(other Rect) bool {
	return other.X >= r.X && other.Right() <= r.Right() &&
		other.Y >= r.Y && other.Bottom() <= r.Bottom()
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Point2D {
	return Point2D{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Area returns Width*Height.
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// AspectRatio returns Width/Height, or 0 for a rectangle with no height.
func (r Rect) AspectRatio() float64 {
	if r.Height == 0 {
		return 0
	}
	return r.Width / r.Height
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Intersects reports whether the two rectangles overlap. Rectangles are
// treated as closed, so shared edges count as intersecting.
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.Right() && other.X <= r.Right() &&
		r.Y <= other.Bottom() && other.Y <= r.Bottom()
}

// Intersection returns the overlapping region. ok is false when the
// rectangles are disjoint.
func (r Rect) Intersection(other Rect) (Rect, bool) {
	if !r.Intersects(other) {
		return Rect{}, false
	}
	x := math.Max(r.X, other.X)
	y := math.Max(r.Y, other.Y)
	x2 := math.Min(r.Right(), other.Right())
	y2 := math.Min(r.Bottom(), other.Bottom())
	return Rect{X: x, Y: y, Width: x2 - x, Height: y2 - y}, true
}

// Union returns the smallest rectangle containing both rectangles.
func (r Rect) Union(other Rect) Rect {
	x := math.Min(r.X, other.X)
	y := math.Min(r.Y, other.Y)
	x2 := math.Max(r.Right(), other.Right())
	y2 := math.Max(r.Bottom(), other.Bottom())
	return Rect{X: x, Y: y, Width: x2 - x, Height: y2 - y}
}

// Scale resizes the rectangle about its center.
func (r Rect) Scale(factor float64) Rect {
	c := r.Center()
	w := r.Width * factor
	h := r.Height * factor
	return NewRect(c.X-w/2, c.Y-h/2, w, h)
}

// Expand grows the rectangle by margin on every side. A negative margin
// shrinks it, never below zero size.
func (r Rect) Expand(margin float64) Rect {
	w := math.Max(0, r.Width+2*margin)
	h := math.Max(0, r.Height+2*margin)
	c := r.Center()
	return Rect{X: c.X - w/2, Y: c.Y - h/2, Width: w, Height: h}
}

// OverlapRatio returns the intersection area divided by the smaller of the
// two areas. Zero-area rectangles overlap nothing.
func (r Rect) OverlapRatio(other Rect) float64 {
	inter, ok := r.Intersection(other)
	if !ok {
		return 0
	}
	smaller := math.Min(r.Area(), other.Area())
	if smaller <= 0 {
		return 0
	}
	return inter.Area() / smaller
}

// RectInt is a rectangle in pixel coordinates.
type RectInt struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// ToFloat converts to Rect.
func (r RectInt) ToFloat() Rect {
	return Rect{X: float64(r.X), Y: float64(r.Y), Width: float64(r.Width), Height: float64(r.Height)}
}

// Area returns the pixel count covered by the rectangle.
func (r RectInt) Area() int {
	return r.Width * r.Height
}

// BoundingBox computes the axis-aligned bounding box of a set of points.
func BoundingBox(points []Point2D) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
