package geometry

import (
	"errors"
	"math"
)

// ErrInvalidCellSize is returned by NewGrid for a non-positive cell size.
var ErrInvalidCellSize = errors.New("geometry: grid cell size must be positive")

type cellKey struct {
	cx, cy int
}

// Grid is a uniform-cell broad-phase index over rectangles. An id is
// registered in every cell its rectangle touches, so Query returns a
// superset of the ids whose rectangles truly intersect; callers that need
// exact answers re-test with Rect.Intersects.
//
// Grid is not safe for concurrent use.
type Grid struct {
	cellSize float64
	cells    map[cellKey][]int
	ids      map[int]struct{}
}

// NewGrid creates an empty grid with square cells of the given size.
func NewGrid(cellSize float64) (*Grid, error) {
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, ErrInvalidCellSize
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]int),
		ids:      make(map[int]struct{}),
	}, nil
}

// CellSize returns the edge length of a cell.
func (g *Grid) CellSize() float64 {
	return g.cellSize
}

func (g *Grid) cell(v float64) int {
	return int(math.Floor(v / g.cellSize))
}

// cellRange returns the inclusive cell span covered by r.
func (g *Grid) cellRange(r Rect) (minX, minY, maxX, maxY int) {
	return g.cell(r.X), g.cell(r.Y), g.cell(r.Right()), g.cell(r.Bottom())
}

// Insert registers id in every cell the bounds overlap.
func (g *Grid) Insert(id int, bounds Rect) {
	minX, minY, maxX, maxY := g.cellRange(bounds)
	for cx := minX; cx <= maxX; cx++ {
		for cy := minY; cy <= maxY; cy++ {
			k := cellKey{cx, cy}
			g.cells[k] = append(g.cells[k], id)
		}
	}
	g.ids[id] = struct{}{}
}

// Query returns the distinct ids registered in any cell overlapped by
// bounds, in first-seen order.
func (g *Grid) Query(bounds Rect) []int {
	minX, minY, maxX, maxY := g.cellRange(bounds)
	seen := make(map[int]struct{})
	var out []int
	for cx := minX; cx <= maxX; cx++ {
		for cy := minY; cy <= maxY; cy++ {
			for _, id := range g.cells[cellKey{cx, cy}] {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

// QueryPoint returns the ids registered in the cell containing p.
func (g *Grid) QueryPoint(p Point2D) []int {
	return g.Query(Rect{X: p.X, Y: p.Y})
}

// Len returns the number of distinct ids in the grid.
func (g *Grid) Len() int {
	return len(g.ids)
}

// Clear removes every entry.
func (g *Grid) Clear() {
	g.cells = make(map[cellKey][]int)
	g.ids = make(map[int]struct{})
}
