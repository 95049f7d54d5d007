package geometry

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridRejectsBadCellSize(t *testing.T) {
	for _, size := range []float64{0, -1} {
		_, err := NewGrid(size)
		assert.ErrorIs(t, err, ErrInvalidCellSize)
	}
}

func TestGridInsertQuery(t *testing.T) {
	g, err := NewGrid(50)
	require.NoError(t, err)

	g.Insert(1, NewRect(0, 0, 10, 10))
	g.Insert(2, NewRect(40, 40, 30, 30)) // spans four cells
	g.Insert(3, NewRect(500, 500, 10, 10))

	assert.Equal(t, []int{1, 2}, g.Query(NewRect(0, 0, 20, 20)))
	assert.Equal(t, []int{2}, g.Query(NewRect(60, 60, 1, 1)))
	assert.Equal(t, []int{3}, g.QueryPoint(NewPoint2D(505, 505)))
	assert.Empty(t, g.Query(NewRect(200, 200, 10, 10)))
	assert.Equal(t, 3, g.Len())

	g.Clear()
	assert.Empty(t, g.Query(NewRect(0, 0, 1000, 1000)))
	assert.Zero(t, g.Len())
}

func TestGridQueryDeduplicates(t *testing.T) {
	g, err := NewGrid(10)
	require.NoError(t, err)
	g.Insert(7, NewRect(0, 0, 95, 95))

	ids := g.Query(NewRect(0, 0, 95, 95))
	assert.Equal(t, []int{7}, ids)
}

func TestGridNegativeCoordinates(t *testing.T) {
	g, err := NewGrid(10)
	require.NoError(t, err)
	g.Insert(1, NewRect(-15, -15, 5, 5))

	assert.Equal(t, []int{1}, g.Query(NewRect(-12, -12, 1, 1)))
	assert.Empty(t, g.Query(NewRect(1, 1, 1, 1)))
}

func rectGen() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(-1000, 1000),
		gen.Float64Range(-1000, 1000),
		gen.Float64Range(0, 500),
		gen.Float64Range(0, 500),
	).Map(func(v []interface{}) Rect {
		return Rect{X: v[0].(float64), Y: v[1].(float64), Width: v[2].(float64), Height: v[3].(float64)}
	})
}

// pixelRectGen yields whole-pixel rectangles, which is what screen bounds
// are; float edges would make exact containment depend on rounding.
func pixelRectGen() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(-1000, 1000),
		gen.IntRange(-1000, 1000),
		gen.IntRange(0, 500),
		gen.IntRange(0, 500),
	).Map(func(v []interface{}) Rect {
		return RectInt{X: v[0].(int), Y: v[1].(int), Width: v[2].(int), Height: v[3].(int)}.ToFloat()
	})
}

func TestGeometryProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("intersects is symmetric", prop.ForAll(
		func(a, b Rect) bool {
			return a.Intersects(b) == b.Intersects(a)
		},
		rectGen(), rectGen(),
	))

	properties.Property("query after insert contains id", prop.ForAll(
		func(r Rect, cell float64, id int) bool {
			g, err := NewGrid(cell)
			if err != nil {
				return false
			}
			g.Insert(id, r)
			for _, got := range g.Query(r) {
				if got == id {
					return true
				}
			}
			return false
		},
		rectGen(), gen.Float64Range(1, 200), gen.IntRange(0, 1<<20),
	))

	properties.Property("union contains both", prop.ForAll(
		func(a, b Rect) bool {
			u := a.Union(b)
			return u.ContainsRect(a) && u.ContainsRect(b)
		},
		pixelRectGen(), pixelRectGen(),
	))

	properties.TestingRun(t)
}

func TestUnionOfFractionalRects(t *testing.T) {
	a := Rect{X: -275.80, Y: 10, Width: 115.58, Height: 5}
	b := Rect{X: 499.46, Y: 12, Width: 311.60, Height: 5}
	u := a.Union(b)
	assert.InDelta(t, a.X, u.X, 1e-9)
	assert.InDelta(t, b.Right(), u.Right(), 1e-9)
	assert.InDelta(t, b.Bottom(), u.Bottom(), 1e-9)
}
