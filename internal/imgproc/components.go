package imgproc

import (
	"screenpilot/internal/image"
	"screenpilot/pkg/geometry"
)

// ConnectedComponents labels the 4-connected regions of nonzero pixels in
// the first channel of binary. Components are returned in the order their
// first pixel is met by a row-major scan. The fill uses an explicit stack
// and a flat visited slice, so large regions cannot exhaust the goroutine
// stack.
func ConnectedComponents(binary *image.PixelBuffer) [][]geometry.PointInt {
	if !binary.Valid() || binary.Width == 0 || binary.Height == 0 {
		return nil
	}
	w, h, ch := binary.Width, binary.Height, binary.Channels
	fg := func(idx int) bool { return binary.Pix[idx*ch] != 0 }

	visited := make([]bool, w*h)
	var components [][]geometry.PointInt
	var stack []int
	push := func(n int) {
		if !visited[n] && fg(n) {
			visited[n] = true
			stack = append(stack, n)
		}
	}

	for start := 0; start < w*h; start++ {
		if visited[start] || !fg(start) {
			continue
		}

		var component []geometry.PointInt
		stack = stack[:0]
		push(start)
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := idx%w, idx/w
			component = append(component, geometry.PointInt{X: x, Y: y})

			if x > 0 {
				push(idx - 1)
			}
			if x < w-1 {
				push(idx + 1)
			}
			if y > 0 {
				push(idx - w)
			}
			if y < h-1 {
				push(idx + w)
			}
		}
		components = append(components, component)
	}
	return components
}

// ComponentBounds returns the inclusive pixel extent of points, so a single
// pixel yields a 1x1 rectangle.
func ComponentBounds(points []geometry.PointInt) geometry.RectInt {
	if len(points) == 0 {
		return geometry.RectInt{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = min(minX, p.X)
		maxX = max(maxX, p.X)
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}
	return geometry.RectInt{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}
}
