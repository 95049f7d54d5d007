package imgproc

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"screenpilot/internal/image"
)

// GaussianKernel builds a (2r+1)x(2r+1) kernel with sigma = r/3, normalized
// so the weights sum to 1. Radius 0 is the identity kernel.
func GaussianKernel(radius int) [][]float64 {
	if radius <= 0 {
		return [][]float64{{1}}
	}
	size := 2*radius + 1
	sigma := float64(radius) / 3
	twoSigmaSq := 2 * sigma * sigma

	flat := make([]float64, size*size)
	for y := 0; y < size; y++ {
		dy := float64(y - radius)
		for x := 0; x < size; x++ {
			dx := float64(x - radius)
			flat[y*size+x] = math.Exp(-(dx*dx + dy*dy) / twoSigmaSq)
		}
	}
	floats.Scale(1/floats.Sum(flat), flat)

	kernel := make([][]float64, size)
	for y := range kernel {
		kernel[y] = flat[y*size : (y+1)*size]
	}
	return kernel
}

// GaussianBlur convolves every channel with GaussianKernel(radius). Pixels
// closer than radius to any edge keep their original values; there is no
// border extension.
func GaussianBlur(buf *image.PixelBuffer, radius int) *image.PixelBuffer {
	if !buf.Valid() {
		return empty()
	}
	out := buf.Clone()
	if radius <= 0 || buf.Width <= 2*radius || buf.Height <= 2*radius {
		return out
	}

	kernel := GaussianKernel(radius)
	size := len(kernel)
	ch := buf.Channels
	yStart, yEnd := radius, buf.Height-radius

	// Rows are independent, so split them into stripes.
	workers := min(runtime.NumCPU(), yEnd-yStart)
	rowsPerWorker := (yEnd - yStart + workers - 1) / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		from := yStart + w*rowsPerWorker
		to := min(from+rowsPerWorker, yEnd)
		if from >= to {
			break
		}
		g.Go(func() error {
			acc := make([]float64, ch)
			for y := from; y < to; y++ {
				for x := radius; x < buf.Width-radius; x++ {
					clear(acc)
					for ky := 0; ky < size; ky++ {
						row := kernel[ky]
						base := buf.Offset(x-radius, y+ky-radius)
						for kx := 0; kx < size; kx++ {
							wgt := row[kx]
							i := base + kx*ch
							for c := 0; c < ch; c++ {
								acc[c] += float64(buf.Pix[i+c]) * wgt
							}
						}
					}
					dst := out.Offset(x, y)
					for c := 0; c < ch; c++ {
						out.Pix[dst+c] = clampByte(acc[c])
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Sobel computes the gradient magnitude of the luminance image. The result
// is single-channel; the one-pixel border is left at 0 and magnitudes above
// 255 saturate rather than wrap.
func Sobel(buf *image.PixelBuffer) *image.PixelBuffer {
	gray := Grayscale(buf)
	w, h := gray.Width, gray.Height
	out := &image.PixelBuffer{Width: w, Height: h, Channels: 1, Pix: make([]byte, w*h)}
	if w < 3 || h < 3 {
		return out
	}

	p := gray.Pix
	for y := 1; y < h-1; y++ {
		up, mid, down := (y-1)*w, y*w, (y+1)*w
		for x := 1; x < w-1; x++ {
			tl, tc, tr := int(p[up+x-1]), int(p[up+x]), int(p[up+x+1])
			ml, mr := int(p[mid+x-1]), int(p[mid+x+1])
			bl, bc, br := int(p[down+x-1]), int(p[down+x]), int(p[down+x+1])

			gx := -tl + tr - 2*ml + 2*mr - bl + br
			gy := -tl - 2*tc - tr + bl + 2*bc + br
			mag := math.Round(math.Sqrt(float64(gx*gx + gy*gy)))
			out.Pix[mid+x] = clampByte(mag)
		}
	}
	return out
}

// EdgeDensity returns the fraction of pixels in an edge map whose magnitude
// exceeds level.
func EdgeDensity(edges *image.PixelBuffer, level uint8) float64 {
	if !edges.Valid() || len(edges.Pix) == 0 {
		return 0
	}
	var n int
	for i := 0; i < len(edges.Pix); i += edges.Channels {
		if edges.Pix[i] > level {
			n++
		}
	}
	return float64(n) / float64(edges.Width*edges.Height)
}
