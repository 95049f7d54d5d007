package imgproc

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"screenpilot/internal/image"
	"screenpilot/pkg/geometry"
)

// MatchThreshold is the minimum NCC score reported by MatchTemplate.
const MatchThreshold = 0.8

// Match is one template placement and its score.
type Match struct {
	Offset geometry.PointInt `json:"offset"`
	Score  float64           `json:"score"`
}

// NCC returns the normalized cross-correlation of two equal-length sample
// vectors, in [-1, 1]. Vectors of different length, or with zero variance,
// score 0.
func NCC(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	r := stat.Correlation(a, b, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// MatchTemplate slides tmpl over img and reports every offset whose NCC
// score exceeds MatchThreshold, in row-major offset order. Both inputs are
// reduced to luminance first. The search is exhaustive and costs
// O(image area * template area); for large templates use the OpenCV path in
// cvproc.
func MatchTemplate(img, tmpl *image.PixelBuffer) []Match {
	return MatchTemplateThreshold(img, tmpl, MatchThreshold)
}

// MatchTemplateThreshold is MatchTemplate with a caller-chosen threshold.
func MatchTemplateThreshold(img, tmpl *image.PixelBuffer, threshold float64) []Match {
	if img.Empty() || tmpl.Empty() || tmpl.Width > img.Width || tmpl.Height > img.Height {
		return nil
	}
	gi := Grayscale(img)
	gt := Grayscale(tmpl)

	tw, th := gt.Width, gt.Height
	tv := make([]float64, tw*th)
	for i, v := range gt.Pix {
		tv[i] = float64(v)
	}
	// The template variance is fixed; a flat template can never match.
	if _, sd := stat.MeanStdDev(tv, nil); sd == 0 {
		return nil
	}

	window := make([]float64, tw*th)
	var matches []Match
	for oy := 0; oy <= gi.Height-th; oy++ {
		for ox := 0; ox <= gi.Width-tw; ox++ {
			for ty := 0; ty < th; ty++ {
				row := (oy+ty)*gi.Width + ox
				dst := window[ty*tw : (ty+1)*tw]
				for tx, v := range gi.Pix[row : row+tw] {
					dst[tx] = float64(v)
				}
			}
			if score := NCC(window, tv); score > threshold {
				matches = append(matches, Match{Offset: geometry.PointInt{X: ox, Y: oy}, Score: score})
			}
		}
	}
	return matches
}

// Best returns the highest-scoring match; ok is false for an empty slice.
func Best(matches []Match) (best Match, ok bool) {
	for i, m := range matches {
		if i == 0 || m.Score > best.Score {
			best = m
		}
	}
	return best, len(matches) > 0
}
