// Package colorutil provides color helpers shared by the detector and the
// command-line reports.
package colorutil

import (
	"math"
)

// Tone buckets a luminance value for reporting.
type Tone string

const (
	ToneDark   Tone = "dark"
	ToneMedium Tone = "medium"
	ToneLight  Tone = "light"
)

// Luminance returns the Rec. 601 luma of an 8-bit RGB triple, truncated.
func Luminance(r, g, b uint8) uint8 {
	return uint8(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
}

// ToneOf classifies a mean brightness (0-255).
func ToneOf(brightness float64) Tone {
	switch {
	case brightness > 200:
		return ToneLight
	case brightness < 80:
		return ToneDark
	default:
		return ToneMedium
	}
}

// RGBToHSV converts RGB (0-255) to HSV (OpenCV convention: H 0-180, S 0-255, V 0-255).
func RGBToHSV(r, g, b float64) (h, s, v float64) {
	r /= 255.0
	g /= 255.0
	b /= 255.0

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	diff := maxC - minC

	v = maxC * 255.0
	if maxC > 0 {
		s = diff / maxC * 255.0
	}

	switch {
	case diff == 0:
		h = 0
	case maxC == r:
		h = 60 * math.Mod((g-b)/diff, 6)
	case maxC == g:
		h = 60 * ((b-r)/diff + 2)
	default:
		h = 60 * ((r-g)/diff + 4)
	}
	if h < 0 {
		h += 360
	}
	return h / 2, s, v
}
