// Package imgproc implements the classical image-processing stages used by
// the element detector: grayscale, blur, edge detection, thresholding,
// connected components and template matching.
//
// Every function is pure. A nil, empty or malformed input buffer produces an
// empty result rather than an error or a panic, so a bad frame can simply be
// skipped by the caller.
package imgproc

import (
	"math"

	"screenpilot/internal/image"
	"screenpilot/pkg/colorutil"
)

func empty() *image.PixelBuffer {
	return &image.PixelBuffer{Channels: 1, Pix: []byte{}}
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// Grayscale converts buf to a single-channel luminance image. A
// single-channel input is returned as a copy.
func Grayscale(buf *image.PixelBuffer) *image.PixelBuffer {
	if !buf.Valid() {
		return empty()
	}
	if buf.Channels == 1 {
		return buf.Clone()
	}

	out := &image.PixelBuffer{Width: buf.Width, Height: buf.Height, Channels: 1, Pix: make([]byte, buf.Width*buf.Height)}
	ch := buf.Channels
	for i := range out.Pix {
		p := buf.Pix[i*ch : i*ch+3]
		out.Pix[i] = colorutil.Luminance(p[0], p[1], p[2])
	}
	return out
}

// Threshold binarizes buf: luminance above value becomes 255, everything
// else 0. The result is always single-channel.
func Threshold(buf *image.PixelBuffer, value uint8) *image.PixelBuffer {
	gray := Grayscale(buf)
	for i, v := range gray.Pix {
		if v > value {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}
	return gray
}

// AdjustBrightnessContrast maps every sample v to v*contrast+brightness,
// clamped to [0,255].
func AdjustBrightnessContrast(buf *image.PixelBuffer, brightness int, contrast float64) *image.PixelBuffer {
	if !buf.Valid() {
		return empty()
	}
	out := buf.Clone()
	var lut [256]uint8
	for v := range lut {
		lut[v] = clampByte(float64(v)*contrast + float64(brightness))
	}
	for i, v := range out.Pix {
		out.Pix[i] = lut[v]
	}
	return out
}

// Histogram counts the values of one channel. An out-of-range channel
// yields an all-zero histogram.
func Histogram(buf *image.PixelBuffer, channel int) [256]uint32 {
	var hist [256]uint32
	if !buf.Valid() || channel < 0 || channel >= buf.Channels {
		return hist
	}
	for i := channel; i < len(buf.Pix); i += buf.Channels {
		hist[buf.Pix[i]]++
	}
	return hist
}

// MeanIntensity is the average luminance of buf, 0 for an empty buffer.
func MeanIntensity(buf *image.PixelBuffer) float64 {
	gray := Grayscale(buf)
	if len(gray.Pix) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range gray.Pix {
		sum += uint64(v)
	}
	return float64(sum) / float64(len(gray.Pix))
}

// Entropy is the Shannon entropy (bits) of a histogram. Flat regions score
// near 0, textured ones up to 8.
func Entropy(hist [256]uint32) float64 {
	var total float64
	for _, c := range hist {
		total += float64(c)
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, c := range hist {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		h -= p * math.Log2(p)
	}
	return h
}
