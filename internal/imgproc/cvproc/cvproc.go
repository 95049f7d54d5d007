// Package cvproc bridges PixelBuffers to OpenCV. It is kept separate from
// imgproc so that the pure-Go pipeline builds and tests without cgo.
package cvproc

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"screenpilot/internal/image"
	"screenpilot/internal/imgproc"
	"screenpilot/pkg/geometry"
)

// ErrEmpty is returned when an empty buffer or Mat is converted.
var ErrEmpty = errors.New("cvproc: empty image")

func matType(channels int) (gocv.MatType, error) {
	switch channels {
	case 1:
		return gocv.MatTypeCV8UC1, nil
	case 3:
		return gocv.MatTypeCV8UC3, nil
	case 4:
		return gocv.MatTypeCV8UC4, nil
	default:
		return 0, fmt.Errorf("unsupported channel count %d", channels)
	}
}

// ToMat copies buf into a new Mat. Samples keep their RGB(A) order; callers
// that hand the Mat to colour-aware OpenCV functions must convert to BGR
// themselves. The caller owns the Mat and must Close it.
func ToMat(buf *image.PixelBuffer) (gocv.Mat, error) {
	if buf.Empty() {
		return gocv.Mat{}, ErrEmpty
	}
	mt, err := matType(buf.Channels)
	if err != nil {
		return gocv.Mat{}, err
	}
	data := make([]byte, len(buf.Pix))
	copy(data, buf.Pix)
	return gocv.NewMatFromBytes(buf.Height, buf.Width, mt, data)
}

// ToGrayMat converts buf to a single-channel Mat.
func ToGrayMat(buf *image.PixelBuffer) (gocv.Mat, error) {
	return ToMat(imgproc.Grayscale(buf))
}

// FromMat copies an 8-bit Mat with 1, 3 or 4 channels into a PixelBuffer.
func FromMat(m gocv.Mat) (*image.PixelBuffer, error) {
	if m.Empty() {
		return nil, ErrEmpty
	}
	data := m.ToBytes()
	return image.FromData(m.Cols(), m.Rows(), m.Channels(), data)
}

// MatchTemplate runs OpenCV's normalized correlation-coefficient matcher,
// which computes the same mean-subtracted NCC as imgproc.MatchTemplate, and
// returns every offset scoring above threshold in row-major order.
func MatchTemplate(img, tmpl *image.PixelBuffer, threshold float64) ([]imgproc.Match, error) {
	if img.Empty() || tmpl.Empty() || tmpl.Width > img.Width || tmpl.Height > img.Height {
		return nil, nil
	}

	src, err := ToGrayMat(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer src.Close()

	tm, err := ToGrayMat(tmpl)
	if err != nil {
		return nil, fmt.Errorf("failed to convert template: %w", err)
	}
	defer tm.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(src, tm, &result, gocv.TmCcoeffNormed, mask)

	var matches []imgproc.Match
	for y := 0; y < result.Rows(); y++ {
		for x := 0; x < result.Cols(); x++ {
			score := float64(result.GetFloatAt(y, x))
			if score > threshold {
				matches = append(matches, imgproc.Match{
					Offset: geometry.PointInt{X: x, Y: y},
					Score:  score,
				})
			}
		}
	}
	return matches, nil
}

// EncodePNG encodes buf as PNG bytes through OpenCV.
func EncodePNG(buf *image.PixelBuffer) ([]byte, error) {
	m, err := ToMat(buf)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	if buf.Channels >= 3 {
		code := gocv.ColorRGBToBGR
		if buf.Channels == 4 {
			code = gocv.ColorRGBAToBGRA
		}
		gocv.CvtColor(m, &m, code)
	}

	nb, err := gocv.IMEncode(gocv.PNGFileExt, m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	defer nb.Close()

	out := make([]byte, nb.Len())
	copy(out, nb.GetBytes())
	return out, nil
}
