package image

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Load decodes an image file into a PixelBuffer. PNG, JPEG, GIF, BMP, TIFF
// and WebP are supported.
func Load(path string) (*PixelBuffer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return FromImage(img), nil
}

// FromImage copies a decoded image into a PixelBuffer. Grayscale sources
// produce a single-channel buffer; everything else becomes 4-channel RGBA
// with straight (non-premultiplied) alpha.
func FromImage(img image.Image) *PixelBuffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if gray, ok := img.(*image.Gray); ok {
		out := mustNew(w, h, 1)
		for y := 0; y < h; y++ {
			src := gray.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(out.Pix[y*w:(y+1)*w], gray.Pix[src:src+w])
		}
		return out
	}

	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Stride != 4*w || bounds.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
	}
	pix := make([]byte, w*h*4)
	copy(pix, nrgba.Pix)
	return &PixelBuffer{Width: w, Height: h, Channels: 4, Pix: pix}
}

// ToImage converts the buffer back into a standard library image.
func (b *PixelBuffer) ToImage() image.Image {
	rect := image.Rect(0, 0, b.Width, b.Height)
	switch b.Channels {
	case 1:
		out := image.NewGray(rect)
		copy(out.Pix, b.Pix)
		return out
	case 3:
		out := image.NewNRGBA(rect)
		for i, j := 0, 0; i+2 < len(b.Pix); i, j = i+3, j+4 {
			out.Pix[j] = b.Pix[i]
			out.Pix[j+1] = b.Pix[i+1]
			out.Pix[j+2] = b.Pix[i+2]
			out.Pix[j+3] = 0xff
		}
		return out
	default:
		out := image.NewNRGBA(rect)
		copy(out.Pix, b.Pix)
		return out
	}
}

// Downscale shrinks a frame by factor (0 < factor <= 1) using approximate
// bilinear filtering. Factors outside that range return a clone.
func Downscale(b *PixelBuffer, factor float64) *PixelBuffer {
	if factor <= 0 || factor >= 1 || b.Empty() {
		return b.Clone()
	}
	w := max(1, int(float64(b.Width)*factor))
	h := max(1, int(float64(b.Height)*factor))

	src := b.ToImage()
	var dst draw.Image
	if b.Channels == 1 {
		dst = image.NewGray(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewNRGBA(image.Rect(0, 0, w, h))
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := FromImage(dst)
	if b.Channels == 3 {
		return dropAlpha(out)
	}
	return out
}

func dropAlpha(b *PixelBuffer) *PixelBuffer {
	out := mustNew(b.Width, b.Height, 3)
	for i, j := 0, 0; j+3 < len(b.Pix); i, j = i+3, j+4 {
		out.Pix[i] = b.Pix[j]
		out.Pix[i+1] = b.Pix[j+1]
		out.Pix[i+2] = b.Pix[j+2]
	}
	return out
}
