package image

import (
	stdimage "image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenpilot/pkg/geometry"
)

func TestNewPixelBufferValidation(t *testing.T) {
	_, err := NewPixelBuffer(4, 4, 2)
	assert.ErrorIs(t, err, ErrInvalidChannels)

	_, err = NewPixelBuffer(-1, 4, 1)
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	b, err := NewPixelBuffer(4, 3, 3)
	require.NoError(t, err)
	assert.Len(t, b.Pix, 36)
	assert.True(t, b.Valid())
}

func TestFromDataRejectsWrongLength(t *testing.T) {
	_, err := FromData(2, 2, 3, make([]byte, 11))
	assert.ErrorIs(t, err, ErrDataLength)

	b, err := FromData(2, 2, 1, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	v, ok := b.GrayAt(1, 1)
	assert.True(t, ok)
	assert.Equal(t, uint8(4), v)
}

func TestAtAndSet(t *testing.T) {
	b, err := NewPixelBuffer(3, 3, 3)
	require.NoError(t, err)

	b.Set(1, 2, []byte{10, 20, 30})
	px, ok := b.At(1, 2)
	require.True(t, ok)
	assert.Equal(t, []byte{10, 20, 30}, px)

	_, ok = b.At(3, 0)
	assert.False(t, ok)
	_, ok = b.At(-1, 0)
	assert.False(t, ok)

	before := append([]byte(nil), b.Pix...)
	b.Set(5, 5, []byte{1, 2, 3})
	b.Set(0, 0, []byte{1, 2})
	assert.Equal(t, before, b.Pix, "invalid writes must be no-ops")

	// At returns a copy.
	px[0] = 99
	again, _ := b.At(1, 2)
	assert.Equal(t, uint8(10), again[0])
}

func TestSetChecked(t *testing.T) {
	b, err := NewPixelBuffer(2, 2, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, b.SetChecked(2, 0, []byte{1}), ErrOutOfBounds)
	assert.ErrorIs(t, b.SetChecked(0, 0, []byte{1, 2}), ErrChannelMismatch)
	require.NoError(t, b.SetChecked(1, 0, []byte{7}))
	assert.Equal(t, []byte{0, 7, 0, 0}, b.Pix)
}

func TestCrop(t *testing.T) {
	b, err := FromData(4, 4, 1, []byte{
		0, 1, 2, 3,
		4, 5, 6, 7,
		8, 9, 10, 11,
		12, 13, 14, 15,
	})
	require.NoError(t, err)

	c := b.Crop(geometry.NewRect(1, 1, 2, 2))
	assert.Equal(t, 2, c.Width)
	assert.Equal(t, []byte{5, 6, 9, 10}, c.Pix)

	clipped := b.Crop(geometry.NewRect(3, 3, 10, 10))
	assert.Equal(t, []byte{15}, clipped.Pix)

	assert.True(t, b.Crop(geometry.NewRect(10, 10, 2, 2)).Empty())
}

func TestResizeNearest(t *testing.T) {
	b, err := FromData(2, 2, 1, []byte{1, 2, 3, 4})
	require.NoError(t, err)

	r := b.Resize(4, 4)
	require.True(t, r.Valid())
	assert.Equal(t, []byte{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}, r.Pix)

	assert.True(t, b.Resize(0, 3).Empty())
}

func TestImageRoundTrip(t *testing.T) {
	src := stdimage.NewNRGBA(stdimage.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{B: 200, A: 255})

	b := FromImage(src)
	assert.Equal(t, 4, b.Channels)
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 0, 200, 255}, b.Pix)

	rgb, err := FromData(1, 1, 3, []byte{1, 2, 3})
	require.NoError(t, err)
	out := rgb.ToImage().(*stdimage.NRGBA)
	assert.Equal(t, []byte{1, 2, 3, 255}, out.Pix)
}

func TestLoadPNG(t *testing.T) {
	gray := stdimage.NewGray(stdimage.Rect(0, 0, 3, 2))
	gray.SetGray(2, 1, color.Gray{Y: 77})

	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, gray))
	require.NoError(t, f.Close())

	b, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Channels)
	v, ok := b.GrayAt(2, 1)
	require.True(t, ok)
	assert.Equal(t, uint8(77), v)

	_, err = Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestDownscale(t *testing.T) {
	b, err := NewPixelBuffer(100, 50, 3)
	require.NoError(t, err)
	for i := range b.Pix {
		b.Pix[i] = 128
	}
	d := Downscale(b, 0.5)
	assert.Equal(t, 50, d.Width)
	assert.Equal(t, 25, d.Height)
	assert.Equal(t, 3, d.Channels)
	assert.True(t, d.Valid())

	same := Downscale(b, 1)
	assert.Equal(t, b.Width, same.Width)
}
