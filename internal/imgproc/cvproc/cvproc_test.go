package cvproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenpilot/internal/image"
	"screenpilot/internal/imgproc"
	"screenpilot/pkg/geometry"
)

func TestMatRoundTrip(t *testing.T) {
	buf, err := image.FromData(2, 2, 3, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	require.NoError(t, err)

	m, err := ToMat(buf)
	require.NoError(t, err)
	defer m.Close()

	back, err := FromMat(m)
	require.NoError(t, err)
	assert.Equal(t, buf.Pix, back.Pix)

	_, err = ToMat(&image.PixelBuffer{Channels: 1})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestMatchTemplateAgreesWithExhaustive(t *testing.T) {
	pix := make([]byte, 16*12)
	for i := range pix {
		pix[i] = byte((i*i*31 + i*7) % 256)
	}
	img, err := image.FromData(16, 12, 1, pix)
	require.NoError(t, err)
	tmpl := img.Crop(geometry.NewRect(5, 4, 6, 5))

	fast, err := MatchTemplate(img, tmpl, imgproc.MatchThreshold)
	require.NoError(t, err)
	best, ok := imgproc.Best(fast)
	require.True(t, ok)
	assert.Equal(t, geometry.PointInt{X: 5, Y: 4}, best.Offset)
	assert.InDelta(t, 1.0, best.Score, 1e-4)

	exact, ok := imgproc.Best(imgproc.MatchTemplate(img, tmpl))
	require.True(t, ok)
	assert.Equal(t, exact.Offset, best.Offset)
}

func TestEncodePNG(t *testing.T) {
	buf, err := image.NewPixelBuffer(4, 4, 4)
	require.NoError(t, err)

	data, err := EncodePNG(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data[:4])
}
