package colorutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLuminanceTruncates(t *testing.T) {
	assert.Equal(t, uint8(0), Luminance(0, 0, 0))
	// 0.299*100 + 0.587*150 + 0.114*200 = 140.75
	assert.Equal(t, uint8(140), Luminance(100, 150, 200))
}

func TestRGBToHSV(t *testing.T) {
	h, s, v := RGBToHSV(255, 0, 0)
	assert.InDelta(t, 0, h, 1e-9)
	assert.InDelta(t, 255, s, 1e-9)
	assert.InDelta(t, 255, v, 1e-9)

	h, _, _ = RGBToHSV(0, 0, 255)
	assert.InDelta(t, 120, h, 1e-9)

	_, s, _ = RGBToHSV(90, 90, 90)
	assert.Zero(t, s)
}

func TestToneOf(t *testing.T) {
	assert.Equal(t, ToneLight, ToneOf(230))
	assert.Equal(t, ToneMedium, ToneOf(128))
	assert.Equal(t, ToneDark, ToneOf(10))
}
