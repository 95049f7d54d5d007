// Package image provides the PixelBuffer type that carries captured frames
// through the processing pipeline, plus loading and conversion helpers.
package image

import (
	"errors"
	"fmt"
	"math"

	"screenpilot/pkg/geometry"
)

var (
	ErrInvalidChannels   = errors.New("image: channel count must be 1, 3 or 4")
	ErrInvalidDimensions = errors.New("image: width and height must be non-negative")
	ErrDataLength        = errors.New("image: data length does not match width*height*channels")
	ErrOutOfBounds       = errors.New("image: pixel coordinate out of bounds")
	ErrChannelMismatch   = errors.New("image: sample count does not match channel count")
)

// PixelBuffer is a row-major grid of 8-bit samples. Pix holds exactly
// Width*Height*Channels bytes; pixel (x, y) starts at (y*Width+x)*Channels.
//
// Fields are exported so pipeline stages can walk Pix directly, the same way
// the standard library exposes image.RGBA.Pix. Code that builds a buffer by
// hand should go through NewPixelBuffer or FromData so the length invariant
// holds.
type PixelBuffer struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

func validChannels(ch int) bool {
	return ch == 1 || ch == 3 || ch == 4
}

// NewPixelBuffer allocates a zeroed buffer.
func NewPixelBuffer(width, height, channels int) (*PixelBuffer, error) {
	if !validChannels(channels) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChannels, channels)
	}
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return &PixelBuffer{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}, nil
}

// FromData wraps existing samples. The buffer takes ownership of data.
func FromData(width, height, channels int, data []byte) (*PixelBuffer, error) {
	if !validChannels(channels) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChannels, channels)
	}
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if want := width * height * channels; len(data) != want {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrDataLength, len(data), want)
	}
	return &PixelBuffer{Width: width, Height: height, Channels: channels, Pix: data}, nil
}

// mustNew is used internally where the arguments are already known good.
func mustNew(width, height, channels int) *PixelBuffer {
	return &PixelBuffer{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

// Valid reports whether the buffer satisfies the length invariant.
func (b *PixelBuffer) Valid() bool {
	return b != nil && validChannels(b.Channels) && b.Width >= 0 && b.Height >= 0 &&
		len(b.Pix) == b.Width*b.Height*b.Channels
}

// Empty reports whether the buffer holds no pixels (or is malformed).
func (b *PixelBuffer) Empty() bool {
	return !b.Valid() || b.Width == 0 || b.Height == 0
}

// Bounds returns the buffer extent as a rectangle at the origin.
func (b *PixelBuffer) Bounds() geometry.Rect {
	return geometry.Rect{Width: float64(b.Width), Height: float64(b.Height)}
}

// InBounds reports whether (x, y) addresses a pixel.
func (b *PixelBuffer) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < b.Width && y < b.Height
}

// Offset returns the index of the first sample of pixel (x, y). The caller
// must have checked bounds.
func (b *PixelBuffer) Offset(x, y int) int {
	return (y*b.Width + x) * b.Channels
}

// At returns a copy of the samples at (x, y). ok is false outside the
// buffer.
func (b *PixelBuffer) At(x, y int) (px []byte, ok bool) {
	if !b.InBounds(x, y) {
		return nil, false
	}
	i := b.Offset(x, y)
	px = make([]byte, b.Channels)
	copy(px, b.Pix[i:i+b.Channels])
	return px, true
}

// GrayAt returns the first sample at (x, y), which is the intensity for a
// single-channel buffer.
func (b *PixelBuffer) GrayAt(x, y int) (uint8, bool) {
	if !b.InBounds(x, y) {
		return 0, false
	}
	return b.Pix[b.Offset(x, y)], true
}

// Set writes px at (x, y). It silently does nothing when (x, y) is outside
// the buffer or len(px) differs from Channels; use SetChecked where a failed
// write must be noticed.
func (b *PixelBuffer) Set(x, y int, px []byte) {
	if !b.InBounds(x, y) || len(px) != b.Channels {
		return
	}
	copy(b.Pix[b.Offset(x, y):], px)
}

// SetChecked is Set with explicit failure reporting.
func (b *PixelBuffer) SetChecked(x, y int, px []byte) error {
	if !b.InBounds(x, y) {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfBounds, x, y, b.Width, b.Height)
	}
	if len(px) != b.Channels {
		return fmt.Errorf("%w: got %d, want %d", ErrChannelMismatch, len(px), b.Channels)
	}
	copy(b.Pix[b.Offset(x, y):], px)
	return nil
}

// Clone returns a deep copy.
func (b *PixelBuffer) Clone() *PixelBuffer {
	out := &PixelBuffer{Width: b.Width, Height: b.Height, Channels: b.Channels, Pix: make([]byte, len(b.Pix))}
	copy(out.Pix, b.Pix)
	return out
}

// Crop copies the region r, clipped to the buffer. A region that misses the
// buffer entirely yields a 0x0 buffer.
func (b *PixelBuffer) Crop(r geometry.Rect) *PixelBuffer {
	x0 := max(0, int(math.Floor(r.X)))
	y0 := max(0, int(math.Floor(r.Y)))
	x1 := min(b.Width, int(math.Ceil(r.Right())))
	y1 := min(b.Height, int(math.Ceil(r.Bottom())))
	if x1 <= x0 || y1 <= y0 {
		return mustNew(0, 0, b.Channels)
	}

	out := mustNew(x1-x0, y1-y0, b.Channels)
	rowLen := out.Width * b.Channels
	for y := y0; y < y1; y++ {
		src := b.Offset(x0, y)
		dst := (y - y0) * rowLen
		copy(out.Pix[dst:dst+rowLen], b.Pix[src:src+rowLen])
	}
	return out
}

// Resize scales the buffer with nearest-neighbour sampling.
func (b *PixelBuffer) Resize(width, height int) *PixelBuffer {
	if width <= 0 || height <= 0 || b.Empty() {
		return mustNew(0, 0, b.Channels)
	}
	out := mustNew(width, height, b.Channels)
	xScale := float64(b.Width) / float64(width)
	yScale := float64(b.Height) / float64(height)
	for y := 0; y < height; y++ {
		sy := min(b.Height-1, int(float64(y)*yScale))
		for x := 0; x < width; x++ {
			sx := min(b.Width-1, int(float64(x)*xScale))
			src := b.Offset(sx, sy)
			copy(out.Pix[out.Offset(x, y):], b.Pix[src:src+b.Channels])
		}
	}
	return out
}
