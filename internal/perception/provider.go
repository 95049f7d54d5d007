package perception

import (
	"context"
	"errors"
	"fmt"

	"screenpilot/internal/image"
)

// ErrCaptureUnavailable wraps every capture failure. Capture errors are
// transient from the loop's point of view: the cycle is skipped.
var ErrCaptureUnavailable = errors.New("perception: capture unavailable")

// Provider captures the current screen contents.
type Provider interface {
	Capture(ctx context.Context) (*image.PixelBuffer, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (*image.PixelBuffer, error)

func (f ProviderFunc) Capture(ctx context.Context) (*image.PixelBuffer, error) { return f(ctx) }

// FileProvider re-reads an image file on every capture. It stands in for a
// native screen grabber in headless runs: point it at a screenshot that
// another process keeps refreshing.
type FileProvider struct {
	path  string
	scale float64
}

// NewFileProvider reads path on each capture. A scale in (0,1) downsamples
// every frame; any other value keeps native resolution.
func NewFileProvider(path string, scale float64) *FileProvider {
	return &FileProvider{path: path, scale: scale}
}

func (p *FileProvider) Capture(ctx context.Context) (*image.PixelBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf, err := image.Load(p.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}
	if p.scale > 0 && p.scale < 1 {
		buf = image.Downscale(buf, p.scale)
	}
	return buf, nil
}
