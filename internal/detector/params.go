package detector

import (
	"errors"
	"fmt"
)

// ErrInvalidParams wraps every parameter validation failure.
var ErrInvalidParams = errors.New("detector: invalid parameters")

// Params controls a detection pass.
type Params struct {
	// Elements scoring below this are dropped. Must be within [0,1].
	ConfidenceThreshold float64
	// Upper bound on the number of elements returned.
	MaxElements int
	// Sobel magnitude above which a pixel counts as an edge.
	EdgeThreshold uint8
	// Components with fewer edge pixels than this are noise.
	MinElementSize int
	// Components with more edge pixels than this are ignored; 0 disables.
	MaxElementSize int
	// Gaussian pre-blur radius; 0 skips the blur.
	BlurRadius int
	// An element is suppressed when its overlap ratio with a kept,
	// higher-ranked element exceeds this. Must be within [0,1].
	OverlapThreshold float64
	// Cell size of the broad-phase grid used for overlap suppression.
	GridCellSize float64
	// Number of recent frames whose results are remembered; 0 disables.
	CacheSize int
}

// DefaultParams returns parameters tuned for desktop screenshots at native
// resolution.
func DefaultParams() Params {
	return Params{
		ConfidenceThreshold: 0.6,
		MaxElements:         50,
		EdgeThreshold:       30,
		MinElementSize:      20,
		MaxElementSize:      20000,
		BlurRadius:          1,
		OverlapThreshold:    0.5,
		GridCellSize:        64,
		CacheSize:           8,
	}
}

// WithConfidenceThreshold returns a copy with a different confidence cut.
func (p Params) WithConfidenceThreshold(threshold float64) Params {
	p.ConfidenceThreshold = threshold
	return p
}

// WithMaxElements returns a copy with a different result cap.
func (p Params) WithMaxElements(n int) Params {
	p.MaxElements = n
	return p
}

// WithEdgeThreshold returns a copy with a different edge cut.
func (p Params) WithEdgeThreshold(level uint8) Params {
	p.EdgeThreshold = level
	return p
}

// WithSizeRange returns a copy with different component size bounds.
func (p Params) WithSizeRange(minPixels, maxPixels int) Params {
	p.MinElementSize = minPixels
	p.MaxElementSize = maxPixels
	return p
}

// WithBlurRadius returns a copy with a different pre-blur radius.
func (p Params) WithBlurRadius(radius int) Params {
	p.BlurRadius = radius
	return p
}

// WithCacheSize returns a copy with a different frame cache size.
func (p Params) WithCacheSize(n int) Params {
	p.CacheSize = n
	return p
}

// Validate reports the first invalid field.
func (p Params) Validate() error {
	switch {
	case p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1:
		return fmt.Errorf("%w: confidence threshold %v outside [0,1]", ErrInvalidParams, p.ConfidenceThreshold)
	case p.MaxElements <= 0:
		return fmt.Errorf("%w: max elements must be positive, got %d", ErrInvalidParams, p.MaxElements)
	case p.MinElementSize < 0:
		return fmt.Errorf("%w: min element size must not be negative, got %d", ErrInvalidParams, p.MinElementSize)
	case p.MaxElementSize != 0 && p.MaxElementSize < p.MinElementSize:
		return fmt.Errorf("%w: max element size %d below min %d", ErrInvalidParams, p.MaxElementSize, p.MinElementSize)
	case p.BlurRadius < 0:
		return fmt.Errorf("%w: blur radius must not be negative, got %d", ErrInvalidParams, p.BlurRadius)
	case p.OverlapThreshold < 0 || p.OverlapThreshold > 1:
		return fmt.Errorf("%w: overlap threshold %v outside [0,1]", ErrInvalidParams, p.OverlapThreshold)
	case p.GridCellSize <= 0:
		return fmt.Errorf("%w: grid cell size must be positive, got %v", ErrInvalidParams, p.GridCellSize)
	case p.CacheSize < 0:
		return fmt.Errorf("%w: cache size must not be negative, got %d", ErrInvalidParams, p.CacheSize)
	}
	return nil
}
