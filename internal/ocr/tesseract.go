// Package ocr labels screen regions by the text Tesseract finds in them.
package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"screenpilot/internal/detector"
	pixbuf "screenpilot/internal/image"
	"screenpilot/internal/imgproc/cvproc"
	"screenpilot/pkg/geometry"
)

// minOCRHeight is the height small regions are upscaled to before
// recognition. Tesseract struggles below roughly 30px per glyph.
const minOCRHeight = 150

// Option configures an Engine.
type Option func(*Engine)

// WithLanguage selects the Tesseract language pack. The default is "eng".
func WithLanguage(lang string) Option {
	return func(e *Engine) { e.language = lang }
}

// WithMinConfidence sets the mean word confidence (0-1) below which the
// engine reports the text it read but offers no kind.
func WithMinConfidence(c float64) Option {
	return func(e *Engine) { e.minConfidence = c }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l.Named("ocr") }
}

// Engine provides OCR-backed labeling. A Tesseract client is not safe for
// concurrent use, so calls are serialized.
type Engine struct {
	mu            sync.Mutex
	client        *gosseract.Client
	language      string
	minConfidence float64
	logger        *zap.Logger
}

var _ detector.Labeler = (*Engine)(nil)

// NewEngine creates a new OCR engine. Failures wrap
// detector.ErrLabelerUnavailable so callers can fall back to heuristics.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		language:      "eng",
		minConfidence: 0.4,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(e.language); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: failed to set OCR language: %v", detector.ErrLabelerUnavailable, err)
	}
	// Screen text is mostly short labels; dictionary correction does more
	// harm than good.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: failed to set PSM: %v", detector.ErrLabelerUnavailable, err)
	}

	e.client = client
	return e, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

// Label reads the text in region and turns it into a classification.
func (e *Engine) Label(ctx context.Context, region *pixbuf.PixelBuffer, bounds geometry.Rect) (detector.Label, error) {
	if err := ctx.Err(); err != nil {
		return detector.Label{}, err
	}
	if region.Empty() {
		return detector.Label{}, nil
	}

	words, err := e.Words(region)
	if err != nil {
		return detector.Label{}, err
	}
	label := interpret(words, e.minConfidence)
	if label.Text != "" {
		e.logger.Debug("Region text recognized",
			zap.String("text", label.Text),
			zap.Stringer("kind", label.Kind),
			zap.Float64("x", bounds.X),
			zap.Float64("y", bounds.Y),
		)
	}
	return label, nil
}

// Word is one recognized word in region coordinates.
type Word struct {
	Text       string
	Bounds     geometry.RectInt
	Confidence float64 // 0-100, as reported by Tesseract
}

// Words runs recognition on buf and returns the words found, in the order
// Tesseract reports them. Coordinates refer to the unscaled input.
func (e *Engine) Words(buf *pixbuf.PixelBuffer) ([]Word, error) {
	src, err := toBGR(buf)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	processed, scale := preprocessForOCR(src)
	defer processed.Close()

	nb, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer nb.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil, fmt.Errorf("%w: engine closed", detector.ErrLabelerUnavailable)
	}
	if err := e.client.SetImageFromBytes(nb.GetBytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get boxes: %w", err)
	}

	var words []Word
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		words = append(words, Word{
			Text: text,
			Bounds: geometry.RectInt{
				X:      int(float64(box.Box.Min.X) / scale),
				Y:      int(float64(box.Box.Min.Y) / scale),
				Width:  int(float64(box.Box.Dx()) / scale),
				Height: int(float64(box.Box.Dy()) / scale),
			},
			Confidence: box.Confidence,
		})
	}
	return words, nil
}

// toBGR converts buf into a 3-channel BGR Mat, the layout OpenCV's colour
// functions expect.
func toBGR(buf *pixbuf.PixelBuffer) (gocv.Mat, error) {
	m, err := cvproc.ToMat(buf)
	if err != nil {
		return gocv.Mat{}, err
	}
	var code gocv.ColorConversionCode
	switch buf.Channels {
	case 1:
		code = gocv.ColorGrayToBGR
	case 3:
		code = gocv.ColorRGBToBGR
	default:
		code = gocv.ColorRGBAToBGR
	}
	out := gocv.NewMat()
	gocv.CvtColor(m, &out, code)
	m.Close()
	return out, nil
}

// preprocessForOCR prepares a BGR region for OCR and returns the scale
// factor applied to it.
func preprocessForOCR(region gocv.Mat) (gocv.Mat, float64) {
	h := region.Rows()

	scale := 1.0
	var scaled gocv.Mat
	if h < minOCRHeight {
		scale = float64(minOCRHeight) / float64(h)
		scaled = gocv.NewMat()
		gocv.Resize(region, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		scaled = region.Clone()
	}

	gray := gocv.NewMat()
	gocv.CvtColor(scaled, &gray, gocv.ColorBGRToGray)
	scaled.Close()

	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{8, 8})
	defer clahe.Close()

	enhanced := gocv.NewMat()
	clahe.Apply(gray, &enhanced)
	gray.Close()

	binary := gocv.NewMat()
	gocv.Threshold(enhanced, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	enhanced.Close()

	// Tesseract wants dark text on a light background. Light-on-dark themes
	// threshold to mostly black, so flip those.
	whiteRatio := float64(gocv.CountNonZero(binary)) / float64(binary.Rows()*binary.Cols())
	if whiteRatio < 0.5 {
		gocv.BitwiseNot(binary, &binary)
	}

	result := gocv.NewMat()
	gocv.CvtColor(binary, &result, gocv.ColorGrayToBGR)
	binary.Close()

	return result, scale
}
