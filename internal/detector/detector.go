package detector

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"screenpilot/internal/image"
	"screenpilot/internal/imgproc"
	"screenpilot/internal/metrics"
	"screenpilot/pkg/geometry"
)

// Option configures a Detector.
type Option func(*Detector)

// WithLabeler installs a semantic labeler used to refine classifications.
func WithLabeler(l Labeler) Option {
	return func(d *Detector) { d.labeler = l }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *Detector) { d.logger = l.Named("detector") }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(d *Detector) { d.metrics = r }
}

// Detector runs the element detection pipeline. It is safe for concurrent
// use; parameters can be swapped with SetParams while passes are running.
type Detector struct {
	params  atomic.Pointer[Params]
	labeler Labeler
	logger  *zap.Logger
	metrics *metrics.Recorder
	cache   *frameCache
}

// New validates params and builds a Detector.
func New(params Params, opts ...Option) (*Detector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	d.params.Store(&params)
	d.cache = newFrameCache(params.CacheSize)
	return d, nil
}

// Params returns the parameters new passes will use.
func (d *Detector) Params() Params {
	return *d.params.Load()
}

// SetParams validates and installs new parameters. A pass already in
// progress finishes with the parameters it started with. Cached results
// are dropped.
func (d *Detector) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	d.params.Store(&p)
	d.cache.reset(p.CacheSize)
	d.logger.Info("Detection parameters updated",
		zap.Float64("confidence_threshold", p.ConfidenceThreshold),
		zap.Int("max_elements", p.MaxElements),
		zap.Uint8("edge_threshold", p.EdgeThreshold),
	)
	return nil
}

// Detect finds candidate elements in buf, ordered by descending confidence.
// The result is deterministic for a given buffer and parameter set. An empty
// or malformed buffer yields no elements and no error; the only error is
// context cancellation.
func (d *Detector) Detect(ctx context.Context, buf *image.PixelBuffer) ([]UIElement, error) {
	start := time.Now()
	params := *d.params.Load()
	if buf.Empty() {
		return nil, nil
	}

	key := fingerprint(buf)
	if cached, ok := d.cache.get(key, params); ok {
		d.metrics.RecordDetection(ctx, time.Since(start), len(cached), true)
		return cached, nil
	}

	elements, err := d.detect(ctx, buf, params)
	if err != nil {
		return nil, err
	}
	d.cache.put(key, params, elements)

	d.metrics.RecordDetection(ctx, time.Since(start), len(elements), false)
	d.logger.Debug("Detection pass complete",
		zap.Int("elements", len(elements)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return elements, nil
}

func (d *Detector) detect(ctx context.Context, buf *image.PixelBuffer, p Params) ([]UIElement, error) {
	gray := imgproc.Grayscale(buf)
	if p.BlurRadius > 0 {
		gray = imgproc.GaussianBlur(gray, p.BlurRadius)
	}
	edges := imgproc.Sobel(gray)
	binary := imgproc.Threshold(edges, p.EdgeThreshold)

	var candidates []UIElement
	for _, comp := range imgproc.ConnectedComponents(binary) {
		if len(comp) < p.MinElementSize || (p.MaxElementSize > 0 && len(comp) > p.MaxElementSize) {
			continue
		}
		bounds := imgproc.ComponentBounds(comp).ToFloat()
		// Very thin or very wide outlines are rules and separators, not controls.
		if ar := bounds.AspectRatio(); ar <= 0.1 || ar >= 10 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, props := measure(buf, edges, bounds)
		kind, conf := classify(f)
		el := UIElement{Bounds: bounds, Kind: kind, Confidence: conf, Properties: props}
		if d.labeler != nil {
			el = d.refine(ctx, buf, el)
		}
		if el.Confidence < p.ConfidenceThreshold {
			continue
		}
		candidates = append(candidates, el)
	}

	rank(candidates)
	kept, err := suppressOverlaps(candidates, p)
	if err != nil {
		return nil, err
	}
	if len(kept) > p.MaxElements {
		kept = kept[:p.MaxElements]
	}
	for i := range kept {
		kept[i].ID = fmt.Sprintf("el-%03d", i+1)
	}
	return kept, nil
}

// refine asks the labeler for a second opinion. Labeler failures never fail
// the pass.
func (d *Detector) refine(ctx context.Context, buf *image.PixelBuffer, el UIElement) UIElement {
	label, err := d.labeler.Label(ctx, buf.Crop(el.Bounds), el.Bounds)
	if err != nil {
		d.logger.Debug("Labeler failed; keeping heuristic classification",
			zap.Stringer("kind", el.Kind),
			zap.Error(err),
		)
		return el
	}
	if label.Text != "" {
		el.Properties[PropText] = label.Text
	}
	if label.Kind == KindUnknown {
		return el
	}
	if math.IsNaN(label.Confidence) || math.IsInf(label.Confidence, 0) {
		d.logger.Debug("Labeler returned a non-finite confidence; keeping heuristic classification",
			zap.Stringer("kind", el.Kind),
			zap.Stringer("label", label.Kind),
		)
		return el
	}
	el.Kind = label.Kind
	el.Confidence = min(1, max(0, label.Confidence))
	el.Properties[PropLabelSource] = "labeler"
	return el
}

// rank orders elements by descending confidence. Ties fall back to reading
// order (top to bottom, left to right) and then kind, so equal inputs always
// produce equal output.
func rank(elements []UIElement) {
	slices.SortStableFunc(elements, func(a, b UIElement) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Bounds.Y, b.Bounds.Y); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Bounds.X, b.Bounds.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Kind, b.Kind)
	})
}

// suppressOverlaps walks ranked elements and drops any whose overlap with an
// already kept element exceeds the threshold. The grid narrows the exact
// test to nearby elements.
func suppressOverlaps(ranked []UIElement, p Params) ([]UIElement, error) {
	grid, err := geometry.NewGrid(p.GridCellSize)
	if err != nil {
		return nil, err
	}
	kept := make([]UIElement, 0, len(ranked))
	for _, el := range ranked {
		overlapped := false
		for _, id := range grid.Query(el.Bounds) {
			if el.Bounds.OverlapRatio(kept[id].Bounds) > p.OverlapThreshold {
				overlapped = true
				break
			}
		}
		if overlapped {
			continue
		}
		grid.Insert(len(kept), el.Bounds)
		kept = append(kept, el)
	}
	return kept, nil
}
