// Package perception drives the capture and detection cadence. Capturing
// happens on its own ticker; detection runs on a single worker that always
// processes the newest frame.
package perception

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"screenpilot/internal/detector"
	"screenpilot/internal/image"
	"screenpilot/internal/metrics"
)

// Detector is the part of *detector.Detector the loop uses.
type Detector interface {
	Detect(ctx context.Context, buf *image.PixelBuffer) ([]detector.UIElement, error)
}

// Result is one delivered detection pass.
type Result struct {
	Seq        uint64
	CapturedAt time.Time
	Elements   []detector.UIElement
	Duration   time.Duration
}

// Stats counts what the loop has done since it was created.
type Stats struct {
	Captured  uint64 `json:"captured" yaml:"captured"`
	Failed    uint64 `json:"failed" yaml:"failed"`
	Detected  uint64 `json:"detected" yaml:"detected"`
	Discarded uint64 `json:"discarded" yaml:"discarded"`
	Replaced  uint64 `json:"replaced" yaml:"replaced"`
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(lp *Loop) { lp.logger = l.Named("perception") }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(lp *Loop) { lp.metrics = r }
}

type frame struct {
	seq        uint64
	buf        *image.PixelBuffer
	capturedAt time.Time
}

// Loop is the capture/detect cadence.
type Loop struct {
	provider Provider
	detector Detector
	interval time.Duration
	logger   *zap.Logger
	metrics  *metrics.Recorder

	seq atomic.Uint64

	// Single-slot mailbox. A newer frame replaces an unprocessed one.
	mu      sync.Mutex
	pending *frame
	wake    chan struct{}

	listenerMu sync.RWMutex
	listeners  []func(Result)

	captured, failed, detected, discarded, replaced atomic.Uint64
}

// NewLoop creates a loop capturing every interval.
func NewLoop(provider Provider, det Detector, interval time.Duration, opts ...Option) (*Loop, error) {
	if provider == nil || det == nil {
		return nil, errors.New("perception: provider and detector are required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("perception: interval must be positive, got %s", interval)
	}
	l := &Loop{
		provider: provider,
		detector: det,
		interval: interval,
		logger:   zap.NewNop(),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Subscribe registers fn to receive every delivered result. fn runs on the
// detection worker and should return quickly.
func (l *Loop) Subscribe(fn func(Result)) {
	l.listenerMu.Lock()
	defer l.listenerMu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Captured:  l.captured.Load(),
		Failed:    l.failed.Load(),
		Detected:  l.detected.Load(),
		Discarded: l.discarded.Load(),
		Replaced:  l.replaced.Load(),
	}
}

// Run captures and detects until ctx is cancelled. It returns nil on
// cancellation; capture and detection failures are logged, not returned.
func (l *Loop) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.captureLoop(gctx) })
	g.Go(func() error { return l.detectLoop(gctx) })
	return g.Wait()
}

func (l *Loop) captureLoop(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.captureOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.captureOnce(ctx)
		}
	}
}

func (l *Loop) captureOnce(ctx context.Context) {
	buf, err := l.provider.Capture(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.failed.Add(1)
		l.logger.Warn("Capture failed; skipping cycle", zap.Error(err))
		return
	}
	l.captured.Add(1)
	l.offer(frame{seq: l.seq.Add(1), buf: buf, capturedAt: time.Now()})
}

// offer places f in the mailbox and wakes the worker.
func (l *Loop) offer(f frame) {
	l.mu.Lock()
	if l.pending != nil {
		l.replaced.Add(1)
	}
	l.pending = &f
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) take() *frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	f := l.pending
	l.pending = nil
	return f
}

// newerPending reports whether a frame captured after seq is waiting.
func (l *Loop) newerPending(seq uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending != nil && l.pending.seq > seq
}

func (l *Loop) detectLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
		}
		if f := l.take(); f != nil {
			l.process(ctx, f)
		}
	}
}

func (l *Loop) process(ctx context.Context, f *frame) {
	start := time.Now()
	elements, err := l.detector.Detect(ctx, f.buf)
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Warn("Detection failed", zap.Uint64("seq", f.seq), zap.Error(err))
		}
		return
	}
	if l.newerPending(f.seq) {
		l.discarded.Add(1)
		l.metrics.RecordDiscardedFrame(ctx)
		l.logger.Debug("Discarding stale detection result", zap.Uint64("seq", f.seq))
		return
	}

	l.detected.Add(1)
	res := Result{
		Seq:        f.seq,
		CapturedAt: f.capturedAt,
		Elements:   elements,
		Duration:   time.Since(start),
	}
	l.listenerMu.RLock()
	listeners := slices.Clone(l.listeners)
	l.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(res)
	}
}
