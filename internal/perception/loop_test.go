package perception

import (
	"context"
	"errors"
	goimage "image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"screenpilot/internal/detector"
	"screenpilot/internal/image"
	"screenpilot/pkg/geometry"
)

func frameBuf(t *testing.T, fill byte) *image.PixelBuffer {
	t.Helper()
	b, err := image.NewPixelBuffer(8, 8, 1)
	require.NoError(t, err)
	for i := range b.Pix {
		b.Pix[i] = fill
	}
	return b
}

// stubDetector reports one element whose ID is the first pixel value, so
// tests can tell which frame a result came from.
type stubDetector struct {
	gate  chan struct{} // when non-nil, Detect blocks until it is closed
	calls atomic.Int32
}

func (d *stubDetector) Detect(ctx context.Context, buf *image.PixelBuffer) ([]detector.UIElement, error) {
	d.calls.Add(1)
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []detector.UIElement{{
		ID:     string(rune('a' + buf.Pix[0])),
		Bounds: geometry.NewRect(0, 0, 4, 4),
		Kind:   detector.KindButton,
	}}, nil
}

func TestNewLoopValidates(t *testing.T) {
	p := ProviderFunc(func(context.Context) (*image.PixelBuffer, error) { return nil, nil })
	_, err := NewLoop(nil, &stubDetector{}, time.Second)
	assert.Error(t, err)
	_, err = NewLoop(p, nil, time.Second)
	assert.Error(t, err)
	_, err = NewLoop(p, &stubDetector{}, 0)
	assert.Error(t, err)
}

func TestMailboxKeepsLatestFrame(t *testing.T) {
	l, err := NewLoop(ProviderFunc(nil), &stubDetector{}, time.Second)
	require.NoError(t, err)

	l.offer(frame{seq: 1, buf: frameBuf(t, 1)})
	l.offer(frame{seq: 2, buf: frameBuf(t, 2)})
	l.offer(frame{seq: 3, buf: frameBuf(t, 3)})

	f := l.take()
	require.NotNil(t, f)
	assert.Equal(t, uint64(3), f.seq)
	assert.Nil(t, l.take())
	assert.Equal(t, uint64(2), l.Stats().Replaced)
}

func TestStaleResultIsDiscarded(t *testing.T) {
	det := &stubDetector{gate: make(chan struct{})}
	l, err := NewLoop(ProviderFunc(nil), det, time.Second)
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		results []Result
	)
	l.Subscribe(func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		l.process(context.Background(), &frame{seq: 1, buf: frameBuf(t, 1)})
		close(done)
	}()
	require.Eventually(t, func() bool { return det.calls.Load() == 1 }, time.Second, time.Millisecond)

	// A newer frame arrives while the first pass is in flight.
	l.offer(frame{seq: 2, buf: frameBuf(t, 2)})
	close(det.gate)
	<-done

	assert.Equal(t, uint64(1), l.Stats().Discarded)
	mu.Lock()
	assert.Empty(t, results)
	mu.Unlock()

	next := l.take()
	require.NotNil(t, next)
	l.process(context.Background(), next)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 1)
	assert.Equal(t, uint64(2), results[0].Seq)
	assert.Equal(t, "c", results[0].Elements[0].ID)
	assert.Equal(t, uint64(1), l.Stats().Detected)
}

func TestRunDeliversResults(t *testing.T) {
	defer goleak.VerifyNone(t)

	var n atomic.Int32
	provider := ProviderFunc(func(context.Context) (*image.PixelBuffer, error) {
		return frameBuf(t, byte(n.Add(1)%20)), nil
	})
	l, err := NewLoop(provider, &stubDetector{}, 5*time.Millisecond)
	require.NoError(t, err)

	got := make(chan Result, 64)
	l.Subscribe(func(r Result) {
		select {
		case got <- r:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	var last uint64
	for i := 0; i < 3; i++ {
		select {
		case r := <-got:
			assert.Greater(t, r.Seq, last, "results arrive in capture order")
			last = r.Seq
			assert.Len(t, r.Elements, 1)
			assert.False(t, r.CapturedAt.IsZero())
		case <-time.After(2 * time.Second):
			t.Fatal("no detection result delivered")
		}
	}

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	s := l.Stats()
	assert.GreaterOrEqual(t, s.Captured, uint64(3))
	assert.GreaterOrEqual(t, s.Detected, uint64(3))
	assert.Zero(t, s.Failed)
}

func TestRunSurvivesCaptureErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	provider := ProviderFunc(func(context.Context) (*image.PixelBuffer, error) {
		if calls.Add(1)%2 == 1 {
			return nil, ErrCaptureUnavailable
		}
		return frameBuf(t, 5), nil
	})
	l, err := NewLoop(provider, &stubDetector{}, 5*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		s := l.Stats()
		return s.Failed >= 2 && s.Detected >= 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-errCh)
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "screen.png")

	img := goimage.NewGray(goimage.Rect(0, 0, 40, 20))
	img.SetGray(3, 4, color.Gray{Y: 200})
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	buf, err := NewFileProvider(path, 0).Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, buf.Width)
	assert.Equal(t, 20, buf.Height)

	half, err := NewFileProvider(path, 0.5).Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, half.Width)
	assert.Equal(t, 10, half.Height)

	_, err = NewFileProvider(filepath.Join(dir, "missing.png"), 0).Capture(context.Background())
	assert.True(t, errors.Is(err, ErrCaptureUnavailable))
}
