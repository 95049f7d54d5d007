package detector

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenpilot/internal/image"
	"screenpilot/pkg/geometry"
)

// screen draws a dark frame with a small bright button at (40,50) 30x16 and
// a wide bright bar at (100,20) 80x30.
func screen(t *testing.T) *image.PixelBuffer {
	t.Helper()
	b, err := image.NewPixelBuffer(200, 120, 1)
	require.NoError(t, err)
	for i := range b.Pix {
		b.Pix[i] = 40
	}
	fill := func(x0, y0, w, h int) {
		for y := y0; y < y0+h; y++ {
			for x := x0; x < x0+w; x++ {
				b.Set(x, y, []byte{220})
			}
		}
	}
	fill(40, 50, 30, 16)
	fill(100, 20, 80, 30)
	return b
}

func newDetector(t *testing.T, p Params, opts ...Option) *Detector {
	t.Helper()
	d, err := New(p, opts...)
	require.NoError(t, err)
	return d
}

func TestDetectFindsButton(t *testing.T) {
	d := newDetector(t, DefaultParams())

	elements, err := d.Detect(context.Background(), screen(t))
	require.NoError(t, err)
	require.Len(t, elements, 1)

	btn := elements[0]
	assert.Equal(t, "el-001", btn.ID)
	assert.Equal(t, KindButton, btn.Kind)
	assert.InDelta(t, 0.8, btn.Confidence, 1e-9)
	assert.Equal(t, geometry.NewRect(39, 49, 32, 18), btn.Bounds)
	for _, key := range []string{PropBrightness, PropEdgeDensity, PropAspectRatio, PropArea, PropTone} {
		assert.Contains(t, btn.Properties, key)
	}
}

func TestDetectRanksByConfidence(t *testing.T) {
	d := newDetector(t, DefaultParams().WithConfidenceThreshold(0.4))

	elements, err := d.Detect(context.Background(), screen(t))
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, KindButton, elements[0].Kind)
	assert.Equal(t, KindMenu, elements[1].Kind)
	assert.Equal(t, geometry.NewRect(99, 19, 82, 32), elements[1].Bounds)

	capped := newDetector(t, DefaultParams().WithConfidenceThreshold(0.4).WithMaxElements(1))
	elements, err = capped.Detect(context.Background(), screen(t))
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, KindButton, elements[0].Kind)
}

func TestDetectIsDeterministic(t *testing.T) {
	p := DefaultParams().WithConfidenceThreshold(0.3).WithCacheSize(0)
	d := newDetector(t, p)

	first, err := d.Detect(context.Background(), screen(t))
	require.NoError(t, err)
	second, err := d.Detect(context.Background(), screen(t))
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("detection not deterministic (-first +second):\n%s", diff)
	}
}

func TestDetectCacheReturnsCopies(t *testing.T) {
	d := newDetector(t, DefaultParams())
	frame := screen(t)

	first, err := d.Detect(context.Background(), frame)
	require.NoError(t, err)
	first[0].Properties[PropTone] = "tampered"

	second, err := d.Detect(context.Background(), frame)
	require.NoError(t, err)
	assert.NotEqual(t, "tampered", second[0].Properties[PropTone])
}

func TestDetectEmptyBuffer(t *testing.T) {
	d := newDetector(t, DefaultParams())

	elements, err := d.Detect(context.Background(), &image.PixelBuffer{Channels: 1})
	assert.NoError(t, err)
	assert.Empty(t, elements)

	elements, err = d.Detect(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, elements)
}

func TestDetectHonoursCancellation(t *testing.T) {
	d := newDetector(t, DefaultParams().WithCacheSize(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Detect(ctx, screen(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLabelerRefinement(t *testing.T) {
	tests := []struct {
		name     string
		labeler  Labeler
		wantKind ElementKind
		wantConf float64
		wantText string
	}{
		{
			name: "labeler failure falls back",
			labeler: LabelerFunc(func(context.Context, *image.PixelBuffer, geometry.Rect) (Label, error) {
				return Label{}, ErrLabelerUnavailable
			}),
			wantKind: KindButton,
			wantConf: 0.8,
		},
		{
			name: "no opinion keeps heuristic",
			labeler: LabelerFunc(func(context.Context, *image.PixelBuffer, geometry.Rect) (Label, error) {
				return Label{Kind: KindUnknown}, nil
			}),
			wantKind: KindButton,
			wantConf: 0.8,
		},
		{
			name: "labeler verdict wins",
			labeler: LabelerFunc(func(_ context.Context, region *image.PixelBuffer, _ geometry.Rect) (Label, error) {
				if region.Empty() {
					return Label{}, errors.New("empty region")
				}
				return Label{Kind: KindLabel, Confidence: 0.9, Text: "OK"}, nil
			}),
			wantKind: KindLabel,
			wantConf: 0.9,
			wantText: "OK",
		},
		{
			name: "non-finite confidence is ignored",
			labeler: LabelerFunc(func(context.Context, *image.PixelBuffer, geometry.Rect) (Label, error) {
				return Label{Kind: KindLabel, Confidence: math.NaN()}, nil
			}),
			wantKind: KindButton,
			wantConf: 0.8,
		},
		{
			name: "infinite confidence is ignored",
			labeler: LabelerFunc(func(context.Context, *image.PixelBuffer, geometry.Rect) (Label, error) {
				return Label{Kind: KindLabel, Confidence: math.Inf(1)}, nil
			}),
			wantKind: KindButton,
			wantConf: 0.8,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDetector(t, DefaultParams(), WithLabeler(tt.labeler))
			elements, err := d.Detect(context.Background(), screen(t))
			require.NoError(t, err)
			require.NotEmpty(t, elements)

			for _, e := range elements {
				assert.GreaterOrEqual(t, e.Confidence, 0.0)
				assert.LessOrEqual(t, e.Confidence, 1.0)
			}
			el := elements[0]
			assert.Equal(t, tt.wantKind, el.Kind)
			assert.InDelta(t, tt.wantConf, el.Confidence, 1e-9)
			assert.Equal(t, tt.wantText, el.Properties[PropText])
		})
	}
}

func TestSetParams(t *testing.T) {
	d := newDetector(t, DefaultParams())

	err := d.SetParams(DefaultParams().WithConfidenceThreshold(1.5))
	assert.ErrorIs(t, err, ErrInvalidParams)
	assert.InDelta(t, 0.6, d.Params().ConfidenceThreshold, 1e-9)

	require.NoError(t, d.SetParams(DefaultParams().WithConfidenceThreshold(0.4)))
	elements, err := d.Detect(context.Background(), screen(t))
	require.NoError(t, err)
	assert.Len(t, elements, 2)
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"negative confidence", DefaultParams().WithConfidenceThreshold(-0.1)},
		{"zero max elements", DefaultParams().WithMaxElements(0)},
		{"inverted size range", DefaultParams().WithSizeRange(100, 10)},
		{"negative blur", DefaultParams().WithBlurRadius(-1)},
		{"negative cache", DefaultParams().WithCacheSize(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.p.Validate(), ErrInvalidParams)
			_, err := New(tt.p)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
	assert.NoError(t, DefaultParams().Validate())
}

func TestClassifyRules(t *testing.T) {
	tests := []struct {
		name string
		f    features
		kind ElementKind
		conf float64
	}{
		{"button", features{area: 3000, aspect: 2, edgeDensity: 0.35, brightness: 120}, KindButton, 0.8},
		{"text box", features{area: 60000, aspect: 6, edgeDensity: 0.25, brightness: 230}, KindTextBox, 0.7},
		{"window", features{area: 200000, aspect: 1.5, edgeDensity: 0.2, brightness: 120}, KindWindow, 0.6},
		{"icon", features{area: 400, aspect: 1, edgeDensity: 0.5, brightness: 120}, KindIcon, 0.7},
		{"label", features{area: 400, aspect: 5, edgeDensity: 0.1, brightness: 120}, KindLabel, 0.6},
		{"menu", features{area: 60000, aspect: 2, edgeDensity: 0.1, brightness: 120}, KindMenu, 0.5},
		{"unknown", features{area: 300, aspect: 1, edgeDensity: 0.1, brightness: 120}, KindUnknown, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, conf := classify(tt.f)
			assert.Equal(t, tt.kind, kind)
			assert.InDelta(t, tt.conf, conf, 1e-9)
		})
	}
}

func TestSuppressOverlaps(t *testing.T) {
	ranked := []UIElement{
		{Bounds: geometry.NewRect(0, 0, 100, 100), Confidence: 0.9},
		{Bounds: geometry.NewRect(10, 10, 50, 50), Confidence: 0.8},   // inside the first
		{Bounds: geometry.NewRect(90, 0, 100, 100), Confidence: 0.7},  // 10% overlap
		{Bounds: geometry.NewRect(500, 500, 10, 10), Confidence: 0.6}, // far away
	}
	kept, err := suppressOverlaps(ranked, DefaultParams())
	require.NoError(t, err)
	require.Len(t, kept, 3)
	assert.InDelta(t, 0.9, kept[0].Confidence, 1e-9)
	assert.InDelta(t, 0.7, kept[1].Confidence, 1e-9)
	assert.InDelta(t, 0.6, kept[2].Confidence, 1e-9)
}

func TestRankTieBreak(t *testing.T) {
	elements := []UIElement{
		{Bounds: geometry.NewRect(50, 10, 5, 5), Confidence: 0.7, Kind: KindIcon},
		{Bounds: geometry.NewRect(10, 10, 5, 5), Confidence: 0.7, Kind: KindIcon},
		{Bounds: geometry.NewRect(0, 90, 5, 5), Confidence: 0.9, Kind: KindButton},
	}
	rank(elements)
	assert.Equal(t, 0.9, elements[0].Confidence)
	assert.InDelta(t, 10, elements[1].Bounds.X, 1e-9)
	assert.InDelta(t, 50, elements[2].Bounds.X, 1e-9)
}

func TestElementKindText(t *testing.T) {
	for k := range kindNames {
		text, err := k.MarshalText()
		require.NoError(t, err)
		var back ElementKind
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, k, back)
	}
	_, err := ParseElementKind("slider")
	assert.Error(t, err)
	assert.Equal(t, "ElementKind(42)", ElementKind(42).String())
}

func TestFilterHelpers(t *testing.T) {
	elements := []UIElement{
		{Kind: KindButton, Bounds: geometry.NewRect(0, 0, 10, 10)},
		{Kind: KindLabel, Bounds: geometry.NewRect(50, 50, 10, 10)},
	}
	assert.Len(t, FilterByKind(elements, KindButton), 1)
	assert.Empty(t, FilterByKind(elements, KindWindow))
	assert.Len(t, InRegion(elements, geometry.NewRect(45, 45, 10, 10)), 1)
}
