package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecorder(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	r, err := New(provider)
	require.NoError(t, err)

	ctx := context.Background()
	r.RecordDecision(ctx, "click", "Low", true, false)
	r.RecordDecision(ctx, "type", "Critical", false, false)
	r.RecordEmergencyStop(ctx, true)
	r.RecordDetection(ctx, 20*time.Millisecond, 7, false)
	r.RecordAction(ctx, "click", "success")
	r.RecordDiscardedFrame(ctx)
	r.RecordDiscardedFrame(ctx)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["screenpilot.safety.decisions"]))
	assert.Equal(t, int64(1), sumOf(t, got["screenpilot.safety.emergency_stops"]))
	assert.Equal(t, int64(1), sumOf(t, got["screenpilot.executor.actions"]))
	assert.Equal(t, int64(2), sumOf(t, got["screenpilot.perception.discarded"]))

	hist, ok := got["screenpilot.detector.elements"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, int64(7), hist.DataPoints[0].Sum)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordDecision(context.Background(), "click", "Safe", true, false)
		r.RecordEmergencyStop(context.Background(), false)
		r.RecordDetection(context.Background(), time.Second, 1, true)
		r.RecordAction(context.Background(), "key", "platform_error")
		r.RecordDiscardedFrame(context.Background())
	})
}
