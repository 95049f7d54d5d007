// Package metrics holds the OpenTelemetry instruments shared by the
// detector, gatekeeper, executor and perception loop.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "screenpilot"

// Recorder wraps the instruments. A nil *Recorder is valid and records
// nothing, so components can take one optionally.
type Recorder struct {
	decisions      metric.Int64Counter
	emergencyStops metric.Int64Counter
	detectDuration metric.Float64Histogram
	detectElements metric.Int64Histogram
	actions        metric.Int64Counter
	framesDropped  metric.Int64Counter
}

// New creates a Recorder on the given provider, or the global provider when
// mp is nil.
func New(mp metric.MeterProvider) (*Recorder, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	var (
		r   Recorder
		err error
	)
	r.decisions, err = meter.Int64Counter("screenpilot.safety.decisions",
		metric.WithDescription("Action validation decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}
	r.emergencyStops, err = meter.Int64Counter("screenpilot.safety.emergency_stops",
		metric.WithDescription("Emergency stop transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}
	r.detectDuration, err = meter.Float64Histogram("screenpilot.detector.duration",
		metric.WithDescription("Detection pass duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5),
	)
	if err != nil {
		return nil, err
	}
	r.detectElements, err = meter.Int64Histogram("screenpilot.detector.elements",
		metric.WithDescription("Elements returned per detection pass"),
		metric.WithUnit("{element}"),
	)
	if err != nil {
		return nil, err
	}
	r.actions, err = meter.Int64Counter("screenpilot.executor.actions",
		metric.WithDescription("Actions handed to the platform executor"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, err
	}
	r.framesDropped, err = meter.Int64Counter("screenpilot.perception.discarded",
		metric.WithDescription("Detection results discarded in favour of a newer frame"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RecordDecision counts one gatekeeper decision.
func (r *Recorder) RecordDecision(ctx context.Context, kind, risk string, allowed, rateLimited bool) {
	if r == nil {
		return
	}
	r.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action.kind", kind),
		attribute.String("risk", risk),
		attribute.Bool("allowed", allowed),
		attribute.Bool("rate_limited", rateLimited),
	))
}

// RecordEmergencyStop counts a stop (active=true) or clear transition.
func (r *Recorder) RecordEmergencyStop(ctx context.Context, active bool) {
	if r == nil {
		return
	}
	r.emergencyStops.Add(ctx, 1, metric.WithAttributes(attribute.Bool("active", active)))
}

// RecordDetection records a finished detection pass.
func (r *Recorder) RecordDetection(ctx context.Context, d time.Duration, elements int, cached bool) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("cached", cached))
	r.detectDuration.Record(ctx, d.Seconds(), attrs)
	r.detectElements.Record(ctx, int64(elements), attrs)
}

// RecordAction counts one executed action and its outcome.
func (r *Recorder) RecordAction(ctx context.Context, kind, outcome string) {
	if r == nil {
		return
	}
	r.actions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action.kind", kind),
		attribute.String("outcome", outcome),
	))
}

// RecordDiscardedFrame counts a detection result thrown away as stale.
func (r *Recorder) RecordDiscardedFrame(ctx context.Context) {
	if r == nil {
		return
	}
	r.framesDropped.Add(ctx, 1)
}
