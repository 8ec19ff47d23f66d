// Package observe provides application-wide observability primitives for
// cueline: OpenTelemetry metrics, tracing helpers, and the provider setup
// that bridges metrics to a Prometheus /metrics endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all cueline metrics.
const meterName = "github.com/cueline/cueline"

// Metrics holds all OpenTelemetry metric instruments for the engine.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Alignment pipeline ---

	// Hypotheses counts recognition hypotheses processed. Use with
	// attribute.String("outcome", ...): "matched", "no_match", "too_short".
	Hypotheses metric.Int64Counter

	// StableTokens tracks the stable-prefix length extracted per hypothesis.
	StableTokens metric.Int64Histogram

	// LocateDuration tracks fuzzy phrase location latency.
	LocateDuration metric.Float64Histogram

	// Jumps counts arbiter decisions. Use with
	// attribute.String("kind", ...): "small", "large_committed",
	// "large_deferred", "backward_ignored".
	Jumps metric.Int64Counter

	// Resyncs counts explicit cursor resynchronisations (manual scroll,
	// mode change, new script).
	Resyncs metric.Int64Counter

	// --- Scroll loop ---

	// TickDuration tracks the cost of one control-loop tick.
	TickDuration metric.Float64Histogram

	// --- Sessions ---

	// ActiveSessions tracks the number of live tracking sessions.
	ActiveSessions metric.Int64UpDownCounter

	// FramesDropped counts outbound frames dropped because the display
	// client was not keeping up.
	FramesDropped metric.Int64Counter

	// --- HTTP ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attribute.String("method", ...), attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) tuned for
// per-hypothesis and per-tick work, which must stay well under one display
// frame.
var latencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Hypotheses, err = m.Int64Counter("cueline.align.hypotheses",
		metric.WithDescription("Recognition hypotheses processed, by outcome."),
	); err != nil {
		return nil, err
	}
	if met.StableTokens, err = m.Int64Histogram("cueline.align.stable_tokens",
		metric.WithDescription("Stable-prefix length extracted per hypothesis."),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, err
	}
	if met.LocateDuration, err = m.Float64Histogram("cueline.align.locate.duration",
		metric.WithDescription("Latency of fuzzy phrase location."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Jumps, err = m.Int64Counter("cueline.align.jumps",
		metric.WithDescription("Cursor arbiter decisions, by kind."),
	); err != nil {
		return nil, err
	}
	if met.Resyncs, err = m.Int64Counter("cueline.align.resyncs",
		metric.WithDescription("Explicit cursor resynchronisations."),
	); err != nil {
		return nil, err
	}
	if met.TickDuration, err = m.Float64Histogram("cueline.scroll.tick.duration",
		metric.WithDescription("Cost of one scroll control-loop tick."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("cueline.active_sessions",
		metric.WithDescription("Number of live tracking sessions."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("cueline.frames.dropped",
		metric.WithDescription("Outbound frames dropped due to a slow display client."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("cueline.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordHypothesis records one processed hypothesis with its outcome.
func (m *Metrics) RecordHypothesis(ctx context.Context, outcome string) {
	m.Hypotheses.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordJump records one arbiter decision with its kind.
func (m *Metrics) RecordJump(ctx context.Context, kind string) {
	m.Jumps.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}
