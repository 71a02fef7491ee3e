package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records tool server metrics.
type MetricsRecorder interface {
	// RecordToolCall records one tool call with its latency and outcome.
	RecordToolCall(ctx context.Context, tool string, duration time.Duration, err error)

	// RecordEvaluations records how many points a call evaluated.
	RecordEvaluations(ctx context.Context, tool string, points int)
}

type otelMetrics struct {
	calls       metric.Int64Counter
	errors      metric.Int64Counter
	latency     metric.Float64Histogram
	evaluations metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics(otel.Meter("goderiv"))
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics(meter metric.Meter) (*otelMetrics, error) {
	calls, err := meter.Int64Counter("goderiv.tool.calls",
		metric.WithDescription("Number of tool calls"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter("goderiv.tool.errors",
		metric.WithDescription("Number of failed tool calls"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("goderiv.tool.latency_ms",
		metric.WithDescription("Tool call latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	evaluations, err := meter.Int64Counter("goderiv.eval.points",
		metric.WithDescription("Number of points evaluated"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		calls:       calls,
		errors:      errs,
		latency:     latency,
		evaluations: evaluations,
	}, nil
}

// NewMetricsRecorder returns an OpenTelemetry recorder on the global meter
// provider, or NoopMetrics if the instruments cannot be created.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// NewMetricsRecorderFor returns a recorder bound to mp instead of the global
// meter provider.
func NewMetricsRecorderFor(mp metric.MeterProvider) MetricsRecorder {
	m, err := newOtelMetrics(mp.Meter("goderiv"))
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordToolCall(ctx context.Context, tool string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.calls.Add(ctx, 1, attrs)
	m.latency.Record(ctx, Millis(duration), attrs)
	if err != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordEvaluations(ctx context.Context, tool string, points int) {
	if points <= 0 {
		return
	}
	m.evaluations.Add(ctx, int64(points), metric.WithAttributes(attribute.String("tool", tool)))
}
