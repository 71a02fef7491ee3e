package observability

import (
	"context"
	"errors"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Providers holds the SDK providers behind the metrics and tracing switches.
// A nil field means that signal is off.
type Providers struct {
	Meter  *sdkmetric.MeterProvider
	Tracer *sdktrace.TracerProvider
}

// NewProviders builds SDK providers that export to w for each enabled signal.
func NewProviders(w io.Writer, metrics, tracing bool) (*Providers, error) {
	p := &Providers{}
	if metrics {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, err
		}
		p.Meter = sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}
	if tracing {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, errors.Join(err, p.Shutdown(context.Background()))
		}
		p.Tracer = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	}
	return p, nil
}

// Install registers the enabled providers globally.
func (p *Providers) Install() {
	if p.Meter != nil {
		otel.SetMeterProvider(p.Meter)
	}
	if p.Tracer != nil {
		otel.SetTracerProvider(p.Tracer)
	}
}

// Recorder returns a MetricsRecorder on p.Meter, or NoopMetrics when metrics
// are off.
func (p *Providers) Recorder() MetricsRecorder {
	if p == nil || p.Meter == nil {
		return NoopMetrics{}
	}
	return NewMetricsRecorderFor(p.Meter)
}

// Spans returns a SpanManager on p.Tracer, or NoopSpanManager when tracing
// is off.
func (p *Providers) Spans() SpanManager {
	if p == nil || p.Tracer == nil {
		return NoopSpanManager{}
	}
	return NewSpanManagerFor(p.Tracer)
}

// Shutdown flushes pending telemetry and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.Tracer != nil {
		errs = append(errs, p.Tracer.Shutdown(ctx))
	}
	if p.Meter != nil {
		errs = append(errs, p.Meter.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
