package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("goderiv")

// SpanManager handles tool call spans.
type SpanManager interface {
	StartToolSpan(ctx context.Context, tool, requestID string) (context.Context, trace.Span)
	EndSpanWithError(span trace.Span, err error)
}

type otelSpanManager struct {
	tracer trace.Tracer
}

// NewSpanManager returns a SpanManager on the global tracer provider.
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// NewSpanManagerFor returns a SpanManager bound to tp.
func NewSpanManagerFor(tp trace.TracerProvider) SpanManager {
	return &otelSpanManager{tracer: tp.Tracer("goderiv")}
}

func (m *otelSpanManager) StartToolSpan(ctx context.Context, tool, requestID string) (context.Context, trace.Span) {
	t := m.tracer
	if t == nil {
		t = tracer
	}
	return t.Start(ctx, "goderiv.tool."+tool,
		trace.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("request.id", requestID),
		),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
