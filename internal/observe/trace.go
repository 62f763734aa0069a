package observe

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/dyike/cortexanalyst/models"
)

const serviceName = "cortexanalyst"

// TraceSink turns stage events into OpenTelemetry spans carrying the
// recorded start and end times.
type TraceSink struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewStdoutTraceSink exports pretty-printed spans to w.
func NewStdoutTraceSink(w io.Writer, version string) (*TraceSink, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}
	return NewTraceSink(sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)), nil
}

func NewTraceSink(provider *sdktrace.TracerProvider) *TraceSink {
	return &TraceSink{provider: provider, tracer: provider.Tracer(serviceName)}
}

func (t *TraceSink) StageEvent(ev models.StageEvent) {
	_, span := t.tracer.Start(context.Background(), ev.Stage,
		trace.WithTimestamp(ev.Start),
		trace.WithAttributes(
			attribute.String("session", ev.Session),
			attribute.String("kind", string(ev.Kind)),
			attribute.Int64("duration_ms", ev.Duration().Milliseconds()),
		))
	if ev.Success {
		span.SetStatus(codes.Ok, string(ev.Kind))
	} else {
		span.SetStatus(codes.Error, ev.Error)
	}
	span.End(trace.WithTimestamp(ev.End))
}

func (t *TraceSink) SessionSummary(sum models.SessionSummary) {
	_, span := t.tracer.Start(context.Background(), "session",
		trace.WithTimestamp(sum.StartedAt),
		trace.WithAttributes(
			attribute.String("session", sum.Session),
			attribute.String("instrument", sum.Instrument),
			attribute.String("route", string(sum.Route)),
			attribute.String("status", sum.Status),
			attribute.Int("iterations", sum.Iterations),
			attribute.Float64("quality_score", sum.QualityScore),
			attribute.Bool("validated", sum.Validated),
			attribute.Bool("degraded", sum.Degraded),
		))
	span.End(trace.WithTimestamp(sum.StartedAt.Add(sum.Duration)))
}

// Shutdown flushes buffered spans.
func (t *TraceSink) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
