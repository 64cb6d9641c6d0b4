package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProbeMeta identifies one probe run for telemetry.
type ProbeMeta struct {
	Name string // probe name, e.g. "availability" (required)
	Site string // base URL of the site under check (optional)
}

// SpanName returns the span name for this probe: probe.run.<name>.
func (m ProbeMeta) SpanName() string {
	return "probe.run." + m.Name
}

// Validate reports whether meta can be used for telemetry.
func (m ProbeMeta) Validate() error {
	if m.Name == "" {
		return ErrMissingProbeName
	}
	return nil
}

// Outcome summarizes how a probe run ended. Kind and Message are empty
// for a successful run.
type Outcome struct {
	Failed  bool
	Kind    string
	Message string
}

// Tracer starts and ends probe spans.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan is best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, meta ProbeMeta) (context.Context, trace.Span)
	EndSpan(span trace.Span, outcome Outcome)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta ProbeMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("probe.name", meta.Name)}
	if meta.Site != "" {
		attrs = append(attrs, attribute.String("site.url", meta.Site))
	}
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, outcome Outcome) {
	span.SetAttributes(attribute.Bool("probe.failed", outcome.Failed))
	if outcome.Failed {
		span.SetAttributes(attribute.String("probe.error_kind", outcome.Kind))
		span.SetStatus(codes.Error, outcome.Message)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
