package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Middleware wraps probe runs with a span, metric points and a log line.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware from its parts.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// NopMiddleware returns a Middleware that only logs, to logger.
func NopMiddleware(logger Logger) *Middleware {
	if logger == nil {
		logger = NopLogger()
	}
	// Instrument creation on the no-op meter cannot fail.
	metrics, _ := NewMetrics(noop.NewMeterProvider().Meter("noop"))
	return NewMiddleware(NewTracer(tracenoop.NewTracerProvider().Tracer("noop")), metrics, logger)
}

// MiddlewareFromObserver builds a Middleware on the observer's providers.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Observe runs fn inside a span for meta and records its outcome.
func (m *Middleware) Observe(ctx context.Context, meta ProbeMeta, fn func(ctx context.Context) Outcome) Outcome {
	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	outcome := fn(ctx)

	elapsed := time.Since(start)
	m.tracer.EndSpan(span, outcome)
	m.metrics.RecordProbe(ctx, meta, elapsed, outcome)

	log := m.logger.WithProbe(meta)
	fields := []Field{F("duration_ms", elapsed.Milliseconds())}
	if outcome.Failed {
		fields = append(fields, F("error_kind", outcome.Kind), F("error", outcome.Message))
		log.Warn(ctx, "probe failed", fields...)
	} else {
		log.Info(ctx, "probe completed", fields...)
	}
	return outcome
}

// RecordScore records the overall score of a finished run.
func (m *Middleware) RecordScore(ctx context.Context, site string, score int) {
	m.metrics.RecordScore(ctx, site, score)
}

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger {
	return m.logger
}
