package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records probe outcomes and scores.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	RecordProbe(ctx context.Context, meta ProbeMeta, duration time.Duration, outcome Outcome)
	RecordScore(ctx context.Context, site string, score int)
}

type metricsImpl struct {
	total    metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
	score    metric.Int64Gauge
}

// NewMetrics creates the probe instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	total, err := meter.Int64Counter(
		"probe.run.total",
		metric.WithDescription("Total number of probe runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"probe.run.failures",
		metric.WithDescription("Probe runs that ended in a failed result"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"probe.run.duration_ms",
		metric.WithDescription("Probe run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	score, err := meter.Int64Gauge(
		"site.health.score",
		metric.WithDescription("Overall health score of the last run, 0-100"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{total: total, failures: failures, duration: duration, score: score}, nil
}

func (m *metricsImpl) RecordProbe(ctx context.Context, meta ProbeMeta, duration time.Duration, outcome Outcome) {
	opt := metric.WithAttributes(attribute.String("probe.name", meta.Name))
	m.total.Add(ctx, 1, opt)
	if outcome.Failed {
		m.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("probe.name", meta.Name),
			attribute.String("probe.error_kind", outcome.Kind),
		))
	}
	m.duration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordScore(ctx context.Context, site string, score int) {
	m.score.Record(ctx, int64(score), metric.WithAttributes(attribute.String("site.url", site)))
}
