package observe

import (
	"bytes"
	"context"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type harness struct {
	mw     *Middleware
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	logs   *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	var logs bytes.Buffer
	logger, _ := NewLoggerWithWriter("info", &logs)

	return &harness{
		mw:     NewMiddleware(NewTracer(tp.Tracer("test")), metrics, logger),
		spans:  spans,
		reader: reader,
		logs:   &logs,
	}
}

func (h *harness) collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

// TestMiddleware_Success verifies span, metrics and log for a passing probe.
func TestMiddleware_Success(t *testing.T) {
	h := newHarness(t)
	meta := ProbeMeta{Name: "availability", Site: "https://example.com"}

	out := h.mw.Observe(context.Background(), meta, func(context.Context) Outcome { return Outcome{} })
	if out.Failed {
		t.Fatal("outcome should pass through unchanged")
	}

	ended := h.spans.Ended()
	if len(ended) != 1 {
		t.Fatalf("got %d spans, want 1", len(ended))
	}
	if ended[0].Name() != "probe.run.availability" {
		t.Errorf("span name = %s, want probe.run.availability", ended[0].Name())
	}
	if ended[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", ended[0].Status().Code)
	}

	rm := h.collect(t)
	if m := findMetric(rm, "probe.run.total"); m == nil || sumValue(t, m) != 1 {
		t.Error("probe.run.total should be 1")
	}
	if m := findMetric(rm, "probe.run.failures"); m != nil && sumValue(t, m) != 0 {
		t.Error("probe.run.failures should be 0")
	}
	if findMetric(rm, "probe.run.duration_ms") == nil {
		t.Error("probe.run.duration_ms missing")
	}

	entries := decodeLines(t, h.logs)
	if len(entries) != 1 || entries[0]["msg"] != "probe completed" {
		t.Errorf("log entries = %v", entries)
	}
}

// TestMiddleware_Failure verifies failed outcomes mark the span and count.
func TestMiddleware_Failure(t *testing.T) {
	h := newHarness(t)
	meta := ProbeMeta{Name: "build"}

	h.mw.Observe(context.Background(), meta, func(context.Context) Outcome {
		return Outcome{Failed: true, Kind: "tool_missing", Message: "bundle not found"}
	})

	span := h.spans.Ended()[0]
	if span.Status().Code != codes.Error || span.Status().Description != "bundle not found" {
		t.Errorf("span status = %+v", span.Status())
	}

	rm := h.collect(t)
	m := findMetric(rm, "probe.run.failures")
	if m == nil || sumValue(t, m) != 1 {
		t.Fatal("probe.run.failures should be 1")
	}

	e := decodeLines(t, h.logs)[0]
	if e["level"] != "warn" || e["error_kind"] != "tool_missing" {
		t.Errorf("log entry = %v", e)
	}
}

// TestMiddleware_RecordScore verifies the score gauge.
func TestMiddleware_RecordScore(t *testing.T) {
	h := newHarness(t)
	h.mw.RecordScore(context.Background(), "https://example.com", 76)

	m := findMetric(h.collect(t), "site.health.score")
	if m == nil {
		t.Fatal("site.health.score missing")
	}
	g, ok := m.Data.(metricdata.Gauge[int64])
	if !ok || len(g.DataPoints) != 1 || g.DataPoints[0].Value != 76 {
		t.Errorf("site.health.score = %+v, want 76", m.Data)
	}
}
