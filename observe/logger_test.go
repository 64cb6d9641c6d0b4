package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse log output as JSON: %v\nOutput: %s", err, line)
		}
		out = append(out, entry)
	}
	return out
}

// TestLogger_ProbeFields verifies probe scoping adds probe and site.
func TestLogger_ProbeFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLoggerWithWriter("info", &buf)
	if err != nil {
		t.Fatalf("NewLoggerWithWriter() error = %v", err)
	}

	logger.WithProbe(ProbeMeta{Name: "seo", Site: "https://example.com"}).
		Info(context.Background(), "sitemap parsed", F("urls", 12))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e["probe"] != "seo" {
		t.Errorf("probe = %v, want seo", e["probe"])
	}
	if e["site"] != "https://example.com" {
		t.Errorf("site = %v, want https://example.com", e["site"])
	}
	if e["urls"] != float64(12) {
		t.Errorf("urls = %v, want 12", e["urls"])
	}
	if e["msg"] != "sitemap parsed" || e["level"] != "info" {
		t.Errorf("msg/level = %v/%v", e["msg"], e["level"])
	}
	if _, ok := e["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}

// TestLogger_LevelFilter verifies entries below the level are dropped.
func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "d")
	logger.Info(ctx, "i")
	logger.Warn(ctx, "w")
	logger.Error(ctx, "e", Err(errors.New("boom")))

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[1]["error"] != "boom" {
		t.Errorf("error = %v, want boom", entries[1]["error"])
	}
}

// TestLogger_Redaction verifies sensitive keys are masked.
func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := NewLoggerWithWriter("info", &buf)

	logger.With(F("token", "abc")).Info(context.Background(), "auth", F("api_key", "xyz"), F("user", "ops"))

	if strings.Contains(buf.String(), "abc") || strings.Contains(buf.String(), "xyz") {
		t.Fatalf("secret leaked into output: %s", buf.String())
	}
	e := decodeLines(t, &buf)[0]
	if e["token"] != "[REDACTED]" || e["api_key"] != "[REDACTED]" {
		t.Errorf("token/api_key = %v/%v, want [REDACTED]", e["token"], e["api_key"])
	}
	if e["user"] != "ops" {
		t.Errorf("user = %v, want ops", e["user"])
	}
}

// TestLogger_TraceCorrelation verifies span ids are attached.
func TestLogger_TraceCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := NewLoggerWithWriter("info", &buf)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.Info(ctx, "inside span")
	span.End()

	e := decodeLines(t, &buf)[0]
	if e["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("trace_id = %v, want %s", e["trace_id"], span.SpanContext().TraceID())
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLoggerWithWriter("loud", &bytes.Buffer{}); !errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("error = %v, want ErrInvalidLogLevel", err)
	}
}

func TestNopLogger(t *testing.T) {
	l := NopLogger().WithProbe(ProbeMeta{Name: "x"}).With(F("a", 1))
	l.Info(context.Background(), "ignored")
	if err := l.Sync(); err != nil {
		t.Errorf("Sync() error = %v", err)
	}
}
