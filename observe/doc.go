// Package observe carries the telemetry of a health run: a structured
// logger, OpenTelemetry spans for each probe, and metrics for probe
// outcomes and the resulting score.
//
// Probes call Logger directly; the orchestrator wraps each probe run in
// Middleware.Observe so every run produces one span, one set of metric
// points and one log line without the probe knowing about it.
package observe
