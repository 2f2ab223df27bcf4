// Package observability groups the worker's logging, metrics and tracing support.
//
// Subpackages:
//   - logging: structured logging with slog and cycle ID propagation
//   - metrics: Prometheus collectors for feeds, the dedup tracker and cycles
//   - tracing: OpenTelemetry tracer provider setup and span helpers
//   - slo: rolling cycle success ratio and latency percentiles
package observability
