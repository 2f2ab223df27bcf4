// Package tracing provides OpenTelemetry tracing integration for the worker.
//
// Init installs an SDK tracer provider (optionally exporting over OTLP/HTTP)
// and the W3C trace context propagator. Spans are created around each polling
// cycle, every source fetch and the digest dispatch; Middleware adds server
// spans to the operational HTTP endpoints.
//
// Example usage:
//
//	shutdown, err := tracing.Init(ctx, tracing.Config{Enabled: true, SampleRatio: 1})
//	if err != nil { ... }
//	defer shutdown(context.Background())
//
//	ctx, span := tracing.StartSpan(ctx, "poll.cycle")
//	defer tracing.EndSpan(span, err)
package tracing
