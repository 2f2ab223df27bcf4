// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the worker.
//
// Key features:
//   - JSON and text output formats
//   - Cycle ID propagation through context
//   - Configurable log levels
//
// Example usage:
//
//	logger := logging.NewLogger(logging.Options{Level: "debug", Format: "json"})
//	slog.SetDefault(logger)
//
//	func runCycle(ctx context.Context, cycleID string) {
//	    logger := logging.WithCycleID(slog.Default(), cycleID)
//	    ctx = logging.WithLogger(ctx, logger)
//	    logging.FromContext(ctx).Info("cycle started")
//	}
package logging
