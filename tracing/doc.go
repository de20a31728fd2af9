// Package tracing wraps OpenTelemetry so that gate waits and strategy runs
// can be traced without the rest of the code importing otel directly.
package tracing
