// Package observer defines metrics hooks for code execution.
package observer

import "context"

// MetricsRecorder records execution metrics.
type MetricsRecorder interface {
	ObserveCompile(ctx context.Context, languageID string, ok bool, timeMs float64)
	ObserveRun(ctx context.Context, languageID string, exitCode int, timeMs float64, memoryKB float64)
	ObserveFailure(ctx context.Context, languageID string, reason string)
}

// NoopMetricsRecorder is a default recorder that does nothing.
type NoopMetricsRecorder struct{}

func (NoopMetricsRecorder) ObserveCompile(ctx context.Context, languageID string, ok bool, timeMs float64) {
}

func (NoopMetricsRecorder) ObserveRun(ctx context.Context, languageID string, exitCode int, timeMs float64, memoryKB float64) {
}

func (NoopMetricsRecorder) ObserveFailure(ctx context.Context, languageID string, reason string) {
}
