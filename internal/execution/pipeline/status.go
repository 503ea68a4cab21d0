package pipeline

import (
	"context"

	"coderun/internal/execution/result"
)

// StatusUpdate carries one state transition of an execution.
type StatusUpdate struct {
	RunID    string
	Language string
	State    result.State
	// Err is set when State is Failed.
	Err error
}

// StatusReporter receives state transitions. Errors are logged and never abort the run.
type StatusReporter interface {
	ReportStatus(ctx context.Context, update StatusUpdate) error
}

// StatusReporterFunc adapts a function to StatusReporter.
type StatusReporterFunc func(ctx context.Context, update StatusUpdate) error

func (f StatusReporterFunc) ReportStatus(ctx context.Context, update StatusUpdate) error {
	return f(ctx, update)
}
