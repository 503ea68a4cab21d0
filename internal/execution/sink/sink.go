// Package sink delivers execution outcomes to their destination.
package sink

import (
	"context"

	"coderun/internal/execution/result"
)

// Sink receives exactly one outcome per execution.
type Sink interface {
	Deliver(ctx context.Context, res result.ExecutionResult) error
	DeliverError(ctx context.Context, err error) error
}

// Dispatch routes a pipeline outcome to the sink.
func Dispatch(ctx context.Context, s Sink, res result.ExecutionResult, err error) error {
	if err != nil {
		return s.DeliverError(ctx, err)
	}
	return s.Deliver(ctx, res)
}
