package port

import "context"

// Instrumentation records application-level metrics.
type Instrumentation interface {
	RecordStatement(ctx context.Context, operation string, rows int64, ms float64)
	IncrementReconnects(ctx context.Context)
	IncrementPauses(ctx context.Context)
	RecordToolDuration(ctx context.Context, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) RecordStatement(context.Context, string, int64, float64) {}
func (NoopInstrumentation) IncrementReconnects(context.Context)                     {}
func (NoopInstrumentation) IncrementPauses(context.Context)                         {}
func (NoopInstrumentation) RecordToolDuration(context.Context, float64)             {}
