package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/guillermoBallester/cleansweep"

// Instruments holds pre-created OTel metric instruments.
type Instruments struct {
	StatementRows     metric.Int64Counter
	StatementDuration metric.Float64Histogram
	Reconnects        metric.Int64Counter
	HealthPauses      metric.Int64Counter
	ToolDuration      metric.Float64Histogram
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return newInstrumentsFromMeter(noop.NewMeterProvider().Meter(meterName))
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	statementRows, _ := meter.Int64Counter("cleansweep.statement.rows",
		metric.WithDescription("Rows read, deleted or copied by purge statements"),
	)
	statementDuration, _ := meter.Float64Histogram("cleansweep.statement.duration",
		metric.WithDescription("Purge statement execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	reconnects, _ := meter.Int64Counter("cleansweep.reconnects",
		metric.WithDescription("Reconnects after a lost database connection"),
	)
	healthPauses, _ := meter.Int64Counter("cleansweep.health.pauses",
		metric.WithDescription("Pauses caused by replication lag or history list length"),
	)
	toolDuration, _ := meter.Float64Histogram("cleansweep.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		StatementRows:     statementRows,
		StatementDuration: statementDuration,
		Reconnects:        reconnects,
		HealthPauses:      healthPauses,
		ToolDuration:      toolDuration,
	}
}

func (i *Instruments) RecordStatement(ctx context.Context, operation string, rows int64, ms float64) {
	opt := metric.WithAttributes(attribute.String("db.operation.name", operation))
	i.StatementRows.Add(ctx, rows, opt)
	i.StatementDuration.Record(ctx, ms, opt)
}

func (i *Instruments) IncrementReconnects(ctx context.Context) {
	i.Reconnects.Add(ctx, 1)
}

func (i *Instruments) IncrementPauses(ctx context.Context) {
	i.HealthPauses.Add(ctx, 1)
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}
