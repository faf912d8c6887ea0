package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = TracerName

// Instruments holds pre-created OTel metric instruments and implements
// port.Instrumentation.
type Instruments struct {
	QueryCount      metric.Int64Counter
	QueryDuration   metric.Float64Histogram
	QueryErrors     metric.Int64Counter
	QueryRejections metric.Int64Counter
	ToolDuration    metric.Float64Histogram
	BuildDuration   metric.Float64Histogram
}

// NewInstruments creates metric instruments from the global MeterProvider.
func NewInstruments() *Instruments {
	return newInstrumentsFromMeter(otel.Meter(meterName))
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return newInstrumentsFromMeter(noop.NewMeterProvider().Meter(meterName))
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// The SDK hands back noop instruments alongside any error.
	queryCount, _ := meter.Int64Counter("duckalog.query.count",
		metric.WithDescription("Queries that passed the gate and executed"),
	)
	queryDuration, _ := meter.Float64Histogram("duckalog.query.duration",
		metric.WithDescription("Query execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	queryErrors, _ := meter.Int64Counter("duckalog.query.errors",
		metric.WithDescription("Queries that failed inside DuckDB"),
	)
	queryRejections, _ := meter.Int64Counter("duckalog.query.rejections",
		metric.WithDescription("Queries refused by the read-only gate"),
	)
	toolDuration, _ := meter.Float64Histogram("duckalog.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	buildDuration, _ := meter.Float64Histogram("duckalog.build.duration",
		metric.WithDescription("Catalog build duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		QueryCount:      queryCount,
		QueryDuration:   queryDuration,
		QueryErrors:     queryErrors,
		QueryRejections: queryRejections,
		ToolDuration:    toolDuration,
		BuildDuration:   buildDuration,
	}
}

func (i *Instruments) RecordQueryDuration(ctx context.Context, ms float64) {
	i.QueryDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementQueryCount(ctx context.Context) {
	i.QueryCount.Add(ctx, 1)
}

func (i *Instruments) IncrementQueryErrors(ctx context.Context) {
	i.QueryErrors.Add(ctx, 1)
}

func (i *Instruments) IncrementQueryRejections(ctx context.Context, reason string) {
	i.QueryRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}

func (i *Instruments) RecordBuildDuration(ctx context.Context, ms float64) {
	i.BuildDuration.Record(ctx, ms)
}
