package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/duckalog/duckalog/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var _ port.Instrumentation = (*Instruments)(nil)

func TestNoopTracer(t *testing.T) {
	tracer := NoopTracer()
	assert.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "test")
	assert.NotNil(t, span)
	span.End()
}

func TestNoopInstruments(t *testing.T) {
	inst := NoopInstruments()
	ctx := context.Background()

	// None of these may panic.
	inst.IncrementQueryCount(ctx)
	inst.RecordQueryDuration(ctx, 100)
	inst.IncrementQueryErrors(ctx)
	inst.IncrementQueryRejections(ctx, "forbidden_keyword")
	inst.RecordToolDuration(ctx, 5)
	inst.RecordBuildDuration(ctx, 250)
}

func TestProvider_Shutdown_Nil(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestProvider_TracerNil(t *testing.T) {
	var p *Provider
	_, span := p.Tracer().Start(context.Background(), "x")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestNewSettings(t *testing.T) {
	s := newSettings(nil)
	assert.Equal(t, DefaultServiceName, s.serviceName)
	assert.Equal(t, defaultMetricInterval, s.metricInterval)

	s = newSettings([]Option{
		WithServiceName("catalog-api"),
		WithServiceName(""),
		WithMetricInterval(5 * time.Second),
		WithMetricInterval(0),
		WithAttributes(attribute.String("duckalog.catalog", "catalog.yaml")),
	})
	assert.Equal(t, "catalog-api", s.serviceName)
	assert.Equal(t, 5*time.Second, s.metricInterval)
	assert.Len(t, s.attrs, 1)
}

func TestNewResource(t *testing.T) {
	s := newSettings([]Option{
		WithServiceName("catalog-api"),
		WithAttributes(attribute.String("duckalog.catalog", "catalog.yaml")),
	})
	res, err := newResource(context.Background(), s, "1.2.3")
	require.NoError(t, err)

	set := res.Set()
	name, ok := set.Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "catalog-api", name.AsString())
	ver, ok := set.Value("service.version")
	require.True(t, ok)
	assert.Equal(t, "1.2.3", ver.AsString())
	cat, ok := set.Value("duckalog.catalog")
	require.True(t, ok)
	assert.Equal(t, "catalog.yaml", cat.AsString())
}

func TestProvider_TracerExportsWithResource(t *testing.T) {
	ctx := context.Background()
	res, err := newResource(ctx, newSettings(nil), "dev")
	require.NoError(t, err)

	exporter := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	p := &Provider{tp: newTracerProvider(exporter, res), mp: newMeterProvider(reader, res)}

	_, span := p.Tracer().Start(ctx, "CatalogService.Build")
	span.End()
	require.NoError(t, p.tp.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, TracerName, spans[0].InstrumentationScope.Name)
	name, ok := spans[0].Resource.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, DefaultServiceName, name.AsString())

	require.NoError(t, p.Shutdown(ctx))
}

func TestSpanRecording(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	tracer := tp.Tracer("test")

	ctx := context.Background()
	_, span := tracer.Start(ctx, "QueryService.Execute")
	span.SetAttributes(attribute.String("db.system", "duckdb"))
	span.End()

	require.NoError(t, tp.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "QueryService.Execute", spans[0].Name)
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestInstruments_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	inst := newInstrumentsFromMeter(mp.Meter(meterName))
	ctx := context.Background()

	inst.IncrementQueryCount(ctx)
	inst.IncrementQueryCount(ctx)
	inst.IncrementQueryRejections(ctx, "dangerous_syntax")
	inst.RecordBuildDuration(ctx, 12)

	metrics := collect(t, reader)

	count, ok := metrics["duckalog.query.count"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, count.DataPoints, 1)
	assert.Equal(t, int64(2), count.DataPoints[0].Value)

	rej, ok := metrics["duckalog.query.rejections"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, rej.DataPoints, 1)
	reason, ok := rej.DataPoints[0].Attributes.Value("reason")
	require.True(t, ok)
	assert.Equal(t, "dangerous_syntax", reason.AsString())

	build, ok := metrics["duckalog.build.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, build.DataPoints, 1)
	assert.Equal(t, uint64(1), build.DataPoints[0].Count)
}
