package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	DefaultServiceName = "duckalog"

	// TracerName is the instrumentation scope for every duckalog span.
	TracerName = "github.com/duckalog/duckalog"

	defaultMetricInterval = 30 * time.Second
)

type settings struct {
	serviceName    string
	metricInterval time.Duration
	attrs          []attribute.KeyValue
}

// Option tunes Init.
type Option func(*settings)

// WithServiceName overrides the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.serviceName = name
		}
	}
}

// WithMetricInterval sets how often metrics are pushed to the collector.
func WithMetricInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.metricInterval = d
		}
	}
}

// WithAttributes adds resource attributes, such as the catalog being served.
func WithAttributes(kv ...attribute.KeyValue) Option {
	return func(s *settings) { s.attrs = append(s.attrs, kv...) }
}

func newSettings(opts []Option) settings {
	s := settings{serviceName: DefaultServiceName, metricInterval: defaultMetricInterval}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Provider owns the SDK providers so they can be flushed on exit.
type Provider struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// Init registers global trace and metric providers exporting over OTLP gRPC.
// The exporters read OTEL_EXPORTER_OTLP_ENDPOINT themselves.
func Init(ctx context.Context, version string, opts ...Option) (*Provider, error) {
	s := newSettings(opts)

	res, err := newResource(ctx, s, version)
	if err != nil {
		return nil, err
	}

	spans, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	metrics, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	p := &Provider{
		tp: newTracerProvider(spans, res),
		mp: newMeterProvider(sdkmetric.NewPeriodicReader(metrics, sdkmetric.WithInterval(s.metricInterval)), res),
	}

	otel.SetTracerProvider(p.tp)
	otel.SetMeterProvider(p.mp)
	// Only the dashboard carries trace headers; MCP over stdio has none.
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return p, nil
}

func newResource(ctx context.Context, s settings, version string) (*resource.Resource, error) {
	attrs := append([]attribute.KeyValue{
		semconv.ServiceName(s.serviceName),
		semconv.ServiceVersion(version),
	}, s.attrs...)

	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}
	return res, nil
}

func newTracerProvider(exporter sdktrace.SpanExporter, res *resource.Resource) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
}

func newMeterProvider(reader sdkmetric.Reader, res *resource.Resource) *sdkmetric.MeterProvider {
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
}

// Tracer returns the duckalog tracer from this provider.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tp == nil {
		return NoopTracer()
	}
	return p.tp.Tracer(TracerName)
}

// Shutdown flushes pending metrics and spans. Both providers are shut down
// even if the first one fails.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down meter: %w", err))
		}
	}
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down tracer: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NoopTracer returns a tracer that does nothing (for when OTel is disabled).
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("noop")
}
