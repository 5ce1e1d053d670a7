// Package observability wires OpenTelemetry tracing and metrics for the
// catalog loader, the store reconciler and the validation endpoint.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const scope = "github.com/Mindburn-Labs/igcatalog"

// exportInterval is how often metrics are pushed to the collector.
const exportInterval = 15 * time.Second

// Config configures telemetry export.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // host:port of an OTLP gRPC collector
	SampleRate     float64
	BatchTimeout   time.Duration
	Enabled        bool
	Insecure       bool
}

// DefaultConfig returns telemetry defaults. Export is off until enabled.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "igcatalog",
		ServiceVersion: "0.3.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
	}
}

// instruments are the metrics recorded by a Provider. All fields are nil
// while telemetry is disabled.
type instruments struct {
	operations  metric.Int64Counter
	failures    metric.Int64Counter
	duration    metric.Float64Histogram
	inFlight    metric.Int64UpDownCounter
	catalogSize metric.Int64Gauge
	storeOps    metric.Int64Counter
	validations metric.Int64Counter
}

// Provider owns the trace and metric pipelines. The zero value of its
// instruments makes every recording call a no-op.
type Provider struct {
	config *Config
	traces *sdktrace.TracerProvider
	meters *sdkmetric.MeterProvider
	tracer trace.Tracer
	inst   instruments
	logger *slog.Logger
}

// Disabled returns a provider that records nothing and exports nothing.
func Disabled() *Provider {
	return &Provider{
		config: &Config{},
		tracer: otel.Tracer(scope),
		logger: slog.Default().With("component", "observability"),
	}
}

// New builds a Provider from config. A nil config uses DefaultConfig; a
// disabled config yields the same provider as Disabled.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	p := Disabled()
	p.config = config
	if !config.Enabled {
		p.logger.InfoContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
		semconv.DeploymentEnvironment(config.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if p.traces, err = newTracerProvider(ctx, config, res); err != nil {
		return nil, err
	}
	if p.meters, err = newMeterProvider(ctx, config, res); err != nil {
		_ = p.traces.Shutdown(ctx)
		return nil, err
	}
	otel.SetTracerProvider(p.traces)
	otel.SetMeterProvider(p.meters)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.tracer = p.traces.Tracer(scope, trace.WithInstrumentationVersion(config.ServiceVersion))
	if p.inst, err = newInstruments(p.meters.Meter(scope, metric.WithInstrumentationVersion(config.ServiceVersion))); err != nil {
		return nil, fmt.Errorf("failed to register instruments: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", config.ServiceName,
		"endpoint", config.OTLPEndpoint,
		"sample_rate", config.SampleRate,
	)
	return p, nil
}

func newTracerProvider(ctx context.Context, config *Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.OTLPEndpoint)}
	if config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	sampler := sdktrace.TraceIDRatioBased(config.SampleRate)
	if config.SampleRate >= 1 {
		sampler = sdktrace.AlwaysSample()
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(config.BatchTimeout)),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	), nil
}

func newMeterProvider(ctx context.Context, config *Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(config.OTLPEndpoint)}
	if config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	), nil
}

func newInstruments(m metric.Meter) (instruments, error) {
	var inst instruments
	var errs [7]error
	inst.operations, errs[0] = m.Int64Counter("igcatalog.operations",
		metric.WithDescription("Tracked operations started"), metric.WithUnit("{operation}"))
	inst.failures, errs[1] = m.Int64Counter("igcatalog.operation.failures",
		metric.WithDescription("Tracked operations that returned an error"), metric.WithUnit("{operation}"))
	inst.duration, errs[2] = m.Float64Histogram("igcatalog.operation.duration",
		metric.WithDescription("Tracked operation latency"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120))
	inst.inFlight, errs[3] = m.Int64UpDownCounter("igcatalog.operations.in_flight",
		metric.WithDescription("Tracked operations currently running"), metric.WithUnit("{operation}"))
	inst.catalogSize, errs[4] = m.Int64Gauge("igcatalog.catalog.resources",
		metric.WithDescription("Distinct resources in the last resolved catalog"), metric.WithUnit("{resource}"))
	inst.storeOps, errs[5] = m.Int64Counter("igcatalog.sync.store_operations",
		metric.WithDescription("Store mutations attempted by the reconciler"), metric.WithUnit("{operation}"))
	inst.validations, errs[6] = m.Int64Counter("igcatalog.validations",
		metric.WithDescription("Documents validated, by outcome"), metric.WithUnit("{document}"))
	return inst, errors.Join(errs[:]...)
}

// Shutdown flushes pending telemetry and stops export.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.traces != nil {
		errs = append(errs, p.traces.Shutdown(ctx))
	}
	if p.meters != nil {
		errs = append(errs, p.meters.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Tracer returns the provider's tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// TrackOperation starts a span named name and counts the operation. The
// returned function must be called exactly once with the outcome.
func (p *Provider) TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(attrs...))

	set := metric.WithAttributes(append(attrs[:len(attrs):len(attrs)], AttrOperation.String(name))...)
	if p.inst.operations != nil {
		p.inst.operations.Add(ctx, 1, set)
		p.inst.inFlight.Add(ctx, 1, set)
	}

	return ctx, func(err error) {
		if p.inst.operations != nil {
			p.inst.inFlight.Add(ctx, -1, set)
			p.inst.duration.Record(ctx, time.Since(start).Seconds(), set)
		}
		if err != nil {
			span.RecordError(err)
			p.RecordError(ctx, name, err)
		}
		span.End()
	}
}

// RecordError counts a failure of the named operation.
func (p *Provider) RecordError(ctx context.Context, name string, err error) {
	if p.inst.failures == nil || err == nil {
		return
	}
	p.inst.failures.Add(ctx, 1, metric.WithAttributes(
		AttrOperation.String(name),
		AttrErrorType.String(fmt.Sprintf("%T", err)),
	))
}

// RecordCatalog records the size of a freshly resolved catalog.
func (p *Provider) RecordCatalog(ctx context.Context, storeType string, resources int) {
	if p.inst.catalogSize != nil {
		p.inst.catalogSize.Record(ctx, int64(resources), metric.WithAttributes(AttrStoreType.String(storeType)))
	}
}

// RecordStoreOp counts one reconciler store mutation.
func (p *Provider) RecordStoreOp(ctx context.Context, kind string, err error) {
	if p.inst.storeOps != nil {
		p.inst.storeOps.Add(ctx, 1, metric.WithAttributes(
			AttrStoreOp.String(kind),
			AttrStoreOpOK.Bool(err == nil),
		))
	}
}

// RecordValidation counts one validated document.
func (p *Provider) RecordValidation(ctx context.Context, successful bool) {
	if p.inst.validations != nil {
		p.inst.validations.Add(ctx, 1, metric.WithAttributes(AttrValidationOK.Bool(successful)))
	}
}
