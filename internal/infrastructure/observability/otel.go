package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ZanaKriezi/tourly-skopje-guide"

// Metrics holds the catalog sync metrics. A nil *Metrics records nothing.
type Metrics struct {
	FetchCount       metric.Int64Counter
	FetchStaleCount  metric.Int64Counter
	FetchDuration    metric.Float64Histogram
	MutationCount    metric.Int64Counter
	SuppressedCount  metric.Int64Counter
	MarkerChurnCount metric.Int64Counter
}

// Setup initializes OpenTelemetry tracing, metrics, log export and runtime
// instrumentation. The global zerolog logger is mirrored to the log exporter.
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	logExporter, err := otlploggrpc.New(ctx,
		otlploggrpc.WithEndpoint(endpoint),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		_ = meterProvider.Shutdown(ctx)
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(loggerProvider)
	ExportLogs(loggerProvider)

	if err := runtime.Start(); err != nil {
		GetLogger().Warn().Err(err).Msg("runtime instrumentation not started")
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			loggerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
			tracerProvider.Shutdown(ctx),
		)
	}

	return shutdown, nil
}

// InitMetrics initializes the catalog sync metrics on the global meter provider
func InitMetrics() (*Metrics, error) {
	return NewMetrics(otel.Meter(instrumentationName))
}

// NewMetrics creates the catalog sync metrics on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	fetchCount, err := meter.Int64Counter(
		"catalog.fetch.count",
		metric.WithDescription("Number of page fetches issued"),
	)
	if err != nil {
		return nil, err
	}

	fetchStale, err := meter.Int64Counter(
		"catalog.fetch.stale",
		metric.WithDescription("Number of page responses discarded because a newer fetch was issued"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"catalog.fetch.duration",
		metric.WithDescription("Page fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	mutationCount, err := meter.Int64Counter(
		"catalog.mutation.count",
		metric.WithDescription("Number of confirmed writes"),
	)
	if err != nil {
		return nil, err
	}

	suppressed, err := meter.Int64Counter(
		"catalog.governor.suppressed",
		metric.WithDescription("Number of calls rejected during a failure cooldown"),
	)
	if err != nil {
		return nil, err
	}

	churn, err := meter.Int64Counter(
		"catalog.marker.churn",
		metric.WithDescription("Number of marker create and remove operations"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		FetchCount:       fetchCount,
		FetchStaleCount:  fetchStale,
		FetchDuration:    fetchDuration,
		MutationCount:    mutationCount,
		SuppressedCount:  suppressed,
		MarkerChurnCount: churn,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records an error in the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// RecordFetch records one completed page fetch
func (m *Metrics) RecordFetch(ctx context.Context, list string, duration time.Duration, stale bool, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("catalog.list", list),
		attribute.Bool("error", err != nil),
	)
	m.FetchCount.Add(ctx, 1, attrs)
	m.FetchDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if stale {
		m.FetchStaleCount.Add(ctx, 1, metric.WithAttributes(attribute.String("catalog.list", list)))
	}
}

// RecordMutation records one confirmed write attempt
func (m *Metrics) RecordMutation(ctx context.Context, list, kind string, err error) {
	if m == nil {
		return
	}
	m.MutationCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("catalog.list", list),
		attribute.String("catalog.mutation", kind),
		attribute.Bool("error", err != nil),
	))
}

// RecordSuppressed records a call rejected by the failure governor
func (m *Metrics) RecordSuppressed(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.SuppressedCount.Add(ctx, 1, metric.WithAttributes(attribute.String("catalog.channel", channel)))
}

// RecordMarkerChurn records marker creations and removals of one reconcile pass
func (m *Metrics) RecordMarkerChurn(ctx context.Context, created, removed int) {
	if m == nil || created+removed == 0 {
		return
	}
	m.MarkerChurnCount.Add(ctx, int64(created), metric.WithAttributes(attribute.String("op", "create")))
	m.MarkerChurnCount.Add(ctx, int64(removed), metric.WithAttributes(attribute.String("op", "remove")))
}
