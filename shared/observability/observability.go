package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"victim-support/backend/pkg/logger"
)

// ShutdownFunc flushes and stops a provider
type ShutdownFunc func(ctx context.Context) error

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

// SetupTracing installs the global tracer provider. exporter is "stdout" or
// "none"; with none spans are recorded but never exported.
func SetupTracing(serviceName, exporter string, log *logger.Logger) (ShutdownFunc, error) {
	res, err := newResource(serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to build otel resource: %w", err)
	}

	opts := []trace.TracerProviderOption{trace.WithResource(res)}
	if exporter == "stdout" {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize stdouttrace exporter: %w", err)
		}
		opts = append(opts, trace.WithBatcher(exp))
	}

	provider := trace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	log.Info("Tracing configured", "service", serviceName, "exporter", exporter)

	return provider.Shutdown, nil
}

// SetupPrometheusMetrics installs an OTel meter provider whose instruments
// are exported through the default prometheus registry, next to the
// promauto collectors, so one /metrics endpoint serves both.
func SetupPrometheusMetrics(serviceName string) (*metric.MeterProvider, error) {
	exp, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
	}
	res, err := newResource(serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to build otel resource: %w", err)
	}

	mp := metric.NewMeterProvider(metric.WithReader(exp), metric.WithResource(res))
	otel.SetMeterProvider(mp)
	return mp, nil
}

// LiveStats is what the live channel reports about itself
type LiveStats interface {
	ConnectionCount() int
	RoomCount() int
}

// RegisterLiveGauges observes the live channel on every collection
func RegisterLiveGauges(mp otelmetric.MeterProvider, stats LiveStats) error {
	meter := mp.Meter("victim-support/backend/live")

	rooms, err := meter.Int64ObservableGauge("chat.live.rooms",
		otelmetric.WithDescription("Rooms with at least one joined connection"))
	if err != nil {
		return err
	}
	joined, err := meter.Int64ObservableGauge("chat.live.joined_connections",
		otelmetric.WithDescription("Connections joined to at least one room"))
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o otelmetric.Observer) error {
		o.ObserveInt64(rooms, int64(stats.RoomCount()))
		o.ObserveInt64(joined, int64(stats.ConnectionCount()))
		return nil
	}, rooms, joined)
	return err
}
