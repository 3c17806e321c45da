package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// exporter dials block Setup, keep them short
const exporterDialTimeout = time.Second * 3

const metricExportInterval = time.Second * 5

func (c exporterConfig) transport() string {
	if c.GrpcEndpoint != "" {
		return "grpc"
	}
	return "http"
}

func (c exporterConfig) endpoint() string {
	if c.GrpcEndpoint != "" {
		return c.GrpcEndpoint
	}
	return c.HttpEndpoint
}

func newTraceProvider(ctx context.Context, r *resource.Resource, cfg exporterConfig) (*trace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	var exporter trace.SpanExporter
	var err error
	if cfg.GrpcEndpoint != "" {
		exporter, err = otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(cfg.GrpcEndpoint),
			otlptracegrpc.WithHeaders(cfg.Headers),
		)
	} else {
		exporter, err = otlptracehttp.New(
			ctx,
			otlptracehttp.WithEndpointURL(cfg.HttpEndpoint),
			otlptracehttp.WithHeaders(cfg.Headers),
		)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("trace exporter ready",
		"transport", cfg.transport(), "endpoint", cfg.endpoint())
	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(r),
	), nil
}

func newMeterProvider(ctx context.Context, r *resource.Resource, cfg exporterConfig) (*metric.MeterProvider, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	var exporter metric.Exporter
	var err error
	if cfg.GrpcEndpoint != "" {
		exporter, err = otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpointURL(cfg.GrpcEndpoint),
			otlpmetricgrpc.WithHeaders(cfg.Headers),
		)
	} else {
		exporter, err = otlpmetrichttp.New(
			ctx,
			otlpmetrichttp.WithEndpointURL(cfg.HttpEndpoint),
			otlpmetrichttp.WithHeaders(cfg.Headers),
		)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("metric exporter ready",
		"transport", cfg.transport(), "endpoint", cfg.endpoint())
	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter,
			metric.WithInterval(metricExportInterval))),
		metric.WithResource(r),
	), nil
}
