// Package otel configures OpenTelemetry tracing from the standard OTEL_* environment.
package otel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const defaultServiceName = "invoiceapi"

// ShutdownFunc flushes pending spans and stops the provider.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs a tracer provider exporting over OTLP and the W3C propagators.
// Tracing is skipped when OTEL_SDK_DISABLED=true; an exporter that cannot be
// built is logged and tracing stays disabled rather than failing startup.
func Init(ctx context.Context, logger *slog.Logger) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if os.Getenv("OTEL_SDK_DISABLED") == "true" {
		logger.InfoContext(ctx, "tracing_configured", "tracing_enabled", false)
		return noopShutdown, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(getEnv("OTEL_SERVICE_NAME", defaultServiceName))),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, protocol, err := newExporter(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "tracing_init_failed", "otlp_protocol", protocol, "error", err)
		return noopShutdown, nil
	}

	sampler := getSampler()
	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	logger.InfoContext(ctx, "tracing_configured",
		"tracing_enabled", true,
		"otlp_protocol", protocol,
		"otlp_endpoint", endpoint,
		"sampler", sampler.Description(),
	)

	return tp.Shutdown, nil
}

// newExporter builds the OTLP exporter named by OTEL_EXPORTER_OTLP_PROTOCOL (grpc by default).
func newExporter(ctx context.Context) (*otlptrace.Exporter, string, error) {
	protocol := getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	switch protocol {
	case "grpc":
		exp, err := otlptracegrpc.New(ctx)
		return exp, protocol, err
	case "http/protobuf":
		exp, err := otlptracehttp.New(ctx)
		return exp, protocol, err
	default:
		return nil, protocol, fmt.Errorf("unsupported OTLP protocol: %s", protocol)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// getSampler maps OTEL_TRACES_SAMPLER / OTEL_TRACES_SAMPLER_ARG to a sampler.
// Unknown or empty values sample everything under the parent's decision.
func getSampler() trace.Sampler {
	ratio := parseRatio(os.Getenv("OTEL_TRACES_SAMPLER_ARG"))

	switch os.Getenv("OTEL_TRACES_SAMPLER") {
	case "always_on":
		return trace.AlwaysSample()
	case "always_off":
		return trace.NeverSample()
	case "traceidratio":
		return trace.TraceIDRatioBased(ratio)
	case "parentbased_always_off":
		return trace.ParentBased(trace.NeverSample())
	case "parentbased_traceidratio":
		return trace.ParentBased(trace.TraceIDRatioBased(ratio))
	default:
		return trace.ParentBased(trace.AlwaysSample())
	}
}

// parseRatio reads a sampling ratio, defaulting to 1.0 on empty or invalid input.
func parseRatio(arg string) float64 {
	ratio, err := strconv.ParseFloat(arg, 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return 1.0
	}
	return ratio
}
