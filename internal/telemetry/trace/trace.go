// Package trace sets up OpenTelemetry tracing.
package trace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/pomerium/lineauth/internal/log"
)

// TracerName is the instrumentation name used for spans started by Continue.
const TracerName = "github.com/pomerium/lineauth"

// TracingOptions contains the configuration for span export.
type TracingOptions struct {
	// Service is the service name attached to every span.
	Service string
	// OTLPEndpoint is the OTLP/HTTP collector endpoint, for example
	// localhost:4318. When empty, spans are not exported.
	OTLPEndpoint string
	// Insecure disables TLS when talking to the collector.
	Insecure bool
}

// NewTracerProvider creates a tracer provider from the options and installs it
// as the global provider. The returned function flushes and stops exporting.
func NewTracerProvider(ctx context.Context, opts TracingOptions) (trace.TracerProvider, func(context.Context) error, error) {
	if opts.OTLPEndpoint == "" {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, func(context.Context) error { return nil }, nil
	}

	exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.OTLPEndpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry/trace: could not create exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(semconv.ServiceName(opts.Service))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	log.Debug(ctx).Str("endpoint", opts.OTLPEndpoint).Msg("telemetry/trace: exporter created")
	return tp, tp.Shutdown, nil
}

// Continue starts a new span as a child of the span in ctx. Without a span in
// ctx the global tracer provider is used.
func Continue(ctx context.Context, name string, o ...trace.SpanStartOption) (context.Context, trace.Span) {
	tp := otel.GetTracerProvider()
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		tp = span.TracerProvider()
	}
	return tp.Tracer(TracerName).Start(ctx, name, o...)
}
