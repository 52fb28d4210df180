// Package telemetry sets up OpenTelemetry tracing for the API server and the
// API client.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Options struct {
	ServiceName string
	// OTLPEndpoint is a host:port of an OTLP gRPC collector. Empty disables it.
	OTLPEndpoint string
	// Stdout writes finished spans to StdoutWriter (os.Stdout when nil).
	Stdout       bool
	StdoutWriter io.Writer
}

// Setup installs a global tracer provider and W3C propagation. Without an
// exporter spans are still created, so trace ids propagate, but nothing is sent.
// The returned function flushes and stops the provider.
func Setup(ctx context.Context, opts Options) (shutdown func(context.Context) error, err error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", opts.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if opts.OTLPEndpoint != "" {
		exporter, e := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(opts.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if e != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", e)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	if opts.Stdout {
		stdoutOpts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if opts.StdoutWriter != nil {
			stdoutOpts = append(stdoutOpts, stdouttrace.WithWriter(opts.StdoutWriter))
		}
		exporter, e := stdouttrace.New(stdoutOpts...)
		if e != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", e)
		}
		tpOpts = append(tpOpts, sdktrace.WithSyncer(exporter))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// Handler traces every request except health probes.
func Handler(next http.Handler, serviceName string) http.Handler {
	return otelhttp.NewHandler(next, serviceName,
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}),
	)
}

// Transport propagates trace context on outgoing requests.
func Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(base)
}
