// Package tracing installs the process-wide OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Exporters
const (
	ExporterNone   = ""
	ExporterStdout = "stdout"
	ExporterJaeger = "jaeger"
)

// Options selects the exporter and describes the service on every span.
type Options struct {
	ServiceName    string
	Env            string
	Exporter       string
	JaegerEndpoint string
	SampleRatio    float64
	Writer         io.Writer // stdout exporter only; os.Stdout when nil
}

// Shutdown flushes buffered spans and stops the exporter.
type Shutdown func(ctx context.Context) error

// Init builds the provider for opts, registers it and the W3C propagators
// globally and returns it with its shutdown. With no exporter the global
// provider is a noop one.
func Init(opts Options) (trace.TracerProvider, Shutdown, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if opts.Exporter == ExporterNone {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, func(context.Context) error { return nil }, nil
	}

	exp, err := newExporter(opts)
	if err != nil {
		return nil, nil, err
	}
	tp := NewProvider(opts, sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	return tp, tp.Shutdown, nil
}

// NewProvider returns an SDK provider with the service resource and a
// parent-based ratio sampler. Span processors come from extra.
func NewProvider(opts Options, extra ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	ratio := opts.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	base := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(opts.ServiceName),
			semconv.DeploymentEnvironmentKey.String(opts.Env),
		)),
	}
	return sdktrace.NewTracerProvider(append(base, extra...)...)
}

func newExporter(opts Options) (sdktrace.SpanExporter, error) {
	switch opts.Exporter {
	case ExporterStdout:
		w := opts.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("stdout exporter: %w", err)
		}
		return exp, nil
	case ExporterJaeger:
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.JaegerEndpoint)))
		if err != nil {
			return nil, fmt.Errorf("jaeger exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", opts.Exporter)
	}
}
