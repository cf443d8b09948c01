package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func restoreGlobal(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestInit_NoExporterIsNoop(t *testing.T) {
	restoreGlobal(t)

	_, shutdown, err := Init(Options{ServiceName: "svc"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	if span.IsRecording() {
		t.Fatalf("expected non-recording span without an exporter")
	}
}

func TestInit_StdoutExportsSpans(t *testing.T) {
	restoreGlobal(t)
	var buf bytes.Buffer

	_, shutdown, err := Init(Options{ServiceName: "vinyl-storefront", Env: "test", Exporter: ExporterStdout, Writer: &buf})
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "payment.Approve")
	if !span.IsRecording() || !span.SpanContext().IsValid() {
		t.Fatalf("expected a recording span from the global provider")
	}
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "payment.Approve") || !strings.Contains(out, "vinyl-storefront") {
		t.Fatalf("span not exported: %s", out)
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	restoreGlobal(t)
	if _, _, err := Init(Options{Exporter: "zipkin"}); err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}

func TestNewProvider_Resource(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := NewProvider(Options{ServiceName: "svc", Env: "prod", SampleRatio: 1}, sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.End()

	ended := sr.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	var found bool
	for _, kv := range ended[0].Resource().Attributes() {
		if kv.Key == attribute.Key("service.name") && kv.Value.AsString() == "svc" {
			found = true
		}
	}
	if !found {
		t.Fatalf("service.name missing from resource: %v", ended[0].Resource().Attributes())
	}
}
