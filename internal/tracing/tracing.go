// ABOUTME: OpenTelemetry tracer provider setup for the heapshape tools
// ABOUTME: Spans are exported as JSON to a writer, or dropped when tracing is off

package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ServiceName is recorded on every exported span
const ServiceName = "heapshape"

// Provider hands out tracers and flushes them on shutdown
type Provider struct {
	trace.TracerProvider
	shutdown func(context.Context) error
}

// Shutdown flushes pending spans and stops the exporter
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// New returns a provider exporting spans to w when enabled, and a no-op
// provider otherwise. Spans are exported synchronously as they end, so a
// command that fails still leaves its spans behind.
func New(w io.Writer, enabled bool) (*Provider, error) {
	if !enabled {
		return &Provider{TracerProvider: noop.NewTracerProvider()}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create span exporter: %w", err)
	}
	res := resource.NewSchemaless(attribute.String("service.name", ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSyncer(exporter),
	)
	return &Provider{TracerProvider: tp, shutdown: tp.Shutdown}, nil
}

// Wrap adapts an existing SDK provider, such as one feeding a span recorder
func Wrap(tp *sdktrace.TracerProvider) *Provider {
	return &Provider{TracerProvider: tp, shutdown: tp.Shutdown}
}
