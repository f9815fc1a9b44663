// Package observability provides OpenTelemetry tracing for the reporting
// subsystem. Each reported iteration and each volume snapshot is a span.
package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/feaout"

var (
	// Global tracer instance
	tracer trace.Tracer

	// Shutdown hook of the provider installed by Initialize
	shutdown func(context.Context) error

	mu sync.Mutex
)

// Tracer returns the global tracer. Before Initialize it is the
// OpenTelemetry global tracer, a no-op unless the host installed a provider.
func Tracer() trace.Tracer {
	mu.Lock()
	defer mu.Unlock()
	if tracer == nil {
		return otel.Tracer(instrumentationName)
	}
	return tracer
}

// StartSpan starts a span named operationName on the global tracer
func StartSpan(ctx context.Context, operationName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, operationName, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Shutdown flushes and stops the provider installed by Initialize
func Shutdown(ctx context.Context) error {
	mu.Lock()
	fn := shutdown
	shutdown = nil
	tracer = nil
	mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx)
}
