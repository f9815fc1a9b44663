package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/ajitpratap0/feaout/pkg/config"
)

// Initialize installs a tracer provider according to cfg. Spans are exported
// to out (stdout when nil) for the "stdout" exporter; a disabled config or
// the "none" exporter leaves the no-op global tracer in place.
func Initialize(cfg config.TracingConfig, version string, out io.Writer) error {
	if !cfg.Enabled || cfg.Exporter == "" || cfg.Exporter == "none" {
		return nil
	}
	if out == nil {
		out = os.Stdout
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	default:
		return fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
	)
	install(tp)
	return nil
}

// InitializeWithProvider installs tp as the global provider. Used by hosts
// that build their own exporters, and by tests with a span recorder.
func InitializeWithProvider(tp *sdktrace.TracerProvider) {
	install(tp)
}

func install(tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	mu.Lock()
	defer mu.Unlock()
	tracer = tp.Tracer(instrumentationName)
	shutdown = tp.Shutdown
}
