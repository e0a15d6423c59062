// Package telemetry sets up OpenTelemetry tracing for the capture service.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/JakeFAU/content-capture/internal/capture"
)

const tracerName = "github.com/JakeFAU/content-capture"

// InitTracerProvider installs the global tracer provider and the W3C trace-context
// propagator used to carry traces across the queue. Extra options, such as a batcher
// for an exporter, are appended to the defaults.
func InitTracerProvider(
	ctx context.Context,
	serviceName string,
	opts ...sdktrace.TracerProviderOption,
) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(append([]sdktrace.TracerProviderOption{sdktrace.WithResource(res)}, opts...)...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}

// StartCapture opens the span covering one capture's processing.
func StartCapture(ctx context.Context, msg capture.QueueMessage, attempt int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "capture.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("capture.id", msg.CaptureID),
			attribute.String("capture.source_type", string(msg.SourceType)),
			attribute.Int("capture.attempt", attempt),
		),
	)
}
