// Package worker implements the capture queue consumption loop.
package worker

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/logging"
	"github.com/JakeFAU/content-capture/internal/metrics"
	"github.com/JakeFAU/content-capture/internal/pipeline"
	"github.com/JakeFAU/content-capture/internal/telemetry"
)

// Processor handles one capture message.
type Processor interface {
	Process(ctx context.Context, msg capture.QueueMessage) pipeline.Outcome
}

// Worker feeds queue deliveries to the processor and maps outcomes to ack/nack.
type Worker struct {
	consumer  capture.Consumer
	processor Processor
	logger    *zap.Logger
}

// New constructs a Worker.
func New(consumer capture.Consumer, processor Processor, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{consumer: consumer, processor: processor, logger: logger}
}

// Run blocks, consuming deliveries until the context finishes.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")
	err := w.consumer.Receive(ctx, w.Handle)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("receive: %w", err)
	}
	w.logger.Info("worker stopped")
	return nil
}

// Handle processes one delivery. Completed and Skipped outcomes are acknowledged;
// Failed outcomes are returned for redelivery.
func (w *Worker) Handle(ctx context.Context, delivery capture.Delivery) bool {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	msg := delivery.Message
	log := w.logger.With(logging.CaptureFields(msg)...)
	log.Debug("delivery received", zap.Int("attempt", delivery.Attempt))

	ctx, span := telemetry.StartCapture(ctx, msg, delivery.Attempt)
	defer span.End()

	outcome := w.processor.Process(ctx, msg)
	switch outcome.Kind {
	case pipeline.Failed:
		span.SetStatus(codes.Error, outcome.Reason)
		log.Warn("capture failed; requesting redelivery",
			zap.Int("attempt", delivery.Attempt),
			zap.String("reason", outcome.Reason),
		)
		return false
	case pipeline.Skipped:
		log.Info("capture skipped", zap.String("reason", outcome.Reason))
	}
	return true
}
