package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/progress"
)

// LogSink writes each lifecycle event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("capture_id", evt.CaptureID),
			zap.String("stage", string(evt.Stage)),
			zap.String("source_type", string(evt.SourceType)),
			zap.Duration("dur", evt.Dur),
			zap.Time("ts", evt.TS),
		}
		if evt.Strategy != "" {
			fields = append(fields, zap.String("strategy", evt.Strategy))
		}
		if evt.Degraded {
			fields = append(fields, zap.Bool("degraded", true))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Debug("capture progress", fields...)
	}
	return nil
}

// Close is a no-op.
func (s *LogSink) Close(context.Context) error {
	return nil
}
