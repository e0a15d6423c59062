// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/content-capture/internal/capture"
)

// New builds a zap.Logger configured for development or production and tags every entry
// with the service name.
func New(development bool, service string) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.DisableStacktrace = false
	}
	cfg.EncoderConfig.TimeKey = "ts"
	if service != "" {
		cfg.InitialFields = map[string]any{"service": service}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// CaptureFields are the standard fields attached to every log line about one capture.
func CaptureFields(msg capture.QueueMessage) []zap.Field {
	return []zap.Field{
		zap.String("capture_id", msg.CaptureID),
		zap.String("url", msg.URL),
		zap.String("source_type", string(msg.SourceType)),
	}
}
