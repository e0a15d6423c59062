package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/capture"
)

// SubscriberConfig tunes flow control.
type SubscriberConfig struct {
	MaxOutstandingMessages int
	NumGoroutines          int
}

// Subscriber delivers capture messages from a subscription.
type Subscriber struct {
	sub    *pubsub.Subscription
	logger *zap.Logger
}

// NewSubscriber wraps sub, applying flow-control settings.
func NewSubscriber(sub *pubsub.Subscription, cfg SubscriberConfig, logger *zap.Logger) *Subscriber {
	if cfg.MaxOutstandingMessages > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	}
	if cfg.NumGoroutines > 0 {
		sub.ReceiveSettings.NumGoroutines = cfg.NumGoroutines
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{sub: sub, logger: logger}
}

// Receive blocks until ctx ends. A handler returning true acks the message; false nacks it.
// Undecodable payloads are acked and dropped since redelivery cannot fix them.
func (s *Subscriber) Receive(ctx context.Context, handler capture.Handler) error {
	err := s.sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		var msg capture.QueueMessage
		if err := json.Unmarshal(m.Data, &msg); err != nil || msg.CaptureID == "" {
			s.logger.Error("dropping undecodable message", zap.String("message_id", m.ID), zap.Error(err))
			m.Ack()
			return
		}

		ctx = otel.GetTextMapPropagator().Extract(ctx, attributeCarrier(m.Attributes))
		attempt := 1
		if m.DeliveryAttempt != nil {
			attempt = *m.DeliveryAttempt
		}
		if handler(ctx, capture.Delivery{Message: msg, Attempt: attempt}) {
			m.Ack()
			return
		}
		m.Nack()
	})
	if err != nil {
		return fmt.Errorf("pubsub receive: %w", err)
	}
	return nil
}
