// Package pubsub carries capture messages over Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"

	"github.com/JakeFAU/content-capture/internal/capture"
)

// Publisher publishes capture messages to a topic.
type Publisher struct {
	topic *pubsub.Topic
}

// NewPublisher creates a Publisher for the provided topic.
func NewPublisher(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// Publish marshals msg to JSON and waits for the server to accept it. The trace context
// of ctx travels in the message attributes.
func (p *Publisher) Publish(ctx context.Context, msg capture.QueueMessage) (string, error) {
	if p.topic == nil {
		return "", errors.New("pubsub topic is not configured")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	attrs := msg.Attributes()
	otel.GetTextMapPropagator().Inject(ctx, attributeCarrier(attrs))

	id, err := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Stop flushes pending publishes.
func (p *Publisher) Stop() {
	if p.topic != nil {
		p.topic.Stop()
	}
}

// attributeCarrier implements propagation.TextMapCarrier for Pub/Sub attributes.
type attributeCarrier map[string]string

func (c attributeCarrier) Get(key string) string {
	return c[key]
}

func (c attributeCarrier) Set(key, value string) {
	c[key] = value
}

func (c attributeCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
