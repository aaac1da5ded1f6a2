// Package kafka publishes audit events to a Kafka topic. Events are keyed
// by subject so one user's trail stays ordered within a partition; events
// without a subject fall back to the request ID.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"gatehouse/internal/audit"
	"gatehouse/internal/platform/kafka"
)

// Sink writes events through the shared Kafka producer.
type Sink struct {
	producer *kafka.Producer
	topic    string
}

// New creates a Kafka sink for the given topic.
func New(producer *kafka.Producer, topic string) *Sink {
	return &Sink{producer: producer, topic: topic}
}

// Write publishes one event.
func (s *Sink) Write(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	key := event.Subject
	if key == "" {
		key = event.RequestID
	}
	return s.producer.Produce(ctx, s.topic, []byte(key), payload)
}
