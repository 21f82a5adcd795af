// Package producer publishes engine events to Kafka.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/events"
	kafkautil "github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/pkg/kafka"
)

const (
	// writeTimeout is the maximum time to wait for a Kafka write operation.
	writeTimeout = 10 * time.Second
)

// Producer wraps a Kafka writer and implements events.Publisher.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

var _ events.Publisher = (*Producer)(nil)

// NewProducer creates a new Kafka producer with the specified brokers
// and topic. The producer is configured for at-least-once delivery
// semantics with synchronous writes, keyed by device id so per-device
// event order is preserved.
func NewProducer(brokers string, topic string) (*Producer, error) {
	if err := kafkautil.ValidateProducerParams(brokers, topic); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
	)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // Key-based partitioning (hashes the device id)
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne, // At-least-once semantics (waits for leader ack)
		Async:        false,            // Synchronous writes for reliability and error handling
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}, nil
}

// Publish serializes an event to JSON and publishes it to Kafka.
func (p *Producer) Publish(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event to JSON",
			"kind", event.Kind(),
			"key", event.Key(),
			"error", err,
		)
		return fmt.Errorf("failed to marshal %s event: %w", event.Kind(), err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Key()),
		Value: payload,
		Headers: []kafka.Header{
			{
				Key:   "kind",
				Value: []byte(event.Kind()),
			},
			{
				Key:   "schema_version",
				Value: []byte(fmt.Sprintf("%d", events.SchemaVersion)),
			},
		},
		Time: time.Now().UTC(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("Failed to write event to Kafka",
			"kind", event.Kind(),
			"topic", p.topic,
			"error", err,
		)
		return fmt.Errorf("failed to write event to Kafka: %w", err)
	}

	slog.Debug("Published engine event",
		"kind", event.Kind(),
		"key", event.Key(),
	)
	return nil
}

// Close gracefully closes the Kafka writer and releases resources.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	return nil
}
