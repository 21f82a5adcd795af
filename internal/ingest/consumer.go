// Package ingest consumes raw telemetry readings from Kafka and
// persists them for the batch processor to classify.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
	kafkautil "github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/pkg/kafka"
)

// ErrMalformed wraps a message that could not be decoded as a reading.
type ErrMalformed struct {
	cause error
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("malformed telemetry message: %v", e.cause)
}

func (e *ErrMalformed) Unwrap() error { return e.cause }

// Consumer wraps a Kafka reader and decodes telemetry readings from
// JSON message values.
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates a Kafka consumer for the telemetry topic,
// configured for at-least-once delivery.
func NewConsumer(brokers, topic, groupID string) (*Consumer, error) {
	if err := kafkautil.ValidateConsumerParams(brokers, topic, groupID); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)
	slog.Info("Initializing telemetry consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)

	return &Consumer{
		reader: kafka.NewReader(kafkautil.NewReaderConfig(brokerList, topic, groupID)),
		topic:  topic,
	}, nil
}

// ReadMessage reads the next message and decodes it as a telemetry
// reading. A decode failure returns the raw message alongside an
// *ErrMalformed so the caller can commit past it.
func (c *Consumer) ReadMessage(ctx context.Context) (*model.TelemetryReading, *kafka.Message, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}

	var reading model.TelemetryReading
	if err := json.Unmarshal(msg.Value, &reading); err != nil {
		return nil, &msg, &ErrMalformed{cause: err}
	}
	if reading.DeviceID == "" {
		return nil, &msg, &ErrMalformed{cause: fmt.Errorf("missing device_id")}
	}

	return &reading, &msg, nil
}

// CommitMessage commits the offset for the given message.
func (c *Consumer) CommitMessage(ctx context.Context, msg *kafka.Message) error {
	return c.reader.CommitMessages(ctx, *msg)
}

// Close releases the underlying Kafka reader.
func (c *Consumer) Close() error {
	slog.Info("Closing telemetry consumer", "topic", c.topic)
	return c.reader.Close()
}
