package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/pkg/metrics"
)

// MessageReader reads and commits telemetry messages.
type MessageReader interface {
	ReadMessage(ctx context.Context) (*model.TelemetryReading, *kafka.Message, error)
	CommitMessage(ctx context.Context, msg *kafka.Message) error
	Close() error
}

// ReadingWriter persists telemetry readings.
type ReadingWriter interface {
	InsertReading(ctx context.Context, r *model.TelemetryReading) (*model.TelemetryReading, error)
}

// MetricsRecorder records ingestion metrics.
type MetricsRecorder interface {
	RecordProcessed(latency time.Duration)
	RecordError()
	IncrementCustom(name string)
}

// Ingestor runs the consume-insert-commit loop.
type Ingestor struct {
	reader  MessageReader
	store   ReadingWriter
	metrics MetricsRecorder
}

// NewIngestor creates an ingestor. If m is nil, a no-op metrics
// implementation is used.
func NewIngestor(reader MessageReader, store ReadingWriter, m MetricsRecorder) *Ingestor {
	if m == nil {
		m = metrics.NoOp{}
	}
	return &Ingestor{reader: reader, store: store, metrics: m}
}

// Run consumes telemetry readings until the context is cancelled.
// Malformed messages are logged, counted, and committed so they are
// never redelivered; insert failures leave the offset uncommitted for
// at-least-once redelivery.
func (i *Ingestor) Run(ctx context.Context) error {
	slog.Info("Starting telemetry ingestion loop")

	for {
		select {
		case <-ctx.Done():
			slog.Info("Telemetry ingestion loop stopped")
			return nil
		default:
		}

		reading, msg, err := i.reader.ReadMessage(ctx)
		if err != nil {
			var malformed *ErrMalformed
			if errors.As(err, &malformed) {
				slog.Warn("Skipping malformed telemetry message", "error", err)
				i.metrics.RecordError()
				i.metrics.IncrementCustom("malformed_readings")
				// Commit past the bad message so it is not redelivered.
				if msg != nil {
					if commitErr := i.reader.CommitMessage(ctx, msg); commitErr != nil {
						slog.Error("Failed to commit past malformed message", "error", commitErr)
					}
				}
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("Failed to read telemetry message", "error", err)
			continue
		}

		start := time.Now()
		stored, err := i.store.InsertReading(ctx, reading)
		if err != nil {
			slog.Error("Failed to insert telemetry reading",
				"device_id", reading.DeviceID,
				"error", err,
			)
			i.metrics.RecordError()
			continue
		}

		if err := i.reader.CommitMessage(ctx, msg); err != nil {
			slog.Error("Failed to commit offset",
				"device_id", reading.DeviceID,
				"reading_id", stored.ID,
				"error", err,
			)
			// Offset will be committed on the next interval or retry.
		}

		i.metrics.RecordProcessed(time.Since(start))
		i.metrics.IncrementCustom("readings_ingested")
		slog.Debug("Ingested telemetry reading",
			"reading_id", stored.ID,
			"device_id", stored.DeviceID,
		)
	}
}
