// Package processor provides batch telemetry processing orchestration.
// It scans unprocessed readings, classifies them, and drives anomaly,
// alert, and ticket creation with per-run counters.
package processor

import (
	"context"
	"time"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/classify"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/ticket"
)

// TelemetryScanner selects readings that still need classification.
type TelemetryScanner interface {
	ScanUnprocessed(ctx context.Context, limit int) ([]*model.TelemetryReading, error)
}

// ReadingClassifier classifies one reading, returning nil when no
// anomaly is detected.
type ReadingClassifier interface {
	Classify(ctx context.Context, r *model.TelemetryReading) *classify.Finding
}

// AnomalyStore persists detected anomalies.
type AnomalyStore interface {
	InsertAnomaly(ctx context.Context, a *model.Anomaly) (*model.Anomaly, error)
}

// AlertCreator creates alerts with ticket escalation and notification
// side effects.
type AlertCreator interface {
	CreateAlert(ctx context.Context, a *model.Alert) (*ticket.AlertResult, error)
}

// MetricsRecorder records processing metrics.
type MetricsRecorder interface {
	RecordProcessed(latency time.Duration)
	RecordError()
	IncrementCustom(name string)
}
