package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/pkg/metrics"
)

// DefaultBatchLimit bounds one scan when the caller does not specify
// a limit.
const DefaultBatchLimit = 100

// DefaultBatchDelay is the pause between batches in process-all mode.
const DefaultBatchDelay = 2 * time.Second

// Stats accumulates per-run counters.
type Stats struct {
	Processed      int `json:"processed"`
	AlertsCreated  int `json:"alerts_created"`
	TicketsCreated int `json:"tickets_created"`
	WhatsappSent   int `json:"whatsapp_sent"`
	Errors         int `json:"errors"`
}

// Add accumulates another run's counters into s.
func (s *Stats) Add(other Stats) {
	s.Processed += other.Processed
	s.AlertsCreated += other.AlertsCreated
	s.TicketsCreated += other.TicketsCreated
	s.WhatsappSent += other.WhatsappSent
	s.Errors += other.Errors
}

// Processor scans unprocessed telemetry in bounded batches and turns
// positive classifications into anomalies, alerts, and tickets.
type Processor struct {
	scanner    TelemetryScanner
	classifier ReadingClassifier
	anomalies  AnomalyStore
	alerts     AlertCreator
	metrics    MetricsRecorder

	batchLimit int
	batchDelay time.Duration
}

// NewProcessor creates a batch processor with no-op metrics.
func NewProcessor(scanner TelemetryScanner, classifier ReadingClassifier, anomalies AnomalyStore, alerts AlertCreator) *Processor {
	return NewProcessorWithMetrics(scanner, classifier, anomalies, alerts, nil)
}

// NewProcessorWithMetrics creates a processor with the provided metrics
// recorder. If m is nil, a no-op implementation is used.
func NewProcessorWithMetrics(scanner TelemetryScanner, classifier ReadingClassifier, anomalies AnomalyStore, alerts AlertCreator, m MetricsRecorder) *Processor {
	if m == nil {
		m = metrics.NoOp{}
	}
	return &Processor{
		scanner:    scanner,
		classifier: classifier,
		anomalies:  anomalies,
		alerts:     alerts,
		metrics:    m,
		batchLimit: DefaultBatchLimit,
		batchDelay: DefaultBatchDelay,
	}
}

// SetBatchLimit overrides the per-batch row limit used by Run.
func (p *Processor) SetBatchLimit(limit int) {
	if limit > 0 {
		p.batchLimit = limit
	}
}

// SetBatchDelay overrides the inter-batch pause used by Run.
func (p *Processor) SetBatchDelay(delay time.Duration) {
	if delay >= 0 {
		p.batchDelay = delay
	}
}

// ProcessBatch scans up to limit unprocessed readings and classifies
// each one. A single reading's failure is logged and counted without
// aborting the batch. The scan itself failing is the only error path.
func (p *Processor) ProcessBatch(ctx context.Context, limit int) (Stats, error) {
	if limit <= 0 {
		limit = p.batchLimit
	}

	readings, err := p.scanner.ScanUnprocessed(ctx, limit)
	if err != nil {
		p.metrics.RecordError()
		return Stats{}, fmt.Errorf("failed to scan unprocessed telemetry: %w", err)
	}

	var stats Stats
	for _, r := range readings {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		start := time.Now()
		stats.Processed++

		if err := p.processReading(ctx, r, &stats); err != nil {
			stats.Errors++
			p.metrics.RecordError()
			slog.Error("Failed to process reading",
				"reading_id", r.ID,
				"device_id", r.DeviceID,
				"error", err,
			)
			continue
		}
		p.metrics.RecordProcessed(time.Since(start))
	}

	if stats.Processed > 0 {
		slog.Info("Processed telemetry batch",
			"processed", stats.Processed,
			"alerts_created", stats.AlertsCreated,
			"tickets_created", stats.TicketsCreated,
			"whatsapp_sent", stats.WhatsappSent,
			"errors", stats.Errors,
		)
	}
	return stats, nil
}

// Run repeatedly processes batches with a fixed inter-batch delay until
// a batch yields zero readings or the context is cancelled. It returns
// the accumulated counters for the whole run.
func (p *Processor) Run(ctx context.Context) (Stats, error) {
	slog.Info("Starting batch processing run",
		"batch_limit", p.batchLimit,
		"batch_delay", p.batchDelay,
	)

	var total Stats
	for {
		stats, err := p.ProcessBatch(ctx, p.batchLimit)
		total.Add(stats)
		if err != nil {
			return total, err
		}
		if stats.Processed == 0 {
			slog.Info("Batch processing run complete",
				"processed", total.Processed,
				"alerts_created", total.AlertsCreated,
				"tickets_created", total.TicketsCreated,
				"whatsapp_sent", total.WhatsappSent,
				"errors", total.Errors,
			)
			return total, nil
		}

		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case <-time.After(p.batchDelay):
		}
	}
}

// processReading classifies one reading and, on a positive finding,
// records the anomaly and creates the alert (which escalates to a
// ticket for high and critical severities).
func (p *Processor) processReading(ctx context.Context, r *model.TelemetryReading, stats *Stats) error {
	finding := p.classifier.Classify(ctx, r)
	if finding == nil {
		return nil
	}

	lat, lon := r.GPSLat, r.GPSLon
	if lat == nil && lon == nil {
		// Fall back to the analyzer's location estimate.
		lat, lon = finding.GPSLat, finding.GPSLon
	}

	anomaly, err := p.anomalies.InsertAnomaly(ctx, &model.Anomaly{
		DeviceID:    r.DeviceID,
		Type:        finding.Issue,
		Severity:    finding.Severity,
		Confidence:  finding.Confidence,
		Description: finding.Description,
		GPSLat:      lat,
		GPSLon:      lon,
		DetectedAt:  r.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to record anomaly: %w", err)
	}

	result, err := p.alerts.CreateAlert(ctx, &model.Alert{
		AnomalyID: &anomaly.ID,
		DeviceID:  r.DeviceID,
		Issue:     finding.Issue,
		Severity:  finding.Severity,
		Message:   finding.Description,
		Village:   r.Village,
		SentAt:    r.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	if result.Created {
		stats.AlertsCreated++
		p.metrics.IncrementCustom("alerts_created")
	}
	if result.TicketCreated {
		stats.TicketsCreated++
		p.metrics.IncrementCustom("tickets_created")
	}
	if result.Notified > 0 {
		stats.WhatsappSent += result.Notified
		for i := 0; i < result.Notified; i++ {
			p.metrics.IncrementCustom("whatsapp_sent")
		}
	}
	return nil
}
