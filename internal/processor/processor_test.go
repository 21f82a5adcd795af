package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/classify"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/ticket"
)

func reading(id int64, deviceID string) *model.TelemetryReading {
	return &model.TelemetryReading{
		ID:        id,
		DeviceID:  deviceID,
		Timestamp: time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
		Village:   "Rampur",
	}
}

func leakFinding() *classify.Finding {
	return &classify.Finding{
		Issue:       model.IssueLeak,
		Severity:    model.SeverityCritical,
		Confidence:  classify.ConfidenceLeakFlag,
		Description: "Possible leak detected",
	}
}

func TestProcessBatchCounters(t *testing.T) {
	scanner := &fakeScanner{batches: [][]*model.TelemetryReading{{
		reading(1, "DEV1"), // classifies as leak, escalates
		reading(2, "DEV2"), // normal
	}}}
	classifier := &fakeClassifier{findings: map[string]*classify.Finding{"DEV1": leakFinding()}}
	anomalies := &fakeAnomalyStore{}
	alerts := &fakeAlertCreator{
		results: map[string]*ticket.AlertResult{
			"DEV1": {Created: true, TicketCreated: true, Notified: 3},
		},
	}
	m := &fakeMetrics{}
	p := NewProcessorWithMetrics(scanner, classifier, anomalies, alerts, m)

	stats, err := p.ProcessBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}

	want := Stats{Processed: 2, AlertsCreated: 1, TicketsCreated: 1, WhatsappSent: 3}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if len(anomalies.inserted) != 1 {
		t.Fatalf("anomalies inserted = %d, want 1", len(anomalies.inserted))
	}
	if anomalies.inserted[0].Type != model.IssueLeak {
		t.Errorf("anomaly type = %q, want leak", anomalies.inserted[0].Type)
	}
	if len(alerts.created) != 1 {
		t.Fatalf("alerts created = %d, want 1", len(alerts.created))
	}
	if alerts.created[0].AnomalyID == nil || *alerts.created[0].AnomalyID != anomalies.inserted[0].ID {
		t.Error("alert not linked to the recorded anomaly")
	}
	if m.processed != 2 {
		t.Errorf("metrics processed = %d, want 2", m.processed)
	}
	if m.custom["whatsapp_sent"] != 3 {
		t.Errorf("whatsapp_sent metric = %d, want 3", m.custom["whatsapp_sent"])
	}
}

func TestProcessBatchAnomalyGPSFallback(t *testing.T) {
	fp := func(v float64) *float64 { return &v }

	estimated := leakFinding()
	estimated.GPSLat = fp(26.85)
	estimated.GPSLon = fp(80.95)

	located := reading(2, "DEV2")
	located.GPSLat = fp(25.31)
	located.GPSLon = fp(82.97)

	scanner := &fakeScanner{batches: [][]*model.TelemetryReading{{
		reading(1, "DEV1"), // no GPS fix, analyzer estimated one
		located,            // own fix wins over any estimate
	}}}
	classifier := &fakeClassifier{findings: map[string]*classify.Finding{
		"DEV1": estimated,
		"DEV2": estimated,
	}}
	anomalies := &fakeAnomalyStore{}
	p := NewProcessor(scanner, classifier, anomalies, &fakeAlertCreator{})

	if _, err := p.ProcessBatch(context.Background(), 10); err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if len(anomalies.inserted) != 2 {
		t.Fatalf("anomalies inserted = %d, want 2", len(anomalies.inserted))
	}
	if got := anomalies.inserted[0]; got.GPSLat == nil || *got.GPSLat != 26.85 || got.GPSLon == nil || *got.GPSLon != 80.95 {
		t.Errorf("DEV1 anomaly GPS = (%v, %v), want estimated (26.85, 80.95)", got.GPSLat, got.GPSLon)
	}
	if got := anomalies.inserted[1]; got.GPSLat == nil || *got.GPSLat != 25.31 || got.GPSLon == nil || *got.GPSLon != 82.97 {
		t.Errorf("DEV2 anomaly GPS = (%v, %v), want the reading's own fix", got.GPSLat, got.GPSLon)
	}
}

func TestProcessBatchDuplicateAlertNotCounted(t *testing.T) {
	scanner := &fakeScanner{batches: [][]*model.TelemetryReading{{reading(1, "DEV1")}}}
	classifier := &fakeClassifier{findings: map[string]*classify.Finding{"DEV1": leakFinding()}}
	alerts := &fakeAlertCreator{
		results: map[string]*ticket.AlertResult{"DEV1": {Created: false}},
	}
	p := NewProcessor(scanner, classifier, &fakeAnomalyStore{}, alerts)

	stats, err := p.ProcessBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	want := Stats{Processed: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestProcessBatchRowErrorDoesNotAbort(t *testing.T) {
	scanner := &fakeScanner{batches: [][]*model.TelemetryReading{{
		reading(1, "DEV1"),
		reading(2, "DEV2"),
	}}}
	classifier := &fakeClassifier{findings: map[string]*classify.Finding{
		"DEV1": leakFinding(),
		"DEV2": leakFinding(),
	}}
	alerts := &fakeAlertCreator{errFor: map[string]error{"DEV1": errors.New("insert failed")}}
	m := &fakeMetrics{}
	p := NewProcessorWithMetrics(scanner, classifier, &fakeAnomalyStore{}, alerts, m)

	stats, err := p.ProcessBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v, want row errors swallowed", err)
	}
	if stats.Processed != 2 || stats.Errors != 1 || stats.AlertsCreated != 1 {
		t.Errorf("stats = %+v, want both rows processed, one error, one alert", stats)
	}
	if m.errors != 1 {
		t.Errorf("metrics errors = %d, want 1", m.errors)
	}
}

func TestProcessBatchScanFailure(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("db down")}
	m := &fakeMetrics{}
	p := NewProcessorWithMetrics(scanner, &fakeClassifier{}, &fakeAnomalyStore{}, &fakeAlertCreator{}, m)

	if _, err := p.ProcessBatch(context.Background(), 10); err == nil {
		t.Fatal("ProcessBatch() error = nil, want scan failure surfaced")
	}
	if m.errors != 1 {
		t.Errorf("metrics errors = %d, want 1", m.errors)
	}
}

func TestProcessBatchAnomalyInsertFailure(t *testing.T) {
	scanner := &fakeScanner{batches: [][]*model.TelemetryReading{{reading(1, "DEV1")}}}
	classifier := &fakeClassifier{findings: map[string]*classify.Finding{"DEV1": leakFinding()}}
	anomalies := &fakeAnomalyStore{err: errors.New("insert failed")}
	alerts := &fakeAlertCreator{}
	p := NewProcessor(scanner, classifier, anomalies, alerts)

	stats, err := p.ProcessBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if stats.Errors != 1 {
		t.Errorf("stats.Errors = %d, want 1", stats.Errors)
	}
	if len(alerts.created) != 0 {
		t.Error("alert created despite anomaly insert failure")
	}
}

func TestRunUntilDrained(t *testing.T) {
	scanner := &fakeScanner{batches: [][]*model.TelemetryReading{
		{reading(1, "DEV1"), reading(2, "DEV2")},
		{reading(3, "DEV3")},
	}}
	p := NewProcessor(scanner, &fakeClassifier{}, &fakeAnomalyStore{}, &fakeAlertCreator{})
	p.SetBatchDelay(0)

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Processed != 3 {
		t.Errorf("stats.Processed = %d, want 3", stats.Processed)
	}
	// Two full batches plus the empty scan that ends the run.
	if scanner.calls != 3 {
		t.Errorf("scanner calls = %d, want 3", scanner.calls)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	scanner := &fakeScanner{batches: [][]*model.TelemetryReading{
		{reading(1, "DEV1")},
		{reading(2, "DEV2")},
	}}
	p := NewProcessor(scanner, &fakeClassifier{}, &fakeAnomalyStore{}, &fakeAlertCreator{})
	p.SetBatchDelay(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := p.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if stats.Processed > 1 {
		t.Errorf("stats.Processed = %d, want at most the first batch", stats.Processed)
	}
}

func TestSetBatchLimitIgnoresNonPositive(t *testing.T) {
	p := NewProcessor(&fakeScanner{}, &fakeClassifier{}, &fakeAnomalyStore{}, &fakeAlertCreator{})
	p.SetBatchLimit(25)
	if p.batchLimit != 25 {
		t.Errorf("batchLimit = %d, want 25", p.batchLimit)
	}
	p.SetBatchLimit(0)
	if p.batchLimit != 25 {
		t.Errorf("batchLimit = %d, want unchanged 25", p.batchLimit)
	}
}

func TestStatsAdd(t *testing.T) {
	var total Stats
	total.Add(Stats{Processed: 2, AlertsCreated: 1, WhatsappSent: 3})
	total.Add(Stats{Processed: 1, TicketsCreated: 1, Errors: 1})

	want := Stats{Processed: 3, AlertsCreated: 1, TicketsCreated: 1, WhatsappSent: 3, Errors: 1}
	if total != want {
		t.Errorf("total = %+v, want %+v", total, want)
	}
}
