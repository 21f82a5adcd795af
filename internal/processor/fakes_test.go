package processor

import (
	"context"
	"sync"
	"time"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/classify"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/ticket"
)

// fakeScanner returns its batches one per call, then empty slices.
type fakeScanner struct {
	batches [][]*model.TelemetryReading
	err     error
	calls   int
}

func (f *fakeScanner) ScanUnprocessed(ctx context.Context, limit int) ([]*model.TelemetryReading, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

// fakeClassifier maps device IDs to findings; unknown devices classify
// as normal.
type fakeClassifier struct {
	findings map[string]*classify.Finding
}

func (f *fakeClassifier) Classify(ctx context.Context, r *model.TelemetryReading) *classify.Finding {
	return f.findings[r.DeviceID]
}

type fakeAnomalyStore struct {
	inserted []*model.Anomaly
	err      error
	nextID   int64
}

func (f *fakeAnomalyStore) InsertAnomaly(ctx context.Context, a *model.Anomaly) (*model.Anomaly, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	stored := *a
	stored.ID = f.nextID
	f.inserted = append(f.inserted, &stored)
	return &stored, nil
}

// fakeAlertCreator returns a configurable result per device.
type fakeAlertCreator struct {
	created []*model.Alert
	results map[string]*ticket.AlertResult
	errFor  map[string]error
}

func (f *fakeAlertCreator) CreateAlert(ctx context.Context, a *model.Alert) (*ticket.AlertResult, error) {
	if err := f.errFor[a.DeviceID]; err != nil {
		return nil, err
	}
	f.created = append(f.created, a)
	if r, ok := f.results[a.DeviceID]; ok {
		return r, nil
	}
	return &ticket.AlertResult{Alert: a, Created: true}, nil
}

type fakeMetrics struct {
	mu        sync.Mutex
	processed int
	errors    int
	custom    map[string]int
}

func (f *fakeMetrics) RecordProcessed(latency time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed++
}

func (f *fakeMetrics) RecordError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors++
}

func (f *fakeMetrics) IncrementCustom(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.custom == nil {
		f.custom = make(map[string]int)
	}
	f.custom[name]++
}
