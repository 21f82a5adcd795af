package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewDBWithConn(conn), mock
}

func readingRowColumns() []string {
	return []string{"id", "device_id", "ts", "flow_rate", "pressure", "turbidity", "temperature", "ph", "conductivity", "gps_lat", "gps_lon", "village", "metadata"}
}

func TestInsertReading(t *testing.T) {
	db, mock := newMockDB(t)
	ts := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	pressure := 850.0

	mock.ExpectQuery("INSERT INTO telemetry_readings").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	stored, err := db.InsertReading(context.Background(), &model.TelemetryReading{
		DeviceID:  "DEV1",
		Timestamp: ts,
		Pressure:  &pressure,
		Village:   "Rampur",
		Metadata:  map[string]any{"leak_flag": "true"},
	})
	if err != nil {
		t.Fatalf("InsertReading() error = %v", err)
	}
	if stored.ID != 42 {
		t.Errorf("ID = %d, want 42", stored.ID)
	}
	if stored.DeviceID != "DEV1" {
		t.Errorf("DeviceID = %q, want DEV1", stored.DeviceID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInsertReadingError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("INSERT INTO telemetry_readings").
		WillReturnError(sql.ErrConnDone)

	_, err := db.InsertReading(context.Background(), &model.TelemetryReading{DeviceID: "DEV1"})
	if err == nil {
		t.Error("InsertReading() error = nil, want non-nil")
	}
}

func TestScanUnprocessed(t *testing.T) {
	db, mock := newMockDB(t)
	ts := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(readingRowColumns()).
		AddRow(int64(1), "DEV1", ts, nil, 850.0, nil, nil, nil, nil, nil, nil, "Rampur", `{"leak_flag":"true"}`).
		AddRow(int64(2), "DEV2", ts, 3.0, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	mock.ExpectQuery("SELECT (.+) FROM telemetry_readings r").
		WithArgs(100).
		WillReturnRows(rows)

	readings, err := db.ScanUnprocessed(context.Background(), 100)
	if err != nil {
		t.Fatalf("ScanUnprocessed() error = %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("len(readings) = %d, want 2", len(readings))
	}
	if readings[0].Pressure == nil || *readings[0].Pressure != 850 {
		t.Errorf("Pressure = %v, want 850", readings[0].Pressure)
	}
	if readings[0].Metadata["leak_flag"] != "true" {
		t.Errorf("Metadata = %v, want leak_flag true", readings[0].Metadata)
	}
	if readings[1].Village != "" {
		t.Errorf("Village = %q, want empty for NULL", readings[1].Village)
	}
	if readings[1].Metadata != nil {
		t.Errorf("Metadata = %v, want nil for NULL", readings[1].Metadata)
	}
}

// Flagged rows must stop matching once their anomaly is recorded,
// otherwise repeated scans re-select them forever.
func TestScanUnprocessedFlagsGuardedByAnomaly(t *testing.T) {
	db, mock := newMockDB(t)

	guarded := map[string]string{
		"leak_flag":          "leak",
		"contamination_flag": "contamination",
		"anomaly_flag":       "pressure_anomaly",
	}
	for flag, anomalyType := range guarded {
		pattern := regexp.QuoteMeta(flag) + `'\) IN \('true', 'True', 'TRUE', '1'\) AND NOT EXISTS \((?s:.+?)a\.anomaly_type = '` + regexp.QuoteMeta(anomalyType) + `'`
		mock.ExpectQuery(pattern).
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows(readingRowColumns()))

		if _, err := db.ScanUnprocessed(context.Background(), 5); err != nil {
			t.Fatalf("ScanUnprocessed() %s guard: error = %v", flag, err)
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("ExpectationsWereMet() = %v", err)
	}
}

func TestReadingsForDevice(t *testing.T) {
	db, mock := newMockDB(t)
	ts := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM telemetry_readings").
		WithArgs("DEV1", "2026-08-29", 50).
		WillReturnRows(sqlmock.NewRows(readingRowColumns()).
			AddRow(int64(7), "DEV1", ts, nil, nil, 15.0, nil, nil, nil, nil, nil, "Rampur", nil))

	readings, err := db.ReadingsForDevice(context.Background(), "DEV1", "2026-08-29", 50)
	if err != nil {
		t.Fatalf("ReadingsForDevice() error = %v", err)
	}
	if len(readings) != 1 || readings[0].ID != 7 {
		t.Errorf("readings = %+v, want one row with id 7", readings)
	}
}

func TestInsertAnomaly(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("INSERT INTO anomalies").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))

	stored, err := db.InsertAnomaly(context.Background(), &model.Anomaly{
		DeviceID:   "DEV1",
		Type:       model.IssueLeak,
		Severity:   model.SeverityCritical,
		Confidence: 95,
		DetectedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("InsertAnomaly() error = %v", err)
	}
	if stored.ID != 9 {
		t.Errorf("ID = %d, want 9", stored.ID)
	}
}

func TestResolveAnomaly(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("UPDATE anomalies").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := db.ResolveAnomaly(context.Background(), 9); err != nil {
		t.Errorf("ResolveAnomaly() error = %v", err)
	}
}

func TestResolveAnomalyNotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("UPDATE anomalies").
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := db.ResolveAnomaly(context.Background(), 99)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("ResolveAnomaly() error = %v, want ErrNotFound", err)
	}
}
