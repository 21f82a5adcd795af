package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
)

// readingColumns is the column list shared by every reading query.
const readingColumns = `id, device_id, ts, flow_rate, pressure, turbidity, temperature, ph, conductivity, gps_lat, gps_lon, village, metadata`

// truthyFlagValues matches the metadata flag encodings accepted by the
// classifier. Kept in SQL so the unprocessed scan and the Go-side
// parser agree on what counts as asserted.
const truthyFlagValues = `('true', 'True', 'TRUE', '1')`

// InsertReading stores one telemetry reading and returns it with its
// generated id.
func (db *DB) InsertReading(ctx context.Context, r *model.TelemetryReading) (*model.TelemetryReading, error) {
	metadataJSON, err := marshalMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO telemetry_readings (device_id, ts, flow_rate, pressure, turbidity, temperature, ph, conductivity, gps_lat, gps_lon, village, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	stored := *r
	err = db.conn.QueryRowContext(ctx, query,
		r.DeviceID, r.Timestamp, r.FlowRate, r.Pressure, r.Turbidity, r.Temperature,
		r.PH, r.Conductivity, r.GPSLat, r.GPSLon, r.Village, metadataJSON,
	).Scan(&stored.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reading: %w", err)
	}
	return &stored, nil
}

// ScanRecent returns the most recent readings, newest first.
func (db *DB) ScanRecent(ctx context.Context, limit int) ([]*model.TelemetryReading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM telemetry_readings
		ORDER BY ts DESC
		LIMIT $1
	`
	return db.queryReadings(ctx, query, limit)
}

// sameDayAnomaly matches anomalies recorded for the reading's device on
// the reading's UTC calendar day.
const sameDayAnomaly = `
		        SELECT 1 FROM anomalies a
		        WHERE a.device_id = r.device_id
		          AND (a.detected_at AT TIME ZONE 'UTC')::date = (r.ts AT TIME ZONE 'UTC')::date`

// ScanUnprocessed returns recent readings that still need attention:
// rows carrying a dataset-asserted flag whose anomaly has not been
// recorded yet, or rows from devices with no anomaly recorded for the
// reading's calendar day. A flagged row stops qualifying once the
// anomaly its flag maps to exists, so repeated scans drain instead of
// re-selecting it.
func (db *DB) ScanUnprocessed(ctx context.Context, limit int) ([]*model.TelemetryReading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM telemetry_readings r
		WHERE ((r.metadata->>'leak_flag') IN ` + truthyFlagValues + ` AND NOT EXISTS (` + sameDayAnomaly + `
		          AND a.anomaly_type = 'leak'))
		   OR ((r.metadata->>'contamination_flag') IN ` + truthyFlagValues + ` AND NOT EXISTS (` + sameDayAnomaly + `
		          AND a.anomaly_type = 'contamination'))
		   OR ((r.metadata->>'anomaly_flag') IN ` + truthyFlagValues + ` AND NOT EXISTS (` + sameDayAnomaly + `
		          AND a.anomaly_type = 'pressure_anomaly'))
		   OR NOT EXISTS (` + sameDayAnomaly + `)
		ORDER BY r.ts DESC
		LIMIT $1
	`
	return db.queryReadings(ctx, query, limit)
}

// ReadingsForDevice returns a device's readings for one calendar day,
// newest first. Used to materialize virtual tickets from backing
// telemetry.
func (db *DB) ReadingsForDevice(ctx context.Context, deviceID, day string, limit int) ([]*model.TelemetryReading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM telemetry_readings
		WHERE device_id = $1
		  AND (ts AT TIME ZONE 'UTC')::date = $2::date
		ORDER BY ts DESC
		LIMIT $3
	`
	return db.queryReadings(ctx, query, deviceID, day, limit)
}

func (db *DB) queryReadings(ctx context.Context, query string, args ...any) ([]*model.TelemetryReading, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []*model.TelemetryReading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

func scanReading(rows *sql.Rows) (*model.TelemetryReading, error) {
	var r model.TelemetryReading
	var village sql.NullString
	var metadataJSON sql.NullString
	if err := rows.Scan(
		&r.ID,
		&r.DeviceID,
		&r.Timestamp,
		&r.FlowRate,
		&r.Pressure,
		&r.Turbidity,
		&r.Temperature,
		&r.PH,
		&r.Conductivity,
		&r.GPSLat,
		&r.GPSLon,
		&village,
		&metadataJSON,
	); err != nil {
		return nil, fmt.Errorf("failed to scan reading: %w", err)
	}
	r.Village = village.String
	r.Metadata = unmarshalMetadata(metadataJSON, "device_id", r.DeviceID)
	return &r, nil
}

// marshalMetadata serializes a metadata map, mapping nil to SQL NULL.
func marshalMetadata(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(data), nil
}

// unmarshalMetadata deserializes metadata JSON, tolerating NULL and
// malformed content.
func unmarshalMetadata(metadataJSON sql.NullString, warnAttrs ...any) map[string]any {
	if !metadataJSON.Valid || metadataJSON.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(metadataJSON.String), &m); err != nil {
		slog.Warn("Failed to unmarshal reading metadata", append([]any{"error", err}, warnAttrs...)...)
		return nil
	}
	return m
}
