package database

import (
	"context"
	"fmt"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
)

// InsertAnomaly stores a detected anomaly and returns it with its
// generated id.
func (db *DB) InsertAnomaly(ctx context.Context, a *model.Anomaly) (*model.Anomaly, error) {
	query := `
		INSERT INTO anomalies (device_id, anomaly_type, severity, confidence, description, gps_lat, gps_lon, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	stored := *a
	err := db.conn.QueryRowContext(ctx, query,
		a.DeviceID, a.Type, a.Severity, a.Confidence, a.Description, a.GPSLat, a.GPSLon, a.DetectedAt,
	).Scan(&stored.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert anomaly: %w", err)
	}
	return &stored, nil
}

// ResolveAnomaly stamps the anomaly's resolved_at. Resolving an
// already-resolved anomaly keeps the original timestamp.
func (db *DB) ResolveAnomaly(ctx context.Context, id int64) error {
	query := `
		UPDATE anomalies
		SET resolved_at = COALESCE(resolved_at, NOW())
		WHERE id = $1
	`
	result, err := db.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to resolve anomaly: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("anomaly %d: %w", id, model.ErrNotFound)
	}
	return nil
}
