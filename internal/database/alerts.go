package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
)

const alertColumns = `id, anomaly_id, device_id, issue_type, severity, message, village, ticket_id, acknowledged, whatsapp_sent, sent_at`

// AlertFilter narrows FindAlerts results. Zero values mean "no filter".
type AlertFilter struct {
	Village      string
	Severity     model.Severity
	Acknowledged *bool
	Limit        int
}

// InsertAlert stores an alert under the (device_id, issue_type, day)
// idempotency key. If an alert already holds that key, the existing row
// is returned and created is false; concurrent creators for the same
// key converge on one row.
func (db *DB) InsertAlert(ctx context.Context, a *model.Alert) (alert *model.Alert, created bool, err error) {
	day := model.DayOf(a.SentAt)
	query := `
		INSERT INTO alerts (anomaly_id, device_id, issue_type, severity, message, village, acknowledged, whatsapp_sent, sent_at, alert_day)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, FALSE, $7, $8::date)
		ON CONFLICT (device_id, issue_type, alert_day) DO NOTHING
		RETURNING ` + alertColumns + `
	`
	row := db.conn.QueryRowContext(ctx, query,
		a.AnomalyID, a.DeviceID, a.Issue, a.Severity, a.Message, a.Village, a.SentAt, day,
	)
	stored, err := scanAlertRow(row)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to insert alert: %w", err)
	}

	// Conflict: another alert already holds the dedup key.
	existing, err := db.FindExistingAlert(ctx, a.DeviceID, a.Issue, day)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch existing alert after conflict: %w", err)
	}
	slog.Debug("Alert already exists for dedup key, reusing",
		"device_id", a.DeviceID,
		"issue_type", a.Issue,
		"day", day,
		"alert_id", existing.ID,
	)
	return existing, false, nil
}

// FindExistingAlert returns the persisted alert holding the given
// dedup key, or ErrNotFound.
func (db *DB) FindExistingAlert(ctx context.Context, deviceID string, issue model.IssueType, day string) (*model.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE device_id = $1 AND issue_type = $2 AND alert_day = $3::date
	`
	row := db.conn.QueryRowContext(ctx, query, deviceID, issue, day)
	alert, err := scanAlertRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s/%s/%s: %w", deviceID, issue, day, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find existing alert: %w", err)
	}
	return alert, nil
}

// FindAlerts returns persisted alerts matching the filter, most severe
// and most recent first.
func (db *DB) FindAlerts(ctx context.Context, filter AlertFilter) ([]*model.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE 1=1
	`
	var args []any
	if filter.Village != "" {
		args = append(args, filter.Village)
		query += fmt.Sprintf(" AND village = $%d", len(args))
	}
	if filter.Severity != "" {
		args = append(args, filter.Severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if filter.Acknowledged != nil {
		args = append(args, *filter.Acknowledged)
		query += fmt.Sprintf(" AND acknowledged = $%d", len(args))
	}
	query += `
		ORDER BY CASE severity
			WHEN 'critical' THEN 4
			WHEN 'high' THEN 3
			WHEN 'medium' THEN 2
			ELSE 1
		END DESC, sent_at DESC
	`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*model.Alert
	for rows.Next() {
		alert, err := scanAlertRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// SetAlertTicket links an alert to its escalation ticket.
func (db *DB) SetAlertTicket(ctx context.Context, alertID int64, ticketID string) error {
	return db.execAlertUpdate(ctx, alertID,
		`UPDATE alerts SET ticket_id = $2 WHERE id = $1`, ticketID)
}

// MarkAlertNotified records that at least one notification attempt
// completed for the alert.
func (db *DB) MarkAlertNotified(ctx context.Context, alertID int64) error {
	return db.execAlertUpdate(ctx, alertID,
		`UPDATE alerts SET whatsapp_sent = TRUE WHERE id = $1`)
}

// AcknowledgeAlert marks an alert as acknowledged by an operator.
func (db *DB) AcknowledgeAlert(ctx context.Context, alertID int64) error {
	return db.execAlertUpdate(ctx, alertID,
		`UPDATE alerts SET acknowledged = TRUE WHERE id = $1`)
}

func (db *DB) execAlertUpdate(ctx context.Context, alertID int64, query string, extraArgs ...any) error {
	args := append([]any{alertID}, extraArgs...)
	result, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("alert %d: %w", alertID, model.ErrNotFound)
	}
	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for the shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlertRow(row rowScanner) (*model.Alert, error) {
	var a model.Alert
	var anomalyID sql.NullInt64
	var village, ticketID sql.NullString
	if err := row.Scan(
		&a.ID,
		&anomalyID,
		&a.DeviceID,
		&a.Issue,
		&a.Severity,
		&a.Message,
		&village,
		&ticketID,
		&a.Acknowledged,
		&a.WhatsappSent,
		&a.SentAt,
	); err != nil {
		return nil, err
	}
	if anomalyID.Valid {
		a.AnomalyID = &anomalyID.Int64
	}
	a.Village = village.String
	a.TicketID = ticketID.String
	return &a, nil
}
