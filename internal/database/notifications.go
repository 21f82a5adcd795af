package database

import (
	"context"
	"fmt"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
)

// InsertNotificationLog appends one delivery-attempt record to the
// notification audit trail.
func (db *DB) InsertNotificationLog(ctx context.Context, entry *model.NotificationLogEntry) error {
	query := `
		INSERT INTO notification_log (id, contact_id, ticket_id, message_type, direction, status, detail, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
	`
	_, err := db.conn.ExecContext(ctx, query,
		entry.ID, entry.ContactID, entry.TicketID, entry.MessageType,
		entry.Direction, entry.Status, entry.Detail, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification log entry: %w", err)
	}
	return nil
}

// HasOutgoingTicketLog reports whether the ticket already has an
// outgoing ticket-type entry in the audit trail.
func (db *DB) HasOutgoingTicketLog(ctx context.Context, ticketID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notification_log
			WHERE ticket_id = $1
			  AND message_type = 'ticket'
			  AND direction = 'outgoing'
		)
	`
	var exists bool
	if err := db.conn.QueryRowContext(ctx, query, ticketID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check notification log: %w", err)
	}
	return exists, nil
}
