package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
)

const ticketColumns = `id, ticket_id, anomaly_id, device_id, issue_type, severity, status, description, village, assigned_to, accepted_at, completed_at, worker_notes, created_at`

// TicketFilter narrows FindTickets results. Zero values mean "no filter".
type TicketFilter struct {
	Village    string
	Status     model.TicketStatus
	AssignedTo string
	Limit      int
}

// TicketUpdate carries the mutable ticket fields for UpdateTicket.
// Nil pointers leave the column untouched.
type TicketUpdate struct {
	Status      *model.TicketStatus
	AssignedTo  *string
	AcceptedAt  *time.Time
	CompletedAt *time.Time
	WorkerNotes *string
}

// InsertTicket stores a ticket under the (device_id, issue_type, day)
// idempotency key. If a ticket already holds that key, the existing row
// is returned and created is false.
func (db *DB) InsertTicket(ctx context.Context, t *model.Ticket) (ticket *model.Ticket, created bool, err error) {
	day := model.DayOf(t.CreatedAt)
	query := `
		INSERT INTO tickets (ticket_id, anomaly_id, device_id, issue_type, severity, status, description, village, worker_notes, created_at, ticket_day)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', $9, $10::date)
		ON CONFLICT (device_id, issue_type, ticket_day) DO NOTHING
		RETURNING ` + ticketColumns + `
	`
	row := db.conn.QueryRowContext(ctx, query,
		t.TicketID, t.AnomalyID, t.DeviceID, t.Issue, t.Severity, t.Status, t.Description, t.Village, t.CreatedAt, day,
	)
	stored, err := scanTicketRow(row)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to insert ticket: %w", err)
	}

	existing, err := db.findTicketByKey(ctx, t.DeviceID, t.Issue, day)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch existing ticket after conflict: %w", err)
	}
	slog.Debug("Ticket already exists for dedup key, reusing",
		"device_id", t.DeviceID,
		"issue_type", t.Issue,
		"day", day,
		"ticket_id", existing.TicketID,
	)
	return existing, false, nil
}

// GetTicket returns the ticket with the given human-readable ticket id,
// or ErrNotFound.
func (db *DB) GetTicket(ctx context.Context, ticketID string) (*model.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE ticket_id = $1
	`
	row := db.conn.QueryRowContext(ctx, query, ticketID)
	ticket, err := scanTicketRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return ticket, nil
}

// FindOpenTicket returns the open ticket for a device and issue type,
// or ErrNotFound. Used before materializing a virtual ticket.
func (db *DB) FindOpenTicket(ctx context.Context, deviceID string, issue model.IssueType) (*model.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE device_id = $1 AND issue_type = $2 AND status = 'open'
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := db.conn.QueryRowContext(ctx, query, deviceID, issue)
	ticket, err := scanTicketRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("open ticket %s/%s: %w", deviceID, issue, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open ticket: %w", err)
	}
	return ticket, nil
}

func (db *DB) findTicketByKey(ctx context.Context, deviceID string, issue model.IssueType, day string) (*model.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE device_id = $1 AND issue_type = $2 AND ticket_day = $3::date
	`
	row := db.conn.QueryRowContext(ctx, query, deviceID, issue, day)
	ticket, err := scanTicketRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %s/%s/%s: %w", deviceID, issue, day, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find ticket by key: %w", err)
	}
	return ticket, nil
}

// FindTickets returns persisted tickets matching the filter, most
// severe and most recent first.
func (db *DB) FindTickets(ctx context.Context, filter TicketFilter) ([]*model.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE 1=1
	`
	var args []any
	if filter.Village != "" {
		args = append(args, filter.Village)
		query += fmt.Sprintf(" AND village = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		query += fmt.Sprintf(" AND assigned_to = $%d", len(args))
	}
	query += `
		ORDER BY CASE severity
			WHEN 'critical' THEN 4
			WHEN 'high' THEN 3
			WHEN 'medium' THEN 2
			ELSE 1
		END DESC, created_at DESC
	`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*model.Ticket
	for rows.Next() {
		ticket, err := scanTicketRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

// FindUnnotifiedOpenTickets returns open tickets that have no outgoing
// ticket-type entry in the notification log. Guarantees at most one
// batch notification per open ticket per run.
func (db *DB) FindUnnotifiedOpenTickets(ctx context.Context, limit int) ([]*model.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets t
		WHERE t.status = 'open'
		  AND NOT EXISTS (
		        SELECT 1 FROM notification_log nl
		        WHERE nl.ticket_id = t.ticket_id
		          AND nl.message_type = 'ticket'
		          AND nl.direction = 'outgoing'
		      )
		ORDER BY t.created_at ASC
		LIMIT $1
	`
	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unnotified open tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*model.Ticket
	for rows.Next() {
		ticket, err := scanTicketRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

// UpdateTicket applies the given field updates and returns the updated
// ticket, or ErrNotFound.
func (db *DB) UpdateTicket(ctx context.Context, ticketID string, update TicketUpdate) (*model.Ticket, error) {
	query := `UPDATE tickets SET updated_at = NOW()`
	args := []any{ticketID}
	if update.Status != nil {
		args = append(args, *update.Status)
		query += fmt.Sprintf(", status = $%d", len(args))
	}
	if update.AssignedTo != nil {
		args = append(args, *update.AssignedTo)
		query += fmt.Sprintf(", assigned_to = $%d", len(args))
	}
	if update.AcceptedAt != nil {
		args = append(args, *update.AcceptedAt)
		query += fmt.Sprintf(", accepted_at = $%d", len(args))
	}
	if update.CompletedAt != nil {
		args = append(args, *update.CompletedAt)
		query += fmt.Sprintf(", completed_at = $%d", len(args))
	}
	if update.WorkerNotes != nil {
		args = append(args, *update.WorkerNotes)
		query += fmt.Sprintf(", worker_notes = $%d", len(args))
	}
	query += `
		WHERE ticket_id = $1
		RETURNING ` + ticketColumns

	row := db.conn.QueryRowContext(ctx, query, args...)
	ticket, err := scanTicketRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update ticket: %w", err)
	}
	return ticket, nil
}

func scanTicketRow(row rowScanner) (*model.Ticket, error) {
	var t model.Ticket
	var anomalyID sql.NullInt64
	var village, assignedTo, workerNotes sql.NullString
	var acceptedAt, completedAt sql.NullTime
	if err := row.Scan(
		&t.ID,
		&t.TicketID,
		&anomalyID,
		&t.DeviceID,
		&t.Issue,
		&t.Severity,
		&t.Status,
		&t.Description,
		&village,
		&assignedTo,
		&acceptedAt,
		&completedAt,
		&workerNotes,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}
	if anomalyID.Valid {
		t.AnomalyID = &anomalyID.Int64
	}
	t.Village = village.String
	t.AssignedTo = assignedTo.String
	t.WorkerNotes = workerNotes.String
	if acceptedAt.Valid {
		t.AcceptedAt = &acceptedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}
