// Package ticket implements the ticket lifecycle: creation, the status
// state machine, worker assignment, virtual-ticket materialization, and
// alert-to-ticket escalation.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/classify"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/database"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/events"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
)

// materializeScanLimit bounds the telemetry lookback when materializing
// a virtual ticket.
const materializeScanLimit = 50

// ErrIllegalTransition is returned when a requested status change is
// not allowed by the state machine.
var ErrIllegalTransition = errors.New("illegal status transition")

// Store is the persistence surface the controller needs.
type Store interface {
	InsertTicket(ctx context.Context, t *model.Ticket) (*model.Ticket, bool, error)
	GetTicket(ctx context.Context, ticketID string) (*model.Ticket, error)
	FindOpenTicket(ctx context.Context, deviceID string, issue model.IssueType) (*model.Ticket, error)
	UpdateTicket(ctx context.Context, ticketID string, update database.TicketUpdate) (*model.Ticket, error)
	ResolveAnomaly(ctx context.Context, id int64) error
	InsertAlert(ctx context.Context, a *model.Alert) (*model.Alert, bool, error)
	SetAlertTicket(ctx context.Context, alertID int64, ticketID string) error
	ReadingsForDevice(ctx context.Context, deviceID, day string, limit int) ([]*model.TelemetryReading, error)
}

// Notifier dispatches best-effort notifications, returning the number
// of successful deliveries. Failures are logged and never fail the
// mutating operation.
type Notifier interface {
	SendAlert(ctx context.Context, alert *model.Alert) (int, error)
	SendTicketNotification(ctx context.Context, ticket *model.Ticket) (int, error)
}

// TicketResult is the outcome of CreateTicket.
type TicketResult struct {
	Ticket   *model.Ticket
	Created  bool
	Notified int // successful notification deliveries
}

// AlertResult is the outcome of CreateAlert. Notified includes
// deliveries for the escalation ticket, when one was created.
type AlertResult struct {
	Alert         *model.Alert
	Created       bool
	TicketCreated bool
	Notified      int
}

// Controller drives the ticket lifecycle.
type Controller struct {
	store     Store
	notifier  Notifier
	publisher events.Publisher
	rules     classify.Ruleset
}

// NewController creates a lifecycle controller. The publisher may be
// events.NoOp{} when no broker is configured.
func NewController(store Store, notifier Notifier, publisher events.Publisher, rules classify.Ruleset) *Controller {
	if publisher == nil {
		publisher = events.NoOp{}
	}
	return &Controller{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		rules:     rules,
	}
}

// NewTicketID generates a globally unique, human-readable ticket id.
func NewTicketID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("WTK-%s-%s", time.Now().UTC().Format("20060102150405"), suffix)
}

// legalTransitions lists every allowed direct status change.
// accepted→open models explicit rejection; completed and closed are
// terminal for the engine.
var legalTransitions = map[model.TicketStatus][]model.TicketStatus{
	model.StatusOpen:       {model.StatusAccepted},
	model.StatusAccepted:   {model.StatusInProgress, model.StatusOpen},
	model.StatusInProgress: {model.StatusCompleted},
}

func transitionAllowed(from, to model.TicketStatus) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CreateTicket inserts a new open ticket under the per-day idempotency
// key, notifies contacts, and publishes TicketCreated. When a ticket
// already holds the key, the existing ticket is returned with created
// false and no side effects fire. Notification failure never fails
// creation.
func (c *Controller) CreateTicket(ctx context.Context, t *model.Ticket) (*TicketResult, error) {
	if t.TicketID == "" {
		t.TicketID = NewTicketID()
	}
	t.Status = model.StatusOpen
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	stored, created, err := c.store.InsertTicket(ctx, t)
	if err != nil {
		return nil, err
	}
	if !created {
		return &TicketResult{Ticket: stored}, nil
	}

	slog.Info("Created ticket",
		"ticket_id", stored.TicketID,
		"device_id", stored.DeviceID,
		"issue_type", stored.Issue,
		"severity", stored.Severity,
	)

	notified, err := c.notifier.SendTicketNotification(ctx, stored)
	if err != nil {
		slog.Warn("Ticket notification failed, continuing",
			"ticket_id", stored.TicketID,
			"error", err,
		)
	}
	c.publish(ctx, events.TicketCreated{
		SchemaVersion: events.SchemaVersion,
		EventTS:       time.Now().Unix(),
		TicketID:      stored.TicketID,
		DeviceID:      stored.DeviceID,
		Issue:         stored.Issue,
		Severity:      stored.Severity,
		Village:       stored.Village,
	})

	return &TicketResult{Ticket: stored, Created: true, Notified: notified}, nil
}

// CreateAlert inserts an alert under the per-day idempotency key,
// escalates high and critical severities to a linked open ticket, and
// dispatches the alert notification. Duplicate keys return the
// existing alert without re-notifying, but an existing high or
// critical alert left without a ticket by an earlier failed
// escalation is escalated again.
func (c *Controller) CreateAlert(ctx context.Context, a *model.Alert) (*AlertResult, error) {
	if a.SentAt.IsZero() {
		a.SentAt = time.Now().UTC()
	}

	stored, created, err := c.store.InsertAlert(ctx, a)
	if err != nil {
		return nil, err
	}
	if !created {
		result := &AlertResult{Alert: stored}
		if stored.Severity.RequiresTicket() && stored.TicketID == "" {
			if err := c.escalateAlert(ctx, stored, result); err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	slog.Info("Created alert",
		"alert_id", stored.ID,
		"device_id", stored.DeviceID,
		"issue_type", stored.Issue,
		"severity", stored.Severity,
	)
	c.publish(ctx, events.AlertCreated{
		SchemaVersion: events.SchemaVersion,
		EventTS:       time.Now().Unix(),
		AlertID:       stored.ID,
		DeviceID:      stored.DeviceID,
		Issue:         stored.Issue,
		Severity:      stored.Severity,
		Village:       stored.Village,
		Message:       stored.Message,
	})

	result := &AlertResult{Alert: stored, Created: true}

	if stored.Severity.RequiresTicket() {
		if err := c.escalateAlert(ctx, stored, result); err != nil {
			return nil, err
		}
	}

	notified, err := c.notifier.SendAlert(ctx, stored)
	if err != nil {
		slog.Warn("Alert notification failed, continuing",
			"alert_id", stored.ID,
			"error", err,
		)
	}
	result.Notified += notified

	return result, nil
}

// escalateAlert creates (or finds, via the ticket idempotency key) the
// open ticket backing a high or critical alert and links it. Safe to
// call again after a failed attempt.
func (c *Controller) escalateAlert(ctx context.Context, stored *model.Alert, result *AlertResult) error {
	escalated, err := c.CreateTicket(ctx, &model.Ticket{
		AnomalyID:   stored.AnomalyID,
		DeviceID:    stored.DeviceID,
		Issue:       stored.Issue,
		Severity:    stored.Severity,
		Description: stored.Message,
		Village:     stored.Village,
		CreatedAt:   stored.SentAt,
	})
	if err != nil {
		return fmt.Errorf("failed to escalate alert %d to ticket: %w", stored.ID, err)
	}
	if err := c.store.SetAlertTicket(ctx, stored.ID, escalated.Ticket.TicketID); err != nil {
		return fmt.Errorf("failed to link alert %d to ticket %s: %w", stored.ID, escalated.Ticket.TicketID, err)
	}
	stored.TicketID = escalated.Ticket.TicketID
	result.TicketCreated = escalated.Created
	result.Notified += escalated.Notified
	return nil
}

// UpdateStatus applies a status transition to a persisted or virtual
// ticket. Virtual references first reuse an existing open ticket for
// the same device and issue, otherwise a persisted ticket is
// materialized from the most recent matching telemetry; with no
// backing telemetry the operation fails with ErrNotFound.
//
// An actor claiming an unassigned ticket becomes its assignee;
// later claims by other actors do not override. Non-nil notes
// overwrite worker_notes. Completing a ticket resolves its linked
// anomaly.
func (c *Controller) UpdateStatus(ctx context.Context, ref model.TicketRef, newStatus model.TicketStatus, actor string, notes *string) (*model.Ticket, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("unknown ticket status %q", newStatus)
	}

	current, err := c.resolveTicket(ctx, ref)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(current.Status, newStatus) {
		return nil, fmt.Errorf("ticket %s: %s -> %s: %w",
			current.TicketID, current.Status, newStatus, ErrIllegalTransition)
	}

	now := time.Now().UTC()
	update := database.TicketUpdate{Status: &newStatus}
	switch newStatus {
	case model.StatusAccepted:
		update.AcceptedAt = &now
	case model.StatusCompleted:
		update.CompletedAt = &now
	}
	if actor != "" && current.AssignedTo == "" {
		update.AssignedTo = &actor
	}
	if notes != nil {
		update.WorkerNotes = notes
	}

	updated, err := c.store.UpdateTicket(ctx, current.TicketID, update)
	if err != nil {
		return nil, err
	}

	if newStatus == model.StatusCompleted && updated.AnomalyID != nil {
		if err := c.store.ResolveAnomaly(ctx, *updated.AnomalyID); err != nil {
			slog.Warn("Failed to resolve linked anomaly",
				"ticket_id", updated.TicketID,
				"anomaly_id", *updated.AnomalyID,
				"error", err,
			)
		}
	}

	slog.Info("Ticket status changed",
		"ticket_id", updated.TicketID,
		"old_status", current.Status,
		"new_status", updated.Status,
		"assigned_to", updated.AssignedTo,
	)
	c.publish(ctx, events.TicketStatusChanged{
		SchemaVersion: events.SchemaVersion,
		EventTS:       now.Unix(),
		TicketID:      updated.TicketID,
		DeviceID:      updated.DeviceID,
		OldStatus:     current.Status,
		NewStatus:     updated.Status,
		AssignedTo:    updated.AssignedTo,
	})

	return updated, nil
}

// resolveTicket maps a ticket reference to a persisted ticket,
// materializing virtual references as needed.
func (c *Controller) resolveTicket(ctx context.Context, ref model.TicketRef) (*model.Ticket, error) {
	if !ref.IsVirtual() {
		return c.store.GetTicket(ctx, ref.TicketID)
	}

	existing, err := c.store.FindOpenTicket(ctx, ref.Virtual.DeviceID, ref.Virtual.Issue)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	return c.materialize(ctx, *ref.Virtual)
}

// materialize creates a persisted ticket from the most recent telemetry
// row whose classification matches the virtual reference's issue type.
func (c *Controller) materialize(ctx context.Context, ref model.VirtualRef) (*model.Ticket, error) {
	readings, err := c.store.ReadingsForDevice(ctx, ref.DeviceID, ref.Day, materializeScanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to scan telemetry for materialization: %w", err)
	}

	for _, r := range readings {
		finding := classify.Evaluate(r, c.rules)
		if finding == nil || finding.Issue != ref.Issue {
			continue
		}

		result, err := c.CreateTicket(ctx, &model.Ticket{
			DeviceID:    ref.DeviceID,
			Issue:       ref.Issue,
			Severity:    finding.Severity,
			Description: finding.Description,
			Village:     r.Village,
			CreatedAt:   r.Timestamp,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to materialize virtual ticket %s: %w", ref.ID(), err)
		}
		if result.Created {
			slog.Info("Materialized virtual ticket",
				"ticket_id", result.Ticket.TicketID,
				"device_id", ref.DeviceID,
				"issue_type", ref.Issue,
			)
		}
		return result.Ticket, nil
	}

	return nil, fmt.Errorf("no backing telemetry for virtual ticket %s: %w", ref.ID(), model.ErrNotFound)
}

func (c *Controller) publish(ctx context.Context, event events.Event) {
	if err := c.publisher.Publish(ctx, event); err != nil {
		slog.Warn("Failed to publish engine event", "kind", event.Kind(), "error", err)
	}
}
