// Package notify dispatches alert and ticket notifications to opted-in
// contacts over a send-message transport, logging every delivery
// attempt. Delivery is best effort: a failed or slow contact never
// blocks other contacts or the classification pipeline.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/retry"
)

// openTicketBatchLimit bounds one SendForAllOpenTickets pass.
const openTicketBatchLimit = 100

// Button is an interactive reply option attached to a message.
type Button struct {
	ID    string
	Title string
}

// Transport delivers one message to one phone number. Implementations
// are external collaborators (WhatsApp client); failures are returned,
// never fatal.
type Transport interface {
	SendMessage(ctx context.Context, phone, text string, buttons []Button) error
}

// Store is the persistence surface the dispatcher needs.
type Store interface {
	ContactsForVillage(ctx context.Context, village string) ([]*model.Contact, error)
	InsertNotificationLog(ctx context.Context, entry *model.NotificationLogEntry) error
	MarkAlertNotified(ctx context.Context, alertID int64) error
	FindUnnotifiedOpenTickets(ctx context.Context, limit int) ([]*model.Ticket, error)
	HasOutgoingTicketLog(ctx context.Context, ticketID string) (bool, error)
}

// Dispatcher fans notifications out to contacts.
type Dispatcher struct {
	store     Store
	transport Transport
	retryCfg  retry.Config
}

// NewDispatcher creates a dispatcher over the given store and transport.
func NewDispatcher(store Store, transport Transport) *Dispatcher {
	return &Dispatcher{
		store:     store,
		transport: transport,
		retryCfg:  retry.DefaultConfig(),
	}
}

// SendAlert notifies all contacts covering the alert's village and
// returns the number of successful deliveries. The alert's
// whatsapp_sent flag is set once at least one send attempt has
// completed, regardless of delivery outcome.
func (d *Dispatcher) SendAlert(ctx context.Context, alert *model.Alert) (int, error) {
	contacts, err := d.store.ContactsForVillage(ctx, alert.Village)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve contacts for alert: %w", err)
	}
	if len(contacts) == 0 {
		slog.Info("No opted-in contacts for alert",
			"alert_id", alert.ID,
			"village", alert.Village,
		)
		return 0, nil
	}

	text := formatAlertMessage(alert)
	var buttons []Button
	if alert.TicketID != "" {
		buttons = ticketButtons(alert.TicketID)
	}

	sent := d.fanOut(ctx, contacts, text, buttons, model.MessageTypeAlert, alert.TicketID)
	slog.Info("Alert notification dispatched",
		"alert_id", alert.ID,
		"contacts", len(contacts),
		"delivered", sent,
	)

	if err := d.store.MarkAlertNotified(ctx, alert.ID); err != nil {
		slog.Warn("Failed to mark alert as notified", "alert_id", alert.ID, "error", err)
	}
	return sent, nil
}

// SendTicketNotification notifies all contacts covering the ticket's
// village about the new work item and returns the number of successful
// deliveries.
func (d *Dispatcher) SendTicketNotification(ctx context.Context, ticket *model.Ticket) (int, error) {
	contacts, err := d.store.ContactsForVillage(ctx, ticket.Village)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve contacts for ticket: %w", err)
	}
	if len(contacts) == 0 {
		slog.Info("No opted-in contacts for ticket",
			"ticket_id", ticket.TicketID,
			"village", ticket.Village,
		)
		return 0, nil
	}

	text := formatTicketMessage(ticket)
	sent := d.fanOut(ctx, contacts, text, ticketButtons(ticket.TicketID), model.MessageTypeTicket, ticket.TicketID)
	slog.Info("Ticket notification dispatched",
		"ticket_id", ticket.TicketID,
		"contacts", len(contacts),
		"delivered", sent,
	)
	return sent, nil
}

// SendForAllOpenTickets notifies every open ticket that has no prior
// outgoing ticket-type log entry, so each open ticket receives at most
// one batch notification per processing run. Returns the number of
// tickets notified.
func (d *Dispatcher) SendForAllOpenTickets(ctx context.Context) (int, error) {
	tickets, err := d.store.FindUnnotifiedOpenTickets(ctx, openTicketBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to find unnotified open tickets: %w", err)
	}

	notified := 0
	for _, ticket := range tickets {
		// The batch query may be stale by now; re-check before sending.
		sent, err := d.store.HasOutgoingTicketLog(ctx, ticket.TicketID)
		if err != nil {
			slog.Warn("Failed to check ticket notification log, skipping",
				"ticket_id", ticket.TicketID,
				"error", err,
			)
			continue
		}
		if sent {
			continue
		}

		if _, err := d.SendTicketNotification(ctx, ticket); err != nil {
			slog.Warn("Failed to notify open ticket, continuing",
				"ticket_id", ticket.TicketID,
				"error", err,
			)
			continue
		}
		notified++
	}
	return notified, nil
}

// fanOut sends the message to each contact concurrently: one slow or
// failed contact must not delay the others. Every attempt is logged to
// the audit trail. Returns the number of successful deliveries.
func (d *Dispatcher) fanOut(ctx context.Context, contacts []*model.Contact, text string, buttons []Button, messageType, ticketID string) int {
	var delivered atomic.Int64
	var wg sync.WaitGroup

	for _, contact := range contacts {
		wg.Add(1)
		go func(contact *model.Contact) {
			defer wg.Done()

			operation := fmt.Sprintf("send_%s_%s", messageType, contact.Phone)
			err := retry.WithRetry(ctx, d.retryCfg, operation, func() error {
				return d.transport.SendMessage(ctx, contact.Phone, text, buttons)
			})

			status := model.DeliverySent
			detail := ""
			if err != nil {
				status = model.DeliveryFailed
				detail = err.Error()
				slog.Warn("Failed to deliver notification",
					"contact_id", contact.ID,
					"message_type", messageType,
					"error", err,
				)
			} else {
				delivered.Add(1)
			}

			entry := &model.NotificationLogEntry{
				ID:          uuid.NewString(),
				ContactID:   contact.ID,
				TicketID:    ticketID,
				MessageType: messageType,
				Direction:   model.DirectionOutgoing,
				Status:      status,
				Detail:      detail,
				CreatedAt:   time.Now().UTC(),
			}
			if err := d.store.InsertNotificationLog(ctx, entry); err != nil {
				slog.Error("Failed to write notification log entry",
					"contact_id", contact.ID,
					"message_type", messageType,
					"error", err,
				)
			}
		}(contact)
	}

	wg.Wait()
	return int(delivered.Load())
}

// ticketButtons builds the accept/reject interactive prompt for a ticket.
func ticketButtons(ticketID string) []Button {
	return []Button{
		{ID: "accept_" + ticketID, Title: "Accept"},
		{ID: "reject_" + ticketID, Title: "Reject"},
	}
}

func formatAlertMessage(alert *model.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] Water Alert\n", strings.ToUpper(string(alert.Severity)))
	fmt.Fprintf(&b, "Device: %s\n", alert.DeviceID)
	if alert.Village != "" {
		fmt.Fprintf(&b, "Village: %s\n", alert.Village)
	}
	fmt.Fprintf(&b, "%s\n", alert.Message)
	fmt.Fprintf(&b, "Time: %s", alert.SentAt.UTC().Format(time.RFC1123))
	return b.String()
}

func formatTicketMessage(ticket *model.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] Work Ticket %s\n", strings.ToUpper(string(ticket.Severity)), ticket.TicketID)
	fmt.Fprintf(&b, "Issue: %s\n", ticket.Issue)
	fmt.Fprintf(&b, "Device: %s\n", ticket.DeviceID)
	if ticket.Village != "" {
		fmt.Fprintf(&b, "Village: %s\n", ticket.Village)
	}
	if ticket.Description != "" {
		fmt.Fprintf(&b, "%s\n", ticket.Description)
	}
	b.WriteString("Reply to accept or reject this ticket.")
	return b.String()
}
