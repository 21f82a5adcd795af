package ticket

import (
	"context"
	"fmt"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/database"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/events"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
)

// fakeStore is a test fake for Store.
type fakeStore struct {
	insertedTickets []*model.Ticket
	existingTicket  *model.Ticket // returned with created=false when set
	insertTicketErr error

	tickets map[string]*model.Ticket

	openTicket    *model.Ticket
	openTicketErr error

	updateCalls  []database.TicketUpdate
	updateResult *model.Ticket
	updateErr    error

	resolvedAnomalies []int64
	resolveErr        error

	insertedAlerts []*model.Alert
	existingAlert  *model.Alert
	insertAlertErr error

	linkedAlerts      map[int64]string
	setAlertTicketErr error

	readings    []*model.TelemetryReading
	readingsErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tickets:      make(map[string]*model.Ticket),
		linkedAlerts: make(map[int64]string),
	}
}

func (f *fakeStore) InsertTicket(ctx context.Context, t *model.Ticket) (*model.Ticket, bool, error) {
	if f.insertTicketErr != nil {
		return nil, false, f.insertTicketErr
	}
	if f.existingTicket != nil {
		return f.existingTicket, false, nil
	}
	stored := *t
	stored.ID = int64(len(f.insertedTickets) + 1)
	f.insertedTickets = append(f.insertedTickets, &stored)
	f.tickets[stored.TicketID] = &stored
	return &stored, true, nil
}

func (f *fakeStore) GetTicket(ctx context.Context, ticketID string) (*model.Ticket, error) {
	t, ok := f.tickets[ticketID]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, model.ErrNotFound)
	}
	return t, nil
}

func (f *fakeStore) FindOpenTicket(ctx context.Context, deviceID string, issue model.IssueType) (*model.Ticket, error) {
	if f.openTicketErr != nil {
		return nil, f.openTicketErr
	}
	if f.openTicket == nil {
		return nil, fmt.Errorf("open ticket %s/%s: %w", deviceID, issue, model.ErrNotFound)
	}
	return f.openTicket, nil
}

func (f *fakeStore) UpdateTicket(ctx context.Context, ticketID string, update database.TicketUpdate) (*model.Ticket, error) {
	f.updateCalls = append(f.updateCalls, update)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.updateResult != nil {
		return f.updateResult, nil
	}
	current, ok := f.tickets[ticketID]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, model.ErrNotFound)
	}
	updated := *current
	if update.Status != nil {
		updated.Status = *update.Status
	}
	if update.AssignedTo != nil {
		updated.AssignedTo = *update.AssignedTo
	}
	if update.AcceptedAt != nil {
		updated.AcceptedAt = update.AcceptedAt
	}
	if update.CompletedAt != nil {
		updated.CompletedAt = update.CompletedAt
	}
	if update.WorkerNotes != nil {
		updated.WorkerNotes = *update.WorkerNotes
	}
	f.tickets[ticketID] = &updated
	return &updated, nil
}

func (f *fakeStore) ResolveAnomaly(ctx context.Context, id int64) error {
	if f.resolveErr != nil {
		return f.resolveErr
	}
	f.resolvedAnomalies = append(f.resolvedAnomalies, id)
	return nil
}

func (f *fakeStore) InsertAlert(ctx context.Context, a *model.Alert) (*model.Alert, bool, error) {
	if f.insertAlertErr != nil {
		return nil, false, f.insertAlertErr
	}
	if f.existingAlert != nil {
		return f.existingAlert, false, nil
	}
	stored := *a
	stored.ID = int64(len(f.insertedAlerts) + 1)
	f.insertedAlerts = append(f.insertedAlerts, &stored)
	return &stored, true, nil
}

func (f *fakeStore) SetAlertTicket(ctx context.Context, alertID int64, ticketID string) error {
	if f.setAlertTicketErr != nil {
		return f.setAlertTicketErr
	}
	f.linkedAlerts[alertID] = ticketID
	return nil
}

func (f *fakeStore) ReadingsForDevice(ctx context.Context, deviceID, day string, limit int) ([]*model.TelemetryReading, error) {
	if f.readingsErr != nil {
		return nil, f.readingsErr
	}
	return f.readings, nil
}

// fakeNotifier is a test fake for Notifier.
type fakeNotifier struct {
	alertCalls    []*model.Alert
	ticketCalls   []*model.Ticket
	alertSent     int
	ticketSent    int
	sendAlertErr  error
	sendTicketErr error
}

func (f *fakeNotifier) SendAlert(ctx context.Context, alert *model.Alert) (int, error) {
	f.alertCalls = append(f.alertCalls, alert)
	return f.alertSent, f.sendAlertErr
}

func (f *fakeNotifier) SendTicketNotification(ctx context.Context, ticket *model.Ticket) (int, error) {
	f.ticketCalls = append(f.ticketCalls, ticket)
	return f.ticketSent, f.sendTicketErr
}

// fakePublisher is a test fake for events.Publisher.
type fakePublisher struct {
	published []events.Event
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, event events.Event) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, event)
	return nil
}
