package reconcile

import (
	"context"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/database"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
)

// fakeStore is a test fake for Store.
type fakeStore struct {
	alerts    []*model.Alert
	alertsErr error

	tickets    []*model.Ticket
	ticketsErr error

	readings    []*model.TelemetryReading
	readingsErr error

	alertFilters  []database.AlertFilter
	ticketFilters []database.TicketFilter
	scanCalls     int
}

func (f *fakeStore) FindAlerts(ctx context.Context, filter database.AlertFilter) ([]*model.Alert, error) {
	f.alertFilters = append(f.alertFilters, filter)
	if f.alertsErr != nil {
		return nil, f.alertsErr
	}
	return f.alerts, nil
}

func (f *fakeStore) FindTickets(ctx context.Context, filter database.TicketFilter) ([]*model.Ticket, error) {
	f.ticketFilters = append(f.ticketFilters, filter)
	if f.ticketsErr != nil {
		return nil, f.ticketsErr
	}
	return f.tickets, nil
}

func (f *fakeStore) ScanRecent(ctx context.Context, limit int) ([]*model.TelemetryReading, error) {
	f.scanCalls++
	if f.readingsErr != nil {
		return nil, f.readingsErr
	}
	return f.readings, nil
}
