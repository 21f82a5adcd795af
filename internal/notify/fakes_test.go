package notify

import (
	"context"
	"sync"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
)

// sentMessage records one transport delivery attempt.
type sentMessage struct {
	phone   string
	text    string
	buttons []Button
}

// fakeTransport is a test fake for Transport. Fan-out calls it from
// multiple goroutines, so all state is mutex-guarded.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]error
	sendErr error
}

func (f *fakeTransport) SendMessage(ctx context.Context, phone, text string, buttons []Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{phone: phone, text: text, buttons: buttons})
	if err, ok := f.failFor[phone]; ok {
		return err
	}
	return f.sendErr
}

func (f *fakeTransport) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

// fakeStore is a test fake for Store.
type fakeStore struct {
	mu sync.Mutex

	contacts    []*model.Contact
	contactsErr error

	logs   []*model.NotificationLogEntry
	logErr error

	markedAlerts []int64
	markErr      error

	unnotified    []*model.Ticket
	unnotifiedErr error

	outgoingLogged map[string]bool
	outgoingErr    error
}

func (f *fakeStore) ContactsForVillage(ctx context.Context, village string) ([]*model.Contact, error) {
	if f.contactsErr != nil {
		return nil, f.contactsErr
	}
	return f.contacts, nil
}

func (f *fakeStore) InsertNotificationLog(ctx context.Context, entry *model.NotificationLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logErr != nil {
		return f.logErr
	}
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeStore) MarkAlertNotified(ctx context.Context, alertID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.markedAlerts = append(f.markedAlerts, alertID)
	return nil
}

func (f *fakeStore) FindUnnotifiedOpenTickets(ctx context.Context, limit int) ([]*model.Ticket, error) {
	if f.unnotifiedErr != nil {
		return nil, f.unnotifiedErr
	}
	return f.unnotified, nil
}

func (f *fakeStore) HasOutgoingTicketLog(ctx context.Context, ticketID string) (bool, error) {
	if f.outgoingErr != nil {
		return false, f.outgoingErr
	}
	return f.outgoingLogged[ticketID], nil
}

func (f *fakeStore) logEntries() []*model.NotificationLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.NotificationLogEntry, len(f.logs))
	copy(out, f.logs)
	return out
}
