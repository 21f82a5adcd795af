// Package events defines the engine's produced events and the
// publisher boundary callers use to drive real-time UI pushes.
package events

import (
	"context"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
)

// SchemaVersion is the current event schema version.
const SchemaVersion = 1

// Event kinds.
const (
	KindAlertCreated        = "alert.created"
	KindTicketCreated       = "ticket.created"
	KindTicketStatusChanged = "ticket.status_changed"
)

// Event is one engine-produced event. Key is the partitioning key so
// events for one device stay ordered.
type Event interface {
	Kind() string
	Key() string
}

// Publisher is the broadcast side-channel the engine publishes through.
// The engine owns no subscriber bookkeeping.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoOp is a Publisher that discards all events. Use when no broker is
// configured.
type NoOp struct{}

func (NoOp) Publish(context.Context, Event) error { return nil }

var _ Publisher = NoOp{}

// AlertCreated announces a newly persisted alert.
type AlertCreated struct {
	SchemaVersion int             `json:"schema_version"`
	EventTS       int64           `json:"event_ts"`
	AlertID       int64           `json:"alert_id"`
	DeviceID      string          `json:"device_id"`
	Issue         model.IssueType `json:"issue_type"`
	Severity      model.Severity  `json:"severity"`
	Village       string          `json:"village,omitempty"`
	Message       string          `json:"message"`
}

func (AlertCreated) Kind() string  { return KindAlertCreated }
func (e AlertCreated) Key() string { return e.DeviceID }

// TicketCreated announces a newly persisted ticket.
type TicketCreated struct {
	SchemaVersion int             `json:"schema_version"`
	EventTS       int64           `json:"event_ts"`
	TicketID      string          `json:"ticket_id"`
	DeviceID      string          `json:"device_id"`
	Issue         model.IssueType `json:"issue_type"`
	Severity      model.Severity  `json:"severity"`
	Village       string          `json:"village,omitempty"`
}

func (TicketCreated) Kind() string  { return KindTicketCreated }
func (e TicketCreated) Key() string { return e.DeviceID }

// TicketStatusChanged announces a ticket lifecycle transition.
type TicketStatusChanged struct {
	SchemaVersion int                `json:"schema_version"`
	EventTS       int64              `json:"event_ts"`
	TicketID      string             `json:"ticket_id"`
	DeviceID      string             `json:"device_id"`
	OldStatus     model.TicketStatus `json:"old_status"`
	NewStatus     model.TicketStatus `json:"new_status"`
	AssignedTo    string             `json:"assigned_to,omitempty"`
}

func (TicketStatusChanged) Kind() string  { return KindTicketStatusChanged }
func (e TicketStatusChanged) Key() string { return e.DeviceID }
