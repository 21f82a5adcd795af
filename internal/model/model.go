// Package model defines the domain types shared across the engine:
// telemetry readings, anomalies, alerts, tickets, contacts, and the
// dedup/virtual-reference value objects.
package model

import (
	"time"
)

// TelemetryReading is one raw sensor sample from a field device.
// Readings are immutable once stored; the ingestion path owns them.
type TelemetryReading struct {
	ID           int64          `json:"id"`
	DeviceID     string         `json:"device_id"`
	Timestamp    time.Time      `json:"timestamp"`
	FlowRate     *float64       `json:"flow_rate,omitempty"`
	Pressure     *float64       `json:"pressure,omitempty"`
	Turbidity    *float64       `json:"turbidity,omitempty"`
	Temperature  *float64       `json:"temperature,omitempty"`
	PH           *float64       `json:"ph,omitempty"`
	Conductivity *float64       `json:"conductivity,omitempty"`
	GPSLat       *float64       `json:"gps_lat,omitempty"`
	GPSLon       *float64       `json:"gps_lon,omitempty"`
	Village      string         `json:"village,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Anomaly is a detected deviation from normal sensor behavior,
// independent of whether anyone has been notified about it.
type Anomaly struct {
	ID          int64      `json:"id"`
	DeviceID    string     `json:"device_id"`
	Type        IssueType  `json:"anomaly_type"`
	Severity    Severity   `json:"severity"`
	Confidence  float64    `json:"confidence"` // 0-100
	Description string     `json:"description"`
	GPSLat      *float64   `json:"gps_lat,omitempty"`
	GPSLon      *float64   `json:"gps_lon,omitempty"`
	DetectedAt  time.Time  `json:"detected_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Alert is a notification-worthy occurrence of an anomaly. Persisted
// alerts are rows in the store; virtual alerts are synthesized at read
// time from telemetry and never written back.
type Alert struct {
	ID           int64       `json:"id"`
	AnomalyID    *int64      `json:"anomaly_id,omitempty"`
	DeviceID     string      `json:"device_id"`
	Issue        IssueType   `json:"issue_type"`
	Severity     Severity    `json:"severity"`
	Message      string      `json:"message"`
	Village      string      `json:"village,omitempty"`
	TicketID     string      `json:"ticket_id,omitempty"`
	Acknowledged bool        `json:"acknowledged"`
	WhatsappSent bool        `json:"whatsapp_sent"`
	SentAt       time.Time   `json:"sent_at"`
	IsDynamic    bool        `json:"is_dynamic"`
	Virtual      *VirtualRef `json:"virtual_ref,omitempty"`
}

// Key returns the deduplication key for the alert.
func (a *Alert) Key() DedupKey {
	return DedupKey{DeviceID: a.DeviceID, Issue: a.Issue, Day: DayOf(a.SentAt)}
}

// Ticket is an actionable, assignable work item created for
// sufficiently severe alerts. Virtual tickets mirror virtual alerts and
// are materialized into rows on the first mutating action.
type Ticket struct {
	ID          int64        `json:"id"`
	TicketID    string       `json:"ticket_id"`
	AnomalyID   *int64       `json:"anomaly_id,omitempty"`
	DeviceID    string       `json:"device_id"`
	Issue       IssueType    `json:"issue_type"`
	Severity    Severity     `json:"severity"`
	Status      TicketStatus `json:"status"`
	Description string       `json:"description"`
	Village     string       `json:"village,omitempty"`
	AssignedTo  string       `json:"assigned_to,omitempty"`
	AcceptedAt  *time.Time   `json:"accepted_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	WorkerNotes string       `json:"worker_notes,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	IsDynamic   bool         `json:"is_dynamic"`
	Virtual     *VirtualRef  `json:"virtual_ref,omitempty"`
}

// Key returns the deduplication key for the ticket.
func (t *Ticket) Key() DedupKey {
	return DedupKey{DeviceID: t.DeviceID, Issue: t.Issue, Day: DayOf(t.CreatedAt)}
}

// Contact is a notification recipient. An empty Villages set means the
// contact receives alerts for every village.
type Contact struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Phone         string   `json:"phone"`
	Role          string   `json:"role"`
	Villages      []string `json:"villages"`
	WhatsappOptIn bool     `json:"whatsapp_opt_in"`
}

// Covers reports whether the contact should receive notifications for
// the given village.
func (c *Contact) Covers(village string) bool {
	if len(c.Villages) == 0 {
		return true
	}
	for _, v := range c.Villages {
		if v == village {
			return true
		}
	}
	return false
}

// Notification log message types and directions.
const (
	MessageTypeAlert  = "alert"
	MessageTypeTicket = "ticket"

	DirectionOutgoing = "outgoing"
	DirectionIncoming = "incoming"

	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// NotificationLogEntry is an immutable audit record of one outbound
// (or inbound) message attempt.
type NotificationLogEntry struct {
	ID          string    `json:"id"`
	ContactID   int64     `json:"contact_id"`
	TicketID    string    `json:"ticket_id,omitempty"`
	MessageType string    `json:"message_type"`
	Direction   string    `json:"direction"`
	Status      string    `json:"status"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
