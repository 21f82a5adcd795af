package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// dayLayout is the calendar-day format used in dedup keys and virtual IDs.
const dayLayout = "2006-01-02"

// DayOf truncates a timestamp to its UTC calendar day.
func DayOf(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// DedupKey identifies the at-most-one-per-device-per-issue-per-day
// uniqueness scope shared by alerts and tickets.
type DedupKey struct {
	DeviceID string
	Issue    IssueType
	Day      string
}

func (k DedupKey) String() string {
	return k.DeviceID + "/" + string(k.Issue) + "/" + k.Day
}

// VirtualRef identifies a virtual alert or ticket synthesized from
// telemetry. It replaces string-encoded synthetic IDs inside the
// engine; the string form exists only for the API edge.
type VirtualRef struct {
	DeviceID string    `json:"device_id"`
	Issue    IssueType `json:"issue_type"`
	Day      string    `json:"day"`
}

// Key returns the dedup key covered by this reference.
func (v VirtualRef) Key() DedupKey {
	return DedupKey{DeviceID: v.DeviceID, Issue: v.Issue, Day: v.Day}
}

const virtualPrefix = "virtual:"

// ID renders the wire form of the reference, e.g.
// "virtual:DEV1:leak:2026-08-29". Device IDs must not contain ':'.
func (v VirtualRef) ID() string {
	return virtualPrefix + v.DeviceID + ":" + string(v.Issue) + ":" + v.Day
}

// ParseVirtualID parses the wire form produced by VirtualRef.ID.
// Issue types never contain ':' so the split is unambiguous.
func ParseVirtualID(s string) (VirtualRef, bool) {
	if !strings.HasPrefix(s, virtualPrefix) {
		return VirtualRef{}, false
	}
	parts := strings.Split(strings.TrimPrefix(s, virtualPrefix), ":")
	if len(parts) != 3 {
		return VirtualRef{}, false
	}
	ref := VirtualRef{DeviceID: parts[0], Issue: IssueType(parts[1]), Day: parts[2]}
	if ref.DeviceID == "" || !ref.Issue.IsValid() {
		return VirtualRef{}, false
	}
	if _, err := time.Parse(dayLayout, ref.Day); err != nil {
		return VirtualRef{}, false
	}
	return ref, true
}

// TicketRef addresses either a persisted ticket (by its human-readable
// ticket id) or a virtual ticket (by its VirtualRef).
type TicketRef struct {
	TicketID string
	Virtual  *VirtualRef
}

// IsVirtual reports whether the reference addresses a virtual ticket.
func (r TicketRef) IsVirtual() bool {
	return r.Virtual != nil
}

func (r TicketRef) String() string {
	if r.Virtual != nil {
		return r.Virtual.ID()
	}
	return r.TicketID
}

// PersistedRef builds a reference to a persisted ticket.
func PersistedRef(ticketID string) TicketRef {
	return TicketRef{TicketID: ticketID}
}

// VirtualTicketRef builds a reference to a virtual ticket.
func VirtualTicketRef(ref VirtualRef) TicketRef {
	return TicketRef{Virtual: &ref}
}

// ParseTicketRef interprets a caller-supplied ticket reference string.
// Strings in the virtual wire form resolve to virtual references;
// anything else is treated as a persisted ticket id.
func ParseTicketRef(s string) (TicketRef, error) {
	if s == "" {
		return TicketRef{}, fmt.Errorf("ticket reference cannot be empty")
	}
	if strings.HasPrefix(s, virtualPrefix) {
		ref, ok := ParseVirtualID(s)
		if !ok {
			return TicketRef{}, fmt.Errorf("malformed virtual ticket reference: %q", s)
		}
		return VirtualTicketRef(ref), nil
	}
	return PersistedRef(s), nil
}
