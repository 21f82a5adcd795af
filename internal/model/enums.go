package model

// Severity classifies how urgent an anomaly is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordering weight of a severity.
// critical > high > medium > low; unknown severities sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// IsValid reports whether s is one of the known severity values.
func (s Severity) IsValid() bool {
	return s.Rank() > 0
}

// RequiresTicket reports whether an alert of this severity must be
// escalated to a ticket.
func (s Severity) RequiresTicket() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// ParseSeverity converts a string to a Severity.
// Unknown values fall back to low.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s)
	default:
		return SeverityLow
	}
}

// IssueType identifies the kind of anomaly detected on a device.
type IssueType string

const (
	IssueLeak            IssueType = "leak"
	IssueContamination   IssueType = "contamination"
	IssuePressureAnomaly IssueType = "pressure_anomaly"
	IssueHighPressure    IssueType = "high_pressure"
	IssueLowPressure     IssueType = "low_pressure"
	IssueLowFlow         IssueType = "low_flow"
	IssueHighTurbidity   IssueType = "high_turbidity"
	IssueLowPH           IssueType = "low_ph"
	IssueHighPH          IssueType = "high_ph"
)

// IsValid reports whether t is one of the known issue types.
func (t IssueType) IsValid() bool {
	switch t {
	case IssueLeak, IssueContamination, IssuePressureAnomaly, IssueHighPressure,
		IssueLowPressure, IssueLowFlow, IssueHighTurbidity, IssueLowPH, IssueHighPH:
		return true
	default:
		return false
	}
}

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusAccepted   TicketStatus = "accepted"
	StatusInProgress TicketStatus = "in_progress"
	StatusCompleted  TicketStatus = "completed"
	StatusClosed     TicketStatus = "closed"
)

// IsTerminal reports whether no further engine-driven transition is
// allowed out of this status.
func (s TicketStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusClosed
}

// IsValid reports whether s is one of the known ticket statuses.
func (s TicketStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusAccepted, StatusInProgress, StatusCompleted, StatusClosed:
		return true
	default:
		return false
	}
}
