// Package reconcile merges persisted alerts and tickets with virtual
// records computed on the fly from recent telemetry, deduplicating by
// (device, issue, day) so nothing is reported twice.
package reconcile

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/classify"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/database"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/pkg/metrics"
)

// defaultScanLimit bounds the telemetry window scanned for virtual
// candidates.
const defaultScanLimit = 200

// Store is the read surface the reconciler merges over.
type Store interface {
	FindAlerts(ctx context.Context, filter database.AlertFilter) ([]*model.Alert, error)
	FindTickets(ctx context.Context, filter database.TicketFilter) ([]*model.Ticket, error)
	ScanRecent(ctx context.Context, limit int) ([]*model.TelemetryReading, error)
}

// AlertQuery filters a reconciled alert listing.
type AlertQuery struct {
	Village      string
	Severity     model.Severity
	Acknowledged *bool
	Limit        int
}

// TicketQuery filters a reconciled ticket listing.
type TicketQuery struct {
	Village    string
	Status     model.TicketStatus
	AssignedTo string
	Limit      int
}

// Reconciler presents a single deduplicated view over persisted records
// and telemetry-implied virtual records.
type Reconciler struct {
	store     Store
	rules     classify.Ruleset
	scanLimit int
	metrics   metrics.Recorder
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithScanLimit overrides the telemetry window size.
func WithScanLimit(limit int) Option {
	return func(r *Reconciler) { r.scanLimit = limit }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// NewReconciler creates a reconciler using the given classification
// ruleset for virtual candidates.
func NewReconciler(store Store, rules classify.Ruleset, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:     store,
		rules:     rules,
		scanLimit: defaultScanLimit,
		metrics:   metrics.NoOp{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListAlerts returns the merged alert view: persisted alerts matching
// the query plus virtual alerts synthesized from recent telemetry,
// deduplicated by (device, issue, day), ordered by severity then
// recency, truncated to the query limit. A failed telemetry scan
// degrades to persisted-only results.
func (r *Reconciler) ListAlerts(ctx context.Context, q AlertQuery) ([]*model.Alert, error) {
	persisted, err := r.store.FindAlerts(ctx, database.AlertFilter{
		Village:      q.Village,
		Severity:     q.Severity,
		Acknowledged: q.Acknowledged,
	})
	if err != nil {
		return nil, err
	}

	merged := append([]*model.Alert{}, persisted...)
	// Virtual alerts are definitionally unacknowledged; an explicit
	// acknowledged=true filter excludes them all.
	if q.Acknowledged == nil || !*q.Acknowledged {
		merged = append(merged, r.virtualAlerts(ctx, q, persisted)...)
	}

	sortAlerts(merged)
	return truncateAlerts(merged, q.Limit), nil
}

// ListTickets returns the merged ticket view, built the same way as
// ListAlerts. Virtual tickets exist only for findings severe enough to
// warrant escalation and are always open and unassigned.
func (r *Reconciler) ListTickets(ctx context.Context, q TicketQuery) ([]*model.Ticket, error) {
	persisted, err := r.store.FindTickets(ctx, database.TicketFilter{
		Village:    q.Village,
		Status:     q.Status,
		AssignedTo: q.AssignedTo,
	})
	if err != nil {
		return nil, err
	}

	merged := append([]*model.Ticket{}, persisted...)
	if virtualTicketsVisible(q) {
		merged = append(merged, r.virtualTickets(ctx, q)...)
	}

	sortTickets(merged)
	return truncateTickets(merged, q.Limit), nil
}

// virtualAlerts scans recent telemetry and synthesizes alert candidates
// that no persisted alert already covers.
func (r *Reconciler) virtualAlerts(ctx context.Context, q AlertQuery, persisted []*model.Alert) []*model.Alert {
	readings, err := r.store.ScanRecent(ctx, r.scanLimit)
	if err != nil {
		slog.Warn("Telemetry scan failed, returning persisted-only alerts", "error", err)
		return nil
	}

	taken := make(map[model.DedupKey]bool, len(persisted))
	for _, a := range persisted {
		taken[a.Key()] = true
	}

	// Keep the most recent candidate per dedup key.
	candidates := make(map[model.DedupKey]*model.Alert)
	for _, reading := range readings {
		finding := classify.Evaluate(reading, r.rules)
		if finding == nil {
			continue
		}
		if q.Village != "" && reading.Village != q.Village {
			continue
		}
		if q.Severity != "" && finding.Severity != q.Severity {
			continue
		}

		ref := model.VirtualRef{
			DeviceID: reading.DeviceID,
			Issue:    finding.Issue,
			Day:      model.DayOf(reading.Timestamp),
		}
		key := ref.Key()
		if taken[key] {
			continue
		}
		if prev, ok := candidates[key]; ok && !reading.Timestamp.After(prev.SentAt) {
			continue
		}
		candidates[key] = &model.Alert{
			DeviceID:  reading.DeviceID,
			Issue:     finding.Issue,
			Severity:  finding.Severity,
			Message:   finding.Description,
			Village:   reading.Village,
			SentAt:    reading.Timestamp,
			IsDynamic: true,
			Virtual:   &ref,
		}
	}

	virtuals := make([]*model.Alert, 0, len(candidates))
	for _, a := range candidates {
		virtuals = append(virtuals, a)
		r.metrics.IncrementCustom("virtual_merged")
	}
	return virtuals
}

// virtualTickets synthesizes ticket candidates from telemetry for
// findings severe enough to escalate.
func (r *Reconciler) virtualTickets(ctx context.Context, q TicketQuery) []*model.Ticket {
	readings, err := r.store.ScanRecent(ctx, r.scanLimit)
	if err != nil {
		slog.Warn("Telemetry scan failed, returning persisted-only tickets", "error", err)
		return nil
	}

	// Persisted tickets of any status supersede virtual candidates, so
	// re-query without the status filter for dedup purposes.
	existing, err := r.store.FindTickets(ctx, database.TicketFilter{})
	if err != nil {
		slog.Warn("Ticket dedup query failed, returning persisted-only tickets", "error", err)
		return nil
	}
	taken := make(map[model.DedupKey]bool, len(existing))
	for _, t := range existing {
		taken[t.Key()] = true
	}

	candidates := make(map[model.DedupKey]*model.Ticket)
	for _, reading := range readings {
		finding := classify.Evaluate(reading, r.rules)
		if finding == nil || !finding.Severity.RequiresTicket() {
			continue
		}
		if q.Village != "" && reading.Village != q.Village {
			continue
		}

		ref := model.VirtualRef{
			DeviceID: reading.DeviceID,
			Issue:    finding.Issue,
			Day:      model.DayOf(reading.Timestamp),
		}
		key := ref.Key()
		if taken[key] {
			continue
		}
		if prev, ok := candidates[key]; ok && !reading.Timestamp.After(prev.CreatedAt) {
			continue
		}
		candidates[key] = &model.Ticket{
			TicketID:    ref.ID(),
			DeviceID:    reading.DeviceID,
			Issue:       finding.Issue,
			Severity:    finding.Severity,
			Status:      model.StatusOpen,
			Description: finding.Description,
			Village:     reading.Village,
			CreatedAt:   reading.Timestamp,
			IsDynamic:   true,
			Virtual:     &ref,
		}
	}

	virtuals := make([]*model.Ticket, 0, len(candidates))
	for _, t := range candidates {
		virtuals = append(virtuals, t)
		r.metrics.IncrementCustom("virtual_merged")
	}
	return virtuals
}

// virtualTicketsVisible reports whether the query can match virtual
// tickets at all: they are always open and unassigned.
func virtualTicketsVisible(q TicketQuery) bool {
	if q.Status != "" && q.Status != model.StatusOpen {
		return false
	}
	return q.AssignedTo == ""
}

func sortAlerts(alerts []*model.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity.Rank() != alerts[j].Severity.Rank() {
			return alerts[i].Severity.Rank() > alerts[j].Severity.Rank()
		}
		return alerts[i].SentAt.After(alerts[j].SentAt)
	})
}

func sortTickets(tickets []*model.Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		if tickets[i].Severity.Rank() != tickets[j].Severity.Rank() {
			return tickets[i].Severity.Rank() > tickets[j].Severity.Rank()
		}
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})
}

func truncateAlerts(alerts []*model.Alert, limit int) []*model.Alert {
	if limit > 0 && len(alerts) > limit {
		return alerts[:limit]
	}
	return alerts
}

func truncateTickets(tickets []*model.Ticket, limit int) []*model.Ticket {
	if limit > 0 && len(tickets) > limit {
		return tickets[:limit]
	}
	return tickets
}
