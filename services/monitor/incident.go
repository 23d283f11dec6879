package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IncidentManager is the single source of truth for abnormal-condition
// records. All other components only read incidents or request creation;
// there is no deletion, closure is a status value.
type IncidentManager struct {
	mu       sync.Mutex
	store    IncidentStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewIncidentManager creates an incident manager over the given store.
func NewIncidentManager(store IncidentStore, notifier Notifier, logger *slog.Logger) *IncidentManager {
	return &IncidentManager{
		store:    store,
		notifier: notifier,
		logger:   logger.With("component", "incidents"),
		now:      time.Now,
	}
}

// WithClock overrides the clock for testing.
func (m *IncidentManager) WithClock(clock func() time.Time) *IncidentManager {
	m.now = clock
	return m
}

// CreateIncident records a new incident. Status starts open and the timeline
// is seeded with a single incident_created entry.
func (m *IncidentManager) CreateIncident(ctx context.Context, input CreateIncidentInput) (*Incident, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("incident title is required")
	}

	severity := input.Severity
	if severity == "" {
		severity = SeverityMedium
	}

	now := m.now()
	incident := &Incident{
		ID:               uuid.New().String(),
		Title:            input.Title,
		Description:      input.Description,
		Severity:         severity,
		Status:           IncidentOpen,
		Category:         input.Category,
		AffectedServices: input.AffectedServices,
		Timeline: []TimelineEntry{{
			Timestamp: now,
			Action:    "incident_created",
			Actor:     "system",
			Details:   fmt.Sprintf("severity=%s category=%s", severity, input.Category),
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.store.CreateIncident(ctx, incident); err != nil {
		return nil, fmt.Errorf("failed to create incident: %w", err)
	}

	m.logger.WarnContext(ctx, "incident created",
		"incident_id", incident.ID,
		"title", incident.Title,
		"severity", incident.Severity,
		"category", incident.Category,
	)

	if m.notifier != nil {
		m.notifier.NotifyIncident(ctx, incident)
	}

	return incident, nil
}

// UpdateIncident applies field updates and appends exactly one timeline entry
// naming what changed. The first transition to resolved stamps ResolvedAt;
// later updates never overwrite it.
func (m *IncidentManager) UpdateIncident(ctx context.Context, id string, updates IncidentUpdate, actor string) (*Incident, error) {
	if actor == "" {
		actor = "system"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	incident, err := m.store.GetIncident(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	if incident == nil {
		return nil, fmt.Errorf("incident not found: %s", id)
	}

	now := m.now()
	var changes []string

	if updates.Status != nil && *updates.Status != incident.Status {
		changes = append(changes, fmt.Sprintf("status: %s -> %s", incident.Status, *updates.Status))
		incident.Status = *updates.Status
		if incident.Status == IncidentResolved && incident.ResolvedAt == nil {
			resolvedAt := now
			incident.ResolvedAt = &resolvedAt
		}
	}
	if updates.Severity != nil && *updates.Severity != incident.Severity {
		changes = append(changes, fmt.Sprintf("severity: %s -> %s", incident.Severity, *updates.Severity))
		incident.Severity = *updates.Severity
	}
	if updates.Description != nil && *updates.Description != incident.Description {
		changes = append(changes, "description updated")
		incident.Description = *updates.Description
	}
	if updates.RootCause != nil && *updates.RootCause != incident.RootCause {
		changes = append(changes, "root cause updated")
		incident.RootCause = *updates.RootCause
	}
	if updates.PostMortemURL != nil && *updates.PostMortemURL != incident.PostMortemURL {
		changes = append(changes, "post-mortem updated")
		incident.PostMortemURL = *updates.PostMortemURL
	}
	if updates.AffectedServices != nil {
		changes = append(changes, "affected services updated")
		incident.AffectedServices = updates.AffectedServices
	}

	details := "no field changes"
	if len(changes) > 0 {
		details = strings.Join(changes, "; ")
	}

	incident.Timeline = append(incident.Timeline, TimelineEntry{
		Timestamp: now,
		Action:    "incident_updated",
		Actor:     actor,
		Details:   details,
	})
	incident.UpdatedAt = now

	if err := m.store.UpdateIncident(ctx, incident); err != nil {
		return nil, fmt.Errorf("failed to update incident: %w", err)
	}

	m.logger.InfoContext(ctx, "incident updated",
		"incident_id", incident.ID,
		"actor", actor,
		"details", details,
	)

	return incident, nil
}

// GetIncident retrieves an incident by ID; nil if not found.
func (m *IncidentManager) GetIncident(ctx context.Context, id string) (*Incident, error) {
	incident, err := m.store.GetIncident(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return incident, nil
}

// ListIncidents returns incidents matching the query, newest first.
func (m *IncidentManager) ListIncidents(ctx context.Context, query IncidentQuery) ([]*Incident, int, error) {
	incidents, total, err := m.store.ListIncidents(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list incidents: %w", err)
	}
	return incidents, total, nil
}

// ActiveIncidentCount returns the number of open or investigating incidents.
func (m *IncidentManager) ActiveIncidentCount(ctx context.Context) (int, error) {
	_, open, err := m.store.ListIncidents(ctx, IncidentQuery{Status: IncidentOpen})
	if err != nil {
		return 0, err
	}
	_, investigating, err := m.store.ListIncidents(ctx, IncidentQuery{Status: IncidentInvestigating})
	if err != nil {
		return 0, err
	}
	return open + investigating, nil
}
