package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/instantcocoa/vigil/pkg/testutil"
)

type captureNotifier struct {
	mu        sync.Mutex
	incidents []*Incident
}

func (n *captureNotifier) NotifyIncident(ctx context.Context, incident *Incident) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.incidents = append(n.incidents, incident)
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.incidents)
}

func newTestIncidentManager(t *testing.T) (*IncidentManager, *captureNotifier) {
	t.Helper()
	notifier := &captureNotifier{}
	manager := NewIncidentManager(NewMemoryIncidentStore(), notifier, testutil.DiscardLogger())
	return manager, notifier
}

func TestIncidentManager_CreateIncident(t *testing.T) {
	manager, notifier := newTestIncidentManager(t)
	ctx := context.Background()

	incident, err := manager.CreateIncident(ctx, CreateIncidentInput{
		Title:    "Database connection pool exhausted",
		Severity: SeverityCritical,
		Category: "infrastructure",
	})
	if err != nil {
		t.Fatalf("CreateIncident() error = %v", err)
	}

	if incident.ID == "" {
		t.Error("incident.ID is empty")
	}
	if incident.Status != IncidentOpen {
		t.Errorf("incident.Status = %q, want %q", incident.Status, IncidentOpen)
	}
	if len(incident.Timeline) != 1 {
		t.Fatalf("len(incident.Timeline) = %d, want 1", len(incident.Timeline))
	}
	if incident.Timeline[0].Action != "incident_created" {
		t.Errorf("timeline action = %q, want %q", incident.Timeline[0].Action, "incident_created")
	}
	if incident.Timeline[0].Actor != "system" {
		t.Errorf("timeline actor = %q, want %q", incident.Timeline[0].Actor, "system")
	}
	if incident.ResolvedAt != nil {
		t.Errorf("incident.ResolvedAt = %v, want nil", incident.ResolvedAt)
	}
	if notifier.count() != 1 {
		t.Errorf("notifier called %d times, want 1", notifier.count())
	}
}

func TestIncidentManager_CreateIncident_Defaults(t *testing.T) {
	manager, _ := newTestIncidentManager(t)
	ctx := context.Background()

	incident, err := manager.CreateIncident(ctx, CreateIncidentInput{Title: "Something odd"})
	if err != nil {
		t.Fatalf("CreateIncident() error = %v", err)
	}
	if incident.Severity != SeverityMedium {
		t.Errorf("default severity = %q, want %q", incident.Severity, SeverityMedium)
	}
}

func TestIncidentManager_CreateIncident_RequiresTitle(t *testing.T) {
	manager, _ := newTestIncidentManager(t)

	_, err := manager.CreateIncident(context.Background(), CreateIncidentInput{})
	if err == nil {
		t.Fatal("CreateIncident() with empty title should fail")
	}
}

func TestIncidentManager_UpdateIncident_TimelineAppendOnly(t *testing.T) {
	manager, _ := newTestIncidentManager(t)
	ctx := context.Background()

	incident, err := manager.CreateIncident(ctx, CreateIncidentInput{
		Title:    "Elevated error rate",
		Severity: SeverityHigh,
	})
	if err != nil {
		t.Fatalf("CreateIncident() error = %v", err)
	}

	investigating := IncidentInvestigating
	updated, err := manager.UpdateIncident(ctx, incident.ID, IncidentUpdate{Status: &investigating}, "oncall")
	if err != nil {
		t.Fatalf("UpdateIncident() error = %v", err)
	}
	if updated.Status != IncidentInvestigating {
		t.Errorf("updated.Status = %q, want %q", updated.Status, IncidentInvestigating)
	}
	if len(updated.Timeline) != 2 {
		t.Fatalf("len(updated.Timeline) = %d, want 2", len(updated.Timeline))
	}
	entry := updated.Timeline[1]
	if entry.Action != "incident_updated" {
		t.Errorf("timeline action = %q, want %q", entry.Action, "incident_updated")
	}
	if entry.Actor != "oncall" {
		t.Errorf("timeline actor = %q, want %q", entry.Actor, "oncall")
	}
	if entry.Details != "status: open -> investigating" {
		t.Errorf("timeline details = %q", entry.Details)
	}

	rootCause := "connection pool misconfigured"
	updated, err = manager.UpdateIncident(ctx, incident.ID, IncidentUpdate{RootCause: &rootCause}, "oncall")
	if err != nil {
		t.Fatalf("UpdateIncident() error = %v", err)
	}
	if len(updated.Timeline) != 3 {
		t.Errorf("len(updated.Timeline) = %d, want 3", len(updated.Timeline))
	}
	if updated.Timeline[0].Action != "incident_created" {
		t.Error("earlier timeline entries were rewritten")
	}
}

func TestIncidentManager_UpdateIncident_NoChanges(t *testing.T) {
	manager, _ := newTestIncidentManager(t)
	ctx := context.Background()

	incident, _ := manager.CreateIncident(ctx, CreateIncidentInput{Title: "Noop target"})

	updated, err := manager.UpdateIncident(ctx, incident.ID, IncidentUpdate{}, "")
	if err != nil {
		t.Fatalf("UpdateIncident() error = %v", err)
	}
	if len(updated.Timeline) != 2 {
		t.Fatalf("len(updated.Timeline) = %d, want 2", len(updated.Timeline))
	}
	if updated.Timeline[1].Details != "no field changes" {
		t.Errorf("timeline details = %q, want %q", updated.Timeline[1].Details, "no field changes")
	}
	if updated.Timeline[1].Actor != "system" {
		t.Errorf("empty actor should default to system, got %q", updated.Timeline[1].Actor)
	}
}

func TestIncidentManager_ResolvedAtStampedOnce(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	notifier := &captureNotifier{}
	manager := NewIncidentManager(NewMemoryIncidentStore(), notifier, testutil.DiscardLogger()).
		WithClock(testClock(start, time.Hour))
	ctx := context.Background()

	incident, _ := manager.CreateIncident(ctx, CreateIncidentInput{Title: "Flapping endpoint"})

	resolved := IncidentResolved
	first, err := manager.UpdateIncident(ctx, incident.ID, IncidentUpdate{Status: &resolved}, "oncall")
	if err != nil {
		t.Fatalf("UpdateIncident() error = %v", err)
	}
	if first.ResolvedAt == nil {
		t.Fatal("ResolvedAt not stamped on resolve")
	}
	stamped := *first.ResolvedAt

	// Reopen, then resolve again later: the original stamp must survive.
	open := IncidentOpen
	if _, err := manager.UpdateIncident(ctx, incident.ID, IncidentUpdate{Status: &open}, "oncall"); err != nil {
		t.Fatalf("UpdateIncident() error = %v", err)
	}
	second, err := manager.UpdateIncident(ctx, incident.ID, IncidentUpdate{Status: &resolved}, "oncall")
	if err != nil {
		t.Fatalf("UpdateIncident() error = %v", err)
	}
	if second.ResolvedAt == nil || !second.ResolvedAt.Equal(stamped) {
		t.Errorf("ResolvedAt = %v, want original %v", second.ResolvedAt, stamped)
	}
}

func TestIncidentManager_UpdateIncident_NotFound(t *testing.T) {
	manager, _ := newTestIncidentManager(t)

	status := IncidentClosed
	_, err := manager.UpdateIncident(context.Background(), "missing", IncidentUpdate{Status: &status}, "")
	if err == nil {
		t.Fatal("UpdateIncident() on missing incident should fail")
	}
}

func TestIncidentManager_ActiveIncidentCount(t *testing.T) {
	manager, _ := newTestIncidentManager(t)
	ctx := context.Background()

	a, _ := manager.CreateIncident(ctx, CreateIncidentInput{Title: "a"})
	b, _ := manager.CreateIncident(ctx, CreateIncidentInput{Title: "b"})
	manager.CreateIncident(ctx, CreateIncidentInput{Title: "c"})

	investigating := IncidentInvestigating
	manager.UpdateIncident(ctx, a.ID, IncidentUpdate{Status: &investigating}, "")
	resolved := IncidentResolved
	manager.UpdateIncident(ctx, b.ID, IncidentUpdate{Status: &resolved}, "")

	count, err := manager.ActiveIncidentCount(ctx)
	if err != nil {
		t.Fatalf("ActiveIncidentCount() error = %v", err)
	}
	if count != 2 {
		t.Errorf("ActiveIncidentCount() = %d, want 2", count)
	}
}
