package monitor

import (
	"context"
	"strings"
	"testing"
)

func TestAgent_Status(t *testing.T) {
	api := &stubAPIMonitor{
		status: MonitoringStatus{HealthyEndpoints: 3, DegradedEndpoints: 1},
	}
	agent, incidents, _, _ := newTestAgent(t, AgentConfig{}, api)
	ctx := context.Background()

	incidents.CreateIncident(ctx, CreateIncidentInput{Title: "a", Severity: SeverityCritical})
	incidents.CreateIncident(ctx, CreateIncidentInput{Title: "b", Severity: SeverityLow})

	status, err := agent.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	if status.Active {
		t.Error("status.Active = true for inactive agent")
	}
	if status.ActiveIncidents != 2 {
		t.Errorf("status.ActiveIncidents = %d, want 2", status.ActiveIncidents)
	}
	if status.HealthScore != 70 {
		t.Errorf("status.HealthScore = %d, want 70 (critical -25, low -5)", status.HealthScore)
	}
	if len(status.SLATargets) != 3 {
		t.Errorf("len(status.SLATargets) = %d, want 3", len(status.SLATargets))
	}
	if status.APIStatus.HealthyEndpoints != 3 {
		t.Errorf("status.APIStatus.HealthyEndpoints = %d, want 3", status.APIStatus.HealthyEndpoints)
	}
}

func TestAgent_HealthScoreClamped(t *testing.T) {
	agent, incidents, _, _ := newTestAgent(t, AgentConfig{}, &stubAPIMonitor{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		incidents.CreateIncident(ctx, CreateIncidentInput{Title: "boom", Severity: SeverityCritical})
	}

	status, err := agent.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.HealthScore != 0 {
		t.Errorf("status.HealthScore = %d, want clamped to 0", status.HealthScore)
	}
}

func TestAgent_HealthScoreIgnoresSettledIncidents(t *testing.T) {
	agent, incidents, _, _ := newTestAgent(t, AgentConfig{}, &stubAPIMonitor{})
	ctx := context.Background()

	incident, _ := incidents.CreateIncident(ctx, CreateIncidentInput{Title: "fixed", Severity: SeverityCritical})
	resolved := IncidentResolved
	incidents.UpdateIncident(ctx, incident.ID, IncidentUpdate{Status: &resolved}, "")

	status, err := agent.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.HealthScore != 100 {
		t.Errorf("status.HealthScore = %d, want 100 (resolved incidents don't count)", status.HealthScore)
	}
}

func TestAgent_HealthScoreSLADeductions(t *testing.T) {
	// 99% availability lands critical (-15); latency/error rate stay unknown.
	api := &stubAPIMonitor{checks: healthChecks(99, 1)}
	agent, _, _, _ := newTestAgent(t, AgentConfig{}, api)
	ctx := context.Background()

	agent.sla.EvaluateAll(ctx)

	status, err := agent.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	// One SLA-critical incident was raised (-15) plus the SLA deduction (-15).
	if status.HealthScore != 70 {
		t.Errorf("status.HealthScore = %d, want 70", status.HealthScore)
	}
}

func TestAgent_GenerateReport(t *testing.T) {
	api := &stubAPIMonitor{
		status: MonitoringStatus{HealthyEndpoints: 2, UnhealthyEndpoints: 1},
	}
	agent, incidents, _, state := newTestAgent(t, AgentConfig{}, api)
	ctx := context.Background()

	incidents.CreateIncident(ctx, CreateIncidentInput{Title: "live issue", Severity: SeverityMedium})
	agent.metrics.RecordBusinessMetric(ctx, BusinessMetric{Name: "orders", Value: 10})

	report, err := agent.GenerateReport(ctx)
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	for _, want := range []string{
		"MONITORING REPORT",
		"Health score:",
		"Active incidents: 1",
		"SLA compliance:",
		"Service availability",
		"no data",
		"business=1",
		"2 healthy, 0 degraded, 1 unhealthy",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q\n%s", want, report)
		}
	}

	if _, ok := state.get(ReportCacheKey); !ok {
		t.Error("report not persisted to cache")
	}
}
