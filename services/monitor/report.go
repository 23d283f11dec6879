package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AgentStatus is the point-in-time view of the whole monitoring system.
type AgentStatus struct {
	Active          bool             `json:"active"`
	Timestamp       time.Time        `json:"timestamp"`
	HealthScore     int              `json:"health_score"`
	ActiveIncidents int              `json:"active_incidents"`
	SLACompliance   float64          `json:"sla_compliance"`
	SLATargets      []*SLATarget     `json:"sla_targets"`
	Metrics         MetricCounts     `json:"metrics"`
	Traces          int              `json:"traces"`
	Spans           int              `json:"spans"`
	APIStatus       MonitoringStatus `json:"api_status"`
	Security        SecurityMetrics  `json:"security"`
}

// Status assembles the current system state without waiting for a cycle.
func (a *Agent) Status(ctx context.Context) (*AgentStatus, error) {
	status := &AgentStatus{
		Active:        a.IsActive(),
		Timestamp:     a.now(),
		SLACompliance: a.sla.Compliance(),
		SLATargets:    a.sla.Targets(),
		Traces:        a.tracer.TraceCount(),
		Spans:         a.tracer.SpanCount(),
		APIStatus:     a.api.MonitoringStatus(),
	}

	counts, err := a.metrics.MetricCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count metrics: %w", err)
	}
	status.Metrics = counts

	active, err := a.incidents.ActiveIncidentCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count active incidents: %w", err)
	}
	status.ActiveIncidents = active

	security, err := a.security.SecurityMetrics(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "failed to fetch security metrics", "error", err)
	} else {
		status.Security = security
	}

	status.HealthScore = a.computeHealthScore(ctx)
	return status, nil
}

// computeHealthScore starts from 100 and deducts for open incidents and
// out-of-compliance SLA targets, clamped to [0, 100].
func (a *Agent) computeHealthScore(ctx context.Context) int {
	score := 100

	incidents, _, err := a.incidents.ListIncidents(ctx, IncidentQuery{})
	if err != nil {
		a.logger.WarnContext(ctx, "failed to list incidents for health score", "error", err)
	} else {
		for _, inc := range incidents {
			if inc.Status != IncidentOpen && inc.Status != IncidentInvestigating {
				continue
			}
			switch inc.Severity {
			case SeverityCritical:
				score -= 25
			case SeverityHigh:
				score -= 15
			case SeverityMedium:
				score -= 10
			case SeverityLow:
				score -= 5
			}
		}
	}

	for _, t := range a.sla.Targets() {
		switch t.Status {
		case SLAWarning:
			score -= 5
		case SLACritical:
			score -= 15
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// GenerateReport renders a plain-text operations summary and caches it for
// external readers.
func (a *Agent) GenerateReport(ctx context.Context) (string, error) {
	status, err := a.Status(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to assemble status: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MONITORING REPORT  %s\n", status.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", 50))

	state := "inactive"
	if status.Active {
		state = "active"
	}
	fmt.Fprintf(&b, "Agent:            %s\n", state)
	fmt.Fprintf(&b, "Health score:     %d/100\n", status.HealthScore)
	fmt.Fprintf(&b, "Active incidents: %d\n", status.ActiveIncidents)
	fmt.Fprintf(&b, "SLA compliance:   %.1f%%\n\n", status.SLACompliance)

	b.WriteString("SLA targets:\n")
	for _, t := range status.SLATargets {
		if t.Status == SLAUnknown {
			fmt.Fprintf(&b, "  %-24s no data\n", t.Name)
			continue
		}
		fmt.Fprintf(&b, "  %-24s %.2f%s (target %.2f%s) %s\n",
			t.Name, t.CurrentValue, t.Unit, t.Target, t.Unit, t.Status)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Metrics stored:   business=%d ux=%d infrastructure=%d\n",
		status.Metrics.Business, status.Metrics.UserExperience, status.Metrics.Infrastructure)
	fmt.Fprintf(&b, "Traces:           %d (%d spans)\n", status.Traces, status.Spans)
	fmt.Fprintf(&b, "API endpoints:    %d healthy, %d degraded, %d unhealthy\n",
		status.APIStatus.HealthyEndpoints, status.APIStatus.DegradedEndpoints, status.APIStatus.UnhealthyEndpoints)
	fmt.Fprintf(&b, "Security events:  %d\n", status.Security.TotalEvents)

	if len(status.Security.TopAttackers) > 0 {
		b.WriteString("Top attackers:\n")
		for _, ip := range status.Security.TopAttackers {
			fmt.Fprintf(&b, "  %s\n", ip)
		}
	}

	report := b.String()
	a.persistState(ctx, ReportCacheKey, report)
	return report, nil
}
