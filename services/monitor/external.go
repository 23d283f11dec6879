package monitor

import (
	"context"
	"log/slog"
	"time"
)

// APIMonitor is the contract for the external API performance monitor. The
// core consumes its samples and health checks; it never implements the
// monitoring itself (HTTPProber is the bundled implementation).
type APIMonitor interface {
	StartMonitoring(interval time.Duration)
	StopMonitoring()
	CurrentMetrics() []ResponseSample
	HealthChecks() []HealthCheck
	MonitoringStatus() MonitoringStatus
}

// SecurityMonitor exposes security event counters for the status report.
type SecurityMonitor interface {
	SecurityMetrics(ctx context.Context) (SecurityMetrics, error)
}

// ErrorReporter is a fire-and-forget sink for cycle failures.
type ErrorReporter interface {
	ReportError(ctx context.Context, err error)
}

// Notifier receives newly created incidents for alert dispatch.
type Notifier interface {
	NotifyIncident(ctx context.Context, incident *Incident)
}

// SlogReporter reports errors through a structured logger.
type SlogReporter struct {
	logger *slog.Logger
}

// NewSlogReporter creates an ErrorReporter backed by slog.
func NewSlogReporter(logger *slog.Logger) *SlogReporter {
	return &SlogReporter{logger: logger.With("component", "error-reporter")}
}

func (r *SlogReporter) ReportError(ctx context.Context, err error) {
	r.logger.ErrorContext(ctx, "monitoring cycle failure", "error", err)
}

// SlogNotifier dispatches incident notifications to the log.
type SlogNotifier struct {
	logger *slog.Logger
}

// NewSlogNotifier creates a Notifier backed by slog.
func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	return &SlogNotifier{logger: logger.With("component", "notifier")}
}

func (n *SlogNotifier) NotifyIncident(ctx context.Context, incident *Incident) {
	n.logger.WarnContext(ctx, "incident created",
		"incident_id", incident.ID,
		"title", incident.Title,
		"severity", incident.Severity,
		"category", incident.Category,
	)
}

// StaticSecurityMonitor returns fixed security metrics. It stands in when no
// security subsystem is attached.
type StaticSecurityMonitor struct {
	Metrics SecurityMetrics
}

func (m *StaticSecurityMonitor) SecurityMetrics(ctx context.Context) (SecurityMetrics, error) {
	return m.Metrics, nil
}

var (
	_ ErrorReporter   = (*SlogReporter)(nil)
	_ Notifier        = (*SlogNotifier)(nil)
	_ SecurityMonitor = (*StaticSecurityMonitor)(nil)
)
