// Package monitor provides the monitoring and observability core: a trace
// registry, metric collectors with threshold evaluation, SLA tracking,
// incident management, and the periodic cycle that ties them together.
package monitor

import (
	"time"
)

// SpanStatus represents the status of a trace span.
type SpanStatus int

const (
	SpanStatusUnspecified SpanStatus = iota
	SpanStatusOK
	SpanStatusError
	SpanStatusTimeout
)

// String returns the lowercase name of the status.
func (s SpanStatus) String() string {
	switch s {
	case SpanStatusOK:
		return "ok"
	case SpanStatusError:
		return "error"
	case SpanStatusTimeout:
		return "timeout"
	default:
		return "unspecified"
	}
}

// TraceSpan represents a single unit of work in a distributed trace.
//
// A span is mutable through the Tracer while open and immutable once
// finished; mutators on a finished span are no-ops.
type TraceSpan struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Operation    string
	ServiceName  string
	StartTime    time.Time
	EndTime      *time.Time
	Duration     time.Duration
	Tags         map[string]string
	Logs         []SpanLog
	Status       SpanStatus
	ErrorMessage string

	finished bool
}

// Finished reports whether the span has been finalized.
func (s *TraceSpan) Finished() bool {
	return s.finished
}

// SpanLog is a timestamped set of fields attached to a span.
type SpanLog struct {
	Timestamp time.Time
	Fields    map[string]string
}

// MetricThreshold is a warning/critical pair in ascending severity.
type MetricThreshold struct {
	Warning  float64
	Critical float64
}

// BusinessMetric is a named point-in-time measurement. It is never mutated
// after recording; retention cleanup removes aged entries.
type BusinessMetric struct {
	ID        string
	Name      string
	Category  string
	Value     float64
	Unit      string
	Target    float64
	Threshold *MetricThreshold
	Timestamp time.Time
	Metadata  map[string]string
}

// UserExperienceMetric is one page-load sample with Core Web Vitals.
// Durations are milliseconds except CumulativeLayoutShift, which is unitless.
type UserExperienceMetric struct {
	ID                     string
	SessionID              string
	UserID                 string
	PageURL                string
	UserAgent              string
	PageLoadTime           float64
	FirstContentfulPaint   float64
	LargestContentfulPaint float64
	FirstInputDelay        float64
	CumulativeLayoutShift  float64
	TimeToInteractive      float64
	NavigationTiming       map[string]float64
	ResourceTiming         map[string]float64
	Timestamp              time.Time
}

// InfraSource identifies what an infrastructure metric snapshot measures.
type InfraSource string

const (
	SourceCPU      InfraSource = "cpu"
	SourceMemory   InfraSource = "memory"
	SourceDisk     InfraSource = "disk"
	SourceNetwork  InfraSource = "network"
	SourceDatabase InfraSource = "database"
	SourceCache    InfraSource = "cache"
	// SourceSystem is a combined snapshot covering process, database and
	// cache figures, produced by the periodic collector.
	SourceSystem InfraSource = "system"
)

// InfrastructureMetric is a timestamped snapshot of an infrastructure source.
type InfrastructureMetric struct {
	ID        string
	Source    InfraSource
	Values    map[string]float64
	Alerts    []InfraAlert
	Timestamp time.Time
}

// InfraAlert records a threshold breach detected at collection time.
type InfraAlert struct {
	Metric    string
	Value     float64
	Threshold float64
	Severity  IncidentSeverity
	Message   string
}

// SLAStatus classifies how an SLA target is doing.
type SLAStatus string

const (
	SLAHealthy  SLAStatus = "healthy"
	SLAWarning  SLAStatus = "warning"
	SLACritical SLAStatus = "critical"
	SLAUnknown  SLAStatus = "unknown"
)

// SLATarget is a named compliance goal evaluated periodically.
//
// HigherIsBetter controls comparison direction: availability-style targets
// degrade as the value falls, latency-style targets degrade as it rises.
type SLATarget struct {
	ID                string
	Name              string
	Target            float64
	Unit              string
	Period            string
	Category          string
	WarningThreshold  float64
	CriticalThreshold float64
	HigherIsBetter    bool
	CurrentValue      float64
	Status            SLAStatus
	LastEvaluatedAt   time.Time
}

// IncidentSeverity represents how bad an incident is.
type IncidentSeverity string

const (
	SeverityLow      IncidentSeverity = "low"
	SeverityMedium   IncidentSeverity = "medium"
	SeverityHigh     IncidentSeverity = "high"
	SeverityCritical IncidentSeverity = "critical"
)

// IncidentStatus represents the lifecycle state of an incident.
type IncidentStatus string

const (
	IncidentOpen          IncidentStatus = "open"
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentResolved      IncidentStatus = "resolved"
	IncidentClosed        IncidentStatus = "closed"
)

// TimelineEntry is one event in an incident's history.
type TimelineEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Details   string    `json:"details"`
}

// Incident is the canonical record of an abnormal condition. The timeline is
// append-only; ResolvedAt is stamped on the first transition to resolved and
// never overwritten.
type Incident struct {
	ID               string
	Title            string
	Description      string
	Severity         IncidentSeverity
	Status           IncidentStatus
	Category         string
	AffectedServices []string
	Timeline         []TimelineEntry
	RootCause        string
	PostMortemURL    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ResolvedAt       *time.Time
}

// CreateIncidentInput contains input for creating an incident.
type CreateIncidentInput struct {
	Title            string
	Description      string
	Severity         IncidentSeverity
	Category         string
	AffectedServices []string
}

// IncidentUpdate contains optional field updates; nil fields are untouched.
type IncidentUpdate struct {
	Status           *IncidentStatus
	Severity         *IncidentSeverity
	Description      *string
	RootCause        *string
	PostMortemURL    *string
	AffectedServices []string
}

// BusinessMetricQuery filters business metric reads.
type BusinessMetricQuery struct {
	Category  string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// InfrastructureMetricQuery filters infrastructure metric reads.
type InfrastructureMetricQuery struct {
	Source    InfraSource
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// IncidentQuery filters incident listings.
type IncidentQuery struct {
	Status   IncidentStatus
	Severity IncidentSeverity
	Category string
	Limit    int
	Offset   int
}

// ResponseSample is one observed request, fed in by the API monitor.
type ResponseSample struct {
	Endpoint     string
	StatusCode   int
	ResponseTime time.Duration
	Timestamp    time.Time
}

// HealthState classifies an endpoint health check.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// HealthCheck is the latest health observation for an endpoint.
type HealthCheck struct {
	Endpoint  string
	State     HealthState
	CheckedAt time.Time
}

// MonitoringStatus summarizes the API monitor's view of the world.
type MonitoringStatus struct {
	HealthyEndpoints   int `json:"healthy_endpoints"`
	DegradedEndpoints  int `json:"degraded_endpoints"`
	UnhealthyEndpoints int `json:"unhealthy_endpoints"`
	MetricsCount       int `json:"metrics_count"`
	BenchmarksCount    int `json:"benchmarks_count"`
}

// SecurityMetrics summarizes the security monitor's counters.
type SecurityMetrics struct {
	TotalEvents      int            `json:"total_events"`
	EventsBySeverity map[string]int `json:"events_by_severity"`
	TopAttackers     []string       `json:"top_attackers"`
}
