package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Cache keys for state shared with out-of-process readers (the CLI).
const (
	SnapshotCacheKey        = "monitor:snapshot:latest"
	ReportCacheKey          = "monitor:report:latest"
	DashboardCacheKeyPrefix = "monitor:dashboard:"
)

// StateCache persists small JSON state blobs for external readers.
// *cache.Client satisfies it; a nil cache disables persistence.
type StateCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// AgentConfig carries the cadences and feature toggles for the agent loop.
// Zero values fall back to the defaults applied in NewAgent.
type AgentConfig struct {
	CycleInterval          time.Duration
	InfrastructureInterval time.Duration
	SLAInterval            time.Duration
	RetentionSweepInterval time.Duration
	RetentionPeriod        time.Duration
	ExternalCallTimeout    time.Duration
	ProbeInterval          time.Duration
	DashboardsEnabled      bool
	PredictiveEnabled      bool
}

func (c *AgentConfig) applyDefaults() {
	if c.CycleInterval <= 0 {
		c.CycleInterval = 60 * time.Second
	}
	if c.InfrastructureInterval <= 0 {
		c.InfrastructureInterval = 30 * time.Second
	}
	if c.SLAInterval <= 0 {
		c.SLAInterval = 5 * time.Minute
	}
	if c.RetentionSweepInterval <= 0 {
		c.RetentionSweepInterval = 24 * time.Hour
	}
	if c.RetentionPeriod <= 0 {
		c.RetentionPeriod = 30 * 24 * time.Hour
	}
	if c.ExternalCallTimeout <= 0 {
		c.ExternalCallTimeout = 5 * time.Second
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 15 * time.Second
	}
}

// CycleSnapshot is the aggregated state captured by one monitoring cycle.
type CycleSnapshot struct {
	Timestamp       time.Time        `json:"timestamp"`
	Cycle           int              `json:"cycle"`
	HealthScore     int              `json:"health_score"`
	ActiveIncidents int              `json:"active_incidents"`
	SLACompliance   float64          `json:"sla_compliance"`
	Metrics         MetricCounts     `json:"metrics"`
	Traces          int              `json:"traces"`
	Spans           int              `json:"spans"`
	APIStatus       MonitoringStatus `json:"api_status"`
	Security        SecurityMetrics  `json:"security"`
}

// Agent drives the monitoring loop. All components are injected at
// construction; there is no package-level instance.
//
// One goroutine owns all four cadences, so scheduled work never overlaps:
// an infrastructure collection can not run while a cycle is mutating state.
type Agent struct {
	cfg AgentConfig

	tracer     *Tracer
	metrics    *MetricService
	infra      *InfrastructureCollector
	sla        *SLAEvaluator
	anomaly    *AnomalyDetector
	incidents  *IncidentManager
	dashboards *DashboardRegistry
	api        APIMonitor
	security   SecurityMonitor
	reporter   ErrorReporter
	state      StateCache
	store      MetricStore

	logger *slog.Logger
	now    func() time.Time

	mu           sync.Mutex
	active       bool
	cancel       context.CancelFunc
	done         chan struct{}
	cycleCount   int
	snapshots    []CycleSnapshot
	trendAlerted bool
}

// AgentDeps bundles the collaborators an Agent needs. Reporter, state, and
// dashboards may be nil; nil reporter falls back to logging only.
type AgentDeps struct {
	Tracer     *Tracer
	Metrics    *MetricService
	Infra      *InfrastructureCollector
	SLA        *SLAEvaluator
	Anomaly    *AnomalyDetector
	Incidents  *IncidentManager
	Dashboards *DashboardRegistry
	API        APIMonitor
	Security   SecurityMonitor
	Reporter   ErrorReporter
	State      StateCache
	Store      MetricStore
}

func NewAgent(cfg AgentConfig, deps AgentDeps, logger *slog.Logger) *Agent {
	cfg.applyDefaults()

	a := &Agent{
		cfg:        cfg,
		tracer:     deps.Tracer,
		metrics:    deps.Metrics,
		infra:      deps.Infra,
		sla:        deps.SLA,
		anomaly:    deps.Anomaly,
		incidents:  deps.Incidents,
		dashboards: deps.Dashboards,
		api:        deps.API,
		security:   deps.Security,
		reporter:   deps.Reporter,
		state:      deps.State,
		store:      deps.Store,
		logger:     logger.With("component", "agent"),
		now:        time.Now,
	}
	if a.security == nil {
		a.security = &StaticSecurityMonitor{}
	}
	return a
}

// WithClock overrides the clock for testing.
func (a *Agent) WithClock(clock func() time.Time) *Agent {
	a.now = clock
	return a
}

// Activate starts the API monitor and the scheduling loop. Activating an
// already-active agent is an error.
func (a *Agent) Activate(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active {
		return fmt.Errorf("agent already active")
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.done = make(chan struct{})
	a.active = true

	a.api.StartMonitoring(a.cfg.ProbeInterval)

	go a.loop(loopCtx)

	a.logger.InfoContext(ctx, "monitoring agent activated",
		"cycle_interval", a.cfg.CycleInterval,
		"infrastructure_interval", a.cfg.InfrastructureInterval,
		"sla_interval", a.cfg.SLAInterval,
		"retention_period", a.cfg.RetentionPeriod)
	return nil
}

// Deactivate stops the loop and the API monitor, blocking until the loop
// goroutine has exited. Deactivating an inactive agent is a no-op.
func (a *Agent) Deactivate() {
	a.mu.Lock()
	if !a.active {
		a.mu.Unlock()
		return
	}
	a.active = false
	cancel := a.cancel
	done := a.done
	a.mu.Unlock()

	cancel()
	<-done
	a.api.StopMonitoring()

	a.logger.Info("monitoring agent deactivated")
}

// IsActive reports whether the scheduling loop is running.
func (a *Agent) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// loop owns all scheduled work. Tickers fire independently but the select
// serializes their handlers.
func (a *Agent) loop(ctx context.Context) {
	defer close(a.done)

	infraTicker := time.NewTicker(a.cfg.InfrastructureInterval)
	cycleTicker := time.NewTicker(a.cfg.CycleInterval)
	slaTicker := time.NewTicker(a.cfg.SLAInterval)
	retentionTicker := time.NewTicker(a.cfg.RetentionSweepInterval)
	defer infraTicker.Stop()
	defer cycleTicker.Stop()
	defer slaTicker.Stop()
	defer retentionTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-infraTicker.C:
			a.safeRun(ctx, "infrastructure_collection", a.runInfrastructure)
		case <-cycleTicker.C:
			a.safeRun(ctx, "monitoring_cycle", a.runCycle)
		case <-slaTicker.C:
			a.safeRun(ctx, "sla_evaluation", a.runSLA)
		case <-retentionTicker.C:
			a.safeRun(ctx, "retention_sweep", a.runRetention)
		}
	}
}

// safeRun executes one scheduled task, converting panics and errors into
// reports. A failing task never takes down the loop.
func (a *Agent) safeRun(ctx context.Context, name string, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in %s: %v", name, r)
			a.logger.ErrorContext(ctx, "scheduled task panicked", "task", name, "panic", r)
			if a.reporter != nil {
				a.reporter.ReportError(ctx, err)
			}
		}
	}()

	if err := fn(ctx); err != nil {
		a.logger.ErrorContext(ctx, "scheduled task failed", "task", name, "error", err)
		if a.reporter != nil {
			a.reporter.ReportError(ctx, fmt.Errorf("%s: %w", name, err))
		}
	}
}

func (a *Agent) runInfrastructure(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.ExternalCallTimeout)
	defer cancel()

	if _, err := a.infra.Collect(callCtx); err != nil {
		return fmt.Errorf("failed to collect infrastructure metrics: %w", err)
	}
	return nil
}

// runCycle is the 60s heartbeat: aggregate state, persist the snapshot,
// refresh dashboards, then run the optional analytics passes.
func (a *Agent) runCycle(ctx context.Context) error {
	a.mu.Lock()
	a.cycleCount++
	cycle := a.cycleCount
	a.mu.Unlock()

	snapshot := CycleSnapshot{
		Timestamp: a.now(),
		Cycle:     cycle,
		APIStatus: a.api.MonitoringStatus(),
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.ExternalCallTimeout)
	counts, err := a.metrics.MetricCounts(callCtx)
	cancel()
	if err != nil {
		a.logger.WarnContext(ctx, "failed to count metrics", "error", err)
	} else {
		snapshot.Metrics = counts
	}

	snapshot.Traces = a.tracer.TraceCount()
	snapshot.Spans = a.tracer.SpanCount()

	callCtx, cancel = context.WithTimeout(ctx, a.cfg.ExternalCallTimeout)
	security, err := a.security.SecurityMetrics(callCtx)
	cancel()
	if err != nil {
		a.logger.WarnContext(ctx, "failed to fetch security metrics", "error", err)
		if a.reporter != nil {
			a.reporter.ReportError(ctx, fmt.Errorf("security metrics: %w", err))
		}
	} else {
		snapshot.Security = security
	}

	callCtx, cancel = context.WithTimeout(ctx, a.cfg.ExternalCallTimeout)
	active, err := a.incidents.ActiveIncidentCount(callCtx)
	cancel()
	if err != nil {
		a.logger.WarnContext(ctx, "failed to count active incidents", "error", err)
	} else {
		snapshot.ActiveIncidents = active
	}

	snapshot.SLACompliance = a.sla.Compliance()
	snapshot.HealthScore = a.computeHealthScore(ctx)

	a.recordSnapshot(snapshot)
	a.persistState(ctx, SnapshotCacheKey, snapshot)

	if a.cfg.DashboardsEnabled && a.dashboards != nil {
		for _, d := range a.dashboards.RefreshAll() {
			a.persistState(ctx, DashboardCacheKeyPrefix+d.ID, d)
		}
	}

	samples := a.api.CurrentMetrics()

	if a.cfg.PredictiveEnabled {
		if err := a.detectTrend(ctx, samples); err != nil {
			a.logger.WarnContext(ctx, "trend detection failed", "error", err)
		}
	}

	result, err := a.anomaly.Detect(ctx, samples)
	if err != nil {
		return fmt.Errorf("failed to run anomaly detection: %w", err)
	}
	if result.Triggered {
		a.logger.WarnContext(ctx, "cycle completed with anomaly",
			"cycle", cycle,
			"outliers", len(result.Outliers),
			"slowest_outlier", result.slowestOutlier())
	} else {
		a.logger.DebugContext(ctx, "cycle completed",
			"cycle", cycle,
			"health_score", snapshot.HealthScore,
			"active_incidents", snapshot.ActiveIncidents)
	}
	return nil
}

func (a *Agent) runSLA(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.ExternalCallTimeout)
	defer cancel()

	targets := a.sla.EvaluateAll(callCtx)
	for _, t := range targets {
		a.logger.DebugContext(ctx, "sla evaluated",
			"target", t.ID, "value", t.CurrentValue, "status", string(t.Status))
	}
	return nil
}

// runRetention purges traces and metrics older than the retention period.
// Incidents are audit records and are never purged.
func (a *Agent) runRetention(ctx context.Context) error {
	cutoff := a.now().Add(-a.cfg.RetentionPeriod)

	traces := a.tracer.PurgeTracesBefore(cutoff)

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.ExternalCallTimeout)
	defer cancel()
	metrics, err := a.store.PurgeMetricsBefore(callCtx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge metrics: %w", err)
	}

	a.logger.InfoContext(ctx, "retention sweep completed",
		"cutoff", cutoff, "traces_purged", traces, "metrics_purged", metrics)
	return nil
}

// detectTrend compares the older and newer halves of the recent response
// samples. A sustained degradation (newer mean at least 1.5x the older
// mean across 20+ samples) raises one proactive low-severity incident;
// the latch resets when the trend recovers.
func (a *Agent) detectTrend(ctx context.Context, samples []ResponseSample) error {
	const (
		minTrendSamples = 20
		degradeFactor   = 1.5
	)

	if len(samples) < minTrendSamples {
		return nil
	}

	half := len(samples) / 2
	olderMean := meanResponseMs(samples[:half])
	newerMean := meanResponseMs(samples[half:])
	if olderMean <= 0 {
		return nil
	}

	degrading := newerMean >= degradeFactor*olderMean

	a.mu.Lock()
	shouldRaise := degrading && !a.trendAlerted
	a.trendAlerted = degrading
	a.mu.Unlock()

	if !shouldRaise {
		return nil
	}

	a.logger.WarnContext(ctx, "response time trend degrading",
		"older_mean_ms", olderMean, "newer_mean_ms", newerMean)

	_, err := a.incidents.CreateIncident(ctx, CreateIncidentInput{
		Title:    "Response time trend degrading",
		Severity: SeverityLow,
		Category: "performance",
		Description: fmt.Sprintf("Mean response time rose from %.0fms to %.0fms over the last %d samples",
			olderMean, newerMean, len(samples)),
	})
	if err != nil {
		return fmt.Errorf("failed to raise trend incident: %w", err)
	}
	return nil
}

func meanResponseMs(samples []ResponseSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s.ResponseTime.Milliseconds())
	}
	return sum / float64(len(samples))
}

const snapshotHistory = 100

func (a *Agent) recordSnapshot(s CycleSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.snapshots = append(a.snapshots, s)
	if len(a.snapshots) > snapshotHistory {
		a.snapshots = a.snapshots[len(a.snapshots)-snapshotHistory:]
	}
}

// Snapshots returns a copy of the retained cycle snapshots, oldest first.
func (a *Agent) Snapshots() []CycleSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]CycleSnapshot, len(a.snapshots))
	copy(out, a.snapshots)
	return out
}

// LatestSnapshot returns the most recent cycle snapshot, or false when no
// cycle has completed yet.
func (a *Agent) LatestSnapshot() (CycleSnapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.snapshots) == 0 {
		return CycleSnapshot{}, false
	}
	return a.snapshots[len(a.snapshots)-1], true
}

func (a *Agent) persistState(ctx context.Context, key string, value interface{}) {
	if a.state == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.ExternalCallTimeout)
	defer cancel()

	if err := a.state.Set(callCtx, key, value, 2*a.cfg.CycleInterval); err != nil {
		a.logger.WarnContext(ctx, "failed to persist state", "key", key, "error", err)
	}
}
