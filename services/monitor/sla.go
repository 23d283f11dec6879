package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// SLAEvaluator keeps a small fixed catalogue of SLA targets up to date
// against live values computed from the API monitor's samples.
//
// Incidents are raised only on the transition into critical; a target that
// stays critical across cycles does not re-raise until it recovers first.
type SLAEvaluator struct {
	mu        sync.Mutex
	targets   map[string]*SLATarget
	order     []string
	critical  map[string]bool // raise-on-transition latch
	api       APIMonitor
	incidents *IncidentManager
	logger    *slog.Logger
	now       func() time.Time
}

// NewSLAEvaluator creates an evaluator seeded with the default catalogue:
// availability, P95 latency, and error rate.
func NewSLAEvaluator(api APIMonitor, incidents *IncidentManager, logger *slog.Logger) *SLAEvaluator {
	e := &SLAEvaluator{
		targets:   make(map[string]*SLATarget),
		critical:  make(map[string]bool),
		api:       api,
		incidents: incidents,
		logger:    logger.With("component", "sla"),
		now:       time.Now,
	}

	e.register(&SLATarget{
		ID:                "availability",
		Name:              "Service availability",
		Target:            99.9,
		Unit:              "%",
		Period:            "30d",
		Category:          "availability",
		WarningThreshold:  99.5,
		CriticalThreshold: 99.0,
		HigherIsBetter:    true,
		Status:            SLAUnknown,
	})
	e.register(&SLATarget{
		ID:                "p95_latency",
		Name:              "P95 response latency",
		Target:            500,
		Unit:              "ms",
		Period:            "30d",
		Category:          "performance",
		WarningThreshold:  800,
		CriticalThreshold: 1000,
		HigherIsBetter:    false,
		Status:            SLAUnknown,
	})
	e.register(&SLATarget{
		ID:                "error_rate",
		Name:              "Request error rate",
		Target:            0.1,
		Unit:              "%",
		Period:            "30d",
		Category:          "reliability",
		WarningThreshold:  0.5,
		CriticalThreshold: 1.0,
		HigherIsBetter:    false,
		Status:            SLAUnknown,
	})

	return e
}

// WithClock overrides the clock for testing.
func (e *SLAEvaluator) WithClock(clock func() time.Time) *SLAEvaluator {
	e.now = clock
	return e
}

func (e *SLAEvaluator) register(target *SLATarget) {
	e.targets[target.ID] = target
	e.order = append(e.order, target.ID)
}

// Targets returns copies of all targets in registration order.
func (e *SLAEvaluator) Targets() []*SLATarget {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*SLATarget, 0, len(e.order))
	for _, id := range e.order {
		t := *e.targets[id]
		out = append(out, &t)
	}
	return out
}

// Compliance returns the fraction of evaluated targets that are healthy,
// in percent. Unevaluated targets are excluded; no targets evaluated
// reports 100.
func (e *SLAEvaluator) Compliance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	evaluated, healthy := 0, 0
	for _, t := range e.targets {
		if t.Status == SLAUnknown {
			continue
		}
		evaluated++
		if t.Status == SLAHealthy {
			healthy++
		}
	}
	if evaluated == 0 {
		return 100
	}
	return 100 * float64(healthy) / float64(evaluated)
}

// EvaluateAll recomputes every target's current value and status.
// Re-evaluating without new underlying data reproduces the same result.
func (e *SLAEvaluator) EvaluateAll(ctx context.Context) []*SLATarget {
	samples := e.api.CurrentMetrics()
	checks := e.api.HealthChecks()

	e.mu.Lock()

	type raised struct {
		target SLATarget
	}
	var toRaise []raised

	now := e.now()
	for _, id := range e.order {
		target := e.targets[id]

		value, ok := e.compute(target.ID, samples, checks)
		if !ok {
			target.Status = SLAUnknown
			target.LastEvaluatedAt = now
			e.critical[id] = false
			continue
		}

		target.CurrentValue = value
		target.LastEvaluatedAt = now
		target.Status = classifySLA(target, value)

		if target.Status == SLACritical {
			if !e.critical[id] {
				e.critical[id] = true
				toRaise = append(toRaise, raised{target: *target})
			}
		} else {
			e.critical[id] = false
		}
	}

	out := make([]*SLATarget, 0, len(e.order))
	for _, id := range e.order {
		t := *e.targets[id]
		out = append(out, &t)
	}

	e.mu.Unlock()

	for _, r := range toRaise {
		e.raiseCritical(ctx, r.target)
	}

	return out
}

func (e *SLAEvaluator) raiseCritical(ctx context.Context, target SLATarget) {
	direction := "below"
	if !target.HigherIsBetter {
		direction = "above"
	}

	_, err := e.incidents.CreateIncident(ctx, CreateIncidentInput{
		Title:    fmt.Sprintf("SLA critical: %s", target.Name),
		Severity: SeverityHigh,
		Category: "availability",
		Description: fmt.Sprintf("%s is %.2f%s, %s the target of %.2f%s (critical threshold %.2f%s)",
			target.Name, target.CurrentValue, target.Unit,
			direction, target.Target, target.Unit,
			target.CriticalThreshold, target.Unit),
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to raise SLA incident", "target", target.ID, "error", err)
	}
}

// compute returns the live value for a target, or ok=false when there is no
// underlying data to compute it from.
func (e *SLAEvaluator) compute(id string, samples []ResponseSample, checks []HealthCheck) (float64, bool) {
	switch id {
	case "availability":
		if len(checks) == 0 {
			return 0, false
		}
		healthy := 0
		for _, c := range checks {
			if c.State == HealthHealthy {
				healthy++
			}
		}
		return 100 * float64(healthy) / float64(len(checks)), true

	case "p95_latency":
		if len(samples) == 0 {
			return 0, false
		}
		latencies := make([]float64, len(samples))
		for i, s := range samples {
			latencies[i] = float64(s.ResponseTime.Milliseconds())
		}
		return percentile(latencies, 0.95), true

	case "error_rate":
		if len(samples) == 0 {
			return 0, false
		}
		errors := 0
		for _, s := range samples {
			if s.StatusCode >= 400 || s.StatusCode == 0 {
				errors++
			}
		}
		return 100 * float64(errors) / float64(len(samples)), true

	default:
		return 0, false
	}
}

// classifySLA applies the boundary rules: meeting the target is healthy,
// meeting the warning threshold is warning, anything past it is critical.
func classifySLA(target *SLATarget, value float64) SLAStatus {
	if target.HigherIsBetter {
		switch {
		case value >= target.Target:
			return SLAHealthy
		case value >= target.WarningThreshold:
			return SLAWarning
		default:
			return SLACritical
		}
	}
	switch {
	case value <= target.Target:
		return SLAHealthy
	case value <= target.WarningThreshold:
		return SLAWarning
	default:
		return SLACritical
	}
}

// percentile returns the p-th percentile (0..1) of values using
// nearest-rank on a sorted copy.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(p*float64(len(sorted))+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
