package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// Process heap thresholds in megabytes.
const (
	HeapWarningMB  = 1000.0
	HeapCriticalMB = 1500.0
)

// ConnectionCounter probes the database for its connection count.
// *database.DB satisfies this.
type ConnectionCounter interface {
	ConnectionCount(ctx context.Context) (int, error)
}

// MemoryProbe probes the cache server for its used memory.
// *cache.Client satisfies this.
type MemoryProbe interface {
	UsedMemoryBytes(ctx context.Context) (int64, error)
}

// InfrastructureCollector gathers one combined system snapshot per run:
// process memory and goroutines, the database connection count, and the
// cache server's memory usage. Thresholds are checked synchronously; a
// breach attaches an alert to the metric and raises an incident.
//
// A failing probe degrades to a zeroed value and never fails the collection.
type InfrastructureCollector struct {
	store     MetricStore
	incidents *IncidentManager
	db        ConnectionCounter
	cache     MemoryProbe
	logger    *slog.Logger
	now       func() time.Time
	readMem   func() (heapMB, sysMB float64)
}

// NewInfrastructureCollector creates a collector. db and cache may be nil
// when those probes are not wired.
func NewInfrastructureCollector(store MetricStore, incidents *IncidentManager, db ConnectionCounter, cache MemoryProbe, logger *slog.Logger) *InfrastructureCollector {
	return &InfrastructureCollector{
		store:     store,
		incidents: incidents,
		db:        db,
		cache:     cache,
		logger:    logger.With("component", "infra"),
		now:       time.Now,
		readMem:   readRuntimeMemory,
	}
}

// WithClock overrides the clock for testing.
func (c *InfrastructureCollector) WithClock(clock func() time.Time) *InfrastructureCollector {
	c.now = clock
	return c
}

// WithMemorySource overrides the process memory reading for testing.
func (c *InfrastructureCollector) WithMemorySource(read func() (heapMB, sysMB float64)) *InfrastructureCollector {
	c.readMem = read
	return c
}

func readRuntimeMemory() (float64, float64) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / (1024 * 1024), float64(ms.Sys) / (1024 * 1024)
}

// Collect gathers one snapshot, stores it, and raises incidents for any
// threshold breach.
func (c *InfrastructureCollector) Collect(ctx context.Context) (*InfrastructureMetric, error) {
	heapMB, sysMB := c.readMem()

	values := map[string]float64{
		"memory_heap_used_mb": heapMB,
		"memory_sys_mb":       sysMB,
		"goroutines":          float64(runtime.NumGoroutine()),
	}

	if c.db != nil {
		count, err := c.db.ConnectionCount(ctx)
		if err != nil {
			c.logger.WarnContext(ctx, "database probe failed", "error", err)
			count = 0
		}
		values["database_connections"] = float64(count)
	}

	if c.cache != nil {
		used, err := c.cache.UsedMemoryBytes(ctx)
		if err != nil {
			c.logger.WarnContext(ctx, "cache probe failed", "error", err)
			used = 0
		}
		values["cache_memory_used_mb"] = float64(used) / (1024 * 1024)
	}

	metric := &InfrastructureMetric{
		ID:        uuid.New().String(),
		Source:    SourceSystem,
		Values:    values,
		Timestamp: c.now(),
	}

	if alert := c.checkHeap(heapMB); alert != nil {
		metric.Alerts = append(metric.Alerts, *alert)

		_, err := c.incidents.CreateIncident(ctx, CreateIncidentInput{
			Title:       "Infrastructure threshold exceeded: memory_heap_used_mb",
			Severity:    alert.Severity,
			Category:    "infrastructure",
			Description: alert.Message,
		})
		if err != nil {
			c.logger.ErrorContext(ctx, "failed to raise infrastructure incident", "error", err)
		}
	}

	if err := c.store.AppendInfrastructureMetric(ctx, metric); err != nil {
		return nil, fmt.Errorf("failed to store infrastructure metric: %w", err)
	}

	c.logger.DebugContext(ctx, "infrastructure metric collected",
		"heap_mb", heapMB,
		"alerts", len(metric.Alerts),
	)

	return metric, nil
}

func (c *InfrastructureCollector) checkHeap(heapMB float64) *InfraAlert {
	switch {
	case heapMB > HeapCriticalMB:
		return &InfraAlert{
			Metric:    "memory_heap_used_mb",
			Value:     heapMB,
			Threshold: HeapCriticalMB,
			Severity:  SeverityHigh,
			Message:   fmt.Sprintf("memory_heap_used_mb is %.0f MB, above the critical threshold of %.0f MB", heapMB, HeapCriticalMB),
		}
	case heapMB > HeapWarningMB:
		return &InfraAlert{
			Metric:    "memory_heap_used_mb",
			Value:     heapMB,
			Threshold: HeapWarningMB,
			Severity:  SeverityMedium,
			Message:   fmt.Sprintf("memory_heap_used_mb is %.0f MB, above the warning threshold of %.0f MB", heapMB, HeapWarningMB),
		}
	default:
		return nil
	}
}
