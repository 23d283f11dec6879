package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Core Web Vitals thresholds, evaluated per sample at ingestion time.
const (
	LCPThresholdMs = 2500.0
	FIDThresholdMs = 100.0
	CLSThreshold   = 0.1
)

// MetricService records business and user-experience metrics and evaluates
// thresholds synchronously at ingestion. Every breaching record raises its
// own incident; there is no cross-record deduplication.
type MetricService struct {
	store     MetricStore
	incidents *IncidentManager
	logger    *slog.Logger
	now       func() time.Time
}

// NewMetricService creates a metric service over the given store.
func NewMetricService(store MetricStore, incidents *IncidentManager, logger *slog.Logger) *MetricService {
	return &MetricService{
		store:     store,
		incidents: incidents,
		logger:    logger.With("component", "metrics"),
		now:       time.Now,
	}
}

// WithClock overrides the clock for testing.
func (s *MetricService) WithClock(clock func() time.Time) *MetricService {
	s.now = clock
	return s
}

// RecordBusinessMetric stamps and stores a metric, then checks its threshold.
// Critical takes precedence over warning; a breach raises one incident of
// matching severity (critical or medium).
func (s *MetricService) RecordBusinessMetric(ctx context.Context, metric BusinessMetric) (*BusinessMetric, error) {
	if metric.Name == "" {
		return nil, fmt.Errorf("metric name is required")
	}

	metric.ID = uuid.New().String()
	metric.Timestamp = s.now()

	if err := s.store.AppendBusinessMetric(ctx, &metric); err != nil {
		return nil, fmt.Errorf("failed to store business metric: %w", err)
	}

	s.logger.DebugContext(ctx, "business metric recorded",
		"name", metric.Name,
		"category", metric.Category,
		"value", metric.Value,
	)

	if metric.Threshold != nil {
		s.checkBusinessThreshold(ctx, &metric)
	}

	return &metric, nil
}

func (s *MetricService) checkBusinessThreshold(ctx context.Context, metric *BusinessMetric) {
	var severity IncidentSeverity
	var breached float64

	switch {
	case metric.Value > metric.Threshold.Critical:
		severity = SeverityCritical
		breached = metric.Threshold.Critical
	case metric.Value > metric.Threshold.Warning:
		severity = SeverityMedium
		breached = metric.Threshold.Warning
	default:
		return
	}

	_, err := s.incidents.CreateIncident(ctx, CreateIncidentInput{
		Title:    fmt.Sprintf("Business metric threshold exceeded: %s", metric.Name),
		Severity: severity,
		Category: "business",
		Description: fmt.Sprintf("%s is %.2f%s, above the %s threshold of %.2f%s",
			metric.Name, metric.Value, metric.Unit, severity, breached, metric.Unit),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to raise threshold incident", "metric", metric.Name, "error", err)
	}
}

// RecordUserExperienceMetric stamps and stores a page-load sample, then
// evaluates the Core Web Vitals thresholds. All violated vitals are listed
// in a single medium-severity performance incident.
func (s *MetricService) RecordUserExperienceMetric(ctx context.Context, metric UserExperienceMetric) (*UserExperienceMetric, error) {
	metric.ID = uuid.New().String()
	metric.Timestamp = s.now()

	if err := s.store.AppendUserExperienceMetric(ctx, &metric); err != nil {
		return nil, fmt.Errorf("failed to store user experience metric: %w", err)
	}

	s.logger.DebugContext(ctx, "user experience metric recorded",
		"page", metric.PageURL,
		"lcp_ms", metric.LargestContentfulPaint,
		"fid_ms", metric.FirstInputDelay,
		"cls", metric.CumulativeLayoutShift,
	)

	var violations []string
	if metric.LargestContentfulPaint > LCPThresholdMs {
		violations = append(violations, fmt.Sprintf("LCP %.0fms > %.0fms", metric.LargestContentfulPaint, LCPThresholdMs))
	}
	if metric.FirstInputDelay > FIDThresholdMs {
		violations = append(violations, fmt.Sprintf("FID %.0fms > %.0fms", metric.FirstInputDelay, FIDThresholdMs))
	}
	if metric.CumulativeLayoutShift > CLSThreshold {
		violations = append(violations, fmt.Sprintf("CLS %.3f > %.1f", metric.CumulativeLayoutShift, CLSThreshold))
	}

	if len(violations) > 0 {
		_, err := s.incidents.CreateIncident(ctx, CreateIncidentInput{
			Title:       "Core Web Vitals threshold exceeded",
			Severity:    SeverityMedium,
			Category:    "performance",
			Description: fmt.Sprintf("Page %s violated: %s", metric.PageURL, strings.Join(violations, ", ")),
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to raise web vitals incident", "page", metric.PageURL, "error", err)
		}
	}

	return &metric, nil
}

// BusinessMetrics returns business metrics filtered by the query, newest
// first.
func (s *MetricService) BusinessMetrics(ctx context.Context, query BusinessMetricQuery) ([]*BusinessMetric, error) {
	metrics, err := s.store.BusinessMetrics(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query business metrics: %w", err)
	}
	return metrics, nil
}

// UserExperienceMetrics returns the most recent page-load samples.
func (s *MetricService) UserExperienceMetrics(ctx context.Context, limit int) ([]*UserExperienceMetric, error) {
	metrics, err := s.store.UserExperienceMetrics(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query user experience metrics: %w", err)
	}
	return metrics, nil
}

// InfrastructureMetrics returns infrastructure snapshots filtered by the
// query, newest first.
func (s *MetricService) InfrastructureMetrics(ctx context.Context, query InfrastructureMetricQuery) ([]*InfrastructureMetric, error) {
	metrics, err := s.store.InfrastructureMetrics(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query infrastructure metrics: %w", err)
	}
	return metrics, nil
}

// MetricCounts reports current store sizes.
func (s *MetricService) MetricCounts(ctx context.Context) (MetricCounts, error) {
	return s.store.MetricCounts(ctx)
}
