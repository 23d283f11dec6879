package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

const (
	// anomalyWindow is how many of the most recent response samples are
	// considered per detection pass.
	anomalyWindow = 100
	// anomalyMinSamples is the minimum window size before detection runs.
	anomalyMinSamples = 10
	// anomalySigma is the deviation multiple that marks a sample as an outlier.
	anomalySigma = 2.0
	// anomalyRatio is the outlier fraction that must be exceeded to raise
	// an incident.
	anomalyRatio = 0.10
)

// AnomalyResult is the outcome of a single detection pass.
type AnomalyResult struct {
	SampleCount int
	Mean        float64
	StdDev      float64
	Outliers    []ResponseSample
	Ratio       float64
	Triggered   bool
}

// AnomalyDetector flags response-time outliers in the recent sample window.
// Each pass is stateless: the statistics are recomputed from scratch.
type AnomalyDetector struct {
	incidents *IncidentManager
	logger    *slog.Logger
}

func NewAnomalyDetector(incidents *IncidentManager, logger *slog.Logger) *AnomalyDetector {
	return &AnomalyDetector{
		incidents: incidents,
		logger:    logger.With("component", "anomaly"),
	}
}

// Detect analyzes the most recent samples and raises one medium incident
// when the outlier fraction strictly exceeds the trigger ratio. Fewer than
// the minimum number of samples skips detection entirely.
func (d *AnomalyDetector) Detect(ctx context.Context, samples []ResponseSample) (*AnomalyResult, error) {
	if len(samples) > anomalyWindow {
		samples = samples[len(samples)-anomalyWindow:]
	}

	result := &AnomalyResult{SampleCount: len(samples)}
	if len(samples) < anomalyMinSamples {
		return result, nil
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s.ResponseTime.Milliseconds())
	}
	result.Mean = sum / float64(len(samples))

	var variance float64
	for _, s := range samples {
		diff := float64(s.ResponseTime.Milliseconds()) - result.Mean
		variance += diff * diff
	}
	result.StdDev = math.Sqrt(variance / float64(len(samples)))

	if result.StdDev == 0 {
		return result, nil
	}

	for _, s := range samples {
		if math.Abs(float64(s.ResponseTime.Milliseconds())-result.Mean) > anomalySigma*result.StdDev {
			result.Outliers = append(result.Outliers, s)
		}
	}
	result.Ratio = float64(len(result.Outliers)) / float64(len(samples))
	result.Triggered = result.Ratio > anomalyRatio

	if !result.Triggered {
		return result, nil
	}

	d.logger.WarnContext(ctx, "response time anomaly detected",
		"outliers", len(result.Outliers),
		"samples", result.SampleCount,
		"mean_ms", result.Mean,
		"stddev_ms", result.StdDev)

	_, err := d.incidents.CreateIncident(ctx, CreateIncidentInput{
		Title:    "Response time anomaly detected",
		Severity: SeverityMedium,
		Category: "performance",
		Description: fmt.Sprintf("%d of %d recent response samples deviate more than %.0f standard deviations from the mean of %.0fms (stddev %.0fms)",
			len(result.Outliers), result.SampleCount, anomalySigma, result.Mean, result.StdDev),
	})
	if err != nil {
		return result, fmt.Errorf("failed to raise anomaly incident: %w", err)
	}
	return result, nil
}

// slowestOutlier returns the single worst sample in a detection pass, or
// zero when there were no outliers.
func (r *AnomalyResult) slowestOutlier() time.Duration {
	var worst time.Duration
	for _, s := range r.Outliers {
		if s.ResponseTime > worst {
			worst = s.ResponseTime
		}
	}
	return worst
}
