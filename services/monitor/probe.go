package monitor

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const probeSampleHistory = 200

// degradedLatency is the response time above which a responding endpoint
// is considered degraded rather than healthy.
const degradedLatency = time.Second

// HTTPProber polls a fixed set of HTTP endpoints and keeps a rolling window
// of response samples plus the latest health check per endpoint.
type HTTPProber struct {
	endpoints []string
	client    *http.Client
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	samples []ResponseSample
	checks  map[string]HealthCheck
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ APIMonitor = (*HTTPProber)(nil)

func NewHTTPProber(endpoints []string, timeout time.Duration, logger *slog.Logger) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{
		endpoints: endpoints,
		client:    &http.Client{Timeout: timeout},
		logger:    logger.With("component", "prober"),
		now:       time.Now,
		checks:    make(map[string]HealthCheck),
	}
}

// WithClock overrides the clock for testing.
func (p *HTTPProber) WithClock(clock func() time.Time) *HTTPProber {
	p.now = clock
	return p
}

// StartMonitoring begins polling on the given interval. Starting an
// already-running prober is a no-op.
func (p *HTTPProber) StartMonitoring(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx, interval)
}

// StopMonitoring stops polling and waits for the poll goroutine to exit.
func (p *HTTPProber) StopMonitoring() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *HTTPProber) run(ctx context.Context, interval time.Duration) {
	defer close(p.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.pollAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

func (p *HTTPProber) pollAll(ctx context.Context) {
	for _, endpoint := range p.endpoints {
		p.poll(ctx, endpoint)
	}
}

func (p *HTTPProber) poll(ctx context.Context, endpoint string) {
	start := p.now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		p.record(endpoint, 0, p.now().Sub(start))
		p.logger.WarnContext(ctx, "invalid probe endpoint", "endpoint", endpoint, "error", err)
		return
	}

	resp, err := p.client.Do(req)
	elapsed := p.now().Sub(start)
	if err != nil {
		p.record(endpoint, 0, elapsed)
		p.logger.WarnContext(ctx, "probe failed", "endpoint", endpoint, "error", err)
		return
	}
	resp.Body.Close()

	p.record(endpoint, resp.StatusCode, elapsed)
}

func (p *HTTPProber) record(endpoint string, statusCode int, elapsed time.Duration) {
	now := p.now()

	state := HealthHealthy
	switch {
	case statusCode == 0 || statusCode >= 500:
		state = HealthUnhealthy
	case statusCode >= 400 || elapsed > degradedLatency:
		state = HealthDegraded
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.samples = append(p.samples, ResponseSample{
		Endpoint:     endpoint,
		StatusCode:   statusCode,
		ResponseTime: elapsed,
		Timestamp:    now,
	})
	if len(p.samples) > probeSampleHistory {
		p.samples = p.samples[len(p.samples)-probeSampleHistory:]
	}

	p.checks[endpoint] = HealthCheck{
		Endpoint:  endpoint,
		State:     state,
		CheckedAt: now,
	}
}

// CurrentMetrics returns a copy of the rolling sample window, oldest first.
func (p *HTTPProber) CurrentMetrics() []ResponseSample {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]ResponseSample, len(p.samples))
	copy(out, p.samples)
	return out
}

// HealthChecks returns the latest health check per endpoint.
func (p *HTTPProber) HealthChecks() []HealthCheck {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]HealthCheck, 0, len(p.checks))
	for _, endpoint := range p.endpoints {
		if check, ok := p.checks[endpoint]; ok {
			out = append(out, check)
		}
	}
	return out
}

// MonitoringStatus summarizes endpoint health and sample volume.
func (p *HTTPProber) MonitoringStatus() MonitoringStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	var status MonitoringStatus
	status.MetricsCount = len(p.samples)
	for _, check := range p.checks {
		switch check.State {
		case HealthHealthy:
			status.HealthyEndpoints++
		case HealthDegraded:
			status.DegradedEndpoints++
		case HealthUnhealthy:
			status.UnhealthyEndpoints++
		}
	}
	return status
}
