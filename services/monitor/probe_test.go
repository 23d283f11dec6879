package monitor

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/instantcocoa/vigil/pkg/testutil"
)

func TestHTTPProber_PollsEndpoints(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	prober := NewHTTPProber([]string{healthy.URL, failing.URL}, time.Second, testutil.DiscardLogger())
	prober.StartMonitoring(10 * time.Millisecond)
	defer prober.StopMonitoring()

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return len(prober.CurrentMetrics()) >= 4
	}, "prober recorded no samples")

	checks := prober.HealthChecks()
	if len(checks) != 2 {
		t.Fatalf("len(checks) = %d, want 2", len(checks))
	}
	byEndpoint := make(map[string]HealthState)
	for _, c := range checks {
		byEndpoint[c.Endpoint] = c.State
	}
	if byEndpoint[healthy.URL] != HealthHealthy {
		t.Errorf("healthy endpoint state = %q, want %q", byEndpoint[healthy.URL], HealthHealthy)
	}
	if byEndpoint[failing.URL] != HealthUnhealthy {
		t.Errorf("failing endpoint state = %q, want %q", byEndpoint[failing.URL], HealthUnhealthy)
	}

	status := prober.MonitoringStatus()
	if status.HealthyEndpoints != 1 || status.UnhealthyEndpoints != 1 {
		t.Errorf("MonitoringStatus() = %+v", status)
	}
	if status.MetricsCount == 0 {
		t.Error("MonitoringStatus().MetricsCount = 0")
	}
}

func TestHTTPProber_UnreachableEndpoint(t *testing.T) {
	// A closed server: connections are refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	prober := NewHTTPProber([]string{url}, 200*time.Millisecond, testutil.DiscardLogger())
	prober.StartMonitoring(10 * time.Millisecond)
	defer prober.StopMonitoring()

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return len(prober.CurrentMetrics()) >= 1
	}, "prober recorded no samples")

	samples := prober.CurrentMetrics()
	if samples[0].StatusCode != 0 {
		t.Errorf("unreachable sample StatusCode = %d, want 0", samples[0].StatusCode)
	}

	checks := prober.HealthChecks()
	if len(checks) != 1 || checks[0].State != HealthUnhealthy {
		t.Errorf("checks = %+v, want one unhealthy", checks)
	}
}

func TestHTTPProber_StartIdempotent(t *testing.T) {
	prober := NewHTTPProber(nil, time.Second, testutil.DiscardLogger())

	prober.StartMonitoring(time.Hour)
	prober.StartMonitoring(time.Hour) // no-op
	prober.StopMonitoring()
	prober.StopMonitoring() // no-op
}

func TestHTTPProber_SampleWindowBounded(t *testing.T) {
	prober := NewHTTPProber(nil, time.Second, testutil.DiscardLogger())

	for i := 0; i < probeSampleHistory+50; i++ {
		prober.record("/x", 200, 10*time.Millisecond)
	}
	if n := len(prober.CurrentMetrics()); n != probeSampleHistory {
		t.Errorf("sample window = %d, want %d", n, probeSampleHistory)
	}
}
