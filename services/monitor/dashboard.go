package monitor

import (
	"fmt"
	"sync"
	"time"
)

// WidgetType identifies how a dashboard widget renders.
type WidgetType string

const (
	WidgetMetric WidgetType = "metric"
	WidgetChart  WidgetType = "chart"
	WidgetTable  WidgetType = "table"
	WidgetAlert  WidgetType = "alert"
	WidgetText   WidgetType = "text"
)

// WidgetPosition places a widget on a dashboard grid.
type WidgetPosition struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Widget is one tile on a dashboard. Config is renderer-specific and opaque
// to the registry.
type Widget struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Type     WidgetType        `json:"type"`
	Position WidgetPosition    `json:"position"`
	Config   map[string]string `json:"config,omitempty"`
}

// Dashboard is a named widget layout. The registry only tracks layouts and
// refresh times; rendering happens elsewhere.
type Dashboard struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Widgets         []Widget  `json:"widgets"`
	CreatedAt       time.Time `json:"created_at"`
	LastRefreshedAt time.Time `json:"last_refreshed_at"`
}

// DashboardRegistry holds dashboard layouts in memory.
type DashboardRegistry struct {
	mu         sync.RWMutex
	dashboards map[string]*Dashboard
	order      []string
	now        func() time.Time
}

// NewDashboardRegistry creates a registry pre-loaded with the default
// operations overview dashboard.
func NewDashboardRegistry() *DashboardRegistry {
	r := &DashboardRegistry{
		dashboards: make(map[string]*Dashboard),
		now:        time.Now,
	}
	r.Register(defaultOperationsDashboard())
	return r
}

// WithClock overrides the clock for testing.
func (r *DashboardRegistry) WithClock(clock func() time.Time) *DashboardRegistry {
	r.now = clock
	return r
}

// Register adds or replaces a dashboard layout.
func (r *DashboardRegistry) Register(d *Dashboard) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.now()
	}
	if _, exists := r.dashboards[d.ID]; !exists {
		r.order = append(r.order, d.ID)
	}
	r.dashboards[d.ID] = d
}

// Get returns a copy of a dashboard.
func (r *DashboardRegistry) Get(id string) (*Dashboard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.dashboards[id]
	if !ok {
		return nil, fmt.Errorf("dashboard not found: %s", id)
	}
	return copyDashboard(d), nil
}

// List returns copies of all dashboards in registration order.
func (r *DashboardRegistry) List() []*Dashboard {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Dashboard, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, copyDashboard(r.dashboards[id]))
	}
	return out
}

// RefreshAll stamps every dashboard's LastRefreshedAt and returns the
// refreshed copies.
func (r *DashboardRegistry) RefreshAll() []*Dashboard {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	out := make([]*Dashboard, 0, len(r.order))
	for _, id := range r.order {
		r.dashboards[id].LastRefreshedAt = now
		out = append(out, copyDashboard(r.dashboards[id]))
	}
	return out
}

func copyDashboard(d *Dashboard) *Dashboard {
	c := *d
	c.Widgets = make([]Widget, len(d.Widgets))
	copy(c.Widgets, d.Widgets)
	return &c
}

func defaultOperationsDashboard() *Dashboard {
	return &Dashboard{
		ID:          "operations-overview",
		Name:        "Operations Overview",
		Description: "Health score, active incidents, SLA compliance, and API latency at a glance",
		Widgets: []Widget{
			{
				ID:       "health-score",
				Title:    "Health Score",
				Type:     WidgetMetric,
				Position: WidgetPosition{X: 0, Y: 0, Width: 3, Height: 2},
				Config:   map[string]string{"source": "health_score", "format": "gauge"},
			},
			{
				ID:       "active-incidents",
				Title:    "Active Incidents",
				Type:     WidgetAlert,
				Position: WidgetPosition{X: 3, Y: 0, Width: 3, Height: 2},
				Config:   map[string]string{"source": "active_incidents"},
			},
			{
				ID:       "sla-compliance",
				Title:    "SLA Compliance",
				Type:     WidgetMetric,
				Position: WidgetPosition{X: 6, Y: 0, Width: 3, Height: 2},
				Config:   map[string]string{"source": "sla_compliance", "unit": "%"},
			},
			{
				ID:       "response-times",
				Title:    "API Response Times",
				Type:     WidgetChart,
				Position: WidgetPosition{X: 0, Y: 2, Width: 6, Height: 3},
				Config:   map[string]string{"source": "response_samples", "chart": "line"},
			},
			{
				ID:       "infra-metrics",
				Title:    "Infrastructure",
				Type:     WidgetTable,
				Position: WidgetPosition{X: 6, Y: 2, Width: 6, Height: 3},
				Config:   map[string]string{"source": "infrastructure_metrics"},
			},
		},
	}
}
