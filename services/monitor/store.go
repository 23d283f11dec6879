package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// IncidentStore defines the interface for incident persistence. The
// IncidentManager is its only writer.
type IncidentStore interface {
	CreateIncident(ctx context.Context, incident *Incident) error
	GetIncident(ctx context.Context, id string) (*Incident, error)
	UpdateIncident(ctx context.Context, incident *Incident) error
	ListIncidents(ctx context.Context, query IncidentQuery) ([]*Incident, int, error)
}

// MetricStore defines the interface for the three metric collections.
type MetricStore interface {
	AppendBusinessMetric(ctx context.Context, m *BusinessMetric) error
	BusinessMetrics(ctx context.Context, query BusinessMetricQuery) ([]*BusinessMetric, error)
	AppendUserExperienceMetric(ctx context.Context, m *UserExperienceMetric) error
	UserExperienceMetrics(ctx context.Context, limit int) ([]*UserExperienceMetric, error)
	AppendInfrastructureMetric(ctx context.Context, m *InfrastructureMetric) error
	InfrastructureMetrics(ctx context.Context, query InfrastructureMetricQuery) ([]*InfrastructureMetric, error)
	MetricCounts(ctx context.Context) (MetricCounts, error)
	PurgeMetricsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// MetricCounts reports store sizes for snapshots and reports.
type MetricCounts struct {
	Business       int `json:"business"`
	UserExperience int `json:"user_experience"`
	Infrastructure int `json:"infrastructure"`
}

// MemoryMetricStore is an in-memory implementation of MetricStore.
type MemoryMetricStore struct {
	mu       sync.RWMutex
	business []*BusinessMetric
	ux       []*UserExperienceMetric
	infra    []*InfrastructureMetric
}

// NewMemoryMetricStore creates a new in-memory metric store.
func NewMemoryMetricStore() *MemoryMetricStore {
	return &MemoryMetricStore{}
}

func (s *MemoryMetricStore) AppendBusinessMetric(ctx context.Context, m *BusinessMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.business = append(s.business, m)
	return nil
}

func (s *MemoryMetricStore) BusinessMetrics(ctx context.Context, query BusinessMetricQuery) ([]*BusinessMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*BusinessMetric
	for _, m := range s.business {
		if query.Category != "" && m.Category != query.Category {
			continue
		}
		if !query.StartTime.IsZero() && m.Timestamp.Before(query.StartTime) {
			continue
		}
		if !query.EndTime.IsZero() && m.Timestamp.After(query.EndTime) {
			continue
		}
		results = append(results, m)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})

	if query.Limit > 0 && len(results) > query.Limit {
		results = results[:query.Limit]
	}

	return results, nil
}

func (s *MemoryMetricStore) AppendUserExperienceMetric(ctx context.Context, m *UserExperienceMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ux = append(s.ux, m)
	return nil
}

func (s *MemoryMetricStore) UserExperienceMetrics(ctx context.Context, limit int) ([]*UserExperienceMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*UserExperienceMetric, len(s.ux))
	copy(results, s.ux)

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

func (s *MemoryMetricStore) AppendInfrastructureMetric(ctx context.Context, m *InfrastructureMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infra = append(s.infra, m)
	return nil
}

func (s *MemoryMetricStore) InfrastructureMetrics(ctx context.Context, query InfrastructureMetricQuery) ([]*InfrastructureMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*InfrastructureMetric
	for _, m := range s.infra {
		if query.Source != "" && m.Source != query.Source {
			continue
		}
		if !query.StartTime.IsZero() && m.Timestamp.Before(query.StartTime) {
			continue
		}
		if !query.EndTime.IsZero() && m.Timestamp.After(query.EndTime) {
			continue
		}
		results = append(results, m)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})

	if query.Limit > 0 && len(results) > query.Limit {
		results = results[:query.Limit]
	}

	return results, nil
}

func (s *MemoryMetricStore) MetricCounts(ctx context.Context) (MetricCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return MetricCounts{
		Business:       len(s.business),
		UserExperience: len(s.ux),
		Infrastructure: len(s.infra),
	}, nil
}

func (s *MemoryMetricStore) PurgeMetricsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0

	kept := s.business[:0]
	for _, m := range s.business {
		if m.Timestamp.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, m)
	}
	s.business = kept

	keptUX := s.ux[:0]
	for _, m := range s.ux {
		if m.Timestamp.Before(cutoff) {
			purged++
			continue
		}
		keptUX = append(keptUX, m)
	}
	s.ux = keptUX

	keptInfra := s.infra[:0]
	for _, m := range s.infra {
		if m.Timestamp.Before(cutoff) {
			purged++
			continue
		}
		keptInfra = append(keptInfra, m)
	}
	s.infra = keptInfra

	return purged, nil
}

// MemoryIncidentStore is an in-memory implementation of IncidentStore.
type MemoryIncidentStore struct {
	mu        sync.RWMutex
	incidents map[string]*Incident
	order     []string // creation order
}

// NewMemoryIncidentStore creates a new in-memory incident store.
func NewMemoryIncidentStore() *MemoryIncidentStore {
	return &MemoryIncidentStore{
		incidents: make(map[string]*Incident),
	}
}

func (s *MemoryIncidentStore) CreateIncident(ctx context.Context, incident *Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.incidents[incident.ID]; exists {
		return fmt.Errorf("incident already exists: %s", incident.ID)
	}

	s.incidents[incident.ID] = copyIncident(incident)
	s.order = append(s.order, incident.ID)
	return nil
}

func (s *MemoryIncidentStore) GetIncident(ctx context.Context, id string) (*Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	incident, ok := s.incidents[id]
	if !ok {
		return nil, nil
	}
	return copyIncident(incident), nil
}

func (s *MemoryIncidentStore) UpdateIncident(ctx context.Context, incident *Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.incidents[incident.ID]; !ok {
		return fmt.Errorf("incident not found: %s", incident.ID)
	}

	s.incidents[incident.ID] = copyIncident(incident)
	return nil
}

func (s *MemoryIncidentStore) ListIncidents(ctx context.Context, query IncidentQuery) ([]*Incident, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Incident
	for _, id := range s.order {
		incident := s.incidents[id]
		if query.Status != "" && incident.Status != query.Status {
			continue
		}
		if query.Severity != "" && incident.Severity != query.Severity {
			continue
		}
		if query.Category != "" && incident.Category != query.Category {
			continue
		}
		results = append(results, copyIncident(incident))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	total := len(results)

	if query.Offset > 0 {
		if query.Offset >= len(results) {
			results = nil
		} else {
			results = results[query.Offset:]
		}
	}
	if query.Limit > 0 && len(results) > query.Limit {
		results = results[:query.Limit]
	}

	return results, total, nil
}

// copyIncident returns a copy deep enough that callers cannot alias the
// stored timeline or service list.
func copyIncident(in *Incident) *Incident {
	out := *in
	out.Timeline = make([]TimelineEntry, len(in.Timeline))
	copy(out.Timeline, in.Timeline)
	out.AffectedServices = make([]string, len(in.AffectedServices))
	copy(out.AffectedServices, in.AffectedServices)
	if in.ResolvedAt != nil {
		resolvedAt := *in.ResolvedAt
		out.ResolvedAt = &resolvedAt
	}
	return &out
}

// Ensure implementations satisfy interfaces
var (
	_ MetricStore   = (*MemoryMetricStore)(nil)
	_ IncidentStore = (*MemoryIncidentStore)(nil)
)
