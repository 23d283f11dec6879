package monitor

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Migrations holds the schema for the PostgreSQL-backed incident store.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations containing the SQL files.
const MigrationsDir = "migrations"

// PostgresIncidentStore implements IncidentStore using PostgreSQL. The
// timeline is stored as a JSONB document since it is only ever read and
// appended as a whole.
type PostgresIncidentStore struct {
	db *sql.DB
}

// NewPostgresIncidentStore creates a new PostgreSQL-backed incident store.
func NewPostgresIncidentStore(db *sql.DB) *PostgresIncidentStore {
	return &PostgresIncidentStore{db: db}
}

var _ IncidentStore = (*PostgresIncidentStore)(nil)

func (s *PostgresIncidentStore) CreateIncident(ctx context.Context, incident *Incident) error {
	timeline, err := json.Marshal(incident.Timeline)
	if err != nil {
		return fmt.Errorf("failed to encode timeline: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO incidents (id, title, description, severity, status, category,
			affected_services, timeline, root_cause, post_mortem_url,
			created_at, updated_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, incident.ID, incident.Title, incident.Description,
		string(incident.Severity), string(incident.Status), incident.Category,
		pq.Array(incident.AffectedServices), timeline,
		incident.RootCause, incident.PostMortemURL,
		incident.CreatedAt, incident.UpdatedAt, incident.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}
	return nil
}

func (s *PostgresIncidentStore) GetIncident(ctx context.Context, id string) (*Incident, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, severity, status, category,
			affected_services, timeline, root_cause, post_mortem_url,
			created_at, updated_at, resolved_at
		FROM incidents WHERE id = $1
	`, id)

	incident, err := scanIncident(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return incident, nil
}

func (s *PostgresIncidentStore) UpdateIncident(ctx context.Context, incident *Incident) error {
	timeline, err := json.Marshal(incident.Timeline)
	if err != nil {
		return fmt.Errorf("failed to encode timeline: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE incidents
		SET title = $2, description = $3, severity = $4, status = $5, category = $6,
			affected_services = $7, timeline = $8, root_cause = $9,
			post_mortem_url = $10, updated_at = $11, resolved_at = $12
		WHERE id = $1
	`, incident.ID, incident.Title, incident.Description,
		string(incident.Severity), string(incident.Status), incident.Category,
		pq.Array(incident.AffectedServices), timeline,
		incident.RootCause, incident.PostMortemURL,
		incident.UpdatedAt, incident.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("incident not found: %s", incident.ID)
	}
	return nil
}

func (s *PostgresIncidentStore) ListIncidents(ctx context.Context, query IncidentQuery) ([]*Incident, int, error) {
	var conditions []string
	var args []interface{}

	if query.Status != "" {
		args = append(args, string(query.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if query.Severity != "" {
		args = append(args, string(query.Severity))
		conditions = append(conditions, fmt.Sprintf("severity = $%d", len(args)))
	}
	if query.Category != "" {
		args = append(args, query.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM incidents "+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count incidents: %w", err)
	}

	listQuery := fmt.Sprintf(`
		SELECT id, title, description, severity, status, category,
			affected_services, timeline, root_cause, post_mortem_url,
			created_at, updated_at, resolved_at
		FROM incidents %s
		ORDER BY created_at DESC
	`, where)
	if query.Limit > 0 {
		args = append(args, query.Limit)
		listQuery += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if query.Offset > 0 {
		args = append(args, query.Offset)
		listQuery += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read incidents: %w", err)
	}

	return incidents, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIncident(row rowScanner) (*Incident, error) {
	var incident Incident
	var severity, status string
	var timeline []byte
	var resolvedAt sql.NullTime

	err := row.Scan(&incident.ID, &incident.Title, &incident.Description,
		&severity, &status, &incident.Category,
		pq.Array(&incident.AffectedServices), &timeline,
		&incident.RootCause, &incident.PostMortemURL,
		&incident.CreatedAt, &incident.UpdatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	incident.Severity = IncidentSeverity(severity)
	incident.Status = IncidentStatus(status)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		incident.ResolvedAt = &t
	}
	if err := json.Unmarshal(timeline, &incident.Timeline); err != nil {
		return nil, fmt.Errorf("failed to decode timeline: %w", err)
	}
	return &incident, nil
}
