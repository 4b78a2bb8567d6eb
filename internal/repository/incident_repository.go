package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jengzang/whisker-watch-go/internal/models"
)

// IncidentRepository handles database operations for incidents
type IncidentRepository struct {
	db *sql.DB
}

// NewIncidentRepository creates a new incident repository
func NewIncidentRepository(db *sql.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

// List retrieves incidents matching the filter, newest first
func (r *IncidentRepository) List(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error) {
	query := `SELECT id, lat, lng, status, title, notes, created_at FROM incidents`

	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	for _, edge := range []struct {
		cond  string
		value *float64
	}{
		{"lat >= ?", filter.MinLat},
		{"lat <= ?", filter.MaxLat},
		{"lng >= ?", filter.MinLng},
		{"lng <= ?", filter.MaxLng},
	} {
		if edge.value != nil {
			conditions = append(conditions, edge.cond)
			args = append(args, *edge.value)
		}
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]models.Incident, 0)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate incidents: %w", err)
	}

	return incidents, nil
}

// GetByID retrieves a single incident. It returns nil when none exists.
func (r *IncidentRepository) GetByID(ctx context.Context, id string) (*models.Incident, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, lat, lng, status, title, notes, created_at FROM incidents WHERE id = ?`, id)

	inc, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

// Create inserts a new incident
func (r *IncidentRepository) Create(ctx context.Context, inc *models.Incident) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO incidents (id, lat, lng, status, title, notes, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inc.ID, inc.Lat, inc.Lng, string(inc.Status), inc.Title, inc.Notes, inc.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanIncident(s scanner) (models.Incident, error) {
	var inc models.Incident
	var status string
	err := s.Scan(&inc.ID, &inc.Lat, &inc.Lng, &status, &inc.Title, &inc.Notes, &inc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return inc, err
	}
	if err != nil {
		return inc, fmt.Errorf("failed to scan incident: %w", err)
	}
	inc.Status = models.Status(status)
	return inc, nil
}
