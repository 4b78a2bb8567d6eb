package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jengzang/whisker-watch-go/internal/models"
	"github.com/jengzang/whisker-watch-go/internal/repository"
	"github.com/jengzang/whisker-watch-go/internal/spatial"
)

// ErrInvalidIncident is returned for incident input that fails validation
var ErrInvalidIncident = errors.New("invalid incident")

// IncidentService handles business logic for incidents
type IncidentService struct {
	repo *repository.IncidentRepository
	now  func() time.Time

	mu       sync.Mutex
	onChange []func(context.Context)
}

// NewIncidentService creates a new incident service
func NewIncidentService(repo *repository.IncidentRepository) *IncidentService {
	return &IncidentService{repo: repo, now: time.Now}
}

// OnChange registers a hook run after the incident set changes
func (s *IncidentService) OnChange(fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// List retrieves incidents with filtering
func (s *IncidentService) List(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error) {
	if filter.Status != "" {
		st, err := models.ParseStatus(filter.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidIncident, err)
		}
		filter.Status = string(st)
	}
	if filter.RadiusKm <= 0 {
		return s.repo.List(ctx, filter)
	}

	// the repository pre-filters on a box around the circle, the exact
	// distance check happens here
	near := spatial.LatLng{Lat: filter.NearLat, Lng: filter.NearLng}
	limit := filter.Limit
	filter.Limit = 0
	b := spatial.RadiusBounds(near, filter.RadiusKm)
	filter.MinLat = tighten(filter.MinLat, b.South, math.Max)
	filter.MaxLat = tighten(filter.MaxLat, b.North, math.Min)
	filter.MinLng = tighten(filter.MinLng, b.West, math.Max)
	filter.MaxLng = tighten(filter.MaxLng, b.East, math.Min)
	candidates, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]models.Incident, 0, len(candidates))
	for _, inc := range candidates {
		if spatial.GeoDistanceKm(near, spatial.LatLng{Lat: inc.Lat, Lng: inc.Lng}) <= filter.RadiusKm {
			out = append(out, inc)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// tighten combines a caller's box edge with the radius box edge
func tighten(edge *float64, bound float64, pick func(a, b float64) float64) *float64 {
	if edge != nil {
		bound = pick(*edge, bound)
	}
	return &bound
}

// Get retrieves a single incident, nil when missing
func (s *IncidentService) Get(ctx context.Context, id string) (*models.Incident, error) {
	return s.repo.GetByID(ctx, id)
}

// Markers returns the marker snapshot of every incident
func (s *IncidentService) Markers(ctx context.Context) ([]models.Marker, error) {
	incidents, err := s.repo.List(ctx, models.IncidentFilter{})
	if err != nil {
		return nil, err
	}
	return models.Markers(incidents), nil
}

// Create validates and stores a new incident
func (s *IncidentService) Create(ctx context.Context, req models.CreateIncidentRequest) (*models.Incident, error) {
	if req.Lat == nil || req.Lng == nil || !spatial.Finite(*req.Lat, *req.Lng) {
		return nil, fmt.Errorf("%w: coordinates are required", ErrInvalidIncident)
	}
	if *req.Lat < -90 || *req.Lat > 90 || *req.Lng < -180 || *req.Lng > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidIncident)
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIncident, err)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidIncident)
	}

	inc := &models.Incident{
		ID:        uuid.NewString(),
		Lat:       *req.Lat,
		Lng:       *req.Lng,
		Status:    status,
		Title:     title,
		Notes:     strings.TrimSpace(req.Notes),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, inc); err != nil {
		return nil, err
	}

	s.mu.Lock()
	hooks := append([]func(context.Context){}, s.onChange...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(ctx)
	}
	return inc, nil
}
