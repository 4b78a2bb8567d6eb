package models

import "time"

// Incident is a logged animal-harm incident owned by the host application
type Incident struct {
	ID        string    `json:"id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Status    Status    `json:"status"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Marker returns the map engine's view of the incident
func (i Incident) Marker() Marker {
	return Marker{ID: i.ID, Lat: i.Lat, Lng: i.Lng, Status: i.Status}
}

// CreateIncidentRequest is the body of POST /api/v1/incidents.
// Pointers make "lat": 0 distinguishable from a missing lat.
type CreateIncidentRequest struct {
	Lat    *float64 `json:"lat" binding:"required,min=-90,max=90"`
	Lng    *float64 `json:"lng" binding:"required,min=-180,max=180"`
	Status string   `json:"status" binding:"required,oneof=unconfirmed suspected confirmed sighted"`
	Title  string   `json:"title" binding:"required,max=200"`
	Notes  string   `json:"notes" binding:"max=4000"`
}

// IncidentFilter represents filter parameters for listing incidents.
// Each bounding-box edge applies on its own; nil means unbounded.
type IncidentFilter struct {
	Status string   `form:"status"`
	MinLat *float64 `form:"minLat"`
	MaxLat *float64 `form:"maxLat"`
	MinLng *float64 `form:"minLng"`
	MaxLng *float64 `form:"maxLng"`
	Limit  int      `form:"limit"`

	// RadiusKm > 0 keeps only incidents within that great-circle distance
	// of (NearLat, NearLng)
	NearLat  float64 `form:"nearLat" binding:"min=-90,max=90"`
	NearLng  float64 `form:"nearLng" binding:"min=-180,max=180"`
	RadiusKm float64 `form:"radiusKm" binding:"min=0,max=20000"`
}

// Markers converts incidents to a marker snapshot
func Markers(incidents []Incident) []Marker {
	markers := make([]Marker, len(incidents))
	for i, inc := range incidents {
		markers[i] = inc.Marker()
	}
	return markers
}
