package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Viewport is the visible region of the map: a centre and a (fractional) zoom level
type Viewport struct {
	CenterLat float64 `json:"centerLat"`
	CenterLng float64 `json:"centerLng"`
	Zoom      float64 `json:"zoom"`
}

// DefaultViewport is used when no valid persisted state exists
var DefaultViewport = Viewport{CenterLat: 51.505, CenterLng: -0.09, Zoom: 11}

// ClampZoom limits the zoom to [minZoom, maxZoom]
func (v Viewport) ClampZoom(minZoom, maxZoom float64) Viewport {
	v.Zoom = math.Max(minZoom, math.Min(maxZoom, v.Zoom))
	return v
}

// ViewportState is the persisted form of a viewport.
// Coordinates are quantised to 5 decimal places (about one metre).
type ViewportState struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Zoom      float64   `json:"zoom"`
	Timestamp time.Time `json:"timestamp"`
}

// NewViewportState quantises a viewport for storage
func NewViewportState(v Viewport, at time.Time) ViewportState {
	return ViewportState{
		Lat:       quantize(v.CenterLat),
		Lng:       quantize(v.CenterLng),
		Zoom:      v.Zoom,
		Timestamp: at.UTC(),
	}
}

// Viewport converts the persisted state back to a viewport
func (s ViewportState) Viewport() Viewport {
	return Viewport{CenterLat: s.Lat, CenterLng: s.Lng, Zoom: s.Zoom}
}

// EncodeViewportState marshals a viewport into the persisted JSON format
func EncodeViewportState(v Viewport, at time.Time) ([]byte, error) {
	data, err := json.Marshal(NewViewportState(v, at))
	if err != nil {
		return nil, fmt.Errorf("failed to encode viewport state: %w", err)
	}
	return data, nil
}

// rawViewportState uses pointers so a missing field can be told apart from zero.
// json refuses to decode a string into *float64, so "51.5" is rejected, not coerced.
type rawViewportState struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Zoom      *float64 `json:"zoom"`
	Timestamp *string  `json:"timestamp"`
}

// DecodeViewportState parses and validates persisted viewport JSON.
// Any missing or non-numeric field invalidates the whole object.
// The zoom is clamped into [minZoom, maxZoom].
func DecodeViewportState(data []byte, minZoom, maxZoom float64) (Viewport, error) {
	var raw rawViewportState
	if err := json.Unmarshal(data, &raw); err != nil {
		return Viewport{}, fmt.Errorf("failed to decode viewport state: %w", err)
	}
	if raw.Lat == nil || raw.Lng == nil || raw.Zoom == nil || raw.Timestamp == nil {
		return Viewport{}, fmt.Errorf("viewport state is missing a field")
	}
	if _, err := time.Parse(time.RFC3339, *raw.Timestamp); err != nil {
		return Viewport{}, fmt.Errorf("invalid viewport timestamp: %w", err)
	}
	if *raw.Lat < -90 || *raw.Lat > 90 || *raw.Lng < -180 || *raw.Lng > 180 {
		return Viewport{}, fmt.Errorf("viewport centre out of range: %f,%f", *raw.Lat, *raw.Lng)
	}

	v := Viewport{CenterLat: *raw.Lat, CenterLng: *raw.Lng, Zoom: *raw.Zoom}
	return v.ClampZoom(minZoom, maxZoom), nil
}

func quantize(deg float64) float64 {
	return math.Round(deg*1e5) / 1e5
}
