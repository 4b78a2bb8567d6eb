package spatial

import (
	"math"

	"github.com/jengzang/whisker-watch-go/internal/models"
)

// Bounds is a geographic bounding box
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Empty reports whether no point was ever added
func (b Bounds) Empty() bool {
	return b.South > b.North || b.West > b.East
}

// EmptyBounds returns bounds that any Extend call will replace
func EmptyBounds() Bounds {
	return Bounds{South: math.Inf(1), West: math.Inf(1), North: math.Inf(-1), East: math.Inf(-1)}
}

// Extend grows the bounds to include a point
func (b *Bounds) Extend(lat, lng float64) {
	b.South = math.Min(b.South, lat)
	b.North = math.Max(b.North, lat)
	b.West = math.Min(b.West, lng)
	b.East = math.Max(b.East, lng)
}

// Contains reports whether the point lies inside the bounds (edges included)
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.South && lat <= b.North && lng >= b.West && lng <= b.East
}

// Center is the midpoint of the box in degrees
func (b Bounds) Center() LatLng {
	return LatLng{Lat: (b.South + b.North) / 2, Lng: (b.West + b.East) / 2}
}

// MarkerBounds calculates the bounding box of a marker snapshot.
// Markers with non-finite coordinates are ignored.
func MarkerBounds(markers []models.Marker) Bounds {
	b := EmptyBounds()
	for _, m := range markers {
		if !Finite(m.Lat, m.Lng) {
			continue
		}
		b.Extend(ClampLatitude(m.Lat), ClampLongitude(m.Lng))
	}
	return b
}

// VisibleBounds returns the geographic box covered by the canvas,
// grown by padding pixels on every side
func VisibleBounds(vp models.Viewport, size Size, padding float64) Bounds {
	nw := PixelToLatLng(-padding, -padding, vp, size)
	se := PixelToLatLng(size.Width+padding, size.Height+padding, vp, size)
	return Bounds{South: se.Lat, West: nw.Lng, North: nw.Lat, East: se.Lng}
}

// FitZoom returns the largest integer zoom at which b fits inside the canvas
// with padding pixels of margin, clamped to [minZoom, maxZoom].
// A degenerate box (single point) yields maxZoom.
func FitZoom(b Bounds, size Size, padding, minZoom, maxZoom float64) float64 {
	dx := (LngToTileX(b.East, 0) - LngToTileX(b.West, 0)) * TileSize
	dy := (LatToTileY(b.South, 0) - LatToTileY(b.North, 0)) * TileSize
	availW := math.Max(1, size.Width-2*padding)
	availH := math.Max(1, size.Height-2*padding)

	zoom := maxZoom
	if dx > 0 {
		zoom = math.Min(zoom, math.Log2(availW/dx))
	}
	if dy > 0 {
		zoom = math.Min(zoom, math.Log2(availH/dy))
	}
	zoom = math.Floor(zoom)
	return math.Max(minZoom, math.Min(maxZoom, zoom))
}

// Finite reports whether every value is a real number
func Finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
