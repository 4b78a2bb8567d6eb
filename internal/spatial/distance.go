package spatial

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusKm is Earth's mean radius in kilometers
const EarthRadiusKm = 6371.0

// GeoDistanceKm calculates the great-circle distance between two points in kilometres.
// s2's LatLng.Distance uses the haversine formula.
func GeoDistanceKm(a, b LatLng) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// PixelDistance is the Euclidean distance between two canvas pixels
func PixelDistance(a, b Pixel) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Midpoint returns the midpoint between two pixels
func Midpoint(a, b Pixel) Pixel {
	return Pixel{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// DegreesPerPixel is the longitude span of one canvas pixel at zoom
func DegreesPerPixel(zoom float64) float64 {
	return 360 / (TileSize * math.Exp2(zoom))
}

// RadiusBounds is a box containing every point within km of c. Longitude
// widens to the whole world near the poles or across the antimeridian.
func RadiusBounds(c LatLng, km float64) Bounds {
	dLat := km / EarthRadiusKm * 180 / math.Pi
	b := Bounds{
		South: math.Max(-90, c.Lat-dLat),
		North: math.Min(90, c.Lat+dLat),
		West:  -180,
		East:  180,
	}
	if cos := math.Cos(math.Max(math.Abs(b.South), math.Abs(b.North)) * math.Pi / 180); cos > 1e-9 {
		dLng := dLat / cos
		if c.Lng-dLng >= -180 && c.Lng+dLng <= 180 {
			b.West, b.East = c.Lng-dLng, c.Lng+dLng
		}
	}
	return b
}
