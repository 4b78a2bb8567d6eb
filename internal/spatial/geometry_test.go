package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jengzang/whisker-watch-go/internal/models"
)

func TestGeoDistanceKm(t *testing.T) {
	london := LatLng{Lat: 51.5074, Lng: -0.1278}
	paris := LatLng{Lat: 48.8566, Lng: 2.3522}
	assert.InDelta(t, 343.5, GeoDistanceKm(london, paris), 1.5)
	assert.Zero(t, GeoDistanceKm(london, london))
}

func TestRadiusBounds(t *testing.T) {
	london := LatLng{Lat: 51.5074, Lng: -0.1278}
	b := RadiusBounds(london, 10)
	assert.True(t, b.Contains(london.Lat, london.Lng))
	assert.InDelta(t, 10, GeoDistanceKm(london, LatLng{Lat: b.North, Lng: london.Lng}), 0.01)
	assert.Greater(t, GeoDistanceKm(london, LatLng{Lat: london.Lat, Lng: b.East}), 10.0)

	pole := RadiusBounds(LatLng{Lat: 89.9, Lng: 10}, 50)
	assert.Equal(t, -180.0, pole.West)
	assert.Equal(t, 90.0, pole.North)

	dateline := RadiusBounds(LatLng{Lat: 0, Lng: 179.9}, 50)
	assert.Equal(t, 180.0, dateline.East)
	assert.Equal(t, -180.0, dateline.West)
}

func TestPixelDistance(t *testing.T) {
	assert.Equal(t, 5.0, PixelDistance(Pixel{0, 0}, Pixel{3, 4}))
}

func TestMarkerBoundsSkipsNonFinite(t *testing.T) {
	b := MarkerBounds([]models.Marker{
		{ID: "a", Lat: 51.4, Lng: -0.2},
		{ID: "b", Lat: math.NaN(), Lng: 3},
		{ID: "c", Lat: 51.6, Lng: 0},
	})
	assert.Equal(t, Bounds{South: 51.4, West: -0.2, North: 51.6, East: 0}, b)
	assert.True(t, MarkerBounds(nil).Empty())
}

func TestVisibleBoundsContainsCenter(t *testing.T) {
	vp := models.Viewport{CenterLat: 51.505, CenterLng: -0.09, Zoom: 11}
	b := VisibleBounds(vp, Size{Width: 800, Height: 600}, 0)
	assert.True(t, b.Contains(vp.CenterLat, vp.CenterLng))
	assert.False(t, b.Contains(48.85, 2.35))
}

func TestFitZoom(t *testing.T) {
	size := Size{Width: 800, Height: 600}
	b := Bounds{South: 51.40, West: -0.20, North: 51.60, East: 0.00}
	zoom := FitZoom(b, size, 50, 5, 17)
	assert.Equal(t, zoom, math.Floor(zoom))

	// one more level would no longer fit
	vp := models.Viewport{CenterLat: 51.5, CenterLng: -0.1, Zoom: zoom + 1}
	nw := LatLngToPixel(b.North, b.West, vp, size)
	se := LatLngToPixel(b.South, b.East, vp, size)
	assert.True(t, se.X-nw.X > size.Width-100 || se.Y-nw.Y > size.Height-100)

	assert.Equal(t, 17.0, FitZoom(Bounds{South: 1, West: 1, North: 1, East: 1}, size, 50, 5, 17))
	assert.Equal(t, 5.0, FitZoom(Bounds{South: -80, West: -179, North: 80, East: 179}, size, 50, 5, 17))
}
