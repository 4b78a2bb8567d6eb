package engine

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/whisker-watch-go/internal/models"
	"github.com/jengzang/whisker-watch-go/internal/tiles"
)

var testBasemaps = map[string]tiles.Basemap{
	tiles.StyleDark: {
		Name:    tiles.StyleDark,
		Primary: tiles.Source{Name: "dark", URLTemplate: "dark/{z}/{x}/{y}"},
	},
	tiles.StyleSatellite: {
		Name:    tiles.StyleSatellite,
		Primary: tiles.Source{Name: "sat", URLTemplate: "sat/{z}/{x}/{y}"},
	},
}

func solidTile(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// panicImage stands in for a corrupt decoded tile
type panicImage struct{}

func (panicImage) ColorModel() color.Model { return color.RGBAModel }
func (panicImage) Bounds() image.Rectangle { return image.Rect(0, 0, 256, 256) }
func (panicImage) At(x, y int) color.Color { panic("corrupt tile") }

func withFetcher(f tiles.FetcherFunc) func(*Options) {
	return func(o *Options) {
		o.Basemaps = testBasemaps
		o.Fetcher = f
	}
}

func centerPixel(e *Engine) color.RGBA {
	return e.surface.RGBAAt(testWidth/2, testHeight/2)
}

func TestRenderCompositesLoadedTiles(t *testing.T) {
	red := color.RGBA{R: 0xff, A: 0xff}
	e, _ := newTestEngine(t, withFetcher(func(ctx context.Context, url string) (image.Image, error) {
		return solidTile(red), nil
	}))

	require.NotNil(t, e.Render())

	require.Eventually(t, func() bool {
		if !e.NeedsRedraw() {
			return false
		}
		e.Render()
		return centerPixel(e) == red
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRenderScalesTilesAtFractionalZoom(t *testing.T) {
	green := color.RGBA{G: 0xff, A: 0xff}
	e, _ := newTestEngine(t,
		withFetcher(func(ctx context.Context, url string) (image.Image, error) { return solidTile(green), nil }),
		func(o *Options) { o.Viewport = models.Viewport{CenterLat: 51.505, CenterLng: -0.09, Zoom: 11.5} },
	)
	require.Eventually(t, func() bool {
		e.Render()
		return centerPixel(e) == green && e.surface.RGBAAt(5, 5) == green
	}, 2*time.Second, 5*time.Millisecond)

	for _, tile := range e.loader.Cache().Tiles() {
		assert.Equal(t, maptile.Zoom(11), tile.Z, "fractional zoom draws floored tiles")
	}
}

func TestRenderFailedTileIsPlaceholder(t *testing.T) {
	e, _ := newTestEngine(t, withFetcher(func(ctx context.Context, url string) (image.Image, error) {
		return nil, errors.New("connection refused")
	}))
	london := maptile.New(1023, 681, 11)

	require.Eventually(t, func() bool {
		assert.NotPanics(t, func() { e.Render() })
		return e.loader.Failed(london)
	}, 2*time.Second, 5*time.Millisecond)

	e.Render()
	want := color.RGBA{R: placeholderColor.R, G: placeholderColor.G, B: placeholderColor.B, A: 0xff}
	assert.Equal(t, want, centerPixel(e))
	assert.False(t, e.loader.Cache().Has(london), "failed tiles are not cached")
}

func TestRenderRecoversFromTilePanic(t *testing.T) {
	e, _ := newTestEngine(t, withFetcher(func(ctx context.Context, url string) (image.Image, error) {
		return panicImage{}, nil
	}))
	e.SetMarkers([]models.Marker{
		{ID: "m", Lat: models.DefaultViewport.CenterLat, Lng: models.DefaultViewport.CenterLng, Status: models.StatusConfirmed},
	})

	e.Render()
	require.Eventually(t, e.NeedsRedraw, 2*time.Second, 5*time.Millisecond)

	var frame image.Image
	require.NotPanics(t, func() { frame = e.Render() })
	require.NotNil(t, frame)
	assert.Equal(t, color.RGBA{R: 0xdc, G: 0x26, B: 0x26, A: 0xff}, centerPixel(e), "markers still draw after a tile fails")
}

func TestRenderDrawsClusterInDominantColour(t *testing.T) {
	e, _ := newTestEngine(t, func(o *Options) {
		o.Viewport = models.Viewport{CenterLat: 51.505, CenterLng: -0.09, Zoom: 10}
	})
	e.SetMarkers([]models.Marker{
		{ID: "a", Lat: 51.505, Lng: -0.09, Status: models.StatusSighted},
		{ID: "b", Lat: 51.505, Lng: -0.09, Status: models.StatusConfirmed},
	})
	e.Render()

	// sample beside the centred count label
	px := e.surface.RGBAAt(testWidth/2+14, testHeight/2)
	assert.Equal(t, color.RGBA{R: 0xdc, G: 0x26, B: 0x26, A: 0xff}, px)
}

func TestRenderSkipsNonFiniteMarkers(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SetMarkers([]models.Marker{
		{ID: "bad", Lat: math.Inf(1), Lng: 0, Status: models.StatusConfirmed},
		{ID: "ok", Lat: 51.505, Lng: -0.09, Status: models.StatusSighted},
	})
	require.NotPanics(t, func() { e.Render() })
	assert.Equal(t, color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}, centerPixel(e))
}

func TestRenderHeatmapTintsCanvas(t *testing.T) {
	e, _ := newTestEngine(t, func(o *Options) { o.Heatmap = true })
	markerAt := models.Marker{ID: "h", Lat: 51.505, Lng: -0.09, Status: models.StatusSuspected}
	e.SetMarkers([]models.Marker{markerAt})
	e.Render()
	withHeat := e.surface.RGBAAt(testWidth/2+18, testHeight/2)

	e.SetHeatmap(false)
	e.Render()
	without := e.surface.RGBAAt(testWidth/2+18, testHeight/2)

	assert.NotEqual(t, withHeat, without)
	assert.Greater(t, withHeat.R, without.R)
}

func TestSetSatelliteSwitchesBasemapAndClearsCache(t *testing.T) {
	e, _ := newTestEngine(t, withFetcher(func(ctx context.Context, url string) (image.Image, error) {
		return solidTile(color.White), nil
	}))
	e.Render()
	require.Greater(t, e.loader.Cache().Len(), 0)
	assert.Equal(t, tiles.StyleDark, e.Basemap().Name)

	e.SetSatellite(true)
	assert.Equal(t, tiles.StyleSatellite, e.Basemap().Name)
	assert.Equal(t, 0, e.loader.Cache().Len())
	assert.True(t, e.NeedsRedraw())
}
