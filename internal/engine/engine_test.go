package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/whisker-watch-go/internal/logger"
	"github.com/jengzang/whisker-watch-go/internal/models"
	"github.com/jengzang/whisker-watch-go/internal/spatial"
)

const (
	testWidth  = 1024
	testHeight = 768
)

// recorder collects callbacks
type recorder struct {
	mapClicks    []spatial.LatLng
	markerClicks []string
	viewports    []models.Viewport
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnMapClicked:      func(lat, lng float64) { r.mapClicks = append(r.mapClicks, spatial.LatLng{Lat: lat, Lng: lng}) },
		OnMarkerClicked:   func(id string) { r.markerClicks = append(r.markerClicks, id) },
		OnViewportChanged: func(v models.Viewport) { r.viewports = append(r.viewports, v) },
	}
}

func newTestEngine(t *testing.T, mutate ...func(*Options)) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts := Options{
		Width:     testWidth,
		Height:    testHeight,
		Viewport:  models.DefaultViewport,
		Callbacks: rec.callbacks(),
		Logger:    logger.Discard(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	e, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, rec
}

func TestNewFailsWithoutSurface(t *testing.T) {
	for _, size := range [][2]int{{0, 100}, {100, 0}, {-5, 20}} {
		_, err := New(Options{Width: size[0], Height: size[1], Logger: logger.Discard()})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoSurface))
	}
}

func TestNewNormalizesInitialViewport(t *testing.T) {
	e, _ := newTestEngine(t, func(o *Options) { o.Viewport = models.Viewport{} })
	assert.Equal(t, models.DefaultViewport, e.Viewport())

	e, _ = newTestEngine(t, func(o *Options) {
		o.Viewport = models.Viewport{CenterLat: 89, CenterLng: 200, Zoom: 30}
	})
	vp := e.Viewport()
	assert.Equal(t, spatial.MaxLatitude, vp.CenterLat)
	assert.Equal(t, 180.0, vp.CenterLng)
	assert.Equal(t, DefaultMaxZoom, vp.Zoom)
}

func TestFlyToEndsExactlyOnTarget(t *testing.T) {
	e, rec := newTestEngine(t)
	e.FlyTo(48.8566, 2.3522, 13.25)
	require.True(t, e.Animating())

	for i := 0; i < 62; i++ {
		e.Tick(16 * time.Millisecond)
	}
	require.True(t, e.Animating(), "992ms is still in flight")
	e.Tick(16 * time.Millisecond)

	assert.False(t, e.Animating())
	assert.Equal(t, models.Viewport{CenterLat: 48.8566, CenterLng: 2.3522, Zoom: 13.25}, e.Viewport())
	require.Len(t, rec.viewports, 1, "committed once at the end")
	assert.Equal(t, e.Viewport(), rec.viewports[0])
}

func TestFlyToEasesInOut(t *testing.T) {
	e, _ := newTestEngine(t)
	e.FlyTo(51.505, -0.09, 15)

	e.Tick(100 * time.Millisecond)
	early := e.Viewport().Zoom - 11
	assert.InDelta(t, 4*0.001*4, early, 1e-9, "cubic ease-in")

	e.Tick(400 * time.Millisecond)
	assert.InDelta(t, 13.0, e.Viewport().Zoom, 1e-9, "halfway in time is halfway in value")
}

func TestFlyToSupersedesFromCurrentPosition(t *testing.T) {
	e, rec := newTestEngine(t)
	e.FlyTo(52.0, 0.5, 15)
	e.Tick(500 * time.Millisecond)
	mid := e.Viewport()
	require.NotEqual(t, models.DefaultViewport, mid)

	e.FlyTo(50.0, -1.0, 8)
	e.Tick(0)
	assert.Equal(t, mid, e.Viewport(), "new animation starts where the old one was")

	e.Tick(AnimationDuration)
	assert.Equal(t, models.Viewport{CenterLat: 50.0, CenterLng: -1.0, Zoom: 8}, e.Viewport())
	assert.Len(t, rec.viewports, 1, "the superseded animation never commits")
}

func TestFlyToClampsAndIgnoresNaN(t *testing.T) {
	e, _ := newTestEngine(t)
	e.FlyTo(math.NaN(), 0, 10)
	assert.False(t, e.Animating())

	e.FlyTo(10, 10, 40)
	e.Tick(AnimationDuration)
	assert.Equal(t, DefaultMaxZoom, e.Viewport().Zoom)
}

func TestDragPansByProjectedDelta(t *testing.T) {
	e, rec := newTestEngine(t)
	start := e.Viewport()

	e.HandlePointerDown(1, 500, 400)
	e.HandlePointerMove(1, 550, 400)
	e.HandlePointerMove(1, 600, 400)
	assert.Empty(t, rec.viewports, "nothing committed mid-drag")
	e.HandlePointerUp(1, 600, 400)

	vp := e.Viewport()
	assert.InDelta(t, start.CenterLng-100*spatial.DegreesPerPixel(11), vp.CenterLng, 1e-9)
	assert.InDelta(t, start.CenterLat, vp.CenterLat, 1e-9)
	assert.Equal(t, start.Zoom, vp.Zoom)

	want := spatial.PixelToLatLng(testWidth/2-100, testHeight/2, start, e.Size())
	assert.InDelta(t, want.Lng, vp.CenterLng, 1e-12)

	require.Len(t, rec.viewports, 1)
	assert.Empty(t, rec.mapClicks, "a drag is not a click")
}

func TestDragIsConstantOnScreenAcrossZooms(t *testing.T) {
	for _, zoom := range []float64{6, 11, 16} {
		e, _ := newTestEngine(t, func(o *Options) {
			o.Viewport = models.Viewport{CenterLat: 51.505, CenterLng: -0.09, Zoom: zoom}
		})
		e.HandlePointerDown(1, 300, 300)
		e.HandlePointerMove(1, 200, 300)
		e.HandlePointerUp(1, 200, 300)
		assert.InDelta(t, -0.09+100*spatial.DegreesPerPixel(zoom), e.Viewport().CenterLng, 1e-9)
	}
}

func TestSmallMovementIsStillAClick(t *testing.T) {
	e, rec := newTestEngine(t)
	e.HandlePointerDown(1, 700, 100)
	e.HandlePointerMove(1, 702, 101)
	e.HandlePointerUp(1, 702, 101)

	require.Len(t, rec.mapClicks, 1)
	want := spatial.PixelToLatLng(702, 101, models.DefaultViewport, e.Size())
	assert.InDelta(t, want.Lat, rec.mapClicks[0].Lat, 1e-12)
	assert.InDelta(t, want.Lng, rec.mapClicks[0].Lng, 1e-12)
	assert.Equal(t, models.DefaultViewport, e.Viewport())
	assert.Empty(t, rec.viewports)
}

func TestWheelZoomsAroundCursor(t *testing.T) {
	e, rec := newTestEngine(t)
	under := spatial.PixelToLatLng(200, 150, e.Viewport(), e.Size())

	e.HandleWheel(200, 150, -120)
	vp := e.Viewport()
	assert.Equal(t, 11.5, vp.Zoom)
	after := spatial.PixelToLatLng(200, 150, vp, e.Size())
	assert.InDelta(t, under.Lat, after.Lat, 1e-9)
	assert.InDelta(t, under.Lng, after.Lng, 1e-9)
	require.Len(t, rec.viewports, 1)

	e.HandleWheel(200, 150, 120)
	assert.InDelta(t, 11.0, e.Viewport().Zoom, 1e-12)
}

func TestWheelClampsToZoomRange(t *testing.T) {
	e, rec := newTestEngine(t, func(o *Options) {
		o.Viewport = models.Viewport{CenterLat: 51.5, CenterLng: 0, Zoom: 16.75}
	})
	e.HandleWheel(512, 384, -1)
	assert.Equal(t, DefaultMaxZoom, e.Viewport().Zoom)
	e.HandleWheel(512, 384, -1)
	assert.Equal(t, DefaultMaxZoom, e.Viewport().Zoom)
	assert.Len(t, rec.viewports, 1, "no commit when nothing changed")

	for i := 0; i < 40; i++ {
		e.HandleWheel(512, 384, 1)
	}
	assert.Equal(t, DefaultMinZoom, e.Viewport().Zoom)
}

func TestKeyboardPanAndZoom(t *testing.T) {
	e, rec := newTestEngine(t)
	start := e.Viewport()

	assert.True(t, e.HandleKeyDown(KeyEvent{Key: "ArrowRight"}))
	assert.InDelta(t, start.CenterLng+KeyPanPixels*spatial.DegreesPerPixel(11), e.Viewport().CenterLng, 1e-9)

	assert.True(t, e.HandleKeyDown(KeyEvent{Key: "ArrowUp"}))
	assert.Greater(t, e.Viewport().CenterLat, start.CenterLat)

	assert.True(t, e.HandleKeyDown(KeyEvent{Key: "+"}))
	assert.Equal(t, 12.0, e.Viewport().Zoom)
	assert.True(t, e.HandleKeyDown(KeyEvent{Key: "_"}))
	assert.Equal(t, 11.0, e.Viewport().Zoom)

	assert.Len(t, rec.viewports, 4)
	assert.False(t, e.HandleKeyDown(KeyEvent{Key: "q"}))
}

func TestKeyboardIgnoredInEditableElements(t *testing.T) {
	e, rec := newTestEngine(t)
	for _, key := range []string{"ArrowLeft", "ArrowDown", "+", "-", "="} {
		assert.False(t, e.HandleKeyDown(KeyEvent{Key: key, Editable: true}))
	}
	assert.Equal(t, models.DefaultViewport, e.Viewport())
	assert.Empty(t, rec.viewports)
	assert.Equal(t, CadenceIdle, e.Cadence())
}

func TestClickSelectsMarkerOrMap(t *testing.T) {
	e, rec := newTestEngine(t, func(o *Options) {
		o.Viewport = models.Viewport{CenterLat: 51.505, CenterLng: -0.09, Zoom: 14}
	})
	e.SetMarkers([]models.Marker{
		{ID: "cat-1", Lat: 51.505, Lng: -0.09, Status: models.StatusConfirmed},
	})

	e.HandlePointerDown(1, 519, 390)
	e.HandlePointerUp(1, 519, 390)
	assert.Equal(t, []string{"cat-1"}, rec.markerClicks)
	assert.Empty(t, rec.mapClicks)

	e.HandlePointerDown(1, 540, 384)
	e.HandlePointerUp(1, 540, 384)
	require.Len(t, rec.mapClicks, 1, "28px away is outside the hit tolerance")
}

func TestClusterClickZoomsIn(t *testing.T) {
	e, rec := newTestEngine(t, func(o *Options) {
		o.Viewport = models.Viewport{CenterLat: 51.505, CenterLng: -0.09, Zoom: 10}
	})
	e.SetMarkers([]models.Marker{
		{ID: "a", Lat: 51.505, Lng: -0.09, Status: models.StatusSighted},
		{ID: "b", Lat: 51.51, Lng: -0.08, Status: models.StatusConfirmed},
		{ID: "c", Lat: 51.50, Lng: -0.10, Status: models.StatusSuspected},
	})
	clusters := e.Clusters()
	require.Len(t, clusters, 1)
	require.Equal(t, 3, clusters[0].Count())

	at := clusters[0].Center
	e.HandlePointerDown(1, at.X, at.Y)
	e.HandlePointerUp(1, at.X, at.Y)
	assert.Empty(t, rec.markerClicks)
	assert.Empty(t, rec.mapClicks)
	require.True(t, e.Animating())

	e.Tick(AnimationDuration)
	vp := e.Viewport()
	assert.GreaterOrEqual(t, vp.Zoom, 11.0)
	for _, m := range e.Markers() {
		p := spatial.LatLngToPixel(m.Lat, m.Lng, vp, e.Size())
		assert.True(t, p.X >= 0 && p.X <= testWidth && p.Y >= 0 && p.Y <= testHeight, "member %s stays on screen", m.ID)
	}
}

func TestPinchZoomsByLog2OfSpread(t *testing.T) {
	e, rec := newTestEngine(t)
	start := e.Viewport()

	e.HandlePointerDown(1, 462, 384)
	e.HandlePointerDown(2, 562, 384)
	e.HandlePointerMove(2, 612, 384)
	e.HandlePointerMove(1, 412, 384)

	vp := e.Viewport()
	assert.InDelta(t, start.Zoom+1, vp.Zoom, 1e-9)
	assert.InDelta(t, start.CenterLat, vp.CenterLat, 1e-9)
	assert.InDelta(t, start.CenterLng, vp.CenterLng, 1e-9)
	assert.Empty(t, rec.viewports)

	e.HandlePointerUp(2, 612, 384)
	require.Len(t, rec.viewports, 1)
	e.HandlePointerUp(1, 412, 384)
	assert.Len(t, rec.viewports, 1)
	assert.Empty(t, rec.mapClicks, "lifting the last finger after a pinch is not a click")
}

func TestPinchCentroidPans(t *testing.T) {
	e, _ := newTestEngine(t)
	start := e.Viewport()

	e.HandlePointerDown(1, 462, 384)
	e.HandlePointerDown(2, 562, 384)
	e.HandlePointerMove(1, 362, 384)
	e.HandlePointerMove(2, 462, 384)

	vp := e.Viewport()
	assert.InDelta(t, start.Zoom, vp.Zoom, 1e-9)
	assert.InDelta(t, start.CenterLng+100*spatial.DegreesPerPixel(11), vp.CenterLng, 1e-9)
}

func TestFitAllScenario(t *testing.T) {
	e, rec := newTestEngine(t)
	e.SetMarkers([]models.Marker{
		{ID: "a", Lat: 51.40, Lng: -0.20, Status: models.StatusConfirmed},
		{ID: "b", Lat: 51.60, Lng: 0.00, Status: models.StatusSighted},
	})
	require.True(t, e.FitAll())
	e.Tick(AnimationDuration)

	vp := e.Viewport()
	assert.InDelta(t, 51.50, vp.CenterLat, 1e-9)
	assert.InDelta(t, -0.10, vp.CenterLng, 1e-9)
	assert.Equal(t, math.Floor(vp.Zoom), vp.Zoom)

	for _, m := range e.Markers() {
		p := spatial.LatLngToPixel(m.Lat, m.Lng, vp, e.Size())
		assert.GreaterOrEqual(t, p.X, FitPadding)
		assert.LessOrEqual(t, p.X, testWidth-FitPadding)
		assert.GreaterOrEqual(t, p.Y, FitPadding)
		assert.LessOrEqual(t, p.Y, testHeight-FitPadding)
	}

	deeper := vp
	deeper.Zoom++
	a := spatial.LatLngToPixel(51.40, -0.20, deeper, e.Size())
	b := spatial.LatLngToPixel(51.60, 0.00, deeper, e.Size())
	assert.Greater(t, math.Abs(a.Y-b.Y), float64(testHeight)-2*FitPadding, "the next zoom would not fit")
	assert.Len(t, rec.viewports, 1)
}

func TestFitAllEdgeCases(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.False(t, e.FitAll(), "no markers")

	e.SetMarkers([]models.Marker{{ID: "x", Lat: math.NaN(), Lng: 1}})
	assert.False(t, e.FitAll(), "no finite markers")

	e.SetMarkers([]models.Marker{{ID: "solo", Lat: 40.7128, Lng: -74.006, Status: models.StatusSighted}})
	require.True(t, e.FitAll())
	e.Tick(AnimationDuration)
	assert.Equal(t, models.Viewport{CenterLat: 40.7128, CenterLng: -74.006, Zoom: SingleMarkerZoom}, e.Viewport())
}

func TestUserInputStopsAnimation(t *testing.T) {
	e, _ := newTestEngine(t)
	e.FlyTo(40, -74, 14)
	e.Tick(300 * time.Millisecond)
	require.True(t, e.Animating())

	e.HandleWheel(512, 384, -1)
	assert.False(t, e.Animating())
	frozen := e.Viewport()
	e.Tick(AnimationDuration)
	assert.Equal(t, frozen, e.Viewport())
}

func TestCadenceFollowsInputAndAnimation(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.Equal(t, CadenceIdle, e.Cadence())
	assert.Equal(t, IdleFrameDelay, e.NextFrameDelay())

	e.HandleWheel(100, 100, -1)
	assert.Equal(t, CadenceActive, e.Cadence())
	assert.Equal(t, ActiveFrameDelay, e.NextFrameDelay())

	e.Tick(499 * time.Millisecond)
	assert.Equal(t, CadenceActive, e.Cadence())
	e.Tick(time.Millisecond)
	assert.Equal(t, CadenceIdle, e.Cadence())

	e.FlyTo(51, 0, 9)
	e.Tick(900 * time.Millisecond)
	assert.Equal(t, CadenceActive, e.Cadence(), "animation keeps the loop active")
	e.Tick(100 * time.Millisecond)
	assert.Equal(t, CadenceIdle, e.Cadence(), "finishing the animation ends its active cadence")

	e.HandlePointerDown(1, 10, 10)
	e.Tick(2 * time.Second)
	assert.Equal(t, CadenceActive, e.Cadence(), "a held pointer is ongoing interaction")
	e.HandlePointerUp(1, 10, 10)
	e.Tick(InputDebounce)
	assert.Equal(t, CadenceIdle, e.Cadence())
}

func TestMobileIdleCadence(t *testing.T) {
	e, _ := newTestEngine(t, func(o *Options) { o.Mobile = true })
	assert.Equal(t, IdleFrameDelayMobile, e.NextFrameDelay())
}

func TestTickReportsRedraw(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.True(t, e.Tick(0), "first frame is always needed")
	e.Render()
	assert.False(t, e.Tick(16*time.Millisecond))

	e.SetHeatmap(true)
	assert.True(t, e.Tick(16*time.Millisecond))
	e.Render()
	e.SetHeatmap(true)
	assert.False(t, e.Tick(16*time.Millisecond), "setting the same value is not a change")
}

func TestResize(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Resize(320, 240))
	assert.Equal(t, spatial.Size{Width: 320, Height: 240}, e.Size())
	assert.Equal(t, 320, e.Render().Bounds().Dx())
	assert.ErrorIs(t, e.Resize(0, 240), ErrNoSurface)
}
