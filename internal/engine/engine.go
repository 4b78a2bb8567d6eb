package engine

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/fogleman/gg"

	"github.com/jengzang/whisker-watch-go/internal/cluster"
	"github.com/jengzang/whisker-watch-go/internal/heatmap"
	"github.com/jengzang/whisker-watch-go/internal/models"
	"github.com/jengzang/whisker-watch-go/internal/spatial"
	"github.com/jengzang/whisker-watch-go/internal/tiles"
)

// Interaction and animation constants
const (
	DefaultMinZoom = 5.0
	DefaultMaxZoom = 17.0

	HitTolerance     = 10.0 // px
	WheelStep        = 0.5  // zoom levels per wheel event
	KeyPanPixels     = 100.0
	DragThreshold    = 3.0 // px before a press becomes a drag
	FitPadding       = 50.0
	SingleMarkerZoom = 15.0

	AnimationDuration = 1000 * time.Millisecond
)

// ErrNoSurface is returned when the drawing surface cannot be created
var ErrNoSurface = errors.New("drawing surface unavailable")

// Callbacks are fired synchronously from the goroutine driving the engine
type Callbacks struct {
	// OnMapClicked fires for a click on empty map
	OnMapClicked func(lat, lng float64)
	// OnMarkerClicked fires for a click on an individual marker
	OnMarkerClicked func(id string)
	// OnViewportChanged fires once per committed viewport mutation
	OnViewportChanged func(v models.Viewport)
}

// Options configures an Engine
type Options struct {
	Width, Height int
	// Mobile selects the slower idle redraw cadence
	Mobile bool

	MinZoom, MaxZoom float64
	// Viewport is the initial view; the zero value means DefaultViewport
	Viewport models.Viewport

	// Basemaps by name; Style is used while satellite is off
	Basemaps  map[string]tiles.Basemap
	Style     string
	Satellite bool
	Heatmap   bool

	Fetcher       tiles.Fetcher
	CacheCapacity int
	Cluster       cluster.Options

	Callbacks Callbacks
	Logger    *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MinZoom == 0 && o.MaxZoom == 0 {
		o.MinZoom, o.MaxZoom = DefaultMinZoom, DefaultMaxZoom
	}
	if o.MaxZoom < o.MinZoom {
		o.MinZoom, o.MaxZoom = o.MaxZoom, o.MinZoom
	}
	if o.Basemaps == nil {
		o.Basemaps = tiles.DefaultBasemaps()
	}
	if o.Style == "" {
		o.Style = tiles.StyleDark
	}
	if o.CacheCapacity <= 0 {
		o.CacheCapacity = tiles.DefaultCapacity
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Engine is one slippy-map instance: viewport, drawing surface, tile loader,
// clusterer and heatmap renderer.
//
// An Engine is not safe for concurrent use. The host calls input handlers,
// Tick and Render from one goroutine at a time. Tile loads complete on their
// own goroutines and only raise the redraw flag.
type Engine struct {
	opts Options
	cb   Callbacks
	log  *slog.Logger

	size    spatial.Size
	surface *image.RGBA
	dc      *gg.Context

	vp        models.Viewport
	markers   []models.Marker
	selected  string
	heatmapOn bool
	satellite bool

	loader    *tiles.Loader
	clusterer *cluster.Clusterer
	heat      *heatmap.Renderer

	// clock is the engine time, advanced only by Tick
	clock     time.Duration
	lastInput time.Duration
	hasInput  bool
	anim      *animation

	pointers map[int]spatial.Pixel
	order    []int
	gesture  *gesture
	pinch    *pinch

	needsRedraw atomic.Bool
}

// New creates an engine. It fails fast with ErrNoSurface when the surface
// size is not positive.
func New(opts Options) (*Engine, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrNoSurface, opts.Width, opts.Height)
	}
	opts = opts.withDefaults()

	e := &Engine{
		opts:      opts,
		cb:        opts.Callbacks,
		log:       opts.Logger,
		heatmapOn: opts.Heatmap,
		satellite: opts.Satellite,
		clusterer: cluster.New(opts.Cluster),
		heat:      heatmap.New(),
		pointers:  make(map[int]spatial.Pixel),
	}
	e.allocSurface(opts.Width, opts.Height)

	start := opts.Viewport
	if start == (models.Viewport{}) || !spatial.Finite(start.CenterLat, start.CenterLng, start.Zoom) {
		start = models.DefaultViewport
	}
	e.vp = e.normalize(start)

	e.loader = tiles.NewLoader(tiles.LoaderOptions{
		Capacity: opts.CacheCapacity,
		Basemap:  e.basemap(),
		Fetcher:  opts.Fetcher,
		OnLoad:   func() { e.needsRedraw.Store(true) },
		Logger:   opts.Logger,
	})
	e.needsRedraw.Store(true)
	return e, nil
}

func (e *Engine) allocSurface(w, h int) {
	e.surface = image.NewRGBA(image.Rect(0, 0, w, h))
	e.dc = gg.NewContextForRGBA(e.surface)
	e.size = spatial.Size{Width: float64(w), Height: float64(h)}
}

// Resize replaces the drawing surface
func (e *Engine) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrNoSurface, width, height)
	}
	e.allocSurface(width, height)
	e.needsRedraw.Store(true)
	return nil
}

// Close stops in-flight tile loads. The engine must not be used afterwards.
func (e *Engine) Close() {
	e.loader.Close()
}

// SetCallbacks replaces the host callbacks
func (e *Engine) SetCallbacks(cb Callbacks) {
	e.cb = cb
}

// SetMarkers replaces the marker snapshot
func (e *Engine) SetMarkers(markers []models.Marker) {
	e.markers = append([]models.Marker(nil), markers...)
	e.needsRedraw.Store(true)
}

// SetSelected highlights a marker; an empty id clears the highlight
func (e *Engine) SetSelected(id string) {
	if id == e.selected {
		return
	}
	e.selected = id
	e.needsRedraw.Store(true)
}

// SetHeatmap toggles the heatmap overlay
func (e *Engine) SetHeatmap(on bool) {
	if on == e.heatmapOn {
		return
	}
	e.heatmapOn = on
	e.needsRedraw.Store(true)
}

// SetSatellite switches between satellite imagery and the base style.
// Switching clears the tile cache.
func (e *Engine) SetSatellite(on bool) {
	if on == e.satellite {
		return
	}
	e.satellite = on
	e.loader.SetBasemap(e.basemap())
	e.needsRedraw.Store(true)
}

func (e *Engine) basemap() tiles.Basemap {
	if e.satellite {
		if b, ok := e.opts.Basemaps[tiles.StyleSatellite]; ok {
			return b
		}
	}
	return e.opts.Basemaps[e.opts.Style]
}

// Viewport returns the current (possibly mid-animation) viewport
func (e *Engine) Viewport() models.Viewport { return e.vp }

// Size returns the surface size in pixels
func (e *Engine) Size() spatial.Size { return e.size }

// Markers returns the current marker snapshot
func (e *Engine) Markers() []models.Marker { return e.markers }

// Selected returns the highlighted marker id
func (e *Engine) Selected() string { return e.selected }

// HeatmapEnabled reports whether the heatmap overlay is drawn
func (e *Engine) HeatmapEnabled() bool { return e.heatmapOn }

// SatelliteEnabled reports whether satellite tiles are drawn
func (e *Engine) SatelliteEnabled() bool { return e.satellite }

// Basemap returns the active tile style
func (e *Engine) Basemap() tiles.Basemap { return e.loader.Basemap() }

// ZoomRange returns the allowed zoom interval
func (e *Engine) ZoomRange() (float64, float64) { return e.opts.MinZoom, e.opts.MaxZoom }

// NeedsRedraw reports whether something changed since the last Render
func (e *Engine) NeedsRedraw() bool { return e.needsRedraw.Load() }

// Clusters returns the marker layout at the current viewport in draw order
func (e *Engine) Clusters() []cluster.Cluster {
	return e.layout()
}

func (e *Engine) layout() []cluster.Cluster {
	clusters := e.clusterer.Cluster(e.markers, e.vp, e.size)
	cluster.SortBySeverity(clusters)
	return clusters
}

func (e *Engine) clampZoom(z float64) float64 {
	return math.Max(e.opts.MinZoom, math.Min(e.opts.MaxZoom, z))
}

// normalize clamps a viewport into the valid range
func (e *Engine) normalize(v models.Viewport) models.Viewport {
	return models.Viewport{
		CenterLat: spatial.ClampLatitude(v.CenterLat),
		CenterLng: spatial.ClampLongitude(v.CenterLng),
		Zoom:      e.clampZoom(v.Zoom),
	}
}

func (e *Engine) setViewport(v models.Viewport) {
	e.vp = e.normalize(v)
	e.needsRedraw.Store(true)
}

// commit reports the current viewport to the host
func (e *Engine) commit() {
	if e.cb.OnViewportChanged != nil {
		e.cb.OnViewportChanged(e.vp)
	}
}

// Tick advances the engine clock by dt, steps a running animation and
// reports whether the host should call Render.
func (e *Engine) Tick(dt time.Duration) bool {
	if dt > 0 {
		e.clock += dt
	}
	if e.anim != nil {
		e.stepAnimation()
	}
	return e.needsRedraw.Load()
}
