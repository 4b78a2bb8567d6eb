package engine

import (
	"math"
	"time"

	"github.com/jengzang/whisker-watch-go/internal/models"
	"github.com/jengzang/whisker-watch-go/internal/spatial"
)

// animation is an eased transition between two viewports
type animation struct {
	from, to  models.Viewport
	startedAt time.Duration
	duration  time.Duration
}

// sample returns the viewport at engine time now. Once the duration has
// elapsed it returns the target exactly.
func (a *animation) sample(now time.Duration) (models.Viewport, bool) {
	elapsed := now - a.startedAt
	if elapsed >= a.duration {
		return a.to, true
	}
	if elapsed < 0 {
		elapsed = 0
	}
	k := easeInOutCubic(float64(elapsed) / float64(a.duration))
	return models.Viewport{
		CenterLat: lerp(a.from.CenterLat, a.to.CenterLat, k),
		CenterLng: lerp(a.from.CenterLng, a.to.CenterLng, k),
		Zoom:      lerp(a.from.Zoom, a.to.Zoom, k),
	}, false
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Animating reports whether a programmatic transition is running
func (e *Engine) Animating() bool {
	return e.anim != nil
}

// FlyTo starts an eased transition to the given centre and zoom. A running
// transition is superseded and the new one starts from the current
// interpolated viewport. Non-finite targets are ignored.
func (e *Engine) FlyTo(lat, lng, zoom float64) {
	if !spatial.Finite(lat, lng, zoom) {
		e.log.Debug("fly_to_ignored", "lat", lat, "lng", lng, "zoom", zoom)
		return
	}
	target := e.normalize(models.Viewport{CenterLat: lat, CenterLng: lng, Zoom: zoom})
	e.anim = &animation{
		from:      e.vp,
		to:        target,
		startedAt: e.clock,
		duration:  AnimationDuration,
	}
	e.needsRedraw.Store(true)
}

// FitAll flies to the box around every marker. It reports false when there
// is nothing to fit.
func (e *Engine) FitAll() bool {
	return e.FitMarkers(e.markers)
}

// FitMarkers flies to the box around markers with FitPadding pixels of
// margin. A single location is shown at SingleMarkerZoom.
func (e *Engine) FitMarkers(markers []models.Marker) bool {
	b := spatial.MarkerBounds(markers)
	if b.Empty() {
		return false
	}
	c := b.Center()
	if b.South == b.North && b.West == b.East {
		e.FlyTo(c.Lat, c.Lng, SingleMarkerZoom)
		return true
	}
	e.FlyTo(c.Lat, c.Lng, spatial.FitZoom(b, e.size, FitPadding, e.opts.MinZoom, e.opts.MaxZoom))
	return true
}

func (e *Engine) stepAnimation() {
	v, done := e.anim.sample(e.clock)
	e.vp = v
	e.needsRedraw.Store(true)
	if done {
		e.anim = nil
		e.commit()
	}
}

// stopAnimation freezes a running transition where it is; user input takes over
func (e *Engine) stopAnimation() {
	e.anim = nil
}
