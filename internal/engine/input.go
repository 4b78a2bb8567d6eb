package engine

import (
	"math"

	"github.com/jengzang/whisker-watch-go/internal/cluster"
	"github.com/jengzang/whisker-watch-go/internal/models"
	"github.com/jengzang/whisker-watch-go/internal/spatial"
)

// gesture tracks a single pointer from press to release
type gesture struct {
	origin   spatial.Pixel
	startVp  models.Viewport
	dragging bool
	// consumed gestures never turn into a click
	consumed bool
}

// pinch tracks two pointers
type pinch struct {
	d0        float64
	startZoom float64
	anchor    spatial.LatLng
}

// KeyEvent is a key press as delivered by the host
type KeyEvent struct {
	Key string `json:"key"`
	// Editable is set when focus is in a text input or editable element
	Editable bool `json:"editable"`
}

// HandlePointerDown starts tracking a mouse button or touch. A second
// pointer turns the gesture into a pinch.
func (e *Engine) HandlePointerDown(id int, x, y float64) {
	if !spatial.Finite(x, y) {
		return
	}
	if _, ok := e.pointers[id]; ok {
		return
	}
	e.markInput()
	p := spatial.Pixel{X: x, Y: y}
	e.pointers[id] = p
	e.order = append(e.order, id)

	switch len(e.order) {
	case 1:
		e.gesture = &gesture{origin: p, startVp: e.vp}
	case 2:
		e.startPinch()
	}
}

// HandlePointerMove updates a tracked pointer. Moves of pointers that are
// not pressed are ignored.
func (e *Engine) HandlePointerMove(id int, x, y float64) {
	if _, ok := e.pointers[id]; !ok || !spatial.Finite(x, y) {
		return
	}
	e.markInput()
	p := spatial.Pixel{X: x, Y: y}
	e.pointers[id] = p

	if e.pinch != nil {
		e.updatePinch()
		return
	}
	g := e.gesture
	if g == nil {
		return
	}
	if !g.dragging {
		if spatial.PixelDistance(g.origin, p) < DragThreshold {
			return
		}
		e.stopAnimation()
		g.dragging = true
		g.consumed = true
		g.startVp = e.vp
	}

	// the point under the press follows the pointer
	half := e.size.Center()
	c := spatial.PixelToLatLng(half.X-(p.X-g.origin.X), half.Y-(p.Y-g.origin.Y), g.startVp, e.size)
	e.setViewport(models.Viewport{CenterLat: c.Lat, CenterLng: c.Lng, Zoom: g.startVp.Zoom})
}

// HandlePointerUp releases a pointer. Ending a drag or pinch commits the
// viewport; a press without drag is a click.
func (e *Engine) HandlePointerUp(id int, x, y float64) {
	if _, ok := e.pointers[id]; !ok {
		return
	}
	e.markInput()
	delete(e.pointers, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}

	if e.pinch != nil {
		if len(e.order) >= 2 {
			e.startPinch()
			return
		}
		e.pinch = nil
		e.commit()
		e.gesture = nil
		if len(e.order) == 1 {
			e.gesture = &gesture{origin: e.pointers[e.order[0]], startVp: e.vp, consumed: true}
		}
		return
	}

	g := e.gesture
	e.gesture = nil
	if g == nil {
		return
	}
	if g.dragging {
		e.commit()
		return
	}
	if !g.consumed && spatial.Finite(x, y) {
		e.click(spatial.Pixel{X: x, Y: y})
	}
}

func (e *Engine) startPinch() {
	a, b := e.pointers[e.order[0]], e.pointers[e.order[1]]
	mid := spatial.Midpoint(a, b)
	e.stopAnimation()
	e.gesture = nil
	e.pinch = &pinch{
		d0:        math.Max(spatial.PixelDistance(a, b), 1),
		startZoom: e.vp.Zoom,
		anchor:    spatial.PixelToLatLng(mid.X, mid.Y, e.vp, e.size),
	}
}

// updatePinch zooms by log2 of the finger spread and keeps the geographic
// point first under the centroid under the current centroid
func (e *Engine) updatePinch() {
	a, b := e.pointers[e.order[0]], e.pointers[e.order[1]]
	d := math.Max(spatial.PixelDistance(a, b), 1)
	zoom := e.clampZoom(e.pinch.startZoom + math.Log2(d/e.pinch.d0))
	c := spatial.CenterFor(e.pinch.anchor, spatial.Midpoint(a, b), zoom, e.size)
	e.setViewport(models.Viewport{CenterLat: c.Lat, CenterLng: c.Lng, Zoom: zoom})
}

// HandleWheel zooms by WheelStep around the cursor. Negative deltaY zooms in.
func (e *Engine) HandleWheel(x, y, deltaY float64) {
	if deltaY == 0 || !spatial.Finite(x, y, deltaY) {
		return
	}
	e.markInput()
	e.stopAnimation()
	step := WheelStep
	if deltaY > 0 {
		step = -step
	}
	e.zoomAround(spatial.Pixel{X: x, Y: y}, e.vp.Zoom+step)
}

// HandleKeyDown pans with the arrow keys and zooms with +/-. It returns
// false for keys it does not handle and for events aimed at editable elements.
func (e *Engine) HandleKeyDown(ev KeyEvent) bool {
	if ev.Editable {
		return false
	}
	switch ev.Key {
	case "ArrowLeft":
		e.panBy(-KeyPanPixels, 0)
	case "ArrowRight":
		e.panBy(KeyPanPixels, 0)
	case "ArrowUp":
		e.panBy(0, -KeyPanPixels)
	case "ArrowDown":
		e.panBy(0, KeyPanPixels)
	case "+", "=":
		e.markInput()
		e.stopAnimation()
		e.zoomAround(e.size.Center(), e.vp.Zoom+1)
	case "-", "_":
		e.markInput()
		e.stopAnimation()
		e.zoomAround(e.size.Center(), e.vp.Zoom-1)
	default:
		return false
	}
	return true
}

// panBy moves the view by a screen offset, so the geographic step shrinks
// as zoom grows
func (e *Engine) panBy(dx, dy float64) {
	e.markInput()
	e.stopAnimation()
	half := e.size.Center()
	c := spatial.PixelToLatLng(half.X+dx, half.Y+dy, e.vp, e.size)
	e.setViewport(models.Viewport{CenterLat: c.Lat, CenterLng: c.Lng, Zoom: e.vp.Zoom})
	e.commit()
}

// zoomAround changes zoom keeping the point under `at` fixed on screen
func (e *Engine) zoomAround(at spatial.Pixel, zoom float64) {
	zoom = e.clampZoom(zoom)
	if zoom == e.vp.Zoom {
		return
	}
	anchor := spatial.PixelToLatLng(at.X, at.Y, e.vp, e.size)
	c := spatial.CenterFor(anchor, at, zoom, e.size)
	e.setViewport(models.Viewport{CenterLat: c.Lat, CenterLng: c.Lng, Zoom: zoom})
	e.commit()
}

func (e *Engine) click(p spatial.Pixel) {
	hit, ok := cluster.HitTest(e.layout(), p, HitTolerance)
	switch {
	case !ok:
		ll := spatial.PixelToLatLng(p.X, p.Y, e.vp, e.size)
		if e.cb.OnMapClicked != nil {
			e.cb.OnMapClicked(ll.Lat, spatial.ClampLongitude(ll.Lng))
		}
	case hit.Single():
		if e.cb.OnMarkerClicked != nil {
			e.cb.OnMarkerClicked(hit.Members[0].ID)
		}
	default:
		e.zoomIntoCluster(hit)
	}
}

// zoomIntoCluster flies to the members' bounds, at least one level deeper
func (e *Engine) zoomIntoCluster(cl cluster.Cluster) {
	b := cl.Bounds()
	if b.Empty() {
		return
	}
	zoom := spatial.FitZoom(b, e.size, FitPadding, e.opts.MinZoom, e.opts.MaxZoom)
	if deeper := math.Floor(e.vp.Zoom) + 1; zoom < deeper {
		zoom = e.clampZoom(deeper)
	}
	c := b.Center()
	e.FlyTo(c.Lat, c.Lng, zoom)
}
