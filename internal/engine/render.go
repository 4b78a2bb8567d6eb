package engine

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"time"

	"github.com/paulmach/orb/maptile"
	xdraw "golang.org/x/image/draw"

	"github.com/jengzang/whisker-watch-go/internal/cluster"
	"github.com/jengzang/whisker-watch-go/internal/metrics"
	"github.com/jengzang/whisker-watch-go/internal/spatial"
)

var (
	backgroundColor  = color.NRGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xff}
	placeholderColor = color.NRGBA{R: 0x1f, G: 0x29, B: 0x37, A: 0xff}
	gridColor        = color.NRGBA{R: 0x37, G: 0x41, B: 0x51, A: 0xff}
	outlineColor     = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Render composites the current frame and returns the surface. Tiles that
// are not loaded yet draw as placeholders and a finished load raises the
// redraw flag. Render does not panic: a failure drawing one tile or marker
// is logged and skipped.
func (e *Engine) Render() image.Image {
	start := time.Now()
	e.needsRedraw.Store(false)

	e.dc.SetColor(backgroundColor)
	e.dc.Clear()

	visible := spatial.TilesToLoad(e.vp, e.size)
	e.loader.SetViewportTiles(visible)
	for _, t := range visible {
		e.guard("tile", func() { e.drawTile(t) })
	}

	if e.heatmapOn {
		e.guard("heatmap", func() { e.heat.Render(e.dc, e.markers, e.vp, e.size) })
	}

	var clusters []cluster.Cluster
	e.guard("cluster", func() { clusters = e.layout() })
	for _, cl := range clusters {
		e.guard("marker", func() { e.drawCluster(cl) })
	}

	metrics.FrameRenderDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	return e.surface
}

// Surface returns the last rendered frame without drawing
func (e *Engine) Surface() image.Image {
	return e.surface
}

func (e *Engine) guard(step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.dc.ClearPath()
			e.log.Error("render_step_panicked", "step", step, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// tileRect is the canvas rectangle a tile covers. Rounding both edges keeps
// neighbouring tiles seamless.
func (e *Engine) tileRect(t maptile.Tile) image.Rectangle {
	o := spatial.TileOrigin(t, e.vp, e.size)
	span := spatial.TileSize * math.Exp2(e.vp.Zoom-float64(t.Z))
	return image.Rect(
		int(math.Round(o.X)), int(math.Round(o.Y)),
		int(math.Round(o.X+span)), int(math.Round(o.Y+span)),
	)
}

func (e *Engine) drawTile(t maptile.Tile) {
	dr := e.tileRect(t)
	if !dr.Overlaps(e.surface.Bounds()) {
		// margin tiles are requested but not drawn
		e.loader.Request(t)
		return
	}

	img := e.loader.Image(t)
	if img == nil {
		e.drawPlaceholder(dr, e.loader.Failed(t))
		return
	}

	sr := img.Bounds()
	if dr.Dx() == sr.Dx() && dr.Dy() == sr.Dy() {
		xdraw.Draw(e.surface, dr, img, sr.Min, xdraw.Src)
		return
	}
	xdraw.ApproxBiLinear.Scale(e.surface, dr, img, sr, xdraw.Src, nil)
}

func (e *Engine) drawPlaceholder(r image.Rectangle, failed bool) {
	x, y := float64(r.Min.X), float64(r.Min.Y)
	w, h := float64(r.Dx()), float64(r.Dy())
	e.dc.SetColor(placeholderColor)
	e.dc.DrawRectangle(x, y, w, h)
	e.dc.Fill()
	if failed {
		e.dc.SetColor(gridColor)
		e.dc.SetLineWidth(1)
		e.dc.DrawRectangle(x+0.5, y+0.5, w-1, h-1)
		e.dc.Stroke()
	}
}

func (e *Engine) onScreen(p spatial.Pixel, r float64) bool {
	return p.X+r >= 0 && p.Y+r >= 0 && p.X-r <= e.size.Width && p.Y-r <= e.size.Height
}

func (e *Engine) drawCluster(cl cluster.Cluster) {
	p := cl.Center
	if !e.onScreen(p, cl.Radius+6) {
		return
	}
	fill := cl.DominantStatus.Color()

	if cl.Single() {
		if cl.Members[0].ID == e.selected && e.selected != "" {
			e.dc.SetColor(outlineColor)
			e.dc.SetLineWidth(3)
			e.dc.DrawCircle(p.X, p.Y, cl.Radius+5)
			e.dc.Stroke()
		}
		e.dc.SetColor(fill)
		e.dc.DrawCircle(p.X, p.Y, cl.Radius)
		e.dc.Fill()
		e.dc.SetColor(outlineColor)
		e.dc.SetLineWidth(2)
		e.dc.DrawCircle(p.X, p.Y, cl.Radius)
		e.dc.Stroke()
		return
	}

	halo := fill
	halo.A = 0x55
	e.dc.SetColor(halo)
	e.dc.DrawCircle(p.X, p.Y, cl.Radius+4)
	e.dc.Fill()

	e.dc.SetColor(fill)
	e.dc.DrawCircle(p.X, p.Y, cl.Radius)
	e.dc.Fill()
	e.dc.SetColor(outlineColor)
	e.dc.SetLineWidth(2)
	if e.selected != "" && cl.Contains(e.selected) {
		e.dc.SetLineWidth(4)
	}
	e.dc.DrawCircle(p.X, p.Y, cl.Radius)
	e.dc.Stroke()

	e.dc.DrawStringAnchored(countLabel(cl.Count()), p.X, p.Y, 0.5, 0.5)
}

func countLabel(n int) string {
	if n >= 1000 {
		return strconv.FormatFloat(float64(n)/1000, 'f', 1, 64) + "k"
	}
	return strconv.Itoa(n)
}
