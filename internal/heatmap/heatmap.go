package heatmap

import (
	"image/color"

	"github.com/fogleman/gg"

	"github.com/jengzang/whisker-watch-go/internal/models"
	"github.com/jengzang/whisker-watch-go/internal/spatial"
)

const (
	DefaultRadius = 25.0
	DefaultAlpha  = 0.6
)

// Renderer draws a density overlay: one soft radial blob per marker, so
// overlapping incidents build up colour.
type Renderer struct {
	Radius float64
	Alpha  float64
}

// New returns a renderer with the default radius and opacity
func New() *Renderer {
	return &Renderer{Radius: DefaultRadius, Alpha: DefaultAlpha}
}

// Visible returns the markers inside the viewport, padded by the blob radius
// so blobs centred just off-canvas still bleed in
func (r *Renderer) Visible(markers []models.Marker, vp models.Viewport, size spatial.Size) []models.Marker {
	bounds := spatial.VisibleBounds(vp, size, r.Radius)
	out := make([]models.Marker, 0, len(markers))
	for _, m := range markers {
		if !spatial.Finite(m.Lat, m.Lng) {
			continue
		}
		if bounds.Contains(spatial.ClampLatitude(m.Lat), m.Lng) {
			out = append(out, m)
		}
	}
	return out
}

// Render draws the overlay onto dc and returns the number of blobs drawn
func (r *Renderer) Render(dc *gg.Context, markers []models.Marker, vp models.Viewport, size spatial.Size) int {
	visible := r.Visible(markers, vp, size)
	for _, m := range visible {
		p := spatial.LatLngToPixel(m.Lat, m.Lng, vp, size)
		r.blob(dc, p, m.Status.Color())
	}
	return len(visible)
}

func (r *Renderer) blob(dc *gg.Context, p spatial.Pixel, c color.NRGBA) {
	// gg blends gradient stops as straight alpha, so the stops carry
	// unpremultiplied channels
	inner := color.RGBA{R: c.R, G: c.G, B: c.B, A: uint8(r.Alpha * 255)}
	outer := color.RGBA{R: c.R, G: c.G, B: c.B, A: 0}

	grad := gg.NewRadialGradient(p.X, p.Y, 0, p.X, p.Y, r.Radius)
	grad.AddColorStop(0, inner)
	grad.AddColorStop(1, outer)

	dc.SetFillStyle(grad)
	dc.DrawCircle(p.X, p.Y, r.Radius)
	dc.Fill()
}
