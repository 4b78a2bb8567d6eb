package spatial

import (
	"math"

	"github.com/jengzang/whisker-watch-go/internal/models"
	"github.com/paulmach/orb/maptile"
)

const (
	// TileSize is the edge length of a raster tile in pixels
	TileSize = 256

	// MaxLatitude is the limit of the spherical Mercator projection
	MaxLatitude = 85.05112878
)

// Pixel is a position on the canvas, origin top-left
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LatLng is a geographic coordinate in degrees
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Size is the canvas size in pixels
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the pixel at the middle of the canvas
func (s Size) Center() Pixel {
	return Pixel{X: s.Width / 2, Y: s.Height / 2}
}

// ClampLatitude limits lat to the range where Mercator is finite
func ClampLatitude(lat float64) float64 {
	return math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
}

// ClampLongitude limits lng to [-180, 180]
func ClampLongitude(lng float64) float64 {
	return math.Max(-180, math.Min(180, lng))
}

// LngToTileX converts a longitude to a fractional tile column at zoom
func LngToTileX(lng, zoom float64) float64 {
	return (lng + 180) / 360 * math.Exp2(zoom)
}

// LatToTileY converts a latitude to a fractional tile row at zoom
func LatToTileY(lat, zoom float64) float64 {
	latRad := ClampLatitude(lat) * math.Pi / 180
	return (0.5 - math.Asinh(math.Tan(latRad))/(2*math.Pi)) * math.Exp2(zoom)
}

// TileXToLng is the inverse of LngToTileX
func TileXToLng(x, zoom float64) float64 {
	return x/math.Exp2(zoom)*360 - 180
}

// TileYToLat is the inverse of LatToTileY
func TileYToLat(y, zoom float64) float64 {
	n := math.Pi * (1 - 2*y/math.Exp2(zoom))
	return math.Atan(math.Sinh(n)) * 180 / math.Pi
}

// worldPixel projects a coordinate to absolute pixels at a fractional zoom
func worldPixel(lat, lng, zoom float64) Pixel {
	return Pixel{
		X: LngToTileX(lng, zoom) * TileSize,
		Y: LatToTileY(lat, zoom) * TileSize,
	}
}

// LatLngToPixel projects a coordinate onto the canvas for the given viewport
func LatLngToPixel(lat, lng float64, vp models.Viewport, size Size) Pixel {
	p := worldPixel(lat, lng, vp.Zoom)
	c := worldPixel(vp.CenterLat, vp.CenterLng, vp.Zoom)
	return Pixel{
		X: p.X - c.X + size.Width/2,
		Y: p.Y - c.Y + size.Height/2,
	}
}

// PixelToLatLng is the exact inverse of LatLngToPixel
func PixelToLatLng(px, py float64, vp models.Viewport, size Size) LatLng {
	c := worldPixel(vp.CenterLat, vp.CenterLng, vp.Zoom)
	wx := c.X + px - size.Width/2
	wy := c.Y + py - size.Height/2
	return LatLng{
		Lat: TileYToLat(wy/TileSize, vp.Zoom),
		Lng: TileXToLng(wx/TileSize, vp.Zoom),
	}
}

// CenterFor returns the viewport centre that places anchor at pixel `at`
// when the map is shown at zoom. Used for cursor- and pinch-anchored zoom.
func CenterFor(anchor LatLng, at Pixel, zoom float64, size Size) LatLng {
	a := worldPixel(anchor.Lat, anchor.Lng, zoom)
	cx := a.X - (at.X - size.Width/2)
	cy := a.Y - (at.Y - size.Height/2)
	return LatLng{
		Lat: ClampLatitude(TileYToLat(cy/TileSize, zoom)),
		Lng: ClampLongitude(TileXToLng(cx/TileSize, zoom)),
	}
}

// TileZoom is the integer zoom whose tiles are drawn for a fractional zoom.
// It floors, so tiles are drawn at scale >= 1 while a zoom animation runs.
func TileZoom(zoom float64) int {
	z := int(math.Floor(zoom))
	if z < 0 {
		return 0
	}
	return z
}

// TileScale is how many canvas pixels one tile pixel covers at zoom
func TileScale(zoom float64) float64 {
	return math.Exp2(zoom - float64(TileZoom(zoom)))
}

// TilesToLoad enumerates every tile intersecting the canvas at TileZoom(zoom),
// plus one tile of margin, clamped to the world. Tiles are returned row by row,
// top row first and leftmost first within a row.
func TilesToLoad(vp models.Viewport, size Size) []maptile.Tile {
	z := TileZoom(vp.Zoom)
	n := 1 << uint(z)
	span := TileSize * TileScale(vp.Zoom)

	cx := LngToTileX(vp.CenterLng, float64(z))
	cy := LatToTileY(vp.CenterLat, float64(z))
	halfW := size.Width / 2 / span
	halfH := size.Height / 2 / span

	minX := clampInt(int(math.Floor(cx-halfW))-1, 0, n-1)
	maxX := clampInt(int(math.Floor(cx+halfW))+1, 0, n-1)
	minY := clampInt(int(math.Floor(cy-halfH))-1, 0, n-1)
	maxY := clampInt(int(math.Floor(cy+halfH))+1, 0, n-1)

	tiles := make([]maptile.Tile, 0, (maxX-minX+1)*(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			tiles = append(tiles, maptile.New(uint32(x), uint32(y), maptile.Zoom(z)))
		}
	}
	return tiles
}

// TileOrigin is the canvas pixel of a tile's top-left corner
func TileOrigin(t maptile.Tile, vp models.Viewport, size Size) Pixel {
	z := float64(t.Z)
	span := TileSize * math.Exp2(vp.Zoom-z)
	cx := LngToTileX(vp.CenterLng, z)
	cy := LatToTileY(vp.CenterLat, z)
	return Pixel{
		X: (float64(t.X)-cx)*span + size.Width/2,
		Y: (float64(t.Y)-cy)*span + size.Height/2,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
