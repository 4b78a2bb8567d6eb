package tiles

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
)

// Source is a raster tile server addressed by a URL template.
// The template may contain {z}, {x}, {y} and {s} (subdomain).
type Source struct {
	Name        string   `json:"name"`
	URLTemplate string   `json:"url"`
	Subdomains  []string `json:"subdomains,omitempty"`
}

// Enabled reports whether the source has a URL
func (s Source) Enabled() bool {
	return s.URLTemplate != ""
}

// URL fills the template for a tile. The subdomain is picked from the tile
// position so the same tile always maps to the same host.
func (s Source) URL(t maptile.Tile) string {
	sub := ""
	if len(s.Subdomains) > 0 {
		sub = s.Subdomains[int(t.X+t.Y)%len(s.Subdomains)]
	}
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(int(t.Z)),
		"{x}", strconv.FormatUint(uint64(t.X), 10),
		"{y}", strconv.FormatUint(uint64(t.Y), 10),
		"{s}", sub,
	)
	return r.Replace(s.URLTemplate)
}

// Basemap is a map style: a primary source and the source tried when it fails
type Basemap struct {
	Name     string `json:"name"`
	Primary  Source `json:"primary"`
	Fallback Source `json:"fallback"`
}

// Basemap names
const (
	StyleDark      = "dark"
	StyleLight     = "light"
	StyleSatellite = "satellite"
)

var cartoSubdomains = []string{"a", "b", "c", "d"}

// DefaultBasemaps returns the built-in styles
func DefaultBasemaps() map[string]Basemap {
	osm := Source{Name: "osm", URLTemplate: "https://tile.openstreetmap.org/{z}/{x}/{y}.png"}
	return map[string]Basemap{
		StyleDark: {
			Name:     StyleDark,
			Primary:  Source{Name: "carto-dark", URLTemplate: "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}.png", Subdomains: cartoSubdomains},
			Fallback: osm,
		},
		StyleLight: {
			Name:     StyleLight,
			Primary:  Source{Name: "carto-light", URLTemplate: "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}.png", Subdomains: cartoSubdomains},
			Fallback: osm,
		},
		StyleSatellite: {
			Name:     StyleSatellite,
			Primary:  Source{Name: "esri-imagery", URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}"},
			Fallback: Source{Name: "esri-imagery-alt", URLTemplate: "https://services.arcgisonline.com/arcgis/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}"},
		},
	}
}

// Key is the cache key of a tile
func Key(t maptile.Tile) string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}
