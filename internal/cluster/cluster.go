package cluster

import (
	"math"
	"sort"

	"github.com/jengzang/whisker-watch-go/internal/models"
	"github.com/jengzang/whisker-watch-go/internal/spatial"
)

// Options tunes the clustering engine
type Options struct {
	// Threshold is the highest integer zoom at which markers are grouped
	Threshold int
	// RadiusPx is the grouping distance in canvas pixels
	RadiusPx float64
	// BaseRadius and ScaleFactor give the drawn size: base + ln(count)*scale
	BaseRadius  float64
	ScaleFactor float64
	// MarkerRadius is the drawn size of an individual marker
	MarkerRadius float64
}

// DefaultOptions returns the standard tuning
func DefaultOptions() Options {
	return Options{
		Threshold:    12,
		RadiusPx:     60,
		BaseRadius:   18,
		ScaleFactor:  6,
		MarkerRadius: 8,
	}
}

// Cluster is a render-time group of markers. A cluster with one member is
// an individual marker.
type Cluster struct {
	Center         spatial.Pixel   `json:"center"`
	Members        []models.Marker `json:"members"`
	DominantStatus models.Status   `json:"dominantStatus"`
	Radius         float64         `json:"radius"`

	seed spatial.Pixel
}

// Count returns the number of member markers
func (c Cluster) Count() int {
	return len(c.Members)
}

// Single reports whether the cluster is an individual marker
func (c Cluster) Single() bool {
	return len(c.Members) == 1
}

// Bounds is the geographic box around the members
func (c Cluster) Bounds() spatial.Bounds {
	return spatial.MarkerBounds(c.Members)
}

// Contains reports whether a marker id is a member
func (c Cluster) Contains(id string) bool {
	for _, m := range c.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Clusterer groups markers that sit close together on screen
type Clusterer struct {
	opts Options
}

// New creates a clusterer, filling zero options with defaults
func New(opts Options) *Clusterer {
	def := DefaultOptions()
	if opts.Threshold == 0 {
		opts.Threshold = def.Threshold
	}
	if opts.RadiusPx <= 0 {
		opts.RadiusPx = def.RadiusPx
	}
	if opts.BaseRadius <= 0 {
		opts.BaseRadius = def.BaseRadius
	}
	if opts.ScaleFactor <= 0 {
		opts.ScaleFactor = def.ScaleFactor
	}
	if opts.MarkerRadius <= 0 {
		opts.MarkerRadius = def.MarkerRadius
	}
	return &Clusterer{opts: opts}
}

// Options returns the effective options
func (c *Clusterer) Options() Options {
	return c.opts
}

// Active reports whether grouping applies at zoom
func (c *Clusterer) Active(zoom float64) bool {
	return int(math.Floor(zoom)) <= c.opts.Threshold
}

// Cluster projects markers onto the canvas and groups them.
//
// Single greedy pass in input order: a marker joins the first cluster whose
// seed pixel lies within RadiusPx, otherwise it seeds a new cluster. The
// result is deterministic for a given snapshot and viewport. Above the zoom
// threshold every marker is returned on its own. Markers with non-finite
// coordinates are skipped.
func (c *Clusterer) Cluster(markers []models.Marker, vp models.Viewport, size spatial.Size) []Cluster {
	active := c.Active(vp.Zoom)
	clusters := make([]Cluster, 0, len(markers))

	for _, m := range markers {
		if !spatial.Finite(m.Lat, m.Lng) {
			continue
		}
		p := spatial.LatLngToPixel(m.Lat, m.Lng, vp, size)

		joined := false
		if active {
			for i := range clusters {
				if spatial.PixelDistance(clusters[i].seed, p) <= c.opts.RadiusPx {
					clusters[i].Members = append(clusters[i].Members, m)
					clusters[i].Center.X += p.X
					clusters[i].Center.Y += p.Y
					joined = true
					break
				}
			}
		}
		if !joined {
			clusters = append(clusters, Cluster{seed: p, Center: p, Members: []models.Marker{m}})
		}
	}

	for i := range clusters {
		cl := &clusters[i]
		n := float64(len(cl.Members))
		cl.Center = spatial.Pixel{X: cl.Center.X / n, Y: cl.Center.Y / n}
		cl.DominantStatus = DominantStatus(cl.Members)
		cl.Radius = c.VisualRadius(len(cl.Members))
	}
	return clusters
}

// VisualRadius is the drawn radius for a group of count markers.
// Growth is log-dampened so very large clusters stay reasonable.
func (c *Clusterer) VisualRadius(count int) float64 {
	if count <= 1 {
		return c.opts.MarkerRadius
	}
	return c.opts.BaseRadius + math.Log(float64(count))*c.opts.ScaleFactor
}

// DominantStatus returns the most severe status among the markers
func DominantStatus(markers []models.Marker) models.Status {
	var best models.Status
	bestSeverity := math.MinInt
	for _, m := range markers {
		if s := m.Status.Severity(); s > bestSeverity {
			best, bestSeverity = m.Status, s
		}
	}
	return best
}

// SortBySeverity orders clusters for drawing: least severe first, so the
// most severe sits on top. Equal severities keep their order.
func SortBySeverity(clusters []Cluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].DominantStatus.Severity() < clusters[j].DominantStatus.Severity()
	})
}

// HitTest finds the topmost cluster under p. clusters must be in draw
// order. A hit is within the drawn radius or tolerance, whichever is larger.
func HitTest(clusters []Cluster, p spatial.Pixel, tolerance float64) (Cluster, bool) {
	for i := len(clusters) - 1; i >= 0; i-- {
		reach := math.Max(clusters[i].Radius, tolerance)
		if spatial.PixelDistance(clusters[i].Center, p) <= reach {
			return clusters[i], true
		}
	}
	return Cluster{}, false
}
