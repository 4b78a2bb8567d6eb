package tiles

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb/maptile"

	"github.com/jengzang/whisker-watch-go/internal/metrics"
)

// LoaderOptions configures a Loader
type LoaderOptions struct {
	Capacity int
	Basemap  Basemap
	Fetcher  Fetcher
	// OnLoad is called from the fetch goroutine whenever a load finishes
	OnLoad func()
	Logger *slog.Logger
}

// Loader starts tile loads, remembers them in a Cache and falls back to the
// basemap's secondary source when the primary fails. Loads are never started
// twice for the same tile while one is running, even if the cache evicted it,
// and are not aborted when the tile scrolls out of view.
//
// Request, Image, SetViewportTiles and SetBasemap must be called from the
// goroutine that owns the map engine.
type Loader struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	fetcher Fetcher
	basemap Basemap
	cache   *Cache
	onLoad  func()
	log     *slog.Logger

	// failed tiles are not requested again until they leave the viewport
	failed map[string]struct{}
	// inflight holds every load not yet settled, cached or not
	inflight map[string]inflightLoad
}

type inflightLoad struct {
	tile    maptile.Tile
	pending *Pending
}

// NewLoader creates a loader with its own cache
func NewLoader(opts LoaderOptions) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Loader{
		ctx:     ctx,
		cancel:  cancel,
		fetcher: opts.Fetcher,
		basemap: opts.Basemap,
		cache:   NewCache(opts.Capacity),
		onLoad:  opts.OnLoad,
		log:     log,
		failed:   make(map[string]struct{}),
		inflight: make(map[string]inflightLoad),
	}
}

// Cache exposes the underlying cache
func (l *Loader) Cache() *Cache {
	return l.cache
}

// Basemap returns the active style
func (l *Loader) Basemap() Basemap {
	return l.basemap
}

// SetBasemap switches style. Cached tiles belong to the old style and are dropped.
func (l *Loader) SetBasemap(b Basemap) {
	if b.Name == l.basemap.Name && b.Primary.URLTemplate == l.basemap.Primary.URLTemplate {
		return
	}
	l.basemap = b
	l.cache.Clear()
	l.failed = make(map[string]struct{})
	l.inflight = make(map[string]inflightLoad)
	l.log.Debug("tile_basemap_switched", "style", b.Name)
}

// SetViewportTiles marks the tiles currently on screen. Tiles that failed and
// have since left the viewport become eligible for another attempt.
func (l *Loader) SetViewportTiles(tiles []maptile.Tile) {
	l.cache.SetViewportTiles(tiles)
	l.settle()
	for key := range l.failed {
		if _, visible := l.cache.viewport[key]; !visible {
			delete(l.failed, key)
		}
	}
}

// Request returns the load for a tile, starting one if none is cached or
// running. It returns nil for a tile whose load failed while in the viewport.
func (l *Loader) Request(t maptile.Tile) *Pending {
	key := Key(t)
	if p, ok := l.cache.Get(t); ok {
		if p.Ready() && p.Err() != nil {
			l.drop(t, p)
			return nil
		}
		metrics.TileCacheHitsTotal.Inc()
		return p
	}
	if _, failed := l.failed[key]; failed {
		return nil
	}
	if in, ok := l.inflight[key]; ok {
		if in.pending.Ready() && in.pending.Err() != nil {
			l.drop(t, in.pending)
			return nil
		}
		// evicted while loading, or loaded since
		l.cache.Set(t, in.pending)
		return in.pending
	}
	if l.fetcher == nil || !l.basemap.Primary.Enabled() {
		return nil
	}

	p := newPending()
	l.cache.Set(t, p)
	l.inflight[key] = inflightLoad{tile: t, pending: p}
	l.wg.Add(1)
	go l.fetch(l.basemap, t, p)
	return p
}

// Image returns the tile image if it is loaded, never blocking
func (l *Loader) Image(t maptile.Tile) image.Image {
	p := l.Request(t)
	if p == nil || !p.Ready() {
		return nil
	}
	return p.Image()
}

// drop removes a failed load from the cache and parks the tile
func (l *Loader) drop(t maptile.Tile, p *Pending) {
	key := Key(t)
	if cached, ok := l.cache.Get(t); ok && cached == p {
		l.cache.Remove(t)
	}
	if in, ok := l.inflight[key]; ok && in.pending == p {
		delete(l.inflight, key)
	}
	l.failed[key] = struct{}{}
}

// settle forgets finished loads. Failures leave the cache, so an error never
// occupies a slot whether or not the tile was drawn.
func (l *Loader) settle() {
	for key, in := range l.inflight {
		if !in.pending.Ready() {
			continue
		}
		if in.pending.Err() != nil {
			l.drop(in.tile, in.pending)
			continue
		}
		delete(l.inflight, key)
	}
}

// InFlight returns how many loads have not settled yet
func (l *Loader) InFlight() int {
	return len(l.inflight)
}

// Failed reports whether the tile is parked as failed
func (l *Loader) Failed(t maptile.Tile) bool {
	_, ok := l.failed[Key(t)]
	return ok
}

// fetch runs on its own goroutine; b is copied so a style switch cannot race it
func (l *Loader) fetch(b Basemap, t maptile.Tile, p *Pending) {
	defer l.wg.Done()

	img, src, err := l.fetchFrom(b.Primary, t)
	if err != nil && b.Fallback.Enabled() {
		l.log.Debug("tile_primary_failed", "tile", Key(t), "source", b.Primary.Name, "err", err)
		var ferr error
		img, src, ferr = l.fetchFrom(b.Fallback, t)
		if ferr == nil {
			metrics.TileFallbacksTotal.Inc()
			err = nil
		} else {
			err = fmt.Errorf("primary: %v; fallback: %w", err, ferr)
		}
	}
	if err != nil {
		l.log.Warn("tile_load_failed", "tile", Key(t), "err", err)
	}

	p.resolve(img, src, err)
	if l.onLoad != nil {
		l.onLoad()
	}
}

func (l *Loader) fetchFrom(src Source, t maptile.Tile) (image.Image, string, error) {
	start := time.Now()
	metrics.TileRequestsTotal.WithLabelValues(src.Name).Inc()

	img, err := l.fetcher.Fetch(l.ctx, src.URL(t))
	metrics.TileFetchDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.TileFailuresTotal.WithLabelValues(src.Name).Inc()
		return nil, src.Name, err
	}
	return img, src.Name, nil
}

// Close cancels in-flight fetches and waits for their goroutines
func (l *Loader) Close() {
	l.cancel()
	l.wg.Wait()
}
