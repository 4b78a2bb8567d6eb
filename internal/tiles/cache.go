package tiles

import (
	"container/list"

	"github.com/paulmach/orb/maptile"

	"github.com/jengzang/whisker-watch-go/internal/metrics"
)

// DefaultCapacity is the maximum number of tiles kept at once
const DefaultCapacity = 400

// Cache holds pending and loaded tiles keyed by tile coordinate.
// Over capacity it evicts the oldest-inserted entry outside the current
// viewport; viewport tiles go only when nothing else is left.
// A Cache is owned by one map engine and is not safe for concurrent use.
type Cache struct {
	capacity int
	order    *list.List // front is the oldest insertion
	entries  map[string]*list.Element
	viewport map[string]struct{}
}

type cacheEntry struct {
	key     string
	tile    maptile.Tile
	pending *Pending
}

// NewCache creates a cache holding at most capacity tiles
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		viewport: make(map[string]struct{}),
	}
}

// Get returns the load for a tile if one is cached
func (c *Cache) Get(t maptile.Tile) (*Pending, bool) {
	e, ok := c.entries[Key(t)]
	if !ok {
		return nil, false
	}
	return e.Value.(*cacheEntry).pending, true
}

// Has reports whether the tile is cached
func (c *Cache) Has(t maptile.Tile) bool {
	_, ok := c.entries[Key(t)]
	return ok
}

// Set stores the load for a tile and evicts over capacity.
// Replacing an entry counts as a fresh insertion.
func (c *Cache) Set(t maptile.Tile, p *Pending) {
	key := Key(t)
	if e, ok := c.entries[key]; ok {
		e.Value.(*cacheEntry).pending = p
		c.order.MoveToBack(e)
	} else {
		c.entries[key] = c.order.PushBack(&cacheEntry{key: key, tile: t, pending: p})
	}
	c.EvictIfNeeded()
}

// Remove drops a tile, reporting whether it was present
func (c *Cache) Remove(t maptile.Tile) bool {
	key := Key(t)
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.order.Remove(e)
	delete(c.entries, key)
	return true
}

// SetViewportTiles replaces the set of tiles protected from eviction
func (c *Cache) SetViewportTiles(tiles []maptile.Tile) {
	c.viewport = make(map[string]struct{}, len(tiles))
	for _, t := range tiles {
		c.viewport[Key(t)] = struct{}{}
	}
}

// InViewport reports whether the tile is in the protected set
func (c *Cache) InViewport(t maptile.Tile) bool {
	_, ok := c.viewport[Key(t)]
	return ok
}

// EvictIfNeeded removes entries until the cache is within capacity and
// returns how many were evicted
func (c *Cache) EvictIfNeeded() int {
	evicted := 0
	for c.order.Len() > c.capacity {
		victim := c.oldestStale()
		if victim == nil {
			victim = c.order.Front()
		}
		ent := victim.Value.(*cacheEntry)
		c.order.Remove(victim)
		delete(c.entries, ent.key)
		evicted++
	}
	if evicted > 0 {
		metrics.TileCacheEvictionsTotal.Add(float64(evicted))
	}
	return evicted
}

func (c *Cache) oldestStale() *list.Element {
	for e := c.order.Front(); e != nil; e = e.Next() {
		if _, protected := c.viewport[e.Value.(*cacheEntry).key]; !protected {
			return e
		}
	}
	return nil
}

// Clear drops every entry, e.g. when the basemap style changes
func (c *Cache) Clear() {
	c.order.Init()
	c.entries = make(map[string]*list.Element)
	c.viewport = make(map[string]struct{})
}

// Len returns the number of cached tiles
func (c *Cache) Len() int {
	return c.order.Len()
}

// Capacity returns the maximum number of cached tiles
func (c *Cache) Capacity() int {
	return c.capacity
}

// Tiles lists cached tiles from oldest to newest insertion
func (c *Cache) Tiles() []maptile.Tile {
	out := make([]maptile.Tile, 0, c.order.Len())
	for e := c.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*cacheEntry).tile)
	}
	return out
}
