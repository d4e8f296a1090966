// Package glyphcache maps glyph appearances to reserved texture-atlas tiles.
//
// The cache is the producer-side collaborator of the termgrid render
// pipeline: it decides which glyph runs still need rasterizing and where in
// the atlas their tiles will land. The render thread never writes to it; it
// only observes the published fill cursor to decide when the atlas texture
// must grow.
package glyphcache

import (
	"sync"
	"sync/atomic"
)

// Coord is the top-left corner of one atlas tile in pixels.
type Coord struct {
	X, Y uint16
}

// Key identifies one rasterized glyph appearance. Keys compare structurally:
// two cells with the same character sequence, span and style bits share one
// cached appearance.
type Key struct {
	// Chars is the character sequence of the glyph run, typically a single
	// grapheme cluster.
	Chars string

	// CellCount is the number of grid cells the run spans.
	CellCount uint16

	// Bold and Italic select the font style variant.
	Bold   bool
	Italic bool
}

// Flags describe properties of a cached appearance.
type Flags uint8

const (
	// FlagColored marks a glyph with intrinsic color (emoji). Colored
	// glyphs are alpha-blended downstream and must never be rasterized
	// with sub-pixel antialiasing.
	FlagColored Flags = 1 << iota
)

// Value is one cached appearance: one atlas tile per cell in the span.
// Produced once per unique Key and reused until the cache is reset.
type Value struct {
	Coords []Coord
	Flags  Flags
}

// Config holds the atlas geometry the cache allocates against.
type Config struct {
	// CellWidth and CellHeight are the pixel dimensions of one grid cell.
	CellWidth  uint32
	CellHeight uint32

	// LimitX is the maximum atlas width in pixels; tile allocation wraps
	// to the next row when a tile would cross it.
	LimitX uint32

	// ReserveTiles is the number of tiles at the atlas origin excluded
	// from allocation. Tile 0 holds the cursor shape.
	// Default: 1.
	ReserveTiles int
}

// Stats holds cache counters.
type Stats struct {
	Hits          uint64
	Misses        uint64
	TilesReserved uint64
}

// Cache assigns atlas tiles to glyph keys. There is no eviction: the atlas
// fills monotonically up to the hardware texture limit, and capacity resets
// only through Reset.
//
// All methods except FillCursor must be called from the producer side.
// FillCursor is safe to call from any goroutine.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*Value
	posX    uint32
	posY    uint32
	cfg     Config

	// cursor publishes the fill position to the render thread:
	// X in the high 32 bits, Y in the low 32 bits.
	cursor atomic.Uint64

	hits          atomic.Uint64
	misses        atomic.Uint64
	tilesReserved atomic.Uint64
}

// New creates a cache for the given atlas geometry.
func New(cfg Config) *Cache {
	if cfg.ReserveTiles <= 0 {
		cfg.ReserveTiles = 1
	}
	c := &Cache{
		entries: make(map[Key]*Value),
		cfg:     cfg,
	}
	c.resetPosition()
	return c
}

// GetOrReserve returns the cached value for key, reserving atlas tiles for
// it on first sight. pending is true exactly when the tiles were newly
// reserved, in which case the caller must enqueue the (key, value) pair for
// rasterization before the next frame.
func (c *Cache) GetOrReserve(key Key) (value *Value, pending bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.entries[key]; ok {
		c.hits.Add(1)
		return v, false
	}

	cells := int(key.CellCount)
	if cells < 1 {
		cells = 1
	}
	v := &Value{Coords: make([]Coord, cells)}
	for i := 0; i < cells; i++ {
		v.Coords[i] = c.allocTile()
	}
	c.entries[key] = v
	c.publishCursor()

	c.misses.Add(1)
	c.tilesReserved.Add(uint64(cells))
	return v, true
}

// FillCursor returns the published fill position in pixels. The render
// thread reads it once per frame to trigger atlas growth.
func (c *Cache) FillCursor() (x, y uint32) {
	packed := c.cursor.Load()
	return uint32(packed >> 32), uint32(packed)
}

// Reset forgets all placements and rewinds the fill cursor past the
// reserved tiles. Must be invoked whenever previously cached placements
// become invalid (a cold atlas allocation).
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*Value)
	c.resetPosition()
}

// Len returns the number of cached appearances.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		TilesReserved: c.tilesReserved.Load(),
	}
}

// allocTile hands out the next tile, wrapping to a new row when the tile
// would cross the atlas width limit. Callers hold c.mu.
func (c *Cache) allocTile() Coord {
	if c.posX+c.cfg.CellWidth > c.cfg.LimitX {
		c.posX = 0
		c.posY += c.cfg.CellHeight
	}
	coord := Coord{X: uint16(c.posX), Y: uint16(c.posY)}
	c.posX += c.cfg.CellWidth
	return coord
}

// resetPosition rewinds the fill cursor past the reserved tiles.
// Callers hold c.mu (or own the cache exclusively during construction).
func (c *Cache) resetPosition() {
	c.posX = uint32(c.cfg.ReserveTiles) * c.cfg.CellWidth
	c.posY = 0
	c.publishCursor()
}

// publishCursor makes the fill position visible to the render thread.
// Callers hold c.mu.
func (c *Cache) publishCursor() {
	c.cursor.Store(uint64(c.posX)<<32 | uint64(c.posY))
}
