package termgrid

import (
	"sync/atomic"

	"github.com/gogpu/termgrid/glyphcache"
	"github.com/gogpu/termgrid/text"
)

// queuedGlyph is one rasterization work item handed from the producer side
// to the render thread.
type queuedGlyph struct {
	key   glyphcache.Key
	value *glyphcache.Value
}

// producerState holds everything producers write. There is no lock: each
// independently updated field is its own atomic cell, and the glyph channel
// is the one ordered hand-off. The render thread reads whichever values are
// current when a frame starts; tearing across fields only ever delays an
// update by one frame.
type producerState struct {
	grid     atomic.Pointer[CellGrid]
	cursor   atomic.Pointer[CursorOptions]
	features atomic.Pointer[[]text.Feature]

	// invalid accumulates Invalidation bits. Producers or bits in; the
	// render thread clears a bit only after servicing it.
	invalid atomic.Uint32

	dpi atomic.Uint32
	aa  atomic.Uint32

	// viewport packs width<<32 | height so both dimensions change together.
	viewport atomic.Uint64

	// maxCellCount is the widest glyph run mapped so far; the scratchpad is
	// reserved to it every frame.
	maxCellCount atomic.Uint32
}

// renderState is owned exclusively by the render thread. Producers never
// touch it.
type renderState struct {
	atlas   atlas
	scratch scratchpad
	cursor  cursorRenderer

	cellBuf  Buffer
	cellCap  int
	constBuf Buffer

	rasterFaces *text.FaceSet
	shaper      text.Shaper

	// pending is the drain buffer the glyph channel empties into each
	// frame; kept around to avoid per-frame allocation.
	pending []queuedGlyph
}

// Engine is the glyph atlas renderer. Producers feed it grid snapshots,
// glyph mappings and invalidations through the fire-and-forget setters;
// exactly one render thread calls Present.
type Engine struct {
	dev   Device
	cfg   Config
	cache *glyphcache.Cache

	glyphs chan queuedGlyph

	prod producerState
	rs   renderState
}

// New creates an engine rendering through dev. The configuration must carry
// a face set and a nonzero cell size; see DefaultConfig.
func New(dev Device, cfg Config) (*Engine, error) {
	if dev == nil {
		return nil, errNoDevice
	}
	if err := cfg.fixup(); err != nil {
		return nil, err
	}

	maxDim := dev.Limits().MaxTextureDim
	if cfg.MaxAtlasDim != 0 && cfg.MaxAtlasDim < maxDim {
		maxDim = cfg.MaxAtlasDim
	}
	// Atlas limits are floored to whole cells so tile allocation never
	// crosses the texture edge.
	limitX := maxDim / cfg.CellWidth * cfg.CellWidth
	limitY := maxDim / cfg.CellHeight * cfg.CellHeight
	if limitX == 0 || limitY == 0 {
		return nil, errBadCellSize
	}

	e := &Engine{
		dev: dev,
		cfg: cfg,
		cache: glyphcache.New(glyphcache.Config{
			CellWidth:  cfg.CellWidth,
			CellHeight: cfg.CellHeight,
			LimitX:     limitX,
		}),
		glyphs: make(chan queuedGlyph, cfg.QueueDepth),
	}

	e.prod.dpi.Store(cfg.DPI)
	e.prod.aa.Store(uint32(cfg.Antialias))
	cursor := cfg.Cursor
	e.prod.cursor.Store(&cursor)

	e.rs.atlas = atlas{
		cellW:  cfg.CellWidth,
		cellH:  cfg.CellHeight,
		limitX: limitX,
		limitY: limitY,
	}
	e.rs.scratch = scratchpad{
		variant: cfg.Scratch,
		cellW:   cfg.CellWidth,
		cellH:   cfg.CellHeight,
	}
	e.rs.cursor = cursorRenderer{
		cellW: cfg.CellWidth,
		cellH: cfg.CellHeight,
		dpi:   cfg.DPI,
	}
	e.rs.rasterFaces = cfg.Faces
	e.rs.shaper = cfg.Shaper

	Logger().Info("termgrid: engine created",
		"cellWidth", cfg.CellWidth, "cellHeight", cfg.CellHeight,
		"atlasLimit", maxDim, "scratch", cfg.Scratch == ScratchTexture)
	return e, nil
}

// Cache exposes the glyph placement cache for producer-side inspection.
func (e *Engine) Cache() *glyphcache.Cache { return e.cache }

// MapGlyph returns the atlas placement for key, reserving tiles and
// scheduling rasterization on first sight. colored marks a glyph with
// intrinsic color; it is honored only on the first mapping of a key.
//
// MapGlyph blocks if more than QueueDepth glyphs are already pending
// between two frames.
func (e *Engine) MapGlyph(key glyphcache.Key, colored bool) *glyphcache.Value {
	v, pending := e.cache.GetOrReserve(key)
	if !pending {
		return v
	}

	if colored {
		v.Flags |= glyphcache.FlagColored
	}

	cells := uint32(max(key.CellCount, 1))
	for {
		cur := e.prod.maxCellCount.Load()
		if cells <= cur || e.prod.maxCellCount.CompareAndSwap(cur, cells) {
			break
		}
	}

	e.glyphs <- queuedGlyph{key: key, value: v}
	return v
}

// SetCellGrid publishes a new grid snapshot. The snapshot must not be
// mutated afterwards; publish a fresh one instead.
//
// The constants carry the grid's column count and its fallback viewport,
// so a snapshot with new dimensions invalidates them.
func (e *Engine) SetCellGrid(grid *CellGrid) {
	prev := e.prod.grid.Swap(grid)
	if grid != nil && (prev == nil || prev.Cols != grid.Cols || prev.Rows != grid.Rows) {
		e.Invalidate(InvalidateConstBuffer)
	}
}

// SetViewportPixelSize publishes the render target size in pixels.
func (e *Engine) SetViewportPixelSize(width, height uint32) {
	e.prod.viewport.Store(uint64(width)<<32 | uint64(height))
	e.Invalidate(InvalidateConstBuffer)
}

// SetCursorOptions publishes a new cursor description.
func (e *Engine) SetCursorOptions(opts CursorOptions) {
	e.prod.cursor.Store(&opts)
	e.Invalidate(InvalidateCursor | InvalidateConstBuffer)
}

// SetAntialiasingMode switches the rasterization mode for glyphs drawn from
// now on. Already cached glyphs keep their appearance.
func (e *Engine) SetAntialiasingMode(mode AntialiasMode) {
	e.prod.aa.Store(uint32(mode))
	e.Invalidate(InvalidateConstBuffer)
}

// SetDPI publishes the output scale. Affects cursor line geometry.
func (e *Engine) SetDPI(dpi uint32) {
	if dpi == 0 {
		dpi = 96
	}
	e.prod.dpi.Store(dpi)
	e.Invalidate(InvalidateCursor)
}

// SetTypographyFeatures publishes the OpenType feature table applied to all
// glyph runs shaped from now on.
func (e *Engine) SetTypographyFeatures(features []text.Feature) {
	e.prod.features.Store(&features)
}

// Invalidate ors dirty bits in. Setting an already-set bit is a no-op; the
// render thread clears a bit only after servicing it, so every set is
// eventually serviced exactly once.
func (e *Engine) Invalidate(bits Invalidation) {
	e.prod.invalid.Or(uint32(bits))
}

// Destroy releases all GPU resources. Must be called from the render
// thread; the engine is unusable afterwards.
func (e *Engine) Destroy() {
	if e.rs.cellBuf != nil {
		e.rs.cellBuf.Destroy()
		e.rs.cellBuf = nil
	}
	if e.rs.constBuf != nil {
		e.rs.constBuf.Destroy()
		e.rs.constBuf = nil
	}
	e.rs.scratch.destroy()
	e.rs.atlas.destroy()
}
