package termgrid

// Present renders one frame. It must be called from exactly one render
// thread. The pipeline is: grow the atlas, reserve the scratchpad, drain
// the glyph queue, service the cursor and constant-buffer invalidations,
// upload the cell grid, draw, then wait on the frame-latency primitive and
// present.
//
// Any failure aborts the frame before the backend present call; no partial
// frame is ever shown. Invalidation bits are cleared only after their step
// succeeded, so a failed frame retries the same work.
func (e *Engine) Present() error {
	posX, posY := e.cache.FillCursor()
	cold, err := e.rs.atlas.ensureCapacity(e.dev, posX, posY)
	if err != nil {
		return frameErr("atlas", err)
	}
	if cold {
		// Nothing was copied from a previous texture, so the reserved
		// cursor tile is blank and must be redrawn.
		e.Invalidate(InvalidateCursor)
	}

	mode := AntialiasMode(e.prod.aa.Load())
	regrew, err := e.rs.scratch.reserve(e.dev, e.prod.maxCellCount.Load(), mode)
	if err != nil {
		return frameErr("scratchpad", err)
	}
	if regrew {
		e.Invalidate(InvalidateConstBuffer)
	}

	if err := e.drainGlyphQueue(); err != nil {
		return frameErr("glyph-queue", err)
	}

	// Dirty bits are cleared before servicing and re-set on failure: state
	// published after the clear leaves its bit standing for the next frame,
	// so a concurrent setter costs at most one redundant redo, never a
	// missed update.
	if Invalidation(e.prod.invalid.Load())&InvalidateCursor != 0 {
		e.prod.invalid.And(^uint32(InvalidateCursor))
		if err := e.drawCursor(); err != nil {
			e.Invalidate(InvalidateCursor)
			return frameErr("cursor", err)
		}
	}

	// The constant buffer check runs after the cursor: drawing the cursor
	// can regrow the scratchpad, which re-derives render parameters. The
	// grid snapshot is loaded after the bit clear and shared with the cell
	// upload below, so the constants and the cells agree on the dimensions.
	constDirty := Invalidation(e.prod.invalid.Load())&InvalidateConstBuffer != 0
	if constDirty {
		e.prod.invalid.And(^uint32(InvalidateConstBuffer))
	}
	grid := e.prod.grid.Load()
	if constDirty {
		if err := e.updateConstantBuffer(grid); err != nil {
			e.Invalidate(InvalidateConstBuffer)
			return frameErr("const-buffer", err)
		}
	}

	if grid != nil && len(grid.Cells) > 0 {
		if err := e.uploadCells(grid); err != nil {
			return frameErr("cell-upload", err)
		}

		width, height := e.viewportSize(grid)
		err := e.dev.Draw(DrawParams{
			Cells:          e.rs.cellBuf,
			Constants:      e.rs.constBuf,
			Atlas:          e.rs.atlas.tex,
			ViewportWidth:  width,
			ViewportHeight: height,
		})
		if err != nil {
			return frameErr("draw", err)
		}
	}

	// Wait on the frame-latency primitive before presenting, for every
	// frame including the first, so queued-frame latency stays bounded.
	if err := e.dev.WaitFrame(); err != nil {
		return frameErr("wait-frame", err)
	}
	if err := e.dev.Present(); err != nil {
		return frameErr("present", err)
	}
	return nil
}

// drawCursor renders the cursor shape into scratch tile 0 and copies it to
// the reserved tile at the atlas origin. The cursor tile is the one tile
// that gets replaced in place, so its copy takes the ordered path instead
// of the no-overwrite one.
func (e *Engine) drawCursor() error {
	mode := AntialiasMode(e.prod.aa.Load())
	regrew, err := e.rs.scratch.reserve(e.dev, 1, mode)
	if err != nil {
		return err
	}
	if regrew {
		e.Invalidate(InvalidateConstBuffer)
	}

	e.rs.cursor.dpi = e.prod.dpi.Load()
	e.rs.cursor.draw(e.rs.scratch.img, *e.prod.cursor.Load())

	if err := e.rs.scratch.flush(e.dev, 1); err != nil {
		return err
	}
	return e.rs.scratch.copyTile(e.dev, e.rs.atlas.tex, 0, 0, 0, CopyDefault)
}

// updateConstantBuffer rebuilds and uploads the frame constants.
func (e *Engine) updateConstantBuffer(grid *CellGrid) error {
	mode := AntialiasMode(e.prod.aa.Load())
	useSubpixel := mode == AntialiasSubpixel

	c := constants{
		gammaRatios:      gammaRatios(e.cfg.Gamma),
		enhancedContrast: float32(e.cfg.GrayscaleEnhancedContrast),
		cellW:            e.cfg.CellWidth,
		cellH:            e.cfg.CellHeight,
		underlineTop:     e.cfg.UnderlinePos,
		underlineBottom:  e.cfg.UnderlinePos + e.cfg.LineThickness,
		strikethroughTop: e.cfg.StrikethroughPos,
		strikethroughBot: e.cfg.StrikethroughPos + e.cfg.LineThickness,
		backgroundColor:  e.cfg.BackgroundColor,
		cursorColor:      e.prod.cursor.Load().Color,
		selectionColor:   e.cfg.SelectionColor,
	}
	if useSubpixel {
		c.enhancedContrast = float32(e.cfg.ClearTypeEnhancedContrast)
		c.useSubpixelAA = 1
	}
	if grid != nil {
		c.cellCountX = grid.Cols
		c.viewportW = float32(grid.Cols * e.cfg.CellWidth)
		c.viewportH = float32(grid.Rows * e.cfg.CellHeight)
	}

	if e.rs.constBuf == nil {
		buf, err := e.dev.CreateBuffer(BufferDescriptor{
			Label: "frame-constants",
			Size:  constantsSize,
		})
		if err != nil {
			return err
		}
		e.rs.constBuf = buf
	}

	data, err := e.rs.constBuf.Map()
	if err != nil {
		return err
	}
	c.pack(data)
	e.rs.constBuf.Unmap()
	return nil
}

// uploadCells repacks the grid snapshot into the cell buffer, recreating it
// when the cell count changed.
func (e *Engine) uploadCells(grid *CellGrid) error {
	count := len(grid.Cells)
	if e.rs.cellBuf == nil || e.rs.cellCap != count {
		if e.rs.cellBuf != nil {
			e.rs.cellBuf.Destroy()
			e.rs.cellBuf = nil
		}
		buf, err := e.dev.CreateBuffer(BufferDescriptor{
			Label: "cell-grid",
			Size:  count * CellStride,
		})
		if err != nil {
			return err
		}
		e.rs.cellBuf = buf
		e.rs.cellCap = count
	}

	data, err := e.rs.cellBuf.Map()
	if err != nil {
		return err
	}
	packCells(data, grid.Cells)
	e.rs.cellBuf.Unmap()
	return nil
}

// viewportSize picks the published pixel size, falling back to the grid
// extent when the producer has not set one.
func (e *Engine) viewportSize(grid *CellGrid) (uint32, uint32) {
	packed := e.prod.viewport.Load()
	width, height := uint32(packed>>32), uint32(packed)
	if width == 0 || height == 0 {
		width = grid.Cols * e.cfg.CellWidth
		height = grid.Rows * e.cfg.CellHeight
	}
	return width, height
}
