package termgrid

import (
	"time"

	"github.com/gogpu/termgrid/glyphcache"
	"github.com/gogpu/termgrid/text"
	"golang.org/x/image/math/fixed"
)

// drainGlyphQueue rasterizes every glyph handed off since the last frame
// and copies its tiles into the atlas. The drained list is dropped only
// after it was processed completely: a mid-list failure keeps the failed
// and remaining items for the next frame, and the frame is aborted.
func (e *Engine) drainGlyphQueue() error {
	for {
		select {
		case item := <-e.glyphs:
			e.rs.pending = append(e.rs.pending, item)
			continue
		default:
		}
		break
	}
	if len(e.rs.pending) == 0 {
		return nil
	}

	for i, item := range e.rs.pending {
		if err := e.drawGlyph(item); err != nil {
			rest := e.rs.pending[i:]
			e.rs.pending = append(e.rs.pending[:0], rest...)
			return err
		}
	}

	Logger().Debug("termgrid: glyph queue drained", "count", len(e.rs.pending))
	e.rs.pending = e.rs.pending[:0]
	return nil
}

// drawGlyph shapes and rasterizes one glyph run into the scratchpad row and
// copies one tile per cell into the reserved atlas slots. Populated tiles
// are never replaced, so the copies need no synchronization barrier.
func (e *Engine) drawGlyph(item queuedGlyph) error {
	var begin time.Time
	if e.cfg.Trace != nil {
		begin = time.Now()
	}

	cells := uint32(max(item.key.CellCount, 1))
	mode := AntialiasMode(e.prod.aa.Load())

	// The hand-off can race the frame's initial reserve; re-reserving here
	// is a no-op when the row is already wide enough.
	if regrew, err := e.rs.scratch.reserve(e.dev, cells, mode); err != nil {
		return err
	} else if regrew {
		e.Invalidate(InvalidateConstBuffer)
	}

	// Colored glyphs are alpha-blended downstream, which requires a usable
	// alpha channel; sub-pixel coverage has none, so they fall back to
	// grayscale.
	colored := item.value.Flags&glyphcache.FlagColored != 0
	if colored && mode == AntialiasSubpixel {
		mode = AntialiasGrayscale
	}
	e.rs.scratch.rast.SetMode(mode)

	src := e.rs.rasterFaces.Resolve(item.key.Bold, item.key.Italic)
	face, err := src.RasterFace(e.cfg.FontSizePx, 72)
	if err != nil {
		return err
	}

	var features []text.Feature
	if f := e.prod.features.Load(); f != nil {
		features = *f
	}

	maxWidth := fixed.I(int(cells * e.cfg.CellWidth))
	run, err := e.rs.shaper.Layout(item.key.Chars, src, e.cfg.FontSizePx, maxWidth, features)
	if err != nil {
		return err
	}

	ascent := face.Metrics().Ascent
	bounds := e.rs.scratch.rowBounds(cells)
	e.rs.scratch.rast.Begin(e.rs.scratch.img, bounds)
	for _, g := range run.Glyphs {
		// Colored glyphs with an embedded bitmap scale into the run box;
		// everything else takes the outline path.
		if colored {
			if img, ok := src.BitmapGlyph(g.Cluster, uint16(e.cfg.FontSizePx)); ok {
				e.rs.scratch.rast.DrawImage(img, bounds)
				continue
			}
		}
		dot := fixed.Point26_6{X: g.X, Y: ascent + g.Y}
		e.rs.scratch.rast.DrawCluster(face, g.Cluster, dot)
	}

	if err := e.rs.scratch.flush(e.dev, cells); err != nil {
		return err
	}
	for i := uint32(0); i < cells; i++ {
		coord := item.value.Coords[i]
		if err := e.rs.scratch.copyTile(e.dev, e.rs.atlas.tex, i, uint32(coord.X), uint32(coord.Y), CopyNoOverwrite); err != nil {
			return err
		}
	}

	if e.cfg.Trace != nil {
		e.cfg.Trace(item.key, time.Since(begin))
	}
	return nil
}
