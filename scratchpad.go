package termgrid

import (
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/termgrid/text"
)

// scratchpad is the one-row staging surface glyph runs are rasterized into
// before their tiles are copied to the atlas. It is a single row of cells,
// wide enough for the widest run encountered so far, and grows like a
// vector: capacity only ever increases.
//
// Two variants exist. The bitmap variant stays on the CPU and tiles reach
// the atlas through Device.WriteRegion. The texture variant mirrors the
// rasterized row into a GPU texture once per glyph so tiles move with
// texture-to-texture copies instead of repeated CPU uploads.
type scratchpad struct {
	variant ScratchVariant
	cellW   uint32
	cellH   uint32

	// capCells is the current width in cells. Zero until the first reserve.
	capCells uint32

	img  *image.RGBA
	tex  Texture
	rast *text.Rasterizer
}

// reserve guarantees capacity for minCells cells, recreating the surface and
// its drawing state when it grows. It reports whether a regrow happened;
// regrowing re-derives render parameters, so the caller must rebuild the
// constant buffer.
func (s *scratchpad) reserve(dev Device, minCells uint32, mode AntialiasMode) (regrew bool, err error) {
	if minCells <= s.capCells {
		return false, nil
	}

	// Greater of 2, the requested width and 1.5x the current capacity.
	newWidth := max(2, minCells, s.capCells+s.capCells>>1)

	s.img = image.NewRGBA(image.Rect(0, 0, int(s.cellW*newWidth), int(s.cellH)))

	if s.variant == ScratchTexture {
		if s.tex != nil {
			s.tex.Destroy()
			s.tex = nil
		}
		tex, err := dev.CreateTexture(TextureDescriptor{
			Label:  "glyph-scratchpad",
			Width:  s.cellW * newWidth,
			Height: s.cellH,
			Format: gputypes.TextureFormatRGBA8Unorm,
			Usage:  TextureUsageCopySrc | TextureUsageCopyDst,
		})
		if err != nil {
			return false, err
		}
		s.tex = tex
	}

	// Drawing state does not survive a regrow; the rasterizer is recreated
	// with the current mode.
	s.rast = text.NewRasterizer(mode)
	s.capCells = newWidth

	Logger().Debug("termgrid: scratchpad resized", "cells", newWidth)
	return true, nil
}

// rowBounds returns the pixel rectangle of the first cells cells of the row.
func (s *scratchpad) rowBounds(cells uint32) image.Rectangle {
	return image.Rect(0, 0, int(s.cellW*cells), int(s.cellH))
}

// tileBounds returns the pixel rectangle of the index-th cell of the row.
func (s *scratchpad) tileBounds(index uint32) image.Rectangle {
	x := int(index * s.cellW)
	return image.Rect(x, 0, x+int(s.cellW), int(s.cellH))
}

// flush makes the first cells cells of the rasterized row visible to
// texture-to-texture copies. A no-op for the bitmap variant.
func (s *scratchpad) flush(dev Device, cells uint32) error {
	if s.variant != ScratchTexture {
		return nil
	}
	r := s.rowBounds(cells)
	off := s.img.PixOffset(0, 0)
	return dev.WriteRegion(s.tex, 0, 0, s.img.Pix[off:], s.img.Stride, r, CopyDefault)
}

// copyTile copies the index-th cell of the row into the atlas at (dstX,
// dstY). The texture variant requires a prior flush covering the tile.
func (s *scratchpad) copyTile(dev Device, atlasTex Texture, index uint32, dstX, dstY uint32, hint CopyHint) error {
	r := s.tileBounds(index)
	if s.variant == ScratchTexture {
		return dev.CopyRegion(atlasTex, dstX, dstY, s.tex, r, hint)
	}
	off := s.img.PixOffset(r.Min.X, r.Min.Y)
	return dev.WriteRegion(atlasTex, dstX, dstY, s.img.Pix[off:], s.img.Stride, r, hint)
}

// destroy releases the GPU half of the scratchpad, if any.
func (s *scratchpad) destroy() {
	if s.tex != nil {
		s.tex.Destroy()
		s.tex = nil
	}
}
