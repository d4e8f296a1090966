package software

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/termgrid"
)

// frameConstants mirrors the packed constant buffer layout.
type frameConstants struct {
	viewportW float32
	viewportH float32

	gammaRatios      [4]float32
	enhancedContrast float32

	cellCountX uint32
	cellW      uint32
	cellH      uint32

	underlineTop     uint32
	underlineBottom  uint32
	strikethroughTop uint32
	strikethroughBot uint32

	backgroundColor uint32
	cursorColor     uint32
	selectionColor  uint32
	useSubpixelAA   uint32
}

func parseConstants(data []byte) frameConstants {
	le := binary.LittleEndian
	f32 := func(off int) float32 {
		return math.Float32frombits(le.Uint32(data[off:]))
	}
	var c frameConstants
	c.viewportW = f32(8)
	c.viewportH = f32(12)
	for i := range c.gammaRatios {
		c.gammaRatios[i] = f32(16 + i*4)
	}
	c.enhancedContrast = f32(32)
	c.cellCountX = le.Uint32(data[36:])
	c.cellW = le.Uint32(data[40:])
	c.cellH = le.Uint32(data[44:])
	c.underlineTop = le.Uint32(data[48:])
	c.underlineBottom = le.Uint32(data[52:])
	c.strikethroughTop = le.Uint32(data[56:])
	c.strikethroughBot = le.Uint32(data[60:])
	c.backgroundColor = le.Uint32(data[64:])
	c.cursorColor = le.Uint32(data[68:])
	c.selectionColor = le.Uint32(data[72:])
	c.useSubpixelAA = le.Uint32(data[76:])
	return c
}

// Draw implements termgrid.Device. It executes the cell shader on the CPU:
// for every pixel, the covering cell is looked up, its glyph tile sampled
// from the atlas, and the layers composed in order background, selection,
// glyph, line decorations, cursor.
func (d *Device) Draw(params termgrid.DrawParams) error {
	if d.lost {
		return fmt.Errorf("software: draw: %w", termgrid.ErrDeviceLost)
	}
	cellsBuf, ok1 := params.Cells.(*buffer)
	constBuf, ok2 := params.Constants.(*buffer)
	atlas, ok3 := params.Atlas.(*texture)
	if !ok1 || !ok2 || !ok3 {
		return fmt.Errorf("software: draw: foreign resources: %w", termgrid.ErrResourceCreation)
	}

	c := parseConstants(constBuf.data)
	if c.cellW == 0 || c.cellH == 0 || c.cellCountX == 0 {
		return fmt.Errorf("software: draw: constants not initialized: %w", termgrid.ErrResourceCreation)
	}

	w, h := int(params.ViewportWidth), int(params.ViewportHeight)
	if d.framebuffer == nil || d.framebuffer.Rect.Dx() != w || d.framebuffer.Rect.Dy() != h {
		d.framebuffer = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	cellCount := len(cellsBuf.data) / termgrid.CellStride
	rows := cellCount / int(c.cellCountX)

	for y := 0; y < h; y++ {
		cellY := y / int(c.cellH)
		inY := uint32(y % int(c.cellH))
		for x := 0; x < w; x++ {
			cellX := x / int(c.cellW)
			inX := uint32(x % int(c.cellW))

			if cellX >= int(c.cellCountX) || cellY >= rows {
				d.setPixel(x, y, c.backgroundColor)
				continue
			}

			idx := (cellY*int(c.cellCountX) + cellX) * termgrid.CellStride
			cell := termgrid.UnpackCell(cellsBuf.data[idx:])

			color := cell.BG
			if cell.Flags&termgrid.CellSelected != 0 {
				color = blendOver(c.selectionColor, color)
			}

			color = d.applyGlyph(color, &cell, &c, atlas, inX, inY)
			color = applyDecorations(color, &cell, &c, inY)

			if cell.Flags&termgrid.CellCursor != 0 {
				// The cursor tile lives at the atlas origin.
				cov := atlas.pix[atlas.pixOffset(int(inX), int(inY))+3]
				color = mixColor(color, c.cursorColor, cov)
			}

			d.setPixel(x, y, color)
		}
	}
	return nil
}

// applyGlyph samples the cell's atlas tile and blends it over color.
func (d *Device) applyGlyph(color uint32, cell *termgrid.Cell, c *frameConstants, atlas *texture, inX, inY uint32) uint32 {
	tx := int(uint32(cell.GlyphX) + inX)
	ty := int(uint32(cell.GlyphY) + inY)
	if tx >= int(atlas.width) || ty >= int(atlas.height) {
		return color
	}
	off := atlas.pixOffset(tx, ty)
	r, g, b, a := atlas.pix[off], atlas.pix[off+1], atlas.pix[off+2], atlas.pix[off+3]

	if cell.Flags&termgrid.CellColoredGlyph != 0 {
		// Colored glyphs carry their own color; plain alpha blend, no
		// text alpha correction.
		texel := uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
		return blendOver(texel, color)
	}

	// Sub-pixel tiles carry independent per-channel coverage; every other
	// mode carries one coverage in the alpha channel.
	if c.useSubpixelAA == 0 {
		r, g, b = a, a, a
	}

	cr, cg, cb := splitRGB(color)
	fr, fg, fb := splitRGB(cell.FG)
	lum := (0.30*float32(fr) + 0.59*float32(fg) + 0.11*float32(fb)) / 255
	return joinRGB(color,
		mix8(cr, fr, correctedCoverage(r, lum, c)),
		mix8(cg, fg, correctedCoverage(g, lum, c)),
		mix8(cb, fb, correctedCoverage(b, lum, c)),
	)
}

// correctedCoverage runs one text coverage sample through the contrast
// enhancement and the gamma polynomial. The contrast boost scales with
// how dark the foreground is; light text on dark already reads with
// enough contrast and gets none.
func correctedCoverage(cov byte, fgLum float32, c *frameConstants) byte {
	a := float32(cov) / 255
	k := c.enhancedContrast * clampf(4*(0.75-fgLum), 0, 1)
	a = a * (k + 1) / (a*k + 1)
	g := c.gammaRatios
	a = a * (g[0] + a*(g[1]+a*(g[2]+a*g[3])))
	return byte(clampf(a, 0, 1)*255 + 0.5)
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// applyDecorations draws underline, double underline and strikethrough rows
// in the cell foreground color.
func applyDecorations(color uint32, cell *termgrid.Cell, c *frameConstants, inY uint32) uint32 {
	hit := false
	if cell.Flags&termgrid.CellUnderline != 0 {
		hit = inY >= c.underlineTop && inY < c.underlineBottom
	}
	if !hit && cell.Flags&termgrid.CellUnderlineDouble != 0 {
		// The second line sits two thicknesses above the first.
		thickness := c.underlineBottom - c.underlineTop
		if top := c.underlineTop - 2*thickness; c.underlineTop >= 2*thickness {
			hit = inY >= top && inY < top+thickness
		}
	}
	if !hit && cell.Flags&termgrid.CellStrikethrough != 0 {
		hit = inY >= c.strikethroughTop && inY < c.strikethroughBot
	}
	if hit {
		fr, fg, fb := splitRGB(cell.FG)
		return joinRGB(color, fr, fg, fb)
	}
	return color
}

func (d *Device) setPixel(x, y int, color uint32) {
	off := d.framebuffer.PixOffset(x, y)
	r, g, b := splitRGB(color)
	d.framebuffer.Pix[off] = r
	d.framebuffer.Pix[off+1] = g
	d.framebuffer.Pix[off+2] = b
	d.framebuffer.Pix[off+3] = byte(color >> 24)
}

// blendOver alpha-blends src over dst, both 0xAARRGGBB.
func blendOver(src, dst uint32) uint32 {
	a := byte(src >> 24)
	sr, sg, sb := splitRGB(src)
	dr, dg, db := splitRGB(dst)
	return joinRGB(dst, mix8(dr, sr, a), mix8(dg, sg, a), mix8(db, sb, a))
}

// mixColor blends src over dst with explicit coverage.
func mixColor(dst, src uint32, cov byte) uint32 {
	sr, sg, sb := splitRGB(src)
	dr, dg, db := splitRGB(dst)
	return joinRGB(dst, mix8(dr, sr, cov), mix8(dg, sg, cov), mix8(db, sb, cov))
}

func splitRGB(c uint32) (r, g, b byte) {
	return byte(c >> 16), byte(c >> 8), byte(c)
}

// joinRGB replaces the color channels of base, keeping its alpha.
func joinRGB(base uint32, r, g, b byte) uint32 {
	return base&0xff000000 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// mix8 linearly interpolates a toward b by t/255.
func mix8(a, b, t byte) byte {
	return byte((uint32(a)*(255-uint32(t)) + uint32(b)*uint32(t) + 127) / 255)
}
