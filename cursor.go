package termgrid

import (
	"image"
	"math"
)

// cursorRenderer draws the cursor shape into a scratchpad tile. The shape is
// drawn white; the fragment stage tints it with the cursor color from the
// constant buffer when a cell carries the cursor flag.
//
// Geometry is computed in DIPs so the cursor stays crisp at fractional
// scales, then mapped to pixels at the configured DPI.
type cursorRenderer struct {
	cellW uint32
	cellH uint32
	dpi   uint32
}

// dipRect is an axis-aligned rectangle in DIPs.
type dipRect struct {
	left, top, right, bottom float64
}

// lineWidth returns the cursor line width in DIPs. The width is chosen so
// the drawn line covers a whole number of pixels at the current scale: at
// 150 percent it is 1.333 DIPs, which lands on exactly 2 pixels.
func (c *cursorRenderer) lineWidth() float64 {
	return math.Max(1, float64((c.dpi+48)/96*96)/float64(c.dpi))
}

// shape returns the cursor rectangle in DIPs plus whether it is stroked
// rather than filled.
func (c *cursorRenderer) shape(opts CursorOptions) (rect dipRect, stroked bool) {
	cellW := float64(c.cellW) * 96 / float64(c.dpi)
	cellH := float64(c.cellH) * 96 / float64(c.dpi)
	lw := c.lineWidth()

	rect = dipRect{right: cellW, bottom: cellH}

	switch opts.Style {
	case CursorLegacy:
		rect.top = cellH * float64(100-opts.HeightPercentage) / 100
	case CursorVerticalBar:
		rect.right = lw
	case CursorEmptyBox:
		// Stroked lines are centered on their coordinates, extending half
		// the width to each side. Inset by half so a 2px line at 200 percent
		// scale stays inside the cell.
		half := lw / 2
		rect.left = half
		rect.top = half
		rect.right -= half
		rect.bottom -= half
		stroked = true
	case CursorUnderscore, CursorDoubleUnderscore:
		rect.top = cellH - lw
	}
	return rect, stroked
}

// draw renders the cursor shape into tile 0 of the scratch image. Every
// pixel of the tile is written.
func (c *cursorRenderer) draw(img *image.RGBA, opts CursorOptions) {
	tile := image.Rect(0, 0, int(c.cellW), int(c.cellH))
	clearRGBATile(img, tile)

	rect, stroked := c.shape(opts)
	lw := c.lineWidth()

	if stroked {
		c.strokeRect(img, rect, lw)
		return
	}

	c.fillRect(img, rect)
	if opts.Style == CursorDoubleUnderscore {
		rect.top -= 2
		rect.bottom -= 2
		c.fillRect(img, rect)
	}
}

// fillRect fills a DIP rectangle with white, rounding edges to pixels.
func (c *cursorRenderer) fillRect(img *image.RGBA, r dipRect) {
	scale := float64(c.dpi) / 96
	x0 := int(math.Round(r.left * scale))
	y0 := int(math.Round(r.top * scale))
	x1 := int(math.Round(r.right * scale))
	y1 := int(math.Round(r.bottom * scale))

	bounds := image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, int(c.cellW), int(c.cellH)))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		off := img.PixOffset(bounds.Min.X, y)
		row := img.Pix[off : off+bounds.Dx()*4]
		for i := range row {
			row[i] = 0xff
		}
	}
}

// strokeRect draws a rectangle outline of width lw DIPs centered on the
// rectangle edges.
func (c *cursorRenderer) strokeRect(img *image.RGBA, r dipRect, lw float64) {
	half := lw / 2
	outer := dipRect{left: r.left - half, top: r.top - half, right: r.right + half, bottom: r.bottom + half}
	inner := dipRect{left: r.left + half, top: r.top + half, right: r.right - half, bottom: r.bottom - half}

	// Four bars: top, bottom, left, right.
	c.fillRect(img, dipRect{left: outer.left, top: outer.top, right: outer.right, bottom: inner.top})
	c.fillRect(img, dipRect{left: outer.left, top: inner.bottom, right: outer.right, bottom: outer.bottom})
	c.fillRect(img, dipRect{left: outer.left, top: inner.top, right: inner.left, bottom: inner.bottom})
	c.fillRect(img, dipRect{left: inner.right, top: inner.top, right: outer.right, bottom: inner.bottom})
}

// clearRGBATile zeroes a rectangle of img.
func clearRGBATile(img *image.RGBA, bounds image.Rectangle) {
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		off := img.PixOffset(bounds.Min.X, y)
		row := img.Pix[off : off+bounds.Dx()*4]
		for i := range row {
			row[i] = 0
		}
	}
}
