package termgrid

import (
	"image"
	"math/bits"

	"github.com/gogpu/gputypes"
)

// atlas owns the glyph atlas texture and grows it to keep the fill cursor
// inside. Tile placement itself lives in glyphcache; the atlas only reacts
// to the published fill position.
//
// The atlas fills row-major:
//
//	x →
//	y +--------------+
//	↓ |XXXXXXXXXXXXXX|
//	  |XXXXXXXXXXXXXX|
//	  |XXXXX↖        |
//	  |      |       |
//	  +------|-------+
//
// Each X is an occupied glyph tile and the arrow is the fill cursor. The
// consumed pixel area is the full rows above the cursor plus the partial
// row left of it.
type atlas struct {
	tex    Texture
	width  uint32
	height uint32

	cellW  uint32
	cellH  uint32
	limitX uint32
	limitY uint32
}

// ensureCapacity grows the atlas texture when the fill cursor no longer
// fits. It reports whether the texture was recreated without preserving the
// previous contents, in which case every cached placement is stale and the
// cursor tile must be redrawn.
func (a *atlas) ensureCapacity(dev Device, posX, posY uint32) (cold bool, err error) {
	if posY < a.height && posX < a.width {
		return false, nil
	}

	perCellArea := a.cellW * a.cellH

	currentArea := posY*a.limitX + posX*a.cellH
	// Room for 64 cells in all cases, mainly for the initial allocation.
	minArea := 64 * perCellArea
	newArea := max(minArea, currentArea)

	// Exponential growth so a resize is not immediately followed by
	// another. Rounds newArea up to the next power of two, never down.
	newArea = uint32(1) << bits.Len32(newArea)

	pixelPerRow := a.limitX * a.cellH
	// newArea may span N full rows and just barely start another; round up
	// to the next multiple of the cell height.
	wantedHeight := (newArea + pixelPerRow - 1) / pixelPerRow * a.cellH
	// Multiple rows always span the full width limit. A single row may not
	// have reached it yet.
	wantedWidth := a.limitX
	if wantedHeight == a.cellH {
		wantedWidth = newArea / perCellArea * a.cellW
	}

	height := min(a.limitY, wantedHeight)
	width := min(a.limitX, wantedWidth)

	tex, err := dev.CreateTexture(TextureDescriptor{
		Label:  "glyph-atlas",
		Width:  width,
		Height: height,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Usage:  TextureUsageCopySrc | TextureUsageCopyDst | TextureUsageBinding,
	})
	if err != nil {
		return false, err
	}

	// An existing texture's glyphs are copied over so nothing needs
	// re-rendering. The new texture has no readers in flight.
	preserve := a.tex != nil
	if preserve {
		r := image.Rect(0, 0, int(a.width), int(a.height))
		if err := dev.CopyRegion(tex, 0, 0, a.tex, r, CopyNoOverwrite); err != nil {
			tex.Destroy()
			return false, err
		}
		a.tex.Destroy()
	}

	Logger().Debug("termgrid: atlas resized",
		"width", width, "height", height, "preserved", preserve)

	a.tex = tex
	a.width = width
	a.height = height
	return !preserve, nil
}

// destroy releases the atlas texture.
func (a *atlas) destroy() {
	if a.tex != nil {
		a.tex.Destroy()
		a.tex = nil
	}
	a.width = 0
	a.height = 0
}
