package termgrid

import (
	"github.com/gogpu/termgrid/text"
)

// CellFlags select the data-driven compositing applied to one cell by the
// fragment stage.
type CellFlags uint32

const (
	// CellColoredGlyph marks a cell whose glyph carries intrinsic color;
	// the shader alpha-blends it instead of applying the foreground color.
	CellColoredGlyph CellFlags = 1 << iota

	// CellCursor composites the cursor tile over the cell.
	CellCursor

	// CellSelected blends the selection color over the cell.
	CellSelected

	// CellUnderline draws an underline across the cell.
	CellUnderline

	// CellUnderlineDouble draws a second underline.
	CellUnderlineDouble

	// CellStrikethrough draws a strikethrough across the cell.
	CellStrikethrough
)

// Cell is the GPU-visible record for one grid position. The consumer packs
// the full grid of cells into the cell buffer every frame.
type Cell struct {
	// GlyphX, GlyphY are the atlas coordinates of the cell's glyph tile.
	GlyphX uint16
	GlyphY uint16

	// Flags select compositing behavior in the fragment stage.
	Flags CellFlags

	// FG and BG are the cell colors as 0xAARRGGBB.
	FG uint32
	BG uint32
}

// CellGrid is one immutable snapshot of the visible grid. The producer
// publishes a new snapshot whenever the grid content changes; the consumer
// reads whichever snapshot is current when a frame starts.
type CellGrid struct {
	Cols  uint32
	Rows  uint32
	Cells []Cell
}

// CursorStyle selects the cursor shape drawn into the reserved cursor tile.
type CursorStyle uint8

const (
	// CursorFullBox fills the whole cell.
	CursorFullBox CursorStyle = iota

	// CursorLegacy fills a bottom bar sized by HeightPercentage.
	CursorLegacy

	// CursorVerticalBar fills a bar of one line width at the left edge.
	CursorVerticalBar

	// CursorEmptyBox strokes the cell outline.
	CursorEmptyBox

	// CursorUnderscore fills a bottom bar of one line width.
	CursorUnderscore

	// CursorDoubleUnderscore fills two bottom bars.
	CursorDoubleUnderscore
)

// CursorOptions is the producer-visible cursor description.
type CursorOptions struct {
	Style CursorStyle

	// HeightPercentage sizes the CursorLegacy bottom bar, 1-100.
	HeightPercentage uint32

	// Color is the cursor color as 0xAARRGGBB.
	Color uint32
}

// Invalidation is the process-wide dirty bitset connecting the producer to
// the consumer. Bits are monotonic: setting an already-set bit is a no-op,
// and the consumer clears a bit only after servicing it, so multiple sets
// before one service collapse into a single redo.
type Invalidation uint32

const (
	// InvalidateCursor requests a cursor tile redraw.
	InvalidateCursor Invalidation = 1 << iota

	// InvalidateConstBuffer requests a constant buffer rebuild.
	InvalidateConstBuffer
)

// AntialiasMode selects the text rasterization mode.
// It aliases the text package's type so producers configure the engine
// without importing the text package directly.
type AntialiasMode = text.Antialias

// Antialias modes re-exported from the text package.
const (
	AntialiasGrayscale = text.AntialiasGrayscale
	AntialiasSubpixel  = text.AntialiasSubpixel
	AntialiasAliased   = text.AntialiasAliased
)
