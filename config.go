package termgrid

import (
	"time"

	"github.com/gogpu/termgrid/glyphcache"
	"github.com/gogpu/termgrid/text"
)

// ScratchVariant selects how rasterized rows travel into the atlas.
type ScratchVariant uint8

const (
	// ScratchBitmap keeps the scratchpad purely on the CPU; tiles reach the
	// atlas through Device.WriteRegion.
	ScratchBitmap ScratchVariant = iota

	// ScratchTexture mirrors the scratchpad into a GPU texture; each
	// rasterized row is uploaded once and tiles reach the atlas through
	// Device.CopyRegion.
	ScratchTexture
)

// GlyphTrace observes one glyph rasterization. Set in Config for performance
// investigation; nil disables tracing with no overhead beyond a nil check.
type GlyphTrace func(key glyphcache.Key, elapsed time.Duration)

// Config configures an Engine. The zero value is not usable; start from
// DefaultConfig and fill in Faces and the cell size.
type Config struct {
	// CellWidth and CellHeight are the pixel dimensions of one grid cell.
	CellWidth  uint32
	CellHeight uint32

	// DPI is the output scale. Default: 96.
	DPI uint32

	// FontSizePx is the rasterization size in pixels. Default: CellHeight
	// scaled by 3/4, matching the usual em-to-cell ratio of terminal fonts.
	FontSizePx float64

	// Faces holds the parsed font variants. Required.
	Faces *text.FaceSet

	// Shaper lays out cell runs. Default: text.NewGoTextShaper().
	Shaper text.Shaper

	// Antialias is the initial rasterization mode.
	Antialias AntialiasMode

	// Cursor is the initial cursor description.
	Cursor CursorOptions

	// Scratch selects the scratchpad variant.
	Scratch ScratchVariant

	// MaxAtlasDim caps the atlas dimensions below the device limit when
	// nonzero. Mainly for tests.
	MaxAtlasDim uint32

	// QueueDepth is the glyph hand-off channel capacity. Producers block
	// when more glyphs than this are pending between two frames.
	// Default: 1024.
	QueueDepth int

	// Gamma is the blending gamma the rasterizer and shader agree on.
	// Default: 1.8.
	Gamma float64

	// GrayscaleEnhancedContrast and ClearTypeEnhancedContrast scale the
	// shader's contrast enhancement per antialiasing mode.
	// Defaults: 1.0 and 0.5.
	GrayscaleEnhancedContrast float64
	ClearTypeEnhancedContrast float64

	// BackgroundColor and SelectionColor as 0xAARRGGBB.
	BackgroundColor uint32
	SelectionColor  uint32

	// UnderlinePos, StrikethroughPos and LineThickness are pixel offsets
	// from the cell top. Zero values are derived from the cell height.
	UnderlinePos     uint32
	StrikethroughPos uint32
	LineThickness    uint32

	// Trace observes glyph rasterization timing. Optional.
	Trace GlyphTrace
}

// DefaultConfig returns a config with the documented defaults applied.
// Faces and the cell size must still be set by the caller.
func DefaultConfig() Config {
	return Config{
		DPI:                       96,
		QueueDepth:                1024,
		Gamma:                     1.8,
		GrayscaleEnhancedContrast: 1.0,
		ClearTypeEnhancedContrast: 0.5,
		BackgroundColor:           0xff000000,
		SelectionColor:            0x7fffffff,
	}
}

// fixup fills derived zero values. Reported errors are configuration
// mistakes, not runtime failures.
func (c *Config) fixup() error {
	if c.CellWidth == 0 || c.CellHeight == 0 {
		return errBadCellSize
	}
	if c.Faces == nil {
		return errNoFaces
	}
	if c.DPI == 0 {
		c.DPI = 96
	}
	if c.FontSizePx == 0 {
		c.FontSizePx = float64(c.CellHeight) * 3 / 4
	}
	if c.Shaper == nil {
		c.Shaper = text.NewGoTextShaper()
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 1024
	}
	if c.Gamma == 0 {
		c.Gamma = 1.8
	}
	if c.GrayscaleEnhancedContrast == 0 {
		c.GrayscaleEnhancedContrast = 1.0
	}
	if c.ClearTypeEnhancedContrast == 0 {
		c.ClearTypeEnhancedContrast = 0.5
	}
	if c.LineThickness == 0 {
		c.LineThickness = max(1, c.CellHeight/16)
	}
	if c.UnderlinePos == 0 {
		c.UnderlinePos = c.CellHeight - 2*c.LineThickness
	}
	if c.StrikethroughPos == 0 {
		c.StrikethroughPos = (c.CellHeight - c.LineThickness) / 2
	}
	if c.Cursor.HeightPercentage == 0 {
		c.Cursor.HeightPercentage = 25
	}
	if c.Cursor.Color == 0 {
		c.Cursor.Color = 0xffffffff
	}
	return nil
}
