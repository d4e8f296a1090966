package text

import (
	"golang.org/x/image/math/fixed"
)

// Antialias selects the rasterization mode for glyph runs.
type Antialias uint8

const (
	// AntialiasGrayscale rasterizes with a single alpha coverage channel.
	// This is the only mode permitted for colored glyphs: downstream
	// compositing alpha-blends them, and sub-pixel rasterization cannot
	// retain a usable alpha channel.
	AntialiasGrayscale Antialias = iota

	// AntialiasSubpixel rasterizes with per-channel horizontal coverage.
	AntialiasSubpixel

	// AntialiasAliased rasterizes with hard thresholded coverage.
	AntialiasAliased
)

// String returns the mode name.
func (a Antialias) String() string {
	switch a {
	case AntialiasGrayscale:
		return "grayscale"
	case AntialiasSubpixel:
		return "subpixel"
	case AntialiasAliased:
		return "aliased"
	default:
		return "unknown"
	}
}

// Feature is one OpenType typography feature applied to a whole run,
// e.g. {"calt", 1} or {"liga", 0}.
type Feature struct {
	// Tag is the four-character OpenType feature tag.
	Tag string

	// Value is the feature argument; 1 enables, 0 disables.
	Value uint32
}

// ShapedGlyph is one positioned glyph of a shaped run.
type ShapedGlyph struct {
	// Cluster is the character sequence this glyph renders.
	Cluster string

	// X, Y is the pen position relative to the run origin (baseline at
	// the left edge of the run).
	X fixed.Int26_6
	Y fixed.Int26_6
}

// ShapedRun is the output of shaping one cell run.
type ShapedRun struct {
	Glyphs []ShapedGlyph

	// Advance is the total horizontal advance of the run.
	Advance fixed.Int26_6
}

// Shaper converts a character sequence into positioned glyphs.
//
// maxWidth bounds the run: shaping stops placing glyphs once the pen
// crosses it, matching the fixed cell span the run was measured for.
// Implementations are safe for concurrent use.
type Shaper interface {
	Layout(s string, src *Source, sizePx float64, maxWidth fixed.Int26_6, features []Feature) (*ShapedRun, error)
}
