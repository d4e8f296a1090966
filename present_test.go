package termgrid

import (
	"encoding/binary"
	"errors"
	"image"
	"math"
	"testing"
	"time"

	"github.com/gogpu/termgrid/glyphcache"
)

// TestPresentFirstFrame drives a full first frame: the atlas and cursor come
// up cold, one glyph is rasterized into its reserved tile, and the backend
// calls land in draw, wait, present order.
func TestPresentFirstFrame(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)

	v := e.MapGlyph(glyphcache.Key{Chars: "A", CellCount: 1}, false)
	e.SetCellGrid(&CellGrid{
		Cols: 2, Rows: 1,
		Cells: []Cell{
			{GlyphX: v.Coords[0].X, GlyphY: v.Coords[0].Y, FG: 0xffffffff, BG: 0xff000000},
			{BG: 0xff000000},
		},
	})

	if err := e.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}

	if dev.presents != 1 || dev.waits != 1 || dev.draws != 1 {
		t.Errorf("presents=%d waits=%d draws=%d, want 1 each", dev.presents, dev.waits, dev.draws)
	}
	draw, wait, present := dev.opIndex("draw"), dev.opIndex("wait"), dev.opIndex("present")
	if !(draw < wait && wait < present) {
		t.Errorf("frame order draw=%d wait=%d present=%d, want draw < wait < present", draw, wait, present)
	}

	// The glyph tile carries coverage and the cursor tile at the origin was
	// drawn with the default full-box style.
	atlas := dev.lastDraw.Atlas.(*fakeTexture)
	tile := image.Rect(int(v.Coords[0].X), int(v.Coords[0].Y), int(v.Coords[0].X)+8, int(v.Coords[0].Y)+16)
	if !atlas.anyAlpha(tile) {
		t.Error("glyph tile empty after Present")
	}
	if !atlas.anyAlpha(image.Rect(0, 0, 8, 16)) {
		t.Error("cursor tile empty after Present")
	}

	if len(e.rs.pending) != 0 {
		t.Errorf("%d glyphs still pending after Present", len(e.rs.pending))
	}
	if got := Invalidation(e.prod.invalid.Load()); got != 0 {
		t.Errorf("invalidation bits %#x not cleared", got)
	}
}

// TestPresentEmptyGrid verifies a frame without a grid skips the draw but
// still waits and presents.
func TestPresentEmptyGrid(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)

	if err := e.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if dev.draws != 0 {
		t.Errorf("draws = %d, want 0 without a grid", dev.draws)
	}
	if dev.presents != 1 {
		t.Errorf("presents = %d, want 1", dev.presents)
	}
}

// TestPresentViewportFallback verifies the draw viewport falls back to the
// grid extent until a pixel size is published.
func TestPresentViewportFallback(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)

	e.SetCellGrid(&CellGrid{Cols: 4, Rows: 2, Cells: make([]Cell, 8)})
	if err := e.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if dev.lastDraw.ViewportWidth != 32 || dev.lastDraw.ViewportHeight != 32 {
		t.Errorf("fallback viewport = %dx%d, want 32x32",
			dev.lastDraw.ViewportWidth, dev.lastDraw.ViewportHeight)
	}

	e.SetViewportPixelSize(123, 45)
	if err := e.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if dev.lastDraw.ViewportWidth != 123 || dev.lastDraw.ViewportHeight != 45 {
		t.Errorf("viewport = %dx%d, want 123x45",
			dev.lastDraw.ViewportWidth, dev.lastDraw.ViewportHeight)
	}
}

// TestPresentGlyphFailureRetries verifies a mid-queue rasterization failure
// aborts the frame, keeps the unprocessed glyphs pending, and the next frame
// finishes the work.
func TestPresentGlyphFailureRetries(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)

	e.MapGlyph(glyphcache.Key{Chars: "A", CellCount: 1}, false)
	e.MapGlyph(glyphcache.Key{Chars: "B", CellCount: 1}, false)

	dev.failWrites = 1
	err := e.Present()
	if err == nil {
		t.Fatal("Present succeeded with injected write fault")
	}
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Op != "glyph-queue" {
		t.Fatalf("err = %v, want FrameError with op glyph-queue", err)
	}
	if !errors.Is(err, ErrResourceCreation) {
		t.Errorf("err = %v, want ErrResourceCreation in the chain", err)
	}
	if dev.presents != 0 {
		t.Error("frame presented despite the failure")
	}
	if got := len(e.rs.pending); got != 2 {
		t.Errorf("%d glyphs pending after failure, want 2", got)
	}

	if err := e.Present(); err != nil {
		t.Fatalf("retry Present: %v", err)
	}
	if len(e.rs.pending) != 0 {
		t.Error("glyphs still pending after successful retry")
	}
	if dev.presents != 1 {
		t.Errorf("presents = %d after retry, want 1", dev.presents)
	}
}

// TestPresentConstBufferRetries verifies a failed constant buffer map keeps
// the invalidation bit set so the next frame redoes the upload.
func TestPresentConstBufferRetries(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)

	dev.failMaps = 1
	err := e.Present()
	if err == nil {
		t.Fatal("Present succeeded with injected map fault")
	}
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Op != "const-buffer" {
		t.Fatalf("err = %v, want FrameError with op const-buffer", err)
	}
	if !errors.Is(err, ErrMapFailure) {
		t.Errorf("err = %v, want ErrMapFailure in the chain", err)
	}
	if Invalidation(e.prod.invalid.Load())&InvalidateConstBuffer == 0 {
		t.Error("constant buffer bit cleared despite the failure")
	}
	// The cursor step succeeded before the failure; its bit is gone.
	if Invalidation(e.prod.invalid.Load())&InvalidateCursor != 0 {
		t.Error("cursor bit still set after a successful cursor draw")
	}

	if err := e.Present(); err != nil {
		t.Fatalf("retry Present: %v", err)
	}
	if got := Invalidation(e.prod.invalid.Load()); got != 0 {
		t.Errorf("invalidation bits %#x after retry, want 0", got)
	}
}

// TestPresentAtlasFailure verifies a failed atlas allocation surfaces as the
// atlas stage and nothing is presented.
func TestPresentAtlasFailure(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)

	dev.failCreates = 1
	err := e.Present()
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Op != "atlas" {
		t.Fatalf("err = %v, want FrameError with op atlas", err)
	}
	if dev.presents != 0 {
		t.Error("frame presented despite the failure")
	}
}

// TestPresentCursorRedraw verifies a cursor change is serviced on the next
// frame and replaces the origin tile.
func TestPresentCursorRedraw(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)

	if err := e.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	atlas := e.rs.atlas.tex.(*fakeTexture)
	// The default style is a full box; (4,8) is covered.
	if atlas.pix[atlas.pixOffset(4, 8)+3] == 0 {
		t.Fatal("cursor tile not drawn on the first frame")
	}

	e.SetCursorOptions(CursorOptions{Style: CursorVerticalBar, Color: 0xffffffff})
	if err := e.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if atlas.pix[atlas.pixOffset(4, 8)+3] != 0 {
		t.Error("cursor tile interior still covered after switching to a bar")
	}
	if atlas.pix[atlas.pixOffset(0, 8)+3] == 0 {
		t.Error("cursor bar column not covered")
	}
}

// constCellCountX reads the packed column count out of the engine's
// constant buffer.
func constCellCountX(t *testing.T, e *Engine) uint32 {
	t.Helper()
	buf, ok := e.rs.constBuf.(*fakeBuffer)
	if !ok {
		t.Fatal("no constant buffer after Present")
	}
	return binary.LittleEndian.Uint32(buf.data[36:])
}

// TestPresentGridPublishedAfterFirstFrame verifies a grid published after an
// empty first frame rebuilds the constants with its dimensions instead of
// drawing with the zero column count the empty frame baked in.
func TestPresentGridPublishedAfterFirstFrame(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)

	if err := e.Present(); err != nil {
		t.Fatalf("Present before grid: %v", err)
	}
	if dev.draws != 0 {
		t.Fatalf("draws = %d before any grid, want 0", dev.draws)
	}

	e.SetCellGrid(&CellGrid{Cols: 2, Rows: 1, Cells: make([]Cell, 2)})
	if err := e.Present(); err != nil {
		t.Fatalf("Present after grid published: %v", err)
	}
	if dev.draws != 1 {
		t.Errorf("draws = %d, want 1", dev.draws)
	}
	if got := constCellCountX(t, e); got != 2 {
		t.Errorf("constants cellCountX = %d, want 2", got)
	}
}

// TestPresentGridDimsChangeRebuildsConstants verifies a grid snapshot with
// new dimensions refreshes the column count and the fallback viewport even
// without a viewport call, so cells route to the right columns.
func TestPresentGridDimsChangeRebuildsConstants(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)

	e.SetCellGrid(&CellGrid{Cols: 2, Rows: 1, Cells: make([]Cell, 2)})
	if err := e.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if got := constCellCountX(t, e); got != 2 {
		t.Fatalf("constants cellCountX = %d, want 2", got)
	}

	e.SetCellGrid(&CellGrid{Cols: 4, Rows: 2, Cells: make([]Cell, 8)})
	if err := e.Present(); err != nil {
		t.Fatalf("Present after resize: %v", err)
	}
	if got := constCellCountX(t, e); got != 4 {
		t.Errorf("constants cellCountX = %d after resize, want 4", got)
	}

	buf := e.rs.constBuf.(*fakeBuffer)
	w := math.Float32frombits(binary.LittleEndian.Uint32(buf.data[8:]))
	h := math.Float32frombits(binary.LittleEndian.Uint32(buf.data[12:]))
	if w != 32 || h != 32 {
		t.Errorf("fallback viewport = %gx%g, want 32x32", w, h)
	}

	// Republishing the same dimensions leaves the constants alone.
	e.SetCellGrid(&CellGrid{Cols: 4, Rows: 2, Cells: make([]Cell, 8)})
	if got := Invalidation(e.prod.invalid.Load()) & InvalidateConstBuffer; got != 0 {
		t.Error("same-size grid snapshot marked the constant buffer")
	}
}

// TestGlyphRasterizedOnce verifies a key mapped twice is rasterized and
// copied into the atlas exactly once.
func TestGlyphRasterizedOnce(t *testing.T) {
	dev := newFakeDevice()
	var traces int
	cfg := DefaultConfig()
	cfg.CellWidth = 8
	cfg.CellHeight = 16
	cfg.Faces = testFaceSet(t)
	cfg.Trace = func(glyphcache.Key, time.Duration) { traces++ }
	e, err := New(dev, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Destroy()

	key := glyphcache.Key{Chars: "A", CellCount: 1}
	v := e.MapGlyph(key, false)
	if err := e.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if got := e.MapGlyph(key, false); got != v {
		t.Fatal("remapped key returned a different placement")
	}
	if err := e.Present(); err != nil {
		t.Fatalf("second Present: %v", err)
	}

	if traces != 1 {
		t.Errorf("glyph rasterized %d times, want 1", traces)
	}
	tileOp := "write:8x16@8,0" // the first reserved tile after the cursor
	copies := 0
	for _, op := range dev.ops {
		if op == tileOp {
			copies++
		}
	}
	if copies != 1 {
		t.Errorf("glyph tile copied %d times, want 1", copies)
	}
}

// TestPresentColoredGlyphSubpixelGrayscale verifies a colored key queued
// under sub-pixel antialiasing is rasterized grayscale: its tile never
// carries per-channel coverage, so downstream alpha blending stays valid.
func TestPresentColoredGlyphSubpixelGrayscale(t *testing.T) {
	dev := newFakeDevice()
	e := newTestEngine(t, dev)
	e.SetAntialiasingMode(AntialiasSubpixel)

	v := e.MapGlyph(glyphcache.Key{Chars: "A", CellCount: 1}, true)
	if err := e.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if v.Flags&glyphcache.FlagColored == 0 {
		t.Fatal("colored flag not recorded")
	}

	atlas := e.rs.atlas.tex.(*fakeTexture)
	x0, y0 := int(v.Coords[0].X), int(v.Coords[0].Y)
	covered := false
	for y := y0; y < y0+16; y++ {
		for x := x0; x < x0+8; x++ {
			off := atlas.pixOffset(x, y)
			r, g, b, a := atlas.pix[off], atlas.pix[off+1], atlas.pix[off+2], atlas.pix[off+3]
			if r != g || g != b || b != a {
				t.Fatalf("tile texel (%d,%d) = %d,%d,%d,%d, want equal channels", x, y, r, g, b, a)
			}
			if a != 0 {
				covered = true
			}
		}
	}
	if !covered {
		t.Error("colored glyph tile has no coverage")
	}
}
