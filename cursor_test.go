package termgrid

import (
	"image"
	"math"
	"testing"
)

func newCursorTile() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, 8, 16))
}

func pixelOn(img *image.RGBA, x, y int) bool {
	return img.Pix[img.PixOffset(x, y)+3] == 0xff
}

// TestCursorLineWidth verifies the DIP line width lands on whole pixels at
// common scales.
func TestCursorLineWidth(t *testing.T) {
	tests := []struct {
		dpi  uint32
		want float64
	}{
		{96, 1},          // 100%: 1 DIP = 1px
		{144, 4.0 / 3.0}, // 150%: 1.333 DIP = 2px
		{192, 1},         // 200%: 1 DIP = 2px
		{120, 1},         // 125%: clamped to the 1 DIP minimum
	}
	for _, tt := range tests {
		c := cursorRenderer{cellW: 8, cellH: 16, dpi: tt.dpi}
		if got := c.lineWidth(); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("lineWidth at dpi %d = %v, want %v", tt.dpi, got, tt.want)
		}
	}
}

// TestCursorFullBox verifies the default style fills the whole tile.
func TestCursorFullBox(t *testing.T) {
	c := cursorRenderer{cellW: 8, cellH: 16, dpi: 96}
	img := newCursorTile()
	c.draw(img, CursorOptions{Style: CursorFullBox, HeightPercentage: 25})

	for y := 0; y < 16; y++ {
		for x := 0; x < 8; x++ {
			if !pixelOn(img, x, y) {
				t.Fatalf("full box: pixel (%d,%d) not set", x, y)
			}
		}
	}
}

// TestCursorLegacy verifies the legacy style fills the bottom quarter at the
// default height percentage.
func TestCursorLegacy(t *testing.T) {
	c := cursorRenderer{cellW: 8, cellH: 16, dpi: 96}
	img := newCursorTile()
	c.draw(img, CursorOptions{Style: CursorLegacy, HeightPercentage: 25})

	if pixelOn(img, 4, 11) {
		t.Error("legacy: pixel above the cursor block is set")
	}
	for y := 12; y < 16; y++ {
		if !pixelOn(img, 4, y) {
			t.Errorf("legacy: row %d not filled", y)
		}
	}
}

// TestCursorVerticalBar verifies only the leftmost column is filled.
func TestCursorVerticalBar(t *testing.T) {
	c := cursorRenderer{cellW: 8, cellH: 16, dpi: 96}
	img := newCursorTile()
	c.draw(img, CursorOptions{Style: CursorVerticalBar})

	for y := 0; y < 16; y++ {
		if !pixelOn(img, 0, y) {
			t.Errorf("vertical bar: pixel (0,%d) not set", y)
		}
		if pixelOn(img, 1, y) {
			t.Errorf("vertical bar: pixel (1,%d) set", y)
		}
	}
}

// TestCursorUnderscore verifies the single and double underscore rows.
func TestCursorUnderscore(t *testing.T) {
	c := cursorRenderer{cellW: 8, cellH: 16, dpi: 96}

	img := newCursorTile()
	c.draw(img, CursorOptions{Style: CursorUnderscore})
	if !pixelOn(img, 4, 15) {
		t.Error("underscore: bottom row not set")
	}
	if pixelOn(img, 4, 13) {
		t.Error("underscore: row 13 set")
	}

	c.draw(img, CursorOptions{Style: CursorDoubleUnderscore})
	if !pixelOn(img, 4, 15) || !pixelOn(img, 4, 13) {
		t.Error("double underscore: rows 15 and 13 not both set")
	}
	if pixelOn(img, 4, 14) {
		t.Error("double underscore: gap row 14 set")
	}
}

// TestCursorEmptyBox verifies the stroked outline leaves the interior clear.
func TestCursorEmptyBox(t *testing.T) {
	c := cursorRenderer{cellW: 8, cellH: 16, dpi: 96}
	img := newCursorTile()
	c.draw(img, CursorOptions{Style: CursorEmptyBox})

	for _, p := range []image.Point{{0, 0}, {7, 0}, {0, 15}, {7, 15}, {0, 8}, {7, 8}, {4, 0}, {4, 15}} {
		if !pixelOn(img, p.X, p.Y) {
			t.Errorf("empty box: border pixel (%d,%d) not set", p.X, p.Y)
		}
	}
	if pixelOn(img, 4, 8) {
		t.Error("empty box: interior pixel set")
	}
}

// TestCursorDrawClearsTile verifies a redraw does not leave pixels of the
// previous shape behind.
func TestCursorDrawClearsTile(t *testing.T) {
	c := cursorRenderer{cellW: 8, cellH: 16, dpi: 96}
	img := newCursorTile()

	c.draw(img, CursorOptions{Style: CursorFullBox})
	c.draw(img, CursorOptions{Style: CursorVerticalBar})
	if pixelOn(img, 4, 8) {
		t.Error("redraw: stale pixel from previous shape")
	}
}
