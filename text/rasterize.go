package text

import (
	"image"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Rasterizer converts shaped clusters into coverage tiles. Glyphs are drawn
// white on transparent so the compositor can tint them with the cell
// foreground color; the tile's alpha channel carries the coverage.
//
// Usage is Begin once per run, then DrawCluster once per shaped glyph.
// Overlapping clusters union their coverage.
//
// A Rasterizer is not safe for concurrent use. Each render thread owns one.
type Rasterizer struct {
	mode Antialias

	dst    *image.RGBA
	bounds image.Rectangle

	// mask is reused between DrawCluster calls and regrown as needed.
	mask *image.Gray
}

// NewRasterizer creates a rasterizer with the given antialiasing mode.
func NewRasterizer(mode Antialias) *Rasterizer {
	return &Rasterizer{mode: mode}
}

// SetMode changes the antialiasing mode for subsequent runs.
func (rz *Rasterizer) SetMode(mode Antialias) { rz.mode = mode }

// Mode returns the current antialiasing mode.
func (rz *Rasterizer) Mode() Antialias { return rz.mode }

// Begin starts a run: the bounds of dst are cleared and subsequent
// DrawCluster calls composite into them.
func (rz *Rasterizer) Begin(dst *image.RGBA, bounds image.Rectangle) {
	rz.dst = dst
	rz.bounds = bounds
	clearRGBA(dst, bounds)
}

// DrawCluster renders one cluster at the baseline origin dot, compositing
// its coverage into the current run.
func (rz *Rasterizer) DrawCluster(face font.Face, cluster string, dot fixed.Point26_6) {
	if cluster == "" || face == nil || rz.dst == nil {
		return
	}

	switch rz.mode {
	case AntialiasSubpixel:
		// Three passes at third-pixel offsets, packed into the R, G and B
		// channels for an RGB-ordered display.
		const third = fixed.Int26_6(64 / 3)
		rz.coverage(face, cluster, dot, -third)
		rz.composite(0)
		rz.coverage(face, cluster, dot, 0)
		rz.composite(1)
		rz.coverage(face, cluster, dot, third)
		rz.composite(2)
		rz.fixSubpixelAlpha()
	case AntialiasAliased:
		rz.coverage(face, cluster, dot, 0)
		rz.thresholdMask()
		rz.compositeAll()
	default:
		rz.coverage(face, cluster, dot, 0)
		rz.compositeAll()
	}
}

// DrawImage scales src into box with Catmull-Rom interpolation and
// composites it over the run, preserving the source aspect ratio and
// centering the result. Color bitmap glyphs go through here; they carry
// their own colors instead of coverage, so the antialiasing mode does
// not apply.
func (rz *Rasterizer) DrawImage(src image.Image, box image.Rectangle) {
	if src == nil || rz.dst == nil {
		return
	}
	sb := src.Bounds()
	if sb.Empty() || box.Empty() {
		return
	}

	w, h := box.Dx(), box.Dy()
	if sw, sh := sb.Dx(), sb.Dy(); sw*h > sh*w {
		h = sh * w / sw
	} else {
		w = sw * h / sh
	}
	dst := image.Rect(0, 0, w, h).
		Add(box.Min).
		Add(image.Pt((box.Dx()-w)/2, (box.Dy()-h)/2))

	xdraw.CatmullRom.Scale(rz.dst, dst, src, sb, xdraw.Over, nil)
}

// coverage draws cluster white-on-black into the shared mask.
func (rz *Rasterizer) coverage(face font.Face, cluster string, dot fixed.Point26_6, xOffset fixed.Int26_6) {
	if rz.mask == nil || !rz.bounds.In(rz.mask.Rect) {
		rz.mask = image.NewGray(rz.bounds)
	} else {
		clearGray(rz.mask, rz.bounds)
	}

	d := &font.Drawer{
		Dst:  rz.mask,
		Src:  image.White,
		Face: face,
		Dot:  fixed.Point26_6{X: dot.X + xOffset, Y: dot.Y},
	}
	d.DrawString(cluster)
}

// composite unions the mask into one channel of the destination.
func (rz *Rasterizer) composite(channel int) {
	for y := rz.bounds.Min.Y; y < rz.bounds.Max.Y; y++ {
		mOff := rz.mask.PixOffset(rz.bounds.Min.X, y)
		dOff := rz.dst.PixOffset(rz.bounds.Min.X, y)
		for x := 0; x < rz.bounds.Dx(); x++ {
			c := rz.mask.Pix[mOff+x]
			p := dOff + x*4 + channel
			if c > rz.dst.Pix[p] {
				rz.dst.Pix[p] = c
			}
		}
	}
}

// compositeAll unions the mask into all four channels.
func (rz *Rasterizer) compositeAll() {
	for y := rz.bounds.Min.Y; y < rz.bounds.Max.Y; y++ {
		mOff := rz.mask.PixOffset(rz.bounds.Min.X, y)
		dOff := rz.dst.PixOffset(rz.bounds.Min.X, y)
		for x := 0; x < rz.bounds.Dx(); x++ {
			c := rz.mask.Pix[mOff+x]
			if c == 0 {
				continue
			}
			p := dOff + x*4
			for i := 0; i < 4; i++ {
				if c > rz.dst.Pix[p+i] {
					rz.dst.Pix[p+i] = c
				}
			}
		}
	}
}

// fixSubpixelAlpha rewrites alpha as the maximum of the color channels so
// blending never drops a lit subpixel.
func (rz *Rasterizer) fixSubpixelAlpha() {
	for y := rz.bounds.Min.Y; y < rz.bounds.Max.Y; y++ {
		off := rz.dst.PixOffset(rz.bounds.Min.X, y)
		for x := 0; x < rz.bounds.Dx(); x++ {
			p := off + x*4
			rz.dst.Pix[p+3] = max(rz.dst.Pix[p], rz.dst.Pix[p+1], rz.dst.Pix[p+2])
		}
	}
}

// thresholdMask hardens the mask to full-on or full-off coverage.
func (rz *Rasterizer) thresholdMask() {
	for y := rz.bounds.Min.Y; y < rz.bounds.Max.Y; y++ {
		off := rz.mask.PixOffset(rz.bounds.Min.X, y)
		row := rz.mask.Pix[off : off+rz.bounds.Dx()]
		for i, c := range row {
			if c >= 0x80 {
				row[i] = 0xff
			} else {
				row[i] = 0
			}
		}
	}
}

func clearGray(img *image.Gray, bounds image.Rectangle) {
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		off := img.PixOffset(bounds.Min.X, y)
		row := img.Pix[off : off+bounds.Dx()]
		for i := range row {
			row[i] = 0
		}
	}
}

func clearRGBA(img *image.RGBA, bounds image.Rectangle) {
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		off := img.PixOffset(bounds.Min.X, y)
		row := img.Pix[off : off+bounds.Dx()*4]
		for i := range row {
			row[i] = 0
		}
	}
}
