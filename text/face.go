package text

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"sync"

	gtfont "github.com/go-text/typesetting/font"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/tiff"
)

// Source is one parsed font file. The data is parsed twice on purpose:
// go-text/typesetting drives shaping and golang.org/x/image drives
// rasterization, and neither can consume the other's representation.
//
// A Source is immutable after ParseFont and safe for concurrent use; the
// per-size rasterization faces it hands out are not, and belong to the
// render thread.
type Source struct {
	data   []byte
	shaped *gtfont.Font
	raster *opentype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face

	// bitmapFace serves embedded color bitmap lookups. Lazily created;
	// SetPpem mutates it, so it stays under mu.
	bitmapFace *gtfont.Face
}

type faceKey struct {
	sizePx float64
	dpi    float64
}

// ParseFont parses TTF/OTF font data for both shaping and rasterization.
func ParseFont(data []byte) (*Source, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFontData
	}

	gtFace, err := gtfont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("text: shaping parse failed: %w", err)
	}

	rasterFont, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("text: raster parse failed: %w", err)
	}

	return &Source{
		data:   data,
		shaped: gtFace.Font,
		raster: rasterFont,
		faces:  make(map[faceKey]font.Face),
	}, nil
}

// ShapingFont returns the go-text font for this source.
// The returned *gtfont.Font is read-only and safe for concurrent use.
func (s *Source) ShapingFont() *gtfont.Font {
	return s.shaped
}

// RasterFace returns a rasterization face at the given pixel size and DPI.
// Faces are cached per size; the returned font.Face must only be used from
// one goroutine at a time.
func (s *Source) RasterFace(sizePx, dpi float64) (font.Face, error) {
	key := faceKey{sizePx: sizePx, dpi: dpi}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.faces[key]; ok {
		return f, nil
	}

	f, err := opentype.NewFace(s.raster, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("text: face creation failed: %w", err)
	}
	s.faces[key] = f
	return f, nil
}

// BitmapGlyph decodes the embedded color bitmap for the cluster's base
// rune at the given pixels-per-em, ranging over the sbix, CBDT and EBDT
// tables. ok is false when the font carries no decodable bitmap for it,
// in which case the caller falls back to outline rasterization.
func (s *Source) BitmapGlyph(cluster string, ppem uint16) (image.Image, bool) {
	var base rune
	for _, r := range cluster {
		base = r
		break
	}
	if base == 0 {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bitmapFace == nil {
		s.bitmapFace = gtfont.NewFace(s.shaped)
	}
	gid, ok := s.bitmapFace.NominalGlyph(base)
	if !ok {
		return nil, false
	}
	s.bitmapFace.SetPpem(ppem, ppem)

	bm, ok := s.bitmapFace.GlyphData(gid).(gtfont.GlyphBitmap)
	if !ok {
		return nil, false
	}

	var img image.Image
	var err error
	switch bm.Format {
	case gtfont.PNG:
		img, err = png.Decode(bytes.NewReader(bm.Data))
	case gtfont.JPG:
		img, err = jpeg.Decode(bytes.NewReader(bm.Data))
	case gtfont.TIFF:
		img, err = tiff.Decode(bytes.NewReader(bm.Data))
	default:
		// Black-and-white strikes carry no color; the outline path
		// renders those.
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	return img, true
}

// FaceSet resolves the four style variants of a terminal font. Missing
// variants fall back to the regular source; the glyph key's bold/italic
// bits then simply select the same appearance.
type FaceSet struct {
	regular    *Source
	bold       *Source
	italic     *Source
	boldItalic *Source
}

// NewFaceSet builds a face set. regular is required; the other variants may
// be nil.
func NewFaceSet(regular, bold, italic, boldItalic *Source) (*FaceSet, error) {
	if regular == nil {
		return nil, ErrNoRegularFace
	}
	return &FaceSet{
		regular:    regular,
		bold:       bold,
		italic:     italic,
		boldItalic: boldItalic,
	}, nil
}

// Resolve selects the source for a style bit pair.
func (fs *FaceSet) Resolve(bold, italic bool) *Source {
	switch {
	case bold && italic:
		if fs.boldItalic != nil {
			return fs.boldItalic
		}
	case bold:
		if fs.bold != nil {
			return fs.bold
		}
	case italic:
		if fs.italic != nil {
			return fs.italic
		}
	}
	return fs.regular
}
