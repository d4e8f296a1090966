package text

import (
	"sync"

	"github.com/go-text/typesetting/di"
	gtfont "github.com/go-text/typesetting/font"
	ot "github.com/go-text/typesetting/font/opentype"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// GoTextShaper shapes cell runs with go-text/typesetting's HarfBuzz
// implementation. It handles ligatures, kerning, contextual alternates and
// complex scripts; runs are segmented by direction before shaping.
//
// GoTextShaper is safe for concurrent use. HarfbuzzShaper instances carry
// mutable state and are pooled; gtfont.Font values are read-only and come
// pre-parsed from the Source.
type GoTextShaper struct {
	pool sync.Pool
}

// NewGoTextShaper creates a shaper backed by go-text/typesetting.
func NewGoTextShaper() *GoTextShaper {
	return &GoTextShaper{
		pool: sync.Pool{
			New: func() any {
				return &shaping.HarfbuzzShaper{}
			},
		},
	}
}

// Layout implements the Shaper interface. The character sequence is split
// into direction runs, each run is shaped with the given features, and the
// positioned glyphs are clamped to maxWidth.
func (s *GoTextShaper) Layout(str string, src *Source, sizePx float64, maxWidth fixed.Int26_6, features []Feature) (*ShapedRun, error) {
	if str == "" || src == nil {
		return &ShapedRun{}, nil
	}

	fontFeatures, err := convertFeatures(features)
	if err != nil {
		return nil, err
	}

	runes := []rune(str)
	// gtfont.Face is not safe for concurrent use; one per Layout call.
	face := gtfont.NewFace(src.ShapingFont())

	run := &ShapedRun{}
	hb := s.pool.Get().(*shaping.HarfbuzzShaper)
	defer s.pool.Put(hb)

	for _, seg := range segmentBidi(str, runes) {
		dir := di.DirectionLTR
		if seg.rtl {
			dir = di.DirectionRTL
		}

		input := shaping.Input{
			Text:         runes,
			RunStart:     seg.start,
			RunEnd:       seg.end,
			Direction:    dir,
			Face:         face,
			Size:         fixed.Int26_6(sizePx * 64),
			Script:       detectScript(runes[seg.start:seg.end]),
			Language:     language.NewLanguage("en"),
			FontFeatures: fontFeatures,
		}
		output := hb.Shape(input)
		appendGlyphs(run, output.Glyphs, runes, maxWidth)
	}

	return run, nil
}

// appendGlyphs converts shaped glyphs to run glyphs, advancing the pen and
// dropping glyphs whose pen position already crossed maxWidth.
func appendGlyphs(run *ShapedRun, glyphs []shaping.Glyph, runes []rune, maxWidth fixed.Int26_6) {
	for i, g := range glyphs {
		x := run.Advance + g.XOffset
		y := -g.YOffset

		// Cluster boundaries come from consecutive text indices; the last
		// glyph's cluster extends to the end of the text.
		clusterStart := g.TextIndex()
		clusterEnd := len(runes)
		if i+1 < len(glyphs) {
			if next := glyphs[i+1].TextIndex(); next > clusterStart {
				clusterEnd = next
			}
		}
		if clusterStart < 0 || clusterStart >= len(runes) || clusterEnd > len(runes) {
			continue
		}

		if maxWidth <= 0 || x < maxWidth {
			run.Glyphs = append(run.Glyphs, ShapedGlyph{
				Cluster: string(runes[clusterStart:clusterEnd]),
				X:       x,
				Y:       y,
			})
		}
		run.Advance += g.Advance
	}
}

// convertFeatures maps typography features to go-text font features.
func convertFeatures(features []Feature) ([]shaping.FontFeature, error) {
	if len(features) == 0 {
		return nil, nil
	}
	out := make([]shaping.FontFeature, 0, len(features))
	for _, f := range features {
		if len(f.Tag) != 4 {
			return nil, ErrBadFeatureTag
		}
		out = append(out, shaping.FontFeature{
			Tag:   ot.NewTag(f.Tag[0], f.Tag[1], f.Tag[2], f.Tag[3]),
			Value: f.Value,
		})
	}
	return out, nil
}

// detectScript inspects the runes and returns the script of the first
// non-space character. Cell runs are short enough that one script per
// direction run is an acceptable approximation.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}
