package text

import (
	"golang.org/x/text/unicode/bidi"
)

// bidiRun is a contiguous run of runes sharing one direction.
// start and end are rune indices, end exclusive.
type bidiRun struct {
	start int
	end   int
	rtl   bool
}

// segmentBidi splits text into direction runs using the Unicode bidi
// algorithm. Terminal content is overwhelmingly a single LTR run; the
// single-run case allocates exactly one element.
func segmentBidi(text string, runes []rune) []bidiRun {
	if len(runes) == 0 {
		return nil
	}

	var p bidi.Paragraph
	if _, err := p.SetString(text, bidi.DefaultDirection(bidi.Neutral)); err != nil {
		return []bidiRun{{start: 0, end: len(runes)}}
	}
	ordering, err := p.Order()
	if err != nil || ordering.NumRuns() == 0 {
		return []bidiRun{{start: 0, end: len(runes)}}
	}

	runs := make([]bidiRun, 0, ordering.NumRuns())
	for i := 0; i < ordering.NumRuns(); i++ {
		run := ordering.Run(i)
		// Pos returns rune indices, end inclusive.
		start, end := run.Pos()
		if end >= len(runes) {
			end = len(runes) - 1
		}
		runs = append(runs, bidiRun{
			start: start,
			end:   end + 1,
			rtl:   run.Direction() == bidi.RightToLeft,
		})
	}
	return runs
}
