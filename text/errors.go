package text

import "errors"

// Sentinel errors for the text package.
var (
	// ErrEmptyFontData is returned when font data is empty.
	ErrEmptyFontData = errors.New("text: empty font data")

	// ErrNoRegularFace is returned when a FaceSet is built without a
	// regular style source.
	ErrNoRegularFace = errors.New("text: face set needs a regular source")

	// ErrBadFeatureTag is returned when an OpenType feature tag is not
	// exactly four bytes.
	ErrBadFeatureTag = errors.New("text: feature tag must be 4 characters")
)
