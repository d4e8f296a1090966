// Package text provides the shaping and rasterization backend for termgrid.
//
// Shaping converts a cell's character sequence into positioned glyphs using
// go-text/typesetting's HarfBuzz implementation, with bidirectional run
// segmentation via golang.org/x/text. Rasterization draws a shaped run into
// a CPU scratchpad surface using golang.org/x/image font faces.
//
// The package deliberately does not attempt layout correctness beyond what
// a terminal cell grid needs: each run is shaped in isolation and clamped
// to its cell span.
package text
