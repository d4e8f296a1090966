// Package termgrid implements the GPU-backed glyph rendering core of a
// terminal emulator renderer: a growable texture atlas caching rasterized
// glyph appearances, and a per-frame compositor that turns a grid of
// character cells into pixels with a single full-screen draw.
//
// # Overview
//
// The package is organized around one Engine per terminal viewport. Two
// logical threads interact with an Engine:
//
//   - A producer thread updates pending state at any time without locking:
//     the cell-grid snapshot, queued glyph rasterization work, invalidation
//     flags, viewport size, DPI and cursor/antialiasing options. Every
//     producer-visible field is an independent atomic cell, and queued
//     glyphs travel through a single hand-off channel.
//   - A consumer thread calls Engine.Present once per frame. It exclusively
//     owns all GPU resources and derived render state; it reads the
//     producer state fresh each frame and never writes it.
//
// There is no mutual exclusion between the two. Invalidation flags are
// monotonic dirty bits: a race between a concurrent set and a clear causes
// at most one redundant redo or defers the redo to the next frame, never a
// missed update, because the data a flag guards is always read fresh.
//
// # Rendering model
//
// Glyphs are rasterized on demand into a scratchpad surface and copied into
// a texture atlas that grows exponentially up to the hardware limit. The
// per-frame draw binds the atlas and a per-cell buffer and issues one fixed
// triangle that the vertex stage fans into a full-viewport quad; underline,
// selection and cursor compositing is data-driven in the fragment stage.
//
// Backends implementing the Device interface live under backend/. The
// software backend composes frames on the CPU and needs no GPU; the native
// backend renders through gogpu/wgpu.
//
// Shaping and rasterization of glyph runs is delegated to the text
// subpackage, which shapes with go-text/typesetting and rasterizes with
// golang.org/x/image.
package termgrid
