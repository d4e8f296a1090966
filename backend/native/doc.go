// Package native implements termgrid.Device on top of the wgpu HAL.
//
// The device records texture copies and the cell draw into one command
// encoder per frame and submits it at Present with a fence. WaitFrame
// blocks on the previous frame's fence, which bounds queued-frame
// latency to a single frame.
//
// The cell shader runs as a fullscreen triangle with no vertex buffers;
// each fragment resolves its covering cell from a storage buffer and
// composites background, glyph, decorations and cursor in one pass.
package native
