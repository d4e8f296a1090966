package termgrid

import (
	"encoding/binary"
)

// CellStride is the packed byte size of one cell record in the cell buffer.
// Backends that execute the cell shader on the CPU interpret the mapped
// buffer in strides of this size.
const CellStride = 16

// packCells serializes cells little-endian into dst, which must hold
// len(cells)*CellStride bytes. The whole grid is repacked and uploaded every
// frame; the cost is bounded by the viewport cell count, so there is no
// dirty tracking.
func packCells(dst []byte, cells []Cell) {
	le := binary.LittleEndian
	off := 0
	for i := range cells {
		c := &cells[i]
		le.PutUint16(dst[off:], c.GlyphX)
		le.PutUint16(dst[off+2:], c.GlyphY)
		le.PutUint32(dst[off+4:], uint32(c.Flags))
		le.PutUint32(dst[off+8:], c.FG)
		le.PutUint32(dst[off+12:], c.BG)
		off += CellStride
	}
}

// UnpackCell decodes one packed cell record, the inverse of the per-cell
// packing.
func UnpackCell(src []byte) Cell {
	le := binary.LittleEndian
	return Cell{
		GlyphX: le.Uint16(src),
		GlyphY: le.Uint16(src[2:]),
		Flags:  CellFlags(le.Uint32(src[4:])),
		FG:     le.Uint32(src[8:]),
		BG:     le.Uint32(src[12:]),
	}
}
