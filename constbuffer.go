package termgrid

import (
	"encoding/binary"
	"math"
)

// constantsSize is the packed byte size of the frame constant buffer.
const constantsSize = 80

// constants is the frame-constant shader input. It is rebuilt only when the
// ConstBuffer invalidation bit is set; everything in it changes rarely
// (resize, palette change, cursor reconfiguration).
type constants struct {
	viewportW float32
	viewportH float32

	gammaRatios      [4]float32
	enhancedContrast float32

	cellCountX uint32
	cellW      uint32
	cellH      uint32

	// Line decorations as top/bottom pixel rows within a cell.
	underlineTop     uint32
	underlineBottom  uint32
	strikethroughTop uint32
	strikethroughBot uint32

	backgroundColor uint32
	cursorColor     uint32
	selectionColor  uint32

	// useSubpixelAA tells the fragment stage to treat atlas texels as
	// per-channel coverage instead of a single alpha.
	useSubpixelAA uint32
}

// pack serializes the constants little-endian into dst, which must hold
// constantsSize bytes. The layout matches the uniform block declared in the
// cell shader: a float4 viewport, float4 gamma ratios, then scalars in
// declaration order.
func (c *constants) pack(dst []byte) {
	le := binary.LittleEndian
	putF32 := func(off int, v float32) {
		le.PutUint32(dst[off:], math.Float32bits(v))
	}

	putF32(0, 0) // viewport origin x
	putF32(4, 0) // viewport origin y
	putF32(8, c.viewportW)
	putF32(12, c.viewportH)
	for i, r := range c.gammaRatios {
		putF32(16+i*4, r)
	}
	putF32(32, c.enhancedContrast)
	le.PutUint32(dst[36:], c.cellCountX)
	le.PutUint32(dst[40:], c.cellW)
	le.PutUint32(dst[44:], c.cellH)
	le.PutUint32(dst[48:], c.underlineTop)
	le.PutUint32(dst[52:], c.underlineBottom)
	le.PutUint32(dst[56:], c.strikethroughTop)
	le.PutUint32(dst[60:], c.strikethroughBot)
	le.PutUint32(dst[64:], c.backgroundColor)
	le.PutUint32(dst[68:], c.cursorColor)
	le.PutUint32(dst[72:], c.selectionColor)
	le.PutUint32(dst[76:], c.useSubpixelAA)
}

// gammaRatios fits the four coefficients of the shader's alpha correction
// polynomial p(a) = r0*a + r1*a^2 + r2*a^3 + r3*a^4 so that p matches
// a^(1/gamma) exactly at a = 0.25, 0.5, 0.75 and 1. The polynomial form
// keeps the correction branch-free in the fragment stage and p(0) = 0 by
// construction.
func gammaRatios(gamma float64) [4]float32 {
	nodes := [4]float64{0.25, 0.5, 0.75, 1}
	inv := 1 / gamma

	// Vandermonde system m * r = y with m[j][i] = nodes[j]^(i+1).
	var m [4][5]float64
	for j, a := range nodes {
		p := a
		for i := 0; i < 4; i++ {
			m[j][i] = p
			p *= a
		}
		m[j][4] = math.Pow(a, inv)
	}

	// Gaussian elimination with partial pivoting. The system is tiny and
	// well conditioned for every gamma the config accepts.
	for col := 0; col < 4; col++ {
		pivot := col
		for row := col + 1; row < 4; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		m[col], m[pivot] = m[pivot], m[col]
		for row := col + 1; row < 4; row++ {
			f := m[row][col] / m[col][col]
			for k := col; k <= 4; k++ {
				m[row][k] -= f * m[col][k]
			}
		}
	}

	var sol [4]float64
	for row := 3; row >= 0; row-- {
		v := m[row][4]
		for k := row + 1; k < 4; k++ {
			v -= m[row][k] * sol[k]
		}
		sol[row] = v / m[row][row]
	}

	var r [4]float32
	for i, v := range sol {
		r[i] = float32(v)
	}
	return r
}
