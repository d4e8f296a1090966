package termgrid

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
)

// fakeDevice is an in-memory Device that records the calls Present makes.
// Textures and buffers are plain byte slices, so tests can inspect what the
// pipeline uploaded. Fault injection covers the failure paths.
type fakeDevice struct {
	maxTextureDim uint32

	ops []string

	failCreates int
	failMaps    int
	failWrites  int

	lastDraw DrawParams
	draws    int
	waits    int
	presents int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{maxTextureDim: 2048}
}

func (d *fakeDevice) record(op string) { d.ops = append(d.ops, op) }

// opIndex returns the position of the first op with the given prefix, or -1.
func (d *fakeDevice) opIndex(prefix string) int {
	for i, op := range d.ops {
		if len(op) >= len(prefix) && op[:len(prefix)] == prefix {
			return i
		}
	}
	return -1
}

func (d *fakeDevice) Limits() Limits {
	return Limits{MaxTextureDim: d.maxTextureDim}
}

func (d *fakeDevice) CreateTexture(desc TextureDescriptor) (Texture, error) {
	if d.failCreates > 0 {
		d.failCreates--
		return nil, fmt.Errorf("fake: create texture %q: %w", desc.Label, ErrResourceCreation)
	}
	d.record("create:" + desc.Label)
	return &fakeTexture{
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		pix:    make([]byte, int(desc.Width)*int(desc.Height)*4),
	}, nil
}

func (d *fakeDevice) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	if d.failCreates > 0 {
		d.failCreates--
		return nil, fmt.Errorf("fake: create buffer %q: %w", desc.Label, ErrResourceCreation)
	}
	d.record("create:" + desc.Label)
	return &fakeBuffer{dev: d, data: make([]byte, desc.Size)}, nil
}

func (d *fakeDevice) CopyRegion(dst Texture, dstX, dstY uint32, src Texture, r image.Rectangle, hint CopyHint) error {
	d.record(fmt.Sprintf("copy:%dx%d@%d,%d", r.Dx(), r.Dy(), dstX, dstY))
	dt, st := dst.(*fakeTexture), src.(*fakeTexture)
	for row := 0; row < r.Dy(); row++ {
		so := st.pixOffset(r.Min.X, r.Min.Y+row)
		do := dt.pixOffset(int(dstX), int(dstY)+row)
		copy(dt.pix[do:do+r.Dx()*4], st.pix[so:so+r.Dx()*4])
	}
	return nil
}

func (d *fakeDevice) WriteRegion(dst Texture, dstX, dstY uint32, pix []byte, stride int, r image.Rectangle, hint CopyHint) error {
	if d.failWrites > 0 {
		d.failWrites--
		return fmt.Errorf("fake: write region: %w", ErrResourceCreation)
	}
	d.record(fmt.Sprintf("write:%dx%d@%d,%d", r.Dx(), r.Dy(), dstX, dstY))
	dt := dst.(*fakeTexture)
	for row := 0; row < r.Dy(); row++ {
		so := row * stride
		do := dt.pixOffset(int(dstX), int(dstY)+row)
		copy(dt.pix[do:do+r.Dx()*4], pix[so:so+r.Dx()*4])
	}
	return nil
}

func (d *fakeDevice) Draw(params DrawParams) error {
	d.record("draw")
	d.lastDraw = params
	d.draws++
	return nil
}

func (d *fakeDevice) WaitFrame() error {
	d.record("wait")
	d.waits++
	return nil
}

func (d *fakeDevice) Present() error {
	d.record("present")
	d.presents++
	return nil
}

type fakeTexture struct {
	width     uint32
	height    uint32
	format    gputypes.TextureFormat
	pix       []byte
	destroyed bool
}

func (t *fakeTexture) Width() uint32                  { return t.width }
func (t *fakeTexture) Height() uint32                 { return t.height }
func (t *fakeTexture) Format() gputypes.TextureFormat { return t.format }
func (t *fakeTexture) Destroy()                       { t.destroyed = true }

func (t *fakeTexture) pixOffset(x, y int) int { return (y*int(t.width) + x) * 4 }

// anyAlpha reports whether any pixel of the rectangle has nonzero alpha.
func (t *fakeTexture) anyAlpha(r image.Rectangle) bool {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if t.pix[t.pixOffset(x, y)+3] != 0 {
				return true
			}
		}
	}
	return false
}

type fakeBuffer struct {
	dev       *fakeDevice
	data      []byte
	destroyed bool
}

func (b *fakeBuffer) Size() int { return len(b.data) }

func (b *fakeBuffer) Map() ([]byte, error) {
	if b.dev.failMaps > 0 {
		b.dev.failMaps--
		return nil, fmt.Errorf("fake: map: %w", ErrMapFailure)
	}
	return b.data, nil
}

func (b *fakeBuffer) Unmap()   {}
func (b *fakeBuffer) Destroy() { b.destroyed = true }
