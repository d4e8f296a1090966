// Package software provides a CPU implementation of the termgrid device
// capability. It executes the cell shader semantics pixel by pixel, which
// makes it the reference backend for tests, headless rendering and the
// demo tool.
package software

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/termgrid"
)

// Option configures a Device.
type Option func(*Device)

// WithMaxTextureDim overrides the reported texture size limit.
func WithMaxTextureDim(dim uint32) Option {
	return func(d *Device) { d.maxTextureDim = dim }
}

// WithFrameCallback registers a callback invoked with the composed frame on
// every Present. The image is reused between frames; copy it to keep it.
func WithFrameCallback(fn func(*image.RGBA)) Option {
	return func(d *Device) { d.onFrame = fn }
}

// Device is the in-memory backend. Textures are byte slices, buffers are
// byte slices, and Draw runs the compositor on the CPU.
//
// Like every termgrid device it belongs to a single render thread.
type Device struct {
	maxTextureDim uint32
	onFrame       func(*image.RGBA)

	framebuffer *image.RGBA
	waited      bool
	frames      uint64

	// Fault injection for failure-path tests.
	failCreates int
	failMaps    int
	lost        bool
}

// New creates a software device.
func New(opts ...Option) *Device {
	d := &Device{maxTextureDim: 8192}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FailNextCreates makes the next n resource creations fail.
func (d *Device) FailNextCreates(n int) { d.failCreates = n }

// FailNextMaps makes the next n buffer maps fail.
func (d *Device) FailNextMaps(n int) { d.failMaps = n }

// SetLost simulates a lost GPU context. Every operation fails until unset.
func (d *Device) SetLost(lost bool) { d.lost = lost }

// Frames returns the number of presented frames.
func (d *Device) Frames() uint64 { return d.frames }

// Framebuffer returns the last composed frame, nil before the first Draw.
func (d *Device) Framebuffer() *image.RGBA { return d.framebuffer }

// Limits implements termgrid.Device.
func (d *Device) Limits() termgrid.Limits {
	return termgrid.Limits{MaxTextureDim: d.maxTextureDim}
}

// CreateTexture implements termgrid.Device.
func (d *Device) CreateTexture(desc termgrid.TextureDescriptor) (termgrid.Texture, error) {
	if err := d.creationFault("texture", desc.Label); err != nil {
		return nil, err
	}
	if desc.Width == 0 || desc.Height == 0 || desc.Width > d.maxTextureDim || desc.Height > d.maxTextureDim {
		return nil, fmt.Errorf("software: texture %q size %dx%d out of range: %w",
			desc.Label, desc.Width, desc.Height, termgrid.ErrResourceCreation)
	}
	return &texture{
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		pix:    make([]byte, int(desc.Width)*int(desc.Height)*4),
	}, nil
}

// CreateBuffer implements termgrid.Device.
func (d *Device) CreateBuffer(desc termgrid.BufferDescriptor) (termgrid.Buffer, error) {
	if err := d.creationFault("buffer", desc.Label); err != nil {
		return nil, err
	}
	if desc.Size <= 0 {
		return nil, fmt.Errorf("software: buffer %q size %d: %w",
			desc.Label, desc.Size, termgrid.ErrResourceCreation)
	}
	return &buffer{dev: d, data: make([]byte, desc.Size)}, nil
}

// CopyRegion implements termgrid.Device.
func (d *Device) CopyRegion(dst termgrid.Texture, dstX, dstY uint32, src termgrid.Texture, r image.Rectangle, hint termgrid.CopyHint) error {
	if d.lost {
		return fmt.Errorf("software: copy region: %w", termgrid.ErrDeviceLost)
	}
	dt, st := dst.(*texture), src.(*texture)
	if err := checkRegion(st, r.Min.X, r.Min.Y, r.Dx(), r.Dy()); err != nil {
		return err
	}
	if err := checkRegion(dt, int(dstX), int(dstY), r.Dx(), r.Dy()); err != nil {
		return err
	}
	for row := 0; row < r.Dy(); row++ {
		srcOff := st.pixOffset(r.Min.X, r.Min.Y+row)
		dstOff := dt.pixOffset(int(dstX), int(dstY)+row)
		copy(dt.pix[dstOff:dstOff+r.Dx()*4], st.pix[srcOff:srcOff+r.Dx()*4])
	}
	return nil
}

// WriteRegion implements termgrid.Device.
func (d *Device) WriteRegion(dst termgrid.Texture, dstX, dstY uint32, pix []byte, stride int, r image.Rectangle, hint termgrid.CopyHint) error {
	if d.lost {
		return fmt.Errorf("software: write region: %w", termgrid.ErrDeviceLost)
	}
	dt := dst.(*texture)
	if err := checkRegion(dt, int(dstX), int(dstY), r.Dx(), r.Dy()); err != nil {
		return err
	}
	for row := 0; row < r.Dy(); row++ {
		srcOff := row * stride
		dstOff := dt.pixOffset(int(dstX), int(dstY)+row)
		copy(dt.pix[dstOff:dstOff+r.Dx()*4], pix[srcOff:srcOff+r.Dx()*4])
	}
	return nil
}

// WaitFrame implements termgrid.Device. The software backend has no queued
// frames to bound; it only tracks that the wait happened so Present can
// enforce the protocol.
func (d *Device) WaitFrame() error {
	if d.lost {
		return fmt.Errorf("software: wait frame: %w", termgrid.ErrDeviceLost)
	}
	d.waited = true
	return nil
}

// Present implements termgrid.Device.
func (d *Device) Present() error {
	if d.lost {
		return fmt.Errorf("software: present: %w", termgrid.ErrDeviceLost)
	}
	if !d.waited {
		return fmt.Errorf("software: present without frame wait: %w", termgrid.ErrDeviceLost)
	}
	d.waited = false
	d.frames++
	if d.onFrame != nil && d.framebuffer != nil {
		d.onFrame(d.framebuffer)
	}
	return nil
}

func (d *Device) creationFault(kind, label string) error {
	if d.lost {
		return fmt.Errorf("software: create %s %q: %w", kind, label, termgrid.ErrDeviceLost)
	}
	if d.failCreates > 0 {
		d.failCreates--
		return fmt.Errorf("software: create %s %q: injected fault: %w", kind, label, termgrid.ErrResourceCreation)
	}
	return nil
}

// texture is a CPU-backed texture, RGBA bytes in row-major order.
type texture struct {
	label     string
	width     uint32
	height    uint32
	format    gputypes.TextureFormat
	pix       []byte
	destroyed bool
}

func (t *texture) Width() uint32                  { return t.width }
func (t *texture) Height() uint32                 { return t.height }
func (t *texture) Format() gputypes.TextureFormat { return t.format }
func (t *texture) Destroy()                       { t.destroyed = true; t.pix = nil }

func (t *texture) pixOffset(x, y int) int { return (y*int(t.width) + x) * 4 }

func checkRegion(t *texture, x, y, w, h int) error {
	if t.destroyed {
		return fmt.Errorf("software: texture %q used after destroy: %w", t.label, termgrid.ErrDeviceLost)
	}
	if x < 0 || y < 0 || w < 0 || h < 0 || x+w > int(t.width) || y+h > int(t.height) {
		return fmt.Errorf("software: region %d,%d %dx%d outside texture %q (%dx%d): %w",
			x, y, w, h, t.label, t.width, t.height, termgrid.ErrResourceCreation)
	}
	return nil
}

// buffer is a CPU-backed mappable buffer.
type buffer struct {
	dev       *Device
	data      []byte
	mapped    bool
	destroyed bool
}

func (b *buffer) Size() int { return len(b.data) }

func (b *buffer) Map() ([]byte, error) {
	if b.destroyed || b.dev.lost {
		return nil, fmt.Errorf("software: map: %w", termgrid.ErrDeviceLost)
	}
	if b.dev.failMaps > 0 {
		b.dev.failMaps--
		return nil, fmt.Errorf("software: map: injected fault: %w", termgrid.ErrMapFailure)
	}
	b.mapped = true
	return b.data, nil
}

func (b *buffer) Unmap()   { b.mapped = false }
func (b *buffer) Destroy() { b.destroyed = true; b.data = nil }
