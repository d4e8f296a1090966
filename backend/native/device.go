package native

import (
	"fmt"
	"image"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/termgrid"
)

// fenceTimeout bounds how long WaitFrame blocks on the previous frame.
const fenceTimeout = 5 * time.Second

// defaultMaxTextureDim is used when the adapter does not report a limit.
const defaultMaxTextureDim = 16384

// Option configures a Device.
type Option func(*Device)

// WithMaxTextureDim overrides the maximum texture dimension reported by
// Limits.
func WithMaxTextureDim(dim uint32) Option {
	return func(d *Device) { d.maxTextureDim = dim }
}

// WithTargetFormat sets the color format of the render target. Defaults
// to BGRA8, the usual surface format.
func WithTargetFormat(format gputypes.TextureFormat) Option {
	return func(d *Device) { d.targetFormat = format }
}

// WithFrameTarget supplies the view to render each frame into, typically
// the acquired surface texture view. Without it the device renders into
// an internal offscreen texture.
func WithFrameTarget(acquire func() (hal.TextureView, error)) Option {
	return func(d *Device) { d.acquire = acquire }
}

// WithPresenter supplies the presentation hook called at the end of
// Present, after the frame's command buffer has been submitted.
func WithPresenter(present func() error) Option {
	return func(d *Device) { d.present = present }
}

// Device renders through a HAL device and queue shared with the host
// application. It is owned by the render thread and is not safe for
// concurrent use.
type Device struct {
	device hal.Device
	queue  hal.Queue

	maxTextureDim uint32
	targetFormat  gputypes.TextureFormat
	acquire       func() (hal.TextureView, error)
	present       func() error

	pipe *cellPipeline

	// Per-frame encoder, created lazily on the first copy or draw and
	// submitted at Present.
	encoder hal.CommandEncoder

	// Fence of the last submitted frame; WaitFrame blocks on it.
	lastFence hal.Fence

	// Bind groups used by in-flight frames, destroyed after the fence
	// wait proves the GPU is done with them.
	retired []hal.BindGroup

	// Offscreen target, used when no frame target hook is configured.
	offscreenTex  hal.Texture
	offscreenView hal.TextureView
	offscreenW    uint32
	offscreenH    uint32
}

// New creates a Device from a gpucontext provider, typically
// gogpu.App.GPUContextProvider(). The provider must expose the
// underlying HAL device and queue.
func New(provider gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("termgrid/native: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("termgrid/native: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("termgrid/native: provider HalQueue is not hal.Queue")
	}
	return NewWithHAL(device, queue, opts...)
}

// NewWithHAL creates a Device from an explicit HAL device and queue.
func NewWithHAL(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("termgrid/native: nil HAL device or queue")
	}
	d := &Device{
		device:        device,
		queue:         queue,
		maxTextureDim: defaultMaxTextureDim,
		targetFormat:  gputypes.TextureFormatBGRA8Unorm,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Limits reports the maximum texture dimension for atlas sizing.
func (d *Device) Limits() termgrid.Limits {
	return termgrid.Limits{MaxTextureDim: d.maxTextureDim}
}

// CreateTexture allocates a HAL texture and its default view.
func (d *Device) CreateTexture(desc termgrid.TextureDescriptor) (termgrid.Texture, error) {
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         halTextureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: texture %q: %v", termgrid.ErrResourceCreation, desc.Label, err)
	}

	var view hal.TextureView
	if desc.Usage&termgrid.TextureUsageBinding != 0 {
		view, err = d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label:         desc.Label,
			Format:        desc.Format,
			Dimension:     gputypes.TextureViewDimension2D,
			Aspect:        gputypes.TextureAspectAll,
			MipLevelCount: 1,
		})
		if err != nil {
			d.device.DestroyTexture(tex)
			return nil, fmt.Errorf("%w: texture view %q: %v", termgrid.ErrResourceCreation, desc.Label, err)
		}
	}

	return &texture{
		dev:    d,
		tex:    tex,
		view:   view,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
	}, nil
}

// CreateBuffer allocates a HAL buffer with a CPU shadow. Map returns the
// shadow; Unmap publishes it with queue.WriteBuffer.
func (d *Device) CreateBuffer(desc termgrid.BufferDescriptor) (termgrid.Buffer, error) {
	// The backend does not know whether the engine binds the buffer as
	// the uniform or the storage input, so it allows both.
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  uint64(desc.Size),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: buffer %q: %v", termgrid.ErrResourceCreation, desc.Label, err)
	}
	return &buffer{
		dev:    d,
		buf:    buf,
		shadow: make([]byte, desc.Size),
	}, nil
}

// CopyRegion records a texture-to-texture copy into the frame encoder.
// CopyNoOverwrite regions are not read by in-flight work, so they skip
// the usage barrier around the copy.
func (d *Device) CopyRegion(dst termgrid.Texture, dstX, dstY uint32, src termgrid.Texture, r image.Rectangle, hint termgrid.CopyHint) error {
	dt, ok := dst.(*texture)
	if !ok {
		return fmt.Errorf("termgrid/native: foreign destination texture")
	}
	st, ok := src.(*texture)
	if !ok {
		return fmt.Errorf("termgrid/native: foreign source texture")
	}
	enc, err := d.ensureEncoder()
	if err != nil {
		return err
	}

	if hint == termgrid.CopyDefault {
		enc.TransitionTextures([]hal.TextureBarrier{{
			Texture: dt.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageTextureBinding,
				NewUsage: gputypes.TextureUsageCopyDst,
			},
		}})
	}

	enc.CopyTextureToTexture(st.tex, dt.tex, []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{
			Texture:  st.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: uint32(r.Min.X), Y: uint32(r.Min.Y), Z: 0},
		},
		DstBase: hal.ImageCopyTexture{
			Texture:  dt.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: dstX, Y: dstY, Z: 0},
		},
		Size: hal.Extent3D{Width: uint32(r.Dx()), Height: uint32(r.Dy()), DepthOrArrayLayers: 1},
	}})

	if hint == termgrid.CopyDefault {
		enc.TransitionTextures([]hal.TextureBarrier{{
			Texture: dt.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageCopyDst,
				NewUsage: gputypes.TextureUsageTextureBinding,
			},
		}})
	}
	return nil
}

// WriteRegion uploads CPU pixels straight through the queue. Queue
// writes execute before the frame's command buffer, which is submitted
// at Present, so uploads stay ordered before the copies and the draw.
func (d *Device) WriteRegion(dst termgrid.Texture, dstX, dstY uint32, pix []byte, stride int, r image.Rectangle, _ termgrid.CopyHint) error {
	dt, ok := dst.(*texture)
	if !ok {
		return fmt.Errorf("termgrid/native: foreign destination texture")
	}
	d.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  dt.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: dstX, Y: dstY, Z: 0},
		},
		pix,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(stride),
			RowsPerImage: uint32(r.Dy()),
		},
		&hal.Extent3D{Width: uint32(r.Dx()), Height: uint32(r.Dy()), DepthOrArrayLayers: 1},
	)
	return nil
}

// Draw records the fullscreen cell pass into the frame encoder.
func (d *Device) Draw(params termgrid.DrawParams) error {
	cells, ok := params.Cells.(*buffer)
	if !ok {
		return fmt.Errorf("termgrid/native: foreign cell buffer")
	}
	consts, ok := params.Constants.(*buffer)
	if !ok {
		return fmt.Errorf("termgrid/native: foreign constant buffer")
	}
	at, ok := params.Atlas.(*texture)
	if !ok || at.view == nil {
		return fmt.Errorf("termgrid/native: atlas texture is not shader-bindable")
	}

	if d.pipe == nil {
		pipe, err := newCellPipeline(d.device, d.targetFormat)
		if err != nil {
			return err
		}
		d.pipe = pipe
	}

	view, err := d.frameTarget(params.ViewportWidth, params.ViewportHeight)
	if err != nil {
		return err
	}
	enc, err := d.ensureEncoder()
	if err != nil {
		return err
	}

	bindGroup, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "termgrid_cells",
		Layout: d.pipe.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: consts.buf.NativeHandle(), Offset: 0, Size: uint64(len(consts.shadow)),
			}},
			{Binding: 1, Resource: gputypes.BufferBinding{
				Buffer: cells.buf.NativeHandle(), Offset: 0, Size: uint64(len(cells.shadow)),
			}},
			{Binding: 2, Resource: gputypes.TextureViewBinding{
				TextureView: at.view.NativeHandle(),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: cell bind group: %v", termgrid.ErrResourceCreation, err)
	}
	d.retired = append(d.retired, bindGroup)

	rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "termgrid_cell_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{},
		}},
	})
	rp.SetPipeline(d.pipe.pipeline)
	rp.SetBindGroup(0, bindGroup, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()
	return nil
}

// WaitFrame blocks until the previously submitted frame retires.
func (d *Device) WaitFrame() error {
	if d.lastFence == nil {
		return nil
	}
	ok, err := d.device.Wait(d.lastFence, 1, fenceTimeout)
	d.device.DestroyFence(d.lastFence)
	d.lastFence = nil
	if err != nil || !ok {
		return fmt.Errorf("%w: frame fence: ok=%v err=%v", termgrid.ErrDeviceLost, ok, err)
	}
	for _, bg := range d.retired {
		d.device.DestroyBindGroup(bg)
	}
	d.retired = d.retired[:0]
	return nil
}

// Present submits the frame's command buffer with a fence and invokes
// the presentation hook.
func (d *Device) Present() error {
	if d.encoder != nil {
		enc := d.encoder
		d.encoder = nil
		cmdBuf, err := enc.EndEncoding()
		if err != nil {
			return fmt.Errorf("%w: end encoding: %v", termgrid.ErrDeviceLost, err)
		}
		defer d.device.FreeCommandBuffer(cmdBuf)

		fence, err := d.device.CreateFence()
		if err != nil {
			return fmt.Errorf("%w: frame fence: %v", termgrid.ErrResourceCreation, err)
		}
		if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
			d.device.DestroyFence(fence)
			return fmt.Errorf("%w: submit: %v", termgrid.ErrDeviceLost, err)
		}
		d.lastFence = fence
	}
	if d.present != nil {
		return d.present()
	}
	return nil
}

// Destroy releases all resources owned by the device. The shared HAL
// device and queue stay alive; they belong to the host.
func (d *Device) Destroy() {
	if d.encoder != nil {
		d.encoder.DiscardEncoding()
		d.encoder = nil
	}
	if d.lastFence != nil {
		if ok, err := d.device.Wait(d.lastFence, 1, fenceTimeout); err != nil || !ok {
			// Nothing to recover here; resources are torn down anyway.
			_ = ok
		}
		d.device.DestroyFence(d.lastFence)
		d.lastFence = nil
	}
	for _, bg := range d.retired {
		d.device.DestroyBindGroup(bg)
	}
	d.retired = nil
	d.destroyOffscreen()
	if d.pipe != nil {
		d.pipe.destroy(d.device)
		d.pipe = nil
	}
}

// ensureEncoder returns the frame's command encoder, creating it on the
// first copy or draw of the frame.
func (d *Device) ensureEncoder() (hal.CommandEncoder, error) {
	if d.encoder != nil {
		return d.encoder, nil
	}
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "termgrid_frame",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: command encoder: %v", termgrid.ErrResourceCreation, err)
	}
	if err := enc.BeginEncoding("termgrid_frame"); err != nil {
		return nil, fmt.Errorf("%w: begin encoding: %v", termgrid.ErrDeviceLost, err)
	}
	d.encoder = enc
	return enc, nil
}

// frameTarget resolves the render target view for this frame.
func (d *Device) frameTarget(w, h uint32) (hal.TextureView, error) {
	if d.acquire != nil {
		view, err := d.acquire()
		if err != nil {
			return nil, fmt.Errorf("%w: acquire frame target: %v", termgrid.ErrDeviceLost, err)
		}
		return view, nil
	}
	if d.offscreenView != nil && d.offscreenW == w && d.offscreenH == h {
		return d.offscreenView, nil
	}
	d.destroyOffscreen()

	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "termgrid_offscreen",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        d.targetFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: offscreen target: %v", termgrid.ErrResourceCreation, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "termgrid_offscreen_view",
		Format:        d.targetFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("%w: offscreen target view: %v", termgrid.ErrResourceCreation, err)
	}
	d.offscreenTex = tex
	d.offscreenView = view
	d.offscreenW = w
	d.offscreenH = h
	return view, nil
}

func (d *Device) destroyOffscreen() {
	if d.offscreenView != nil {
		d.device.DestroyTextureView(d.offscreenView)
		d.offscreenView = nil
	}
	if d.offscreenTex != nil {
		d.device.DestroyTexture(d.offscreenTex)
		d.offscreenTex = nil
	}
	d.offscreenW, d.offscreenH = 0, 0
}

// halTextureUsage maps the device-neutral usage flags to HAL usage.
func halTextureUsage(usage termgrid.TextureUsage) gputypes.TextureUsage {
	var u gputypes.TextureUsage
	if usage&termgrid.TextureUsageCopySrc != 0 {
		u |= gputypes.TextureUsageCopySrc
	}
	if usage&termgrid.TextureUsageCopyDst != 0 {
		u |= gputypes.TextureUsageCopyDst
	}
	if usage&termgrid.TextureUsageBinding != 0 {
		u |= gputypes.TextureUsageTextureBinding
	}
	return u
}
