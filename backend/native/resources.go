package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/termgrid"
)

// texture wraps a HAL texture and its shader view.
type texture struct {
	dev    *Device
	tex    hal.Texture
	view   hal.TextureView
	width  uint32
	height uint32
	format gputypes.TextureFormat
}

func (t *texture) Width() uint32                  { return t.width }
func (t *texture) Height() uint32                 { return t.height }
func (t *texture) Format() gputypes.TextureFormat { return t.format }

func (t *texture) Destroy() {
	if t.tex == nil {
		return
	}
	if t.view != nil {
		t.dev.device.DestroyTextureView(t.view)
		t.view = nil
	}
	t.dev.device.DestroyTexture(t.tex)
	t.tex = nil
}

// buffer wraps a HAL buffer with a CPU shadow. The HAL mapping API is
// not universally available across backends, so Map hands out the shadow
// and Unmap publishes it through the queue.
type buffer struct {
	dev    *Device
	buf    hal.Buffer
	shadow []byte
	mapped bool
}

func (b *buffer) Size() int { return len(b.shadow) }

func (b *buffer) Map() ([]byte, error) {
	if b.buf == nil {
		return nil, fmt.Errorf("%w: buffer destroyed", termgrid.ErrMapFailure)
	}
	b.mapped = true
	return b.shadow, nil
}

func (b *buffer) Unmap() {
	if !b.mapped || b.buf == nil {
		return
	}
	b.mapped = false
	b.dev.queue.WriteBuffer(b.buf, 0, b.shadow)
}

func (b *buffer) Destroy() {
	if b.buf == nil {
		return
	}
	b.dev.device.DestroyBuffer(b.buf)
	b.buf = nil
	b.mapped = false
}
