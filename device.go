package termgrid

import (
	"image"

	"github.com/gogpu/gputypes"
)

// Device is the GPU backend capability termgrid renders through. Any
// backend providing texture/buffer creation, map/unmap, region copies, the
// cell-grid draw and presentation is acceptable; the design does not depend
// on a specific command-submission model.
//
// Implementations live under backend/. A Device and every resource created
// from it are owned by the render thread; none of them are safe for
// concurrent use.
type Device interface {
	// CreateTexture allocates a texture. Failure wraps ErrResourceCreation.
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// CreateBuffer allocates a GPU-visible buffer.
	// Failure wraps ErrResourceCreation.
	CreateBuffer(desc BufferDescriptor) (Buffer, error)

	// Limits reports hardware and format limits relevant to atlas growth.
	Limits() Limits

	// CopyRegion copies the rectangle r of src into dst at (dstX, dstY).
	CopyRegion(dst Texture, dstX, dstY uint32, src Texture, r image.Rectangle, hint CopyHint) error

	// WriteRegion uploads CPU pixels into the rectangle of dst at
	// (dstX, dstY). pix holds r.Dx()*4 bytes per row at the given stride,
	// starting at r's top-left corner.
	WriteRegion(dst Texture, dstX, dstY uint32, pix []byte, stride int, r image.Rectangle, hint CopyHint) error

	// Draw binds the cell buffer, constant buffer and atlas texture and
	// issues the single fixed triangle that the vertex stage fans into a
	// full-viewport quad. All cell-to-pixel mapping happens in the
	// fragment stage; there is no per-glyph geometry.
	Draw(params DrawParams) error

	// WaitFrame blocks on the backend's frame-latency primitive. It must
	// be waited on before every frame, including the first, to bound
	// queued-frame latency.
	WaitFrame() error

	// Present presents the composed frame with a fixed sync interval.
	// Partial (dirty-rect) presentation is not part of the capability.
	Present() error
}

// Texture is a GPU texture resource.
type Texture interface {
	// Width returns the texture width in pixels.
	Width() uint32

	// Height returns the texture height in pixels.
	Height() uint32

	// Format returns the texture pixel format.
	Format() gputypes.TextureFormat

	// Destroy releases the texture. The render thread releases textures
	// deterministically on resize and teardown.
	Destroy()
}

// Buffer is a mappable GPU buffer resource.
type Buffer interface {
	// Size returns the buffer size in bytes.
	Size() int

	// Map exposes the buffer contents for CPU writes until Unmap.
	// Failure wraps ErrMapFailure.
	Map() ([]byte, error)

	// Unmap publishes writes made while mapped.
	Unmap()

	// Destroy releases the buffer.
	Destroy()
}

// TextureUsage specifies how a texture will be used.
// Flags combine with bitwise OR.
type TextureUsage uint32

const (
	// TextureUsageCopySrc allows the texture as a copy source.
	TextureUsageCopySrc TextureUsage = 1 << iota

	// TextureUsageCopyDst allows the texture as a copy destination.
	TextureUsageCopyDst

	// TextureUsageBinding allows sampling the texture from a shader.
	TextureUsageBinding
)

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	// Label is an optional debug label.
	Label string

	// Width and Height are the dimensions in pixels.
	Width  uint32
	Height uint32

	// Format is the pixel format. termgrid uses RGBA8 throughout.
	Format gputypes.TextureFormat

	// Usage specifies how the texture will be used.
	Usage TextureUsage
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	// Label is an optional debug label.
	Label string

	// Size is the buffer size in bytes.
	Size int
}

// CopyHint tells the backend how a region copy relates to in-flight work.
type CopyHint int

const (
	// CopyDefault orders the copy after prior GPU work on the destination.
	CopyDefault CopyHint = iota

	// CopyNoOverwrite promises the destination region is not read by any
	// in-flight GPU work, so the copy needs no synchronization barrier.
	// Atlas tiles qualify: the shader only reads tiles that are already
	// populated, and populated tiles are never replaced.
	CopyNoOverwrite
)

// Limits reports backend limits relevant to the atlas.
type Limits struct {
	// MaxTextureDim is the maximum texture width and height supported by
	// the hardware and format.
	MaxTextureDim uint32
}

// DrawParams carries the shader inputs for the full-screen cell draw.
type DrawParams struct {
	// Cells is the per-cell buffer, one CellStride record per grid cell.
	Cells Buffer

	// Constants is the frame-constant buffer.
	Constants Buffer

	// Atlas is the glyph atlas texture.
	Atlas Texture

	// ViewportWidth and ViewportHeight are the target size in pixels.
	ViewportWidth  uint32
	ViewportHeight uint32
}
