package native

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/termgrid"
)

// Embedded cell compositor shader source.
//
//go:embed shaders/cell.wgsl
var cellShaderSource string

// cellPipeline holds the GPU objects for the fullscreen cell pass.
type cellPipeline struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
}

// newCellPipeline compiles the cell shader and creates the render
// pipeline for the given target format.
func newCellPipeline(device hal.Device, format gputypes.TextureFormat) (*cellPipeline, error) {
	if cellShaderSource == "" {
		return nil, fmt.Errorf("%w: cell shader source is empty", termgrid.ErrResourceCreation)
	}

	shader, err := compileShader(device, "termgrid_cell_shader", cellShaderSource)
	if err != nil {
		return nil, fmt.Errorf("%w: compile cell shader: %v", termgrid.ErrResourceCreation, err)
	}
	p := &cellPipeline{shader: shader}

	// Bind group layout:
	//   Binding 0: Constants (uniform buffer, fragment)
	//   Binding 1: cell records (read-only storage buffer, fragment)
	//   Binding 2: glyph atlas (texture_2d, fragment)
	// The atlas is read with textureLoad, so no sampler is bound.
	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "termgrid_cell_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("%w: cell bind group layout: %v", termgrid.ErrResourceCreation, err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "termgrid_cell_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("%w: cell pipeline layout: %v", termgrid.ErrResourceCreation, err)
	}
	p.pipeLayout = pipeLayout

	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "termgrid_cell_pipeline",
		Layout: pipeLayout,
		Vertex: hal.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("%w: cell pipeline: %v", termgrid.ErrResourceCreation, err)
	}
	p.pipeline = pipeline

	return p, nil
}

// compileShader creates a shader module from WGSL, falling back to a
// naga-compiled SPIR-V module for backends without a WGSL frontend.
func compileShader(device hal.Device, label, source string) (hal.ShaderModule, error) {
	shader, wgslErr := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: source},
	})
	if wgslErr == nil {
		return shader, nil
	}

	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("wgsl: %v; naga: %w", wgslErr, err)
	}
	// SPIR-V is little-endian 32-bit words.
	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
}

// destroy releases pipeline resources in reverse creation order.
func (p *cellPipeline) destroy(device hal.Device) {
	if p.pipeline != nil {
		device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
