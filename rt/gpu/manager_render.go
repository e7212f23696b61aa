package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// SetupParticleRenderPipeline builds the instanced-quad render pipeline
// over the global particle pool and its per-parity bind groups. The
// render stage reads the count buffer the count kernel wrote this frame,
// so parity p binds CountBufs[1-p].
func (m *GpuBufferManager) SetupParticleRenderPipeline(module *wgpu.ShaderModule, format wgpu.TextureFormat) (*wgpu.RenderPipeline, [2]*wgpu.BindGroup, error) {
	var groups [2]*wgpu.BindGroup

	pipeline, err := m.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Particle Render Pipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleStrip,
			CullMode: wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format: format,
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							SrcFactor: wgpu.BlendFactorSrcAlpha,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
							Operation: wgpu.BlendOperationAdd,
						},
						Alpha: wgpu.BlendComponent{
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
							Operation: wgpu.BlendOperationAdd,
						},
					},
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
	})
	if err != nil {
		return nil, groups, fmt.Errorf("particle render pipeline: %w", err)
	}

	for p := 0; p < 2; p++ {
		groups[p], err = m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  fmt.Sprintf("Particle Render BG %d", p),
			Layout: pipeline.GetBindGroupLayout(0),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: m.StaticConstantsBuf, Size: wgpu.WholeSize},
				{Binding: 1, Buffer: m.DynamicConstantsBuf, Size: wgpu.WholeSize},
				{Binding: 2, Buffer: m.CountBufs[1-p], Size: wgpu.WholeSize},
				{Binding: 3, Buffer: m.EmitterIndexBuf, Size: wgpu.WholeSize},
				{Binding: 4, Buffer: m.FrameConstantsBuf, Size: wgpu.WholeSize},
			},
		})
		if err != nil {
			return nil, groups, fmt.Errorf("particle render bind group %d: %w", p, err)
		}
	}
	return pipeline, groups, nil
}

// FrameParity exposes the current ping-pong parity for callers that
// cache per-parity resources.
func (m *GpuBufferManager) FrameParity() int { return m.frameParity }
