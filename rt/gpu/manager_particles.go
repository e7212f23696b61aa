package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/helio3d/helio/rt/core"

	"github.com/cogentcore/webgpu/wgpu"
)

// SetupParticlePipelines builds the count and update compute pipelines
// (auto layout, WGSL declares the bindings) and both parity variants of
// their bind groups for the ping-pong buffers.
func (m *GpuBufferManager) SetupParticlePipelines(countModule, updateModule *wgpu.ShaderModule) error {
	if err := m.EnsureParticleBuffers(); err != nil {
		return err
	}

	var err error
	m.CountPipeline, err = m.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Particle Count Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     countModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("particle count pipeline: %w", err)
	}
	m.UpdatePipeline, err = m.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Particle Update Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     updateModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("particle update pipeline: %w", err)
	}

	// Parity p reads buffers [p] and writes buffers [1-p].
	for p := 0; p < 2; p++ {
		m.CountBindGroups[p], err = m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  fmt.Sprintf("Particle Count BG %d", p),
			Layout: m.CountPipeline.GetBindGroupLayout(0),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: m.StaticConstantsBuf, Size: wgpu.WholeSize},
				{Binding: 1, Buffer: m.DynamicConstantsBuf, Size: wgpu.WholeSize},
				{Binding: 2, Buffer: m.CountBufs[p], Size: wgpu.WholeSize},
				{Binding: 3, Buffer: m.CountBufs[1-p], Size: wgpu.WholeSize},
				{Binding: 4, Buffer: m.CountParamsBuf, Size: wgpu.WholeSize},
			},
		})
		if err != nil {
			return fmt.Errorf("particle count bind group %d: %w", p, err)
		}

		m.UpdateBindGroups[p], err = m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  fmt.Sprintf("Particle Update BG %d", p),
			Layout: m.UpdatePipeline.GetBindGroupLayout(0),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: m.StaticConstantsBuf, Size: wgpu.WholeSize},
				{Binding: 1, Buffer: m.DynamicConstantsBuf, Size: wgpu.WholeSize},
				{Binding: 2, Buffer: m.CountBufs[1-p], Size: wgpu.WholeSize},
				{Binding: 3, Buffer: m.EmitterIndexBuf, Size: wgpu.WholeSize},
				{Binding: 4, Buffer: m.UpdateBufs[p], Size: wgpu.WholeSize},
				{Binding: 5, Buffer: m.UpdateBufs[1-p], Size: wgpu.WholeSize},
				{Binding: 6, Buffer: m.UpdateParamsBuf, Size: wgpu.WholeSize},
			},
		})
		if err != nil {
			return fmt.Errorf("particle update bind group %d: %w", p, err)
		}
	}
	return nil
}

// DispatchParticles encodes one frame of the particle pipeline: the count
// kernel over the allocated emitters, then the update kernel over the
// allocated particle slots. The update pass sees the count pass's writes
// through the compute pass's implicit ordering; the host must have
// uploaded this frame's dynamic constants beforehand.
func (m *GpuBufferManager) DispatchParticles(encoder *wgpu.CommandEncoder, emitterCount, particleCount int, dt float32) {
	if m.CountPipeline == nil || m.UpdatePipeline == nil || emitterCount <= 0 {
		return
	}
	if emitterCount > core.MaxEmitterCount {
		emitterCount = core.MaxEmitterCount
	}
	if particleCount > core.MaxParticleCount {
		particleCount = core.MaxParticleCount
	}

	params := make([]byte, DispatchParamsSize)
	binary.LittleEndian.PutUint32(params[0:], uint32(emitterCount))
	m.Queue.WriteBuffer(m.CountParamsBuf, 0, params)

	params = make([]byte, DispatchParamsSize)
	binary.LittleEndian.PutUint32(params[0:], uint32(particleCount))
	binary.LittleEndian.PutUint32(params[4:], math.Float32bits(dt))
	m.Queue.WriteBuffer(m.UpdateParamsBuf, 0, params)

	p := m.frameParity
	groups := func(n int) uint32 {
		return uint32((n + core.ParticleWorkGroupSize - 1) / core.ParticleWorkGroupSize)
	}

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(m.CountPipeline)
	pass.SetBindGroup(0, m.CountBindGroups[p], nil)
	pass.DispatchWorkgroups(groups(emitterCount), 1, 1)

	if particleCount > 0 {
		pass.SetPipeline(m.UpdatePipeline)
		pass.SetBindGroup(0, m.UpdateBindGroups[p], nil)
		pass.DispatchWorkgroups(groups(particleCount), 1, 1)
	}
	pass.End()
}

// SwapFrame flips the ping-pong parity after the frame's dispatches are
// submitted; next frame reads what this frame wrote.
func (m *GpuBufferManager) SwapFrame() {
	m.frameParity = 1 - m.frameParity
}

// CurrentCountBuffer is the write side of this frame's count ping-pong,
// i.e. the stepped counts the render stage binds.
func (m *GpuBufferManager) CurrentCountBuffer() *wgpu.Buffer {
	return m.CountBufs[1-m.frameParity]
}
