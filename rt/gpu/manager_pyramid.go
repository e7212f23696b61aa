package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/helio3d/helio/rt/core"

	"github.com/cogentcore/webgpu/wgpu"
)

// readbackState tracks the coarse-level CPU readback through its async
// stages: idle -> copy queued -> mapping -> mapped.
type readbackState struct {
	mu    sync.Mutex
	stage int
}

const (
	readbackIdle = iota
	readbackCopy
	readbackMapping
	readbackMapped
)

// defaultFarDepth fills the readback result until the first real copy
// lands, so occlusion queries start conservative (nothing occluded).
const defaultFarDepth = 60000.0

// SetupDepthPyramid (re)creates the pyramid texture, one view per mip,
// the reduction pipeline for the requested mode, and the readback buffer
// for a coarse level around 64 texels wide. The chain starts at half the
// source depth resolution.
func (m *GpuBufferManager) SetupDepthPyramid(width, height uint32, module *wgpu.ShaderModule, mode core.ReduceMode) error {
	if m.PyramidTexture != nil {
		m.PyramidTexture.Release()
	}
	if m.ReadbackBuffer != nil {
		m.ReadbackBuffer.Release()
	}
	for _, v := range m.PyramidViews {
		v.Release()
	}
	m.PyramidViews = nil
	m.PyramidBindGroups = nil
	if m.PyramidPipeline != nil && m.PyramidMode != mode {
		m.PyramidPipeline.Release()
		m.PyramidPipeline = nil
	}
	m.PyramidMode = mode

	mips := core.MipLevelCount(int(width), int(height))
	baseW := width / 2
	baseH := height / 2
	if baseW < 1 {
		baseW = 1
	}
	if baseH < 1 {
		baseH = 1
	}

	var err error
	m.PyramidTexture, err = m.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Depth Pyramid",
		Size:          wgpu.Extent3D{Width: baseW, Height: baseH, DepthOrArrayLayers: 1},
		MipLevelCount: uint32(mips),
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatR32Float,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageStorageBinding | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("depth pyramid texture: %w", err)
	}

	m.PyramidViews = make([]*wgpu.TextureView, mips)
	for i := 0; i < mips; i++ {
		m.PyramidViews[i], err = m.PyramidTexture.CreateView(&wgpu.TextureViewDescriptor{
			Label:           fmt.Sprintf("Depth Pyramid Mip %d", i),
			Format:          wgpu.TextureFormatR32Float,
			Dimension:       wgpu.TextureViewDimension2D,
			BaseMipLevel:    uint32(i),
			MipLevelCount:   1,
			BaseArrayLayer:  0,
			ArrayLayerCount: 1,
		})
		if err != nil {
			return fmt.Errorf("depth pyramid mip %d view: %w", i, err)
		}
	}

	// Pick the readback level: coarse enough to be cheap, ~64 wide.
	const targetW = uint32(64)
	level := 0
	currW, currH := baseW, baseH
	for level < mips-1 && currW > targetW {
		level++
		currW >>= 1
		currH >>= 1
	}
	if currW < 1 {
		currW = 1
	}
	if currH < 1 {
		currH = 1
	}
	m.ReadbackLevel = uint32(level)
	m.ReadbackWidth = currW
	m.ReadbackHeight = currH

	bytesPerRow := alignBytesPerRow(currW * 4)
	m.ReadbackBuffer, err = m.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Depth Pyramid Readback",
		Size:  uint64(bytesPerRow * currH),
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return fmt.Errorf("depth pyramid readback buffer: %w", err)
	}

	m.readback.mu.Lock()
	m.readback.stage = readbackIdle
	m.readback.mu.Unlock()

	bgl, err := m.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Depth Pyramid BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageCompute,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageCompute,
				StorageTexture: wgpu.StorageTextureBindingLayout{
					Access:        wgpu.StorageTextureAccessWriteOnly,
					Format:        wgpu.TextureFormatR32Float,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("depth pyramid bind group layout: %w", err)
	}
	m.pyramidLayout = bgl

	if m.PyramidPipeline == nil {
		entry := "reduce_min"
		if mode == core.ReduceMax {
			entry = "reduce_max"
		}
		layout, err := m.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
			BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
		})
		if err != nil {
			return fmt.Errorf("depth pyramid pipeline layout: %w", err)
		}
		m.PyramidPipeline, err = m.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:  "Depth Pyramid Pipeline",
			Layout: layout,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: entry,
			},
		})
		if err != nil {
			return fmt.Errorf("depth pyramid pipeline: %w", err)
		}
	}

	// Internal mip->mip bind groups never change; cache them. The pass 0
	// group depends on the external source view and is created per frame.
	m.PyramidBindGroups = make([]*wgpu.BindGroup, mips)
	for i := 0; i < mips-1; i++ {
		bg, err := m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  fmt.Sprintf("Depth Pyramid Pass %d", i+1),
			Layout: bgl,
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, TextureView: m.PyramidViews[i]},
				{Binding: 1, TextureView: m.PyramidViews[i+1]},
			},
		})
		if err != nil {
			return fmt.Errorf("depth pyramid pass %d bind group: %w", i+1, err)
		}
		m.PyramidBindGroups[i+1] = bg
	}
	return nil
}

// DispatchDepthPyramid encodes the whole reduction chain. Pass 0 reduces
// the external depth view into mip 0, then each pass feeds level N into
// level N+1; ordering between passes comes from the compute pass itself.
// When the readback buffer is idle, a copy of the coarse level is queued
// behind the chain.
func (m *GpuBufferManager) DispatchDepthPyramid(encoder *wgpu.CommandEncoder, sourceDepthView *wgpu.TextureView) error {
	if m.PyramidPipeline == nil || sourceDepthView == nil {
		return fmt.Errorf("depth pyramid: not set up")
	}

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(m.PyramidPipeline)

	baseW := m.PyramidTexture.GetWidth()
	baseH := m.PyramidTexture.GetHeight()
	mips := len(m.PyramidViews)

	bg0, err := m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Depth Pyramid Pass 0",
		Layout: m.pyramidLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: sourceDepthView},
			{Binding: 1, TextureView: m.PyramidViews[0]},
		},
	})
	if err != nil {
		pass.End()
		return fmt.Errorf("depth pyramid pass 0 bind group: %w", err)
	}
	pass.SetBindGroup(0, bg0, nil)
	pass.DispatchWorkgroups((baseW+7)/8, (baseH+7)/8, 1)

	w, h := baseW, baseH
	for i := 0; i < mips-1; i++ {
		w >>= 1
		h >>= 1
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		pass.SetBindGroup(0, m.PyramidBindGroups[i+1], nil)
		pass.DispatchWorkgroups((w+7)/8, (h+7)/8, 1)
	}
	pass.End()

	m.readback.mu.Lock()
	idle := m.readback.stage == readbackIdle
	if idle {
		m.readback.stage = readbackCopy
	}
	m.readback.mu.Unlock()
	if !idle {
		return nil
	}

	bytesPerRow := alignBytesPerRow(m.ReadbackWidth * 4)
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  m.PyramidTexture,
			MipLevel: m.ReadbackLevel,
			Origin:   wgpu.Origin3D{},
		},
		&wgpu.ImageCopyBuffer{
			Buffer: m.ReadbackBuffer,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  bytesPerRow,
				RowsPerImage: m.ReadbackHeight,
			},
		},
		&wgpu.Extent3D{Width: m.ReadbackWidth, Height: m.ReadbackHeight, DepthOrArrayLayers: 1},
	)
	return nil
}

// ReadbackDepthPyramid advances the readback state machine and returns
// the most recent coarse-level snapshot. Until the first copy completes
// it hands back a far-depth fill.
func (m *GpuBufferManager) ReadbackDepthPyramid() ([]float32, uint32, uint32) {
	if m.ReadbackBuffer == nil {
		return nil, 0, 0
	}

	m.readback.mu.Lock()
	if m.readback.stage == readbackCopy {
		m.readback.stage = readbackMapping
		m.ReadbackBuffer.MapAsync(wgpu.MapModeRead, 0, m.ReadbackBuffer.GetSize(), func(status wgpu.BufferMapAsyncStatus) {
			m.readback.mu.Lock()
			defer m.readback.mu.Unlock()
			if status == wgpu.BufferMapAsyncStatusSuccess {
				m.readback.stage = readbackMapped
			} else {
				m.readback.stage = readbackIdle
			}
		})
	}
	mapped := m.readback.stage == readbackMapped
	m.readback.mu.Unlock()

	if mapped {
		size := m.ReadbackBuffer.GetSize()
		data := m.ReadbackBuffer.GetMappedRange(0, uint(size))

		w, h := m.ReadbackWidth, m.ReadbackHeight
		bytesPerRow := alignBytesPerRow(w * 4)
		if len(m.LastPyramidData) != int(w*h) {
			m.LastPyramidData = make([]float32, w*h)
		}
		m.LastPyramidW = w
		m.LastPyramidH = h

		for y := uint32(0); y < h; y++ {
			row := y * bytesPerRow
			for x := uint32(0); x < w; x++ {
				off := row + x*4
				if uint64(off+4) <= size {
					bits := binary.LittleEndian.Uint32(data[off : off+4])
					m.LastPyramidData[y*w+x] = math.Float32frombits(bits)
				}
			}
		}

		m.ReadbackBuffer.Unmap()
		m.readback.mu.Lock()
		m.readback.stage = readbackIdle
		m.readback.mu.Unlock()
	}

	if len(m.LastPyramidData) == 0 && m.ReadbackWidth > 0 && m.ReadbackHeight > 0 {
		w, h := m.ReadbackWidth, m.ReadbackHeight
		m.LastPyramidData = make([]float32, w*h)
		for i := range m.LastPyramidData {
			m.LastPyramidData[i] = defaultFarDepth
		}
		m.LastPyramidW = w
		m.LastPyramidH = h
	}
	return m.LastPyramidData, m.LastPyramidW, m.LastPyramidH
}

// Copy rows must be 256-byte aligned per WebGPU.
func alignBytesPerRow(n uint32) uint32 {
	return (n + 255) & ^uint32(255)
}
