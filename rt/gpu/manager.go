package gpu

import (
	"encoding/binary"
	"math"

	"github.com/helio3d/helio/rt/core"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Byte sizes of the storage buffer records shared with the WGSL kernels.
// The pack functions below are the single encoding path; pack_test.go
// pins the offsets so host and kernel layouts cannot drift apart.
const (
	StaticConstantsStride  = 160
	DynamicConstantsStride = 144
	CountDataStride        = 16
	UpdateDataStride       = 128
	FrameConstantsSize     = 192
	DispatchParamsSize     = 16
)

// GpuBufferManager owns the device buffers of the particle pipeline and
// the depth pyramid. Count and update buffers are ping-ponged: the
// kernels read last frame's state and write this frame's.
type GpuBufferManager struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue

	StaticConstantsBuf  *wgpu.Buffer
	DynamicConstantsBuf *wgpu.Buffer
	EmitterIndexBuf     *wgpu.Buffer
	CountBufs           [2]*wgpu.Buffer
	UpdateBufs          [2]*wgpu.Buffer
	CountParamsBuf      *wgpu.Buffer
	UpdateParamsBuf     *wgpu.Buffer
	FrameConstantsBuf   *wgpu.Buffer

	CountPipeline    *wgpu.ComputePipeline
	UpdatePipeline   *wgpu.ComputePipeline
	CountBindGroups  [2]*wgpu.BindGroup
	UpdateBindGroups [2]*wgpu.BindGroup
	frameParity      int

	// Depth pyramid state, see manager_pyramid.go.
	PyramidTexture    *wgpu.Texture
	PyramidViews      []*wgpu.TextureView
	PyramidBindGroups []*wgpu.BindGroup
	PyramidPipeline   *wgpu.ComputePipeline
	PyramidMode       core.ReduceMode
	pyramidLayout     *wgpu.BindGroupLayout

	ReadbackBuffer *wgpu.Buffer
	ReadbackLevel  uint32
	ReadbackWidth  uint32
	ReadbackHeight uint32
	readback       readbackState

	LastPyramidData []float32
	LastPyramidW    uint32
	LastPyramidH    uint32
}

func NewGpuBufferManager(device *wgpu.Device) *GpuBufferManager {
	return &GpuBufferManager{
		Device: device,
		Queue:  device.GetQueue(),
	}
}

func (m *GpuBufferManager) ensureBuffer(name string, buf **wgpu.Buffer, size uint64, usage wgpu.BufferUsage) error {
	if size%4 != 0 {
		size += 4 - (size % 4)
	}
	current := *buf
	if current != nil && current.GetSize() >= size {
		return nil
	}
	if current != nil {
		current.Release()
	}
	newBuf, err := m.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: name,
		Size:  size,
		Usage: usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	*buf = newBuf
	return nil
}

// EnsureParticleBuffers allocates the fixed-capacity particle buffers.
// Capacities come from rt/core's constants, never from per-frame counts.
func (m *GpuBufferManager) EnsureParticleBuffers() error {
	storage := wgpu.BufferUsageStorage
	uniform := wgpu.BufferUsageUniform

	if err := m.ensureBuffer("Particle Static Constants", &m.StaticConstantsBuf,
		core.MaxEmitterCount*StaticConstantsStride, storage); err != nil {
		return err
	}
	if err := m.ensureBuffer("Particle Dynamic Constants", &m.DynamicConstantsBuf,
		core.MaxEmitterCount*DynamicConstantsStride, storage); err != nil {
		return err
	}
	if err := m.ensureBuffer("Particle Emitter Indices", &m.EmitterIndexBuf,
		core.MaxParticleCount*4, storage); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		if err := m.ensureBuffer("Particle Counts", &m.CountBufs[i],
			core.MaxEmitterCount*CountDataStride, storage); err != nil {
			return err
		}
		if err := m.ensureBuffer("Particle Update Data", &m.UpdateBufs[i],
			core.MaxParticleCount*UpdateDataStride, storage); err != nil {
			return err
		}
	}
	if err := m.ensureBuffer("Particle Count Params", &m.CountParamsBuf,
		DispatchParamsSize, uniform); err != nil {
		return err
	}
	if err := m.ensureBuffer("Particle Update Params", &m.UpdateParamsBuf,
		DispatchParamsSize, uniform); err != nil {
		return err
	}
	return m.ensureBuffer("Particle Frame Constants", &m.FrameConstantsBuf,
		FrameConstantsSize, uniform)
}

// UploadEmitterConstants writes the first emitterCount records of the
// store's constant tables. Static constants change rarely; callers may
// pass staticsDirty=false to skip that upload.
func (m *GpuBufferManager) UploadEmitterConstants(store *core.EmitterStore, emitterCount int, staticsDirty bool) {
	if emitterCount <= 0 {
		return
	}
	if staticsDirty {
		buf := make([]byte, emitterCount*StaticConstantsStride)
		for i := 0; i < emitterCount; i++ {
			packStaticConstants(buf[i*StaticConstantsStride:], &store.Statics[i])
		}
		m.Queue.WriteBuffer(m.StaticConstantsBuf, 0, buf)
	}
	buf := make([]byte, emitterCount*DynamicConstantsStride)
	for i := 0; i < emitterCount; i++ {
		packDynamicConstants(buf[i*DynamicConstantsStride:], &store.Dynamics[i])
	}
	m.Queue.WriteBuffer(m.DynamicConstantsBuf, 0, buf)
}

// UploadEmitterIndices writes the per-particle emitter index table.
func (m *GpuBufferManager) UploadEmitterIndices(indices []int32) {
	if len(indices) == 0 {
		return
	}
	buf := make([]byte, len(indices)*4)
	for i, v := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	m.Queue.WriteBuffer(m.EmitterIndexBuf, 0, buf)
}

// UploadCounts seeds the current read-side count buffer from the host
// store, e.g. after emitter allocation changes.
func (m *GpuBufferManager) UploadCounts(store *core.EmitterStore, emitterCount int) {
	if emitterCount <= 0 {
		return
	}
	buf := make([]byte, emitterCount*CountDataStride)
	for i := 0; i < emitterCount; i++ {
		packCountData(buf[i*CountDataStride:], &store.Counts[i])
	}
	m.Queue.WriteBuffer(m.CountBufs[m.frameParity], 0, buf)
}

// UploadFrameConstants writes the camera block consumed by the particle
// render stage.
func (m *GpuBufferManager) UploadFrameConstants(frame *core.FrameConstants) {
	buf := make([]byte, FrameConstantsSize)
	packMat4(buf[0:], frame.ViewOriginProjection)
	packMat4(buf[64:], frame.PrevViewOriginProjection)
	packVec3(buf[128:], frame.CameraPosition)
	packVec3(buf[144:], frame.PrevCameraPosition)
	packVec3(buf[160:], frame.CameraRight)
	packVec3(buf[176:], frame.CameraUp)
	m.Queue.WriteBuffer(m.FrameConstantsBuf, 0, buf)
}

func packMat4(buf []byte, m mgl32.Mat4) {
	for i, v := range [16]float32(m) {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}

func packVec3(buf []byte, v mgl32.Vec3) {
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(v.X()))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(v.Y()))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(v.Z()))
}

func packVec4(buf []byte, v mgl32.Vec4) {
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v[i]))
	}
}

func packStaticConstants(buf []byte, c *core.ParticleStaticConstants) {
	packMat4(buf[0:], c.SpawnVolumeTransform)
	packVec4(buf[64:], c.SpawnVolumeInfo)
	packVec3(buf[80:], c.RotationMin)
	binary.LittleEndian.PutUint32(buf[92:], math.Float32bits(c.LifetimeMin))
	packVec3(buf[96:], c.RotationMax)
	binary.LittleEndian.PutUint32(buf[108:], math.Float32bits(c.LifetimeMax))
	packVec3(buf[112:], c.ScaleMin)
	binary.LittleEndian.PutUint32(buf[124:], uint32(c.SpawnVolumeType))
	packVec3(buf[128:], c.ScaleMax)
	binary.LittleEndian.PutUint32(buf[140:], uint32(c.MaxParticleCount))
	binary.LittleEndian.PutUint32(buf[144:], uint32(c.AlignMode))
	binary.LittleEndian.PutUint32(buf[148:], uint32(c.GeometryType))
	binary.LittleEndian.PutUint32(buf[152:], uint32(c.Reserved0))
	binary.LittleEndian.PutUint32(buf[156:], uint32(c.Reserved1))
}

func packDynamicConstants(buf []byte, c *core.ParticleDynamicConstants) {
	packMat4(buf[0:], c.EmitterTransform)
	packMat4(buf[64:], c.PrevEmitterTransform)
	binary.LittleEndian.PutUint32(buf[128:], uint32(c.SpawnCount))
	binary.LittleEndian.PutUint32(buf[132:], uint32(c.AllocatedEmitterIndex))
	binary.LittleEndian.PutUint32(buf[136:], uint32(c.AllocatedParticleOffset))
	binary.LittleEndian.PutUint32(buf[140:], uint32(c.Reserved0))
}

func packCountData(buf []byte, c *core.ParticleCountData) {
	binary.LittleEndian.PutUint32(buf[0:], uint32(c.AliveCount))
	binary.LittleEndian.PutUint32(buf[4:], uint32(c.PrevAliveCount))
	binary.LittleEndian.PutUint32(buf[8:], uint32(c.DeadCount))
	binary.LittleEndian.PutUint32(buf[12:], uint32(c.Reserved0))
}
