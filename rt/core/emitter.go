package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Spawn volume shapes understood by the particle update kernel.
const (
	SpawnVolumeBox = int32(iota)
	SpawnVolumeSphere
	SpawnVolumeCone
	SpawnVolumeCylinder
)

// Billboard alignment modes.
const (
	AlignNone = int32(iota)
	AlignBillboard
	AlignVelocity
)

// ParticleStaticConstants are the spawn-time immutable parameters of one
// emitter. Written once at allocation (re-uploaded only when the allocated
// index moves), never touched by the kernels.
//
// Field order matches the storage buffer layout in particle_update.wgsl.
type ParticleStaticConstants struct {
	SpawnVolumeTransform mgl32.Mat4
	SpawnVolumeInfo      mgl32.Vec4
	RotationMin          mgl32.Vec3
	LifetimeMin          float32
	RotationMax          mgl32.Vec3
	LifetimeMax          float32
	ScaleMin             mgl32.Vec3
	SpawnVolumeType      int32
	ScaleMax             mgl32.Vec3
	MaxParticleCount     int32
	AlignMode            int32
	GeometryType         int32
	Reserved0            int32
	Reserved1            int32
}

// ParticleDynamicConstants are re-uploaded every frame by the host
// simulation before any particle dispatch runs.
type ParticleDynamicConstants struct {
	EmitterTransform        mgl32.Mat4
	PrevEmitterTransform    mgl32.Mat4
	SpawnCount              int32
	AllocatedEmitterIndex   int32
	AllocatedParticleOffset int32
	Reserved0               int32
}

// ParticleCountData is the per-emitter GPU-resident counter record. The
// render-side kernels only ever read it; the count kernel (or the host
// reference in StepCounts) writes the next frame's values into the
// ping-pong destination buffer.
type ParticleCountData struct {
	AliveCount     int32
	PrevAliveCount int32
	DeadCount      int32
	Reserved0      int32
}

// EffectiveVisibleCount is the number of allocated slots that still
// represent live, renderable particles. Always in [0, AliveCount].
func (c *ParticleCountData) EffectiveVisibleCount() int32 {
	n := c.AliveCount - c.DeadCount
	if n < 0 {
		return 0
	}
	return n
}

// StepCounts advances one emitter's counters by one frame, mirroring the
// count kernel in particle_count.wgsl: dead slots are reclaimed, the
// requested spawns are admitted up to the emitter capacity, and the dead
// counter resets for the update kernel's atomics.
func StepCounts(prev ParticleCountData, spawnCount, maxParticles int32) ParticleCountData {
	alive := prev.AliveCount - prev.DeadCount
	if alive < 0 {
		alive = 0
	}
	alive += spawnCount
	if alive > maxParticles {
		alive = maxParticles
	}
	return ParticleCountData{
		AliveCount:     alive,
		PrevAliveCount: prev.AliveCount,
		DeadCount:      0,
	}
}

// EmitterStore is a fixed-capacity table of emitter records indexed by a
// small integer handle. Handles are allocated and recycled here on the
// host; the kernels treat the backing arrays as read-only inputs.
type EmitterStore struct {
	Statics  []ParticleStaticConstants
	Dynamics []ParticleDynamicConstants
	Counts   []ParticleCountData

	allocated []bool
	freeList  []int32
	count     int
}

func NewEmitterStore() *EmitterStore {
	s := &EmitterStore{
		Statics:   make([]ParticleStaticConstants, MaxEmitterCount),
		Dynamics:  make([]ParticleDynamicConstants, MaxEmitterCount),
		Counts:    make([]ParticleCountData, MaxEmitterCount),
		allocated: make([]bool, MaxEmitterCount),
		freeList:  make([]int32, 0, MaxEmitterCount),
	}
	for i := MaxEmitterCount - 1; i >= 0; i-- {
		s.freeList = append(s.freeList, int32(i))
	}
	return s
}

// Allocate reserves an emitter slot and installs its static constants.
func (s *EmitterStore) Allocate(statics ParticleStaticConstants) (int32, error) {
	if len(s.freeList) == 0 {
		return InvalidEmitterIndex, fmt.Errorf("emitter store: capacity %d exhausted", MaxEmitterCount)
	}
	idx := s.freeList[len(s.freeList)-1]
	s.freeList = s.freeList[:len(s.freeList)-1]

	if statics.MaxParticleCount > MaxParticleCount {
		statics.MaxParticleCount = MaxParticleCount
	}
	s.Statics[idx] = statics
	s.Dynamics[idx] = ParticleDynamicConstants{
		EmitterTransform:      mgl32.Ident4(),
		PrevEmitterTransform:  mgl32.Ident4(),
		AllocatedEmitterIndex: idx,
	}
	s.Counts[idx] = ParticleCountData{}
	s.allocated[idx] = true
	s.count++
	return idx, nil
}

// Release recycles a handle. The slot's counters are zeroed so a stale
// index held by a consumer renders nothing rather than garbage.
func (s *EmitterStore) Release(idx int32) {
	if idx < 0 || int(idx) >= MaxEmitterCount || !s.allocated[idx] {
		return
	}
	s.allocated[idx] = false
	s.Counts[idx] = ParticleCountData{}
	s.freeList = append(s.freeList, idx)
	s.count--
}

func (s *EmitterStore) Allocated(idx int32) bool {
	return idx >= 0 && int(idx) < MaxEmitterCount && s.allocated[idx]
}

func (s *EmitterStore) Len() int { return s.count }

// Record bundles one emitter's three views for the per-instance kernels.
type EmitterRecord struct {
	Statics  *ParticleStaticConstants
	Dynamics *ParticleDynamicConstants
	Counts   *ParticleCountData
}

func (s *EmitterStore) Record(idx int32) (EmitterRecord, bool) {
	if !s.Allocated(idx) {
		return EmitterRecord{}, false
	}
	return EmitterRecord{
		Statics:  &s.Statics[idx],
		Dynamics: &s.Dynamics[idx],
		Counts:   &s.Counts[idx],
	}, true
}
