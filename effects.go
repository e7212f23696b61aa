package helio

import (
	"fmt"

	"github.com/helio3d/helio/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// EffectId is the stable external handle of one emitter. The integer
// emitter index behind it is an allocation detail and may be recycled.
type EffectId string

func newEffectId() EffectId { return EffectId(uuid.NewString()) }

// EmitterParams is the host-facing description of an emitter.
type EmitterParams struct {
	MaxParticles int32
	SpawnRate    float32 // particles per second

	LifetimeMin float32
	LifetimeMax float32
	RotationMin mgl32.Vec3
	RotationMax mgl32.Vec3
	ScaleMin    mgl32.Vec3
	ScaleMax    mgl32.Vec3

	SpawnVolumeType int32
	SpawnVolumeInfo mgl32.Vec4
	AlignMode       int32

	// Half extent of the emitter's world bounds, for the per-emitter
	// frustum gate. Zero disables the gate.
	BoundsHalfExtent mgl32.Vec3
}

// EmitterInstance is the host-side state of one live emitter.
type EmitterInstance struct {
	Id        EffectId
	Params    EmitterParams
	Transform mgl32.Mat4

	index          int32
	prevTransform  mgl32.Mat4
	spawnAcc       float32
	particleOffset int32
	particleCount  int32
	visible        bool
}

// Index returns the allocated emitter index, valid until despawn.
func (e *EmitterInstance) Index() int32 { return e.index }

// ParticleOffset is the emitter's slot range start in the global
// particle pool, assigned by the last Update.
func (e *EmitterInstance) ParticleOffset() int32 { return e.particleOffset }

// Visible reports the last Update's frustum gate result.
func (e *EmitterInstance) Visible() bool { return e.visible }

// EffectManager owns emitter lifecycle on the host: allocation of
// emitter indices and particle pool ranges, the per-frame simulation
// update feeding the emitter state store, and the render group the draw
// path iterates. The kernels only ever read what this writes.
type EffectManager struct {
	log   Logger
	store *core.EmitterStore

	effects map[EffectId]*EmitterInstance
	order   []*EmitterInstance // spawn order, drives particle pool packing

	emitterIndices []int32
	renderGroup    []*EmitterInstance

	emitterCount  int
	particleCount int
	staticsDirty  bool
}

func NewEffectManager(log Logger) *EffectManager {
	if log == nil {
		log = NewNopLogger()
	}
	indices := make([]int32, core.MaxParticleCount)
	for i := range indices {
		indices[i] = core.InvalidEmitterIndex
	}
	return &EffectManager{
		log:            log,
		store:          core.NewEmitterStore(),
		effects:        make(map[EffectId]*EmitterInstance),
		emitterIndices: indices,
	}
}

func (m *EffectManager) Store() *core.EmitterStore { return m.store }

// EmitterIndices is the per-particle emitter index table for upload.
func (m *EffectManager) EmitterIndices() []int32 { return m.emitterIndices }

// EmitterCount is the upload range of the constant tables: one past the
// highest allocated emitter index.
func (m *EffectManager) EmitterCount() int { return m.emitterCount }

// ParticleCount is the number of allocated particle slots this frame.
func (m *EffectManager) ParticleCount() int { return m.particleCount }

// StaticsDirty reports whether static constants changed since the last
// ClearStaticsDirty, i.e. whether the static table needs re-upload.
func (m *EffectManager) StaticsDirty() bool { return m.staticsDirty }
func (m *EffectManager) ClearStaticsDirty() { m.staticsDirty = false }

// RenderGroup is the list of emitters that survived the last Update's
// visibility gate, in draw order.
func (m *EffectManager) RenderGroup() []*EmitterInstance { return m.renderGroup }

// Spawn creates an emitter and allocates its index.
func (m *EffectManager) Spawn(params EmitterParams, transform mgl32.Mat4) (EffectId, error) {
	if params.MaxParticles <= 0 {
		return "", fmt.Errorf("effect manager: MaxParticles must be positive")
	}
	statics := core.ParticleStaticConstants{
		SpawnVolumeTransform: mgl32.Ident4(),
		SpawnVolumeInfo:      params.SpawnVolumeInfo,
		RotationMin:          params.RotationMin,
		LifetimeMin:          params.LifetimeMin,
		RotationMax:          params.RotationMax,
		LifetimeMax:          params.LifetimeMax,
		ScaleMin:             params.ScaleMin,
		SpawnVolumeType:      params.SpawnVolumeType,
		ScaleMax:             params.ScaleMax,
		MaxParticleCount:     params.MaxParticles,
		AlignMode:            params.AlignMode,
	}
	idx, err := m.store.Allocate(statics)
	if err != nil {
		return "", err
	}

	inst := &EmitterInstance{
		Id:            newEffectId(),
		Params:        params,
		Transform:     transform,
		prevTransform: transform,
		index:         idx,
	}
	m.effects[inst.Id] = inst
	m.order = append(m.order, inst)
	m.staticsDirty = true

	m.log.Debugf("spawned emitter %s at index %d", inst.Id, idx)
	return inst.Id, nil
}

// Despawn releases the emitter's index. Its particle range is reclaimed
// on the next Update.
func (m *EffectManager) Despawn(id EffectId) {
	inst, ok := m.effects[id]
	if !ok {
		return
	}
	delete(m.effects, id)
	for i, e := range m.order {
		if e == inst {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.store.Release(inst.index)
	m.staticsDirty = true
	m.log.Debugf("despawned emitter %s (index %d)", id, inst.index)
}

func (m *EffectManager) Get(id EffectId) (*EmitterInstance, bool) {
	inst, ok := m.effects[id]
	return inst, ok
}

// SetTransform moves an emitter; takes effect on the next Update.
func (m *EffectManager) SetTransform(id EffectId, transform mgl32.Mat4) {
	if inst, ok := m.effects[id]; ok {
		inst.Transform = transform
	}
}

// Update runs the once-per-frame host simulation step: spawn
// accumulation, counter advance (the count kernel's semantics), particle
// pool packing, the per-particle emitter index table, and the frustum
// gate for the render group. Must complete before any render-side
// consumer of the store runs this frame; the store is single-writer per
// frame epoch.
func (m *EffectManager) Update(dt float32, frustum *[6]mgl32.Vec4) {
	m.renderGroup = m.renderGroup[:0]
	m.emitterCount = 0
	m.particleCount = 0

	var poolOffset int32
	for _, inst := range m.order {
		statics := &m.store.Statics[inst.index]

		// Spawn accumulation with a fractional carry, so low rates still
		// emit.
		inst.spawnAcc += inst.Params.SpawnRate * dt
		spawn := int32(inst.spawnAcc)
		inst.spawnAcc -= float32(spawn)

		counts := &m.store.Counts[inst.index]
		*counts = core.StepCounts(*counts, spawn, statics.MaxParticleCount)

		// Pack this emitter's slot range into the global pool.
		available := statics.MaxParticleCount
		if remaining := int32(core.MaxParticleCount) - poolOffset; available > remaining {
			available = remaining
		}
		if available <= 0 {
			m.log.Warnf("particle pool exhausted, emitter %s gets no slots", inst.Id)
			available = 0
		}
		if counts.AliveCount > available {
			counts.AliveCount = available
		}

		offsetChanged := inst.particleOffset != poolOffset || inst.particleCount != available
		inst.particleOffset = poolOffset
		inst.particleCount = available
		if offsetChanged {
			for i := poolOffset; i < poolOffset+available; i++ {
				m.emitterIndices[i] = inst.index
			}
		}
		poolOffset += available

		dyn := &m.store.Dynamics[inst.index]
		dyn.PrevEmitterTransform = dyn.EmitterTransform
		dyn.EmitterTransform = inst.Transform
		dyn.SpawnCount = spawn
		dyn.AllocatedEmitterIndex = inst.index
		dyn.AllocatedParticleOffset = inst.particleOffset
		inst.prevTransform = inst.Transform

		if int(inst.index)+1 > m.emitterCount {
			m.emitterCount = int(inst.index) + 1
		}

		inst.visible = true
		if frustum != nil && inst.Params.BoundsHalfExtent.Len() > 0 {
			center := mgl32.Vec3{inst.Transform.At(0, 3), inst.Transform.At(1, 3), inst.Transform.At(2, 3)}
			he := inst.Params.BoundsHalfExtent
			inst.visible = core.AABBVisible(center.Sub(he), center.Add(he), *frustum)
		}
		if inst.visible {
			m.renderGroup = append(m.renderGroup, inst)
		}
	}
	m.particleCount = int(poolOffset)

	// Stale tail after despawns: unmap the slots so the update kernel
	// skips them.
	for i := poolOffset; i < int32(core.MaxParticleCount); i++ {
		if m.emitterIndices[i] == core.InvalidEmitterIndex {
			break
		}
		m.emitterIndices[i] = core.InvalidEmitterIndex
	}
}
