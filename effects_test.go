package helio

import (
	"testing"

	"github.com/helio3d/helio/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams(maxParticles int32, rate float32) EmitterParams {
	return EmitterParams{
		MaxParticles:    maxParticles,
		SpawnRate:       rate,
		LifetimeMin:     1,
		LifetimeMax:     2,
		ScaleMin:        mgl32.Vec3{0.1, 0.1, 0.1},
		ScaleMax:        mgl32.Vec3{0.2, 0.2, 0.2},
		SpawnVolumeInfo: mgl32.Vec4{1, 1, 1, 0},
	}
}

func TestSpawnDespawnRecyclesIndices(t *testing.T) {
	m := NewEffectManager(NewNopLogger())

	a, err := m.Spawn(testParams(64, 10), mgl32.Ident4())
	require.NoError(t, err)
	b, err := m.Spawn(testParams(64, 10), mgl32.Ident4())
	require.NoError(t, err)

	instA, ok := m.Get(a)
	require.True(t, ok)
	instB, _ := m.Get(b)
	require.NotEqual(t, instA.Index(), instB.Index())

	idxA := instA.Index()
	m.Despawn(a)
	_, ok = m.Get(a)
	assert.False(t, ok)

	c, err := m.Spawn(testParams(32, 5), mgl32.Ident4())
	require.NoError(t, err)
	instC, _ := m.Get(c)
	assert.Equal(t, idxA, instC.Index(), "released index should be recycled")
}

func TestSpawnRejectsZeroCapacity(t *testing.T) {
	m := NewEffectManager(nil)
	_, err := m.Spawn(EmitterParams{}, mgl32.Ident4())
	require.Error(t, err)
}

func TestUpdateAccumulatesSpawns(t *testing.T) {
	m := NewEffectManager(nil)
	id, err := m.Spawn(testParams(100, 60), mgl32.Ident4())
	require.NoError(t, err)
	inst, _ := m.Get(id)

	// 60/sec at 60 fps: one spawn per frame, counters grow by one.
	for frame := 1; frame <= 5; frame++ {
		m.Update(1.0/60.0, nil)
		counts := m.Store().Counts[inst.Index()]
		assert.Equal(t, int32(frame), counts.AliveCount, "frame %d", frame)
	}

	// Fractional rate carries across frames instead of rounding to zero.
	m2 := NewEffectManager(nil)
	id2, _ := m2.Spawn(testParams(100, 10), mgl32.Ident4())
	inst2, _ := m2.Get(id2)
	for frame := 0; frame < 6; frame++ {
		m2.Update(1.0/60.0, nil)
	}
	counts := m2.Store().Counts[inst2.Index()]
	assert.Equal(t, int32(1), counts.AliveCount)
}

func TestUpdatePacksParticlePool(t *testing.T) {
	m := NewEffectManager(nil)
	a, _ := m.Spawn(testParams(100, 1), mgl32.Ident4())
	b, _ := m.Spawn(testParams(50, 1), mgl32.Ident4())
	m.Update(0.016, nil)

	instA, _ := m.Get(a)
	instB, _ := m.Get(b)

	assert.Equal(t, int32(0), instA.ParticleOffset())
	assert.Equal(t, int32(100), instB.ParticleOffset())
	assert.Equal(t, 150, m.ParticleCount())

	indices := m.EmitterIndices()
	assert.Equal(t, instA.Index(), indices[0])
	assert.Equal(t, instA.Index(), indices[99])
	assert.Equal(t, instB.Index(), indices[100])
	assert.Equal(t, instB.Index(), indices[149])
	assert.Equal(t, int32(core.InvalidEmitterIndex), indices[150])

	// Despawning the first emitter repacks the second to the front.
	m.Despawn(a)
	m.Update(0.016, nil)
	assert.Equal(t, int32(0), instB.ParticleOffset())
	assert.Equal(t, 50, m.ParticleCount())
	assert.Equal(t, instB.Index(), indices[0])
	assert.Equal(t, int32(core.InvalidEmitterIndex), indices[50])
}

func TestUpdateRollsPrevTransform(t *testing.T) {
	m := NewEffectManager(nil)
	id, _ := m.Spawn(testParams(10, 1), mgl32.Translate3D(1, 0, 0))
	inst, _ := m.Get(id)

	m.Update(0.016, nil)
	m.SetTransform(id, mgl32.Translate3D(2, 0, 0))
	m.Update(0.016, nil)

	dyn := m.Store().Dynamics[inst.Index()]
	assert.Equal(t, float32(2), dyn.EmitterTransform.At(0, 3))
	assert.Equal(t, float32(1), dyn.PrevEmitterTransform.At(0, 3))
}

func TestUpdateFrustumGate(t *testing.T) {
	m := NewEffectManager(nil)

	params := testParams(10, 1)
	params.BoundsHalfExtent = mgl32.Vec3{1, 1, 1}

	inFront, _ := m.Spawn(params, mgl32.Translate3D(0, 0, -10))
	behind, _ := m.Spawn(params, mgl32.Translate3D(0, 0, 50))

	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	planes := core.ExtractFrustumPlanes(proj.Mul4(view))

	m.Update(0.016, &planes)

	instFront, _ := m.Get(inFront)
	instBehind, _ := m.Get(behind)
	assert.True(t, instFront.Visible())
	assert.False(t, instBehind.Visible())
	require.Len(t, m.RenderGroup(), 1)
	assert.Equal(t, instFront, m.RenderGroup()[0])

	// Culled emitters keep simulating; their counters still advance.
	counts := m.Store().Counts[instBehind.Index()]
	assert.GreaterOrEqual(t, counts.AliveCount, int32(0))
}

func TestStaticsDirtyTracking(t *testing.T) {
	m := NewEffectManager(nil)
	assert.False(t, m.StaticsDirty())

	id, _ := m.Spawn(testParams(10, 1), mgl32.Ident4())
	assert.True(t, m.StaticsDirty())

	m.ClearStaticsDirty()
	assert.False(t, m.StaticsDirty())

	m.Despawn(id)
	assert.True(t, m.StaticsDirty())
}
