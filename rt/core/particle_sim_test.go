package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simRecord(t *testing.T) (EmitterRecord, *EmitterStore) {
	t.Helper()
	store := NewEmitterStore()
	idx, err := store.Allocate(ParticleStaticConstants{
		SpawnVolumeTransform: mgl32.Ident4(),
		SpawnVolumeInfo:      mgl32.Vec4{2, 2, 2, 0},
		SpawnVolumeType:      SpawnVolumeBox,
		LifetimeMin:          1.0,
		LifetimeMax:          1.0,
		ScaleMin:             mgl32.Vec3{1, 1, 1},
		ScaleMax:             mgl32.Vec3{1, 1, 1},
		MaxParticleCount:     32,
	})
	require.NoError(t, err)
	rec, ok := store.Record(idx)
	require.True(t, ok)
	return rec, store
}

func TestSimulateSpawnsFreshSlots(t *testing.T) {
	rec, _ := simRecord(t)
	rec.Counts.AliveCount = 8

	states := make([]ParticleState, 32)
	SimulateParticles(rec, states, 0.016)

	for i := 0; i < 8; i++ {
		assert.Equal(t, ParticleStateAlive, states[i].State, "slot %d", i)
		assert.Equal(t, float32(1.0), states[i].InitialLifetime)
		// Box volume is 2x2x2 centered at the origin.
		for a := 0; a < 3; a++ {
			assert.LessOrEqual(t, states[i].LocalPosition[a], float32(1.0))
			assert.GreaterOrEqual(t, states[i].LocalPosition[a], float32(-1.0))
		}
	}
	for i := 8; i < 32; i++ {
		assert.Equal(t, ParticleStateNone, states[i].State, "slot %d beyond alive range", i)
	}
	assert.Equal(t, int32(0), rec.Counts.DeadCount)
}

func TestSimulateDeterministicSpawn(t *testing.T) {
	recA, _ := simRecord(t)
	recA.Counts.AliveCount = 16
	a := make([]ParticleState, 16)
	SimulateParticles(recA, a, 0.016)

	recB, _ := simRecord(t)
	recB.Counts.AliveCount = 16
	b := make([]ParticleState, 16)
	SimulateParticles(recB, b, 0.016)

	require.Equal(t, a, b, "spawn must be reproducible for identical inputs")
}

func TestSimulateDeathIncrementsDeadCount(t *testing.T) {
	rec, _ := simRecord(t)
	rec.Counts.AliveCount = 8

	states := make([]ParticleState, 32)
	SimulateParticles(rec, states, 0.016)
	require.Equal(t, int32(0), rec.Counts.DeadCount)

	// Lifetime is exactly 1s; a 2s step kills the whole population.
	SimulateParticles(rec, states, 2.0)
	assert.Equal(t, int32(8), rec.Counts.DeadCount)
	for i := 0; i < 8; i++ {
		assert.Equal(t, ParticleStateDead, states[i].State)
	}

	// Count kernel reclaims them: next frame the emitter is empty.
	next := StepCounts(*rec.Counts, 0, 32)
	assert.Equal(t, int32(0), next.AliveCount)
}

func TestSimulateCountsStayCoupled(t *testing.T) {
	// alive - dead never goes negative across repeated frames, and the
	// effective visible count always bounds the renderable range.
	rec, _ := simRecord(t)
	states := make([]ParticleState, 32)

	counts := ParticleCountData{}
	for frame := 0; frame < 10; frame++ {
		counts = StepCounts(counts, 4, 32)
		*rec.Counts = counts
		SimulateParticles(rec, states, 0.3)
		counts = *rec.Counts

		eff := counts.EffectiveVisibleCount()
		require.GreaterOrEqual(t, eff, int32(0))
		require.LessOrEqual(t, eff, counts.AliveCount)
	}
}
